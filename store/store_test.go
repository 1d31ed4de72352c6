package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPutThenGet(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("Init() returned error: %v", err)
	}

	artifact := filepath.Join(t.TempDir(), "artifact")
	if err := os.WriteFile(artifact, []byte("payload"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	const buildID = "abc123"
	if s.Contains(buildID) {
		t.Fatal("Contains() reported true before Put()")
	}
	if err := s.Put(buildID, artifact); err != nil {
		t.Fatalf("Put() returned error: %v", err)
	}
	if !s.Contains(buildID) {
		t.Fatal("Contains() reported false after Put()")
	}

	got, err := s.Get(buildID)
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatalf("reading stored artifact: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("stored artifact content = %q, want %q", data, "payload")
	}
}

func TestGetUnknownBuildID(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("Init() returned error: %v", err)
	}
	if _, err := s.Get("nope"); err == nil {
		t.Fatal("Get() did not error for an unknown buildid")
	}
}

func TestPutIsIdempotent(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("Init() returned error: %v", err)
	}
	artifact := filepath.Join(t.TempDir(), "artifact")
	if err := os.WriteFile(artifact, []byte("v1"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if err := s.Put("id", artifact); err != nil {
		t.Fatalf("first Put() returned error: %v", err)
	}
	// A second Put for the same buildid, even from a different source
	// path, must not disturb the already-stored artifact: content
	// addressing means the same key always names the same bytes.
	other := filepath.Join(t.TempDir(), "other")
	if err := os.WriteFile(other, []byte("v2-should-be-ignored"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if err := s.Put("id", other); err != nil {
		t.Fatalf("second Put() returned error: %v", err)
	}
	got, err := s.Get("id")
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	data, _ := os.ReadFile(got)
	if string(data) != "v1" {
		t.Fatalf("second Put() overwrote the stored artifact: got %q", data)
	}
}
