package main

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/e2core/e2/cli"
)

func TestFetchCommandFetchesFilesSourceAndPrintsSourceID(t *testing.T) {
	root := t.TempDir()
	serverDir := t.TempDir()

	payload := []byte("archive-bytes")
	if err := os.WriteFile(filepath.Join(serverDir, "data.tar"), payload, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	sum := sha1.Sum(payload)
	sha1hex := hex.EncodeToString(sum[:])

	e2dir := filepath.Join(root, ".e2")
	if err := os.MkdirAll(e2dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(e2dir, "e2version"), []byte("master v1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile e2version: %v", err)
	}
	if err := os.WriteFile(filepath.Join(e2dir, "servers.yaml"), []byte(`
- name: origin
  url: "file://`+serverDir+`/%u"
  islocal: true
`), 0o644); err != nil {
		t.Fatalf("WriteFile servers.yaml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(e2dir, "sources.yaml"), []byte(`
- name: data
  type: files
  files:
    - server: origin
      location: data.tar
      sha1: "`+sha1hex+`"
`), 0o644); err != nil {
		t.Fatalf("WriteFile sources.yaml: %v", err)
	}

	var out bytes.Buffer
	cli.Root.SetOut(&out)
	cli.Root.SetErr(&out)
	cli.Root.SetArgs([]string{"fetch", "--project", root, "data"})
	if err := cli.Root.Execute(); err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(out.String()), "data") {
		t.Fatalf("fetch output = %q, want it to start with the source name", out.String())
	}
}

func TestFetchCommandRejectsUnknownSource(t *testing.T) {
	root := t.TempDir()
	e2dir := filepath.Join(root, ".e2")
	if err := os.MkdirAll(e2dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(e2dir, "e2version"), []byte("master v1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile e2version: %v", err)
	}

	var out bytes.Buffer
	cli.Root.SetOut(&out)
	cli.Root.SetErr(&out)
	cli.Root.SetArgs([]string{"fetch", "--project", root, "no-such-source"})
	if err := cli.Root.Execute(); err == nil {
		t.Fatal("fetch of an unknown source did not error")
	}
}
