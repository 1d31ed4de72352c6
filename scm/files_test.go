package scm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/e2core/e2/cache"
	"github.com/e2core/e2/project"
	"github.com/e2core/e2/transport"
)

func newFilesPlugin(t *testing.T, servers []cache.ServerConfig) *Files {
	t.Helper()
	c := cache.New(t.TempDir(), servers, transport.Config{})
	if err := c.Init(); err != nil {
		t.Fatalf("cache Init(): %v", err)
	}
	return &Files{cache: c}
}

func TestFilesSourceIDHashesDeclaredOrder(t *testing.T) {
	mk := func(files []project.FileRef) *project.Source {
		return &project.Source{
			Name:  "data",
			Type:  project.SourceFiles,
			Env:   project.NewEnvironment(),
			Files: files,
		}
	}
	f1 := project.FileRef{Server: "origin", Location: "a.tar", SHA1: "aaa"}
	f2 := project.FileRef{Server: "origin", Location: "b.tar", SHA1: "bbb", Unpack: true}

	plug := &Files{}
	idForward, err := plug.SourceID(mk([]project.FileRef{f1, f2}), project.SourceSetBranch, nil)
	if err != nil {
		t.Fatalf("SourceID() returned error: %v", err)
	}
	idReversed, err := plug.SourceID(mk([]project.FileRef{f2, f1}), project.SourceSetBranch, nil)
	if err != nil {
		t.Fatalf("SourceID() returned error: %v", err)
	}
	if idForward == idReversed {
		t.Fatal("SourceID() ignored declared file order")
	}

	idRepeat, err := plug.SourceID(mk([]project.FileRef{f1, f2}), project.SourceSetBranch, nil)
	if err != nil {
		t.Fatalf("SourceID() returned error: %v", err)
	}
	if idForward != idRepeat {
		t.Fatal("SourceID() is not deterministic for identical input")
	}
}

func TestFilesSourceIDWorkingCopySentinel(t *testing.T) {
	plug := &Files{}
	src := &project.Source{Name: "data", Type: project.SourceFiles, Env: project.NewEnvironment()}
	id, err := plug.SourceID(src, project.SourceSetWorkingCopy, nil)
	if err != nil {
		t.Fatalf("SourceID() returned error: %v", err)
	}
	if id != project.WorkingCopySentinel {
		t.Fatalf("SourceID() under working-copy = %q, want sentinel", id)
	}
}

func TestFilesFetchRejectsSHA1Mismatch(t *testing.T) {
	serverDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(serverDir, "data.tar"), []byte("payload"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	plug := newFilesPlugin(t, []cache.ServerConfig{
		{Name: "origin", URL: "file://" + serverDir + "/%u", IsLocal: true},
	})

	src := &project.Source{
		Name: "data",
		Type: project.SourceFiles,
		Env:  project.NewEnvironment(),
		Files: []project.FileRef{
			{Server: "origin", Location: "data.tar", SHA1: "0000000000000000000000000000000000000"},
		},
	}
	if err := plug.Fetch(src); err == nil {
		t.Fatal("Fetch() did not reject a sha1 mismatch")
	}
}

func TestVerifySHA1(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// sha1("hello") = aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d
	const want = "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"
	if err := verifySHA1(path, want); err != nil {
		t.Fatalf("verifySHA1() returned error for a matching digest: %v", err)
	}
	if err := verifySHA1(path, "deadbeef"); err == nil {
		t.Fatal("verifySHA1() accepted a mismatching digest")
	}
}
