package cache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/e2core/e2/transport"
)

func newTestCache(t *testing.T, srcDir string) *Cache {
	t.Helper()
	cacheDir := t.TempDir()
	servers := []ServerConfig{
		{Name: "origin", URL: "file://" + filepath.Join(srcDir, "%u"), Cachable: true, Cache: true},
	}
	c := New(cacheDir, servers, transport.Config{})
	if err := c.Init(); err != nil {
		t.Fatalf("Init() returned error: %v", err)
	}
	return c
}

// TestFetchFileConcurrentCallersGetIdenticalBytes is invariant 6: many
// concurrent FetchFile calls for the same (server, location) never
// corrupt the cache and every caller observes identical content.
func TestFetchFileConcurrentCallersGetIdenticalBytes(t *testing.T) {
	srcDir := t.TempDir()
	want := []byte("artifact contents for the concurrency test")
	if err := os.WriteFile(filepath.Join(srcDir, "pkg.tar"), want, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	c := newTestCache(t, srcDir)

	const n = 16
	var wg sync.WaitGroup
	paths := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = c.FetchFile("origin", "pkg.tar")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("FetchFile() goroutine %d returned error: %v", i, err)
		}
	}
	for i, p := range paths {
		got, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("reading result %d: %v", i, err)
		}
		if string(got) != string(want) {
			t.Fatalf("goroutine %d observed %q, want %q", i, got, want)
		}
	}
}

// TestFetchFileCachableSkipsRefetch confirms a cachable hit returns the
// cached path without contacting the source again: once the source file
// is removed, a second FetchFile for the same key still succeeds.
func TestFetchFileCachableSkipsRefetch(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "pkg.tar"), []byte("v1"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	c := newTestCache(t, srcDir)

	first, err := c.FetchFile("origin", "pkg.tar")
	if err != nil {
		t.Fatalf("first FetchFile() returned error: %v", err)
	}

	if err := os.Remove(filepath.Join(srcDir, "pkg.tar")); err != nil {
		t.Fatalf("removing fixture: %v", err)
	}

	second, err := c.FetchFile("origin", "pkg.tar")
	if err != nil {
		t.Fatalf("second FetchFile() returned error even though the cache is warm: %v", err)
	}
	if first != second {
		t.Fatalf("FetchFile() returned different paths for the same key: %s != %s", first, second)
	}
}

func TestFetchFileUnknownServer(t *testing.T) {
	c := newTestCache(t, t.TempDir())
	if _, err := c.FetchFile("nope", "x"); err == nil {
		t.Fatal("FetchFile() did not error for an unknown server")
	}
}

func TestSetWritebackQueuedBeforeInit(t *testing.T) {
	cacheDir := t.TempDir()
	servers := []ServerConfig{{Name: "origin", URL: "file:///%u", Writeback: false}}
	c := New(cacheDir, servers, transport.Config{})

	if err := c.SetWriteback("origin", true); err != nil {
		t.Fatalf("SetWriteback() before Init() returned error: %v", err)
	}
	if err := c.Init(); err != nil {
		t.Fatalf("Init() returned error: %v", err)
	}
	c.mu.Lock()
	wb := c.servers["origin"].Writeback
	c.mu.Unlock()
	if !wb {
		t.Fatal("a writeback toggle queued before Init() was not applied")
	}
}

func TestServersSorted(t *testing.T) {
	cacheDir := t.TempDir()
	servers := []ServerConfig{{Name: "zzz"}, {Name: "aaa"}, {Name: "mmm"}}
	c := New(cacheDir, servers, transport.Config{})
	got := c.Servers()
	want := []string{"aaa", "mmm", "zzz"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Servers() = %v, want %v", got, want)
		}
	}
}
