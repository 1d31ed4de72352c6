package chroot

import (
	"os"
	"testing"
)

// TestAcquireIsExclusive is invariant 7: two concurrent acquisitions of
// the same chroot directory — one succeeds, the other observes busy,
// and the directory is left in a consistent (non-corrupted) state.
func TestAcquireIsExclusive(t *testing.T) {
	m := New(t.TempDir(), false)

	h1, err := m.Acquire("buildid-1")
	if err != nil {
		t.Fatalf("first Acquire() returned error: %v", err)
	}
	defer h1.Release()

	if _, err := m.Acquire("buildid-1"); err == nil {
		t.Fatal("second Acquire() of the same buildid did not fail")
	}
}

func TestAcquireReleaseThenReacquire(t *testing.T) {
	m := New(t.TempDir(), false)

	h1, err := m.Acquire("buildid-1")
	if err != nil {
		t.Fatalf("Acquire() returned error: %v", err)
	}
	if err := h1.Release(); err != nil {
		t.Fatalf("Release() returned error: %v", err)
	}

	h2, err := m.Acquire("buildid-1")
	if err != nil {
		t.Fatalf("re-Acquire() after Release() returned error: %v", err)
	}
	h2.Release()
}

func TestAcquireDifferentBuildIDsDoNotConflict(t *testing.T) {
	m := New(t.TempDir(), false)

	h1, err := m.Acquire("a")
	if err != nil {
		t.Fatalf("Acquire(a) returned error: %v", err)
	}
	defer h1.Release()

	h2, err := m.Acquire("b")
	if err != nil {
		t.Fatalf("Acquire(b) returned error: %v", err)
	}
	defer h2.Release()

	if h1.Dir == h2.Dir {
		t.Fatalf("distinct buildids were assigned the same chroot directory: %s", h1.Dir)
	}
}

func TestReleaseKeepsChrootWhenConfigured(t *testing.T) {
	m := New(t.TempDir(), true)
	h, err := m.Acquire("buildid-1")
	if err != nil {
		t.Fatalf("Acquire() returned error: %v", err)
	}
	dir := h.Dir
	if err := h.Release(); err != nil {
		t.Fatalf("Release() returned error: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("keep-chroot Release() removed the chroot directory: %v", err)
	}
	// The lock itself is always released (keep-chroot only skips tearing
	// down the directory contents), so a later build may reclaim it.
	h2, err := m.Acquire("buildid-1")
	if err != nil {
		t.Fatalf("re-Acquire() after a keep-chroot Release() returned error: %v", err)
	}
	h2.Release()
}
