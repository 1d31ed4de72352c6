package errs

import (
	"fmt"
	"testing"
)

func TestIsMatchesCategory(t *testing.T) {
	err := New(SCM, "app", "tag-mismatch")
	if !Is(err, SCM) {
		t.Fatal("Is() did not match the error's own category")
	}
	if Is(err, Transport) {
		t.Fatal("Is() matched a category the error does not carry")
	}
}

func TestIsWalksWrapChain(t *testing.T) {
	inner := New(Transport, "origin", "connection refused")
	outer := Wrap(SCM, "app", inner, "fetching source")
	if !Is(outer, Transport) {
		t.Fatal("Is() did not find the inner category through the wrap chain")
	}
	if !Is(outer, SCM) {
		t.Fatal("Is() did not match the outer category")
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if Wrap(IO, "x", nil, "msg") != nil {
		t.Fatal("Wrap(nil) should return nil, not a non-nil error wrapping nothing")
	}
}

func TestChainInnermostFirst(t *testing.T) {
	root := fmt.Errorf("socket closed")
	mid := Wrap(Transport, "origin", root, "fetching pkg.tar")
	outer := Wrap(SCM, "app", mid, "preparing source")

	chain := Chain(outer)
	wantOrder := []string{"socket closed", "transport: fetching pkg.tar", "scm: preparing source"}
	lastIdx := -1
	for _, want := range wantOrder {
		idx := indexOf(chain, want)
		if idx < 0 {
			t.Fatalf("Chain() = %q, missing expected segment %q", chain, want)
		}
		if idx < lastIdx {
			t.Fatalf("Chain() = %q, segment %q appeared out of innermost-first order", chain, want)
		}
		lastIdx = idx
	}
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
