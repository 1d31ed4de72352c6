package hash

import "testing"

func TestFinishIsLowercaseHex40(t *testing.T) {
	got := New().AppendString("abc").Finish()
	if len(got) != 40 {
		t.Fatalf("Finish() returned %d chars, want 40: %q", len(got), got)
	}
	for _, r := range got {
		if !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'f') {
			t.Fatalf("Finish() contains non-lowercase-hex rune %q in %q", r, got)
		}
	}
}

func TestAppendHasNoImplicitDelimiter(t *testing.T) {
	a := OfStrings("ab", "c")
	b := OfStrings("a", "bc")
	if a != b {
		t.Fatalf("Append inserted an implicit delimiter: Of(ab,c)=%s Of(a,bc)=%s", a, b)
	}
}

func TestDeterministic(t *testing.T) {
	a := OfStrings("x", "y", "z")
	b := OfStrings("x", "y", "z")
	if a != b {
		t.Fatalf("hashing the same inputs twice gave different digests: %s != %s", a, b)
	}
}

func TestOfStringsMatchesSHA1(t *testing.T) {
	// "abc" SHA-1 is a well known test vector.
	got := OfStrings("abc")
	want := "a9993e364706816aba3e25717850c26c9cd0d89"
	if got != want {
		t.Fatalf("OfStrings(\"abc\") = %s, want %s", got, want)
	}
}
