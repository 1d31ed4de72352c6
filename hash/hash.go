// Package hash implements the content-hashing primitive that
// every sourceid/buildid/chrootgroupid/environmentid/licenceid is built
// from. It is deliberately one of the few places in this module that
// reaches for the standard library instead of a third-party dependency:
// SHA-1 over an explicit byte stream is a one-line `crypto/sha1` call in
// coreos-assembler too (gangplank/internal/spec/jobspec.go hashes sha256
// the same way, mantle/storage/object.go hashes crc32 the same way) —
// there is no third-party streaming-hash wrapper anywhere in the
// retrieved reference pack worth adopting here.
package hash

import (
	"crypto/sha1"
	"encoding/hex"
	"hash"
)

// Sink is a streaming hash accumulator: start, append any number of byte
// sequences, finish. Append never inserts a delimiter between arguments;
// callers hashing structured data must encode their own delimiters.
type Sink struct {
	h hash.Hash
}

// New starts a new Sink.
func New() *Sink {
	return &Sink{h: sha1.New()}
}

// Append feeds raw bytes into the sink. It never errors: sha1.Hash.Write
// never returns an error per the hash.Hash contract.
func (s *Sink) Append(b []byte) *Sink {
	s.h.Write(b)
	return s
}

// AppendString is a convenience wrapper around Append.
func (s *Sink) AppendString(v string) *Sink {
	return s.Append([]byte(v))
}

// Finish returns the lowercase-hex, forty-character digest.
func (s *Sink) Finish() string {
	return hex.EncodeToString(s.h.Sum(nil))
}

// Of is a convenience one-shot hash over a single ordered list of byte
// sequences, equivalent to New().Append(...).Finish().
func Of(parts ...[]byte) string {
	s := New()
	for _, p := range parts {
		s.Append(p)
	}
	return s.Finish()
}

// OfStrings is the string-argument form of Of.
func OfStrings(parts ...string) string {
	s := New()
	for _, p := range parts {
		s.AppendString(p)
	}
	return s.Finish()
}
