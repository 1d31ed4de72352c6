// Package errs defines the error taxonomy used across the build engine.
// Every fallible operation returns a plain error; callers that need to
// switch on category use errors.As against the typed values here.
// Causes nest via %w so errors.Is/As and fmt.Errorf's chain both work, and
// Chain renders the chain innermost-first for the top-level driver.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Category names one error class in the taxonomy below.
type Category string

const (
	Validation         Category = "validation"
	ReferenceNotFound  Category = "reference-not-found"
	Parse              Category = "parse"
	IO                 Category = "io"
	Transport          Category = "transport"
	Auth               Category = "auth"
	SCM                Category = "scm"
	DependencyCycle    Category = "dependency-cycle"
	DependencyFailed   Category = "dependency-failed"
	BuildScriptFailed  Category = "build-script-failed"
	CacheMissStrict    Category = "cache-miss-strict"
	Interrupted        Category = "interrupted"
	InternalInvariant  Category = "internal-invariant"
)

// E is a categorized, nameable, wrappable error.
type E struct {
	Cat  Category
	Name string // offending entity name, if any
	Msg  string
	Err  error // nested cause, may be nil
}

func (e *E) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Cat))
	if e.Name != "" {
		b.WriteString(" ")
		b.WriteString(e.Name)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *E) Unwrap() error { return e.Err }

// New builds a categorized error with no nested cause.
func New(cat Category, name, msg string) error {
	return &E{Cat: cat, Name: name, Msg: msg}
}

// Wrap attaches a category and name to an existing error.
func Wrap(cat Category, name string, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &E{Cat: cat, Name: name, Msg: msg, Err: err}
}

// Is reports whether err (or any cause in its chain) carries the given category.
func Is(err error, cat Category) bool {
	var e *E
	for errors.As(err, &e) {
		if e.Cat == cat {
			return true
		}
		err = e.Err
		if err == nil {
			return false
		}
	}
	return false
}

// Chain renders the cause chain innermost-first, the format the top-level
// driver prints on failure.
func Chain(err error) string {
	var msgs []string
	for err != nil {
		var e *E
		if errors.As(err, &e) {
			msgs = append(msgs, fmt.Sprintf("%s: %s", e.Cat, e.Msg))
			err = e.Err
			continue
		}
		msgs = append(msgs, err.Error())
		break
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return strings.Join(msgs, "\ncaused by: ")
}
