// Package warnings implements the independently-silenceable warning
// categories (WDEFAULT, WDEPRECATED, WOTHER, WPOLICY, WHINT): diagnostics
// that inform but never fail a build. Silencing a category only drops its
// log lines; it never changes a build's outcome.
package warnings

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Category names one of the independently toggleable warning classes.
type Category string

const (
	Default    Category = "WDEFAULT"
	Deprecated Category = "WDEPRECATED"
	Other      Category = "WOTHER"
	Policy     Category = "WPOLICY"
	Hint       Category = "WHINT"
)

var all = []Category{Default, Deprecated, Other, Policy, Hint}

// Parse maps a user-facing --warn/--no-warn argument to a Category.
func Parse(s string) (Category, error) {
	for _, c := range all {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown warning category %q", s)
}

var (
	mu       sync.RWMutex
	silenced = map[Category]bool{}
)

// Silence turns off logging for cat. Reversible by calling Unsilence.
func Silence(cat Category) {
	mu.Lock()
	defer mu.Unlock()
	silenced[cat] = true
}

// Unsilence re-enables logging for cat.
func Unsilence(cat Category) {
	mu.Lock()
	defer mu.Unlock()
	silenced[cat] = false
}

func isSilenced(cat Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return silenced[cat]
}

// Warn logs a category-tagged warning unless cat has been silenced. It
// never returns an error and never affects a build's outcome.
func Warn(cat Category, fields log.Fields, format string, args ...interface{}) {
	if isSilenced(cat) {
		return
	}
	e := log.WithField("warn_category", string(cat))
	if len(fields) > 0 {
		e = e.WithFields(fields)
	}
	e.Warnf(format, args...)
}
