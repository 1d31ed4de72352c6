package cache

import (
	"fmt"
	"strings"

	"github.com/e2core/e2/errs"
)

// FormatServerLocation renders a (server, location) pair as the single
// "server:location" string used in config files and log lines.
func FormatServerLocation(server, location string) string {
	return server + ":" + location
}

// ParseServerLocation is the inverse of FormatServerLocation. It rejects
// a location that escapes the server's root via a ".." path segment or
// that starts with "/" (an absolute path where a relative one is
// required), so that
// ParseServerLocation(FormatServerLocation(server, location)) == (server, location)
// holds for every valid input.
func ParseServerLocation(s string) (server, location string, err error) {
	idx := strings.Index(s, ":")
	if idx < 0 {
		return "", "", errs.New(errs.Parse, s, "expected \"server:location\"")
	}
	server, location = s[:idx], s[idx+1:]
	if server == "" {
		return "", "", errs.New(errs.Parse, s, "empty server name")
	}
	if strings.HasPrefix(location, "/") {
		return "", "", errs.New(errs.Parse, s, "location must be relative, not absolute")
	}
	for _, seg := range strings.Split(location, "/") {
		if seg == ".." {
			return "", "", errs.New(errs.Parse, s, fmt.Sprintf("location %q escapes its server root", location))
		}
	}
	return server, location, nil
}
