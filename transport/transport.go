// Package transport implements uniform read/write/list operations over
// URL-addressed remote locations. Realizations are chosen by
// URL scheme: local filesystem copy for file://, a download client for
// http(s)://, an SSH session for ssh/scp/rsync+ssh, and a shelled-out
// rsync invocation for plain rsync://. git/git+ssh are URL-projection
// only — the SCM layer (package scm) consumes them directly and never
// asks Transport to fetch a git remote.
//
// All operations are synchronous; atomicity is achieved by writing to a
// temporary path and renaming into place only on success, the same
// pattern coreos-assembler's cmd/gangue uses around sdk.UpdateSignedFile.
package transport

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// URL is the parsed {scheme, host, path} triple every Transport operation
// addresses.
type URL struct {
	Scheme string
	Host   string
	Path   string
}

// Parse decodes a server location into a URL. It rejects locations that
// would escape the server's root (".." segments) or that use an
// absolute path where a relative one is required.
func Parse(raw string) (URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return URL{}, errors.Wrapf(err, "parsing transport url %q", raw)
	}
	if u.Scheme == "" {
		return URL{}, fmt.Errorf("transport url %q has no scheme", raw)
	}
	p := u.Path
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return URL{}, fmt.Errorf("transport url %q escapes its root", raw)
		}
	}
	return URL{Scheme: u.Scheme, Host: u.Host, Path: p}, nil
}

func (u URL) String() string {
	return fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, u.Path)
}

// RemoveTrailingSlashes is idempotent: applying it twice gives
// the same result as applying it once.
func RemoveTrailingSlashes(s string) string {
	return strings.TrimRight(s, "/")
}

// Kind classifies an error that a Transport operation can raise.
type Kind int

const (
	KindUnreachable Kind = iota
	KindUnauthorized
	KindNotFound
	KindIO
	KindUnsupportedScheme
	KindReadOnly
)

// Error is the typed error every Transport operation returns on failure.
type Error struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	var kind string
	switch e.Kind {
	case KindUnreachable:
		kind = "unreachable"
	case KindUnauthorized:
		kind = "unauthorized"
	case KindNotFound:
		kind = "not-found"
	case KindUnsupportedScheme:
		kind = "unsupported-scheme"
	case KindReadOnly:
		kind = "read-only transport"
	default:
		kind = "io"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", kind, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %s", kind, e.URL)
}

func (e *Error) Unwrap() error { return e.Err }

// Transport is the uniform interface every scheme realization implements.
type Transport interface {
	// Fetch copies the remote object at url into localPath.
	Fetch(u URL, localPath string) error
	// Push copies localPath to the remote object at url.
	Push(localPath string, u URL) error
	// Mkdir ensures the remote directory named by url exists.
	Mkdir(u URL) error
	// Exists reports whether the remote object named by url is present.
	Exists(u URL) (bool, error)
}

// ForScheme returns the Transport realization for a URL's scheme.
func ForScheme(scheme string, cfg Config) (Transport, error) {
	switch scheme {
	case "file":
		return fileTransport{}, nil
	case "http", "https":
		return httpTransport{client: cfg.httpClient()}, nil
	case "ssh", "scp":
		return sshTransport{cfg: cfg}, nil
	case "rsync+ssh":
		return rsyncTransport{cfg: cfg, overSSH: true}, nil
	case "rsync":
		return rsyncTransport{cfg: cfg}, nil
	default:
		return nil, &Error{Kind: KindUnsupportedScheme, URL: scheme}
	}
}

// Config bundles the knobs a Transport realization needs: an SSH identity
// for scp/ssh/rsync+ssh, and an http.Client override for tests.
type Config struct {
	SSHUser       string
	SSHKeyPath    string
	SSHKnownHosts string

	HTTPClient httpDoer
}

func (c Config) httpClient() httpDoer {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return defaultHTTPClient
}
