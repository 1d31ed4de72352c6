// Package cache implements the content-mirror over a local directory:
// per-server fetch/push policy, a single in-flight fetch per (server,
// location), and a writeback toggle that can be queued before the cache
// finishes initializing.
//
// The per-key coalescing is adapted from golang-dep's
// gps.sourceCoordinator: a goroutine discovers it is the first to ask
// for a key, does the work, and fans the result out to every other
// caller that asked for the same key while the first was in flight.
package cache

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/e2core/e2/errs"
	"github.com/e2core/e2/transport"
)

// ServerConfig describes one configured cache server.
type ServerConfig struct {
	Name            string
	URL             string // e.g. "file:///srv/cache/%u"
	Cachable        bool
	Cache           bool
	IsLocal         bool
	Writeback       bool
	PushPermissions string
}

// Cache is the content-mirror keyed by (server, location).
type Cache struct {
	dir     string
	servers map[string]ServerConfig
	trCfg   transport.Config

	mu          sync.Mutex
	keyLocks    map[string]*sync.Mutex
	initialized bool
	queuedWB    map[string]bool
}

// New creates a Cache rooted at dir for the given server set. Writeback
// requests issued before Init() completes are queued.
func New(dir string, servers []ServerConfig, trCfg transport.Config) *Cache {
	c := &Cache{
		dir:      dir,
		servers:  make(map[string]ServerConfig, len(servers)),
		trCfg:    trCfg,
		keyLocks: make(map[string]*sync.Mutex),
		queuedWB: make(map[string]bool),
	}
	for _, s := range servers {
		c.servers[s.Name] = s
	}
	return c
}

// Init finishes setting up the cache directory and applies any writeback
// toggles that were queued before initialization.
func (c *Cache) Init() error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return errs.Wrap(errs.IO, c.dir, err, "creating cache directory")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, wb := range c.queuedWB {
		s := c.servers[name]
		s.Writeback = wb
		c.servers[name] = s
	}
	c.queuedWB = map[string]bool{}
	c.initialized = true
	return nil
}

// Servers returns the configured server names in sorted order.
func (c *Cache) Servers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.servers))
	for n := range c.servers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WritebackServers returns, in sorted order, the names of every
// configured server whose writeback policy is currently enabled.
func (c *Cache) WritebackServers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var names []string
	for n, sc := range c.servers {
		if sc.Writeback {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

func cacheKey(server, location string) string {
	return server + "\x00" + location
}

func (c *Cache) lockFor(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		c.keyLocks[key] = l
	}
	return l
}

func (c *Cache) cachePath(server, location string) string {
	return filepath.Join(c.dir, server, location)
}

// RemoteURL expands a server's URL template against location, .
func (c *Cache) RemoteURL(server, location string) (transport.URL, error) {
	c.mu.Lock()
	sc, ok := c.servers[server]
	c.mu.Unlock()
	if !ok {
		return transport.URL{}, errs.New(errs.ReferenceNotFound, server, "unknown server")
	}
	raw := strings.Replace(sc.URL, "%u", location, 1)
	return transport.Parse(raw)
}

// FetchFile guarantees a single in-flight fetch per (server, location):
// concurrent callers for the same key block on the same mutex and all
// observe the winner's result.
func (c *Cache) FetchFile(server, location string) (string, error) {
	c.mu.Lock()
	sc, ok := c.servers[server]
	c.mu.Unlock()
	if !ok {
		return "", errs.New(errs.ReferenceNotFound, server, "unknown server")
	}

	u, err := c.RemoteURL(server, location)
	if err != nil {
		return "", err
	}

	if sc.IsLocal {
		return u.Path, nil
	}

	dest := c.cachePath(server, location)
	key := cacheKey(server, location)
	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	if sc.Cachable {
		if _, err := os.Stat(dest); err == nil {
			return dest, nil
		}
	}

	tr, err := transport.ForScheme(u.Scheme, c.trCfg)
	if err != nil {
		return "", errs.Wrap(errs.Transport, server, err, "selecting transport")
	}
	log.WithFields(log.Fields{"server": server, "location": location}).Debug("cache miss, fetching")
	if err := tr.Fetch(u, dest); err != nil {
		return "", errs.Wrap(errs.Transport, server, err, "fetching "+location)
	}
	return dest, nil
}

// PushFile writes localPath into the local cache mirror and, when the
// server's writeback policy is enabled, writes through to the remote via
// Transport.
func (c *Cache) PushFile(localPath, server, location string) error {
	c.mu.Lock()
	sc, ok := c.servers[server]
	c.mu.Unlock()
	if !ok {
		return errs.New(errs.ReferenceNotFound, server, "unknown server")
	}

	key := cacheKey(server, location)
	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	if sc.Cache {
		dest := c.cachePath(server, location)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return errs.Wrap(errs.IO, server, err, "preparing local cache")
		}
		if err := copyLocal(localPath, dest); err != nil {
			return errs.Wrap(errs.IO, server, err, "writing local cache")
		}
	}

	if !sc.Writeback {
		return nil
	}
	if sc.PushPermissions == "none" {
		return errs.New(errs.Auth, server, "push not permitted by server policy")
	}

	u, err := c.RemoteURL(server, location)
	if err != nil {
		return err
	}
	tr, err := transport.ForScheme(u.Scheme, c.trCfg)
	if err != nil {
		return errs.Wrap(errs.Transport, server, err, "selecting transport")
	}
	if err := tr.Push(localPath, u); err != nil {
		return errs.Wrap(errs.Transport, server, err, "pushing "+location)
	}
	return nil
}

// SetWriteback toggles writeback for a server at runtime. Before Init()
// the request is queued.
func (c *Cache) SetWriteback(server string, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.servers[server]; !ok {
		return errs.New(errs.ReferenceNotFound, server, "unknown server")
	}
	if !c.initialized {
		c.queuedWB[server] = enabled
		return nil
	}
	sc := c.servers[server]
	sc.Writeback = enabled
	c.servers[server] = sc
	return nil
}

func copyLocal(src, dst string) error {
	if src == dst {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}
