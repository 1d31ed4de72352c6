// Package store is the content-addressed result store keyed by buildid:
// once a result has been built for a given buildid, its artifact is
// never rebuilt, only fetched. It is a thin layer over package cache's
// content-mirror, using a dedicated local "store" server entry the way
// coreos-assembler treats its SDK tarball cache as just another
// cache-backed artifact.
package store

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/e2core/e2/cache"
	"github.com/e2core/e2/errs"
)

// Store is the local, content-addressed result cache.
type Store struct {
	dir string
}

// New returns a Store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Init creates the store's root directory.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errs.Wrap(errs.IO, s.dir, err, "creating store directory")
	}
	return nil
}

// resultDir is the per-buildid artifact directory, results/<buildid>,
// the on-disk layout the spec describes: every artifact lives under its
// own buildid-named directory rather than as a single flat file.
func (s *Store) resultDir(buildID string) string {
	return filepath.Join(s.dir, "results", buildID)
}

func (s *Store) path(buildID string) string {
	return filepath.Join(s.resultDir(buildID), "payload")
}

// Contains reports whether buildID's artifact is already stored.
func (s *Store) Contains(buildID string) bool {
	_, err := os.Stat(s.path(buildID))
	return err == nil
}

// Get returns the local path to buildID's artifact. Callers must check
// Contains first; Get does not fetch from any remote cache server.
func (s *Store) Get(buildID string) (string, error) {
	p := s.path(buildID)
	if _, err := os.Stat(p); err != nil {
		return "", errs.New(errs.ReferenceNotFound, buildID, "not in store")
	}
	return p, nil
}

// Put atomically installs localPath as buildID's artifact under its
// results/<buildid> directory: it copies to a uniquely-named temp file
// alongside the final name, then renames over it, so concurrent readers
// never observe a partial artifact and concurrent Put calls for the
// same buildID never clobber each other's staging file.
func (s *Store) Put(buildID, localPath string) error {
	dst := s.path(buildID)
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	dir := s.resultDir(buildID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.IO, buildID, err, "creating result directory")
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return errs.Wrap(errs.IO, buildID, err, "reading build artifact")
	}
	tmp := dst + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrap(errs.IO, buildID, err, "writing store artifact")
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.IO, buildID, err, "installing store artifact")
	}
	return nil
}

// PushRemote pushes buildID's artifact to a remote cache server through
// c, honoring that server's writeback/push-permission policy.
func (s *Store) PushRemote(c *cache.Cache, buildID, server, location string) error {
	p, err := s.Get(buildID)
	if err != nil {
		return err
	}
	return c.PushFile(p, server, location)
}

// FetchRemote pulls buildID's artifact from a remote cache server into
// the store, for the "cache-miss-strict" policy where a local build is
// refused and only pre-built artifacts may be used.
func (s *Store) FetchRemote(c *cache.Cache, buildID, server, location string) error {
	if s.Contains(buildID) {
		return nil
	}
	path, err := c.FetchFile(server, location)
	if err != nil {
		return err
	}
	return s.Put(buildID, path)
}
