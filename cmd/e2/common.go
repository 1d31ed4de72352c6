// Package main is the e2 command-line entry point: cobra subcommands
// wired onto package cli's root, each assembling the project/cache/scm/
// identity stack the way gangplank/cmd/gangplank's main.go assembles its
// jobspec/pod stack before running a command body.
package main

import (
	"path/filepath"

	"github.com/e2core/e2/cache"
	"github.com/e2core/e2/chroot"
	"github.com/e2core/e2/identity"
	"github.com/e2core/e2/project"
	"github.com/e2core/e2/scm"
	"github.com/e2core/e2/store"
	"github.com/e2core/e2/transport"
)

// stack bundles the loaded project plus the engines every subcommand
// needs, assembled once per invocation.
type stack struct {
	proj  *project.Project
	cache *cache.Cache
	scm   *scm.Registry
	ident *identity.Engine
	store *store.Store
}

func buildStack(projectDir, cacheDir, storeDir string) (*stack, error) {
	proj, err := project.Load(projectDir)
	if err != nil {
		return nil, err
	}
	if err := project.Validate(proj); err != nil {
		return nil, err
	}

	if cacheDir == "" {
		cacheDir = filepath.Join(projectDir, ".e2", "cache")
	}
	if storeDir == "" {
		storeDir = filepath.Join(projectDir, ".e2", "store")
	}

	var servers []cache.ServerConfig
	for _, s := range proj.Servers {
		servers = append(servers, cache.ServerConfig{
			Name:            s.Name,
			URL:             s.URL,
			Cachable:        s.Cachable,
			Cache:           s.Cache,
			IsLocal:         s.IsLocal,
			Writeback:       s.Writeback,
			PushPermissions: s.PushPermissions,
		})
	}

	c := cache.New(cacheDir, servers, transport.Config{})
	if err := c.Init(); err != nil {
		return nil, err
	}

	st := store.New(storeDir)
	if err := st.Init(); err != nil {
		return nil, err
	}

	workRoot := filepath.Join(projectDir, ".e2", "work")
	registry := scm.NewRegistry(c, workRoot)
	ident := identity.New(proj, registry)

	return &stack{proj: proj, cache: c, scm: registry, ident: ident, store: st}, nil
}

func defaultChrootManager(projectDir string, keep bool) *chroot.Manager {
	return chroot.New(filepath.Join(projectDir, ".e2", "chroot"), keep)
}

func workRootFor(projectDir string) string {
	return filepath.Join(projectDir, ".e2", "work")
}

func mustAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
