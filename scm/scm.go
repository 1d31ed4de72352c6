// Package scm implements a uniform source-control contract: every
// plug-in (git, svn, files) exposes the same capability set, dispatched
// by a tagged-variant registry rather than dynamic plug-in loading.
package scm

import (
	"github.com/e2core/e2/cache"
	"github.com/e2core/e2/project"
)

// Plugin is the capability set every SCM back-end implements.
type Plugin interface {
	// SourceID computes the sourceid for src under the given (already
	// resolved, non-lazytag) source set. licenceIDs is src.Licences
	// already resolved to licenceids and sorted by the caller.
	SourceID(src *project.Source, ss project.SourceSet, licenceIDs []string) (string, error)
	// Fetch retrieves/updates the local working copy for src.
	Fetch(src *project.Source) error
	// Update advances the local working copy.
	Update(src *project.Source) error
	// Prepare materializes src at the resolved source set into buildPath.
	Prepare(src *project.Source, ss project.SourceSet, buildPath string) error
	// WorkingCopyAvailable reports whether a working copy could be made
	// available (e.g. the remote is reachable), without requiring one
	// to already exist locally.
	WorkingCopyAvailable(src *project.Source) (bool, error)
	// HasWorkingCopy reports whether a local working copy already exists.
	HasWorkingCopy(src *project.Source) (bool, error)
	// CheckWorkingCopy verifies the local working copy matches src's
	// declared location.
	CheckWorkingCopy(src *project.Source) error
	// ToResult renders a human-readable description of src as resolved
	// into dir, for display/reporting.
	ToResult(src *project.Source, ss project.SourceSet, dir string) (string, error)
	// Display renders a one-line description of src.
	Display(src *project.Source) string
}

// Registry dispatches on project.SourceType through a fixed, compile-time
// table instead of dynamic plug-in loading.
type Registry struct {
	plugins map[project.SourceType]Plugin
}

// NewRegistry builds the standard git/svn/files registry.
func NewRegistry(c *cache.Cache, workRoot string) *Registry {
	return &Registry{
		plugins: map[project.SourceType]Plugin{
			project.SourceGit:   &Git{workRoot: workRoot},
			project.SourceSVN:   &SVN{workRoot: workRoot},
			project.SourceFiles: &Files{cache: c},
		},
	}
}

// For returns the plug-in registered for t.
func (r *Registry) For(t project.SourceType) (Plugin, error) {
	p, ok := r.plugins[t]
	if !ok {
		return nil, unknownTypeError(t)
	}
	return p, nil
}

// SourceID implements identity.SCM by dispatching to the source's
// registered plug-in — the polymorphic-dispatch half of the contract
// the identity engine needs.
func (r *Registry) SourceID(src *project.Source, ss project.SourceSet, licenceIDs []string) (string, error) {
	p, err := r.For(src.Type)
	if err != nil {
		return "", err
	}
	return p.SourceID(src, ss, licenceIDs)
}

type unknownTypeError project.SourceType

func (e unknownTypeError) Error() string {
	return "no SCM plug-in registered for source type " + string(e)
}
