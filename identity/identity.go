// Package identity computes the content-addressed ids of a project's
// entities: environmentid, licenceid, chrootgroupid, sourceid, resultid,
// buildid. Every id is defined by a canonical byte stream fed to package
// hash, in a fixed field order. Computation is memoized per (entity,
// sourceSet) pair; working-copy short-circuits to the WorkingCopySentinel
// and that sentinel propagates through resultid and buildid without
// re-hashing.
package identity

import (
	"fmt"
	"sort"
	"sync"

	"github.com/e2core/e2/errs"
	"github.com/e2core/e2/hash"
	"github.com/e2core/e2/project"
)

// SCM is the subset of the scm.Plugin contract (package scm) the
// identity engine needs to compute a sourceid. It is declared here,
// rather than imported from package scm, to keep identity free of a
// dependency on the SCM plug-in registry; package scm's dispatch table
// satisfies this interface.
type SCM interface {
	SourceID(src *project.Source, ss project.SourceSet, licenceIDs []string) (string, error)
}

// Engine memoizes id computation over a fixed project.
type Engine struct {
	p   *project.Project
	scm SCM

	mu        sync.Mutex
	envIDs    map[string]string
	licIDs    map[string]string
	groupIDs  map[string]string
	sourceIDs map[string]string // key: name + "\x00" + sourceSet
	resultIDs map[string]string
	buildIDs  map[string]string
}

// New builds an Engine over project p, delegating source identity to scm.
func New(p *project.Project, scm SCM) *Engine {
	return &Engine{
		p:         p,
		scm:       scm,
		envIDs:    map[string]string{},
		licIDs:    map[string]string{},
		groupIDs:  map[string]string{},
		sourceIDs: map[string]string{},
		resultIDs: map[string]string{},
		buildIDs:  map[string]string{},
	}
}

// EnvironmentID hashes sorted "k=v" lines. Order-independent:
// two environments with the same key/value pairs always hash equal.
func EnvironmentID(env *project.Environment) string {
	s := hash.New()
	for _, k := range env.Keys() {
		v, _ := env.Get(k)
		s.AppendString(fmt.Sprintf("%s=%s", k, v))
	}
	return s.Finish()
}

func (e *Engine) environmentID(env *project.Environment) string {
	// Environments aren't named entities, so memoize on their own id
	// computation is already O(keys); no cross-call cache needed here.
	return EnvironmentID(env)
}

// LicenceID hashes name, then the sha1 of each file reference's declared
// bytes, in order.
func (e *Engine) LicenceID(name string) (string, error) {
	e.mu.Lock()
	if id, ok := e.licIDs[name]; ok {
		e.mu.Unlock()
		return id, nil
	}
	e.mu.Unlock()

	lic, ok := e.p.Licences[name]
	if !ok {
		return "", errs.New(errs.ReferenceNotFound, name, "no such licence")
	}
	s := hash.New().AppendString(lic.Name)
	for _, f := range lic.Files {
		s.AppendString(f.SHA1)
	}
	id := s.Finish()

	e.mu.Lock()
	e.licIDs[name] = id
	e.mu.Unlock()
	return id, nil
}

// ChrootGroupID hashes name, then for each file reference in declared
// order: server, location, sha1, tartype.
func (e *Engine) ChrootGroupID(name string) (string, error) {
	e.mu.Lock()
	if id, ok := e.groupIDs[name]; ok {
		e.mu.Unlock()
		return id, nil
	}
	e.mu.Unlock()

	grp, ok := e.p.ChrootGroups[name]
	if !ok {
		return "", errs.New(errs.ReferenceNotFound, name, "no such chroot group")
	}
	s := hash.New().AppendString(grp.Name)
	for _, f := range grp.Files {
		s.AppendString(f.Server).AppendString(f.Location).AppendString(f.SHA1).AppendString(f.TarType)
	}
	id := s.Finish()

	e.mu.Lock()
	e.groupIDs[name] = id
	e.mu.Unlock()
	return id, nil
}

// SourceID delegates to the SCM plug-in registered for the source's
// type, short-circuiting to the working-copy
// sentinel, and memoizes per (name, sourceSet).
func (e *Engine) SourceID(name string, ss project.SourceSet) (string, error) {
	src, ok := e.p.Sources[name]
	if !ok {
		return "", errs.New(errs.ReferenceNotFound, name, "no such source")
	}
	resolved := project.ResolveSourceSet(ss, src.Tag)
	if resolved == project.SourceSetWorkingCopy {
		return project.WorkingCopySentinel, nil
	}

	key := name + "\x00" + string(resolved)
	e.mu.Lock()
	if id, ok := e.sourceIDs[key]; ok {
		e.mu.Unlock()
		return id, nil
	}
	e.mu.Unlock()

	licIDs := make([]string, 0, len(src.Licences))
	for _, l := range src.Licences {
		licID, err := e.LicenceID(l)
		if err != nil {
			return "", err
		}
		licIDs = append(licIDs, licID)
	}
	sort.Strings(licIDs)

	id, err := e.scm.SourceID(src, resolved, licIDs)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	e.sourceIDs[key] = id
	e.mu.Unlock()
	return id, nil
}

// ResultID hashes name, environmentid, sorted sourceids, sorted
// chrootgroupids, sorted licenceids, and the build-script content hash.
func (e *Engine) ResultID(name string, ss project.SourceSet) (string, error) {
	key := name + "\x00" + string(ss)
	e.mu.Lock()
	if id, ok := e.resultIDs[key]; ok {
		e.mu.Unlock()
		return id, nil
	}
	e.mu.Unlock()

	res, ok := e.p.Results[name]
	if !ok {
		return "", errs.New(errs.ReferenceNotFound, name, "no such result")
	}

	sourceIDs := make([]string, 0, len(res.Sources))
	wc := false
	for _, sname := range res.Sources {
		id, err := e.SourceID(sname, ss)
		if err != nil {
			return "", err
		}
		if id == project.WorkingCopySentinel {
			wc = true
		}
		sourceIDs = append(sourceIDs, id)
	}
	sort.Strings(sourceIDs)

	licSet := map[string]bool{}
	for _, sname := range res.Sources {
		for _, l := range e.p.Sources[sname].Licences {
			licSet[l] = true
		}
	}
	licIDs := make([]string, 0, len(licSet))
	for l := range licSet {
		id, err := e.LicenceID(l)
		if err != nil {
			return "", err
		}
		licIDs = append(licIDs, id)
	}
	sort.Strings(licIDs)

	groupIDs := make([]string, 0, len(res.ChrootGroups))
	for _, g := range res.ChrootGroups {
		id, err := e.ChrootGroupID(g)
		if err != nil {
			return "", err
		}
		groupIDs = append(groupIDs, id)
	}
	sort.Strings(groupIDs)

	env := e.p.Env.Merge(res.Env, true)
	envID := e.environmentID(env)
	scriptHash := hash.OfStrings(res.Script)

	s := hash.New().
		AppendString(name).
		AppendString(envID)
	for _, id := range sourceIDs {
		s.AppendString(id)
	}
	for _, id := range groupIDs {
		s.AppendString(id)
	}
	for _, id := range licIDs {
		s.AppendString(id)
	}
	s.AppendString(scriptHash)

	var id string
	if wc {
		id = project.WorkingCopySentinel
	} else {
		id = s.Finish()
	}

	e.mu.Lock()
	e.resultIDs[key] = id
	e.mu.Unlock()
	return id, nil
}

// BuildID hashes resultid, then the sorted buildids of direct
// dependencies. Any buildid whose transitive closure
// includes the working-copy sentinel is itself the sentinel: a working-copy build is never cache-addressable.
func (e *Engine) BuildID(name string, ss project.SourceSet) (string, error) {
	key := name + "\x00" + string(ss)
	e.mu.Lock()
	if id, ok := e.buildIDs[key]; ok {
		e.mu.Unlock()
		return id, nil
	}
	e.mu.Unlock()

	res, ok := e.p.Results[name]
	if !ok {
		return "", errs.New(errs.ReferenceNotFound, name, "no such result")
	}

	rid, err := e.ResultID(name, ss)
	if err != nil {
		return "", err
	}
	if rid == project.WorkingCopySentinel {
		e.mu.Lock()
		e.buildIDs[key] = project.WorkingCopySentinel
		e.mu.Unlock()
		return project.WorkingCopySentinel, nil
	}

	depIDs := make([]string, 0, len(res.Depends))
	for _, d := range res.Depends {
		id, err := e.BuildID(d, ss)
		if err != nil {
			return "", err
		}
		if id == project.WorkingCopySentinel {
			e.mu.Lock()
			e.buildIDs[key] = project.WorkingCopySentinel
			e.mu.Unlock()
			return project.WorkingCopySentinel, nil
		}
		depIDs = append(depIDs, id)
	}
	sort.Strings(depIDs)

	s := hash.New().AppendString(rid)
	for _, id := range depIDs {
		s.AppendString(id)
	}
	id := s.Finish()

	e.mu.Lock()
	e.buildIDs[key] = id
	e.mu.Unlock()
	return id, nil
}
