// Package pipeline drives a project's results through the build state
// machine: new -> scheduled -> {skipped|prepared} -> built -> stored ->
// done, with failed terminal and dependency-failed propagating to every
// downstream result once an upstream one fails. Scheduling follows the
// dependency graph's topological order; independent results build
// concurrently through a bounded worker pool adapted from
// internal/worker (itself adapted from mantle's
// lang/worker.WorkerGroup).
package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/e2core/e2/cache"
	"github.com/e2core/e2/chroot"
	"github.com/e2core/e2/depgraph"
	"github.com/e2core/e2/errs"
	"github.com/e2core/e2/identity"
	"github.com/e2core/e2/internal/bashexec"
	"github.com/e2core/e2/internal/warnings"
	"github.com/e2core/e2/internal/worker"
	"github.com/e2core/e2/project"
	"github.com/e2core/e2/scm"
	"github.com/e2core/e2/store"
)

// State is a result's position in the build state machine.
type State string

const (
	StateNew              State = "new"
	StateScheduled        State = "scheduled"
	StateSkipped          State = "skipped"
	StatePrepared         State = "prepared"
	StateBuilt            State = "built"
	StateStored           State = "stored"
	StateDone             State = "done"
	StateFailed           State = "failed"
	StateDependencyFailed State = "dependency-failed"
)

// Status is the observable state of one result's pipeline run.
type Status struct {
	Result   string
	State    State
	BuildID  string
	Err      error
	Duration time.Duration
}

// Options configures a Run.
type Options struct {
	Project     *project.Project
	Cache       *cache.Cache
	SCM         *scm.Registry
	Store       *store.Store
	Chroot      *chroot.Manager
	WorkRoot    string // scratch dir for fetched/prepared source trees
	SourceSet   project.SourceSet
	Parallelism int
	Playground  bool // equivalent to --keep-chroot: never release chroots
	ReleaseMode bool // release guard: refuse working-copy builds, etc.
}

// Pipeline runs a build across a project's results.
type Pipeline struct {
	opts   Options
	ident  *identity.Engine
	graph  *depgraph.Graph
	mu     sync.Mutex
	status map[string]*Status
}

// New builds a Pipeline from opts.
func New(opts Options) *Pipeline {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	return &Pipeline{
		opts:   opts,
		ident:  identity.New(opts.Project, opts.SCM),
		graph:  depgraph.New(opts.Project),
		status: map[string]*Status{},
	}
}

func (p *Pipeline) setState(name string, s State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.status[name]
	if !ok {
		st = &Status{Result: name}
		p.status[name] = st
	}
	st.State = s
	st.Err = err
}

// Status returns a snapshot of every result's current state.
func (p *Pipeline) Status() map[string]Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]Status, len(p.status))
	for k, v := range p.status {
		out[k] = *v
	}
	return out
}

// Run builds every result named in targets (the full project if empty),
// in dependency order, stopping dependents of anything that fails.
//
// A single SIGINT lets in-flight workers finish their current result and
// then stops scheduling new ones; a second SIGINT aborts immediately.
func (p *Pipeline) Run(ctx context.Context, targets []string) error {
	if p.opts.ReleaseMode && p.opts.Project.Version.Tag == "^" {
		return errs.New(errs.Validation, p.opts.Project.Version.Branch, "release mode requires a real e2version tag, not the pseudo tag \"^\"")
	}

	closure, err := p.resolveOrder(targets)
	if err != nil {
		return err
	}

	hit, err := p.prepassStoreHits(closure)
	if err != nil {
		return err
	}
	order := p.pruneToRequired(closure, targets, hit)
	for _, name := range order {
		p.setState(name, StateNew, nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Warn("interrupt received, finishing in-flight builds")
			cancel()
		case <-ctx.Done():
			return
		}
		select {
		case <-sigCh:
			log.Warn("second interrupt received, aborting immediately")
			os.Exit(130)
		case <-ctx.Done():
		}
	}()

	// A result whose buildid already has a store hit skips straight
	// through, so it never needs its own dependencies finished first —
	// they were only needed to materialize an artifact this run won't
	// rebuild. Everything else waits on its real dependency set.
	depends := map[string][]string{}
	for _, name := range order {
		if hit[name] {
			depends[name] = nil
			continue
		}
		deps, err := p.graph.DList(name)
		if err != nil {
			return err
		}
		depends[name] = deps
	}

	// Each result gets a channel closed once it reaches a terminal state,
	// so downstream results can wait on exactly their own dependencies
	// instead of recomputing readiness over the whole graph.
	finished := make(map[string]chan struct{}, len(order))
	for _, name := range order {
		finished[name] = make(chan struct{})
	}

	var failedMu sync.Mutex
	failed := map[string]bool{}
	wg := worker.New(ctx, p.opts.Parallelism)
	var scheduling sync.WaitGroup

	for _, name := range order {
		name := name
		deps := depends[name]
		scheduling.Add(1)
		go func() {
			defer scheduling.Done()
			defer close(finished[name])
			for _, d := range deps {
				select {
				case <-finished[d]:
				case <-ctx.Done():
					p.setState(name, StateDependencyFailed, ctx.Err())
					failedMu.Lock()
					failed[name] = true
					failedMu.Unlock()
					return
				}
			}
			failedMu.Lock()
			depFailed := false
			for _, d := range deps {
				if failed[d] {
					depFailed = true
					break
				}
			}
			failedMu.Unlock()
			if depFailed {
				p.setState(name, StateDependencyFailed, fmt.Errorf("dependency of %s failed", name))
				failedMu.Lock()
				failed[name] = true
				failedMu.Unlock()
				return
			}

			done := make(chan struct{})
			if err := wg.Start(func(ctx context.Context) error {
				defer close(done)
				start := time.Now()
				st, err := p.buildOne(ctx, name)
				p.mu.Lock()
				if s, ok := p.status[name]; ok {
					s.Duration = time.Since(start)
					s.BuildID = st.BuildID
				}
				p.mu.Unlock()
				if err != nil {
					failedMu.Lock()
					failed[name] = true
					failedMu.Unlock()
				}
				return nil // errors are tracked per-result, not aggregated by the worker pool
			}); err != nil {
				p.setState(name, StateDependencyFailed, err)
				failedMu.Lock()
				failed[name] = true
				failedMu.Unlock()
				return
			}
			<-done
		}()
	}
	scheduling.Wait()
	wg.Wait()

	if len(failed) > 0 {
		return errs.New(errs.DependencyFailed, "", fmt.Sprintf("%d result(s) failed", len(failed)))
	}
	return nil
}

func (p *Pipeline) resolveOrder(targets []string) ([]string, error) {
	if len(targets) == 0 {
		return p.graph.DSort()
	}
	return p.graph.DListRecursive(targets)
}

// prepassStoreHits computes every result's buildid up front (buildid
// computation is a pure function of the project model and never
// requires building anything) and reports which ones already have a
// store hit. This is the pre-pass that lets a remote/local cache hit
// skip its whole dependency subtree cleanly instead of forcing it to
// build first.
func (p *Pipeline) prepassStoreHits(closure []string) (map[string]bool, error) {
	hit := make(map[string]bool, len(closure))
	for _, name := range closure {
		buildID, err := p.ident.BuildID(name, p.opts.SourceSet)
		if err != nil {
			return nil, err
		}
		if buildID != project.WorkingCopySentinel && p.opts.Store.Contains(buildID) {
			hit[name] = true
		}
	}
	return hit, nil
}

// pruneToRequired narrows closure down to the results this run actually
// needs to touch: every explicitly requested target (so it still
// reports a status, even when it's a hit) plus, for every result that
// is NOT a store hit, its direct dependencies, transitively. A result
// that is only reachable through a hit's dependency edge was needed
// solely to materialize an artifact this run won't rebuild, so it is
// dropped from the run entirely.
func (p *Pipeline) pruneToRequired(closure, targets []string, hit map[string]bool) []string {
	required := map[string]bool{}
	if len(targets) == 0 {
		for _, name := range closure {
			required[name] = true
		}
	} else {
		for _, name := range targets {
			required[name] = true
		}
	}

	// closure is topologically sorted (dependencies before dependents),
	// so walking it in reverse visits every dependent before the
	// dependencies it might newly require.
	for i := len(closure) - 1; i >= 0; i-- {
		name := closure[i]
		if !required[name] || hit[name] {
			continue
		}
		deps, err := p.graph.DList(name)
		if err != nil {
			continue // surfaced again, identically, when this result actually runs
		}
		for _, d := range deps {
			required[d] = true
		}
	}

	pruned := make([]string, 0, len(closure))
	for _, name := range closure {
		if required[name] {
			pruned = append(pruned, name)
		}
	}
	return pruned
}

// Playground runs name through fetch and prepare, provisions its chroot
// and overlays the build script, then stops without running the script
// or releasing the chroot, leaving it mounted for interactive inspection.
//
// The chroot is never released by the pipeline in this path; callers
// are responsible for eventually calling the returned cleanup.
func (p *Pipeline) Playground(name string) (dir string, cleanup func() error, err error) {
	res, ok := p.opts.Project.Results[name]
	if !ok {
		return "", nil, errs.New(errs.ReferenceNotFound, name, "no such result")
	}
	if p.opts.Chroot == nil {
		return "", nil, errs.New(errs.Validation, name, "playground mode requires a chroot manager")
	}

	p.setState(name, StateScheduled, nil)
	buildID, err := p.ident.BuildID(name, p.opts.SourceSet)
	if err != nil {
		p.setState(name, StateFailed, err)
		return "", nil, err
	}

	buildPath := filepath.Join(p.opts.WorkRoot, name, "build")
	if err := p.fetchAndPrepare(res, buildPath); err != nil {
		p.setState(name, StateFailed, err)
		return "", nil, err
	}

	groups := make([]*project.ChrootGroup, 0, len(res.ChrootGroups))
	for _, g := range res.ChrootGroups {
		grp, ok := p.opts.Project.ChrootGroups[g]
		if !ok {
			return "", nil, errs.New(errs.ReferenceNotFound, g, "no such chroot group")
		}
		groups = append(groups, grp)
	}

	h, err := p.opts.Chroot.Acquire(buildID)
	if err != nil {
		p.setState(name, StateFailed, err)
		return "", nil, errs.Wrap(errs.IO, name, err, "acquiring chroot")
	}
	if err := h.Extract(p.opts.Cache, groups); err != nil {
		h.Release()
		p.setState(name, StateFailed, err)
		return "", nil, err
	}
	if _, err := h.Overlay(buildPath, "build", res.Script); err != nil {
		h.Release()
		p.setState(name, StateFailed, err)
		return "", nil, err
	}

	p.setState(name, StatePrepared, nil)
	return h.Dir, h.Release, nil
}

// buildOne runs one result through fetch -> prepare -> build -> collect
// -> store.
func (p *Pipeline) buildOne(ctx context.Context, name string) (*Status, error) {
	p.setState(name, StateScheduled, nil)

	res, ok := p.opts.Project.Results[name]
	if !ok {
		err := errs.New(errs.ReferenceNotFound, name, "no such result")
		p.setState(name, StateFailed, err)
		return p.getStatus(name), err
	}

	buildID, err := p.ident.BuildID(name, p.opts.SourceSet)
	if err != nil {
		p.setState(name, StateFailed, err)
		return p.getStatus(name), err
	}
	p.mu.Lock()
	p.status[name].BuildID = buildID
	p.mu.Unlock()

	if buildID != project.WorkingCopySentinel && p.opts.Store.Contains(buildID) {
		p.setState(name, StateSkipped, nil)
		log.WithFields(log.Fields{"result": name, "buildid": buildID}).Info("already built, skipping")
		p.setState(name, StateDone, nil)
		return p.getStatus(name), nil
	}

	if buildID == project.WorkingCopySentinel {
		warnings.Warn(warnings.Default, log.Fields{"result": name}, "working-copy build is never cache-addressable and will always re-run")
	}

	if p.opts.ReleaseMode && buildID == project.WorkingCopySentinel {
		err := errs.New(errs.Validation, name, "release builds may not use the working-copy source set")
		p.setState(name, StateFailed, err)
		return p.getStatus(name), err
	}

	buildPath := filepath.Join(p.opts.WorkRoot, name, "build")
	if err := p.fetchAndPrepare(res, buildPath); err != nil {
		p.setState(name, StateFailed, err)
		return p.getStatus(name), err
	}
	p.setState(name, StatePrepared, nil)

	if err := p.runScript(ctx, name, res, buildID, buildPath); err != nil {
		p.setState(name, StateFailed, err)
		return p.getStatus(name), err
	}
	p.setState(name, StateBuilt, nil)

	if buildID != project.WorkingCopySentinel {
		artifact, err := p.collect(buildPath)
		if err != nil {
			p.setState(name, StateFailed, err)
			return p.getStatus(name), err
		}
		if err := p.opts.Store.Put(buildID, artifact); err != nil {
			p.setState(name, StateFailed, err)
			return p.getStatus(name), err
		}
		if err := p.pushToWritebackServers(buildID); err != nil {
			p.setState(name, StateFailed, err)
			return p.getStatus(name), err
		}
		p.setState(name, StateStored, nil)
	}

	p.setState(name, StateDone, nil)
	return p.getStatus(name), nil
}

func (p *Pipeline) getStatus(name string) *Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := *p.status[name]
	return &st
}

func (p *Pipeline) fetchAndPrepare(res *project.Result, buildPath string) error {
	for _, sname := range res.Sources {
		src, ok := p.opts.Project.Sources[sname]
		if !ok {
			return errs.New(errs.ReferenceNotFound, sname, "no such source")
		}
		plugin, err := p.opts.SCM.For(src.Type)
		if err != nil {
			return err
		}
		if err := plugin.Fetch(src); err != nil {
			return errs.Wrap(errs.SCM, sname, err, "fetching source")
		}
		resolved := project.ResolveSourceSet(p.opts.SourceSet, src.Tag)
		if err := plugin.Prepare(src, resolved, filepath.Join(buildPath, sname)); err != nil {
			return errs.Wrap(errs.SCM, sname, err, "preparing source")
		}
	}
	return nil
}

// runScript provisions a chroot (when the manager is configured) and
// runs the result's build script inside buildPath.
func (p *Pipeline) runScript(ctx context.Context, name string, res *project.Result, buildID, buildPath string) error {
	env := p.opts.Project.Env.Merge(res.Env, true)
	envList := make([]string, 0, env.Len())
	for _, k := range env.Keys() {
		v, _ := env.Get(k)
		envList = append(envList, k+"="+v)
	}

	if p.opts.Chroot == nil {
		r, err := bashexec.New(name, res.Script, buildPath, envList)
		if err != nil {
			return errs.Wrap(errs.IO, name, err, "preparing build script")
		}
		if err := r.Run(); err != nil {
			return errs.Wrap(errs.BuildScriptFailed, name, err, "running build script")
		}
		return nil
	}

	h, err := p.opts.Chroot.Acquire(buildID)
	if err != nil {
		return errs.Wrap(errs.IO, name, err, "acquiring chroot")
	}
	defer func() {
		if rerr := h.Release(); rerr != nil {
			log.WithError(rerr).WithField("result", name).Warn("releasing chroot")
		}
	}()

	groupNames := res.ChrootGroups
	groups := make([]*project.ChrootGroup, 0, len(groupNames))
	for _, g := range groupNames {
		grp, ok := p.opts.Project.ChrootGroups[g]
		if !ok {
			return errs.New(errs.ReferenceNotFound, g, "no such chroot group")
		}
		groups = append(groups, grp)
	}
	if err := h.Extract(p.opts.Cache, groups); err != nil {
		return err
	}
	scriptPath, err := h.Overlay(buildPath, "build", res.Script)
	if err != nil {
		return err
	}
	_ = scriptPath // invoked via chroot entry, relative to h.Dir/build

	r, err := bashexec.New(name, res.Script, filepath.Join(h.Dir, "build"), envList)
	if err != nil {
		return errs.Wrap(errs.IO, name, err, "preparing build script")
	}
	if err := r.Run(); err != nil {
		return errs.Wrap(errs.BuildScriptFailed, name, err, "running build script")
	}
	return nil
}

// pushToWritebackServers completes the built -> stored transition's
// upload half (spec's "upload performed via Cache for servers with
// writeback==true"): every configured server with writeback enabled
// receives a copy of buildID's artifact at results/<buildid>.
func (p *Pipeline) pushToWritebackServers(buildID string) error {
	for _, server := range p.opts.Cache.WritebackServers() {
		location := path.Join("results", buildID)
		if err := p.opts.Store.PushRemote(p.opts.Cache, buildID, server, location); err != nil {
			return errs.Wrap(errs.Transport, server, err, "writing back "+buildID)
		}
	}
	return nil
}

// collect locates the build result payload under buildPath. The build
// script is expected to leave its output at buildPath/result.
func (p *Pipeline) collect(buildPath string) (string, error) {
	out := filepath.Join(buildPath, "result")
	if _, err := os.Stat(out); err != nil {
		return "", errs.New(errs.BuildScriptFailed, buildPath, "build script did not produce ./result")
	}
	return out, nil
}
