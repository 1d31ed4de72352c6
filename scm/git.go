package scm

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/e2core/e2/errs"
	"github.com/e2core/e2/hash"
	"github.com/e2core/e2/internal/executil"
	"github.com/e2core/e2/project"
)

// Git is the git SCM plug-in.
type Git struct {
	workRoot string
}

func (g *Git) dir(src *project.Source) string {
	if src.Location != "" {
		return src.Location
	}
	return filepath.Join(g.workRoot, src.Name)
}

func (g *Git) run(dir string, args ...string) (string, error) {
	cmd := executil.Command("git", args...)
	cmd.Dir = dir
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %v: %w: %s", args, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(out.String()), nil
}

// commitForRef resolves an explicit ref (never symbolic HEAD, since
// identity work must never depend on which ref happens to be checked
// out) to its 40-char commit id.
func (g *Git) commitForRef(dir, ref string) (string, error) {
	return g.run(dir, "rev-parse", ref)
}

// checkRemoteTag verifies that the local and remote tag resolve to the
// same commit.
func (g *Git) checkRemoteTag(src *project.Source, dir, tag, localCommit string) error {
	out, err := g.run(dir, "ls-remote", "--tags", "origin", "refs/tags/"+tag)
	if err != nil {
		return errs.Wrap(errs.SCM, src.Name, err, "listing remote tags")
	}
	// ls-remote output is structured: "<id>\s+<ref>" pairs.
	var remoteCommit string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == "refs/tags/"+tag {
			remoteCommit = fields[0]
			break
		}
	}
	if remoteCommit == "" {
		return errs.New(errs.SCM, src.Name, "remote tag not found")
	}
	if remoteCommit != localCommit {
		return errs.New(errs.SCM, src.Name, fmt.Sprintf("tag-mismatch: local %s != remote %s", localCommit, remoteCommit))
	}
	return nil
}

// checkRemoteEnabled controls whether SourceID verifies the local tag
// against the remote. Plumbed via source env so the project model stays
// the single source of truth for per-source policy.
func checkRemoteEnabled(src *project.Source) bool {
	v, ok := src.Env.Get("e2.git.check_remote")
	return ok && v == "true"
}

// SourceID requires a local working copy; it looks up the 40-char commit
// id under refs/tags/<tag> or refs/heads/<branch>. The final
// sourceid hashes, in order: name, type, environmentid, sorted licence
// ids, server, location, working-path, commit id.
func (g *Git) SourceID(src *project.Source, ss project.SourceSet, licenceIDs []string) (string, error) {
	if ss == project.SourceSetWorkingCopy {
		return project.WorkingCopySentinel, nil
	}

	dir := g.dir(src)
	var ref, commit string
	var err error
	switch ss {
	case project.SourceSetTag:
		ref = "refs/tags/" + src.Tag
		commit, err = g.commitForRef(dir, ref)
		if err != nil {
			return "", errs.Wrap(errs.SCM, src.Name, err, "resolving tag "+src.Tag)
		}
		if checkRemoteEnabled(src) {
			if err := g.checkRemoteTag(src, dir, src.Tag, commit); err != nil {
				return "", err
			}
		}
	case project.SourceSetBranch:
		ref = "refs/heads/" + src.Branch
		commit, err = g.commitForRef(dir, ref)
		if err != nil {
			return "", errs.Wrap(errs.SCM, src.Name, err, "resolving branch "+src.Branch)
		}
	default:
		return "", errs.New(errs.Validation, src.Name, fmt.Sprintf("unsupported source set %q for git", ss))
	}

	s := hash.New().
		AppendString(src.Name).
		AppendString(string(src.Type))
	// environmentid is appended by the identity engine's caller in the
	// general case, but the git schema embeds it directly in the
	// sourceid computation, so Source carries its own env here.
	s.AppendString(envIDOf(src))
	for _, id := range licenceIDs {
		s.AppendString(id)
	}
	s.AppendString(src.Server).
		AppendString(src.GitLocation).
		AppendString(dir).
		AppendString(commit)

	return s.Finish(), nil
}

func envIDOf(src *project.Source) string {
	s := hash.New()
	for _, k := range src.Env.Keys() {
		v, _ := src.Env.Get(k)
		s.AppendString(k + "=" + v)
	}
	return s.Finish()
}

// Fetch clones src's remote into the working-copy directory if absent.
func (g *Git) Fetch(src *project.Source) error {
	dir := g.dir(src)
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return errs.Wrap(errs.IO, src.Name, err, "preparing working copy parent")
	}
	if _, err := g.run(filepath.Dir(dir), "clone", src.GitLocation, dir); err != nil {
		return errs.Wrap(errs.SCM, src.Name, err, "cloning")
	}
	return nil
}

// Update fetches and fast-forward-merges the configured upstream of the
// current branch. On detached HEAD or branch mismatch it warns and skips
// rather than failing the build. It issues exactly one
// `git fetch --tags <remote>` call per invocation.
func (g *Git) Update(src *project.Source) error {
	dir := g.dir(src)

	branchOut, err := g.run(dir, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil || branchOut == "" {
		// detached HEAD: warn and skip.
		return nil
	}

	remote, err := g.run(dir, "config", "branch."+branchOut+".remote")
	if err != nil || remote == "" {
		// no remote configured for this branch: warn and skip.
		return nil
	}

	if _, err := g.run(dir, "fetch", "--tags", remote); err != nil {
		return errs.Wrap(errs.SCM, src.Name, err, "fetching")
	}
	if _, err := g.run(dir, "merge", "--ff-only", remote+"/"+branchOut); err != nil {
		return errs.Wrap(errs.SCM, src.Name, err, "fast-forward merge")
	}
	return nil
}

// Prepare materializes src at the resolved ref into buildPath. Under
// tag/branch it archives from the local working copy; under working-copy
// it copies the work tree excluding .git.
func (g *Git) Prepare(src *project.Source, ss project.SourceSet, buildPath string) error {
	dir := g.dir(src)
	if err := os.MkdirAll(buildPath, 0o755); err != nil {
		return errs.Wrap(errs.IO, src.Name, err, "preparing build path")
	}

	if ss == project.SourceSetWorkingCopy {
		return copyTreeExcludingGit(dir, buildPath)
	}

	var ref string
	switch ss {
	case project.SourceSetTag:
		ref = "refs/tags/" + src.Tag
	case project.SourceSetBranch:
		ref = "refs/heads/" + src.Branch
	default:
		return errs.New(errs.Validation, src.Name, fmt.Sprintf("unsupported source set %q for git", ss))
	}

	cmd := executil.Command("sh", "-c",
		fmt.Sprintf("git archive %s | tar -x -C %s", shQuote(ref), shQuote(buildPath)))
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errs.Wrap(errs.SCM, src.Name, fmt.Errorf("%w: %s", err, stderr.String()), "archiving "+ref)
	}
	return nil
}

func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func copyTreeExcludingGit(src, dst string) error {
	cmd := executil.Command("sh", "-c",
		fmt.Sprintf("tar -C %s --exclude=.git -cf - . | tar -C %s -xf -", shQuote(src), shQuote(dst)))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("copying working tree: %w: %s", err, stderr.String())
	}
	return nil
}

// WorkingCopyAvailable reports whether the remote can be reached.
func (g *Git) WorkingCopyAvailable(src *project.Source) (bool, error) {
	_, err := g.run(g.dir(src), "ls-remote", "--exit-code", src.GitLocation)
	return err == nil, nil
}

// HasWorkingCopy reports whether a local clone already exists.
func (g *Git) HasWorkingCopy(src *project.Source) (bool, error) {
	_, err := os.Stat(filepath.Join(g.dir(src), ".git"))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// CheckWorkingCopy verifies: branch exists; branch.<b>.remote == "origin";
// remote.origin.url equals the canonical URL derived from server:location
// (trailing slashes normalized away).
func (g *Git) CheckWorkingCopy(src *project.Source) error {
	dir := g.dir(src)
	branchOut, err := g.run(dir, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil || branchOut == "" {
		return errs.New(errs.SCM, src.Name, "detached-head")
	}
	remote, err := g.run(dir, "config", "branch."+branchOut+".remote")
	if err != nil || remote != "origin" {
		return errs.New(errs.SCM, src.Name, "no remote configured")
	}
	originURL, err := g.run(dir, "config", "remote.origin.url")
	if err != nil {
		return errs.New(errs.SCM, src.Name, "no remote configured")
	}
	want := strings.TrimRight(src.GitLocation, "/")
	got := strings.TrimRight(originURL, "/")
	if want != got {
		return errs.New(errs.SCM, src.Name, fmt.Sprintf("working copy remote %q does not match declared location %q", got, want))
	}
	return nil
}

// ToResult renders the resolved ref and directory for display/reporting.
func (g *Git) ToResult(src *project.Source, ss project.SourceSet, dir string) (string, error) {
	return fmt.Sprintf("git:%s@%s -> %s", src.GitLocation, displayRef(src, ss), dir), nil
}

func displayRef(src *project.Source, ss project.SourceSet) string {
	switch ss {
	case project.SourceSetTag:
		return "tag:" + src.Tag
	case project.SourceSetBranch:
		return "branch:" + src.Branch
	case project.SourceSetWorkingCopy:
		return "working-copy"
	default:
		return string(ss)
	}
}

// Display renders a one-line description of src.
func (g *Git) Display(src *project.Source) string {
	return fmt.Sprintf("%s (git %s, branch=%s tag=%s)", src.Name, src.GitLocation, src.Branch, src.Tag)
}

// mapGitURL projects ssh/scp/rsync+ssh URLs onto git+ssh, file:// onto a
// bare path, and passes http(s)/git:// through unchanged.
func mapGitURL(raw string) string {
	switch {
	case strings.HasPrefix(raw, "ssh://"), strings.HasPrefix(raw, "scp://"), strings.HasPrefix(raw, "rsync+ssh://"):
		if idx := strings.Index(raw, "://"); idx >= 0 {
			return "git+ssh://" + raw[idx+3:]
		}
	case strings.HasPrefix(raw, "file://"):
		return strings.TrimPrefix(raw, "file://")
	}
	return raw
}
