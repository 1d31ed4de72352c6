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

// SVN is the svn SCM plug-in.
type SVN struct {
	workRoot string
}

func (s *SVN) dir(src *project.Source) string {
	if src.Location != "" {
		return src.Location
	}
	return filepath.Join(s.workRoot, src.Name)
}

func (s *SVN) run(dir string, args ...string) (string, error) {
	cmd := executil.Command("svn", args...)
	cmd.Dir = dir
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("svn %v: %w: %s", args, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(out.String()), nil
}

// SourceID has no tag/branch duality: svn identity is the repository
// revision number at src.Location, hashed with the same schema shape as
// the git plug-in (name, type, envid, sorted licence ids, server,
// location, working-path, revision).
func (s *SVN) SourceID(src *project.Source, ss project.SourceSet, licenceIDs []string) (string, error) {
	if ss == project.SourceSetWorkingCopy {
		return project.WorkingCopySentinel, nil
	}
	dir := s.dir(src)
	rev := src.Revision
	if rev == "" {
		out, err := s.run(dir, "info", "--show-item", "revision")
		if err != nil {
			return "", errs.Wrap(errs.SCM, src.Name, err, "resolving revision")
		}
		rev = out
	}

	h := hash.New().
		AppendString(src.Name).
		AppendString(string(src.Type)).
		AppendString(envIDOf(src))
	for _, id := range licenceIDs {
		h.AppendString(id)
	}
	h.AppendString(src.Server).AppendString(src.SVNLocation).AppendString(dir).AppendString(rev)
	return h.Finish(), nil
}

func (s *SVN) Fetch(src *project.Source) error {
	dir := s.dir(src)
	if _, err := os.Stat(filepath.Join(dir, ".svn")); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return errs.Wrap(errs.IO, src.Name, err, "preparing working copy parent")
	}
	if _, err := s.run(filepath.Dir(dir), "checkout", src.SVNLocation, dir); err != nil {
		return errs.Wrap(errs.SCM, src.Name, err, "checking out")
	}
	return nil
}

func (s *SVN) Update(src *project.Source) error {
	if _, err := s.run(s.dir(src), "update"); err != nil {
		return errs.Wrap(errs.SCM, src.Name, err, "updating")
	}
	return nil
}

func (s *SVN) Prepare(src *project.Source, ss project.SourceSet, buildPath string) error {
	dir := s.dir(src)
	if err := os.MkdirAll(buildPath, 0o755); err != nil {
		return errs.Wrap(errs.IO, src.Name, err, "preparing build path")
	}
	if ss == project.SourceSetWorkingCopy {
		return copyTreeExcluding(dir, buildPath, ".svn")
	}
	if _, err := s.run(dir, "export", "--force", ".", buildPath); err != nil {
		return errs.Wrap(errs.SCM, src.Name, err, "exporting")
	}
	return nil
}

func copyTreeExcluding(src, dst, exclude string) error {
	cmd := executil.Command("sh", "-c",
		fmt.Sprintf("tar -C %s --exclude=%s -cf - . | tar -C %s -xf -", shQuote(src), shQuote(exclude), shQuote(dst)))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("copying working tree: %w: %s", err, stderr.String())
	}
	return nil
}

func (s *SVN) WorkingCopyAvailable(src *project.Source) (bool, error) {
	_, err := s.run("", "info", src.SVNLocation)
	return err == nil, nil
}

func (s *SVN) HasWorkingCopy(src *project.Source) (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir(src), ".svn"))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *SVN) CheckWorkingCopy(src *project.Source) error {
	out, err := s.run(s.dir(src), "info", "--show-item", "url")
	if err != nil {
		return errs.Wrap(errs.SCM, src.Name, err, "reading working copy url")
	}
	want := strings.TrimRight(src.SVNLocation, "/")
	got := strings.TrimRight(out, "/")
	if want != got {
		return errs.New(errs.SCM, src.Name, fmt.Sprintf("working copy url %q does not match declared location %q", got, want))
	}
	return nil
}

func (s *SVN) ToResult(src *project.Source, ss project.SourceSet, dir string) (string, error) {
	return fmt.Sprintf("svn:%s@%s -> %s", src.SVNLocation, src.Revision, dir), nil
}

func (s *SVN) Display(src *project.Source) string {
	return fmt.Sprintf("%s (svn %s)", src.Name, src.SVNLocation)
}
