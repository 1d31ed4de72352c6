package scm

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/e2core/e2/cache"
	"github.com/e2core/e2/errs"
	"github.com/e2core/e2/hash"
	"github.com/e2core/e2/project"
)

// Files is the files SCM plug-in: a source
// that is simply a declared list of downloadable archives/patches,
// fetched through the shared Cache rather than any version-control tool.
type Files struct {
	cache *cache.Cache
}

// SourceID hashes: name, type, envid, sorted licence ids, and for each
// listed file in declared order: server, location, sha1, unpack/patch
// flags.
func (f *Files) SourceID(src *project.Source, ss project.SourceSet, licenceIDs []string) (string, error) {
	if ss == project.SourceSetWorkingCopy {
		return project.WorkingCopySentinel, nil
	}

	s := hash.New().
		AppendString(src.Name).
		AppendString(string(src.Type)).
		AppendString(envIDOf(src))
	for _, id := range licenceIDs {
		s.AppendString(id)
	}
	for _, file := range src.Files {
		s.AppendString(file.Server).
			AppendString(file.Location).
			AppendString(file.SHA1)
		if file.Unpack {
			s.AppendString("unpack")
		}
		if file.Patch {
			s.AppendString("patch")
		}
	}
	return s.Finish(), nil
}

// Fetch downloads each file via Cache and verifies the declared sha1.
func (f *Files) Fetch(src *project.Source) error {
	for _, file := range src.Files {
		path, err := f.cache.FetchFile(file.Server, file.Location)
		if err != nil {
			return errs.Wrap(errs.Transport, src.Name, err, "fetching "+file.Location)
		}
		if err := verifySHA1(path, file.SHA1); err != nil {
			return errs.Wrap(errs.SCM, src.Name, err, "verifying "+file.Location)
		}
	}
	return nil
}

func verifySHA1(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return fmt.Errorf("sha1 mismatch: want %s, got %s", want, got)
	}
	return nil
}

// Update is a no-op: a files source has no upstream to advance beyond
// re-fetching its declared revisions.
func (f *Files) Update(src *project.Source) error { return nil }

// Prepare unpacks (or copies) each declared file into buildPath in
// declared order, applying patches marked Patch after the unpackable
// archives have landed.
func (f *Files) Prepare(src *project.Source, ss project.SourceSet, buildPath string) error {
	if err := os.MkdirAll(buildPath, 0o755); err != nil {
		return errs.Wrap(errs.IO, src.Name, err, "preparing build path")
	}
	for _, file := range src.Files {
		path, err := f.cache.FetchFile(file.Server, file.Location)
		if err != nil {
			return errs.Wrap(errs.Transport, src.Name, err, "fetching "+file.Location)
		}
		switch {
		case file.Patch:
			if err := applyPatch(path, buildPath); err != nil {
				return errs.Wrap(errs.IO, src.Name, err, "applying patch "+file.Location)
			}
		case file.Unpack:
			if err := unpackArchive(path, buildPath, file.TarType); err != nil {
				return errs.Wrap(errs.IO, src.Name, err, "unpacking "+file.Location)
			}
		default:
			dst := filepath.Join(buildPath, filepath.Base(file.Location))
			if err := copyPlain(path, dst); err != nil {
				return errs.Wrap(errs.IO, src.Name, err, "copying "+file.Location)
			}
		}
	}
	return nil
}

func applyPatch(patchFile, dir string) error {
	f, err := os.Open(patchFile)
	if err != nil {
		return err
	}
	defer f.Close()
	cmd := exec.Command("patch", "-p1", "-d", dir)
	cmd.Stdin = f
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, stderr.String())
	}
	return nil
}

func unpackArchive(archive, dir, tarType string) error {
	flag := "-xf"
	if tarType == "tar.bz2" {
		flag = "-xjf"
	} else if tarType == "tar.gz" || tarType == "tgz" {
		flag = "-xzf"
	}
	cmd := exec.Command("tar", flag, archive, "-C", dir)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, stderr.String())
	}
	return nil
}

func copyPlain(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// WorkingCopyAvailable reports whether every declared file's server is
// reachable enough to resolve a remote URL; the actual reachability is
// only known once Fetch is attempted (files sources have no persistent
// local checkout to validate ahead of time).
func (f *Files) WorkingCopyAvailable(src *project.Source) (bool, error) {
	for _, file := range src.Files {
		if _, err := f.cache.RemoteURL(file.Server, file.Location); err != nil {
			return false, err
		}
	}
	return true, nil
}

// HasWorkingCopy reports whether every declared file is already present
// in the local cache mirror.
func (f *Files) HasWorkingCopy(src *project.Source) (bool, error) {
	for _, file := range src.Files {
		path, err := f.cache.FetchFile(file.Server, file.Location)
		if err != nil {
			return false, nil
		}
		if _, err := os.Stat(path); err != nil {
			return false, nil
		}
	}
	return true, nil
}

// CheckWorkingCopy verifies every declared file's sha1 still matches
// what's in the local cache mirror.
func (f *Files) CheckWorkingCopy(src *project.Source) error {
	for _, file := range src.Files {
		path, err := f.cache.FetchFile(file.Server, file.Location)
		if err != nil {
			return errs.Wrap(errs.Transport, src.Name, err, "fetching "+file.Location)
		}
		if err := verifySHA1(path, file.SHA1); err != nil {
			return errs.Wrap(errs.SCM, src.Name, err, "verifying "+file.Location)
		}
	}
	return nil
}

func (f *Files) ToResult(src *project.Source, ss project.SourceSet, dir string) (string, error) {
	return fmt.Sprintf("files:%d entries -> %s", len(src.Files), dir), nil
}

func (f *Files) Display(src *project.Source) string {
	return fmt.Sprintf("%s (files, %d entries)", src.Name, len(src.Files))
}
