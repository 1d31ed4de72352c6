// Package chroot provisions and tears down per-build chroot
// directories: extracting chroot-group archives in declared order,
// overlaying the prepared source tree and build script, and mounting
// the Linux API filesystems a build script expects to see (adapted from
// mantle's sdk.enter and system.Mount family).
//
// A chroot directory is claimed with a simple mkdir-based lock so two
// concurrent builds never provision the same path, and every lock this
// process holds is tracked so a signal can drain them before exit
// (adapted from cmd/cork's directory-locking convention).
package chroot

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/e2core/e2/cache"
	"github.com/e2core/e2/errs"
	"github.com/e2core/e2/internal/executil"
	"github.com/e2core/e2/project"
)

var (
	registryMu sync.Mutex
	registry   = map[string]bool{} // lock dir -> held
	once       sync.Once
)

// installDrain arms a signal handler that releases every lock still
// held by this process before it exits. Installed lazily so packages
// that never touch chroots never alter process-wide signal behavior.
func installDrain() {
	once.Do(func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-ch
			drainLocks()
			os.Exit(130)
		}()
	})
}

func drainLocks() {
	registryMu.Lock()
	defer registryMu.Unlock()
	for dir, held := range registry {
		if held {
			os.Remove(dir)
		}
	}
	registry = map[string]bool{}
}

// lock claims dir via mkdir (atomic create-if-absent) and tracks it for
// signal-driven drain; release removes it via rmdir.
type lock struct {
	dir string
}

func acquireLock(dir string) (*lock, error) {
	installDrain()
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, err
	}
	registryMu.Lock()
	registry[dir] = true
	registryMu.Unlock()
	return &lock{dir: dir}, nil
}

func (l *lock) release() {
	registryMu.Lock()
	delete(registry, l.dir)
	registryMu.Unlock()
	os.Remove(l.dir)
}

// Manager provisions chroot directories under Root, one per buildid.
type Manager struct {
	Root       string
	KeepChroot bool // --keep-chroot/playground mode: skip cleanup
}

// New returns a Manager rooted at root.
func New(root string, keep bool) *Manager {
	return &Manager{Root: root, KeepChroot: keep}
}

// Handle is a provisioned chroot ready for a build script to run in.
type Handle struct {
	Dir  string
	lock *lock
	keep bool
}

// dirFor returns the chroot directory and its sibling lock directory
// for buildID.
func (m *Manager) dirFor(buildID string) (dir, lockDir string) {
	dir = filepath.Join(m.Root, buildID)
	lockDir = dir + ".lock"
	return
}

// Acquire claims the chroot directory for buildID, failing with
// errs.IO if another process already holds it.
func (m *Manager) Acquire(buildID string) (*Handle, error) {
	dir, lockDir := m.dirFor(buildID)
	if err := os.MkdirAll(m.Root, 0o755); err != nil {
		return nil, errs.Wrap(errs.IO, buildID, err, "creating chroot root")
	}
	l, err := acquireLock(lockDir)
	if err != nil {
		return nil, errs.Wrap(errs.IO, buildID, err, "chroot directory already in use")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		l.release()
		return nil, errs.Wrap(errs.IO, buildID, err, "creating chroot directory")
	}
	return &Handle{Dir: dir, lock: l, keep: m.KeepChroot}, nil
}

// Extract unpacks each chroot group's archives into h.Dir in the exact
// declared order.
func (h *Handle) Extract(c *cache.Cache, groups []*project.ChrootGroup) error {
	for _, g := range groups {
		for _, f := range g.Files {
			path, err := c.FetchFile(f.Server, f.Location)
			if err != nil {
				return errs.Wrap(errs.Transport, g.Name, err, "fetching chroot file "+f.Location)
			}
			if err := extractArchive(path, h.Dir, f.TarType); err != nil {
				return errs.Wrap(errs.IO, g.Name, err, "extracting "+f.Location)
			}
		}
	}
	return nil
}

func extractArchive(archive, dir, tarType string) error {
	flag := "-xf"
	switch tarType {
	case "tar.bz2":
		flag = "-xjf"
	case "tar.gz", "tgz":
		flag = "-xzf"
	}
	cmd := executil.Command("tar", flag, archive, "-C", dir)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, stderr.String())
	}
	return nil
}

// Overlay copies the prepared source tree and writes the build script
// into the chroot, under the given in-chroot build directory name.
func (h *Handle) Overlay(sourceDir, buildDirName, script string) (scriptPath string, err error) {
	dst := filepath.Join(h.Dir, buildDirName)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", errs.Wrap(errs.IO, buildDirName, err, "creating in-chroot build dir")
	}
	cmd := executil.Command("sh", "-c",
		fmt.Sprintf("tar -C %s -cf - . | tar -C %s -xf -", shQuote(sourceDir), shQuote(dst)))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", errs.Wrap(errs.IO, buildDirName, fmt.Errorf("%w: %s", err, stderr.String()), "overlaying source tree")
	}

	scriptPath = filepath.Join(dst, "build.sh")
	if err := os.WriteFile(scriptPath, []byte(script), 0o755); err != nil {
		return "", errs.Wrap(errs.IO, buildDirName, err, "writing build script")
	}
	return scriptPath, nil
}

func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// MountAPI mounts /proc, /sys, a tmpfs /run and a read-only bind of
// /dev into the chroot. Requires CAP_SYS_ADMIN; callers
// without it should skip this and rely on bashexec's unprivileged
// script execution instead.
func (h *Handle) MountAPI() error {
	if err := bindMount(h.Dir, h.Dir); err != nil {
		return err
	}
	apis := []struct{ path, fstype, data string }{
		{"proc", "proc", ""},
		{"sys", "sysfs", ""},
		{"run", "tmpfs", "mode=755"},
	}
	for _, a := range apis {
		target := filepath.Join(h.Dir, a.path)
		if err := os.MkdirAll(target, 0o755); err != nil {
			return errs.Wrap(errs.IO, a.path, err, "creating mount point")
		}
		if err := mountVirtual(target, a.fstype, a.data); err != nil {
			return errs.Wrap(errs.IO, a.path, err, "mounting")
		}
	}
	devTarget := filepath.Join(h.Dir, "dev")
	if err := os.MkdirAll(devTarget, 0o755); err != nil {
		return errs.Wrap(errs.IO, "dev", err, "creating mount point")
	}
	if err := readOnlyBind("/dev", devTarget); err != nil {
		return errs.Wrap(errs.IO, "dev", err, "binding")
	}
	return nil
}

// UnmountAPI reverses MountAPI, best-effort in reverse order.
func (h *Handle) UnmountAPI() {
	for _, p := range []string{"dev", "run", "sys", "proc", ""} {
		target := filepath.Join(h.Dir, p)
		if err := unmount(target); err != nil {
			log.WithError(err).WithField("target", target).Debug("unmount failed")
		}
	}
}

// Release tears down the chroot directory (unless the manager is
// running in keep-chroot/playground mode) and releases its lock.
func (h *Handle) Release() error {
	defer h.lock.release()
	if h.keep {
		log.WithField("dir", h.Dir).Info("keeping chroot (keep-chroot/playground mode)")
		return nil
	}
	h.UnmountAPI()
	if err := os.RemoveAll(h.Dir); err != nil {
		return errs.Wrap(errs.IO, h.Dir, err, "removing chroot directory")
	}
	return nil
}
