package transport

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/e2core/e2/internal/executil"
)

// rsyncTransport realizes rsync:// and rsync+ssh:// by invoking the rsync
// binary, the remaining case names where shelling out (rather
// than a native Go implementation) is the only practical realization —
// the rsync wire protocol itself is out of scope for this engine.
type rsyncTransport struct {
	cfg     Config
	overSSH bool
}

func (t rsyncTransport) remoteShellArgs() []string {
	if !t.overSSH {
		return nil
	}
	rsh := "ssh"
	if t.cfg.SSHKeyPath != "" {
		rsh = fmt.Sprintf("ssh -i %s", t.cfg.SSHKeyPath)
	}
	return []string{"-e", rsh}
}

func (t rsyncTransport) remoteSpec(u URL) string {
	user := t.cfg.SSHUser
	host := u.Host
	if user != "" {
		host = user + "@" + host
	}
	return fmt.Sprintf("%s:%s", host, u.Path)
}

func (t rsyncTransport) run(args ...string) error {
	cmd := executil.Command("rsync", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("rsync %v: %w: %s", args, err, out)
	}
	return nil
}

func (t rsyncTransport) Fetch(u URL, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return &Error{Kind: KindIO, URL: u.String(), Err: err}
	}
	args := append(t.remoteShellArgs(), "-a", t.remoteSpec(u), localPath)
	if err := t.run(args...); err != nil {
		return &Error{Kind: KindIO, URL: u.String(), Err: err}
	}
	return nil
}

func (t rsyncTransport) Push(localPath string, u URL) error {
	args := append(t.remoteShellArgs(), "-a", localPath, t.remoteSpec(u))
	if err := t.run(args...); err != nil {
		return &Error{Kind: KindIO, URL: u.String(), Err: err}
	}
	return nil
}

func (t rsyncTransport) Mkdir(u URL) error {
	// rsync has no native mkdir; fall back to an ssh transport for the
	// remote-shell mkdir prescribes for the ssh/scp schemes.
	return sshTransport{cfg: t.cfg}.Mkdir(u)
}

func (t rsyncTransport) Exists(u URL) (bool, error) {
	return sshTransport{cfg: t.cfg}.Exists(u)
}
