package transport

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// sshTransport realizes ssh:// and scp:// as an scp-style copy over a
// single SSH session (cat the remote file through the session pipe
// rather than shelling out to the scp binary), with mkdir performed via
// a remote shell command.
type sshTransport struct {
	cfg Config
}

func (t sshTransport) dial(host string) (*ssh.Client, error) {
	signer, err := loadSigner(t.cfg.SSHKeyPath)
	if err != nil {
		return nil, err
	}
	user := t.cfg.SSHUser
	if user == "" {
		user = os.Getenv("USER")
	}
	cb, err := knownHostsCallback(t.cfg.SSHKnownHosts)
	if err != nil {
		return nil, err
	}
	clientCfg := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: cb,
	}
	addr := host
	if filepath.Ext(addr) == "" && !containsColon(addr) {
		addr = addr + ":22"
	}
	return ssh.Dial("tcp", addr, clientCfg)
}

func containsColon(s string) bool {
	for _, r := range s {
		if r == ':' {
			return true
		}
	}
	return false
}

func (t sshTransport) Fetch(u URL, localPath string) error {
	client, err := t.dial(u.Host)
	if err != nil {
		return &Error{Kind: KindUnreachable, URL: u.String(), Err: err}
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		return &Error{Kind: KindIO, URL: u.String(), Err: err}
	}
	defer sess.Close()

	var out bytes.Buffer
	sess.Stdout = &out
	var stderr bytes.Buffer
	sess.Stderr = &stderr

	cmd := "cat " + shellquote.Join(u.Path)
	if err := sess.Run(cmd); err != nil {
		if stderr.Len() > 0 {
			return &Error{Kind: KindNotFound, URL: u.String(), Err: fmt.Errorf("%s", stderr.String())}
		}
		return &Error{Kind: KindIO, URL: u.String(), Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return &Error{Kind: KindIO, URL: u.String(), Err: err}
	}
	tmp := localPath + ".tmp"
	if err := os.WriteFile(tmp, out.Bytes(), 0o644); err != nil {
		return &Error{Kind: KindIO, URL: u.String(), Err: err}
	}
	if err := os.Rename(tmp, localPath); err != nil {
		return &Error{Kind: KindIO, URL: u.String(), Err: err}
	}
	return nil
}

func (t sshTransport) Push(localPath string, u URL) error {
	client, err := t.dial(u.Host)
	if err != nil {
		return &Error{Kind: KindUnreachable, URL: u.String(), Err: err}
	}
	defer client.Close()

	data, err := os.ReadFile(localPath)
	if err != nil {
		return &Error{Kind: KindIO, URL: u.String(), Err: err}
	}

	sess, err := client.NewSession()
	if err != nil {
		return &Error{Kind: KindIO, URL: u.String(), Err: err}
	}
	defer sess.Close()

	tmp := u.Path + ".tmp"
	stdin, err := sess.StdinPipe()
	if err != nil {
		return &Error{Kind: KindIO, URL: u.String(), Err: err}
	}
	cmd := fmt.Sprintf("mkdir -p %s && cat > %s && mv %s %s",
		shellquote.Join(filepath.Dir(u.Path)), shellquote.Join(tmp),
		shellquote.Join(tmp), shellquote.Join(u.Path))
	if err := sess.Start(cmd); err != nil {
		return &Error{Kind: KindIO, URL: u.String(), Err: err}
	}
	if _, err := io.Copy(stdin, bytes.NewReader(data)); err != nil {
		return &Error{Kind: KindIO, URL: u.String(), Err: err}
	}
	stdin.Close()
	if err := sess.Wait(); err != nil {
		return &Error{Kind: KindUnauthorized, URL: u.String(), Err: err}
	}
	return nil
}

func (t sshTransport) Mkdir(u URL) error {
	client, err := t.dial(u.Host)
	if err != nil {
		return &Error{Kind: KindUnreachable, URL: u.String(), Err: err}
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		return &Error{Kind: KindIO, URL: u.String(), Err: err}
	}
	defer sess.Close()

	if err := sess.Run("mkdir -p " + shellquote.Join(u.Path)); err != nil {
		return &Error{Kind: KindIO, URL: u.String(), Err: err}
	}
	return nil
}

func (t sshTransport) Exists(u URL) (bool, error) {
	client, err := t.dial(u.Host)
	if err != nil {
		return false, &Error{Kind: KindUnreachable, URL: u.String(), Err: err}
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		return false, &Error{Kind: KindIO, URL: u.String(), Err: err}
	}
	defer sess.Close()

	err = sess.Run("test -e " + shellquote.Join(u.Path))
	if err == nil {
		return true, nil
	}
	if _, ok := err.(*ssh.ExitError); ok {
		return false, nil
	}
	return false, errors.Wrapf(err, "checking existence of %s", u)
}
