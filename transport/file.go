package transport

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// fileTransport realizes the file:// scheme as a local filesystem copy.
type fileTransport struct{}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		out.Close()
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	if err = out.Sync(); err != nil {
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

func (fileTransport) Fetch(u URL, localPath string) error {
	if err := copyFile(u.Path, localPath); err != nil {
		if os.IsNotExist(err) {
			return &Error{Kind: KindNotFound, URL: u.String(), Err: err}
		}
		return &Error{Kind: KindIO, URL: u.String(), Err: err}
	}
	return nil
}

func (fileTransport) Push(localPath string, u URL) error {
	if err := copyFile(localPath, u.Path); err != nil {
		return &Error{Kind: KindIO, URL: u.String(), Err: err}
	}
	return nil
}

func (fileTransport) Mkdir(u URL) error {
	if err := os.MkdirAll(u.Path, 0o755); err != nil {
		return &Error{Kind: KindIO, URL: u.String(), Err: err}
	}
	return nil
}

func (fileTransport) Exists(u URL) (bool, error) {
	_, err := os.Stat(u.Path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "stat %s", u.Path)
}
