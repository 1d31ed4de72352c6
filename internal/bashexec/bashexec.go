// Package bashexec executes the opaque build-script payload the
// way coreos-assembler's internal/pkg/bashexec does: the script body is
// piped in over an extra fd instead of passed via `-c`, run under bash
// strict mode, and lifecycle-bound to the caller via PR_SET_PDEATHSIG so
// a killed driver never orphans a build script.
package bashexec

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// StrictMode is prepended to every script: http://redsymbol.net/articles/unofficial-bash-strict-mode/
const StrictMode = "set -euo pipefail"

// Runner executes a single in-memory bash script.
type Runner struct {
	name string
	dir  string
	env  []string
	cmd  *exec.Cmd
}

// New prepares a named script for execution inside dir with the given
// environment (as "k=v" strings, already composed).
func New(name, src, dir string, env []string) (*Runner, error) {
	f, err := os.CreateTemp("", "e2-script-")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, strings.NewReader(src)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	if err := os.Remove(f.Name()); err != nil {
		f.Close()
		return nil, err
	}

	bashCmd := fmt.Sprintf("%s\n. /proc/self/fd/3\n", StrictMode)
	cmd := exec.Command("/bin/bash", "-c", bashCmd, name)
	cmd.Dir = dir
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGTERM}
	cmd.ExtraFiles = append(cmd.ExtraFiles, f)

	return &Runner{name: name, dir: dir, env: env, cmd: cmd}, nil
}

// Run spawns the script with stdio connected directly to the caller's,
// returning the script's exit status via error.
func (r *Runner) Run() error {
	r.cmd.Stdin = os.Stdin
	r.cmd.Stdout = os.Stdout
	r.cmd.Stderr = os.Stderr
	if err := r.cmd.Run(); err != nil {
		return fmt.Errorf("build script %s failed: %w", r.name, err)
	}
	return nil
}
