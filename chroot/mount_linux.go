package chroot

import (
	"fmt"
	"syscall"
)

// MountError records a mount(2) failure, mirroring os.PathError's shape
// (adapted from mantle's system.MountError).
type MountError struct {
	Source string
	Target string
	FsType string
	Flags  uintptr
	Err    error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("mount %s to %s (%s): %v", e.Source, e.Target, e.FsType, e.Err)
}

func (e *MountError) Unwrap() error { return e.Err }

func doMount(source, target, fstype string, flags uintptr, data string) error {
	if err := syscall.Mount(source, target, fstype, flags, data); err != nil {
		return &MountError{Source: source, Target: target, FsType: fstype, Flags: flags, Err: err}
	}
	return nil
}

// bindMount bind-mounts source onto target.
func bindMount(source, target string) error {
	return doMount(source, target, "none", syscall.MS_BIND, "")
}

// readOnlyBind bind-mounts source onto target read-only. Two operations
// are required by the kernel: an initial bind, then a remount adding
// MS_RDONLY (a failure between the two leaves a read-write bind behind).
func readOnlyBind(source, target string) error {
	if err := doMount(source, target, "none", syscall.MS_BIND, ""); err != nil {
		return err
	}
	return doMount(source, target, "none", syscall.MS_BIND|syscall.MS_REMOUNT|syscall.MS_RDONLY, "")
}

func mountVirtual(target, fstype, data string) error {
	return doMount(fstype, target, fstype, 0, data)
}

func unmount(target string) error {
	if err := syscall.Unmount(target, 0); err != nil {
		return &MountError{Target: target, Err: err}
	}
	return nil
}
