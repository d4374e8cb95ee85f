// Package mount provides the bind mount and symlink primitives used for
// host integration. Neither operation is transactional; a partial failure is
// surfaced to the caller as-is.
package mount

import (
	"os"
	"path/filepath"

	"github.com/moby/sys/mountinfo"
	"golang.org/x/sys/unix"

	"github.com/trown/coretoolbox/toolbox/errdefs"
)

// Rbind recursively bind mounts src onto dest, propagating sub-mounts.
func Rbind(src, dest string) error {
	if err := unix.Mount(src, dest, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return errdefs.Mount("bind mounting %s onto %s: %v", src, dest, err)
	}
	return nil
}

// Mounted reports whether path is a mount point.
func Mounted(path string) (bool, error) {
	return mountinfo.Mounted(path)
}

// Symlink replaces whatever exists at path with a symlink to target,
// creating parent directories as needed. A missing path is not an error.
func Symlink(target, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errdefs.Mount("creating parents of %s: %v", path, err)
	}
	if err := os.RemoveAll(path); err != nil {
		return errdefs.Mount("removing %s: %v", path, err)
	}
	if err := os.Symlink(target, path); err != nil {
		return errdefs.Mount("symlinking %s to %s: %v", path, target, err)
	}
	return nil
}
