package entrypoint

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// InitRuntime performs per-boot setup: runtime directory forwarding,
// selinuxfs masking and the data directory bind mounts. The stamp lives on
// /run, so a container restart clears it and the first session of the next
// boot repeats the work. The unlocked fast path keeps every later session
// cheap.
func (i *Initializer) InitRuntime() error {
	if exists(i.RuntimeStamp) {
		return nil
	}

	unlock, err := i.lockInit()
	if err != nil {
		return err
	}
	defer unlock()

	// Re-check: another session may have finished while we waited.
	if exists(i.RuntimeStamp) {
		return nil
	}

	if err := i.forwardRuntimeDir(); err != nil {
		return fmt.Errorf("forwarding runtime dir: %w", err)
	}
	if err := i.maskSelinuxfs(); err != nil {
		return err
	}
	if err := i.mountDataDirs(); err != nil {
		return err
	}

	return i.stamp(i.RuntimeStamp)
}

// forwardRuntimeDir symlinks the session runtime directory to its host
// equivalent unless something is already there.
func (i *Initializer) forwardRuntimeDir() error {
	dir := RuntimeDir()
	if exists(i.path(dir)) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(i.path(dir)), 0o755); err != nil {
		return err
	}
	return i.hostSymlink(dir)
}

// maskSelinuxfs hides the host selinuxfs when podman exposes it.
// Unprivileged podman leaks the host selinuxfs into the container, which
// makes e.g. librpm believe it can perform domain transitions that are not
// actually permitted. Bind mounting an empty directory over it restores the
// "selinux disabled" view.
func (i *Initializer) maskSelinuxfs() error {
	selinuxfs := i.path("/sys/fs/selinux")
	if !exists(filepath.Join(selinuxfs, "status")) {
		return nil
	}
	empty := i.path("/usr/share/empty")
	if !exists(empty) {
		empty = i.path("/usr/share/coretoolbox/empty")
		if err := os.MkdirAll(empty, 0o755); err != nil {
			return err
		}
	}
	if err := rbind(empty, selinuxfs); err != nil {
		return fmt.Errorf("masking selinuxfs: %w", err)
	}
	return nil
}

// mountDataDirs bind mounts the declared data directories from the host,
// applying the same layout rule as the static phase. Bind mounts, not
// symlinks: some programs resolve and compare absolute paths.
func (i *Initializer) mountDataDirs() error {
	layout := i.detectLayout()
	for _, d := range dataDirs {
		if layout == layoutOstree {
			d = filepath.Join("/var", d)
		}
		dst := i.path(d)
		if ok, err := mounted(dst); err == nil && ok {
			logrus.Debugf("%s is already mounted", dst)
			continue
		}
		if err := rbind(filepath.Join(i.HostRoot, d), dst); err != nil {
			return fmt.Errorf("mounting data dir %s: %w", d, err)
		}
	}
	return nil
}
