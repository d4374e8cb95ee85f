// Package entrypoint implements the in-container initialization protocol:
// the one-time static phase that integrates the host into a fresh container
// and the per-boot runtime phase that restores mounts after a restart. Both
// phases follow the same shape: fast-path stamp check, exclusive lock,
// re-check, perform once, mark done. Any number of sessions may race into a
// phase; the lock totally orders them and the stamp makes every run after
// the first a no-op.
package entrypoint

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/trown/coretoolbox/toolbox/mount"
)

const (
	// initLock serializes both initialization phases across sessions.
	initLock = "/run/coreos-toolbox.lock"
	// staticStamp records completion of the one-time container setup. It
	// lives on the container's writable layer and survives restarts.
	staticStamp = "/etc/coreos-toolbox.initialized"
	// runtimeStamp records completion of per-boot setup. /run is a tmpfs,
	// so a restart clears it and the next session redoes the work.
	runtimeStamp = "/run/coreos-toolbox.initialized"
	// hostRoot is where the host filesystem is exposed inside the container.
	hostRoot = "/host"
)

// staticHostForwards are statically known paths redirected to /host via
// symlinks during the static phase.
var staticHostForwards = []string{"/run/dbus", "/run/libvirt", "/tmp", "/var/tmp"}

// forwardedDevices are device nodes symlinked from the host if they exist
// there and are absent in the container.
var forwardedDevices = []string{"bus", "dri", "kvm", "fuse"}

// dataDirs are explicitly bind mounted rather than symlinked to /host, so
// that paths are the same inside and out.
var dataDirs = []string{"/srv", "/mnt", "/home"}

// Hooks for tests; production code never swaps these.
var (
	rbind      = mount.Rbind
	mounted    = mount.Mounted
	chown      = os.Chown
	runUseradd = execUseradd
)

// Initializer performs the static and runtime initialization phases inside
// the container.
type Initializer struct {
	// HostRoot is where the host filesystem is mounted in the container.
	HostRoot string
	// Lock is the advisory lock file shared by both phases.
	Lock string
	// StaticStamp marks completion of the static phase.
	StaticStamp string
	// RuntimeStamp marks completion of the runtime phase.
	RuntimeStamp string

	// root prefixes container-side paths; empty in production, a scratch
	// directory in tests.
	root string
}

// New returns an initializer operating on the real container filesystem.
func New() *Initializer {
	return &Initializer{
		HostRoot:     hostRoot,
		Lock:         initLock,
		StaticStamp:  staticStamp,
		RuntimeStamp: runtimeStamp,
	}
}

// path maps a container-absolute path through the initializer's root.
func (i *Initializer) path(p string) string {
	if i.root == "" {
		return p
	}
	return filepath.Join(i.root, p)
}

// hostSymlink replaces the container path p with a symlink to its /host
// equivalent.
func (i *Initializer) hostSymlink(p string) error {
	return mount.Symlink(filepath.Join(i.HostRoot, p), i.path(p))
}

// lockInit takes the exclusive initialization lock, blocking until it is
// available. The returned function releases it.
func (i *Initializer) lockInit() (func(), error) {
	f, err := os.OpenFile(i.Lock, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening init lock: %w", err)
	}
	if err := flock(f, unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("locking %s: %w", i.Lock, err)
	}
	return func() {
		if err := flock(f, unix.LOCK_UN); err != nil {
			logrus.WithError(err).Errorf("unlocking %s", i.Lock)
		}
		f.Close()
	}, nil
}

func flock(f *os.File, flags int) error {
	for {
		err := unix.Flock(int(f.Fd()), flags)
		if err == nil || err != unix.EINTR {
			return err
		}
	}
}

// stamp marks a phase as completed.
func (i *Initializer) stamp(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing stamp %s: %w", path, err)
	}
	return f.Close()
}

type hostLayout int

const (
	layoutConventional hostLayout = iota
	layoutOstree
)

func (l hostLayout) String() string {
	if l == layoutOstree {
		return "ostree"
	}
	return "conventional"
}

// detectLayout classifies the host once per phase. Ostree hosts keep mutable
// state under /var, so data directories are relocated to a var-prefixed
// sibling before mounting.
func (i *Initializer) detectLayout() hostLayout {
	if exists(filepath.Join(i.HostRoot, "run/ostree-booted")) {
		return layoutOstree
	}
	return layoutConventional
}

// InContainer reports whether we are running inside a container.
func InContainer() bool {
	return exists("/run/.containerenv")
}

// RuntimeDir returns the invoking user's runtime directory, defaulting to
// /run/user/<uid> when XDG_RUNTIME_DIR is unset (as under sudo).
func RuntimeDir() string {
	if d := os.Getenv("XDG_RUNTIME_DIR"); d != "" {
		return d
	}
	return fmt.Sprintf("/run/user/%d", unix.Getuid())
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
