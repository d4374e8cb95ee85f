package entrypoint

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/trown/coretoolbox/toolbox/state"
)

// useraddExists is the exit code useradd returns for an already existing
// account.
const useraddExists = 9

// InitStatic performs the one-time container setup: host integration
// symlinks, device forwarding, sudo and user provisioning. The static stamp
// gates the whole phase, so only the first session of a container pays the
// cost; a failed run writes no stamp and the next session redoes the
// sequence from the start. Returns the decoded host state either way.
func (i *Initializer) InitStatic() (*state.Host, error) {
	unlock, err := i.lockInit()
	if err != nil {
		return nil, err
	}
	defer unlock()

	st, err := state.FromEnv()
	if err != nil {
		return nil, err
	}

	if exists(i.StaticStamp) {
		return st, nil
	}

	layout := i.detectLayout()
	logrus.Debugf("static init: uid=%d layout=%s", st.UID, layout)

	if layout == layoutOstree {
		if err := i.relocateDataDirs(); err != nil {
			return nil, fmt.Errorf("relocating data directories: %w", err)
		}
	}

	// Another mount point, used by udisks.
	if err := i.hostSymlink("/run/media"); err != nil {
		return nil, err
	}

	i.cleanInstallerCruft()

	if err := i.applyStaticForwards(); err != nil {
		return nil, fmt.Errorf("enabling static host forwards: %w", err)
	}

	if layout == layoutOstree {
		if err := i.linkOstreeRepo(); err != nil {
			return nil, err
		}
	}

	if st.UID != 0 {
		if err := i.forwardDevices(); err != nil {
			return nil, fmt.Errorf("forwarding devices: %w", err)
		}
	}

	withSudo, err := i.enableSudo(st.Username)
	if err != nil {
		return nil, fmt.Errorf("enabling sudo: %w", err)
	}

	if err := i.addUser(st, withSudo); err != nil {
		return nil, err
	}

	if err := i.stamp(i.StaticStamp); err != nil {
		return nil, err
	}
	return st, nil
}

// relocateDataDirs converts the container to an ostree-style layout: each
// canonical data directory becomes a symlink to a var-prefixed sibling.
func (i *Initializer) relocateDataDirs() error {
	for _, d := range dataDirs {
		if err := os.Remove(i.path(d)); err != nil {
			return err
		}
		vard := filepath.Join("var", d)
		if err := os.Symlink(vard, i.path(d)); err != nil {
			return err
		}
		if err := os.MkdirAll(i.path(filepath.Join("/var", d)), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// cleanInstallerCruft removes anaconda ks-script leftovers from /tmp.
// Best effort; their absence is fine.
func (i *Initializer) cleanInstallerCruft() {
	tmp := i.path("/tmp")
	entries, err := os.ReadDir(tmp)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "ks-script-") {
			continue
		}
		if err := os.Remove(filepath.Join(tmp, e.Name())); err != nil {
			logrus.WithError(err).Debugf("removing %s", e.Name())
		}
	}
}

// applyStaticForwards symlinks the default set of forwarded API and state
// directories into /host.
func (i *Initializer) applyStaticForwards() error {
	for _, p := range staticHostForwards {
		if err := i.hostSymlink(p); err != nil {
			return err
		}
	}
	return nil
}

// linkOstreeRepo exposes the host ostree repo at its canonical location.
func (i *Initializer) linkOstreeRepo() error {
	link := filepath.Join(i.HostRoot, "ostree")
	if err := os.Symlink("sysroot/ostree", link); err != nil && !os.IsExist(err) {
		return fmt.Errorf("linking ostree repo: %w", err)
	}
	return nil
}

// forwardDevices symlinks declared host device nodes into the container.
// An existing in-container node is never overwritten, and devices missing
// on the host are skipped.
func (i *Initializer) forwardDevices() error {
	for _, d := range forwardedDevices {
		dev := i.path(filepath.Join("/dev", d))
		hostDev := filepath.Join(i.HostRoot, "dev", d)
		if exists(dev) || !exists(hostDev) {
			continue
		}
		if err := os.Symlink(hostDev, dev); err != nil {
			return fmt.Errorf("symlinking %s: %w", d, err)
		}
	}
	return nil
}

// enableSudo writes a read-only NOPASSWD drop-in for username if the
// sudoers.d directory exists. The drop-in is rewritten unconditionally so a
// retried phase converges instead of failing on leftovers.
func (i *Initializer) enableSudo(username string) (bool, error) {
	dir := i.path("/etc/sudoers.d")
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	dropin := filepath.Join(dir, "toolbox-"+username)
	if err := os.Remove(dropin); err != nil && !os.IsNotExist(err) {
		return false, err
	}
	rule := fmt.Sprintf("%s ALL=(ALL) NOPASSWD: ALL\n", username)
	if err := os.WriteFile(dropin, []byte(rule), 0o444); err != nil {
		return false, err
	}
	return true, nil
}

// addUser creates an account matching the host identity and replaces its
// home directory with a recursive bind mount of the host home. Root needs
// no provisioning.
func (i *Initializer) addUser(st *state.Host, withSudo bool) error {
	if st.UID == 0 {
		return nil
	}
	args := []string{"--no-create-home", "--home-dir", st.Home, "--uid", strconv.Itoa(st.UID)}
	if withSudo {
		args = append(args, "--groups", "wheel")
	}
	args = append(args, st.Username)
	if err := runUseradd(args...); err != nil {
		return fmt.Errorf("adding user %s: %w", st.Username, err)
	}

	// Bind mount the home directory rather than symlink it; various
	// software is unhappy when the home path is not canonical.
	home := i.path(st.Home)
	if err := os.MkdirAll(home, 0o700); err != nil {
		return err
	}
	if err := chown(home, st.UID, st.UID); err != nil {
		return fmt.Errorf("owning %s: %w", home, err)
	}
	return rbind(filepath.Join(i.HostRoot, st.Home), home)
}

func execUseradd(args ...string) error {
	out, err := exec.Command("useradd", args...).CombinedOutput()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) && ee.ExitCode() == useraddExists {
			// A previous partially failed run already created the account.
			logrus.Debug("useradd: account already exists")
			return nil
		}
		return fmt.Errorf("useradd: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
