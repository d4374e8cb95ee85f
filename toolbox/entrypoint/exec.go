package entrypoint

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/trown/coretoolbox/toolbox/errdefs"
	"github.com/trown/coretoolbox/toolbox/state"
)

// ExecSession runs both initialization phases and then replaces the current
// process with an interactive shell for the carried user. With asUsernsRoot
// (or when the image has no sudoers.d) the session stays at in-namespace
// root instead of demoting to the host identity.
func (i *Initializer) ExecSession(asUsernsRoot bool) error {
	if !InContainer() {
		return errdefs.StateConflict("not inside a container")
	}

	st, err := i.InitStatic()
	if err != nil {
		return fmt.Errorf("initializing container (static): %w", err)
	}
	if err := i.InitRuntime(); err != nil {
		return fmt.Errorf("initializing container (runtime): %w", err)
	}
	if !exists(i.StaticStamp) {
		return errdefs.StateConflict("toolbox not initialized")
	}

	// Something in the container setup leaves a 077 umask behind; reset to
	// the expected 022.
	unix.Umask(0o022)

	argv, env := i.sessionCommand(st, asUsernsRoot, os.Environ())
	bin, err := exec.LookPath(argv[0])
	if err != nil {
		return err
	}
	return unix.Exec(bin, argv, env)
}

// sessionCommand computes the argv and environment for the interactive
// shell. The state variable is scrubbed from the session environment; when
// demoting to the carried user, HOME is pinned to the carried home path.
func (i *Initializer) sessionCommand(st *state.Host, asUsernsRoot bool, environ []string) ([]string, []string) {
	env := environWithout(environ, state.EnvVar)
	if asUsernsRoot || !exists(i.path("/etc/sudoers.d")) {
		return []string{"/bin/bash"}, env
	}
	argv := []string{"setpriv", "--inh-caps=-all", "su", "--preserve-environment", st.Username}
	return argv, append(env, "HOME="+st.Home)
}

// environWithout returns environ minus the named variable.
func environWithout(environ []string, name string) []string {
	prefix := name + "="
	var env []string
	for _, kv := range environ {
		if strings.HasPrefix(kv, prefix) {
			continue
		}
		env = append(env, kv)
	}
	return env
}
