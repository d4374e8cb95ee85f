package entrypoint

import (
	"os"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/trown/coretoolbox/toolbox/state"
)

func TestSessionCommandDemotesToCarriedUser(t *testing.T) {
	i := newTestInitializer(t)
	st := &state.Host{Username: "tester", UID: 1000, Home: "/home/tester"}
	environ := []string{"TERM=xterm", state.EnvVar + `={"username":"tester"}`}

	argv, env := i.sessionCommand(st, false, environ)

	assert.DeepEqual(t, argv, []string{
		"setpriv", "--inh-caps=-all", "su", "--preserve-environment", "tester",
	})
	assert.DeepEqual(t, env, []string{"TERM=xterm", "HOME=/home/tester"})
}

func TestSessionCommandAsUsernsRoot(t *testing.T) {
	i := newTestInitializer(t)
	st := &state.Host{Username: "tester", UID: 1000, Home: "/home/tester"}

	argv, env := i.sessionCommand(st, true, []string{"TERM=xterm"})

	assert.DeepEqual(t, argv, []string{"/bin/bash"})
	// No HOME override when the session stays at in-namespace root.
	assert.DeepEqual(t, env, []string{"TERM=xterm"})
}

func TestSessionCommandWithoutSudoers(t *testing.T) {
	i := newTestInitializer(t)
	assert.NilError(t, os.Remove(i.path("/etc/sudoers.d")))
	st := &state.Host{Username: "tester", UID: 1000, Home: "/home/tester"}

	argv, _ := i.sessionCommand(st, false, nil)
	assert.DeepEqual(t, argv, []string{"/bin/bash"})
}

func TestEnvironWithout(t *testing.T) {
	environ := []string{
		"TERM=xterm",
		state.EnvVar + `={"username":"tester","uid":1000,"home":"/home/tester"}`,
		"LANG=C.UTF-8",
	}
	got := environWithout(environ, state.EnvVar)
	assert.DeepEqual(t, got, []string{"TERM=xterm", "LANG=C.UTF-8"})
}
