package state

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/trown/coretoolbox/toolbox/errdefs"
)

func TestRoundtrip(t *testing.T) {
	in := &Host{Username: "walters", UID: 1000, Home: "/home/walters"}
	encoded, err := in.Encode()
	assert.NilError(t, err)

	out, err := Decode(encoded)
	assert.NilError(t, err)
	assert.DeepEqual(t, in, out)
}

func TestFromEnv(t *testing.T) {
	in := &Host{Username: "walters", UID: 1000, Home: "/home/walters"}
	encoded, err := in.Encode()
	assert.NilError(t, err)
	t.Setenv(EnvVar, encoded)

	out, err := FromEnv()
	assert.NilError(t, err)
	assert.DeepEqual(t, in, out)
}

func TestFromEnvUnset(t *testing.T) {
	t.Setenv(EnvVar, "")
	_, err := FromEnv()
	assert.Assert(t, errdefs.IsConfig(err))
}

func TestDecodeMalformed(t *testing.T) {
	for _, s := range []string{"", "{", "42", `{"username":12}`} {
		_, err := Decode(s)
		assert.Assert(t, errdefs.IsConfig(err), "input %q", s)
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		host Host
	}{
		{"empty username", Host{UID: 1000, Home: "/home/x"}},
		{"negative uid", Host{Username: "x", UID: -1, Home: "/home/x"}},
		{"relative home", Host{Username: "x", UID: 1000, Home: "home/x"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Assert(t, errdefs.IsConfig(tc.host.Validate()))
		})
	}
}
