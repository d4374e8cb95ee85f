package main

import (
	"fmt"
	"os"

	"github.com/opencontainers/runc/libcontainer/userns"

	"github.com/trown/coretoolbox/toolbox/entrypoint"
	"github.com/trown/coretoolbox/toolbox/errdefs"
	"github.com/trown/coretoolbox/toolbox/podman"
)

const (
	defaultImage = "registry.fedoraproject.org/f30/fedora-toolbox:30"
	// toolboxLabel is set on toolbox images and containers.
	toolboxLabel = "com.coreos.toolbox"
	// dToolboxLabel is the label used by github.com/debarshiray/fedora-toolbox
	// images and containers.
	dToolboxLabel = "com.github.debarshiray.toolbox"
	// defaultName is the default container name.
	defaultName = "coreos-toolbox"
	// usrBinSelf is the path to our binary inside the container.
	usrBinSelf = "/usr/bin/coretoolbox"
)

// preservedEnv is forwarded from the host session into the container when
// set.
var preservedEnv = []string{
	"COLORTERM",
	"DBUS_SESSION_BUS_ADDRESS",
	"DESKTOP_SESSION",
	"DISPLAY",
	"USER",
	"LANG",
	"SSH_AUTH_SOCK",
	"TERM",
	"VTE_VERSION",
	"XDG_CURRENT_DESKTOP",
	"XDG_DATA_DIRS",
	"XDG_MENU_PREFIX",
	"XDG_RUNTIME_DIR",
	"XDG_SEAT",
	"XDG_SESSION_DESKTOP",
	"XDG_SESSION_ID",
	"XDG_SESSION_TYPE",
	"XDG_VTNR",
	"WAYLAND_DISPLAY",
}

// Hooks for tests; production code never swaps these.
var (
	hasObject   = podman.HasObject
	queryImages = podman.Images
)

// checkNesting refuses to run inside an existing container unless nesting
// was explicitly requested.
func checkNesting(nested bool) error {
	if nested {
		return nil
	}
	if entrypoint.InContainer() || userns.RunningInUserNS() {
		return errdefs.StateConflict("already inside a container (use --nested to override)")
	}
	return nil
}

// preservedEnvArgs builds --env arguments for every preserved variable that
// is set in the current environment.
func preservedEnvArgs() []string {
	var args []string
	for _, n := range preservedEnv {
		v, ok := os.LookupEnv(n)
		if !ok {
			continue
		}
		args = append(args, fmt.Sprintf("--env=%s=%s", n, v))
	}
	return args
}

// toolboxImages returns downloaded images carrying either toolbox label.
func toolboxImages() ([]podman.Image, error) {
	var ret []podman.Image
	for _, label := range []string{toolboxLabel, dToolboxLabel} {
		images, err := queryImages("label=" + label + "=true")
		if err != nil {
			return nil, fmt.Errorf("finding images with label %q: %w", label, err)
		}
		for _, img := range images {
			if len(img.Names) == 0 {
				continue
			}
			ret = append(ret, img)
		}
	}
	return ret, nil
}

// imageHasToolboxLabel reports whether an image was built for toolbox use,
// under either the coreos or the debarshiray label convention.
func imageHasToolboxLabel(labels map[string]string) bool {
	return labels[toolboxLabel] == "true" || labels[dToolboxLabel] == "true"
}

// getenvRequired returns the value of a required environment variable.
func getenvRequired(name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", errdefs.Config("%s is unset", name)
	}
	return v, nil
}
