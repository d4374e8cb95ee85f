package main

import (
	"flag"
	"testing"

	"github.com/urfave/cli"
	"gotest.tools/v3/assert"

	"github.com/trown/coretoolbox/toolbox/errdefs"
	"github.com/trown/coretoolbox/toolbox/podman"
)

// stubPodmanQueries replaces the podman lookups with canned results.
func stubPodmanQueries(t *testing.T, containerPresent bool, images []podman.Image) {
	t.Helper()
	origHasObject, origQueryImages := hasObject, queryImages
	hasObject = func(kind podman.InspectType, name string) (bool, error) {
		return containerPresent, nil
	}
	queryImages = func(filters ...string) ([]podman.Image, error) {
		return images, nil
	}
	t.Cleanup(func() {
		hasObject, queryImages = origHasObject, origQueryImages
	})
}

// runContext builds a cli context for the run command; nested is set so the
// nesting guard does not trip when the tests themselves run in a container.
func runContext(t *testing.T, name string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("run", flag.ContinueOnError)
	set.String("name", "", "")
	set.Bool("nested", false, "")
	set.Bool("as-userns-root", false, "")
	args := []string{"--nested"}
	if name != "" {
		args = append(args, "--name", name)
	}
	assert.NilError(t, set.Parse(args))
	return cli.NewContext(nil, set, nil)
}

func TestRunNoContainerNoImages(t *testing.T) {
	stubPodmanQueries(t, false, nil)

	err := run(runContext(t, ""))
	assert.Assert(t, errdefs.IsStateConflict(err))
	assert.ErrorContains(t, err, "No toolbox container or images found; use `create` to create one")
}

func TestRunNamedContainerMissing(t *testing.T) {
	stubPodmanQueries(t, false, []podman.Image{
		{ID: "deadbeef", Names: []string{defaultImage}},
	})

	err := run(runContext(t, "devbox"))
	assert.Assert(t, errdefs.IsStateConflict(err))
	assert.ErrorContains(t, err, `No toolbox container "devbox" found`)
}
