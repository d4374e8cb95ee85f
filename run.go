package main

import (
	"github.com/urfave/cli"
	"golang.org/x/sys/unix"

	"github.com/trown/coretoolbox/toolbox/errdefs"
	"github.com/trown/coretoolbox/toolbox/podman"
	"github.com/trown/coretoolbox/toolbox/state"
)

var runCommand = cli.Command{
	Name:  "run",
	Usage: "enter the toolbox",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "name, n",
			Usage: "name of container",
		},
		cli.BoolFlag{
			Name:  "nested, N",
			Usage: "allow running inside a container",
		},
		cli.BoolFlag{
			Name:  "as-userns-root",
			Usage: "run as (user namespace) root, do not change to the unprivileged uid",
		},
	},
	Action: run,
}

func run(context *cli.Context) error {
	if err := checkNesting(context.Bool("nested")); err != nil {
		return err
	}

	name := context.String("name")
	if name == "" {
		name = defaultName
	}

	present, err := hasObject(podman.TypeContainer, name)
	if err != nil {
		return err
	}
	if !present {
		images, err := toolboxImages()
		if err != nil {
			return err
		}
		if len(images) == 0 {
			return errdefs.StateConflict("No toolbox container or images found; use `create` to create one")
		}
		return errdefs.StateConflict("No toolbox container %q found", name)
	}

	if err := podman.Run(podman.Command("start", name)); err != nil {
		return err
	}

	st := &state.Host{UID: unix.Getuid()}
	if st.Username, err = getenvRequired("USER"); err != nil {
		return err
	}
	if st.Home, err = getenvRequired("HOME"); err != nil {
		return err
	}
	encoded, err := st.Encode()
	if err != nil {
		return err
	}

	args := []string{"exec", "--interactive", "--tty"}
	args = append(args, preservedEnvArgs()...)
	args = append(args, "--env="+state.EnvVar+"="+encoded)
	args = append(args, name, usrBinSelf, "internals", "exec")
	if context.Bool("as-userns-root") {
		args = append(args, "--as-userns-root")
	}
	return podman.Exec(podman.Command(args...))
}
