package main

import (
	"github.com/urfave/cli"

	"github.com/trown/coretoolbox/toolbox/podman"
)

var rmCommand = cli.Command{
	Name:  "rm",
	Usage: "delete the toolbox container",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "name, n",
			Value: defaultName,
			Usage: "name of container",
		},
	},
	Action: func(context *cli.Context) error {
		name := context.String("name")
		present, err := hasObject(podman.TypeContainer, name)
		if err != nil {
			return err
		}
		if !present {
			return nil
		}
		return podman.Exec(podman.Command("rm", "-f", name))
	},
}

// removeContainer forcibly removes the named container if it exists; used
// by `create --destroy`, which must keep running afterwards.
func removeContainer(name string) error {
	present, err := hasObject(podman.TypeContainer, name)
	if err != nil {
		return err
	}
	if !present {
		return nil
	}
	return podman.Run(podman.Command("rm", "-f", name))
}
