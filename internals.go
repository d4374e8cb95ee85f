package main

import (
	"github.com/urfave/cli"

	"github.com/trown/coretoolbox/toolbox/entrypoint"
	"github.com/trown/coretoolbox/toolbox/pid1"
)

// internalsCommand hosts the pieces of ourself that run inside the
// container: the init process installed as the entrypoint, and the session
// bootstrap executed on every enter.
var internalsCommand = cli.Command{
	Name:   "internals",
	Usage:  "internal implementation detail; do not use",
	Hidden: true,
	Subcommands: []cli.Command{
		{
			Name:  "run-pid1",
			Usage: "internal implementation detail; do not use",
			Action: func(context *cli.Context) error {
				pid1.New().Run()
				return nil
			},
		},
		{
			Name:  "exec",
			Usage: "internal implementation detail; do not use",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "as-userns-root",
					Usage: "see run --as-userns-root",
				},
			},
			Action: func(context *cli.Context) error {
				return entrypoint.New().ExecSession(context.Bool("as-userns-root"))
			},
		},
	},
}
