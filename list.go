package main

import (
	"fmt"

	"github.com/urfave/cli"
)

var listImagesCommand = cli.Command{
	Name:  "list-toolbox-images",
	Usage: "display names of already downloaded images with toolbox labels",
	Action: func(context *cli.Context) error {
		images, err := toolboxImages()
		if err != nil {
			return err
		}
		if len(images) == 0 {
			fmt.Println("No toolbox images found.")
			return nil
		}
		for _, img := range images {
			fmt.Println(img.Names[0])
		}
		return nil
	},
}
