package main

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/sys/unix"

	"github.com/trown/coretoolbox/toolbox/entrypoint"
	"github.com/trown/coretoolbox/toolbox/errdefs"
	"github.com/trown/coretoolbox/toolbox/podman"
)

// maxUIDCount is the size of the uid range mapped into the container.
const maxUIDCount = 65536

var createCommand = cli.Command{
	Name:  "create",
	Usage: "create a toolbox container",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "image, I",
			Usage: "use a different base image",
		},
		cli.StringFlag{
			Name:  "name, n",
			Usage: "name the container",
		},
		cli.BoolFlag{
			Name:  "nested, N",
			Usage: "allow running inside a container",
		},
		cli.BoolFlag{
			Name:  "destroy, D",
			Usage: "destroy any existing container first",
		},
	},
	Action: create,
}

// createConfig collects everything that determines the podman create
// invocation; create derives it from flags and the host, tests construct it
// directly.
type createConfig struct {
	name    string
	image   string
	selfBin string
	uid     int
	sysroot bool // host has /sysroot
	debugfs bool // bind /sys/kernel/debug (privileged only)
	env     []string
}

func create(context *cli.Context) error {
	if err := checkNesting(context.Bool("nested")); err != nil {
		return err
	}

	name := context.String("name")
	if name == "" {
		name = defaultName
	}

	image := context.String("image")
	if image == "" {
		// With no image and no name given, and no default container in the
		// way, discover or prompt for one.
		if context.String("name") == "" {
			present, err := hasObject(podman.TypeContainer, defaultName)
			if err != nil {
				return err
			}
			if !present {
				img, err := chooseDefaultImage()
				if err != nil {
					return err
				}
				image = img
			}
		}
		if image == "" {
			image = defaultImage
		}
	}

	if context.Bool("destroy") {
		if err := removeContainer(name); err != nil {
			return err
		}
	}

	data, err := podman.EnsureImage(image)
	if err != nil {
		return err
	}
	if !imageHasToolboxLabel(data.Labels) {
		logrus.Warnf("image %s does not carry a toolbox label", image)
	}
	logrus.Debugf("image %s entrypoint %v will be replaced", image, data.Config.Entrypoint)

	// We bind ourself in so we can handle recursive invocation; resolve the
	// real binary behind /proc/self/exe.
	selfBin, err := os.Readlink("/proc/self/exe")
	if err != nil {
		return fmt.Errorf("resolving own binary: %w", err)
	}

	uid := unix.Getuid()

	runtimeDir := entrypoint.RuntimeDir()
	if err := os.MkdirAll(runtimeDir, 0o700); err != nil {
		return err
	}

	cfg := &createConfig{
		name:    name,
		image:   image,
		selfBin: selfBin,
		uid:     uid,
		sysroot: pathExists("/sysroot"),
		debugfs: uid == 0 && pathExists("/sys/kernel/debug"),
		env:     preservedEnvArgs(),
	}
	return podman.Run(podman.Command(createArgs(cfg)...))
}

// createArgs assembles the full podman create argument list.
func createArgs(c *createConfig) []string {
	privileged := c.uid == 0
	args := []string{
		"create",
		"--interactive",
		"--tty",
		"--hostname=toolbox",
		"--network=host",
		// We are not aiming for security isolation here; besides these, the
		// user's home directory is mounted in, so anything that wants to
		// "escape" can just mutate ~/.bashrc for example.
		"--ipc=host",
		"--privileged",
		"--security-opt=label=disable",
		"--tmpfs=/run:rw",
	}
	args = append(args, "--label="+toolboxLabel+"=true")
	args = append(args, "--name="+c.name)
	// In privileged mode we assume we want to control all host processes by
	// default; we're more about debugging/management and less of a "dev
	// container".
	if privileged {
		args = append(args, "--pid=host")
	}
	args = append(args, fmt.Sprintf("--volume=%s:%s:ro", c.selfBin, usrBinSelf))
	// In true privileged mode we don't use a user namespace.
	if !privileged {
		args = append(args, uidMapArgs(c.uid)...)
	}
	for _, p := range []string{"/dev", "/usr", "/var", "/etc", "/run", "/tmp"} {
		args = append(args, fmt.Sprintf("--volume=%s:/host%s:rslave", p, p))
	}
	if c.sysroot {
		args = append(args, "--volume=/sysroot:/host/sysroot:rslave")
	}
	if c.debugfs {
		// Bind debugfs in privileged mode so we can use e.g. bpftrace.
		args = append(args, "--volume=/sys/kernel/debug:/sys/kernel/debug:rslave")
	}
	args = append(args, c.env...)
	args = append(args, c.image, usrBinSelf, "internals", "run-pid1")
	return args
}

// uidMapArgs maps the invoking uid to container root in three ranges: the
// real uid becomes 0, ids below it shift up by one, and everything above
// maps through unchanged.
func uidMapArgs(uid int) []string {
	return []string{
		fmt.Sprintf("--uidmap=%d:0:1", uid),
		fmt.Sprintf("--uidmap=0:1:%d", uid),
		fmt.Sprintf("--uidmap=%d:%d:%d", uid+1, uid+1, maxUIDCount-uid),
	}
}

// chooseDefaultImage resolves the image to use when none was specified:
// the sole labeled image if exactly one exists, an interactive prompt when
// none do, and an error when the choice is ambiguous.
func chooseDefaultImage() (string, error) {
	images, err := toolboxImages()
	if err != nil {
		return "", err
	}
	switch len(images) {
	case 0:
		return promptImage()
	case 1:
		return images[0].Names[0], nil
	default:
		return "", errdefs.StateConflict("multiple toolbox images found, must specify one via --image")
	}
}

func promptImage() (string, error) {
	image := defaultImage
	q := &survey.Input{
		Message: "Enter a pull spec for the toolbox image",
		Default: defaultImage,
	}
	if err := survey.AskOne(q, &image); err != nil {
		return "", err
	}
	if image == "" {
		image = defaultImage
	}
	return image, nil
}

func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
