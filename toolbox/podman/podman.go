// Package podman drives the external container runtime through its command
// line. Failures are surfaced as runtime errors carrying the captured
// diagnostic output; everything else about podman is treated as opaque.
package podman

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/trown/coretoolbox/toolbox/errdefs"
)

// Command returns an exec.Cmd invoking podman with args.
func Command(args ...string) *exec.Cmd {
	logrus.Debugf("running: podman %s", strings.Join(args, " "))
	return exec.Command("podman", args...)
}

// Run executes cmd, capturing stderr for diagnostics. Stdout is discarded
// unless the caller wired it up.
func Run(cmd *exec.Cmd) error {
	var stderr bytes.Buffer
	if cmd.Stderr == nil {
		cmd.Stderr = &stderr
	}
	if err := cmd.Run(); err != nil {
		return errdefs.Runtime("%s: %v: %s", strings.Join(cmd.Args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Output executes cmd and returns its stdout.
func Output(cmd *exec.Cmd) ([]byte, error) {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, errdefs.Runtime("%s: %v: %s", strings.Join(cmd.Args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Exec replaces the current process with cmd.
func Exec(cmd *exec.Cmd) error {
	env := cmd.Env
	if env == nil {
		env = os.Environ()
	}
	if err := unix.Exec(cmd.Path, cmd.Args, env); err != nil {
		return errdefs.Runtime("exec %s: %v", cmd.Path, err)
	}
	return nil
}

// InspectType selects the object namespace for existence checks.
type InspectType int

const (
	TypeContainer InspectType = iota
	TypeImage
)

func (t InspectType) String() string {
	if t == TypeImage {
		return "image"
	}
	return "container"
}

// HasObject reports whether the named container or image exists locally.
func HasObject(kind InspectType, name string) (bool, error) {
	// `podman <kind> exists` exits 1 for a missing object.
	err := Command(kind.String(), "exists", name).Run()
	if err == nil {
		return true, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) && ee.ExitCode() == 1 {
		return false, nil
	}
	return false, errdefs.Runtime("podman %s exists %s: %v", kind, name, err)
}

// Image is one entry of `podman images --format json`.
type Image struct {
	ID     string            `json:"Id"`
	Names  []string          `json:"Names"`
	Labels map[string]string `json:"Labels"`
}

// Images lists local images matching the given --filter expressions.
func Images(filters ...string) ([]Image, error) {
	args := []string{"images", "--format", "json"}
	for _, f := range filters {
		args = append(args, "--filter", f)
	}
	out, err := Output(Command(args...))
	if err != nil {
		return nil, err
	}
	var images []Image
	if err := json.Unmarshal(out, &images); err != nil {
		return nil, fmt.Errorf("decoding podman images output: %w", err)
	}
	return images, nil
}

// ImageData is the subset of `podman image inspect` output we consume. The
// Config section follows the OCI image spec.
type ImageData struct {
	ID     string            `json:"Id"`
	Labels map[string]string `json:"Labels"`
	Config v1.ImageConfig    `json:"Config"`
}

// ImageInspect returns detailed data for one local image.
func ImageInspect(name string) (*ImageData, error) {
	out, err := Output(Command("image", "inspect", name))
	if err != nil {
		return nil, err
	}
	var data []ImageData
	if err := json.Unmarshal(out, &data); err != nil {
		return nil, fmt.Errorf("decoding podman image inspect output: %w", err)
	}
	if len(data) == 0 {
		return nil, errdefs.Runtime("image %s not found", name)
	}
	return &data[0], nil
}

// Pull fetches an image, streaming progress to stdout.
func Pull(image string) error {
	cmd := Command("pull", image)
	cmd.Stdout = os.Stdout
	return Run(cmd)
}

// EnsureImage pulls image unless it is already present and returns its
// inspect data.
func EnsureImage(image string) (*ImageData, error) {
	present, err := HasObject(TypeImage, image)
	if err != nil {
		return nil, err
	}
	if !present {
		if err := Pull(image); err != nil {
			return nil, err
		}
	}
	return ImageInspect(image)
}
