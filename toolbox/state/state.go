// Package state carries the invoking host identity into the container.
// The record is serialized into a single environment variable on `run` and
// decoded exactly once by the in-container initializer; it is never written
// to disk.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/trown/coretoolbox/toolbox/errdefs"
)

// EnvVar is the environment variable that carries the serialized host state
// from the host session into the container session.
const EnvVar = "TOOLBOX_STATE"

// Host describes the real invoking identity on the host side.
type Host struct {
	Username string `json:"username"`
	UID      int    `json:"uid"`
	Home     string `json:"home"`
}

// Validate checks the invariants the initializer depends on.
func (h *Host) Validate() error {
	if h.Username == "" {
		return errdefs.Config("host state has empty username")
	}
	if h.UID < 0 {
		return errdefs.Config("host state has negative uid %d", h.UID)
	}
	if !filepath.IsAbs(h.Home) {
		return errdefs.Config("host state home %q is not absolute", h.Home)
	}
	return nil
}

// Encode serializes h for transport via EnvVar.
func (h *Host) Encode() (string, error) {
	if err := h.Validate(); err != nil {
		return "", err
	}
	buf, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// Decode parses a serialized host state.
func Decode(s string) (*Host, error) {
	var h Host
	if err := json.Unmarshal([]byte(s), &h); err != nil {
		return nil, errdefs.Config("malformed %s: %v", EnvVar, err)
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return &h, nil
}

// FromEnv decodes the host state carried in EnvVar.
func FromEnv() (*Host, error) {
	v, ok := os.LookupEnv(EnvVar)
	if !ok || v == "" {
		return nil, errdefs.Config("%s is unset", EnvVar)
	}
	return Decode(v)
}
