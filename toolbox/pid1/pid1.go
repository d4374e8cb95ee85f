// Package pid1 implements the minimal init process installed as the
// container entrypoint. Its only jobs are reaping orphaned children and
// exiting on a termination request; interactive sessions run as separate
// podman execs and are not its concern.
package pid1

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// Supervisor owns the two signal transitions of a container init: SIGCHLD
// drains finished children, SIGTERM ends the process.
type Supervisor struct {
	signals chan os.Signal
}

// New installs the signal handlers and returns the supervisor. Handlers are
// in place before New returns, so children spawned afterwards can never be
// lost.
func New() *Supervisor {
	s := &Supervisor{signals: make(chan os.Signal, 32)}
	signal.Notify(s.signals, unix.SIGCHLD, unix.SIGTERM)
	return s
}

// Run blocks on the signal channel until a termination request arrives.
// No polling is involved.
func (s *Supervisor) Run() {
	for sig := range s.signals {
		switch sig {
		case unix.SIGCHLD:
			s.reap()
		case unix.SIGTERM:
			return
		}
	}
}

// reap collects finished children non-blockingly until none remain.
func (s *Supervisor) reap() {
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if pid <= 0 || err != nil {
			return
		}
	}
}
