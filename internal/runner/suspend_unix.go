//go:build unix

// Package runner's POSIX suspend primitive: SIGSTOP/SIGCONT to the child
// pid, per spec.md §4.5/§9 "OS-specific suspend primitive".
package runner

import (
	"golang.org/x/sys/unix"
)

func suspendProcess(pid int) error {
	return unix.Kill(pid, unix.SIGSTOP)
}

func resumeProcess(pid int) error {
	return unix.Kill(pid, unix.SIGCONT)
}
