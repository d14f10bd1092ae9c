//go:build !unix && !windows

package runner

import "fmt"

func suspendProcess(pid int) error {
	return fmt.Errorf("suspend unsupported on this platform")
}

func resumeProcess(pid int) error {
	return fmt.Errorf("resume unsupported on this platform")
}
