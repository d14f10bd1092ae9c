//go:build windows

// Package runner's Windows suspend primitive: the undocumented
// NtSuspendProcess/NtResumeProcess calls against the child's process
// handle, per spec.md §4.5/§9 "OS-specific suspend primitive".
package runner

import (
	"fmt"

	"golang.org/x/sys/windows"
)

var (
	ntdll         = windows.NewLazySystemDLL("ntdll.dll")
	procNtSuspend = ntdll.NewProc("NtSuspendProcess")
	procNtResume  = ntdll.NewProc("NtResumeProcess")
)

func suspendProcess(pid int) error {
	h, err := windows.OpenProcess(windows.PROCESS_SUSPEND_RESUME, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("open process %d: %w", pid, err)
	}
	defer windows.CloseHandle(h)

	r0, _, _ := procNtSuspend.Call(uintptr(h))
	if r0 != 0 {
		return fmt.Errorf("NtSuspendProcess(%d): status 0x%x", pid, r0)
	}
	return nil
}

func resumeProcess(pid int) error {
	h, err := windows.OpenProcess(windows.PROCESS_SUSPEND_RESUME, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("open process %d: %w", pid, err)
	}
	defer windows.CloseHandle(h)

	r0, _, _ := procNtResume.Call(uintptr(h))
	if r0 != 0 {
		return fmt.Errorf("NtResumeProcess(%d): status 0x%x", pid, r0)
	}
	return nil
}
