//go:build windows

package shm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// windowsBackend maps a named file-mapping object, the Windows analogue of
// a POSIX shm_open segment. The mapping name is namespaced under
// "Local\\" so it is visible to the child process without colliding with
// the Global namespace.
type windowsBackend struct {
	handle windows.Handle
	addr   uintptr
	data   []byte
}

func mappingName(name string) *uint16 {
	p, _ := windows.UTF16PtrFromString(`Local\` + name)
	return p
}

func createBackend(name string, size uint32) (backend, error) {
	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, 0, size, mappingName(name))
	// CreateFileMapping returns a valid, non-zero handle AND sets the
	// thread's last error to ERROR_ALREADY_EXISTS when the named mapping
	// already existed; the x/sys/windows wrapper only surfaces err when
	// the handle itself is zero, so the collision case must be read off
	// GetLastError immediately, before any other syscall can clobber it.
	collision := h != 0 && windows.GetLastError() == windows.ERROR_ALREADY_EXISTS
	if err != nil {
		return nil, fmt.Errorf("create shm segment %s: %w", name, err)
	}
	if collision {
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("shm segment %s already exists", name)
	}
	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("map shm segment %s: %w", name, err)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	return &windowsBackend{handle: h, addr: addr, data: data}, nil
}

func openBackend(name string) (backend, error) {
	h, err := windows.OpenFileMapping(windows.FILE_MAP_WRITE, false, mappingName(name))
	if err != nil {
		return nil, fmt.Errorf("open shm segment %s: %w", name, err)
	}
	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_WRITE, 0, 0, 0)
	if err != nil {
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("map shm segment %s: %w", name, err)
	}
	// The view maps the whole mapping; MapViewOfFile with size 0 maps
	// everything, but we still need the byte length to slice. Query it
	// via VirtualQuery of the region.
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
		_ = windows.UnmapViewOfFile(addr)
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("query shm segment %s: %w", name, err)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), mbi.RegionSize)
	return &windowsBackend{handle: h, addr: addr, data: data}, nil
}

func (b *windowsBackend) Bytes() []byte { return b.data }

func (b *windowsBackend) Close() error {
	var err error
	if b.addr != 0 {
		if e := windows.UnmapViewOfFile(b.addr); e != nil {
			err = e
		}
		b.addr = 0
		b.data = nil
	}
	if b.handle != 0 {
		if e := windows.CloseHandle(b.handle); e != nil && err == nil {
			err = e
		}
		b.handle = 0
	}
	return err
}

// Unlink is a no-op on Windows: named file mappings are reference counted
// and disappear once the last handle (across all processes) closes. There
// is no separate unlink step, so subsequent OpenFileMapping calls by name
// naturally fail once every handle is gone, matching the POSIX ShmGone
// contract.
func (b *windowsBackend) Unlink() error { return nil }
