//go:build unix

package shm

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// shmDir returns the directory backing named shared-memory segments.
// /dev/shm is a tmpfs on Linux; elsewhere we fall back to TempDir, which
// at least keeps the segment file-backed and name-addressable even though
// it won't be RAM-backed.
func shmDir() string {
	if st, err := os.Stat("/dev/shm"); err == nil && st.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

func shmPath(name string) string {
	return filepath.Join(shmDir(), name)
}

type unixBackend struct {
	path string
	file *os.File
	data []byte
}

// createBackend creates a new named segment. It fails (collision) if the
// name is already in use, matching spec.md §9's "fail configure on
// collision rather than silently attaching".
func createBackend(name string, size uint32) (backend, error) {
	path := shmPath(name)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create shm segment %s: %w", name, err)
	}
	if err := file.Truncate(int64(size)); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("size shm segment %s: %w", name, err)
	}
	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("mmap shm segment %s: %w", name, err)
	}
	return &unixBackend{path: path, file: file, data: data}, nil
}

func openBackend(name string) (backend, error) {
	path := shmPath(name)
	file, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open shm segment %s: %w", name, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat shm segment %s: %w", name, err)
	}
	size := info.Size()
	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("mmap shm segment %s: %w", name, err)
	}
	return &unixBackend{path: path, file: file, data: data}, nil
}

func (b *unixBackend) Bytes() []byte { return b.data }

func (b *unixBackend) Close() error {
	var err error
	if b.data != nil {
		if e := unix.Munmap(b.data); e != nil {
			err = e
		}
		b.data = nil
	}
	if b.file != nil {
		if e := b.file.Close(); e != nil && err == nil {
			err = e
		}
		b.file = nil
	}
	return err
}

func (b *unixBackend) Unlink() error {
	return os.Remove(b.path)
}
