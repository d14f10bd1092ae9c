package board

import (
	"encoding/binary"
	"strings"
	"unicode/utf8"

	"github.com/smce-go/runner/internal/config"
	"github.com/smce-go/runner/internal/errcode"
	"github.com/smce-go/runner/internal/shm"
)

// storageEntrySize is the fixed arena layout of one DirectStorage header:
// bus(1) + accessor pin(2) + reserved(1) + rootDirOffset(4) +
// rootDirLen(2) + reserved(6) = 16 bytes.
const storageEntrySize = 16

// DirectStorage models a virtual SD mount: the bus it rides, its chip
// select accessor pin, and a shm-resident root directory path the guest
// interprets as a local filesystem root.
type DirectStorage struct {
	arena *shm.Arena
	off   uint32
}

func (d DirectStorage) hdr() []byte { return d.arena.Slice(d.off, storageEntrySize) }

// Bus returns the storage bus tag.
func (d DirectStorage) Bus() config.StorageBus { return config.StorageBus(d.hdr()[0]) }

// Accessor returns the chip-select pin id.
func (d DirectStorage) Accessor() config.PinID {
	return config.PinID(binary.LittleEndian.Uint16(d.hdr()[1:3]))
}

// RootDir returns the shm-resident root directory path.
func (d DirectStorage) RootDir() string {
	off := binary.LittleEndian.Uint32(d.hdr()[4:8])
	n := binary.LittleEndian.Uint16(d.hdr()[8:10])
	return string(d.arena.Slice(off, uint32(n)))
}

// newDirectStorage allocates a DirectStorage header plus its path bytes
// from the arena and initializes it from a descriptor. The root path is
// rendered with forward slashes per spec.md §4.2 step 4.
func newDirectStorage(arena *shm.Arena, d config.SDCardDescriptor) (DirectStorage, error) {
	path := strings.ReplaceAll(d.RootDir, `\`, "/")
	if !utf8.ValidString(path) {
		return DirectStorage{}, errcode.New("board.newDirectStorage", errcode.PathEncoding, d.RootDir, nil)
	}

	entryOff, err := arena.Alloc(storageEntrySize)
	if err != nil {
		return DirectStorage{}, err
	}
	pathOff, err := arena.Alloc(uint32(len(path)))
	if err != nil {
		return DirectStorage{}, err
	}
	copy(arena.Slice(pathOff, uint32(len(path))), path)

	hdr := arena.Slice(entryOff, storageEntrySize)
	hdr[0] = byte(d.Bus)
	binary.LittleEndian.PutUint16(hdr[1:3], uint16(d.ChipSelectPin))
	binary.LittleEndian.PutUint32(hdr[4:8], pathOff)
	binary.LittleEndian.PutUint16(hdr[8:10], uint16(len(path)))

	return DirectStorage{arena: arena, off: entryOff}, nil
}
