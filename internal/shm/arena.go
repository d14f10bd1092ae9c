package shm

import (
	"encoding/binary"
	"sync"

	"github.com/smce-go/runner/internal/errcode"
)

// Arena is a bump allocator over a region's backing bytes. All containers
// built on top of it are addressed by offset, never by raw pointer, so a
// second process mapping the same segment at a different virtual address
// still sees a consistent graph — the offset is the only address that
// means the same thing in both processes.
//
// Layout of the backing bytes:
//
//	[0:4)   magic
//	[4:8)   generation (0 after NewArena; changed only by BumpGeneration)
//	[8:12)  bump cursor (byte offset of the next free slot)
//	[12:16) reserved
//	[16:N)  bump-allocated payload
const (
	headerSize  = 16
	arenaMagic  = uint32(0x53424431) // "SBD1"
	offGenerate = 4
	offCursor   = 8
)

// Arena allocates fixed-size byte ranges from a shared backing slice.
type Arena struct {
	mu   sync.Mutex
	buf  []byte
	size uint32
}

// NewArena wraps buf (the full region) as a fresh arena, writing the header
// and resetting the bump cursor to the first free offset.
func NewArena(buf []byte) (*Arena, error) {
	if uint32(len(buf)) < headerSize {
		return nil, errcode.New("shm.NewArena", errcode.ShmFull, "region smaller than header", nil)
	}
	a := &Arena{buf: buf, size: uint32(len(buf))}
	binary.LittleEndian.PutUint32(buf[0:4], arenaMagic)
	binary.LittleEndian.PutUint32(buf[offGenerate:offGenerate+4], 0)
	binary.LittleEndian.PutUint32(buf[offCursor:offCursor+4], headerSize)
	return a, nil
}

// OpenArena wraps an existing, already-initialized backing slice without
// resetting the cursor — used when a second process attaches to a region
// created elsewhere.
func OpenArena(buf []byte) (*Arena, error) {
	if uint32(len(buf)) < headerSize {
		return nil, errcode.New("shm.OpenArena", errcode.ShmFull, "region smaller than header", nil)
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != arenaMagic {
		return nil, errcode.New("shm.OpenArena", errcode.ShmGone, "bad arena magic", nil)
	}
	return &Arena{buf: buf, size: uint32(len(buf))}, nil
}

// Generation returns the arena's generation counter.
func (a *Arena) Generation() uint32 {
	return binary.LittleEndian.Uint32(a.buf[offGenerate : offGenerate+4])
}

// BumpGeneration increments the generation counter and returns the new
// value. The configure paths in this module do not call it: each
// (re)configure creates a fresh region whose counter starts at 0.
func (a *Arena) BumpGeneration() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	g := binary.LittleEndian.Uint32(a.buf[offGenerate:offGenerate+4]) + 1
	binary.LittleEndian.PutUint32(a.buf[offGenerate:offGenerate+4], g)
	return g
}

// Reset rewinds the bump cursor to the first free offset, discarding all
// prior allocations. The generation counter is left as it is.
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	binary.LittleEndian.PutUint32(a.buf[offCursor:offCursor+4], headerSize)
}

// Alloc reserves n bytes, 4-byte aligned, and returns their offset within
// the arena's backing bytes. Returns errcode.ShmFull if the arena is
// exhausted.
func (a *Arena) Alloc(n uint32) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cursor := binary.LittleEndian.Uint32(a.buf[offCursor : offCursor+4])
	aligned := (cursor + 3) &^ 3
	if aligned+n < aligned || aligned+n > a.size {
		return 0, errcode.New("shm.Arena.Alloc", errcode.ShmFull, "arena exhausted", nil)
	}
	binary.LittleEndian.PutUint32(a.buf[offCursor:offCursor+4], aligned+n)
	// Zero the freshly allocated range so containers start from a known state.
	for i := aligned; i < aligned+n; i++ {
		a.buf[i] = 0
	}
	return aligned, nil
}

// Used reports how many bytes of the arena are currently allocated.
func (a *Arena) Used() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return binary.LittleEndian.Uint32(a.buf[offCursor : offCursor+4])
}

// Size returns the total backing size of the arena, header included.
func (a *Arena) Size() uint32 { return a.size }

// Slice returns the backing bytes for [offset:offset+length). Callers use
// this to read/write the fixed-size records and variable-length buffers
// they allocated.
func (a *Arena) Slice(offset, length uint32) []byte {
	return a.buf[offset : offset+length]
}
