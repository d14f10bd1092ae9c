package board

import (
	"encoding/binary"

	"github.com/smce-go/runner/internal/config"
	"github.com/smce-go/runner/internal/shm"
)

// framebufferEntrySize is the fixed arena layout of one FrameBuffer
// header: key(1) + direction(1) + width(2) + height(2) + format(1) +
// reserved(1) + pixelOffset(4) + pixelLen(4) = 16 bytes.
const framebufferEntrySize = 16

// FrameBuffer is a keyed, directional pixel buffer. Its pixel data starts
// empty — the guest resizes it once it knows its own rendering surface.
type FrameBuffer struct {
	arena *shm.Arena
	off   uint32
}

func (f FrameBuffer) hdr() []byte { return f.arena.Slice(f.off, framebufferEntrySize) }

// Key returns the framebuffer's identifying key.
func (f FrameBuffer) Key() uint8 { return f.hdr()[0] }

// Direction returns {in, out}.
func (f FrameBuffer) Direction() config.FrameBufferDirection {
	return config.FrameBufferDirection(f.hdr()[1])
}

// Width returns the configured width in pixels.
func (f FrameBuffer) Width() uint16 { return binary.LittleEndian.Uint16(f.hdr()[2:4]) }

// Height returns the configured height in pixels.
func (f FrameBuffer) Height() uint16 { return binary.LittleEndian.Uint16(f.hdr()[4:6]) }

// Format returns the pixel format tag.
func (f FrameBuffer) Format() config.PixelFormat { return config.PixelFormat(f.hdr()[6]) }

// Pixels returns the current pixel byte buffer, which is empty until the
// guest resizes it.
func (f FrameBuffer) Pixels() []byte {
	off := binary.LittleEndian.Uint32(f.hdr()[8:12])
	n := binary.LittleEndian.Uint32(f.hdr()[12:16])
	if n == 0 {
		return nil
	}
	return f.arena.Slice(off, n)
}

// newFrameBuffer allocates a FrameBuffer header from the arena; the pixel
// buffer itself is left unallocated (offset/len zero) until resized.
func newFrameBuffer(arena *shm.Arena, d config.FrameBufferDescriptor) (FrameBuffer, error) {
	entryOff, err := arena.Alloc(framebufferEntrySize)
	if err != nil {
		return FrameBuffer{}, err
	}
	hdr := arena.Slice(entryOff, framebufferEntrySize)
	hdr[0] = d.Key
	hdr[1] = byte(d.Direction)
	binary.LittleEndian.PutUint16(hdr[2:4], d.Width)
	binary.LittleEndian.PutUint16(hdr[4:6], d.Height)
	hdr[6] = byte(d.Format)
	return FrameBuffer{arena: arena, off: entryOff}, nil
}
