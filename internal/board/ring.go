package board

import (
	"encoding/binary"

	"github.com/smce-go/runner/internal/shm"
)

// ringHeaderSize is the fixed header prefixing every ring buffer's data
// bytes in the arena: head(4) + tail(4) + count(4).
const ringHeaderSize = 12

// RingBuffer is a bounded byte ring living inside shared memory, used by
// UartChannel for its rx/tx buffers. One host and one guest may operate on
// it concurrently; this type only arbitrates the host side — the guest's
// counterpart is expected to honor the same head/tail/count protocol.
type RingBuffer struct {
	arena    *shm.Arena
	off      uint32
	capacity uint16
}

func newRingBuffer(arena *shm.Arena, off uint32, capacity uint16) RingBuffer {
	return RingBuffer{arena: arena, off: off, capacity: capacity}
}

func (r RingBuffer) header() []byte { return r.arena.Slice(r.off, ringHeaderSize) }

func (r RingBuffer) data() []byte {
	return r.arena.Slice(r.off+ringHeaderSize, uint32(r.capacity))
}

// Cap returns the configured buffer capacity in bytes.
func (r RingBuffer) Cap() uint16 { return r.capacity }

// Len returns the number of bytes currently buffered.
func (r RingBuffer) Len() uint16 {
	return uint16(binary.LittleEndian.Uint32(r.header()[8:12]))
}

func (r RingBuffer) head() uint32 { return binary.LittleEndian.Uint32(r.header()[0:4]) }
func (r RingBuffer) tail() uint32 { return binary.LittleEndian.Uint32(r.header()[4:8]) }

func (r RingBuffer) setHead(v uint32)  { binary.LittleEndian.PutUint32(r.header()[0:4], v) }
func (r RingBuffer) setTail(v uint32)  { binary.LittleEndian.PutUint32(r.header()[4:8], v) }
func (r RingBuffer) setCount(v uint32) { binary.LittleEndian.PutUint32(r.header()[8:12], v) }

// Write appends p to the ring, truncating to the free space available.
// Returns the number of bytes actually written.
func (r RingBuffer) Write(p []byte) int {
	if r.capacity == 0 {
		return 0
	}
	free := int(r.capacity) - int(r.Len())
	if free <= 0 {
		return 0
	}
	n := len(p)
	if n > free {
		n = free
	}
	data := r.data()
	tail := r.tail()
	for i := 0; i < n; i++ {
		data[(int(tail)+i)%int(r.capacity)] = p[i]
	}
	r.setTail((tail + uint32(n)) % uint32(r.capacity))
	r.setCount(uint32(int(r.Len()) + n))
	return n
}

// Read drains up to len(p) bytes from the ring into p, returning the
// number of bytes read.
func (r RingBuffer) Read(p []byte) int {
	avail := int(r.Len())
	if avail == 0 || len(p) == 0 {
		return 0
	}
	n := len(p)
	if n > avail {
		n = avail
	}
	data := r.data()
	head := r.head()
	for i := 0; i < n; i++ {
		p[i] = data[(int(head)+i)%int(r.capacity)]
	}
	r.setHead((head + uint32(n)) % uint32(r.capacity))
	r.setCount(uint32(avail - n))
	return n
}
