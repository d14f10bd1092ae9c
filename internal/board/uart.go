package board

import (
	"encoding/binary"

	"github.com/smce-go/runner/internal/config"
	"github.com/smce-go/runner/internal/shm"
)

// uartEntrySize is the fixed arena layout of one UartChannel header:
// baud(4) + rxOverride(1) + txOverride(1) + reserved(2) +
// rxRingOffset(4) + rxRingCap(2) + reserved(2) +
// txRingOffset(4) + txRingCap(2) + reserved(10) = 32 bytes.
const uartEntrySize = 32

// UartChannel is a configured serial channel: a baud rate, optional pin
// overrides, and two bounded byte ring buffers living in shm.
type UartChannel struct {
	arena *shm.Arena
	off   uint32
	rx    RingBuffer
	tx    RingBuffer
}

func (u UartChannel) hdr() []byte { return u.arena.Slice(u.off, uartEntrySize) }

// Baud returns the configured baud rate.
func (u UartChannel) Baud() uint32 { return binary.LittleEndian.Uint32(u.hdr()[0:4]) }

// RxOverride returns the configured rx pin override, or config.PinUnused.
func (u UartChannel) RxOverride() uint8 { return u.hdr()[4] }

// TxOverride returns the configured tx pin override, or config.PinUnused.
func (u UartChannel) TxOverride() uint8 { return u.hdr()[5] }

// Rx returns the receive ring buffer.
func (u UartChannel) Rx() RingBuffer { return u.rx }

// Tx returns the transmit ring buffer.
func (u UartChannel) Tx() RingBuffer { return u.tx }

// newUartChannel allocates a UartChannel entry plus its two ring buffers
// from the arena and initializes it from a descriptor.
func newUartChannel(arena *shm.Arena, d config.UartDescriptor) (UartChannel, error) {
	entryOff, err := arena.Alloc(uartEntrySize)
	if err != nil {
		return UartChannel{}, err
	}
	rxOff, err := arena.Alloc(ringHeaderSize + uint32(d.RxBufferLen))
	if err != nil {
		return UartChannel{}, err
	}
	txOff, err := arena.Alloc(ringHeaderSize + uint32(d.TxBufferLen))
	if err != nil {
		return UartChannel{}, err
	}

	hdr := arena.Slice(entryOff, uartEntrySize)
	binary.LittleEndian.PutUint32(hdr[0:4], d.Baud)
	hdr[4] = d.RxOverride
	hdr[5] = d.TxOverride
	binary.LittleEndian.PutUint32(hdr[8:12], rxOff)
	binary.LittleEndian.PutUint16(hdr[12:14], d.RxBufferLen)
	binary.LittleEndian.PutUint32(hdr[16:20], txOff)
	binary.LittleEndian.PutUint16(hdr[20:22], d.TxBufferLen)

	return UartChannel{
		arena: arena,
		off:   entryOff,
		rx:    newRingBuffer(arena, rxOff, d.RxBufferLen),
		tx:    newRingBuffer(arena, txOff, d.TxBufferLen),
	}, nil
}
