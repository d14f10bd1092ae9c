// Package view provides BoardView, a light read/write façade over a
// BoardData root handed to embedders. It is lifetime-bound to a live
// runner: callers obtain it from BoardRunner.View and should not retain
// it across a reset.
//
// Grounded on the teacher's bridge.go pattern of handing a thin,
// copyable accessor struct to a host-facing caller instead of the
// underlying mutable root, adapted to board.BoardData's indexed
// sequences.
package view

import (
	"github.com/smce-go/runner/internal/board"
	"github.com/smce-go/runner/internal/config"
)

// BoardView exposes indexed accessors over a BoardData root. A zero-value
// BoardView (data == nil) is the "invalid" view returned when the owning
// runner is clean or stopped, per spec.md §4.6.
type BoardView struct {
	data *board.BoardData
}

// Of constructs a BoardView over bd. Passing nil yields an invalid view.
func Of(bd *board.BoardData) BoardView {
	return BoardView{data: bd}
}

// Valid reports whether this view is backed by a live BoardData root.
func (v BoardView) Valid() bool { return v.data != nil }

// Revision returns the generation counter of the underlying BoardData, or
// 0 for an invalid view. An embedder that caches a BoardView across calls
// can compare Revision against a later BoardRunner.View().Revision() to
// detect that the board was rebuilt out from under it.
func (v BoardView) Revision() uint64 {
	if v.data == nil {
		return 0
	}
	return v.data.Revision()
}

// Pin looks up a pin by id via binary search. ok is false if the view is
// invalid or no such pin was declared.
func (v BoardView) Pin(id config.PinID) (board.Pin, bool) {
	if v.data == nil {
		return board.Pin{}, false
	}
	return v.data.Pin(id)
}

// Pins returns the ordered pin sequence, or nil if the view is invalid.
func (v BoardView) Pins() []board.Pin {
	if v.data == nil {
		return nil
	}
	return v.data.Pins()
}

// Uart returns the uart channel at position i. ok is false if the view is
// invalid or i is out of range.
func (v BoardView) Uart(i int) (board.UartChannel, bool) {
	if v.data == nil {
		return board.UartChannel{}, false
	}
	uarts := v.data.Uarts()
	if i < 0 || i >= len(uarts) {
		return board.UartChannel{}, false
	}
	return uarts[i], true
}

// Uarts returns all configured uart channels, or nil if the view is
// invalid.
func (v BoardView) Uarts() []board.UartChannel {
	if v.data == nil {
		return nil
	}
	return v.data.Uarts()
}

// Storage returns the storage mount at position i. ok is false if the
// view is invalid or i is out of range.
func (v BoardView) Storage(i int) (board.DirectStorage, bool) {
	if v.data == nil {
		return board.DirectStorage{}, false
	}
	storages := v.data.Storages()
	if i < 0 || i >= len(storages) {
		return board.DirectStorage{}, false
	}
	return storages[i], true
}

// Storages returns all configured storage mounts, or nil if the view is
// invalid.
func (v BoardView) Storages() []board.DirectStorage {
	if v.data == nil {
		return nil
	}
	return v.data.Storages()
}

// FrameBuffer looks up a framebuffer by key via linear scan (framebuffer
// counts are small; no sort invariant is defined on key order).
func (v BoardView) FrameBuffer(key uint8) (board.FrameBuffer, bool) {
	if v.data == nil {
		return board.FrameBuffer{}, false
	}
	for _, fb := range v.data.FrameBuffers() {
		if fb.Key() == key {
			return fb, true
		}
	}
	return board.FrameBuffer{}, false
}

// FrameBuffers returns all configured framebuffers, or nil if the view is
// invalid.
func (v BoardView) FrameBuffers() []board.FrameBuffer {
	if v.data == nil {
		return nil
	}
	return v.data.FrameBuffers()
}
