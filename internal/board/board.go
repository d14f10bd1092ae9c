// Package board builds and exposes the in-shm representation of hardware
// state (BoardData and its pins, uart channels, storage mounts, and
// framebuffers) from an embedder-supplied BoardConfig.
//
// Grounded on the teacher's kernel/threads/sab arena/offset design, with
// the record layouts this domain actually needs (fixed-size pin/uart/
// storage/framebuffer entries instead of the teacher's module-registry
// entries).
package board

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/smce-go/runner/internal/config"
	"github.com/smce-go/runner/internal/shm"
)

func dupPinErr(id config.PinID) error {
	return fmt.Errorf("board: duplicate pin id %d declared in BoardConfig.PinIDs", id)
}

// BoardData is the root aggregate of hardware state built inside a
// ShmRegion during configure. Pin ids and framebuffer keys are unique
// within their sequences (Build rejects duplicates); uart channels and
// storage mounts are addressed by position, and storage mounts are not
// checked for distinct accessor pins. The pin sequence is sorted ascending
// by id and immutable in structure once built.
type BoardData struct {
	arena    *shm.Arena
	revision uint64

	pins         []Pin
	uarts        []UartChannel
	storages     []DirectStorage
	framebuffers []FrameBuffer
}

// Build constructs a BoardData inside arena from cfg, following spec.md
// §4.2's five-step algorithm. Duplicate pin ids and duplicate framebuffer
// keys are rejected; gpio
// drivers targeting an undeclared pin are silently skipped. revision is
// recorded verbatim (the caller, SharedBoardData, owns the monotonic
// counter across reconfigures) and exposed via Revision.
func Build(arena *shm.Arena, cfg config.BoardConfig, revision uint64) (*BoardData, error) {
	bd := &BoardData{arena: arena, revision: revision}

	ids := make([]config.PinID, len(cfg.PinIDs))
	copy(ids, cfg.PinIDs)
	slices.Sort(ids)
	for i := 1; i < len(ids); i++ {
		if ids[i] == ids[i-1] {
			return nil, dupPinErr(ids[i])
		}
	}

	bd.pins = make([]Pin, len(ids))
	for i, id := range ids {
		off, err := arena.Alloc(pinRecordSize)
		if err != nil {
			return nil, err
		}
		bd.pins[i] = newPin(arena, off, id)
	}

	for _, drv := range cfg.GPIODrivers {
		idx, found := slices.BinarySearch(ids, drv.PinID)
		if !found {
			continue // driver declarations may exceed the declared pin set
		}
		if drv.AnalogDriver != nil {
			bd.pins[idx].setAnalogCapabilities(drv.AnalogDriver.Read, drv.AnalogDriver.Write)
		}
		if drv.DigitalDriver != nil {
			bd.pins[idx].setDigitalCapabilities(drv.DigitalDriver.Read, drv.DigitalDriver.Write)
		}
	}

	for _, ud := range cfg.Uarts {
		ch, err := newUartChannel(arena, ud)
		if err != nil {
			return nil, err
		}
		bd.uarts = append(bd.uarts, ch)
	}

	for _, sd := range cfg.SDCards {
		ds, err := newDirectStorage(arena, sd)
		if err != nil {
			return nil, err
		}
		bd.storages = append(bd.storages, ds)
	}

	seenKeys := make(map[uint8]bool, len(cfg.FrameBuffers))
	for _, fb := range cfg.FrameBuffers {
		if seenKeys[fb.Key] {
			return nil, fmt.Errorf("board: duplicate framebuffer key %d declared in BoardConfig.FrameBuffers", fb.Key)
		}
		seenKeys[fb.Key] = true
		f, err := newFrameBuffer(arena, fb)
		if err != nil {
			return nil, err
		}
		bd.framebuffers = append(bd.framebuffers, f)
	}

	return bd, nil
}

// Pins returns the ordered, ascending-by-id pin sequence.
func (b *BoardData) Pins() []Pin { return b.pins }

// Pin looks up a pin by id via binary search. ok is false if no pin with
// that id was declared.
func (b *BoardData) Pin(id config.PinID) (p Pin, ok bool) {
	idx, found := slices.BinarySearchFunc(b.pins, id, func(p Pin, id config.PinID) int {
		return int(p.ID()) - int(id)
	})
	if !found {
		return Pin{}, false
	}
	return b.pins[idx], true
}

// Uarts returns the configured uart channels in config order.
func (b *BoardData) Uarts() []UartChannel { return b.uarts }

// Storages returns the configured storage mounts in config order.
func (b *BoardData) Storages() []DirectStorage { return b.storages }

// FrameBuffers returns the configured framebuffers in config order.
func (b *BoardData) FrameBuffers() []FrameBuffer { return b.framebuffers }

// Arena returns the backing arena, used by SharedBoardData bookkeeping.
func (b *BoardData) Arena() *shm.Arena { return b.arena }

// Revision is the generation counter kept by SharedBoardData: 1 after
// Configure and incremented on every Reconfigure (as run by Rebuild),
// letting an embedder detect that a BoardView it holds was captured before
// a rebuild. A fresh Configure starts again at 1, so a reset followed by
// configure is not told apart this way.
func (b *BoardData) Revision() uint64 { return b.revision }
