// Package sbd pairs a shm.Region with a board.BoardData root and the
// identifying metadata (fqbn, sketch id) a guest process needs to attach.
// This is C3 in the design: SharedBoardData.
package sbd

import (
	"sync"

	"github.com/smce-go/runner/internal/board"
	"github.com/smce-go/runner/internal/config"
	"github.com/smce-go/runner/internal/shm"
)

// minRegionSize is a floor under the estimated size so small boards still
// get comfortable headroom for arena alignment padding.
const minRegionSize = 16 * 1024

// SharedBoardData is configured once per runner lifecycle and reset
// (destroyed) at the same points the runner resets.
type SharedBoardData struct {
	mu       sync.Mutex
	region   *shm.Region
	board    *board.BoardData
	fqbn     string
	sketchID uint64
	revision uint64
}

// Configure creates a fresh named region sized for conf, builds a
// BoardData root inside it, and records fqbn for downstream use by the
// BuildDriver.
func Configure(fqbn string, conf config.BoardConfig) (*SharedBoardData, error) {
	id := shm.NewSketchID()
	name := shm.SegmentName(id)

	region, err := shm.Create(name, estimateSize(conf))
	if err != nil {
		return nil, err
	}

	const firstRevision = 1
	bd, err := board.Build(region.Arena(), conf, firstRevision)
	if err != nil {
		_ = region.Destroy()
		return nil, err
	}

	return &SharedBoardData{region: region, board: bd, fqbn: fqbn, sketchID: id, revision: firstRevision}, nil
}

// Reset destroys the region and forgets it. A subsequent Configure may
// re-use the same logical runner with a fresh sketch id.
func (s *SharedBoardData) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.region == nil {
		return nil
	}
	err := s.region.Destroy()
	s.region = nil
	s.board = nil
	return err
}

// Reconfigure destroys and re-creates the region under the same sketch
// id and fqbn, rebuilding a fresh BoardData root from conf. Used by
// Rebuild, which preserves sketch identity across a reconfigure the way
// a fresh Configure does not.
func (s *SharedBoardData) Reconfigure(conf config.BoardConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.region != nil {
		_ = s.region.Destroy()
		s.region = nil
		s.board = nil
	}

	name := shm.SegmentName(s.sketchID)
	region, err := shm.Create(name, estimateSize(conf))
	if err != nil {
		return err
	}

	s.revision++
	bd, err := board.Build(region.Arena(), conf, s.revision)
	if err != nil {
		_ = region.Destroy()
		return err
	}

	s.region = region
	s.board = bd
	return nil
}

// BoardData returns a handle to the BoardData root. Only valid while the
// region is alive (i.e. between Configure and Reset).
func (s *SharedBoardData) BoardData() *board.BoardData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board
}

// Name returns the shm segment name, "SMCE-Runner-{sketch_id}".
func (s *SharedBoardData) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.region == nil {
		return ""
	}
	return s.region.Name()
}

// FQBN returns the fully-qualified board name recorded at Configure.
func (s *SharedBoardData) FQBN() string { return s.fqbn }

// SketchID returns the monotonic sketch id this instance was configured
// with.
func (s *SharedBoardData) SketchID() uint64 { return s.sketchID }

// Revision returns the current BoardData generation counter, bumped once
// per Configure/Reconfigure.
func (s *SharedBoardData) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// estimateSize computes a region size large enough to hold the serialized
// BoardData plus all nested buffers, with headroom for arena alignment.
func estimateSize(conf config.BoardConfig) uint32 {
	const (
		headerSize      = 16
		pinRecordSize   = 8
		uartEntrySize   = 32
		ringHeaderSize  = 12
		storageEntrySize = 16
		fbEntrySize     = 16
	)

	size := uint32(headerSize)
	size += uint32(len(conf.PinIDs)) * pinRecordSize

	for _, u := range conf.Uarts {
		size += uartEntrySize
		size += ringHeaderSize + uint32(u.RxBufferLen)
		size += ringHeaderSize + uint32(u.TxBufferLen)
	}

	for _, sd := range conf.SDCards {
		size += storageEntrySize + uint32(len(sd.RootDir))
	}

	size += uint32(len(conf.FrameBuffers)) * fbEntrySize

	// Alignment padding (4 bytes per allocation) plus 25% slack.
	size += uint32(len(conf.PinIDs)+len(conf.Uarts)*3+len(conf.SDCards)*2+len(conf.FrameBuffers)) * 4
	size += size / 4

	if size < minRegionSize {
		size = minRegionSize
	}
	return size
}
