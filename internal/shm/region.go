// Package shm owns a named shared-memory segment and the offset-based
// bump arena used to allocate the containers nested inside it (BoardData
// and its pins, uart ring buffers, storage paths, and framebuffers).
//
// Grounded on the teacher's kernel/threads/sab package: the mmap-backed
// MemoryProvider (hal_native.go), the fixed-offset header layout
// (layout.go), and the bump/epoch allocation style (epoch_allocator.go),
// adapted from a single-process SharedArrayBuffer to a named, two-process
// OS shared-memory segment.
package shm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/smce-go/runner/internal/errcode"
)

// nextSketchID seeds the sketch-id sequence from a wall-clock timestamp at
// process start and increments monotonically thereafter (spec.md §6.1,
// §9 "Sketch id seeding"). It is package-level because the identifier
// space is a process-wide resource, matching the spec's sketch_id being
// seeded once per process.
var nextSketchID atomic.Uint64

// seedSketchID is called once, from init, with the real wall clock. Tests
// that need determinism construct Regions with an explicit name instead of
// going through NewSketchID.
func seedSketchID(nowUnixSeconds uint64) {
	nextSketchID.Store(nowUnixSeconds)
}

// NewSketchID returns the next monotonically increasing sketch id.
func NewSketchID() uint64 {
	return nextSketchID.Add(1)
}

// SegmentName renders the well-known shm segment name for a sketch id.
func SegmentName(sketchID uint64) string {
	return fmt.Sprintf("SMCE-Runner-%d", sketchID)
}

// backend abstracts the OS-specific shared-memory primitive so Region
// itself stays platform-independent. Implementations live in
// region_unix.go / region_windows.go.
type backend interface {
	Bytes() []byte
	Close() error
	Unlink() error
}

// Region owns a named OS shared-memory segment and the arena allocating
// inside it. Name must outlive the child process that attaches to it.
type Region struct {
	mu      sync.Mutex
	name    string
	backend backend
	arena   *Arena
	gone    bool
}

// Create allocates a new named segment of size bytes and initializes a
// fresh arena inside it. size must be large enough to hold the serialized
// BoardData plus all nested buffers; callers size this from the
// BoardConfig before calling Create.
func Create(name string, size uint32) (*Region, error) {
	b, err := createBackend(name, size)
	if err != nil {
		return nil, errcode.New("shm.Create", errcode.ShmFull, "create segment "+name, err)
	}
	arena, err := NewArena(b.Bytes())
	if err != nil {
		_ = b.Close()
		_ = b.Unlink()
		return nil, err
	}
	return &Region{name: name, backend: b, arena: arena}, nil
}

// Open attaches to an existing named segment created by another process
// (or earlier in this one), without resetting its arena.
func Open(name string) (*Region, error) {
	b, err := openBackend(name)
	if err != nil {
		return nil, errcode.New("shm.Open", errcode.ShmGone, "open segment "+name, err)
	}
	arena, err := OpenArena(b.Bytes())
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return &Region{name: name, backend: b, arena: arena}, nil
}

// Name returns the segment's well-known name.
func (r *Region) Name() string { return r.name }

// Arena returns the region's allocator. Destroy does not clear it: after
// Destroy the returned arena still refers to the unmapped backing bytes.
// Gone reports whether Destroy has run.
func (r *Region) Arena() *Arena { return r.arena }

// Gone reports whether Destroy has already unlinked this region.
func (r *Region) Gone() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gone
}

// Close unmaps the segment without unlinking its name, for a process that
// only attached via Open and does not own the segment's lifetime.
func (r *Region) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone {
		return nil
	}
	return r.backend.Close()
}

// Destroy unmaps and unlinks the segment. A concurrent attach by name
// after Destroy fails with errcode.ShmGone (enforced by the OS unlink
// semantics the backend implements). Idempotent.
func (r *Region) Destroy() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone {
		return nil
	}
	r.gone = true
	closeErr := r.backend.Close()
	unlinkErr := r.backend.Unlink()
	if closeErr != nil {
		return errcode.New("shm.Destroy", errcode.ShmGone, "close "+r.name, closeErr)
	}
	if unlinkErr != nil {
		return errcode.New("shm.Destroy", errcode.ShmGone, "unlink "+r.name, unlinkErr)
	}
	return nil
}
