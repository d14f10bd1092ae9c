//go:build unix

package shm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionCreateOpenDestroy(t *testing.T) {
	name := SegmentName(NewSketchID())
	r, err := Create(name, 4096)
	require.NoError(t, err)
	defer func() { _ = r.Destroy() }()

	assert.Equal(t, name, r.Name())
	off, err := r.Arena().Alloc(16)
	require.NoError(t, err)

	copy(r.Arena().Slice(off, 16), []byte("0123456789abcdef"))

	opened, err := Open(name)
	require.NoError(t, err)
	defer func() { _ = opened.Close() }()

	assert.Equal(t, []byte("0123456789abcdef"), opened.Arena().Slice(off, 16))
}

func TestRegionCreateCollisionFails(t *testing.T) {
	name := SegmentName(NewSketchID())
	r, err := Create(name, 4096)
	require.NoError(t, err)
	defer func() { _ = r.Destroy() }()

	_, err = Create(name, 4096)
	assert.Error(t, err)
}

func TestOpenAfterDestroyFailsWithShmGone(t *testing.T) {
	name := SegmentName(NewSketchID())
	r, err := Create(name, 4096)
	require.NoError(t, err)
	require.NoError(t, r.Destroy())

	_, err = Open(name)
	assert.Error(t, err)
}
