package shm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaAllocIsOffsetBased(t *testing.T) {
	buf := make([]byte, 1024)
	a, err := NewArena(buf)
	require.NoError(t, err)

	off1, err := a.Alloc(16)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), off1)

	off2, err := a.Alloc(8)
	require.NoError(t, err)
	assert.Equal(t, uint32(32), off2)

	assert.Equal(t, uint32(40), a.Used())
}

func TestArenaAllocZeroesFreshMemory(t *testing.T) {
	buf := make([]byte, 64)
	a, err := NewArena(buf)
	require.NoError(t, err)

	off, err := a.Alloc(8)
	require.NoError(t, err)
	copy(a.Slice(off, 8), []byte{1, 2, 3, 4, 5, 6, 7, 8})

	a.Reset()
	off2, err := a.Alloc(8)
	require.NoError(t, err)
	assert.Equal(t, off, off2)
	for _, b := range a.Slice(off2, 8) {
		assert.Equal(t, byte(0), b)
	}
}

func TestArenaAllocShmFullOnExhaustion(t *testing.T) {
	buf := make([]byte, headerSize+8)
	a, err := NewArena(buf)
	require.NoError(t, err)

	_, err = a.Alloc(8)
	require.NoError(t, err)

	_, err = a.Alloc(1)
	require.Error(t, err)
}

func TestOpenArenaRejectsBadMagic(t *testing.T) {
	buf := make([]byte, 64)
	_, err := OpenArena(buf)
	assert.Error(t, err)
}

func TestGenerationBumpsAndPersists(t *testing.T) {
	buf := make([]byte, 64)
	a, err := NewArena(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), a.Generation())
	assert.Equal(t, uint32(1), a.BumpGeneration())

	reopened, err := OpenArena(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), reopened.Generation())
}
