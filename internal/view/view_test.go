package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smce-go/runner/internal/board"
	"github.com/smce-go/runner/internal/config"
	"github.com/smce-go/runner/internal/shm"
)

func TestInvalidViewReturnsNothing(t *testing.T) {
	v := Of(nil)
	assert.False(t, v.Valid())
	assert.Nil(t, v.Pins())
	_, ok := v.Pin(1)
	assert.False(t, ok)
	_, ok = v.Uart(0)
	assert.False(t, ok)
	_, ok = v.Storage(0)
	assert.False(t, ok)
	_, ok = v.FrameBuffer(1)
	assert.False(t, ok)
}

func TestViewIndexedAccessors(t *testing.T) {
	arena, err := shm.NewArena(make([]byte, 4096))
	require.NoError(t, err)

	bd, err := board.Build(arena, config.BoardConfig{
		PinIDs: []config.PinID{2, 1},
		FrameBuffers: []config.FrameBufferDescriptor{
			{Key: 7, Direction: config.FrameBufferIn, Width: 8, Height: 8, Format: config.PixelFormatMono1},
		},
	}, 1)
	require.NoError(t, err)

	v := Of(bd)
	require.True(t, v.Valid())

	p, ok := v.Pin(1)
	require.True(t, ok)
	assert.Equal(t, config.PinID(1), p.ID())

	fb, ok := v.FrameBuffer(7)
	require.True(t, ok)
	assert.Equal(t, uint16(8), fb.Width())

	_, ok = v.FrameBuffer(9)
	assert.False(t, ok)
}
