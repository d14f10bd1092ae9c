package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smce-go/runner/internal/config"
	"github.com/smce-go/runner/internal/shm"
)

func newTestArena(t *testing.T, size int) *shm.Arena {
	t.Helper()
	a, err := shm.NewArena(make([]byte, size))
	require.NoError(t, err)
	return a
}

// S1: pins [A2=7, D0=2, D1=3], gpio drivers {pin=3, digital rw}, {pin=9,
// analog r} -> pin order [2,3,7]; pin 3 has digital_read=digital_write=
// true; pins 2 and 7 have all capabilities false; no error for pin 9.
func TestScenarioS1PinSortAndDriverApplication(t *testing.T) {
	arena := newTestArena(t, 4096)
	cfg := config.BoardConfig{
		PinIDs: []config.PinID{7, 2, 3},
		GPIODrivers: []config.GPIODriver{
			{PinID: 3, DigitalDriver: &config.DigitalCapabilities{Read: true, Write: true}},
			{PinID: 9, AnalogDriver: &config.AnalogCapabilities{Read: true}},
		},
	}

	bd, err := Build(arena, cfg, 1)
	require.NoError(t, err)

	require.Len(t, bd.Pins(), 3)
	assert.Equal(t, config.PinID(2), bd.Pins()[0].ID())
	assert.Equal(t, config.PinID(3), bd.Pins()[1].ID())
	assert.Equal(t, config.PinID(7), bd.Pins()[2].ID())

	p3, ok := bd.Pin(3)
	require.True(t, ok)
	ar, aw, dr, dw := p3.Capabilities()
	assert.False(t, ar)
	assert.False(t, aw)
	assert.True(t, dr)
	assert.True(t, dw)

	for _, id := range []config.PinID{2, 7} {
		p, ok := bd.Pin(id)
		require.True(t, ok)
		ar, aw, dr, dw := p.Capabilities()
		assert.False(t, ar || aw || dr || dw)
	}

	_, ok = bd.Pin(9)
	assert.False(t, ok)
}

// S2: one uart channel (baud=9600, rx_override=255, tx_override=255,
// rx_len=64, tx_len=64) -> uart_channels has one entry with those values,
// both buffers empty.
func TestScenarioS2UartConstruction(t *testing.T) {
	arena := newTestArena(t, 4096)
	cfg := config.BoardConfig{
		Uarts: []config.UartDescriptor{
			{Baud: 9600, RxOverride: config.PinUnused, TxOverride: config.PinUnused, RxBufferLen: 64, TxBufferLen: 64},
		},
	}

	bd, err := Build(arena, cfg, 1)
	require.NoError(t, err)
	require.Len(t, bd.Uarts(), 1)

	u := bd.Uarts()[0]
	assert.Equal(t, uint32(9600), u.Baud())
	assert.Equal(t, config.PinUnused, u.RxOverride())
	assert.Equal(t, config.PinUnused, u.TxOverride())
	assert.Equal(t, uint16(64), u.Rx().Cap())
	assert.Equal(t, uint16(64), u.Tx().Cap())
	assert.Equal(t, uint16(0), u.Rx().Len())
	assert.Equal(t, uint16(0), u.Tx().Len())
}

// Two digital drivers on the same pin: the later one's digital flags win,
// per spec.md §4.2's "last write wins per capability flag" tie-break,
// applied within the digital component.
func TestGPIODriverLastWriteWinsOnSamePin(t *testing.T) {
	arena := newTestArena(t, 4096)
	cfg := config.BoardConfig{
		PinIDs: []config.PinID{5},
		GPIODrivers: []config.GPIODriver{
			{PinID: 5, DigitalDriver: &config.DigitalCapabilities{Write: true}},
			{PinID: 5, DigitalDriver: &config.DigitalCapabilities{Read: true}},
		},
	}
	bd, err := Build(arena, cfg, 1)
	require.NoError(t, err)

	p, ok := bd.Pin(5)
	require.True(t, ok)
	_, aw, dr, dw := p.Capabilities()
	assert.False(t, aw)
	assert.True(t, dr)
	assert.False(t, dw, "the later digital driver's Write=false replaces the earlier driver's Write=true")
}

// An analog-only driver followed by a digital-only driver on the same pin
// must not clobber each other's component: per BoardData.cpp, each of
// analog_driver/digital_driver is applied only when present on that
// GPIODriver, so the digital-only driver leaves the earlier analog flags
// exactly as they were.
func TestGPIODriverComponentsApplyIndependently(t *testing.T) {
	arena := newTestArena(t, 4096)
	cfg := config.BoardConfig{
		PinIDs: []config.PinID{5},
		GPIODrivers: []config.GPIODriver{
			{PinID: 5, AnalogDriver: &config.AnalogCapabilities{Read: true, Write: true}},
			{PinID: 5, DigitalDriver: &config.DigitalCapabilities{Read: true, Write: true}},
		},
	}
	bd, err := Build(arena, cfg, 1)
	require.NoError(t, err)

	p, ok := bd.Pin(5)
	require.True(t, ok)
	ar, aw, dr, dw := p.Capabilities()
	assert.True(t, ar, "digital-only driver must not reset analog read")
	assert.True(t, aw, "digital-only driver must not reset analog write")
	assert.True(t, dr)
	assert.True(t, dw)
}

func TestDuplicatePinIDsRejected(t *testing.T) {
	arena := newTestArena(t, 4096)
	cfg := config.BoardConfig{PinIDs: []config.PinID{1, 1}}
	_, err := Build(arena, cfg, 1)
	assert.Error(t, err)
}

func TestDirectStorageRootDirRenderedForwardSlash(t *testing.T) {
	arena := newTestArena(t, 4096)
	cfg := config.BoardConfig{
		SDCards: []config.SDCardDescriptor{
			{Bus: config.StorageBusSPI, ChipSelectPin: 10, RootDir: `C:\sketch\sd`},
		},
	}
	bd, err := Build(arena, cfg, 1)
	require.NoError(t, err)
	require.Len(t, bd.Storages(), 1)
	assert.Equal(t, "C:/sketch/sd", bd.Storages()[0].RootDir())
	assert.Equal(t, config.PinID(10), bd.Storages()[0].Accessor())
}

func TestFrameBufferPixelsEmptyUntilResized(t *testing.T) {
	arena := newTestArena(t, 4096)
	cfg := config.BoardConfig{
		FrameBuffers: []config.FrameBufferDescriptor{
			{Key: 1, Direction: config.FrameBufferOut, Width: 16, Height: 16, Format: config.PixelFormatRGB565},
		},
	}
	bd, err := Build(arena, cfg, 1)
	require.NoError(t, err)
	require.Len(t, bd.FrameBuffers(), 1)
	fb := bd.FrameBuffers()[0]
	assert.Equal(t, uint16(16), fb.Width())
	assert.Nil(t, fb.Pixels())
}
