package board

import (
	"encoding/binary"

	"github.com/smce-go/runner/internal/config"
	"github.com/smce-go/runner/internal/shm"
)

// pinRecordSize is the fixed, offset-addressed layout of one pin in the
// arena: capability bitmask(1) + mode(1) + lastWritten(2) + lastSampled(2)
// + id(2), 8 bytes total.
const pinRecordSize = 8

const (
	capAnalogRead = 1 << iota
	capAnalogWrite
	capDigitalRead
	capDigitalWrite
)

// PinMode is the pin's currently configured discrete mode.
type PinMode uint8

const (
	ModeUnconfigured PinMode = iota
	ModeInputDigital
	ModeOutputDigital
	ModeInputPullup
	ModeInputAnalog
	ModeOutputAnalog
)

// Pin is a handle onto one 8-byte arena-backed pin record. Copying a Pin
// copies the handle, not the data — all copies observe the same
// underlying bytes, matching the "light, copyable façade" style used by
// BoardView.
type Pin struct {
	arena *shm.Arena
	off   uint32
}

func newPin(arena *shm.Arena, off uint32, id config.PinID) Pin {
	p := Pin{arena: arena, off: off}
	binary.LittleEndian.PutUint16(p.rec()[6:8], uint16(id))
	return p
}

func (p Pin) rec() []byte { return p.arena.Slice(p.off, pinRecordSize) }

// ID returns the pin's identity.
func (p Pin) ID() config.PinID {
	return config.PinID(binary.LittleEndian.Uint16(p.rec()[6:8]))
}

// Capabilities returns the four independent capability flags.
func (p Pin) Capabilities() (analogRead, analogWrite, digitalRead, digitalWrite bool) {
	bits := p.rec()[0]
	return bits&capAnalogRead != 0, bits&capAnalogWrite != 0, bits&capDigitalRead != 0, bits&capDigitalWrite != 0
}

// setAnalogCapabilities overwrites only the analog capability bits, per
// spec.md §4.2's "last write wins per capability flag" tie-break — a
// driver that never declares an AnalogDriver must not call this, leaving
// the digital bits (and a prior driver's analog bits, if this one does
// call it) untouched.
func (p Pin) setAnalogCapabilities(read, write bool) {
	bits := p.rec()[0] &^ (capAnalogRead | capAnalogWrite)
	if read {
		bits |= capAnalogRead
	}
	if write {
		bits |= capAnalogWrite
	}
	p.rec()[0] = bits
}

// setDigitalCapabilities overwrites only the digital capability bits,
// mirroring setAnalogCapabilities.
func (p Pin) setDigitalCapabilities(read, write bool) {
	bits := p.rec()[0] &^ (capDigitalRead | capDigitalWrite)
	if read {
		bits |= capDigitalRead
	}
	if write {
		bits |= capDigitalWrite
	}
	p.rec()[0] = bits
}

// Mode returns the pin's current discrete mode.
func (p Pin) Mode() PinMode { return PinMode(p.rec()[1]) }

// SetMode sets the pin's discrete mode.
func (p Pin) SetMode(m PinMode) { p.rec()[1] = byte(m) }

// LastWritten returns the last value written to the pin.
func (p Pin) LastWritten() uint16 { return binary.LittleEndian.Uint16(p.rec()[2:4]) }

// SetLastWritten records a value written to the pin.
func (p Pin) SetLastWritten(v uint16) { binary.LittleEndian.PutUint16(p.rec()[2:4], v) }

// LastSampled returns the last value sampled from the pin.
func (p Pin) LastSampled() uint16 { return binary.LittleEndian.Uint16(p.rec()[4:6]) }

// SetLastSampled records a value sampled from the pin.
func (p Pin) SetLastSampled(v uint16) { binary.LittleEndian.PutUint16(p.rec()[4:6], v) }
