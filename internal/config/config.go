// Package config holds the embedder-declared value types the core
// consumes: board hardware configuration, sketch build configuration, and
// execution-context discovery. Only the fields the runner actually reads
// are modelled here — these are inputs owned by the embedder, not part of
// the core's own state.
package config

// PinID identifies a board pin. Pins are addressed by this 16-bit id.
type PinID uint16

// AnalogCapabilities is the analog component of a GPIODriver. Its presence
// on a GPIODriver (not its field values) is what signals "this driver
// contributes an analog capability" — a driver with no AnalogDriver leaves
// a pin's existing analog flags untouched.
type AnalogCapabilities struct {
	Read  bool
	Write bool
}

// DigitalCapabilities is the digital component of a GPIODriver, with the
// same presence-means-contributes semantics as AnalogCapabilities.
type DigitalCapabilities struct {
	Read  bool
	Write bool
}

// GPIODriver declares what a configured pin can do. A driver may contribute
// analog, digital, both, or neither capability, and each component is
// applied independently: a digital-only driver leaves a pin's analog flags
// exactly as a prior driver left them, and vice versa. pin_id targets whose
// id is absent from the declared pin list are silently ignored at
// configure time.
type GPIODriver struct {
	PinID         PinID
	AnalogDriver  *AnalogCapabilities
	DigitalDriver *DigitalCapabilities
}

// UartDescriptor configures one UartChannel. RxOverride/TxOverride use
// 0xFF (PinUnused) to mean "use the board default pin".
type UartDescriptor struct {
	Baud        uint32
	RxOverride  uint8
	TxOverride  uint8
	RxBufferLen uint16
	TxBufferLen uint16
}

// PinUnused is the sentinel value for UartDescriptor.{Rx,Tx}Override.
const PinUnused uint8 = 0xFF

// StorageBus enumerates the bus a DirectStorage mount is attached to.
// SPI is the only bus implemented today.
type StorageBus uint8

const (
	StorageBusSPI StorageBus = iota
)

// SDCardDescriptor configures one virtual SD mount.
type SDCardDescriptor struct {
	Bus           StorageBus
	ChipSelectPin PinID
	RootDir       string
}

// FrameBufferDirection is the data-flow direction of a FrameBuffer.
type FrameBufferDirection uint8

const (
	FrameBufferIn FrameBufferDirection = iota
	FrameBufferOut
)

// PixelFormat tags the byte layout of a FrameBuffer's pixel data.
type PixelFormat uint8

const (
	PixelFormatRGB565 PixelFormat = iota
	PixelFormatRGB888
	PixelFormatRGBA8888
	PixelFormatMono1
)

// FrameBufferDescriptor configures one FrameBuffer slot.
type FrameBufferDescriptor struct {
	Key       uint8
	Direction FrameBufferDirection
	Width     uint16
	Height    uint16
	Format    PixelFormat
}

// BoardConfig is the embedder-supplied hardware description consumed by
// configure to build the in-shm BoardData aggregate.
type BoardConfig struct {
	PinIDs       []PinID
	GPIODrivers  []GPIODriver
	Uarts        []UartDescriptor
	SDCards      []SDCardDescriptor
	FrameBuffers []FrameBufferDescriptor
}

// LibraryKind discriminates the Library sum type.
type LibraryKind uint8

const (
	LibraryRemote LibraryKind = iota
	LibraryLocal
	LibraryFreestanding
)

// Library is a tagged union over {Remote, Local, Freestanding}, per
// spec.md §9 "Discriminated library variant". Consumers dispatch on Kind;
// the other fields are meaningful only for the matching kind.
type Library struct {
	Kind LibraryKind

	// Remote
	Name    string
	Version string

	// Local
	RootDir  string
	PatchFor string // non-empty => this Local is a patch targeting the remote library named PatchFor
}

// SketchConfig is the embedder-supplied sketch build configuration.
type SketchConfig struct {
	PreprocLibs  []Library
	ComplinkLibs []Library
}

// ExecutionContext discovers the toolchain and resource paths the
// BuildDriver needs; only the fields the core consumes are modelled.
type ExecutionContext struct {
	ResourceDir    string // where the SMCE runtime scripts live
	ConfigureTool  string // absolute path to the build-configure tool
}
