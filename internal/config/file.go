package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of a runner launch file: one board, one
// sketch, and the execution context needed to invoke the build tool.
// Grounded on the policy.Spec pattern (a flat struct with yaml tags,
// decoded with yaml.Unmarshal, validated before use).
type FileConfig struct {
	FQBN          string             `yaml:"fqbn"`
	ResourceDir   string             `yaml:"resource_dir"`
	ConfigureTool string             `yaml:"configure_tool"`
	SketchSrc     string             `yaml:"sketch_src"`
	Pins          []PinID            `yaml:"pins"`
	GPIODrivers   []gpioDriverYAML   `yaml:"gpio_drivers"`
	Uarts         []uartYAML         `yaml:"uarts"`
	SDCards       []sdCardYAML       `yaml:"sd_cards"`
	FrameBuffers  []frameBufferYAML  `yaml:"frame_buffers"`
	PreprocLibs   []libraryYAML      `yaml:"preproc_libs"`
	ComplinkLibs  []libraryYAML      `yaml:"complink_libs"`
}

// gpioDriverYAML mirrors BoardData.cpp's optional analog_driver/
// digital_driver fields: a driver's analog and digital sub-descriptors are
// each present or absent in the launch file independently, so both are
// decoded as pointers rather than bare bools — an absent sub-descriptor
// must leave that component untouched, not zero it.
type gpioDriverYAML struct {
	PinID         PinID              `yaml:"pin_id"`
	AnalogDriver  *analogDriverYAML  `yaml:"analog_driver"`
	DigitalDriver *digitalDriverYAML `yaml:"digital_driver"`
}

type analogDriverYAML struct {
	Read  bool `yaml:"read"`
	Write bool `yaml:"write"`
}

type digitalDriverYAML struct {
	Read  bool `yaml:"read"`
	Write bool `yaml:"write"`
}

type uartYAML struct {
	Baud        uint32 `yaml:"baud"`
	RxOverride  uint8  `yaml:"rx_override"`
	TxOverride  uint8  `yaml:"tx_override"`
	RxBufferLen uint16 `yaml:"rx_buffer_len"`
	TxBufferLen uint16 `yaml:"tx_buffer_len"`
}

type sdCardYAML struct {
	ChipSelectPin PinID  `yaml:"chip_select_pin"`
	RootDir       string `yaml:"root_dir"`
}

type frameBufferYAML struct {
	Key       uint8  `yaml:"key"`
	Direction string `yaml:"direction"` // "in" | "out"
	Width     uint16 `yaml:"width"`
	Height    uint16 `yaml:"height"`
	Format    string `yaml:"format"` // "rgb565" | "rgb888" | "rgba8888" | "mono1"
}

type libraryYAML struct {
	Kind     string `yaml:"kind"` // "remote" | "local" | "freestanding"
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	RootDir  string `yaml:"root_dir"`
	PatchFor string `yaml:"patch_for"`
}

// LoadFile reads and decodes a FileConfig from path.
func LoadFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	if fc.FQBN == "" {
		return FileConfig{}, fmt.Errorf("config %s: fqbn is required", path)
	}
	if fc.SketchSrc == "" {
		return FileConfig{}, fmt.Errorf("config %s: sketch_src is required", path)
	}
	return fc, nil
}

// ExecutionContext extracts the toolchain discovery fields.
func (fc FileConfig) ExecutionContext() ExecutionContext {
	return ExecutionContext{ResourceDir: fc.ResourceDir, ConfigureTool: fc.ConfigureTool}
}

// BoardConfig converts the decoded YAML shapes into the domain BoardConfig.
func (fc FileConfig) BoardConfig() BoardConfig {
	bc := BoardConfig{PinIDs: fc.Pins}

	for _, d := range fc.GPIODrivers {
		drv := GPIODriver{PinID: d.PinID}
		if d.AnalogDriver != nil {
			drv.AnalogDriver = &AnalogCapabilities{Read: d.AnalogDriver.Read, Write: d.AnalogDriver.Write}
		}
		if d.DigitalDriver != nil {
			drv.DigitalDriver = &DigitalCapabilities{Read: d.DigitalDriver.Read, Write: d.DigitalDriver.Write}
		}
		bc.GPIODrivers = append(bc.GPIODrivers, drv)
	}
	for _, u := range fc.Uarts {
		bc.Uarts = append(bc.Uarts, UartDescriptor{
			Baud:        u.Baud,
			RxOverride:  u.RxOverride,
			TxOverride:  u.TxOverride,
			RxBufferLen: u.RxBufferLen,
			TxBufferLen: u.TxBufferLen,
		})
	}
	for _, s := range fc.SDCards {
		bc.SDCards = append(bc.SDCards, SDCardDescriptor{
			Bus:           StorageBusSPI,
			ChipSelectPin: s.ChipSelectPin,
			RootDir:       s.RootDir,
		})
	}
	for _, f := range fc.FrameBuffers {
		dir := FrameBufferIn
		if f.Direction == "out" {
			dir = FrameBufferOut
		}
		bc.FrameBuffers = append(bc.FrameBuffers, FrameBufferDescriptor{
			Key:       f.Key,
			Direction: dir,
			Width:     f.Width,
			Height:    f.Height,
			Format:    parsePixelFormat(f.Format),
		})
	}
	return bc
}

func parsePixelFormat(s string) PixelFormat {
	switch s {
	case "rgb888":
		return PixelFormatRGB888
	case "rgba8888":
		return PixelFormatRGBA8888
	case "mono1":
		return PixelFormatMono1
	default:
		return PixelFormatRGB565
	}
}

// SketchConfig converts the decoded YAML library lists into the domain
// SketchConfig.
func (fc FileConfig) SketchConfig() SketchConfig {
	return SketchConfig{
		PreprocLibs:  convertLibraries(fc.PreprocLibs),
		ComplinkLibs: convertLibraries(fc.ComplinkLibs),
	}
}

func convertLibraries(in []libraryYAML) []Library {
	out := make([]Library, 0, len(in))
	for _, l := range in {
		lib := Library{Name: l.Name, Version: l.Version, RootDir: l.RootDir, PatchFor: l.PatchFor}
		switch l.Kind {
		case "local":
			lib.Kind = LibraryLocal
		case "freestanding":
			lib.Kind = LibraryFreestanding
		default:
			lib.Kind = LibraryRemote
		}
		out = append(out, lib)
	}
	return out
}
