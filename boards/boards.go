// Package boards holds the build-time layout of each supported part: flash
// geometry, where the boot section starts, and the configuration byte area
// holding the optional image name.
package boards

import (
	"sort"

	"mmcboot-go/errcode"
	"mmcboot-go/flash"
)

// Board is one part's layout.
type Board struct {
	Name string
	Geo  flash.Geometry

	// ConfigSize is the size of the configuration byte area (EEPROM).
	ConfigSize int
	// NameOffset is where the stored image name starts; it is read backward.
	NameOffset int
}

// AVR parts with a 4 KiB boot section; the name sits at the last EEPROM byte.
var builtin = map[string]Board{
	"atmega328p": {
		Name:       "atmega328p",
		Geo:        flash.Geometry{PageSize: 128, BootBase: 0x7000, FlashSize: 0x8000, WordSize: 2},
		ConfigSize: 1024,
		NameOffset: 1023,
	},
	"atmega644p": {
		Name:       "atmega644p",
		Geo:        flash.Geometry{PageSize: 256, BootBase: 0xF000, FlashSize: 0x10000, WordSize: 2},
		ConfigSize: 2048,
		NameOffset: 2047,
	},
	"atmega1284p": {
		Name:       "atmega1284p",
		Geo:        flash.Geometry{PageSize: 256, BootBase: 0x1F000, FlashSize: 0x20000, WordSize: 2},
		ConfigSize: 4096,
		NameOffset: 4095,
	},
	"atmega2560": {
		Name:       "atmega2560",
		Geo:        flash.Geometry{PageSize: 256, BootBase: 0x3F000, FlashSize: 0x40000, WordSize: 2},
		ConfigSize: 4096,
		NameOffset: 4095,
	},
	// RP2040: the application slot is the first 1 MiB of the flash data
	// area (erase granule 4 KiB); the configuration block is the last erase
	// block of the chip.
	"rp2040": {
		Name:       "rp2040",
		Geo:        flash.Geometry{PageSize: 4096, BootBase: 0x100000, FlashSize: 0x100000, WordSize: 4},
		ConfigSize: 4096,
		NameOffset: 4095,
	},
}

// Lookup resolves a board by name. Tests and out-of-tree ports may replace it.
var Lookup = func(name string) (Board, bool) {
	b, ok := builtin[name]
	return b, ok
}

// Get is Lookup plus validation.
func Get(name string) (Board, error) {
	b, ok := Lookup(name)
	if !ok {
		return Board{}, &errcode.E{C: errcode.UnknownBoard, Op: "boards.get", Msg: name}
	}
	if err := b.Geo.Validate(); err != nil {
		return Board{}, err
	}
	if b.NameOffset < 0 || b.NameOffset >= b.ConfigSize {
		return Board{}, &errcode.E{C: errcode.OutOfRange, Op: "boards.get", Msg: "name offset outside config area"}
	}
	return b, nil
}

// Names lists the built-in boards, sorted.
func Names() []string {
	out := make([]string, 0, len(builtin))
	for k := range builtin {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
