// Package flash models the device's self-programmable program memory: its
// page geometry, the bounded page handle used for every erase and write, and
// the memory collaborator the boot loader drives.
package flash

import (
	"mmcboot-go/errcode"
	"mmcboot-go/x/conv"
	"mmcboot-go/x/mathx"
)

// ErasedByte is what an erased, unprogrammed flash cell reads as.
const ErasedByte byte = 0xFF

// Addr is a byte address in program memory.
type Addr uint32

func (a Addr) String() string {
	var buf [12]byte
	return string(conv.AddrHex(buf[:], uint32(a)))
}

// Geometry describes one device's program memory.
//
// Pages [0, BootBase) form the update range; the boot loader lives at
// BootBase and above and is never handed out as a Page.
type Geometry struct {
	PageSize  uint32 // erase/program granule, power of two
	BootBase  Addr   // first byte of the boot loader section
	FlashSize uint32 // total program memory, >= BootBase
	WordSize  uint8  // instruction word width in bytes: 1, 2 or 4
}

// NewGeometry validates and returns a Geometry.
func NewGeometry(pageSize uint32, bootBase Addr, flashSize uint32, wordSize uint8) (Geometry, error) {
	g := Geometry{PageSize: pageSize, BootBase: bootBase, FlashSize: flashSize, WordSize: wordSize}
	return g, g.Validate()
}

// Validate checks the invariants every other method relies on.
func (g Geometry) Validate() error {
	const op = "flash.geometry"
	switch {
	case !mathx.IsPow2(g.PageSize):
		return &errcode.E{C: errcode.InvalidGeometry, Op: op, Msg: "page size not a power of two"}
	case g.BootBase == 0:
		return &errcode.E{C: errcode.InvalidGeometry, Op: op, Msg: "empty update range"}
	case !mathx.IsAligned(uint32(g.BootBase), g.PageSize):
		return &errcode.E{C: errcode.Misaligned, Op: op, Msg: "boot base not page aligned"}
	case g.FlashSize < uint32(g.BootBase):
		return &errcode.E{C: errcode.InvalidGeometry, Op: op, Msg: "flash smaller than boot base"}
	case g.WordSize != 1 && g.WordSize != 2 && g.WordSize != 4:
		return &errcode.E{C: errcode.InvalidGeometry, Op: op, Msg: "word size must be 1, 2 or 4"}
	}
	return nil
}

// Pages returns the number of pages in the update range.
func (g Geometry) Pages() int { return int(uint32(g.BootBase) / g.PageSize) }

// ErasedWord is the instruction word an erased cell pair/quad reads as.
func (g Geometry) ErasedWord() uint32 {
	if g.WordSize >= 4 {
		return 0xFFFFFFFF
	}
	return uint32(1)<<(8*uint32(g.WordSize)) - 1
}

// Page returns the handle for the n-th page of the update range.
func (g Geometry) Page(n int) (Page, error) {
	if n < 0 || n >= g.Pages() {
		return Page{}, &errcode.E{C: errcode.OutOfRange, Op: "flash.page"}
	}
	return Page{addr: Addr(uint32(n) * g.PageSize)}, nil
}

// PageOf returns the page containing a, if a lies in the update range.
func (g Geometry) PageOf(a Addr) (Page, error) {
	if a >= g.BootBase {
		return Page{}, &errcode.E{C: errcode.OutOfRange, Op: "flash.page_of", Msg: a.String()}
	}
	return Page{addr: Addr(mathx.AlignDown(uint32(a), g.PageSize))}, nil
}

// Page is a page-aligned address strictly below the boot base of the
// Geometry that produced it. Only Geometry.Page and Geometry.PageOf make one,
// so every erase or write target has passed the range check. The zero Page
// is address 0, which is in range for every valid Geometry.
type Page struct {
	addr Addr
}

// Addr returns the page's first byte address.
func (p Page) Addr() Addr { return p.addr }

func (p Page) String() string { return p.addr.String() }
