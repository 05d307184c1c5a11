//go:build rp2040

package platform

import (
	"device/arm"
	"io"
	"machine"
	"runtime/volatile"
	"unsafe"

	"mmcboot-go/boards"
	"mmcboot-go/errcode"
	"mmcboot-go/flash"
	"mmcboot-go/nvconfig"
	"mmcboot-go/storage"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers/sdcard"
	"tinygo.org/x/tinyfs"
	"tinygo.org/x/tinyfs/fatfs"
)

// Card socket on SPI0 (Pico default pins), console on UART0.
const (
	sdSCK = machine.GP18
	sdSDO = machine.GP19
	sdSDI = machine.GP16
	sdCS  = machine.GP17

	consoleTX   = machine.GP0
	consoleRX   = machine.GP1
	consoleBaud = 115200

	scbVTOR = 0xE000ED08
)

// Open configures the console, LED, card socket and flash views. On error
// the returned Hardware still has a usable CPU and Console, so the caller
// can report and halt.
func Open() (*Hardware, error) {
	hw := &Hardware{CPU: cortexM{}}

	u := uartx.UART0
	_ = u.Configure(uartx.UARTConfig{BaudRate: consoleBaud, TX: consoleTX, RX: consoleRX})
	hw.Console = u

	b, err := boards.Get("rp2040")
	if err != nil {
		return hw, err
	}
	hw.Board = b

	cfgBase := machine.Flash.Size() - int64(b.ConfigSize)
	if cfgBase < int64(b.Geo.BootBase) {
		return hw, &errcode.E{C: errcode.InvalidGeometry, Op: "platform.open", Msg: "application slot overlaps config block"}
	}
	if int64(b.Geo.PageSize)%machine.Flash.EraseBlockSize() != 0 {
		return hw, &errcode.E{C: errcode.Misaligned, Op: "platform.open", Msg: "page size not a multiple of the erase block"}
	}

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	led.Low()

	hw.Mem = slotFlash{pageSize: int64(b.Geo.PageSize)}
	hw.Config = configBlock{base: cfgBase, size: b.ConfigSize}
	hw.Vol = &cardVolume{}
	hw.Indicator = pinLED{p: led}
	hw.CPU = cortexM{base: machine.FlashDataStart()}
	return hw, nil
}

// -----------------------------------------------------------------------------
// Program memory: application slot at the start of machine.Flash
// -----------------------------------------------------------------------------

type slotFlash struct{ pageSize int64 }

var _ flash.Memory = slotFlash{}

func (s slotFlash) ReadAt(p []byte, off int64) (int, error) {
	return machine.Flash.ReadAt(p, off)
}

func (s slotFlash) ErasePage(p flash.Page) error {
	ebs := machine.Flash.EraseBlockSize()
	return machine.Flash.EraseBlocks(int64(p.Addr())/ebs, s.pageSize/ebs)
}

func (s slotFlash) WritePage(p flash.Page, data []byte) error {
	if int64(len(data)) != s.pageSize {
		return &errcode.E{C: errcode.ShortBuffer, Op: "platform.write_page"}
	}
	_, err := machine.Flash.WriteAt(data, int64(p.Addr()))
	return err
}

// -----------------------------------------------------------------------------
// Configuration bytes: last erase block of machine.Flash
// -----------------------------------------------------------------------------

type configBlock struct {
	base int64
	size int
}

func (c configBlock) Size() int { return c.size }

func (c configBlock) ByteAt(off int) byte {
	if off < 0 || off >= c.size {
		return nvconfig.Erased
	}
	var b [1]byte
	if _, err := machine.Flash.ReadAt(b[:], c.base+int64(off)); err != nil {
		return nvconfig.Erased
	}
	return b[0]
}

// -----------------------------------------------------------------------------
// SD card over SPI with a FAT filesystem
// -----------------------------------------------------------------------------

type cardVolume struct {
	sd sdcard.Device
	fs *fatfs.FATFS
	f  tinyfs.File
}

var _ storage.Volume = (*cardVolume)(nil)

func (v *cardVolume) Mount() error {
	const op = "platform.card.mount"
	_ = machine.SPI0.Configure(machine.SPIConfig{
		SCK:       sdSCK,
		SDO:       sdSDO,
		SDI:       sdSDI,
		Frequency: 4 * machine.MHz,
	})
	v.sd = sdcard.New(machine.SPI0, sdSCK, sdSDO, sdSDI, sdCS)
	if err := v.sd.Configure(); err != nil {
		return errcode.Wrap(errcode.MountFail, op, err)
	}
	v.fs = fatfs.New(&v.sd)
	v.fs.Configure(&fatfs.Config{SectorSize: 512})
	if err := v.fs.Mount(); err != nil {
		return errcode.Wrap(errcode.MountFail, op, err)
	}
	return nil
}

// Open keeps one file open at a time, like the AVR Petit FatFs it replaces.
func (v *cardVolume) Open(name string) (io.Reader, error) {
	const op = "platform.card.open"
	if v.fs == nil {
		return nil, &errcode.E{C: errcode.NotMounted, Op: op}
	}
	if v.f != nil {
		_ = v.f.Close()
		v.f = nil
	}
	f, err := v.fs.Open(name)
	if err != nil {
		return nil, errcode.Wrap(errcode.NotFound, op, err)
	}
	v.f = f
	return f, nil
}

// -----------------------------------------------------------------------------
// Indicator
// -----------------------------------------------------------------------------

type pinLED struct{ p machine.Pin }

func (l pinLED) Set(on bool) { l.p.Set(on) }

// -----------------------------------------------------------------------------
// CPU: the only code that leaves Go's control flow
// -----------------------------------------------------------------------------

// cortexM enters an application whose vector table sits at base+entry.
type cortexM struct{ base uintptr }

// Jump points VTOR at the application's vector table, loads its initial
// stack pointer and branches to its reset handler. Nothing the loader set up
// needs tearing down: interrupts were never enabled for it and its stack is
// simply abandoned.
func (c cortexM) Jump(entry flash.Addr) {
	vt := c.base + uintptr(entry)
	sp := *(*uint32)(unsafe.Pointer(vt))
	pc := *(*uint32)(unsafe.Pointer(vt + 4))

	arm.DisableInterrupts()
	(*volatile.Register32)(unsafe.Pointer(uintptr(scbVTOR))).Set(uint32(vt))
	arm.AsmFull(`
		msr msp, {sp}
		bx {pc}
	`, map[string]interface{}{
		"sp": sp,
		"pc": pc,
	})
	c.Halt()
}

func (cortexM) Halt() {
	arm.DisableInterrupts()
	for {
		arm.Asm("wfi")
	}
}
