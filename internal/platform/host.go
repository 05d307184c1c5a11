//go:build !rp2040

package platform

import (
	"io"
	"os"

	"mmcboot-go/boards"
	"mmcboot-go/flash"
	"mmcboot-go/nvconfig"
	"mmcboot-go/storage"
)

// HostConfig points the simulator at its backing files.
type HostConfig struct {
	Board      boards.Board
	CardDir    string // stands in for the card root
	FlashPath  string // raw program memory dump; missing means blank
	ConfigPath string // raw EEPROM dump; missing means erased
	Console    io.Writer
}

// Host is the simulated device.
type Host struct {
	Hardware
	Sim   *flash.Sim
	Store *nvconfig.MemStore
	CPU   *HostCPU
	Card  *storage.DirVolume

	cfg HostConfig
}

// OpenHost loads the flash and config dumps and returns a ready Hardware.
func OpenHost(cfg HostConfig) (*Host, error) {
	sim, err := flash.NewSim(cfg.Board.Geo)
	if err != nil {
		return nil, err
	}
	if cfg.FlashPath != "" {
		if err := sim.LoadFile(cfg.FlashPath); err != nil {
			return nil, err
		}
	}
	store := nvconfig.NewMemStore(cfg.Board.ConfigSize)
	if cfg.ConfigPath != "" {
		if err := store.LoadFile(cfg.ConfigPath); err != nil {
			return nil, err
		}
	}
	if cfg.Console == nil {
		cfg.Console = os.Stderr
	}
	card := &storage.DirVolume{Root: cfg.CardDir}
	cpu := &HostCPU{}
	h := &Host{
		Hardware: Hardware{
			Board:     cfg.Board,
			Mem:       sim,
			Vol:       card,
			Config:    store,
			CPU:       cpu,
			Indicator: &HostLED{W: cfg.Console},
			Console:   cfg.Console,
		},
		Sim:   sim,
		Store: store,
		CPU:   cpu,
		Card:  card,
		cfg:   cfg,
	}
	return h, nil
}

// Persist writes the flash and config dumps back and closes the card.
func (h *Host) Persist() error {
	h.Card.Close()
	if h.cfg.FlashPath != "" {
		if err := h.Sim.SaveFile(h.cfg.FlashPath); err != nil {
			return err
		}
	}
	if h.cfg.ConfigPath != "" {
		if err := h.Store.SaveFile(h.cfg.ConfigPath); err != nil {
			return err
		}
	}
	return nil
}

// ----------------------------- CPU (host) ------------------------------------

// HostCPU records the terminal action instead of performing it.
type HostCPU struct {
	Jumped bool
	Entry  flash.Addr
	Halted bool
}

func (c *HostCPU) Jump(entry flash.Addr) {
	c.Jumped = true
	c.Entry = entry
}

func (c *HostCPU) Halt() { c.Halted = true }

// ----------------------------- LED (host) ------------------------------------

// HostLED prints indicator changes to W.
type HostLED struct {
	W  io.Writer
	On bool
}

func (l *HostLED) Set(on bool) {
	l.On = on
	if l.W == nil {
		return
	}
	if on {
		_, _ = io.WriteString(l.W, "[led] on\n")
	} else {
		_, _ = io.WriteString(l.W, "[led] off\n")
	}
}
