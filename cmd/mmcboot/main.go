//go:build rp2040

// Command mmcboot is the device build of the boot loader: update the
// application slot from app.bin (or the name stored in the config block) on
// the SD card, then start it, or halt if the slot is blank.
package main

import (
	"mmcboot-go/boot"
	"mmcboot-go/internal/platform"
	"mmcboot-go/x/logx"
)

func main() {
	hw, err := platform.Open()
	log := logx.New(hw.Console, "boot")
	if err != nil {
		log.Error("platform setup failed", "err", err)
		hw.CPU.Halt()
		return
	}

	ld, err := hw.Loader(boot.WithLogger(log))
	if err != nil {
		log.Error("loader setup failed", "err", err)
		hw.CPU.Halt()
		return
	}
	rep := ld.Run()
	boot.Execute(rep.Outcome, hw.CPU)
}
