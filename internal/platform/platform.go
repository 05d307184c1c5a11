// Package platform wires the boot loader's collaborators for one build:
// real hardware under the rp2040 tag, files and a simulated flash on hosts.
package platform

import (
	"io"

	"mmcboot-go/boards"
	"mmcboot-go/boot"
	"mmcboot-go/flash"
	"mmcboot-go/nvconfig"
	"mmcboot-go/storage"
)

// Hardware is everything boot.New and boot.Execute need.
type Hardware struct {
	Board     boards.Board
	Mem       flash.Memory
	Vol       storage.Volume
	Config    nvconfig.Store
	CPU       boot.CPU
	Indicator boot.Indicator // nil when the board has no status LED
	Console   io.Writer
}

// Loader builds the boot loader for hw with the given extra options.
func (hw *Hardware) Loader(opts ...boot.Option) (*boot.Loader, error) {
	if hw.Indicator != nil {
		opts = append([]boot.Option{boot.WithIndicator(hw.Indicator)}, opts...)
	}
	return boot.New(hw.Board.Geo, hw.Mem, hw.Vol, hw.Config, hw.Board.NameOffset, opts...)
}
