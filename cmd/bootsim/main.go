//go:build !rp2040

// Command bootsim runs the boot loader against files on the host: a
// directory standing in for the SD card, a raw flash dump and a raw EEPROM
// dump. Both dumps are written back afterwards, so consecutive runs behave
// like consecutive resets.
//
// Extra flags can be supplied shell-style in BOOTSIM_FLAGS; command-line
// flags win.
//
// Exit status: 0 dispatch, 2 halt, 1 setup error.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/shlex"

	"mmcboot-go/boards"
	"mmcboot-go/boot"
	"mmcboot-go/internal/platform"
	"mmcboot-go/x/logx"
	"mmcboot-go/x/mathx"
)

const envFlags = "BOOTSIM_FLAGS"

type options struct {
	board    string
	card     string
	flash    string
	eeprom   string
	setName  string
	noVerify bool
	verbose  bool
	list     bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Getenv(envFlags), os.Stdout, os.Stderr))
}

func run(args []string, env string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, env, stderr)
	if err != nil {
		return 1
	}
	if opts.list {
		fmt.Fprintln(stdout, strings.Join(boards.Names(), "\n"))
		return 0
	}

	b, err := boards.Get(opts.board)
	if err != nil {
		fmt.Fprintln(stderr, "bootsim:", err)
		return 1
	}
	h, err := platform.OpenHost(platform.HostConfig{
		Board:      b,
		CardDir:    opts.card,
		FlashPath:  opts.flash,
		ConfigPath: opts.eeprom,
		Console:    stderr,
	})
	if err != nil {
		fmt.Fprintln(stderr, "bootsim:", err)
		return 1
	}

	if opts.setName != "" {
		name := opts.setName
		if name == "-" {
			name = ""
		}
		if err := boot.StoreName(h.Store, b.NameOffset, name); err != nil {
			fmt.Fprintln(stderr, "bootsim: set-name:", err)
			return 1
		}
	}

	log := logx.New(stderr, "boot")
	if opts.verbose {
		log.Level = logx.LevelDebug
	}
	ld, err := h.Loader(boot.WithLogger(log), boot.WithVerify(!opts.noVerify))
	if err != nil {
		fmt.Fprintln(stderr, "bootsim:", err)
		return 1
	}
	rep := ld.Run()
	boot.Execute(rep.Outcome, h.CPU)

	if err := h.Persist(); err != nil {
		fmt.Fprintln(stderr, "bootsim:", err)
		return 1
	}
	report(stdout, b, rep)
	if h.CPU.Halted {
		return 2
	}
	return 0
}

func parseArgs(args []string, env string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("bootsim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.board, "board", "atmega328p", "board layout (see -list)")
	fs.StringVar(&o.card, "card", "card", "directory standing in for the SD card root")
	fs.StringVar(&o.flash, "flash", "flash.bin", "raw program memory dump (created if missing)")
	fs.StringVar(&o.eeprom, "eeprom", "eeprom.bin", "raw configuration byte dump (created if missing)")
	fs.StringVar(&o.setName, "set-name", "", "store an image name in the EEPROM before booting (\"-\" clears it)")
	fs.BoolVar(&o.noVerify, "no-verify", false, "skip read-back after programming")
	fs.BoolVar(&o.verbose, "v", false, "log every rewritten page")
	fs.BoolVar(&o.list, "list", false, "list board layouts and exit")

	pre, err := shlex.Split(env)
	if err != nil {
		fmt.Fprintf(stderr, "bootsim: %s: %v\n", envFlags, err)
		return o, err
	}
	if err := fs.Parse(append(pre, args...)); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		err := fmt.Errorf("unexpected arguments: %v", fs.Args())
		fmt.Fprintln(stderr, "bootsim:", err)
		return o, err
	}
	return o, nil
}

func report(w io.Writer, b boards.Board, rep boot.Report) {
	if rep.Opened {
		st := rep.Stats
		fmt.Fprintf(w, "image:     %s (%s), %d bytes, %d of %d pages\n",
			rep.Name, rep.NameSource, st.ImageBytes,
			mathx.CeilDiv(uint32(st.ImageBytes), b.Geo.PageSize), st.Pages)
		fmt.Fprintf(w, "pages:     %d rewritten, %d unchanged, %d untouched\n",
			st.Rewritten, st.Unchanged, st.Absent)
		if len(st.VerifyFailed) > 0 {
			fmt.Fprintf(w, "verify:    %d page(s) failed: %v\n", len(st.VerifyFailed), st.VerifyFailed)
		}
		if len(st.Faults) > 0 {
			fmt.Fprintf(w, "faults:    %v\n", st.Faults)
		}
	} else if rep.Mounted {
		fmt.Fprintln(w, "image:     none found")
	} else {
		fmt.Fprintln(w, "image:     card not mounted")
	}
	fmt.Fprintf(w, "outcome:   %s\n", rep.Outcome)
}
