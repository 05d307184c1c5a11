package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"mmcboot-go/errcode"
)

// DirVolume stands in for the card's root directory on the host. Names match
// case-insensitively like FAT short names; subdirectories are not searched.
type DirVolume struct {
	Root string

	mounted bool
	open    *os.File
}

var _ Volume = (*DirVolume)(nil)

func (v *DirVolume) Mount() error {
	st, err := os.Stat(v.Root)
	if err != nil {
		return errcode.Wrap(errcode.MountFail, "storage.dir.mount", err)
	}
	if !st.IsDir() {
		return &errcode.E{C: errcode.MountFail, Op: "storage.dir.mount", Msg: v.Root + " is not a directory"}
	}
	v.mounted = true
	return nil
}

// Open closes any previously opened file; like the device FAT driver, only
// one file is open at a time.
func (v *DirVolume) Open(name string) (io.Reader, error) {
	const op = "storage.dir.open"
	if !v.mounted {
		return nil, &errcode.E{C: errcode.NotMounted, Op: op}
	}
	v.Close()
	ents, err := os.ReadDir(v.Root)
	if err != nil {
		return nil, errcode.Wrap(errcode.Error, op, err)
	}
	for _, e := range ents {
		if e.IsDir() || !strings.EqualFold(e.Name(), name) {
			continue
		}
		f, err := os.Open(filepath.Join(v.Root, e.Name()))
		if err != nil {
			return nil, errcode.Wrap(errcode.NotFound, op, err)
		}
		v.open = f
		return f, nil
	}
	return nil, &errcode.E{C: errcode.NotFound, Op: op, Msg: name}
}

// Close releases the currently open file, if any.
func (v *DirVolume) Close() {
	if v.open != nil {
		_ = v.open.Close()
		v.open = nil
	}
}
