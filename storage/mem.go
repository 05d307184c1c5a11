package storage

import (
	"bytes"
	"io"
	"strings"

	"mmcboot-go/errcode"
)

// MemVolume is an in-memory volume for tests.
type MemVolume struct {
	Files    map[string][]byte
	MountErr error

	mounted bool
	Opened  []string // every name passed to Open, in order
}

var _ Volume = (*MemVolume)(nil)

// NewMemVolume returns a mountable volume holding files.
func NewMemVolume(files map[string][]byte) *MemVolume {
	return &MemVolume{Files: files}
}

func (v *MemVolume) Mount() error {
	if v.MountErr != nil {
		return errcode.Wrap(errcode.MountFail, "storage.mem.mount", v.MountErr)
	}
	v.mounted = true
	return nil
}

func (v *MemVolume) Open(name string) (io.Reader, error) {
	v.Opened = append(v.Opened, name)
	if !v.mounted {
		return nil, &errcode.E{C: errcode.NotMounted, Op: "storage.mem.open"}
	}
	for k, b := range v.Files {
		if strings.EqualFold(k, name) {
			return bytes.NewReader(b), nil
		}
	}
	return nil, &errcode.E{C: errcode.NotFound, Op: "storage.mem.open", Msg: name}
}
