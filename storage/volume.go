// Package storage is the removable-storage collaborator: mount a volume,
// open a file by name, read it sequentially.
package storage

import (
	"io"
)

// Volume is a mounted (or mountable) read-only filesystem.
//
// Mount must succeed before Open is called. Open returns a reader positioned
// at offset 0. No unmount exists: the boot loader either jumps away or halts.
type Volume interface {
	Mount() error
	Open(name string) (io.Reader, error)
}

// ReadPage fills buf from r and returns how many bytes arrived. Fewer than
// len(buf) means the image is exhausted: end of file and read failures are
// both "no more data", never an error the caller must handle.
func ReadPage(r io.Reader, buf []byte) int {
	n, _ := io.ReadFull(r, buf)
	return n
}
