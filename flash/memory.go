package flash

import (
	"encoding/binary"
	"io"

	"mmcboot-go/errcode"
)

// Memory is the program memory collaborator.
//
// ReadAt is a non-destructive read of stored content at a byte address.
// ErasePage sets one page to ErasedByte; WritePage programs one page from a
// buffer of exactly one page and must follow an ErasePage of the same page.
// Both are atomic per page by hardware contract.
type Memory interface {
	io.ReaderAt
	ErasePage(p Page) error
	WritePage(p Page, data []byte) error
}

// cmpChunk bounds the stack buffer used by Equal.
const cmpChunk = 32

// Equal reports whether the stored page p matches buf byte for byte.
// It reads in small chunks so no second page-sized buffer is needed.
func Equal(m io.ReaderAt, p Page, buf []byte) (bool, error) {
	var tmp [cmpChunk]byte
	off := int64(p.Addr())
	for i := 0; i < len(buf); i += cmpChunk {
		n := len(buf) - i
		if n > cmpChunk {
			n = cmpChunk
		}
		if _, err := m.ReadAt(tmp[:n], off+int64(i)); err != nil {
			return false, errcode.Wrap(errcode.Error, "flash.compare", err)
		}
		for j := 0; j < n; j++ {
			if tmp[j] != buf[i+j] {
				return false, nil
			}
		}
	}
	return true, nil
}

// ReadWord reads a little-endian instruction word of size bytes at a.
func ReadWord(m io.ReaderAt, a Addr, size uint8) (uint32, error) {
	var b [4]byte
	if size == 0 || size > 4 {
		return 0, &errcode.E{C: errcode.InvalidGeometry, Op: "flash.read_word"}
	}
	if _, err := m.ReadAt(b[:size], int64(a)); err != nil {
		return 0, errcode.Wrap(errcode.Error, "flash.read_word", err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// Fill sets every byte of buf to ErasedByte.
func Fill(buf []byte) {
	for i := range buf {
		buf[i] = ErasedByte
	}
}
