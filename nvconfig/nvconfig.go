// Package nvconfig is the persistent configuration byte area (EEPROM on AVR
// parts, a reserved flash block on others). The boot loader only reads it.
package nvconfig

import (
	"io"
	"os"

	"mmcboot-go/errcode"
)

// Erased is what unwritten configuration bytes read as.
const Erased byte = 0xFF

// Store is byte-addressed configuration storage. ByteAt returns Erased for
// offsets outside [0, Size()).
type Store interface {
	Size() int
	ByteAt(off int) byte
}

// Writer is a Store that can also be written, used for provisioning.
type Writer interface {
	Store
	SetByte(off int, b byte) error
}

// MemStore is a RAM-backed Store, optionally persisted to a raw dump file.
type MemStore struct {
	b []byte
}

var _ Writer = (*MemStore)(nil)

// NewMemStore returns an erased store of size bytes.
func NewMemStore(size int) *MemStore {
	s := &MemStore{b: make([]byte, size)}
	for i := range s.b {
		s.b[i] = Erased
	}
	return s
}

func (s *MemStore) Size() int { return len(s.b) }

func (s *MemStore) ByteAt(off int) byte {
	if off < 0 || off >= len(s.b) {
		return Erased
	}
	return s.b[off]
}

func (s *MemStore) SetByte(off int, b byte) error {
	if off < 0 || off >= len(s.b) {
		return &errcode.E{C: errcode.OutOfRange, Op: "nvconfig.set"}
	}
	s.b[off] = b
	return nil
}

// Bytes exposes the raw contents.
func (s *MemStore) Bytes() []byte { return s.b }

// Load replaces the contents from r; missing bytes stay Erased.
func (s *MemStore) Load(r io.Reader) error {
	for i := range s.b {
		s.b[i] = Erased
	}
	if _, err := io.ReadFull(r, s.b); err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return errcode.Wrap(errcode.Error, "nvconfig.load", err)
	}
	return nil
}

// LoadFile loads a raw dump; a missing file leaves the store erased.
func (s *MemStore) LoadFile(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s.Load(eofReader{})
	}
	if err != nil {
		return errcode.Wrap(errcode.Error, "nvconfig.load", err)
	}
	defer f.Close()
	return s.Load(f)
}

// SaveFile writes the raw contents to path.
func (s *MemStore) SaveFile(path string) error {
	if err := os.WriteFile(path, s.b, 0o644); err != nil {
		return errcode.Wrap(errcode.Error, "nvconfig.save", err)
	}
	return nil
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
