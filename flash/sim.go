package flash

import (
	"io"
	"os"

	"mmcboot-go/errcode"
)

// Sim is a host-side program memory. It holds the whole flash, boot loader
// section included, enforces erase-before-write per page and records every
// erase and write so tests can check what the boot loader touched.
type Sim struct {
	geo    Geometry
	mem    []byte
	erased []bool // per update-range page: erased and not yet programmed

	Erases []Addr
	Writes []Addr

	// Faulty pages are programmed with their first byte inverted, standing in
	// for a cell that did not take.
	Faulty map[Addr]bool
}

var _ Memory = (*Sim)(nil)

// NewSim returns a blank (fully erased) device with geometry g.
func NewSim(g Geometry) (*Sim, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	s := &Sim{
		geo:    g,
		mem:    make([]byte, g.FlashSize),
		erased: make([]bool, g.Pages()),
	}
	Fill(s.mem)
	for i := range s.erased {
		s.erased[i] = true
	}
	return s, nil
}

// Geometry returns the simulated device's geometry.
func (s *Sim) Geometry() Geometry { return s.geo }

// Bytes exposes the raw memory. Callers must not change its length.
func (s *Sim) Bytes() []byte { return s.mem }

// Poke overwrites memory at a without erase rules, like an external
// programmer would. Affected pages lose their erased state unless the data
// leaves them all ErasedByte.
func (s *Sim) Poke(a Addr, data []byte) error {
	if int(a)+len(data) > len(s.mem) {
		return &errcode.E{C: errcode.OutOfRange, Op: "flash.sim.poke", Msg: a.String()}
	}
	copy(s.mem[a:], data)
	s.resync()
	return nil
}

// ResetCounters clears the erase/write records.
func (s *Sim) ResetCounters() {
	s.Erases = s.Erases[:0]
	s.Writes = s.Writes[:0]
}

// ---- Memory ----

func (s *Sim) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(s.mem)) {
		return 0, io.EOF
	}
	n := copy(p, s.mem[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *Sim) ErasePage(p Page) error {
	idx, err := s.index(p, "flash.sim.erase")
	if err != nil {
		return err
	}
	a := p.Addr()
	Fill(s.mem[a : uint32(a)+s.geo.PageSize])
	s.erased[idx] = true
	s.Erases = append(s.Erases, a)
	return nil
}

func (s *Sim) WritePage(p Page, data []byte) error {
	const op = "flash.sim.write"
	idx, err := s.index(p, op)
	if err != nil {
		return err
	}
	if uint32(len(data)) != s.geo.PageSize {
		return &errcode.E{C: errcode.ShortBuffer, Op: op, Msg: p.String()}
	}
	if !s.erased[idx] {
		return &errcode.E{C: errcode.NotErased, Op: op, Msg: p.String()}
	}
	a := p.Addr()
	dst := s.mem[a : uint32(a)+s.geo.PageSize]
	copy(dst, data)
	if s.Faulty[a] {
		dst[0] ^= 0xFF
	}
	s.erased[idx] = false
	s.Writes = append(s.Writes, a)
	return nil
}

func (s *Sim) index(p Page, op string) (int, error) {
	a := p.Addr()
	if a >= s.geo.BootBase || uint32(a)%s.geo.PageSize != 0 {
		return 0, &errcode.E{C: errcode.OutOfRange, Op: op, Msg: a.String()}
	}
	return int(uint32(a) / s.geo.PageSize), nil
}

func (s *Sim) resync() {
	ps := s.geo.PageSize
	for i := range s.erased {
		blank := true
		for _, b := range s.mem[uint32(i)*ps : uint32(i+1)*ps] {
			if b != ErasedByte {
				blank = false
				break
			}
		}
		s.erased[i] = blank
	}
}

// ---- raw image files ----

// Load replaces memory with the bytes read from r. A short source leaves the
// remainder erased; bytes past FlashSize are ignored.
func (s *Sim) Load(r io.Reader) error {
	Fill(s.mem)
	if _, err := io.ReadFull(r, s.mem); err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return errcode.Wrap(errcode.Error, "flash.sim.load", err)
	}
	s.resync()
	return nil
}

// Save writes the whole memory to w.
func (s *Sim) Save(w io.Writer) error {
	if _, err := w.Write(s.mem); err != nil {
		return errcode.Wrap(errcode.Error, "flash.sim.save", err)
	}
	return nil
}

// LoadFile loads a raw flash dump. A missing file means a blank device.
func (s *Sim) LoadFile(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		Fill(s.mem)
		s.resync()
		return nil
	}
	if err != nil {
		return errcode.Wrap(errcode.Error, "flash.sim.load", err)
	}
	defer f.Close()
	return s.Load(f)
}

// SaveFile writes a raw flash dump to path.
func (s *Sim) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errcode.Wrap(errcode.Error, "flash.sim.save", err)
	}
	if err := s.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
