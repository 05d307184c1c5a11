package boot

import (
	"io"

	"mmcboot-go/errcode"
	"mmcboot-go/nvconfig"
	"mmcboot-go/storage"
	"mmcboot-go/x/logx"
)

// MaxNameLen is an 8.3 short name without terminator.
const MaxNameLen = 12

// DefaultImageName is opened when no stored name is usable.
const DefaultImageName = "app.bin"

// ImageName is a fixed-capacity file name; it never allocates until String.
type ImageName struct {
	b [MaxNameLen]byte
	n uint8
}

// ParseImageName checks s fits an ImageName: 1..12 bytes, none of which is
// the 0x00 terminator or the 0xFF erased byte.
func ParseImageName(s string) (ImageName, error) {
	var in ImageName
	if len(s) == 0 || len(s) > MaxNameLen {
		return in, &errcode.E{C: errcode.InvalidName, Op: "boot.name", Msg: s}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == 0 || c == nvconfig.Erased || c == '/' || c == '\\' {
			return ImageName{}, &errcode.E{C: errcode.InvalidName, Op: "boot.name", Msg: s}
		}
		in.b[i] = c
	}
	in.n = uint8(len(s))
	return in, nil
}

// MustImageName is ParseImageName for compile-time constants.
func MustImageName(s string) ImageName {
	n, err := ParseImageName(s)
	if err != nil {
		panic(err)
	}
	return n
}

func (n ImageName) String() string { return string(n.b[:n.n]) }
func (n ImageName) Len() int       { return int(n.n) }
func (n ImageName) Empty() bool    { return n.n == 0 }

// -----------------------------------------------------------------------------
// Candidates
// -----------------------------------------------------------------------------

// Candidate yields one possible image name. ok is false when the source has
// no name to offer.
type Candidate interface {
	Name() (name ImageName, ok bool)
	Source() string
}

// ConfigName reads a name stored backward in configuration bytes: the first
// character at Offset, the next at Offset-1, and so on. Reading stops at an
// erased byte, a 0x00 terminator, or after MaxNameLen characters.
type ConfigName struct {
	Store  nvconfig.Store
	Offset int
}

func (c ConfigName) Name() (ImageName, bool) {
	var n ImageName
	if c.Store == nil {
		return n, false
	}
	for i := 0; i < MaxNameLen; i++ {
		ch := c.Store.ByteAt(c.Offset - i)
		if ch == nvconfig.Erased || ch == 0 {
			break
		}
		n.b[i] = ch
		n.n++
	}
	return n, n.n > 0
}

func (ConfigName) Source() string { return "config" }

// FixedName always offers the same name.
type FixedName struct{ N ImageName }

func (f FixedName) Name() (ImageName, bool) { return f.N, !f.N.Empty() }
func (FixedName) Source() string            { return "default" }

// DefaultCandidates is the usual order: stored name, then DefaultImageName.
func DefaultCandidates(store nvconfig.Store, offset int) []Candidate {
	return []Candidate{
		ConfigName{Store: store, Offset: offset},
		FixedName{N: MustImageName(DefaultImageName)},
	}
}

// -----------------------------------------------------------------------------
// Resolution
// -----------------------------------------------------------------------------

// resolved is the first candidate that opened.
type resolved struct {
	r      io.Reader
	name   ImageName
	source string
}

// openFirst tries candidates in order and stops at the first that opens.
// A candidate with no name, or whose file will not open, falls through.
func openFirst(vol storage.Volume, cands []Candidate, log logx.Logger) (resolved, bool) {
	for _, c := range cands {
		name, ok := c.Name()
		if !ok {
			log.Debug("no image name", "source", c.Source())
			continue
		}
		r, err := vol.Open(name.String())
		if err != nil {
			log.Info("image not opened", "name", name.String(), "source", c.Source(), "err", err)
			continue
		}
		return resolved{r: r, name: name, source: c.Source()}, true
	}
	return resolved{}, false
}

// StoreName writes name into w in the layout ConfigName reads. A name
// shorter than MaxNameLen is terminated with an erased byte. An empty name
// clears the slot.
func StoreName(w nvconfig.Writer, offset int, name string) error {
	const op = "boot.store_name"
	if name == "" {
		return w.SetByte(offset, nvconfig.Erased)
	}
	n, err := ParseImageName(name)
	if err != nil {
		return err
	}
	end := n.Len()
	if end < MaxNameLen {
		end++ // terminator
	}
	if offset >= w.Size() || offset-end+1 < 0 {
		return &errcode.E{C: errcode.NoSpace, Op: op}
	}
	for i := 0; i < n.Len(); i++ {
		if err := w.SetByte(offset-i, n.b[i]); err != nil {
			return err
		}
	}
	if n.Len() < MaxNameLen {
		return w.SetByte(offset-n.Len(), nvconfig.Erased)
	}
	return nil
}
