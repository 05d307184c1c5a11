package boot

import (
	"io"

	"mmcboot-go/flash"
	"mmcboot-go/storage"
	"mmcboot-go/x/logx"
)

// Indicator is an optional status output (an LED on most boards). It is on
// only while pages are being rewritten.
type Indicator interface {
	Set(on bool)
}

// Stats summarises one update pass.
type Stats struct {
	Pages      int // pages in the update range
	Loaded     int // pages that received image data
	Rewritten  int // pages erased and programmed
	Unchanged  int // pages whose content already matched
	Absent     int // pages past the end of the image, left untouched
	ImageBytes int

	// Pages that read back different after programming.
	VerifyFailed []flash.Addr
	// Pages where a compare, erase or write call reported an error.
	Faults []flash.Addr
}

// Engine brings program memory into agreement with an image, one page at a
// time. It owns the single page-sized scratch buffer.
type Engine struct {
	geo flash.Geometry
	mem flash.Memory
	buf []byte

	verify bool
	ind    Indicator
	log    logx.Logger
}

// NewEngine allocates the scratch buffer once for geometry g.
func NewEngine(g flash.Geometry, mem flash.Memory, opts ...Option) (*Engine, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Engine{
		geo:    g,
		mem:    mem,
		buf:    make([]byte, g.PageSize),
		verify: cfg.Verify,
		ind:    cfg.Indicator,
		log:    cfg.Logger,
	}, nil
}

// Update streams r into program memory.
//
// For each page below the boot base: fill the buffer with the erased byte,
// read up to one page, and if any data arrived pad the rest and compare with
// what is stored. Only a differing page is erased and programmed. Pages with
// no data are never erased. The loop bound is the page count of the
// geometry, so the boot loader's own section is never a target.
func (e *Engine) Update(r io.Reader) Stats {
	st := Stats{Pages: e.geo.Pages()}
	lit := false
	defer func() {
		if lit {
			e.ind.Set(false)
		}
	}()

	eof := false
	for n := 0; n < st.Pages; n++ {
		pg, err := e.geo.Page(n)
		if err != nil {
			break // unreachable with n < Pages()
		}

		flash.Fill(e.buf)
		br := 0
		if !eof {
			br = storage.ReadPage(r, e.buf)
			eof = br < len(e.buf)
		}
		if br == 0 {
			st.Absent++
			continue
		}
		st.Loaded++
		st.ImageBytes += br

		// Readers may use all of buf as scratch, so re-pad past br.
		flash.Fill(e.buf[br:])

		same, err := flash.Equal(e.mem, pg, e.buf)
		if err != nil {
			e.log.Error("page compare failed", "addr", pg.Addr(), "err", err)
			st.Faults = append(st.Faults, pg.Addr())
			continue
		}
		if same {
			st.Unchanged++
			continue
		}

		if e.ind != nil && !lit {
			e.ind.Set(true)
			lit = true
		}
		if err := e.mem.ErasePage(pg); err != nil {
			e.log.Error("page erase failed", "addr", pg.Addr(), "err", err)
			st.Faults = append(st.Faults, pg.Addr())
			continue
		}
		if err := e.mem.WritePage(pg, e.buf); err != nil {
			e.log.Error("page write failed", "addr", pg.Addr(), "err", err)
			st.Faults = append(st.Faults, pg.Addr())
			continue
		}
		st.Rewritten++
		e.log.Debug("page rewritten", "addr", pg.Addr(), "bytes", br)

		if e.verify {
			if ok, err := flash.Equal(e.mem, pg, e.buf); err != nil || !ok {
				e.log.Error("page verify failed", "addr", pg.Addr())
				st.VerifyFailed = append(st.VerifyFailed, pg.Addr())
			}
		}
	}
	return st
}
