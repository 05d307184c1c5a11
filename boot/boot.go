package boot

import (
	"mmcboot-go/flash"
	"mmcboot-go/nvconfig"
	"mmcboot-go/storage"
	"mmcboot-go/x/logx"
)

// State is a step of the loader's one-shot state machine.
type State uint8

const (
	StateReset State = iota
	StateResolveName
	StateOpened
	StateNotOpened
	StateUpdatePages
	StateCheckEntry
	StateDispatch
	StateHalt
)

var stateNames = [...]string{
	StateReset:       "reset",
	StateResolveName: "resolve_name",
	StateOpened:      "opened",
	StateNotOpened:   "not_opened",
	StateUpdatePages: "update_pages",
	StateCheckEntry:  "check_entry",
	StateDispatch:    "dispatch",
	StateHalt:        "halt",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Report describes one run.
type Report struct {
	Trace      []State
	Mounted    bool
	Opened     bool
	Name       ImageName // zero unless Opened
	NameSource string
	Stats      Stats // zero unless Opened
	Outcome    Outcome
}

// Loader wires the collaborators together. Build one with New and call Run
// once per reset.
type Loader struct {
	geo    flash.Geometry
	mem    flash.Memory
	vol    storage.Volume
	cands  []Candidate
	engine *Engine
	log    logx.Logger
}

// New validates the geometry and allocates the page buffer. Without
// WithCandidates the stored name at nameOffset in store is tried first,
// then DefaultImageName.
func New(g flash.Geometry, mem flash.Memory, vol storage.Volume, store nvconfig.Store, nameOffset int, opts ...Option) (*Loader, error) {
	eng, err := NewEngine(g, mem, opts...)
	if err != nil {
		return nil, err
	}
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	cands := cfg.Candidates
	if cands == nil {
		cands = DefaultCandidates(store, nameOffset)
	}
	return &Loader{
		geo:    g,
		mem:    mem,
		vol:    vol,
		cands:  cands,
		engine: eng,
		log:    cfg.Logger,
	}, nil
}

// Run resolves the image, updates program memory if an image opened, and
// decides the terminal outcome. It never fails; see Report for details.
func (l *Loader) Run() Report {
	rep := Report{Trace: []State{StateReset, StateResolveName}}

	var res resolved
	if err := l.vol.Mount(); err != nil {
		l.log.Error("mount failed", "err", err)
	} else {
		rep.Mounted = true
		res, rep.Opened = openFirst(l.vol, l.cands, l.log)
	}

	if rep.Opened {
		rep.Name, rep.NameSource = res.name, res.source
		rep.Trace = append(rep.Trace, StateOpened, StateUpdatePages)
		l.log.Info("updating", "name", res.name.String(), "source", res.source)
		rep.Stats = l.engine.Update(res.r)
		l.log.Info("update done",
			"bytes", rep.Stats.ImageBytes,
			"rewritten", rep.Stats.Rewritten,
			"unchanged", rep.Stats.Unchanged,
			"absent", rep.Stats.Absent)
	} else {
		rep.Trace = append(rep.Trace, StateNotOpened)
		l.log.Info("no image, keeping program memory")
	}

	rep.Trace = append(rep.Trace, StateCheckEntry)
	rep.Outcome = Decide(l.geo, l.mem, l.log)
	if _, ok := rep.Outcome.(Dispatch); ok {
		rep.Trace = append(rep.Trace, StateDispatch)
	} else {
		rep.Trace = append(rep.Trace, StateHalt)
	}
	l.log.Info("boot", "outcome", rep.Outcome.String())
	return rep
}
