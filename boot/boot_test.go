package boot

import (
	"bytes"
	"errors"
	"testing"

	"mmcboot-go/errcode"
	"mmcboot-go/flash"
	"mmcboot-go/nvconfig"
	"mmcboot-go/storage"
)

const (
	pageSize  = 256
	bootBase  = 0x1000 // 16 pages
	flashSize = 0x1400 // boot section 0x1000..0x13FF
	nameOff   = 63     // last byte of a 64-byte config store
)

type rig struct {
	geo   flash.Geometry
	sim   *flash.Sim
	vol   *storage.MemVolume
	store *nvconfig.MemStore
}

func newRig(t *testing.T, prefill byte) *rig {
	t.Helper()
	g, err := flash.NewGeometry(pageSize, bootBase, flashSize, 2)
	if err != nil {
		t.Fatal(err)
	}
	sim, err := flash.NewSim(g)
	if err != nil {
		t.Fatal(err)
	}
	if prefill != flash.ErasedByte {
		_ = sim.Poke(0, bytes.Repeat([]byte{prefill}, flashSize))
	}
	return &rig{
		geo:   g,
		sim:   sim,
		vol:   storage.NewMemVolume(map[string][]byte{}),
		store: nvconfig.NewMemStore(64),
	}
}

func (r *rig) loader(t *testing.T, opts ...Option) *Loader {
	t.Helper()
	l, err := New(r.geo, r.sim, r.vol, r.store, nameOff, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func (r *rig) page(n int) []byte {
	return r.sim.Bytes()[n*pageSize : (n+1)*pageSize]
}

func image(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 1)
	}
	return b
}

func addrs(a ...flash.Addr) []flash.Addr { return a }

func sameAddrs(got, want []flash.Addr) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// 600-byte image, 256-byte pages: pages 0-1 full, page 2 partial, rest kept.
func TestRun_PartialLastPageAndUntouchedTail(t *testing.T) {
	r := newRig(t, 0xA5)
	img := image(600)
	r.vol.Files["app.bin"] = img

	rep := r.loader(t).Run()

	if !rep.Opened || rep.Name.String() != "app.bin" || rep.NameSource != "default" {
		t.Fatalf("resolution: opened=%v name=%q source=%q", rep.Opened, rep.Name.String(), rep.NameSource)
	}
	if !bytes.Equal(r.page(0), img[0:256]) || !bytes.Equal(r.page(1), img[256:512]) {
		t.Fatal("pages 0-1 must hold image bytes [0,512)")
	}
	want2 := append(append([]byte{}, img[512:600]...), bytes.Repeat([]byte{0xFF}, 168)...)
	if !bytes.Equal(r.page(2), want2) {
		t.Fatal("page 2 must be image bytes [512,600) followed by 168 erased bytes")
	}
	for n := 3; n < r.geo.Pages(); n++ {
		if !bytes.Equal(r.page(n), bytes.Repeat([]byte{0xA5}, pageSize)) {
			t.Fatalf("page %d past the image was modified", n)
		}
	}
	if !bytes.Equal(r.sim.Bytes()[bootBase:], bytes.Repeat([]byte{0xA5}, flashSize-bootBase)) {
		t.Fatal("boot section was modified")
	}
	if !sameAddrs(r.sim.Erases, addrs(0, 0x100, 0x200)) || !sameAddrs(r.sim.Writes, addrs(0, 0x100, 0x200)) {
		t.Fatalf("erases=%v writes=%v", r.sim.Erases, r.sim.Writes)
	}
	st := rep.Stats
	if st.Pages != 16 || st.Loaded != 3 || st.Rewritten != 3 || st.Absent != 13 || st.ImageBytes != 600 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestRun_SecondPassWritesNothing(t *testing.T) {
	r := newRig(t, 0x00)
	r.vol.Files["app.bin"] = image(1000)
	l := r.loader(t)

	first := l.Run()
	if first.Stats.Rewritten != 4 {
		t.Fatalf("first pass rewrote %d pages, want 4", first.Stats.Rewritten)
	}
	r.sim.ResetCounters()

	second := l.Run()
	if len(r.sim.Erases) != 0 || len(r.sim.Writes) != 0 {
		t.Fatalf("second pass touched flash: erases=%v writes=%v", r.sim.Erases, r.sim.Writes)
	}
	if second.Stats.Unchanged != 4 || second.Stats.Rewritten != 0 {
		t.Fatalf("second pass stats = %+v", second.Stats)
	}
}

func TestRun_OnlyDifferingPagesRewritten(t *testing.T) {
	r := newRig(t, 0xFF)
	img := image(768)
	_ = r.sim.Poke(0x100, img[256:512])
	r.vol.Files["app.bin"] = img

	rep := r.loader(t).Run()
	if !sameAddrs(r.sim.Writes, addrs(0, 0x200)) {
		t.Fatalf("writes = %v, want [0x0000 0x0200]", r.sim.Writes)
	}
	if rep.Stats.Unchanged != 1 {
		t.Fatalf("unchanged = %d", rep.Stats.Unchanged)
	}
}

func TestRun_OversizedImageNeverReachesBootSection(t *testing.T) {
	r := newRig(t, 0xFF)
	_ = r.sim.Poke(bootBase, bytes.Repeat([]byte{0x42}, flashSize-bootBase))
	r.vol.Files["app.bin"] = image(bootBase + 3000)

	rep := r.loader(t).Run()
	for _, a := range append(append([]flash.Addr{}, r.sim.Erases...), r.sim.Writes...) {
		if a >= bootBase {
			t.Fatalf("erase/write issued at %v, at or past boot base", a)
		}
	}
	if rep.Stats.Loaded != 16 || rep.Stats.Absent != 0 || len(rep.Stats.Faults) != 0 {
		t.Fatalf("stats = %+v", rep.Stats)
	}
	if !bytes.Equal(r.sim.Bytes()[bootBase:], bytes.Repeat([]byte{0x42}, flashSize-bootBase)) {
		t.Fatal("boot section was modified")
	}
}

func TestRun_ZeroLengthImageSkipsEveryPage(t *testing.T) {
	r := newRig(t, 0x11)
	r.vol.Files["app.bin"] = nil

	rep := r.loader(t).Run()
	if !rep.Opened || rep.Stats.Absent != 16 || len(r.sim.Erases) != 0 {
		t.Fatalf("opened=%v stats=%+v erases=%v", rep.Opened, rep.Stats, r.sim.Erases)
	}
	if _, ok := rep.Outcome.(Dispatch); !ok {
		t.Fatalf("outcome = %v, want dispatch (existing program kept)", rep.Outcome)
	}
}

func TestRun_MountFailureKeepsMemoryAndStillDispatches(t *testing.T) {
	r := newRig(t, 0xFF)
	_ = r.sim.Poke(0, []byte{0x0C, 0x94})
	r.vol.Files["app.bin"] = image(300)
	r.vol.MountErr = errors.New("no card")

	rep := r.loader(t).Run()
	if rep.Mounted || rep.Opened || len(r.vol.Opened) != 0 {
		t.Fatalf("mounted=%v opened=%v tried=%v", rep.Mounted, rep.Opened, r.vol.Opened)
	}
	if len(r.sim.Writes) != 0 {
		t.Fatal("no page may be written without an image")
	}
	if d, ok := rep.Outcome.(Dispatch); !ok || d.Entry != 0 {
		t.Fatalf("outcome = %v", rep.Outcome)
	}
	want := []State{StateReset, StateResolveName, StateNotOpened, StateCheckEntry, StateDispatch}
	if len(rep.Trace) != len(want) {
		t.Fatalf("trace = %v", rep.Trace)
	}
	for i := range want {
		if rep.Trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", rep.Trace, want)
		}
	}
}

func TestRun_NothingOpensOnBlankDeviceHalts(t *testing.T) {
	r := newRig(t, 0xFF)
	rep := r.loader(t).Run()
	if rep.Opened {
		t.Fatal("nothing should open")
	}
	if _, ok := rep.Outcome.(Halt); !ok {
		t.Fatalf("outcome = %v, want halt", rep.Outcome)
	}
	if rep.Trace[len(rep.Trace)-1] != StateHalt {
		t.Fatalf("trace = %v", rep.Trace)
	}
}

func TestRun_UpdatedImageTraceEndsInDispatch(t *testing.T) {
	r := newRig(t, 0xFF)
	r.vol.Files["app.bin"] = image(10)
	rep := r.loader(t).Run()
	want := []State{StateReset, StateResolveName, StateOpened, StateUpdatePages, StateCheckEntry, StateDispatch}
	for i := range want {
		if i >= len(rep.Trace) || rep.Trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", rep.Trace, want)
		}
	}
}

func TestRun_StoredNameWinsOverDefault(t *testing.T) {
	r := newRig(t, 0xFF)
	r.vol.Files["app.bin"] = image(10)
	r.vol.Files["board7.bin"] = image(20)
	if err := StoreName(r.store, nameOff, "board7.bin"); err != nil {
		t.Fatal(err)
	}

	rep := r.loader(t).Run()
	if rep.Name.String() != "board7.bin" || rep.NameSource != "config" || rep.Stats.ImageBytes != 20 {
		t.Fatalf("name=%q source=%q bytes=%d", rep.Name.String(), rep.NameSource, rep.Stats.ImageBytes)
	}
	if len(r.vol.Opened) != 1 {
		t.Fatalf("opened = %v, default must not be tried", r.vol.Opened)
	}
}

func TestRun_StoredNameMissingFallsBackToDefault(t *testing.T) {
	r := newRig(t, 0xFF)
	r.vol.Files["app.bin"] = image(10)
	_ = StoreName(r.store, nameOff, "gone.bin")

	rep := r.loader(t).Run()
	if rep.Name.String() != "app.bin" || rep.NameSource != "default" {
		t.Fatalf("name=%q source=%q", rep.Name.String(), rep.NameSource)
	}
	if len(r.vol.Opened) != 2 || r.vol.Opened[0] != "gone.bin" || r.vol.Opened[1] != "app.bin" {
		t.Fatalf("open order = %v", r.vol.Opened)
	}
}

func TestRun_CustomCandidates(t *testing.T) {
	r := newRig(t, 0xFF)
	r.vol.Files["rescue.bin"] = image(4)
	l := r.loader(t, WithCandidates(FixedName{N: MustImageName("rescue.bin")}))
	if rep := l.Run(); rep.Name.String() != "rescue.bin" {
		t.Fatalf("name = %q", rep.Name.String())
	}
}

// ---- engine faults and options ----

type failingMem struct {
	*flash.Sim
	eraseFail flash.Addr
}

func (m failingMem) ErasePage(p flash.Page) error {
	if p.Addr() == m.eraseFail {
		return errcode.Wrap(errcode.Error, "erase", errors.New("spm busy"))
	}
	return m.Sim.ErasePage(p)
}

func TestEngine_EraseFaultSkipsWriteAndContinues(t *testing.T) {
	r := newRig(t, 0x00)
	e, err := NewEngine(r.geo, failingMem{Sim: r.sim, eraseFail: 0x100}, WithVerify(false))
	if err != nil {
		t.Fatal(err)
	}
	st := e.Update(bytes.NewReader(image(768)))
	if !sameAddrs(st.Faults, addrs(0x100)) {
		t.Fatalf("faults = %v", st.Faults)
	}
	if !sameAddrs(r.sim.Writes, addrs(0, 0x200)) {
		t.Fatalf("writes = %v, page 0x100 must not be written after a failed erase", r.sim.Writes)
	}
}

func TestEngine_VerifyRecordsMismatchWithoutRetry(t *testing.T) {
	r := newRig(t, 0xFF)
	r.sim.Faulty = map[flash.Addr]bool{0x100: true}

	e, _ := NewEngine(r.geo, r.sim)
	st := e.Update(bytes.NewReader(image(600)))
	if !sameAddrs(st.VerifyFailed, addrs(0x100)) {
		t.Fatalf("verify failures = %v", st.VerifyFailed)
	}
	if len(r.sim.Writes) != 3 {
		t.Fatalf("writes = %v, one attempt per page", r.sim.Writes)
	}

	r2 := newRig(t, 0xFF)
	r2.sim.Faulty = map[flash.Addr]bool{0x100: true}
	e2, _ := NewEngine(r2.geo, r2.sim, WithVerify(false))
	if st := e2.Update(bytes.NewReader(image(600))); len(st.VerifyFailed) != 0 {
		t.Fatal("verify disabled must not report mismatches")
	}
}

// trickle hands out a few bytes per Read and scribbles over the rest of p.
type trickle struct {
	src []byte
	k   int
}

func (t *trickle) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0xEE
	}
	if len(t.src) == 0 {
		return 0, errors.New("eof")
	}
	n := copy(p[:min(len(p), t.k)], t.src)
	t.src = t.src[n:]
	return n, nil
}

func TestEngine_TricklingReaderStillPadsCorrectly(t *testing.T) {
	r := newRig(t, 0x00)
	img := image(300)
	e, _ := NewEngine(r.geo, r.sim)
	st := e.Update(&trickle{src: img, k: 13})

	if st.ImageBytes != 300 || st.Rewritten != 2 {
		t.Fatalf("stats = %+v", st)
	}
	want1 := append(append([]byte{}, img[256:]...), bytes.Repeat([]byte{0xFF}, 212)...)
	if !bytes.Equal(r.page(1), want1) {
		t.Fatal("partial page must be padded with erased bytes, not reader scratch")
	}
}

type recIndicator struct{ events []bool }

func (r *recIndicator) Set(on bool) { r.events = append(r.events, on) }

func TestEngine_IndicatorOnlyWhileRewriting(t *testing.T) {
	r := newRig(t, 0xFF)
	ind := &recIndicator{}
	e, _ := NewEngine(r.geo, r.sim, WithIndicator(ind))

	e.Update(bytes.NewReader(image(600)))
	if len(ind.events) != 2 || !ind.events[0] || ind.events[1] {
		t.Fatalf("indicator events = %v, want [true false]", ind.events)
	}

	ind.events = nil
	e.Update(bytes.NewReader(image(600)))
	if len(ind.events) != 0 {
		t.Fatalf("indicator toggled on an unchanged image: %v", ind.events)
	}
}

func TestNewRejectsBadGeometry(t *testing.T) {
	r := newRig(t, 0xFF)
	bad := flash.Geometry{PageSize: 100, BootBase: 0x1000, FlashSize: 0x1400, WordSize: 2}
	if _, err := New(bad, r.sim, r.vol, r.store, nameOff); errcode.Of(err) != errcode.InvalidGeometry {
		t.Fatalf("err = %v", err)
	}
}

func TestStateString(t *testing.T) {
	if StateUpdatePages.String() != "update_pages" || State(99).String() != "unknown" {
		t.Fatal("state names wrong")
	}
}
