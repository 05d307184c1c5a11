package boot

import (
	"mmcboot-go/flash"
	"mmcboot-go/x/logx"
)

// Outcome is the loader's terminal decision: Dispatch or Halt.
type Outcome interface {
	outcome()
	String() string
}

// Dispatch transfers control to Entry and never comes back.
type Dispatch struct {
	Entry flash.Addr
}

// Halt idles forever; program memory holds no program.
type Halt struct{}

func (Dispatch) outcome() {}
func (Halt) outcome()     {}

func (d Dispatch) String() string { return "dispatch " + d.Entry.String() }
func (Halt) String() string       { return "halt" }

// EntryPoint is where the processor starts after reset.
const EntryPoint flash.Addr = 0

// Decide reads the first instruction word. An erased word means no program
// is present; a failed read is treated the same way, since blank or unknown
// memory must never be executed.
func Decide(g flash.Geometry, m flash.Memory, log logx.Logger) Outcome {
	w, err := flash.ReadWord(m, EntryPoint, g.WordSize)
	if err != nil {
		log.Error("entry word unreadable", "err", err)
		return Halt{}
	}
	if w == g.ErasedWord() {
		return Halt{}
	}
	return Dispatch{Entry: EntryPoint}
}

// CPU performs the terminal action. On hardware neither method returns:
// Jump abandons the loader's stack and state, Halt idles with interrupts
// off. Host implementations record the call and return.
type CPU interface {
	Jump(entry flash.Addr)
	Halt()
}

// Execute hands the outcome to cpu.
func Execute(o Outcome, cpu CPU) {
	switch o := o.(type) {
	case Dispatch:
		cpu.Jump(o.Entry)
	default:
		cpu.Halt()
	}
}
