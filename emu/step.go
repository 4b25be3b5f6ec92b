package emu

import (
	"github.com/emukit/m68khost/m68k"
)

// stepState is the one-shot break state machine. Exactly one instruction
// executes between arming and the break.
type stepState int

const (
	stepIdle stepState = iota
	stepArm
	stepBreakNext
)

// StepOne executes exactly one instruction and returns its true cycle cost.
//
// The core's timeslice model makes this awkward: Execute runs until the
// budget drains or a hook ends the slice. StepOne arms the state machine,
// hands the core a budget no single instruction can exhaust, and relies on
// the dispatcher's stepBreakNext return (which leaves the core's cycle
// bookkeeping intact) to stop after one instruction.
func (m *Machine) StepOne() uint64 {
	startPC := m.core.RegRead(m68k.RegPC)
	m.step = stepArm
	m.stepSeen = false
	used := m.core.Execute(stepTimeslice)
	m.step = stepIdle

	// normalize the reported pc to the true next-instruction boundary
	_, length := m.core.Disassemble(startPC)
	newPC := m.core.RegRead(m68k.RegPC)
	next := startPC + uint32(length)
	if newPC == next || newPC == next+2 {
		// fall-through, possibly with one prefetched word of skew
		m.core.RegWrite(m68k.RegPC, next)
	} else if m.stepSeen && newPC != m.stepPC {
		// control-flow change where the register report disagrees with the
		// boundary the dispatcher saw at the break: the difference is
		// prefetch skew, snap to the real boundary. A core that reports the
		// branch target exactly is left alone. If the break never fired
		// (the core halted mid-step) the register is already authoritative.
		m.core.RegWrite(m68k.RegPC, m.stepPC)
	}

	// stable introspection: the stepped instruction is the "previous" one
	m.core.RegWrite(m68k.RegPPC, startPC)
	return uint64(used)
}
