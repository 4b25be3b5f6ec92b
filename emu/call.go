package emu

import (
	"github.com/emukit/m68khost/m68k"
)

// sentinelAddr is the numerically highest even 32-bit address. No legitimate
// return address lands there, which is the entire trick: overwrite the
// caller's saved return address with it, run, and watch for the pc to reach
// it. This deliberately violates normal control-flow discipline in guest
// memory; every detail of the bit pattern stays inside this file.
const sentinelAddr = 0xfffffffe

// session tracks one synchronous call into the emulated program.
type session struct {
	active   bool
	done     bool
	savedSP  uint32
	savedVal uint32
	saved    bool
	// consumed means a genuine return instruction popped the sentinel,
	// growing the stack by one long past the caller's frame
	consumed bool
}

// sentinelHit compares pc against the sentinel masked to the physical bus
// width and forced even, tolerating the core's internal prefetch skew.
func (m *Machine) sentinelHit(pc uint32) bool {
	mask := m.bus.Mask() &^ 1
	return pc&mask == sentinelAddr&mask
}

// RunUntilReturn invokes the subroutine at entry and returns the total
// cycles consumed once it returns to its caller. timeslice is the cycle
// budget per Execute burst; 0 selects a default.
//
// The core has no native "call and trap on return" primitive, so the slot at
// the current stack pointer is overwritten with the sentinel and restored on
// the way out.
func (m *Machine) RunUntilReturn(entry uint32, timeslice uint32) uint64 {
	if timeslice == 0 {
		timeslice = defaultTimeslice
	}
	sp := m.core.RegRead(m68k.RegSP)
	m.session = session{
		active:   true,
		savedSP:  sp,
		savedVal: m.bus.Read(sp, 4),
		saved:    true,
	}
	m.bus.Write(sp, 4, sentinelAddr)
	m.core.RegWrite(m68k.RegPC, entry)

	var total uint64
	for !m.session.done {
		total += uint64(m.core.Execute(timeslice))
	}
	m.finishSession()
	return total
}

// finishSession restores the overwritten stack slot and, if the sentinel was
// popped by a real return, undoes the extra stack growth so the caller sees
// the stack depth it started with.
func (m *Machine) finishSession() {
	s := &m.session
	if !s.active {
		return
	}
	if s.saved {
		m.bus.Write(s.savedSP, 4, s.savedVal)
	}
	if s.consumed {
		sp := m.core.RegRead(m68k.RegSP)
		if sp >= s.savedSP+4 {
			m.core.RegWrite(m68k.RegSP, sp-4)
		}
	}
	s.active = false
}
