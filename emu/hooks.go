package emu

import (
	"github.com/emukit/m68khost/m68k"
)

// requestBreak records the reason and, unless soft breaks are on, truncates
// the core's current timeslice. The step path never comes through here.
func (m *Machine) requestBreak(r BreakReason) bool {
	m.reason = r
	if !m.softBreak {
		m.core.EndTimeslice()
	}
	return true
}

func (m *Machine) probeWants(pc uint32) bool {
	if len(m.probeAddrs) == 0 {
		return true
	}
	for _, a := range m.probeAddrs {
		if a == pc {
			return true
		}
	}
	return false
}

// Instruction is invoked by the core exactly once per instruction boundary,
// before decode. It composes the step machine, the trace engine, both host
// probes and the sentinel check, in that priority order.
func (m *Machine) Instruction(pc uint32, opcode uint16, cycles uint32) bool {
	switch m.step {
	case stepBreakNext:
		// the break that ends a single step. EndTimeslice is deliberately
		// not called: it would clobber the core's cycles-remaining counter
		// and StepOne would report leftover budget instead of the true
		// per-instruction cost.
		m.step = stepIdle
		m.stepPC = pc
		m.stepSeen = true
		m.reason = BreakStep
		return true
	case stepArm:
		// arming completes without breaking; the armed instruction runs
		m.step = stepBreakNext
		return false
	}

	if m.tr.InstructionHook(pc, opcode, cycles) {
		return m.requestBreak(BreakTrace)
	}

	if m.insnProbe != nil && m.insnProbe(pc, opcode, cycles) > 0 {
		return m.requestBreak(BreakInstrHook)
	}

	if m.probe != nil && m.probeWants(pc) {
		if m.probe(pc) != 0 {
			if m.session.active && !m.session.done {
				// park the pc on the sentinel so the interpreter "returns"
				// into it and the session unwinds normally
				m.core.RegWrite(m68k.RegPC, sentinelAddr)
				m.session.done = true
			}
			return m.requestBreak(BreakHostHook)
		}
	}

	if m.session.active && !m.session.done && m.sentinelHit(pc) {
		m.session.done = true
		m.session.consumed = true
		return m.requestBreak(BreakSentinel)
	}

	return false
}

// Flow forwards control-transfer events to the trace engine.
func (m *Machine) Flow(kind m68k.FlowKind, src, dst, ret uint32) bool {
	if m.tr.FlowHook(kind, src, dst, ret) {
		return m.requestBreak(BreakTrace)
	}
	return false
}

// Mem forwards data accesses to the trace engine.
func (m *Machine) Mem(kind m68k.MemKind, pc, addr, value uint32, size int) bool {
	if m.tr.MemHook(kind, pc, addr, value, size) {
		return m.requestBreak(BreakTrace)
	}
	return false
}

// Cycles feeds the trace engine's saturating counter once per retired
// instruction.
func (m *Machine) Cycles(n uint32) {
	m.tr.UpdateCycles(n)
}
