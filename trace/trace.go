// Package trace fans instruction, flow and memory events out to at most one
// listener per class, with an address allow-list for memory events and a
// saturating cycle counter.
package trace

import (
	"math"

	"github.com/pkg/errors"

	"github.com/emukit/m68khost/m68k"
)

// A listener's return value above zero requests a break at the next
// instruction boundary. Negative returns are clamped to "continue".
type (
	InstructionListener func(pc uint32, opcode uint16, cycles uint32) int
	FlowListener        func(kind m68k.FlowKind, src, dst, ret uint32, dregs, aregs *[8]uint32) int
	MemListener         func(kind m68k.MemKind, pc, addr, value uint32, size int) int
)

// Region is a half-open allow-list entry for memory events, independent of
// the bus regions.
type Region struct {
	Start uint32
	End   uint32 // exclusive
}

func (r Region) contains(addr uint32) bool {
	return addr >= r.Start && addr < r.End
}

// Engine holds the per-class enables, listeners and filters. One Engine per
// emulated machine; all methods are driven from the core's single thread.
type Engine struct {
	regs m68k.RegReader

	enabled     bool
	insnEnabled bool
	flowEnabled bool
	memEnabled  bool

	insn InstructionListener
	flow FlowListener
	mem  MemListener

	regions []Region
	cycles  uint64
}

// New returns an Engine that snapshots registers from regs when a flow
// listener fires.
func New(regs m68k.RegReader) *Engine {
	return &Engine{regs: regs}
}

func (e *Engine) SetEnabled(on bool)            { e.enabled = on }
func (e *Engine) Enabled() bool                 { return e.enabled }
func (e *Engine) SetInstructionEnabled(on bool) { e.insnEnabled = on }
func (e *Engine) SetFlowEnabled(on bool)        { e.flowEnabled = on }
func (e *Engine) SetMemEnabled(on bool)         { e.memEnabled = on }

// Installing a nil listener clears the class.
func (e *Engine) SetInstructionListener(f InstructionListener) { e.insn = f }
func (e *Engine) SetFlowListener(f FlowListener)               { e.flow = f }
func (e *Engine) SetMemListener(f MemListener)                 { e.mem = f }

// AddRegion adds [start, end) to the memory-event allow-list. An exact
// duplicate is silently ignored; an inverted range is rejected without
// changing the list. An empty list allows every address.
func (e *Engine) AddRegion(start, end uint32) error {
	if start >= end {
		return errors.Errorf("inverted trace region [%#x, %#x)", start, end)
	}
	for _, r := range e.regions {
		if r.Start == start && r.End == end {
			return nil
		}
	}
	e.regions = append(e.regions, Region{Start: start, End: end})
	return nil
}

func (e *Engine) ClearRegions() {
	e.regions = nil
}

// Regions returns a copy of the allow-list; mutating it does not affect the
// engine.
func (e *Engine) Regions() []Region {
	return append([]Region(nil), e.regions...)
}

func (e *Engine) allowed(addr uint32) bool {
	if len(e.regions) == 0 {
		return true
	}
	for _, r := range e.regions {
		if r.contains(addr) {
			return true
		}
	}
	return false
}

// UpdateCycles adds n to the cycle counter, saturating at the 64-bit
// maximum. Called once per instruction whether or not tracing is enabled, so
// the counter stays meaningful across mid-run toggles.
func (e *Engine) UpdateCycles(n uint32) {
	if e.cycles > math.MaxUint64-uint64(n) {
		e.cycles = math.MaxUint64
	} else {
		e.cycles += uint64(n)
	}
}

func (e *Engine) Cycles() uint64 { return e.cycles }
func (e *Engine) ResetCycles()   { e.cycles = 0 }

// InstructionHook fires the instruction listener before decode. Returns
// whether a break was requested.
func (e *Engine) InstructionHook(pc uint32, opcode uint16, cycles uint32) bool {
	if !e.enabled || !e.insnEnabled || e.insn == nil {
		return false
	}
	return e.insn(pc, opcode, cycles) > 0
}

// FlowHook fires the flow listener with a read-only register snapshot.
// Invalid kinds are a no-op.
func (e *Engine) FlowHook(kind m68k.FlowKind, src, dst, ret uint32) bool {
	if !e.enabled || !e.flowEnabled || e.flow == nil {
		return false
	}
	if !m68k.FlowKindValid(kind) {
		return false
	}
	var dregs, aregs [8]uint32
	for i := 0; i < 8; i++ {
		dregs[i] = e.regs.RegRead(m68k.RegD0 + i)
		aregs[i] = e.regs.RegRead(m68k.RegA0 + i)
	}
	return e.flow(kind, src, dst, ret, &dregs, &aregs) > 0
}

// MemHook fires the memory listener if addr passes the allow-list. Invalid
// sizes are a no-op.
func (e *Engine) MemHook(kind m68k.MemKind, pc, addr, value uint32, size int) bool {
	if !e.enabled || !e.memEnabled || e.mem == nil {
		return false
	}
	if size != 1 && size != 2 && size != 4 {
		return false
	}
	if !e.allowed(addr) {
		return false
	}
	return e.mem(kind, pc, addr, value, size) > 0
}
