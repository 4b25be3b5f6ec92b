// Package emu ties a black-box 68k interpreter core to host-side memory
// routing, tracing, single-stepping and synchronous subroutine calls. All
// state lives in a Machine so multiple cores can coexist in one process.
package emu

import (
	"github.com/pkg/errors"

	"github.com/emukit/m68khost/bus"
	"github.com/emukit/m68khost/m68k"
	"github.com/emukit/m68khost/trace"
)

const (
	// cycle budget when the caller passes 0
	defaultTimeslice = 100000
	// budget for StepOne; large so only the hook break ends the slice
	stepTimeslice = 1 << 30
)

// BreakReason records why the last break was requested.
type BreakReason int

const (
	BreakNone BreakReason = iota
	BreakTrace
	BreakInstrHook
	BreakHostHook
	BreakSentinel
	BreakStep
)

var breakNames = [...]string{"none", "trace", "instr-hook", "host-hook", "sentinel", "step"}

func (r BreakReason) String() string {
	if r >= 0 && int(r) < len(breakNames) {
		return breakNames[r]
	}
	return "unknown"
}

// ProbeFunc is the combined legacy/host probe invoked at instruction
// boundaries. A non-zero return requests a stop.
type ProbeFunc func(pc uint32) int

// InstructionProbe is the full-instruction host probe. A positive return
// requests a break.
type InstructionProbe func(pc uint32, opcode uint16, cycles uint32) int

// Machine is the emulation context: one core, its bus, trace engine, fault
// record, and the step/session state machines. It implements m68k.Hooks and
// must be installed as the core's hook sink.
type Machine struct {
	core m68k.Core
	bus  *bus.Router
	tr   *trace.Engine

	fault Fault

	step     stepState
	stepPC   uint32 // boundary observed by the dispatcher at the step break
	stepSeen bool
	session  session

	probe      ProbeFunc
	probeAddrs []uint32
	insnProbe  InstructionProbe

	reason BreakReason

	// softBreak suppresses EndTimeslice on break requests, for embeddings
	// that must not truncate the fetch/execute loop
	softBreak bool
}

// CoreFactory builds a core wired to the given bus and hook sink.
type CoreFactory func(b m68k.Bus, h m68k.Hooks) m68k.Core

// New builds a Machine around a core produced by mk. busBits sets the
// physical address width used for host-callback masking and sentinel
// comparison (24 for a 16MB bus; pass 32 for a full-width part).
func New(mk CoreFactory, busBits uint) *Machine {
	m := &Machine{
		bus: bus.New(busBits),
	}
	m.core = mk(m.bus, m)
	m.tr = trace.New(m.core)
	return m
}

func (m *Machine) Core() m68k.Core { return m.core }

func (m *Machine) Bus() *bus.Router { return m.bus }

func (m *Machine) Trace() *trace.Engine { return m.tr }

// Reason returns why the most recent break was requested.
func (m *Machine) Reason() BreakReason { return m.reason }

// SetSoftBreak controls whether break requests also end the core's current
// timeslice. Soft breaks leave the core's cycle bookkeeping untouched.
func (m *Machine) SetSoftBreak(on bool) { m.softBreak = on }

// AddRegion maps caller-owned memory into the bus.
func (m *Machine) AddRegion(start, size uint32, data []byte) error {
	return errors.Wrap(m.bus.AddRegion(start, size, data), "failed to add region")
}

func (m *Machine) ClearRegions() { m.bus.ClearRegions() }

// SetProbe installs the combined probe. addrs is an allow-list of exact
// program counters; empty means every instruction.
func (m *Machine) SetProbe(f ProbeFunc, addrs ...uint32) {
	m.probe = f
	m.probeAddrs = addrs
}

// SetInstructionProbe installs the full-instruction host probe.
func (m *Machine) SetInstructionProbe(f InstructionProbe) {
	m.insnProbe = f
}

// Reset pulses the core's reset line, which reads the reset vector pair at
// addresses 0 and 4.
func (m *Machine) Reset() {
	m.core.PulseReset()
}

// Run executes one timeslice and returns the cycles consumed.
func (m *Machine) Run(cycles uint32) uint64 {
	if cycles == 0 {
		cycles = defaultTimeslice
	}
	return uint64(m.core.Execute(cycles))
}

// LoadImage copies p into the emulated address space at addr through the
// normal routing chain.
func (m *Machine) LoadImage(addr uint32, p []byte) {
	m.bus.WriteBytes(addr, p)
}

// Push32 pushes a long onto the active stack.
func (m *Machine) Push32(val uint32) {
	sp := m.core.RegRead(m68k.RegSP) - 4
	m.core.RegWrite(m68k.RegSP, sp)
	m.bus.Write32HighFirst(sp, val)
}

// Pop32 pops a long from the active stack.
func (m *Machine) Pop32() uint32 {
	sp := m.core.RegRead(m68k.RegSP)
	val := m.bus.Read(sp, 4)
	m.core.RegWrite(m68k.RegSP, sp+4)
	return val
}

// RegDump snapshots every named register.
func (m *Machine) RegDump() []m68k.RegVal {
	return m68k.RegDump(m.core)
}
