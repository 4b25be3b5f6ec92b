package emu

import (
	"github.com/emukit/m68khost/m68k"
)

// Fault is a snapshot of the most recent abnormal exception. Single slot: a
// new fault overwrites the previous one: this layer diagnoses the latest
// failure, it does not keep history.
type Fault struct {
	Active  bool
	Kind    m68k.FaultKind
	Vector  int
	Address uint32
	Size    int
	PC      uint32
	PPC     uint32
	SP      uint32
	SR      uint32
	Opcode  uint16
	Extra   uint32
}

// Fault implements m68k.Hooks. The core calls it at the moment it is about
// to vector into exception handling, before pushing its own stack frame, so
// the register snapshot reflects the faulting context.
func (m *Machine) Fault(kind m68k.FaultKind, vector int, addr uint32, size int, extra uint32) {
	m.fault = Fault{
		Active:  true,
		Kind:    kind,
		Vector:  vector,
		Address: addr,
		Size:    size,
		PC:      m.core.RegRead(m68k.RegPC),
		PPC:     m.core.RegRead(m68k.RegPPC),
		SP:      m.core.RegRead(m68k.RegSP),
		SR:      m.core.RegRead(m68k.RegSR),
		Opcode:  uint16(m.core.RegRead(m68k.RegIR)),
		Extra:   extra,
	}
}

// LastFault returns the fault slot. The fields other than Active are stale
// until Active is checked.
func (m *Machine) LastFault() *Fault {
	return &m.fault
}

// ClearFault resets only the Active flag; the rest of the record is left as
// is.
func (m *Machine) ClearFault() {
	m.fault.Active = false
}
