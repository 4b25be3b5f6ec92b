// Package tracefile is the optional trace-export bridge: it subscribes to a
// trace.Engine and streams the events to a compact binary log that can be
// read back and pretty-printed offline. Nothing else in the host layer
// depends on it.
package tracefile

// op tags, one byte on the wire
const (
	opNop  = 0
	opInsn = 1
	opFlow = 2
	opMem  = 3
)

// Op is one decoded trace record: *Insn, *Flow or *Mem.
type Op interface{}

type Insn struct {
	PC     uint32
	Opcode uint16
	Cycles uint32
}

type Flow struct {
	Kind uint8
	Src  uint32
	Dst  uint32
	Ret  uint32
	D    [8]uint32
	A    [8]uint32
}

type Mem struct {
	Kind uint8
	PC   uint32
	Addr uint32
	Val  uint32
	Size uint8
}
