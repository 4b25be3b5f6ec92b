package m68k

// This interface abstracts the minimum functionality the host layer requires
// in a cycle-stepping 68k interpreter. The opcode tables and instruction
// semantics behind it are the core's own business: the host layer only sees
// register IO, timeslice execution, and the hook/bus callouts below.
type Core interface {
	// register IO; out-of-range enums read as 0 and write as a no-op
	RegRead(enum int) uint32
	RegWrite(enum int, val uint32)

	// execution
	Execute(cycles uint32) uint32
	EndTimeslice()
	PulseReset()

	// used only for instruction length computation
	Disassemble(pc uint32) (string, int)
}

// RegReader is the read-only subset of Core used for register snapshots.
type RegReader interface {
	RegRead(enum int) uint32
}

// Bus is the memory callout the core performs for every access.
// size is 1, 2 or 4; reads compose bytes big-endian.
type Bus interface {
	Read(addr uint32, size int) uint32
	Write(addr uint32, size int, val uint32)
}

// Hooks is implemented by the host layer and driven by the core:
// Instruction before every decode, Flow on every control transfer, Mem on
// every data access, Fault before vectoring an abnormal exception, and
// Cycles once per instruction after it retires. A true return from the
// boolean hooks asks the core to stop at the next boundary.
type Hooks interface {
	Instruction(pc uint32, opcode uint16, cycles uint32) bool
	Flow(kind FlowKind, src, dst, ret uint32) bool
	Mem(kind MemKind, pc, addr, value uint32, size int) bool
	Fault(kind FaultKind, vector int, addr uint32, size int, extra uint32)
	Cycles(n uint32)
}

type FlowKind int

const (
	FlowCall FlowKind = iota
	FlowReturn
	FlowExceptionReturn
	FlowJump
	FlowBranchTaken
	FlowBranchNotTaken
	FlowTrap
	FlowException

	flowKindMax
)

// FlowKindValid reports whether k names a real flow event.
func FlowKindValid(k FlowKind) bool {
	return k >= FlowCall && k < flowKindMax
}

var flowNames = [...]string{"call", "return", "exc-return", "jump", "branch", "branch-not", "trap", "exception"}

func (k FlowKind) String() string {
	if FlowKindValid(k) {
		return flowNames[k]
	}
	return "invalid"
}

type MemKind int

const (
	MemRead MemKind = iota
	MemWrite
)

func (k MemKind) String() string {
	if k == MemRead {
		return "read"
	}
	return "write"
}

type FaultKind int

const (
	FaultBusError FaultKind = iota
	FaultAddressError
	FaultIllegal
	FaultPrivilege
	FaultTrap
)

var faultNames = [...]string{"bus error", "address error", "illegal instruction", "privilege violation", "trap"}

func (k FaultKind) String() string {
	if k >= 0 && int(k) < len(faultNames) {
		return faultNames[k]
	}
	return "unknown"
}
