// Package m68ktest provides a scripted mini-core implementing m68k.Core for
// host-layer tests. It decodes just enough real 68000 opcodes to exercise
// stepping, calls, tracing and faults, with documented cycle costs:
//
//	nop                   2 bytes   4 cycles
//	stop #imm             4 bytes   4 cycles
//	rts                   2 bytes  16 cycles
//	jsr (abs).l           6 bytes  20 cycles
//	bra.s disp            2 bytes  10 cycles
//	trap #n               2 bytes   4 cycles
//	move.l #imm,dn        6 bytes  12 cycles
//	move.l (abs).l,dn     6 bytes  20 cycles
//	move.l dn,(abs).l     6 bytes  20 cycles
//
// Anything else raises an illegal-instruction fault and halts.
package m68ktest

import (
	"fmt"

	"github.com/emukit/m68khost/m68k"
)

const addrMask = 0x00ffffff

type Core struct {
	bus   m68k.Bus
	hooks m68k.Hooks

	d   [8]uint32
	a   [8]uint32
	pc  uint32
	ppc uint32
	sr  uint32
	usp uint32
	isp uint32
	vbr uint32
	ir  uint16

	halted bool
	slice  bool
}

func New(b m68k.Bus, h m68k.Hooks) *Core {
	return &Core{bus: b, hooks: h}
}

func (c *Core) RegRead(enum int) uint32 {
	switch {
	case enum >= m68k.RegD0 && enum <= m68k.RegD7:
		return c.d[enum-m68k.RegD0]
	case enum >= m68k.RegA0 && enum <= m68k.RegA7:
		return c.a[enum-m68k.RegA0]
	}
	switch enum {
	case m68k.RegPC:
		return c.pc
	case m68k.RegPPC:
		return c.ppc
	case m68k.RegSR:
		return c.sr
	case m68k.RegUSP:
		return c.usp
	case m68k.RegISP:
		return c.isp
	case m68k.RegVBR:
		return c.vbr
	case m68k.RegIR:
		return uint32(c.ir)
	}
	return 0
}

func (c *Core) RegWrite(enum int, val uint32) {
	switch {
	case enum >= m68k.RegD0 && enum <= m68k.RegD7:
		c.d[enum-m68k.RegD0] = val
		return
	case enum >= m68k.RegA0 && enum <= m68k.RegA7:
		c.a[enum-m68k.RegA0] = val
		return
	}
	switch enum {
	case m68k.RegPC:
		c.pc = val & addrMask
		c.halted = false
	case m68k.RegPPC:
		c.ppc = val & addrMask
	case m68k.RegSR:
		c.sr = val
	case m68k.RegUSP:
		c.usp = val
	case m68k.RegISP:
		c.isp = val
	case m68k.RegVBR:
		c.vbr = val
	case m68k.RegIR:
		c.ir = uint16(val)
	}
}

func (c *Core) EndTimeslice() {
	c.slice = true
}

func (c *Core) PulseReset() {
	c.a[7] = c.bus.Read(0, 4)
	c.pc = c.bus.Read(4, 4) & addrMask
	c.sr = 0x2700
	c.halted = false
}

// Execute runs instructions until the budget drains, a hook requests a stop,
// or the core halts. Returns the cycles actually consumed; an in-flight
// instruction always completes.
func (c *Core) Execute(cycles uint32) uint32 {
	c.slice = false
	var used uint32
	for used < cycles && !c.halted && !c.slice {
		opcode := uint16(c.bus.Read(c.pc, 2))
		c.ir = opcode
		if c.hooks != nil && c.hooks.Instruction(c.pc, opcode, used) {
			break
		}
		used += c.exec(opcode)
	}
	return used
}

func (c *Core) flow(kind m68k.FlowKind, src, dst, ret uint32) {
	if c.hooks != nil && c.hooks.Flow(kind, src, dst, ret) {
		c.slice = true
	}
}

func (c *Core) mem(kind m68k.MemKind, addr, val uint32) {
	if c.hooks != nil && c.hooks.Mem(kind, c.ppc, addr, val, 4) {
		c.slice = true
	}
}

func (c *Core) fault(kind m68k.FaultKind, vector int, extra uint32) {
	if c.hooks != nil {
		c.hooks.Fault(kind, vector, c.pc, 2, extra)
	}
	c.halted = true
}

func (c *Core) exec(op uint16) uint32 {
	pc := c.pc
	c.ppc = pc
	var n uint32
	switch {
	case op == 0x4e71: // nop
		c.pc = pc + 2
		n = 4
	case op == 0x4e72: // stop #imm
		c.sr = c.bus.Read(pc+2, 2)
		c.pc = pc + 4
		c.halted = true
		n = 4
	case op == 0x4e75: // rts
		ret := c.bus.Read(c.a[7], 4)
		c.a[7] += 4
		c.flow(m68k.FlowReturn, pc, ret, 0)
		c.pc = ret & addrMask
		n = 16
	case op == 0x4eb9: // jsr (abs).l
		dst := c.bus.Read(pc+2, 4)
		c.a[7] -= 4
		c.bus.Write(c.a[7], 4, pc+6)
		c.flow(m68k.FlowCall, pc, dst, pc+6)
		c.pc = dst & addrMask
		n = 20
	case op&0xff00 == 0x6000 && op&0x00ff != 0: // bra.s
		dst := pc + 2 + uint32(int32(int8(op)))
		c.flow(m68k.FlowBranchTaken, pc, dst, 0)
		c.pc = dst & addrMask
		n = 10
	case op&0xfff0 == 0x4e40: // trap #n
		c.fault(m68k.FaultTrap, 32+int(op&0xf), 0)
		c.pc = pc + 2
		n = 4
	case op&0xf1ff == 0x203c: // move.l #imm,dn
		c.d[op>>9&7] = c.bus.Read(pc+2, 4)
		c.pc = pc + 6
		n = 12
	case op&0xf1ff == 0x2039: // move.l (abs).l,dn
		addr := c.bus.Read(pc+2, 4)
		val := c.bus.Read(addr, 4)
		c.mem(m68k.MemRead, addr, val)
		c.d[op>>9&7] = val
		c.pc = pc + 6
		n = 20
	case op&0xfff8 == 0x23c0: // move.l dn,(abs).l
		addr := c.bus.Read(pc+2, 4)
		val := c.d[op&7]
		c.bus.Write(addr, 4, val)
		c.mem(m68k.MemWrite, addr, val)
		c.pc = pc + 6
		n = 20
	default:
		c.fault(m68k.FaultIllegal, 4, uint32(op))
		n = 4
	}
	if c.hooks != nil {
		c.hooks.Cycles(n)
	}
	return n
}

func (c *Core) Disassemble(pc uint32) (string, int) {
	op := uint16(c.bus.Read(pc, 2))
	switch {
	case op == 0x4e71:
		return "nop", 2
	case op == 0x4e72:
		return fmt.Sprintf("stop #$%04x", c.bus.Read(pc+2, 2)), 4
	case op == 0x4e75:
		return "rts", 2
	case op == 0x4eb9:
		return fmt.Sprintf("jsr $%06x.l", c.bus.Read(pc+2, 4)), 6
	case op&0xff00 == 0x6000 && op&0x00ff != 0:
		return fmt.Sprintf("bra.s $%06x", pc+2+uint32(int32(int8(op)))), 2
	case op&0xfff0 == 0x4e40:
		return fmt.Sprintf("trap #%d", op&0xf), 2
	case op&0xf1ff == 0x203c:
		return fmt.Sprintf("move.l #$%x,d%d", c.bus.Read(pc+2, 4), op>>9&7), 6
	case op&0xf1ff == 0x2039:
		return fmt.Sprintf("move.l $%x.l,d%d", c.bus.Read(pc+2, 4), op>>9&7), 6
	case op&0xfff8 == 0x23c0:
		return fmt.Sprintf("move.l d%d,$%x.l", op&7, c.bus.Read(pc+2, 4)), 6
	default:
		return fmt.Sprintf("dc.w $%04x", op), 2
	}
}
