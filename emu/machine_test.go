package emu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emukit/m68khost/m68k"
	"github.com/emukit/m68khost/m68k/m68ktest"
)

const ramSize = 0x8000

func newMachine(t *testing.T) *Machine {
	t.Helper()
	m := New(func(b m68k.Bus, h m68k.Hooks) m68k.Core {
		return m68ktest.New(b, h)
	}, 24)
	require.NoError(t, m.AddRegion(0, ramSize, make([]byte, ramSize)))
	return m
}

// word pokes big-endian program words; returns the next address.
func word(m *Machine, addr uint32, words ...uint16) uint32 {
	for _, w := range words {
		m.Bus().Write(addr, 2, uint32(w))
		addr += 2
	}
	return addr
}

func TestResetScenario(t *testing.T) {
	m := newMachine(t)
	m.Bus().Write(0, 4, 0x4000) // initial ssp
	m.Bus().Write(4, 4, 0x1000) // initial pc
	word(m, 0x1000,
		0x203c, 0x1234, 0x5678, // move.l #$12345678,d0
		0x4e71, // nop
	)
	m.Reset()
	require.Equal(t, uint32(0x4000), m.Core().RegRead(m68k.RegSP))
	require.Equal(t, uint32(0x1000), m.Core().RegRead(m68k.RegPC))

	used := m.Run(12)
	require.Equal(t, uint64(12), used)
	require.Equal(t, uint32(0x12345678), m.Core().RegRead(m68k.RegD0))
	require.Equal(t, uint32(0x1006), m.Core().RegRead(m68k.RegPC))
}

func TestStepOne(t *testing.T) {
	m := newMachine(t)
	word(m, 0x1000,
		0x203c, 0x1234, 0x5678, // move.l #$12345678,d0: 6 bytes, 12 cycles
		0x4e71, // nop
	)
	m.Core().RegWrite(m68k.RegPC, 0x1000)

	cycles := m.StepOne()
	require.Equal(t, uint64(12), cycles, "true per-instruction cost, not leftover budget")
	require.Equal(t, uint32(0x1006), m.Core().RegRead(m68k.RegPC))
	require.Equal(t, uint32(0x1000), m.Core().RegRead(m68k.RegPPC))
	require.Equal(t, uint32(0x12345678), m.Core().RegRead(m68k.RegD0))
	require.Equal(t, BreakStep, m.Reason())

	// stepping again executes exactly the nop
	cycles = m.StepOne()
	require.Equal(t, uint64(4), cycles)
	require.Equal(t, uint32(0x1008), m.Core().RegRead(m68k.RegPC))
	require.Equal(t, uint32(0x1006), m.Core().RegRead(m68k.RegPPC))
}

func TestAddRegionError(t *testing.T) {
	m := newMachine(t)
	err := m.AddRegion(0x9000, 0x100, nil)
	require.ErrorContains(t, err, "failed to add region")
}

func TestStepControlFlow(t *testing.T) {
	m := newMachine(t)
	word(m, 0x1000, 0x6006) // bra.s $1008
	word(m, 0x1008,
		0x4eb9, 0x0000, 0x2000, // jsr $2000.l
		0x4e71, // nop
	)
	word(m, 0x2000, 0x4e75) // rts
	m.Core().RegWrite(m68k.RegPC, 0x1000)
	m.Core().RegWrite(m68k.RegSP, 0x4000)

	// a taken branch lands exactly on the target
	cycles := m.StepOne()
	require.Equal(t, uint64(10), cycles)
	require.Equal(t, uint32(0x1008), m.Core().RegRead(m68k.RegPC))
	require.Equal(t, uint32(0x1000), m.Core().RegRead(m68k.RegPPC))
	require.Equal(t, BreakStep, m.Reason())

	cycles = m.StepOne() // jsr
	require.Equal(t, uint64(20), cycles)
	require.Equal(t, uint32(0x2000), m.Core().RegRead(m68k.RegPC))
	require.Equal(t, uint32(0x3ffc), m.Core().RegRead(m68k.RegSP))

	cycles = m.StepOne() // rts
	require.Equal(t, uint64(16), cycles)
	require.Equal(t, uint32(0x100e), m.Core().RegRead(m68k.RegPC))
	require.Equal(t, uint32(0x4000), m.Core().RegRead(m68k.RegSP))
}

// skewCore reports the program counter one word ahead after any control-flow
// change, the way a prefetching pipeline does, until the register is written.
type skewCore struct {
	*m68ktest.Core
	drift  bool
	flowed bool
}

func (c *skewCore) RegRead(enum int) uint32 {
	v := c.Core.RegRead(enum)
	if enum == m68k.RegPC && c.drift {
		v += 2
	}
	return v
}

func (c *skewCore) RegWrite(enum int, val uint32) {
	if enum == m68k.RegPC {
		c.drift = false
	}
	c.Core.RegWrite(enum, val)
}

// skewHooks latches the drift flag when an instruction that transferred
// control retires.
type skewHooks struct {
	m68k.Hooks
	c *skewCore
}

func (h skewHooks) Flow(kind m68k.FlowKind, src, dst, ret uint32) bool {
	h.c.flowed = true
	return h.Hooks.Flow(kind, src, dst, ret)
}

func (h skewHooks) Cycles(n uint32) {
	h.c.drift = h.c.flowed
	h.c.flowed = false
	h.Hooks.Cycles(n)
}

func TestStepUndoesPrefetchSkew(t *testing.T) {
	m := New(func(b m68k.Bus, h m68k.Hooks) m68k.Core {
		c := &skewCore{}
		c.Core = m68ktest.New(b, skewHooks{Hooks: h, c: c})
		return c
	}, 24)
	require.NoError(t, m.AddRegion(0, ramSize, make([]byte, ramSize)))
	word(m, 0x1000, 0x6006) // bra.s $1008
	word(m, 0x1008, 0x4e71) // nop
	m.Core().RegWrite(m68k.RegPC, 0x1000)

	cycles := m.StepOne()
	require.Equal(t, uint64(10), cycles)
	// the skewed register said $100a; the step machine snaps it back
	require.Equal(t, uint32(0x1008), m.Core().RegRead(m68k.RegPC))

	// fall-through is unaffected once the skew is gone
	cycles = m.StepOne()
	require.Equal(t, uint64(4), cycles)
	require.Equal(t, uint32(0x100a), m.Core().RegRead(m68k.RegPC))
}

func TestRunUntilReturn(t *testing.T) {
	m := newMachine(t)
	word(m, 0x2000,
		0x203c, 0xdead, 0xbeef, // move.l #$deadbeef,d0
		0x4e75, // rts
	)
	m.Core().RegWrite(m68k.RegSP, 0x4000)
	m.Bus().Write(0x4000, 4, 0xcafe0042) // caller data beneath the sentinel

	cycles := m.RunUntilReturn(0x2000, 0)
	require.Greater(t, cycles, uint64(0))
	require.Equal(t, uint32(0xdeadbeef), m.Core().RegRead(m68k.RegD0))
	// stack depth exactly as the caller left it, slot contents restored
	require.Equal(t, uint32(0x4000), m.Core().RegRead(m68k.RegSP))
	require.Equal(t, uint32(0xcafe0042), m.Bus().Read(0x4000, 4))
	// pc parked on the (bus-masked) sentinel
	require.Equal(t, uint32(0x00fffffe), m.Core().RegRead(m68k.RegPC))
	require.Equal(t, BreakSentinel, m.Reason())
}

func TestNestedCalls(t *testing.T) {
	m := newMachine(t)
	word(m, 0x2000,
		0x4eb9, 0x0000, 0x3000, // jsr $3000.l
		0x203c, 0x0000, 0x0001, // move.l #1,d0
		0x4e75, // rts
	)
	word(m, 0x3000,
		0x203c, 0x0000, 0x0002, // move.l #2,d0
		0x4e75, // rts
	)
	m.Core().RegWrite(m68k.RegSP, 0x4000)
	m.Bus().Write(0x4000, 4, 0x11111111)

	cycles := m.RunUntilReturn(0x2000, 50)
	require.Greater(t, cycles, uint64(0))
	// the inner rts must not end the session; the outer move.l runs after it
	require.Equal(t, uint32(1), m.Core().RegRead(m68k.RegD0))
	require.Equal(t, uint32(0x4000), m.Core().RegRead(m68k.RegSP))
	require.Equal(t, uint32(0x11111111), m.Bus().Read(0x4000, 4))
}

func TestProbeStopsSession(t *testing.T) {
	m := newMachine(t)
	word(m, 0x2000,
		0x4e71, // nop
		0x4e71, // nop: probe stops here, subroutine never returns
		0x60fc, // bra.s back to the second nop
	)
	m.Core().RegWrite(m68k.RegSP, 0x4000)
	m.Bus().Write(0x4000, 4, 0x22222222)
	m.SetProbe(func(pc uint32) int { return 1 }, 0x2002)

	cycles := m.RunUntilReturn(0x2000, 0)
	require.Greater(t, cycles, uint64(0))
	require.Equal(t, BreakHostHook, m.Reason())
	// force-stopped: the sentinel was never popped, so the stack pointer
	// still sits where the caller left it, and the slot is restored
	require.Equal(t, uint32(0x4000), m.Core().RegRead(m68k.RegSP))
	require.Equal(t, uint32(0x22222222), m.Bus().Read(0x4000, 4))
	require.Equal(t, uint32(0x00fffffe), m.Core().RegRead(m68k.RegPC))
}

func TestProbeAllowList(t *testing.T) {
	m := newMachine(t)
	word(m, 0x1000,
		0x4e71, 0x4e71, 0x4e71, // nops
		0x4e72, 0x2700, // stop
	)
	m.Core().RegWrite(m68k.RegPC, 0x1000)
	var seen []uint32
	m.SetProbe(func(pc uint32) int {
		seen = append(seen, pc)
		return 0
	}, 0x1002)
	m.Run(100)
	require.Equal(t, []uint32{0x1002}, seen)
}

func TestInstructionProbeBreak(t *testing.T) {
	m := newMachine(t)
	word(m, 0x1000,
		0x4e71, // nop
		0x4e71, // nop
	)
	m.Core().RegWrite(m68k.RegPC, 0x1000)
	m.SetInstructionProbe(func(pc uint32, opcode uint16, cycles uint32) int {
		if pc == 0x1002 {
			return 1
		}
		return 0
	})
	used := m.Run(100)
	require.Equal(t, uint64(4), used, "only the first nop ran")
	require.Equal(t, BreakInstrHook, m.Reason())
	require.Equal(t, uint32(0x1002), m.Core().RegRead(m68k.RegPC))
}

func TestTraceBreak(t *testing.T) {
	m := newMachine(t)
	word(m, 0x1000, 0x4e71, 0x4e71)
	m.Core().RegWrite(m68k.RegPC, 0x1000)
	e := m.Trace()
	e.SetEnabled(true)
	e.SetInstructionEnabled(true)
	e.SetInstructionListener(func(pc uint32, opcode uint16, cycles uint32) int {
		if pc == 0x1002 {
			return 1
		}
		return 0
	})
	m.Run(100)
	require.Equal(t, BreakTrace, m.Reason())
	require.Equal(t, uint32(0x1002), m.Core().RegRead(m68k.RegPC))
}

func TestCycleCounterRunsUntraced(t *testing.T) {
	m := newMachine(t)
	word(m, 0x1000, 0x4e71, 0x4e71, 0x4e72, 0x2700)
	m.Core().RegWrite(m68k.RegPC, 0x1000)
	m.Run(100)
	// tracing was never enabled, the counter still advanced
	require.Equal(t, uint64(12), m.Trace().Cycles())
}

func TestMemTraceIntegration(t *testing.T) {
	m := newMachine(t)
	word(m, 0x1000,
		0x203c, 0x0000, 0x00aa, // move.l #$aa,d0
		0x23c0, 0x0000, 0x5000, // move.l d0,$5000.l
		0x4e72, 0x2700, // stop
	)
	m.Core().RegWrite(m68k.RegPC, 0x1000)
	e := m.Trace()
	e.SetEnabled(true)
	e.SetMemEnabled(true)
	require.NoError(t, e.AddRegion(0x5000, 0x5004))
	var got []uint32
	e.SetMemListener(func(kind m68k.MemKind, pc, addr, value uint32, size int) int {
		require.Equal(t, m68k.MemWrite, kind)
		require.Equal(t, 4, size)
		got = append(got, addr, value)
		return 0
	})
	m.Run(1000)
	require.Equal(t, []uint32{0x5000, 0xaa}, got)
	require.Equal(t, uint32(0xaa), m.Bus().Read(0x5000, 4))
}

func TestFaultCapture(t *testing.T) {
	m := newMachine(t)
	word(m, 0x1000, 0xffff) // no such opcode
	m.Core().RegWrite(m68k.RegPC, 0x1000)
	m.Core().RegWrite(m68k.RegSP, 0x4000)
	m.Run(100)

	f := m.LastFault()
	require.True(t, f.Active)
	require.Equal(t, m68k.FaultIllegal, f.Kind)
	require.Equal(t, 4, f.Vector)
	require.Equal(t, uint32(0x1000), f.PC)
	require.Equal(t, uint32(0x4000), f.SP)
	require.Equal(t, uint16(0xffff), f.Opcode)

	m.ClearFault()
	require.False(t, m.LastFault().Active)
	// the rest of the slot is left stale on purpose
	require.Equal(t, uint32(0x1000), m.LastFault().PC)

	// a later fault overwrites the slot
	word(m, 0x2000, 0x4e41) // trap #1
	m.Core().RegWrite(m68k.RegPC, 0x2000)
	m.Run(100)
	f = m.LastFault()
	require.True(t, f.Active)
	require.Equal(t, m68k.FaultTrap, f.Kind)
	require.Equal(t, 33, f.Vector)
	require.Equal(t, uint32(0x2000), f.PC)
}

func TestSoftBreak(t *testing.T) {
	m := newMachine(t)
	word(m, 0x1000, 0x4e71, 0x4e71)
	m.Core().RegWrite(m68k.RegPC, 0x1000)
	m.SetSoftBreak(true)
	m.SetInstructionProbe(func(pc uint32, opcode uint16, cycles uint32) int { return 1 })
	m.Run(100)
	// the break reason is still recorded even though the timeslice was not
	// truncated via the core primitive
	require.Equal(t, BreakInstrHook, m.Reason())
}
