package m68ktest

import (
	"testing"

	"github.com/emukit/m68khost/bus"
	"github.com/emukit/m68khost/m68k"
)

func newCore() (*Core, *bus.Router) {
	b := bus.New(24)
	b.AddRegion(0, 0x8000, make([]byte, 0x8000))
	return New(b, nil), b
}

func TestDecodeLengths(t *testing.T) {
	c, b := newCore()
	words := map[uint32][]uint16{
		0x1000: {0x4e71},                 // nop
		0x1100: {0x203c, 0x1234, 0x5678}, // move.l #imm,d0
		0x1200: {0x4eb9, 0x0000, 0x2000}, // jsr
		0x1300: {0x4e75},                 // rts
		0x1400: {0x6006},                 // bra.s
	}
	lengths := map[uint32]int{0x1000: 2, 0x1100: 6, 0x1200: 6, 0x1300: 2, 0x1400: 2}
	for addr, ws := range words {
		for i, w := range ws {
			b.Write(addr+uint32(i*2), 2, uint32(w))
		}
	}
	for addr, want := range lengths {
		if _, length := c.Disassemble(addr); length != want {
			t.Errorf("length at %#x: %d != %d", addr, length, want)
		}
	}
}

func TestExecuteBudget(t *testing.T) {
	c, b := newCore()
	for i := uint32(0); i < 8; i++ {
		b.Write(0x1000+i*2, 2, 0x4e71)
	}
	c.RegWrite(m68k.RegPC, 0x1000)
	used := c.Execute(10)
	// the third nop starts with 2 cycles left in the budget; it completes
	if used != 12 {
		t.Errorf("used %d cycles", used)
	}
}
