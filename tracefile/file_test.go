package tracefile

import (
	"bytes"
	"io"
	"testing"

	"github.com/emukit/m68khost/m68k"
)

type bufCloser struct{ bytes.Buffer }

func (b *bufCloser) Close() error { return nil }

func TestRoundTrip(t *testing.T) {
	var buf bufCloser
	w, err := NewWriter(&buf, 24)
	if err != nil {
		t.Fatal(err)
	}
	dregs := [8]uint32{1, 2, 3, 4, 5, 6, 7, 8}
	aregs := [8]uint32{9, 10, 11, 12, 13, 14, 15, 0x4000}
	w.WriteInsn(0x1000, 0x203c, 12)
	w.WriteFlow(m68k.FlowCall, 0x1006, 0x2000, 0x100c, &dregs, &aregs)
	w.WriteMem(m68k.MemWrite, 0x2000, 0x5000, 0xaa, 4)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if r.Header.Version != 1 || r.Header.BusBits != 24 {
		t.Errorf("bad header: %+v", r.Header)
	}

	op, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	insn, ok := op.(*Insn)
	if !ok || insn.PC != 0x1000 || insn.Opcode != 0x203c || insn.Cycles != 12 {
		t.Errorf("insn op: %+v", op)
	}

	op, err = r.Next()
	if err != nil {
		t.Fatal(err)
	}
	flow, ok := op.(*Flow)
	if !ok || flow.Dst != 0x2000 || flow.D != dregs || flow.A != aregs {
		t.Errorf("flow op: %+v", op)
	}

	op, err = r.Next()
	if err != nil {
		t.Fatal(err)
	}
	mem, ok := op.(*Mem)
	if !ok || mem.Addr != 0x5000 || mem.Val != 0xaa || mem.Size != 4 {
		t.Errorf("mem op: %+v", op)
	}

	if _, err = r.Next(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}
