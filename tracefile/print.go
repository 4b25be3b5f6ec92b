package tracefile

import (
	"fmt"
	"io"

	"github.com/mgutz/ansi"

	"github.com/emukit/m68khost/m68k"
	"github.com/emukit/m68khost/sym"
)

var (
	addrColor = ansi.ColorFunc("cyan")
	flowColor = ansi.ColorFunc("yellow")
	memColor  = ansi.ColorFunc("green")
)

func label(syms *sym.Table, addr uint32) string {
	if syms == nil {
		return ""
	}
	if name := syms.Lookup(addr); name != "" {
		return " (" + name + ")"
	}
	return ""
}

// Print renders one op per line, decorating addresses with labels from syms
// when available. syms may be nil.
func Print(w io.Writer, op Op, syms *sym.Table) {
	switch o := op.(type) {
	case *Insn:
		fmt.Fprintf(w, "%s%s op=%04x cycles=%d\n",
			addrColor(fmt.Sprintf("%08x", o.PC)), label(syms, o.PC), o.Opcode, o.Cycles)
	case *Flow:
		fmt.Fprintf(w, "%s%s %s -> %s%s ret=%08x\n",
			addrColor(fmt.Sprintf("%08x", o.Src)), label(syms, o.Src),
			flowColor(m68k.FlowKind(o.Kind).String()),
			addrColor(fmt.Sprintf("%08x", o.Dst)), label(syms, o.Dst), o.Ret)
	case *Mem:
		fmt.Fprintf(w, "%s %s.%d %08x%s = %0*x\n",
			addrColor(fmt.Sprintf("%08x", o.PC)),
			memColor(m68k.MemKind(o.Kind).String()),
			o.Size, o.Addr, label(syms, o.Addr), int(o.Size)*2, o.Val)
	}
}
