package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mgutz/ansi"
	"github.com/shibukawa/configdir"

	"github.com/emukit/m68khost/emu"
	"github.com/emukit/m68khost/m68k"
	"github.com/emukit/m68khost/m68k/m68ktest"
	"github.com/emukit/m68khost/sym"
	"github.com/emukit/m68khost/trace"
	"github.com/emukit/m68khost/tracefile"
)

var (
	pcColor  = ansi.ColorFunc("cyan")
	errColor = ansi.ColorFunc("red")
)

func parseAddr(s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 32)
	return uint32(n), err
}

// loadImage handles the -load file@addr form. The backing buffer doubles as
// the bus region, so the whole image is both readable and writable.
func loadImage(m *emu.Machine, arg string) error {
	parts := strings.SplitN(arg, "@", 2)
	if len(parts) != 2 {
		return fmt.Errorf("expected file@addr, got %q", arg)
	}
	addr, err := parseAddr(parts[1])
	if err != nil {
		return err
	}
	data, err := ioutil.ReadFile(parts[0])
	if err != nil {
		return err
	}
	return m.AddRegion(addr, uint32(len(data)), data)
}

func historyPath() string {
	dirs := configdir.New("m68khost", "monitor")
	cache := dirs.QueryCacheFolder()
	if err := cache.MkdirAll(); err != nil {
		return ""
	}
	return filepath.Join(cache.Path, "history")
}

func printRegs(m *emu.Machine) {
	for i, r := range m.RegDump() {
		fmt.Printf("%4s %08x", r.Name, r.Val)
		if i%4 == 3 {
			fmt.Println()
		}
	}
	fmt.Println()
}

func printFault(m *emu.Machine) {
	f := m.LastFault()
	if !f.Active {
		fmt.Println("no fault recorded")
		return
	}
	fmt.Printf("%s: vector=%d addr=%08x size=%d pc=%08x ppc=%08x sp=%08x sr=%04x op=%04x\n",
		errColor(f.Kind.String()), f.Vector, f.Address, f.Size, f.PC, f.PPC, f.SP, f.SR, f.Opcode)
}

func disas(m *emu.Machine, addr uint32, count int, syms *sym.Table) {
	for i := 0; i < count; i++ {
		text, length := m.Core().Disassemble(addr)
		name := syms.Lookup(addr)
		if name != "" {
			fmt.Printf("%s:\n", name)
		}
		fmt.Printf("%s  %s\n", pcColor(fmt.Sprintf("%08x", addr)), text)
		addr += uint32(length)
	}
}

func repl(m *emu.Machine, syms *sym.Table) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "m68k> ",
		InterruptPrompt: "\n",
		HistoryFile:     historyPath(),
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "q", "quit":
			return nil
		case "s", "step":
			cycles := m.StepOne()
			pc := m.Core().RegRead(m68k.RegPC)
			text, _ := m.Core().Disassemble(m.Core().RegRead(m68k.RegPPC))
			fmt.Printf("%s  [%d cycles] -> pc=%08x\n", text, cycles, pc)
		case "r", "regs":
			printRegs(m)
		case "d", "dis":
			addr := m.Core().RegRead(m68k.RegPC)
			if len(args) > 1 {
				if addr, err = parseAddr(args[1]); err != nil {
					fmt.Println(errColor(err.Error()))
					continue
				}
			}
			disas(m, addr, 8, syms)
		case "m", "mem":
			if len(args) < 2 {
				fmt.Println("usage: m addr [words]")
				continue
			}
			addr, err := parseAddr(args[1])
			if err != nil {
				fmt.Println(errColor(err.Error()))
				continue
			}
			count := 8
			if len(args) > 2 {
				count, _ = strconv.Atoi(args[2])
			}
			for i := 0; i < count; i++ {
				fmt.Printf("%08x: %04x\n", addr, m.Bus().Read(addr, 2))
				addr += 2
			}
		case "call":
			if len(args) < 2 {
				fmt.Println("usage: call addr")
				continue
			}
			addr, err := parseAddr(args[1])
			if err != nil {
				fmt.Println(errColor(err.Error()))
				continue
			}
			fmt.Printf("returned after %d cycles\n", m.RunUntilReturn(addr, 0))
		case "run":
			var budget uint32
			if len(args) > 1 {
				n, _ := strconv.Atoi(args[1])
				budget = uint32(n)
			}
			fmt.Printf("ran %d cycles (%s)\n", m.Run(budget), m.Reason())
		case "reset":
			m.Reset()
			printRegs(m)
		case "fault":
			printFault(m)
		default:
			fmt.Println("commands: step regs dis mem call run reset fault quit")
		}
	}
}

func main() {
	fs := flag.NewFlagSet("m68khost", flag.ExitOnError)
	var loads strslice
	fs.Var(&loads, "load", "load raw image (file@hexaddr); repeatable")
	traceClasses := fs.String("trace", "", "comma-separated trace classes (insn,flow,mem)")
	traceOut := fs.String("tracefile", "", "write binary trace log to file")
	cycles := fs.Uint("cycles", 0, "cycle budget to run after reset (0 = default slice)")
	useRepl := fs.Bool("repl", false, "drop into the monitor repl")
	busBits := fs.Uint("bus", 24, "physical address bus width in bits")
	fs.Parse(os.Args[1:])

	m := emu.New(func(b m68k.Bus, h m68k.Hooks) m68k.Core {
		return m68ktest.New(b, h)
	}, *busBits)

	for _, l := range loads {
		if err := loadImage(m, l); err != nil {
			fmt.Fprintln(os.Stderr, errColor(err.Error()))
			os.Exit(1)
		}
	}

	syms := sym.NewTable()

	if *traceClasses != "" {
		e := m.Trace()
		e.SetEnabled(true)
		for _, c := range strings.Split(*traceClasses, ",") {
			switch c {
			case "insn":
				e.SetInstructionEnabled(true)
			case "flow":
				e.SetFlowEnabled(true)
			case "mem":
				e.SetMemEnabled(true)
			}
		}
		if *traceOut != "" {
			f, err := os.Create(*traceOut)
			if err != nil {
				fmt.Fprintln(os.Stderr, errColor(err.Error()))
				os.Exit(1)
			}
			tw, err := tracefile.NewWriter(f, m.Bus().Bits())
			if err != nil {
				fmt.Fprintln(os.Stderr, errColor(err.Error()))
				os.Exit(1)
			}
			defer tw.Close()
			tw.Attach(e)
		} else {
			attachPrinter(e, syms)
		}
	}

	m.Reset()
	if *useRepl {
		if err := repl(m, syms); err != nil {
			fmt.Fprintln(os.Stderr, errColor(err.Error()))
			os.Exit(1)
		}
		return
	}
	used := m.Run(uint32(*cycles))
	fmt.Printf("ran %d cycles (%s), %d total traced\n", used, m.Reason(), m.Trace().Cycles())
	if m.LastFault().Active {
		printFault(m)
	}
}

// attachPrinter dumps trace events straight to stderr when no tracefile was
// requested.
func attachPrinter(e *trace.Engine, syms *sym.Table) {
	e.SetInstructionListener(func(pc uint32, opcode uint16, cycles uint32) int {
		tracefile.Print(os.Stderr, &tracefile.Insn{PC: pc, Opcode: opcode, Cycles: cycles}, syms)
		return 0
	})
	e.SetFlowListener(func(kind m68k.FlowKind, src, dst, ret uint32, dregs, aregs *[8]uint32) int {
		tracefile.Print(os.Stderr, &tracefile.Flow{Kind: uint8(kind), Src: src, Dst: dst, Ret: ret, D: *dregs, A: *aregs}, syms)
		return 0
	})
	e.SetMemListener(func(kind m68k.MemKind, pc, addr, value uint32, size int) int {
		tracefile.Print(os.Stderr, &tracefile.Mem{Kind: uint8(kind), PC: pc, Addr: addr, Val: value, Size: uint8(size)}, syms)
		return 0
	})
}

// strslice is a repeatable flag value.
type strslice []string

func (s *strslice) String() string {
	return fmt.Sprintf("%v", *s)
}

func (s *strslice) Set(value string) error {
	*s = append(*s, value)
	return nil
}
