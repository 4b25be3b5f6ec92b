package m68k

import (
	"sort"

	"github.com/lunixbochs/fvbommel-util/sortorder"
)

// Register identifiers shared between the core and the host layer.
// D0-D7 and A0-A7 are contiguous so they can be addressed as Reg(RegD0+n).
const (
	RegD0 = iota
	RegD1
	RegD2
	RegD3
	RegD4
	RegD5
	RegD6
	RegD7
	RegA0
	RegA1
	RegA2
	RegA3
	RegA4
	RegA5
	RegA6
	RegA7
	RegPC
	RegSR
	RegUSP
	RegISP
	RegVBR
	RegPPC
	RegIR

	regMax
)

// RegSP aliases A7, the active stack pointer.
const RegSP = RegA7

type Reg struct {
	Enum int
	Name string
}

type RegVal struct {
	Reg
	Val uint32
}

var regNames = map[int]string{
	RegD0: "d0", RegD1: "d1", RegD2: "d2", RegD3: "d3",
	RegD4: "d4", RegD5: "d5", RegD6: "d6", RegD7: "d7",
	RegA0: "a0", RegA1: "a1", RegA2: "a2", RegA3: "a3",
	RegA4: "a4", RegA5: "a5", RegA6: "a6", RegA7: "a7",
	RegPC: "pc", RegSR: "sr", RegUSP: "usp", RegISP: "isp",
	RegVBR: "vbr", RegPPC: "ppc", RegIR: "ir",
}

type regList []Reg

func (r regList) Len() int           { return len(r) }
func (r regList) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }
func (r regList) Less(i, j int) bool { return sortorder.NaturalLess(r[i].Name, r[j].Name) }

var sortedRegs regList

func init() {
	for e, n := range regNames {
		sortedRegs = append(sortedRegs, Reg{e, n})
	}
	sort.Sort(sortedRegs)
}

// RegName returns the symbolic name for a register enum, or "" if the enum
// is out of range.
func RegName(enum int) string {
	return regNames[enum]
}

// RegDump reads every named register in natural name order.
func RegDump(r RegReader) []RegVal {
	ret := make([]RegVal, len(sortedRegs))
	for i, reg := range sortedRegs {
		ret[i] = RegVal{reg, r.RegRead(reg.Enum)}
	}
	return ret
}
