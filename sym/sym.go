// Package sym is a presentation-only side table mapping addresses to human
// labels. It never sits on a correctness-critical path; a miss is an empty
// string, not an error.
package sym

import (
	"fmt"
	"sort"

	"github.com/lunixbochs/fvbommel-util/sortorder"
	"github.com/pkg/errors"
)

type rangeLabel struct {
	start, end uint32
	name       string
}

type Table struct {
	exact  map[uint32]string
	ranges []rangeLabel
}

func NewTable() *Table {
	return &Table{exact: make(map[uint32]string)}
}

// Add labels a single address. A duplicate address overwrites.
func (t *Table) Add(addr uint32, name string) {
	t.exact[addr] = name
}

// AddRange labels [start, end); lookups inside decorate with +offset.
func (t *Table) AddRange(start, end uint32, name string) error {
	if start >= end {
		return errors.Errorf("inverted symbol range [%#x, %#x)", start, end)
	}
	t.ranges = append(t.ranges, rangeLabel{start, end, name})
	return nil
}

// Lookup resolves addr to a label. Exact labels win; range hits other than
// the base decorate with the offset; unknown addresses return "".
func (t *Table) Lookup(addr uint32) string {
	if name, ok := t.exact[addr]; ok {
		return name
	}
	for _, r := range t.ranges {
		if addr >= r.start && addr < r.end {
			if addr == r.start {
				return r.name
			}
			return fmt.Sprintf("%s+0x%x", r.name, addr-r.start)
		}
	}
	return ""
}

// Names returns every label in natural sort order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.exact)+len(t.ranges))
	for _, n := range t.exact {
		names = append(names, n)
	}
	for _, r := range t.ranges {
		names = append(names, r.name)
	}
	sort.Slice(names, func(i, j int) bool {
		return sortorder.NaturalLess(names[i], names[j])
	})
	return names
}
