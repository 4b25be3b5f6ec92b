package sym

import (
	"testing"
)

func TestLookup(t *testing.T) {
	tab := NewTable()
	tab.Add(0x1000, "entry")
	if err := tab.AddRange(0x2000, 0x2100, "render"); err != nil {
		t.Fatal(err)
	}
	if err := tab.AddRange(0x2100, 0x2100, "bogus"); err == nil {
		t.Error("inverted range accepted")
	}
	cases := []struct {
		addr uint32
		want string
	}{
		{0x1000, "entry"},
		{0x1002, ""},
		{0x2000, "render"},
		{0x2010, "render+0x10"},
		{0x2100, ""},
	}
	for _, c := range cases {
		if got := tab.Lookup(c.addr); got != c.want {
			t.Errorf("Lookup(%#x) = %q, want %q", c.addr, got, c.want)
		}
	}
}

func TestNamesNatural(t *testing.T) {
	tab := NewTable()
	tab.Add(2, "irq10")
	tab.Add(1, "irq2")
	names := tab.Names()
	if len(names) != 2 || names[0] != "irq2" || names[1] != "irq10" {
		t.Errorf("natural order broken: %v", names)
	}
}
