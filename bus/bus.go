// Package bus routes every memory access the core makes onto caller-supplied
// backing stores: an ordered region list, then an optional host or legacy
// callback fallback, then a zero fill.
package bus

import (
	"github.com/pkg/errors"
)

// Region maps [Start, Start+Size) onto a caller-owned byte slice. The router
// never allocates or frees the buffer; the caller must keep it alive until
// ClearRegions.
type Region struct {
	Start uint32
	Size  uint32
	Data  []byte
}

// contains reports whether an access of size bytes at addr fits entirely
// inside the region. 64-bit math so Start+Size near the top of the address
// space can't wrap into a false positive.
func (r *Region) contains(addr uint32, size int) bool {
	a := uint64(addr)
	return a >= uint64(r.Start) && a+uint64(size) <= uint64(r.Start)+uint64(r.Size)
}

// Handler is the legacy width-oriented callback pair.
type Handler interface {
	Read(addr uint32, size int) uint32
	Write(addr uint32, size int, val uint32)
}

// fallback is the closed set of behaviors for an access no region claims.
type fallback interface {
	read(addr uint32, size int) uint32
	write(addr uint32, size int, val uint32)
}

// hostIO composes wide accesses from per-byte host calls, masking each
// address to the physical bus width first.
type hostIO struct {
	mask uint32
	rd   func(addr uint32) uint8
	wr   func(addr uint32, val uint8)
}

func (h *hostIO) read(addr uint32, size int) uint32 {
	var val uint32
	for i := 0; i < size; i++ {
		val = val<<8 | uint32(h.rd((addr+uint32(i))&h.mask))
	}
	return val
}

func (h *hostIO) write(addr uint32, size int, val uint32) {
	for i := 0; i < size; i++ {
		shift := uint(8 * (size - 1 - i))
		h.wr((addr+uint32(i))&h.mask, uint8(val>>shift))
	}
}

type legacyIO struct {
	h Handler
}

func (l *legacyIO) read(addr uint32, size int) uint32       { return l.h.Read(addr, size) }
func (l *legacyIO) write(addr uint32, size int, val uint32) { l.h.Write(addr, size, val) }

// Router implements m68k.Bus over a first-fit region list. Regions are tried
// in registration order; an access that straddles a region boundary rejects
// the whole region and falls through, so a partial write can never leak past
// the end of a buffer.
type Router struct {
	bits    uint
	mask    uint32
	regions []*Region
	// host takes priority over legacy when both are installed
	host   fallback
	legacy fallback
}

// New returns a Router for a physical bus of the given width in bits.
// The width only affects the address mask applied on the host byte path.
func New(bits uint) *Router {
	if bits == 0 || bits > 32 {
		bits = 24
	}
	return &Router{
		bits: bits,
		mask: ^uint32(0) >> (32 - bits),
	}
}

// Bits returns the configured physical bus width.
func (r *Router) Bits() uint { return r.bits }

// Mask returns the physical address mask.
func (r *Router) Mask() uint32 { return r.mask }

// AddRegion registers a caller-owned buffer at start. The buffer must cover
// size bytes. Registration order is match priority.
func (r *Router) AddRegion(start, size uint32, data []byte) error {
	if size == 0 {
		return errors.New("empty region")
	}
	if uint64(len(data)) < uint64(size) {
		return errors.Errorf("region buffer too small (%d < %d)", len(data), size)
	}
	r.regions = append(r.regions, &Region{Start: start, Size: size, Data: data})
	return nil
}

// ClearRegions drops all region references. The callers' buffers are
// untouched.
func (r *Router) ClearRegions() {
	r.regions = nil
}

// SetHostIO installs the byte-oriented host callback pair. Passing nil for
// either clears the host path.
func (r *Router) SetHostIO(rd func(addr uint32) uint8, wr func(addr uint32, val uint8)) {
	if rd == nil || wr == nil {
		r.host = nil
		return
	}
	r.host = &hostIO{mask: r.mask, rd: rd, wr: wr}
}

// SetHandler installs the legacy width-oriented callback. A nil handler
// clears the legacy path.
func (r *Router) SetHandler(h Handler) {
	if h == nil {
		r.legacy = nil
		return
	}
	r.legacy = &legacyIO{h: h}
}

func (r *Router) fallbackIO() fallback {
	if r.host != nil {
		return r.host
	}
	return r.legacy
}

func (r *Router) find(addr uint32, size int) *Region {
	for _, reg := range r.regions {
		if reg.contains(addr, size) {
			return reg
		}
	}
	return nil
}

// Read returns the big-endian value of size bytes at addr. Unclaimed
// addresses read from the fallback, or 0 if none is installed.
func (r *Router) Read(addr uint32, size int) uint32 {
	if size != 1 && size != 2 && size != 4 {
		return 0
	}
	if reg := r.find(addr, size); reg != nil {
		p := reg.Data[addr-reg.Start:]
		var val uint32
		for i := 0; i < size; i++ {
			val = val<<8 | uint32(p[i])
		}
		return val
	}
	if fb := r.fallbackIO(); fb != nil {
		return fb.read(addr, size)
	}
	return 0
}

// Write stores the low size bytes of val big-endian at addr. Unclaimed
// writes go to the fallback, or are dropped.
func (r *Router) Write(addr uint32, size int, val uint32) {
	if size != 1 && size != 2 && size != 4 {
		return
	}
	if reg := r.find(addr, size); reg != nil {
		p := reg.Data[addr-reg.Start:]
		for i := 0; i < size; i++ {
			shift := uint(8 * (size - 1 - i))
			p[i] = uint8(val >> shift)
		}
		return
	}
	if fb := r.fallbackIO(); fb != nil {
		fb.write(addr, size, val)
	}
}

// Write32HighFirst performs a 32-bit write as two word writes, high word
// first. This matches the bus order of a real write-before-predecrement
// sequence, which matters for IO regions that latch on word access order.
func (r *Router) Write32HighFirst(addr, val uint32) {
	r.Write(addr, 2, val>>16)
	r.Write(addr+2, 2, val&0xffff)
}

// ReadBytes fills p from addr one byte at a time through the normal routing
// chain.
func (r *Router) ReadBytes(addr uint32, p []byte) {
	for i := range p {
		p[i] = uint8(r.Read(addr+uint32(i), 1))
	}
}

// WriteBytes stores p at addr one byte at a time through the normal routing
// chain.
func (r *Router) WriteBytes(addr uint32, p []byte) {
	for i := range p {
		r.Write(addr+uint32(i), 1, uint32(p[i]))
	}
}
