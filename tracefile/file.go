package tracefile

import (
	"bufio"
	"io"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/emukit/m68khost/m68k"
	"github.com/emukit/m68khost/trace"
)

var Magic = "M68T"

// Header is written uncompressed at the start of the file; everything after
// it is a snappy stream of tagged ops.
type Header struct {
	Magic   string `struc:"[4]byte"`
	Version uint32
	BusBits uint32
}

type Writer struct {
	w  io.WriteCloser
	zw *snappy.Writer
}

func NewWriter(w io.WriteCloser, busBits uint) (*Writer, error) {
	hdr := &Header{Magic: Magic, Version: 1, BusBits: uint32(busBits)}
	if err := struc.Pack(w, hdr); err != nil {
		return nil, errors.Wrap(err, "failed to write trace header")
	}
	return &Writer{w: w, zw: snappy.NewBufferedWriter(w)}, nil
}

func (w *Writer) pack(tag byte, rec interface{}) error {
	if _, err := w.zw.Write([]byte{tag}); err != nil {
		return errors.Wrap(err, "trace write failed")
	}
	return errors.Wrap(struc.Pack(w.zw, rec), "trace write failed")
}

func (w *Writer) WriteInsn(pc uint32, opcode uint16, cycles uint32) error {
	return w.pack(opInsn, &Insn{PC: pc, Opcode: opcode, Cycles: cycles})
}

func (w *Writer) WriteFlow(kind m68k.FlowKind, src, dst, ret uint32, dregs, aregs *[8]uint32) error {
	return w.pack(opFlow, &Flow{Kind: uint8(kind), Src: src, Dst: dst, Ret: ret, D: *dregs, A: *aregs})
}

func (w *Writer) WriteMem(kind m68k.MemKind, pc, addr, val uint32, size int) error {
	return w.pack(opMem, &Mem{Kind: uint8(kind), PC: pc, Addr: addr, Val: val, Size: uint8(size)})
}

// Attach installs this writer as the engine's listener for all three
// classes. The listeners never request a break; write errors are dropped on
// the floor rather than disturbing the run.
func (w *Writer) Attach(e *trace.Engine) {
	e.SetInstructionListener(func(pc uint32, opcode uint16, cycles uint32) int {
		w.WriteInsn(pc, opcode, cycles)
		return 0
	})
	e.SetFlowListener(func(kind m68k.FlowKind, src, dst, ret uint32, dregs, aregs *[8]uint32) int {
		w.WriteFlow(kind, src, dst, ret, dregs, aregs)
		return 0
	})
	e.SetMemListener(func(kind m68k.MemKind, pc, addr, val uint32, size int) int {
		w.WriteMem(kind, pc, addr, val, size)
		return 0
	})
}

func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		w.w.Close()
		return errors.Wrap(err, "failed to flush trace stream")
	}
	return errors.Wrap(w.w.Close(), "failed to close tracefile")
}

type Reader struct {
	Header Header
	br     *bufio.Reader
}

func NewReader(r io.Reader) (*Reader, error) {
	tr := &Reader{}
	if err := struc.Unpack(r, &tr.Header); err != nil {
		return nil, errors.Wrap(err, "failed to read trace header")
	}
	if tr.Header.Magic != Magic {
		return nil, errors.Errorf("bad trace magic %q", tr.Header.Magic)
	}
	tr.br = bufio.NewReader(snappy.NewReader(r))
	return tr, nil
}

// Next decodes one op, returning io.EOF at the end of the stream.
func (r *Reader) Next() (Op, error) {
	tag, err := r.br.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case opNop:
		return r.Next()
	case opInsn:
		rec := &Insn{}
		err = struc.Unpack(r.br, rec)
		return rec, errors.Wrap(err, "truncated insn op")
	case opFlow:
		rec := &Flow{}
		err = struc.Unpack(r.br, rec)
		return rec, errors.Wrap(err, "truncated flow op")
	case opMem:
		rec := &Mem{}
		err = struc.Unpack(r.br, rec)
		return rec, errors.Wrap(err, "truncated mem op")
	default:
		return nil, errors.Errorf("unknown op tag %d", tag)
	}
}
