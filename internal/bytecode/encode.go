package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/ract-lang/ract/internal/types"
)

// binary artifact header
var magic = [4]byte{'R', 'A', 'C', 'T'}

const formatVersion = 1

// programDoc is a method-free alias of Program. yaml would otherwise
// treat *Program as a TextMarshaler and re-enter MarshalText forever.
type programDoc Program

// MarshalText renders the program as YAML.
func (p *Program) MarshalText() ([]byte, error) {
	return yaml.Marshal((*programDoc)(p))
}

// UnmarshalText reads a YAML program.
func UnmarshalText(data []byte) (*Program, error) {
	doc := &programDoc{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	return (*Program)(doc), nil
}

// Encode writes the little-endian binary form of the program.
func (p *Program) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	buf.Write(magic[:])
	buf.WriteByte(formatVersion)

	writeU32(buf, uint32(len(p.Instrs)))
	for _, in := range p.Instrs {
		buf.WriteByte(byte(in.Op))
		buf.WriteByte(byte(in.Type))
		writeU32(buf, uint32(int32(in.Arg)))
	}

	writeU32(buf, uint32(len(p.Routines)))
	for _, rt := range p.Routines {
		writeU16(buf, uint16(len(rt.Name)))
		buf.WriteString(rt.Name)
		writeU32(buf, uint32(int32(rt.Entry)))
		buf.WriteByte(byte(rt.Ret))
		if rt.Host {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		writeU32(buf, uint32(int32(rt.FixedAddr)))
		buf.WriteByte(byte(len(rt.Params)))
		for _, pm := range rt.Params {
			writeU16(buf, pm.Addr)
			buf.WriteByte(byte(pm.Type))
		}
	}

	writeU32(buf, uint32(int32(p.Entry)))
	writeU16(buf, p.DataBase)
	writeU32(buf, uint32(len(p.Data)))
	buf.Write(p.Data)

	_, err := w.Write(buf.Bytes())
	return err
}

// Decode reads a binary program written by Encode.
func Decode(r io.Reader) (*Program, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	d := &decoder{data: data}

	var hdr [5]byte
	d.read(hdr[:])
	if !bytes.Equal(hdr[:4], magic[:]) {
		return nil, fmt.Errorf("not a bytecode artifact")
	}
	if hdr[4] != formatVersion {
		return nil, fmt.Errorf("unsupported artifact version %d", hdr[4])
	}

	p := &Program{}
	n := d.u32()
	for i := uint32(0); i < n && d.err == nil; i++ {
		op := Opcode(d.u8())
		if !op.Valid() {
			return nil, fmt.Errorf("instruction %d: bad opcode %d", i, op)
		}
		t := types.Fund(d.u8())
		arg := int(int32(d.u32()))
		p.Instrs = append(p.Instrs, Instruction{Op: op, Type: t, Arg: arg})
	}

	n = d.u32()
	for i := uint32(0); i < n && d.err == nil; i++ {
		rt := Routine{}
		nameLen := d.u16()
		name := make([]byte, nameLen)
		d.read(name)
		rt.Name = string(name)
		rt.Entry = int(int32(d.u32()))
		rt.Ret = types.Fund(d.u8())
		rt.Host = d.u8() != 0
		rt.FixedAddr = int(int32(d.u32()))
		np := int(d.u8())
		for j := 0; j < np; j++ {
			rt.Params = append(rt.Params, Param{Addr: d.u16(), Type: types.Fund(d.u8())})
		}
		p.Routines = append(p.Routines, rt)
	}

	p.Entry = int(int32(d.u32()))
	p.DataBase = d.u16()
	dl := d.u32()
	if dl > 0 {
		p.Data = make([]byte, dl)
		d.read(p.Data)
	}

	if d.err != nil {
		return nil, d.err
	}
	return p, nil
}

type decoder struct {
	data []byte
	pos  int
	err  error
}

func (d *decoder) read(b []byte) {
	if d.err != nil {
		return
	}
	if d.pos+len(b) > len(d.data) {
		d.err = fmt.Errorf("truncated artifact at byte %d", d.pos)
		return
	}
	copy(b, d.data[d.pos:])
	d.pos += len(b)
}

func (d *decoder) u8() byte {
	var b [1]byte
	d.read(b[:])
	return b[0]
}

func (d *decoder) u16() uint16 {
	var b [2]byte
	d.read(b[:])
	return binary.LittleEndian.Uint16(b[:])
}

func (d *decoder) u32() uint32 {
	var b [4]byte
	d.read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
