package types

import "fmt"

// Fund enumerates the fundamental value widths.
type Fund uint8

const (
	Void Fund = iota
	Byte
	Char
	Int
	Card
)

var fundNames = [...]string{
	Void: "VOID",
	Byte: "BYTE",
	Char: "CHAR",
	Int:  "INT",
	Card: "CARD",
}

func (f Fund) String() string {
	if int(f) < len(fundNames) {
		return fundNames[f]
	}
	return fmt.Sprintf("FUND(%d)", int(f))
}

// Size returns the storage width in bytes.
func (f Fund) Size() int {
	switch f {
	case Byte, Char:
		return 1
	case Int, Card:
		return 2
	}
	return 0
}

// Signed reports whether the type holds negative values.
func (f Fund) Signed() bool {
	return f == Int
}

// Value returns the width an expression of this type carries on the
// operand stack. Fundamental types are their own value width.
func (f Fund) Value() Fund { return f }

func (f Fund) castPriority() int {
	switch f {
	case Byte, Char:
		return 1
	case Int:
		return 2
	case Card:
		return 3
	}
	return 0
}

// Promote picks the wider of two fundamental types by cast priority.
// Equal priority resolves to a.
func Promote(a, b Fund) Fund {
	if b.castPriority() > a.castPriority() {
		return b
	}
	return a
}

// Fit wraps v into the representable range of f. Two-byte values wrap
// modulo 65536 and INT reinterprets the high bit as sign, so a CARD
// 65535 fits to INT -1 and an INT -1 fits to CARD 65535.
func Fit(f Fund, v int) int {
	switch f {
	case Byte, Char:
		return v & 0xFF
	case Card:
		return v & 0xFFFF
	case Int:
		v &= 0xFFFF
		if v >= 0x8000 {
			v -= 0x10000
		}
		return v
	}
	return v
}

// Type is implemented by every declarable type: the fundamentals plus
// POINTER, ARRAY and RECORD.
type Type interface {
	Size() int
	// Value is the fundamental width a load of this variable pushes.
	Value() Fund
}

// Pointer is a 2-byte address of a referent type.
type Pointer struct {
	Ref Type
}

func (p Pointer) Size() int   { return 2 }
func (p Pointer) Value() Fund { return Card }

// Array is a fixed run of fundamental elements. Loading the bare array
// name yields its base address.
type Array struct {
	Elem Fund
	Len  int
}

func (a Array) Size() int   { return a.Elem.Size() * a.Len }
func (a Array) Value() Fund { return Card }

// Field is a named member of a record with a fixed byte offset.
type Field struct {
	Name   string
	T      Fund
	Offset int
}

// Record is an ordered set of fundamental fields.
type Record struct {
	Name   string
	Fields []Field
	size   int
}

// NewRecord lays out fields at cumulative offsets.
func NewRecord(name string, fields []Field) *Record {
	r := &Record{Name: name}
	off := 0
	for _, f := range fields {
		f.Offset = off
		off += f.T.Size()
		r.Fields = append(r.Fields, f)
	}
	r.size = off
	return r
}

func (r *Record) Size() int   { return r.size }
func (r *Record) Value() Fund { return Card }

// Field looks up a member by name.
func (r *Record) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
