package vm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ract-lang/ract/internal/bytecode"
	"github.com/ract-lang/ract/internal/types"
)

// prog builds a single-routine program around the given instructions.
func prog(instrs ...bytecode.Instruction) *bytecode.Program {
	return &bytecode.Program{
		Instrs: instrs,
		Routines: []bytecode.Routine{
			{Name: "main", Entry: 0, FixedAddr: -1},
		},
		Entry:    0,
		DataBase: 0x0800,
	}
}

func TestStoreAndLoadLittleEndian(t *testing.T) {
	p := prog(
		bytecode.Instruction{Op: bytecode.PushConst, Type: types.Card, Arg: 0x1234},
		bytecode.Instruction{Op: bytecode.PushConst, Type: types.Card, Arg: 0x0900},
		bytecode.Instruction{Op: bytecode.StoreAbs, Type: types.Card},
		bytecode.Instruction{Op: bytecode.Return, Type: types.Void},
	)
	v := New(p)
	if err := v.Run(); err != nil {
		t.Fatalf("run error: %v", err)
	}
	lo, _ := v.PeekByte(0x0900)
	hi, _ := v.PeekByte(0x0901)
	if lo != 0x34 || hi != 0x12 {
		t.Fatalf("memory = $%02X $%02X, want $34 $12", lo, hi)
	}
	n, _ := v.PeekCard(0x0900)
	if n != 0x1234 {
		t.Fatalf("PeekCard = $%04X", n)
	}
}

func TestCastReinterprets(t *testing.T) {
	p := prog(
		bytecode.Instruction{Op: bytecode.PushConst, Type: types.Int, Arg: -1},
		bytecode.Instruction{Op: bytecode.Cast, Type: types.Int, Arg: int(types.Card)},
		bytecode.Instruction{Op: bytecode.PushConst, Type: types.Card, Arg: 0x0900},
		bytecode.Instruction{Op: bytecode.StoreAbs, Type: types.Card},
		bytecode.Instruction{Op: bytecode.PushConst, Type: types.Card, Arg: 300},
		bytecode.Instruction{Op: bytecode.Cast, Type: types.Card, Arg: int(types.Byte)},
		bytecode.Instruction{Op: bytecode.PushConst, Type: types.Card, Arg: 0x0902},
		bytecode.Instruction{Op: bytecode.StoreAbs, Type: types.Byte},
		bytecode.Instruction{Op: bytecode.Return, Type: types.Void},
	)
	v := New(p)
	if err := v.Run(); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if n, _ := v.PeekCard(0x0900); n != 0xFFFF {
		t.Fatalf("INT -1 as CARD = %d, want 65535", n)
	}
	if n, _ := v.PeekByte(0x0902); n != 44 {
		t.Fatalf("CARD 300 as BYTE = %d, want 44", n)
	}
}

func TestArithmeticWrapsToWidth(t *testing.T) {
	// 200+100 at BYTE width wraps to 44
	p := prog(
		bytecode.Instruction{Op: bytecode.PushConst, Type: types.Byte, Arg: 200},
		bytecode.Instruction{Op: bytecode.PushConst, Type: types.Byte, Arg: 100},
		bytecode.Instruction{Op: bytecode.Add, Type: types.Byte},
		bytecode.Instruction{Op: bytecode.PushConst, Type: types.Card, Arg: 0x0900},
		bytecode.Instruction{Op: bytecode.StoreAbs, Type: types.Byte},
		bytecode.Instruction{Op: bytecode.Return, Type: types.Void},
	)
	v := New(p)
	if err := v.Run(); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if n, _ := v.PeekByte(0x0900); n != 44 {
		t.Fatalf("200+100 at BYTE = %d, want 44", n)
	}
}

func TestFaults(t *testing.T) {
	tests := []struct {
		name string
		p    *bytecode.Program
		kind FaultKind
	}{
		{
			"divide by zero",
			prog(
				bytecode.Instruction{Op: bytecode.PushConst, Type: types.Int, Arg: 1},
				bytecode.Instruction{Op: bytecode.PushConst, Type: types.Int, Arg: 0},
				bytecode.Instruction{Op: bytecode.Div, Type: types.Int},
				bytecode.Instruction{Op: bytecode.Return, Type: types.Void},
			),
			FaultDivideByZero,
		},
		{
			"stack underflow",
			prog(
				bytecode.Instruction{Op: bytecode.Drop, Type: types.Byte},
				bytecode.Instruction{Op: bytecode.Return, Type: types.Void},
			),
			FaultStackUnderflow,
		},
		{
			"memory out of bounds",
			prog(
				bytecode.Instruction{Op: bytecode.PushConst, Type: types.Byte, Arg: 1},
				bytecode.Instruction{Op: bytecode.PushConst, Type: types.Card, Arg: 0xFFFF},
				bytecode.Instruction{Op: bytecode.StoreAbs, Type: types.Card},
				bytecode.Instruction{Op: bytecode.Return, Type: types.Void},
			),
			FaultOutOfBounds,
		},
		{
			"unknown opcode",
			prog(
				bytecode.Instruction{Op: bytecode.Opcode(200)},
				bytecode.Instruction{Op: bytecode.Return, Type: types.Void},
			),
			FaultUnknownOpcode,
		},
		{
			"call depth overflow",
			prog(
				bytecode.Instruction{Op: bytecode.Call, Arg: 0},
				bytecode.Instruction{Op: bytecode.Return, Type: types.Void},
			),
			FaultCallOverflow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.p).Run()
			var f *Fault
			if !errors.As(err, &f) {
				t.Fatalf("expected a fault, got %v", err)
			}
			if f.Kind != tt.kind {
				t.Fatalf("fault kind = %v, want %v", f.Kind, tt.kind)
			}
		})
	}
}

func TestStackOverflowFault(t *testing.T) {
	p := prog(
		bytecode.Instruction{Op: bytecode.PushConst, Type: types.Byte, Arg: 1},
		bytecode.Instruction{Op: bytecode.Jump, Arg: 0},
	)
	err := New(p).Run()
	var f *Fault
	if !errors.As(err, &f) || f.Kind != FaultStackOverflow {
		t.Fatalf("expected a stack overflow fault, got %v", err)
	}
}

func TestStepLimit(t *testing.T) {
	p := prog(
		bytecode.Instruction{Op: bytecode.Jump, Arg: 0},
	)
	err := New(p, WithStepLimit(100)).Run()
	var f *Fault
	if !errors.As(err, &f) || f.Kind != FaultStepLimit {
		t.Fatalf("expected a step limit fault, got %v", err)
	}
}

func TestTraceHook(t *testing.T) {
	p := prog(
		bytecode.Instruction{Op: bytecode.Nop},
		bytecode.Instruction{Op: bytecode.Return, Type: types.Void},
	)
	var seen []bytecode.Opcode
	v := New(p, WithTraceHook(func(ti TraceInfo) {
		seen = append(seen, ti.Op)
	}))
	if err := v.Run(); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if len(seen) != 2 || seen[0] != bytecode.Nop || seen[1] != bytecode.Return {
		t.Fatalf("trace = %v", seen)
	}
}

func TestHostRoutineCall(t *testing.T) {
	p := &bytecode.Program{
		Instrs: []bytecode.Instruction{
			{Op: bytecode.PushConst, Type: types.Byte, Arg: 7},
			{Op: bytecode.PushConst, Type: types.Byte, Arg: 5},
			{Op: bytecode.CallHost, Arg: 1},
			{Op: bytecode.PushConst, Type: types.Card, Arg: 0x0900},
			{Op: bytecode.StoreAbs, Type: types.Card},
			{Op: bytecode.Return, Type: types.Void},
		},
		Routines: []bytecode.Routine{
			{Name: "main", Entry: 0, FixedAddr: -1},
			{Name: "SUM", Entry: -1, Host: true, Ret: types.Card, FixedAddr: -1,
				Params: []bytecode.Param{{Type: types.Byte}, {Type: types.Byte}}},
		},
		Entry:    0,
		DataBase: 0x0800,
	}
	v := New(p)
	v.RegisterHost("SUM", func(_ *VM, args []Value) (Value, error) {
		return CardValue(args[0].N + args[1].N), nil
	})
	if err := v.Run(); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if n, _ := v.PeekCard(0x0900); n != 12 {
		t.Fatalf("host result = %d, want 12", n)
	}
}

func TestMissingHostFaults(t *testing.T) {
	p := &bytecode.Program{
		Instrs: []bytecode.Instruction{
			{Op: bytecode.CallHost, Arg: 1},
			{Op: bytecode.Return, Type: types.Void},
		},
		Routines: []bytecode.Routine{
			{Name: "main", Entry: 0, FixedAddr: -1},
			{Name: "NOWHERE", Entry: -1, Host: true, FixedAddr: -1},
		},
		Entry:    0,
		DataBase: 0x0800,
	}
	err := New(p).Run()
	var f *Fault
	if !errors.As(err, &f) || f.Kind != FaultBadHost {
		t.Fatalf("expected a bad host fault, got %v", err)
	}
}

func TestDevPrintWritesOutput(t *testing.T) {
	p := &bytecode.Program{
		Instrs: []bytecode.Instruction{
			{Op: bytecode.PushConst, Type: types.Int, Arg: -42},
			{Op: bytecode.CallHost, Arg: 1},
			{Op: bytecode.Return, Type: types.Void},
		},
		Routines: []bytecode.Routine{
			{Name: "main", Entry: 0, FixedAddr: -1},
			{Name: "DEVPRINT", Entry: -1, Host: true, FixedAddr: -1,
				Params: []bytecode.Param{{Type: types.Card}}},
		},
		Entry:    0,
		DataBase: 0x0800,
	}
	var out bytes.Buffer
	v := New(p, WithOutput(&out))
	if err := v.Run(); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if out.String() != "-42\n" {
		t.Fatalf("output %q, want %q", out.String(), "-42\n")
	}
}

func TestDataImageLoaded(t *testing.T) {
	p := prog(
		bytecode.Instruction{Op: bytecode.Return, Type: types.Void},
	)
	p.Data = []byte{1, 2, 3}
	v := New(p)
	if n, _ := v.PeekByte(0x0802); n != 3 {
		t.Fatalf("data image byte = %d, want 3", n)
	}
}
