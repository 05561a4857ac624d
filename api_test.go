package ract

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func mustCompile(t *testing.T, src string) *Program {
	t.Helper()
	p, err := Compile("test", src)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return p
}

func TestAPICompileAndRun(t *testing.T) {
	p := mustCompile(t, `
BYTE x=5
BYTE y=10
PROC main()
  IF x<y THEN
    y=x
  FI
RETURN
`)
	m := NewMachine(p)
	if err := m.Run(); err != nil {
		t.Fatalf("run error: %v", err)
	}
	// globals allocate in declaration order from the data base
	y, err := m.PeekByte(p.DataBase() + 1)
	if err != nil {
		t.Fatalf("peek error: %v", err)
	}
	if y != 5 {
		t.Fatalf("y = %d, want 5", y)
	}
}

func TestAPICallByName(t *testing.T) {
	p := mustCompile(t, `
INT FUNC double(INT n)
RETURN (n+n)
PROC main()
RETURN
`)
	m := NewMachine(p)
	res, err := m.Call("double", Int(21))
	if err != nil {
		t.Fatalf("call error: %v", err)
	}
	if res.N() != 42 {
		t.Fatalf("double(21) = %d, want 42", res.N())
	}
	if res.Width() != "INT" {
		t.Fatalf("result width = %s, want INT", res.Width())
	}
}

func TestAPICompileErrorPositions(t *testing.T) {
	_, err := Compile("bad.act", `BYTE x
PROC main()
  y=1
RETURN
`)
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a compile error, got %v", err)
	}
	if ce.Source != "bad.act" {
		t.Fatalf("source = %q, want bad.act", ce.Source)
	}
	if ce.Line != 3 {
		t.Fatalf("line = %d, want 3", ce.Line)
	}
	if !strings.Contains(ce.Message, "y") {
		t.Fatalf("message %q does not name the symbol", ce.Message)
	}
}

func TestAPIFaultSurfaces(t *testing.T) {
	p := mustCompile(t, `
BYTE z
INT r
PROC main()
  r=1/z
RETURN
`)
	err := NewMachine(p).Run()
	var f *Fault
	if !errors.As(err, &f) {
		t.Fatalf("expected a fault, got %v", err)
	}
	if f.Kind != "divide by zero" {
		t.Fatalf("fault kind = %q", f.Kind)
	}
}

func TestAPIStepLimit(t *testing.T) {
	p := mustCompile(t, `
PROC main()
  DO OD
RETURN
`)
	err := NewMachine(p, WithStepLimit(100)).Run()
	var f *Fault
	if !errors.As(err, &f) || f.Kind != "step limit exceeded" {
		t.Fatalf("expected a step limit fault, got %v", err)
	}
}

func TestAPIDevPrintOutput(t *testing.T) {
	p := mustCompile(t, `
INT n=-7
PROC main()
  DEVPRINT(n)
RETURN
`)
	var out bytes.Buffer
	m := NewMachine(p, WithOutput(&out))
	if err := m.Run(); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if out.String() != "-7\n" {
		t.Fatalf("output %q, want %q", out.String(), "-7\n")
	}
}

func TestAPIHostBinding(t *testing.T) {
	p := mustCompile(t, `
PROC main()
  DEVPRINT(99)
RETURN
`)
	m := NewMachine(p)
	var got []int
	m.BindHost(DevPrintName, func(args []Value) (Value, error) {
		got = append(got, args[0].N())
		return Value{}, nil
	})
	if err := m.Run(); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if len(got) != 1 || got[0] != 99 {
		t.Fatalf("host saw %v, want [99]", got)
	}
}

func TestAPITraceHook(t *testing.T) {
	p := mustCompile(t, `
BYTE x
PROC main()
  x=1
RETURN
`)
	var ops []string
	m := NewMachine(p, WithTraceHook(func(ti TraceInfo) {
		ops = append(ops, ti.Op)
	}))
	if err := m.Run(); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if len(ops) == 0 {
		t.Fatal("trace hook never fired")
	}
	if ops[len(ops)-1] != "Return" {
		t.Fatalf("last op = %s, want Return", ops[len(ops)-1])
	}
}

func TestAPIBinaryRoundTrip(t *testing.T) {
	p := mustCompile(t, `
BYTE a=3
BYTE b
PROC main()
  b=a*2
RETURN
`)
	var buf bytes.Buffer
	if err := p.EncodeBinary(&buf); err != nil {
		t.Fatalf("encode error: %v", err)
	}
	p2, err := DecodeBinary(&buf)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	m := NewMachine(p2)
	if err := m.Run(); err != nil {
		t.Fatalf("run error: %v", err)
	}
	b, _ := m.PeekByte(p2.DataBase() + 1)
	if b != 6 {
		t.Fatalf("b = %d, want 6", b)
	}
}

func TestAPIYAMLRoundTrip(t *testing.T) {
	p := mustCompile(t, `
BYTE a=3
PROC main()
  a=a+1
RETURN
`)
	text, err := p.MarshalText()
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	p2, err := UnmarshalText(text)
	if err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	m := NewMachine(p2)
	if err := m.Run(); err != nil {
		t.Fatalf("run error: %v", err)
	}
	a, _ := m.PeekByte(p2.DataBase())
	if a != 4 {
		t.Fatalf("a = %d, want 4", a)
	}
}

func TestAPIDisassemble(t *testing.T) {
	p := mustCompile(t, `
BYTE x
PROC main()
  x=5
RETURN
`)
	listing := p.Disassemble()
	for _, want := range []string{"main", "PushConst", "StoreAbs", "Return"} {
		if !strings.Contains(listing, want) {
			t.Fatalf("listing missing %q:\n%s", want, listing)
		}
	}
}

func TestAPIProgramInfo(t *testing.T) {
	p := mustCompile(t, `
PROC helper()
RETURN
PROC main()
RETURN
`)
	if got := p.EntryName(); got != "main" {
		t.Fatalf("entry = %q, want main", got)
	}
	var names []string
	for _, rt := range p.Routines() {
		if !rt.Host {
			names = append(names, rt.Name)
		}
	}
	if len(names) != 2 || names[0] != "helper" || names[1] != "main" {
		t.Fatalf("routines = %v", names)
	}
}

func TestAPIMemoryAccess(t *testing.T) {
	p := mustCompile(t, `
CARD c
PROC main()
RETURN
`)
	m := NewMachine(p)
	if err := m.PokeCard(p.DataBase(), 0xBEEF); err != nil {
		t.Fatalf("poke error: %v", err)
	}
	n, err := m.PeekCard(p.DataBase())
	if err != nil {
		t.Fatalf("peek error: %v", err)
	}
	if n != 0xBEEF {
		t.Fatalf("read back $%04X, want $BEEF", n)
	}
	if err := m.PokeCard(0xFFFF, 1); err == nil {
		t.Fatal("expected out of bounds error")
	}
}
