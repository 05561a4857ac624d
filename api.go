// Package ract compiles and executes programs written in a small
// Atari-style systems language with BYTE, INT and CARD arithmetic, a
// 64KB flat memory model and statically addressed variables.
package ract

import (
	"errors"
	"io"
	"os"

	"github.com/ract-lang/ract/internal/bytecode"
	"github.com/ract-lang/ract/internal/codegen"
	"github.com/ract-lang/ract/internal/lexer"
	"github.com/ract-lang/ract/internal/parser"
	"github.com/ract-lang/ract/internal/resolver"
	"github.com/ract-lang/ract/internal/vm"
)

// DevPrintName is the predeclared diagnostic output routine.
const DevPrintName = resolver.DevPrintName

// CompileError is a source-aware error from any compilation phase.
type CompileError struct {
	Source  string
	Line    int
	Message string
	cause   error
}

func (e *CompileError) Error() string {
	return e.cause.Error()
}

// Unwrap exposes the phase-specific error for errors.Is/As.
func (e *CompileError) Unwrap() error {
	return e.cause
}

func convertCompileError(err error) error {
	if err == nil {
		return nil
	}
	var lexErr *lexer.Error
	if errors.As(err, &lexErr) {
		return &CompileError{Source: lexErr.Pos.Source, Line: lexErr.Pos.Line, Message: lexErr.Msg, cause: err}
	}
	var parseErr *parser.Error
	if errors.As(err, &parseErr) {
		return &CompileError{Source: parseErr.Pos.Source, Line: parseErr.Pos.Line, Message: parseErr.Msg, cause: err}
	}
	var declErr *resolver.DeclError
	if errors.As(err, &declErr) {
		return &CompileError{Source: declErr.Pos.Source, Line: declErr.Pos.Line, Message: declErr.Msg, cause: err}
	}
	var typeErr *resolver.TypeError
	if errors.As(err, &typeErr) {
		return &CompileError{Source: typeErr.Pos.Source, Line: typeErr.Pos.Line, Message: typeErr.Msg, cause: err}
	}
	var constErr *resolver.UnresolvedConst
	if errors.As(err, &constErr) {
		return &CompileError{Source: constErr.Pos.Source, Line: constErr.Pos.Line, Message: constErr.Error(), cause: err}
	}
	return &CompileError{Message: err.Error(), cause: err}
}

// Program is a compiled unit: typed instructions, the routine table
// and the initial data image.
type Program struct {
	p *bytecode.Program
}

// Compile runs the full pipeline over source text. name labels error
// positions (typically the filename).
func Compile(name, source string) (*Program, error) {
	p, err := parser.New(lexer.New(name, source))
	if err != nil {
		return nil, convertCompileError(err)
	}
	unit, err := p.ParseUnit()
	if err != nil {
		return nil, convertCompileError(err)
	}
	out, err := resolver.Resolve(unit)
	if err != nil {
		return nil, convertCompileError(err)
	}
	prog, err := codegen.Compile(unit, out)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return &Program{p: prog}, nil
}

// CompileFile reads and compiles a source file.
func CompileFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(path, string(data))
}

// Disassemble renders a human-readable instruction listing.
func (p *Program) Disassemble() string {
	return bytecode.Disassemble(p.p)
}

// EntryName returns the routine that Run starts in.
func (p *Program) EntryName() string {
	for _, rt := range p.p.Routines {
		if !rt.Host && rt.Entry == p.p.Entry {
			return rt.Name
		}
	}
	return ""
}

// DataBase returns the address where static allocation starts.
func (p *Program) DataBase() int {
	return int(p.p.DataBase)
}

// RoutineInfo summarizes one routine table entry.
type RoutineInfo struct {
	Name   string
	Params int
	Ret    string
	Host   bool
}

// Routines lists the routine table in declaration order.
func (p *Program) Routines() []RoutineInfo {
	out := make([]RoutineInfo, len(p.p.Routines))
	for i, rt := range p.p.Routines {
		out[i] = RoutineInfo{
			Name:   rt.Name,
			Params: len(rt.Params),
			Ret:    rt.Ret.String(),
			Host:   rt.Host,
		}
	}
	return out
}

// EncodeBinary writes the binary artifact form.
func (p *Program) EncodeBinary(w io.Writer) error {
	return p.p.Encode(w)
}

// DecodeBinary reads a binary artifact written by EncodeBinary.
func DecodeBinary(r io.Reader) (*Program, error) {
	prog, err := bytecode.Decode(r)
	if err != nil {
		return nil, err
	}
	return &Program{p: prog}, nil
}

// MarshalText renders the program as YAML.
func (p *Program) MarshalText() ([]byte, error) {
	return p.p.MarshalText()
}

// UnmarshalText reads a YAML program rendered by MarshalText.
func UnmarshalText(data []byte) (*Program, error) {
	prog, err := bytecode.UnmarshalText(data)
	if err != nil {
		return nil, err
	}
	return &Program{p: prog}, nil
}

// Value is one typed operand: a number together with the width it was
// produced at.
type Value struct {
	v vm.Value
}

// Byte builds a BYTE operand, truncating to 8 bits.
func Byte(n int) Value { return Value{v: vm.ByteValue(n)} }

// Int builds an INT operand, wrapping to signed 16 bits.
func Int(n int) Value { return Value{v: vm.IntValue(n)} }

// Card builds a CARD operand, truncating to unsigned 16 bits.
func Card(n int) Value { return Value{v: vm.CardValue(n)} }

// N returns the numeric value. INT operands carry their sign.
func (v Value) N() int { return v.v.N }

// Width names the operand width (BYTE, CHAR, INT or CARD).
func (v Value) Width() string { return v.v.Type.String() }

func (v Value) String() string { return v.v.String() }

// Fault is an unrecoverable execution error surfaced from the machine.
type Fault struct {
	Kind   string
	IP     int
	Op     string
	Detail string
	cause  error
}

func (f *Fault) Error() string {
	return f.cause.Error()
}

// Unwrap exposes the underlying machine fault for errors.Is/As.
func (f *Fault) Unwrap() error {
	return f.cause
}

func convertRunError(err error) error {
	if err == nil {
		return nil
	}
	var fault *vm.Fault
	if errors.As(err, &fault) {
		return &Fault{
			Kind:   fault.Kind.String(),
			IP:     fault.IP,
			Op:     fault.Op.String(),
			Detail: fault.Detail,
			cause:  err,
		}
	}
	return err
}

// TraceInfo captures one instruction dispatch for debug hooks.
type TraceInfo struct {
	IP    int
	Op    string
	Depth int
}

// TraceHook observes instruction dispatch.
type TraceHook func(TraceInfo)

// HostFunc is a Go-side routine implementation. Arguments arrive in
// declaration order at their declared widths.
type HostFunc func(args []Value) (Value, error)

// MachineOption configures a Machine.
type MachineOption func(*machineConfig)

type machineConfig struct {
	opts []vm.Option
}

// WithOutput redirects DEVPRINT output.
func WithOutput(w io.Writer) MachineOption {
	return func(c *machineConfig) {
		c.opts = append(c.opts, vm.WithOutput(w))
	}
}

// WithStepLimit caps executed instructions (0 for unlimited).
func WithStepLimit(n int) MachineOption {
	return func(c *machineConfig) {
		c.opts = append(c.opts, vm.WithStepLimit(n))
	}
}

// WithTraceHook attaches a debug hook that observes each instruction.
func WithTraceHook(h TraceHook) MachineOption {
	return func(c *machineConfig) {
		c.opts = append(c.opts, vm.WithTraceHook(func(ti vm.TraceInfo) {
			h(TraceInfo{IP: ti.IP, Op: ti.Op.String(), Depth: ti.Depth})
		}))
	}
}

// Machine executes a compiled program over a fresh 64KB memory image.
type Machine struct {
	core *vm.VM
}

// NewMachine builds an execution machine for the program. The initial
// data image is loaded at the static data base.
func NewMachine(p *Program, opts ...MachineOption) *Machine {
	cfg := &machineConfig{}
	for _, o := range opts {
		o(cfg)
	}
	return &Machine{core: vm.New(p.p, cfg.opts...)}
}

// BindHost attaches a Go implementation for a host routine.
func (m *Machine) BindHost(name string, fn HostFunc) {
	m.core.RegisterHost(name, func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		wrapped := make([]Value, len(args))
		for i, a := range args {
			wrapped[i] = Value{v: a}
		}
		res, err := fn(wrapped)
		if err != nil {
			return vm.Value{}, err
		}
		return res.v, nil
	})
}

// Run executes from the program entry routine.
func (m *Machine) Run() error {
	return convertRunError(m.core.Run())
}

// Call executes a named routine. Arguments are written into the
// routine's static parameter cells. FUNC routines return their result.
func (m *Machine) Call(name string, args ...Value) (Value, error) {
	raw := make([]vm.Value, len(args))
	for i, a := range args {
		raw[i] = a.v
	}
	res, err := m.core.RunRoutine(name, raw...)
	if err != nil {
		return Value{}, convertRunError(err)
	}
	return Value{v: res}, nil
}

// PeekByte reads one byte of machine memory.
func (m *Machine) PeekByte(addr int) (int, error) {
	n, err := m.core.PeekByte(addr)
	return n, convertRunError(err)
}

// PeekCard reads an unsigned 16-bit value, little-endian.
func (m *Machine) PeekCard(addr int) (int, error) {
	n, err := m.core.PeekCard(addr)
	return n, convertRunError(err)
}

// PeekInt reads a signed 16-bit value, little-endian.
func (m *Machine) PeekInt(addr int) (int, error) {
	n, err := m.core.PeekInt(addr)
	return n, convertRunError(err)
}

// PokeByte writes one byte of machine memory.
func (m *Machine) PokeByte(addr, n int) error {
	return convertRunError(m.core.PokeByte(addr, n))
}

// PokeCard writes an unsigned 16-bit value, little-endian.
func (m *Machine) PokeCard(addr, n int) error {
	return convertRunError(m.core.PokeCard(addr, n))
}
