package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/ract-lang/ract/internal/bytecode"
	"github.com/ract-lang/ract/internal/resolver"
	"github.com/ract-lang/ract/internal/types"
)

// MemorySize is the flat address space every program runs in.
const MemorySize = 0x10000

const (
	defaultMaxStack = 1024
	defaultMaxCalls = 256
)

// TraceInfo describes one instruction dispatch for debug hooks.
type TraceInfo struct {
	IP    int
	Op    bytecode.Opcode
	Depth int
}

// TraceHook observes instruction dispatch for debugging/profiling.
type TraceHook func(TraceInfo)

// HostFunc implements a host routine. args arrive in declaration
// order; the returned value is pushed when the routine is declared
// with a result width.
type HostFunc func(v *VM, args []Value) (Value, error)

// Option configures a VM.
type Option func(*VM)

// WithOutput directs host printing to w.
func WithOutput(w io.Writer) Option {
	return func(v *VM) { v.out = w }
}

// WithStepLimit aborts execution with a fault after n instructions.
// Zero means no limit.
func WithStepLimit(n int) Option {
	return func(v *VM) { v.stepLimit = n }
}

// WithTraceHook installs a per-instruction observer.
func WithTraceHook(h TraceHook) Option {
	return func(v *VM) { v.trace = h }
}

// VM executes one program over its own 64KB memory, typed operand
// stack and return-address stack. A Program can back any number of
// VMs; each VM owns its state exclusively.
type VM struct {
	prog  *bytecode.Program
	mem   []byte
	stack []Value
	calls []int
	pc    int
	ip    int

	out       io.Writer
	hosts     map[string]HostFunc
	trace     TraceHook
	stepLimit int
	steps     int
}

// New builds a VM for prog, loading the initial data image. DEVPRINT
// is preregistered to print to the configured output.
func New(prog *bytecode.Program, opts ...Option) *VM {
	v := &VM{
		prog:  prog,
		mem:   make([]byte, MemorySize),
		out:   os.Stdout,
		hosts: map[string]HostFunc{},
	}
	copy(v.mem[prog.DataBase:], prog.Data)
	for _, o := range opts {
		o(v)
	}
	v.hosts[resolver.DevPrintName] = devPrint
	return v
}

func devPrint(v *VM, args []Value) (Value, error) {
	_, err := fmt.Fprintf(v.out, "%d\n", args[0].N)
	return Value{}, err
}

// RegisterHost binds a host routine by name, replacing any previous
// binding.
func (v *VM) RegisterHost(name string, fn HostFunc) {
	v.hosts[name] = fn
}

// Run executes the program from its entry routine until it returns.
func (v *VM) Run() error {
	if v.prog.Entry < 0 || v.prog.Entry >= len(v.prog.Routines) {
		return fmt.Errorf("program has no entry routine")
	}
	_, err := v.call(v.prog.Entry, nil)
	return err
}

// RunRoutine executes one routine by name with the given arguments,
// returning its result for a FUNC.
func (v *VM) RunRoutine(name string, args ...Value) (Value, error) {
	idx, ok := v.prog.Routine(name)
	if !ok {
		return Value{}, fmt.Errorf("no routine %q", name)
	}
	return v.call(idx, args)
}

func (v *VM) call(idx int, args []Value) (Value, error) {
	rt := &v.prog.Routines[idx]
	if rt.Host {
		return Value{}, fmt.Errorf("%s is a host routine", rt.Name)
	}
	if rt.Entry < 0 {
		return Value{}, fmt.Errorf("routine %s has no body", rt.Name)
	}
	if len(args) != len(rt.Params) {
		return Value{}, fmt.Errorf("routine %s takes %d arguments", rt.Name, len(rt.Params))
	}
	for i, a := range args {
		p := rt.Params[i]
		if p.Type.Size() == 1 {
			v.writeByte(int(p.Addr), a.N)
		} else {
			v.writeCard(int(p.Addr), a.N)
		}
	}

	v.stack = v.stack[:0]
	v.calls = v.calls[:0]
	if err := v.run(rt.Entry); err != nil {
		return Value{}, err
	}
	if rt.Ret != types.Void && len(v.stack) > 0 {
		return v.stack[len(v.stack)-1], nil
	}
	return Value{}, nil
}

func (v *VM) run(entry int) error {
	v.pc = entry
	for {
		if v.pc < 0 || v.pc >= len(v.prog.Instrs) {
			return &Fault{Kind: FaultOutOfBounds, IP: v.pc, Detail: "program counter out of range"}
		}
		v.ip = v.pc
		in := v.prog.Instrs[v.pc]
		v.pc++

		if v.trace != nil {
			v.trace(TraceInfo{IP: v.ip, Op: in.Op, Depth: len(v.calls)})
		}
		if v.stepLimit > 0 {
			v.steps++
			if v.steps > v.stepLimit {
				return v.fault(FaultStepLimit, in, "")
			}
		}

		done, err := v.step(in)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (v *VM) step(in bytecode.Instruction) (bool, error) {
	switch in.Op {
	case bytecode.Nop:

	case bytecode.PushConst:
		if err := v.push(Value{Type: in.Type, N: types.Fit(in.Type, in.Arg)}); err != nil {
			return false, err
		}

	case bytecode.Dup:
		if len(v.stack) == 0 {
			return false, v.fault(FaultStackUnderflow, in, "")
		}
		if err := v.push(v.stack[len(v.stack)-1]); err != nil {
			return false, err
		}

	case bytecode.Drop:
		if _, err := v.pop(in); err != nil {
			return false, err
		}

	case bytecode.LoadAbs:
		a, err := v.pop(in)
		if err != nil {
			return false, err
		}
		n, err := v.load(in, a.N, in.Type)
		if err != nil {
			return false, err
		}
		if err := v.push(Value{Type: in.Type, N: n}); err != nil {
			return false, err
		}

	case bytecode.StoreAbs:
		a, err := v.pop(in)
		if err != nil {
			return false, err
		}
		val, err := v.pop(in)
		if err != nil {
			return false, err
		}
		if err := v.store(in, a.N, in.Type, val.N); err != nil {
			return false, err
		}

	case bytecode.Add, bytecode.Sub, bytecode.Mul, bytecode.Div, bytecode.Mod,
		bytecode.Lsh, bytecode.Rsh, bytecode.BitAnd, bytecode.BitOr, bytecode.BitXor:
		b, err := v.pop(in)
		if err != nil {
			return false, err
		}
		a, err := v.pop(in)
		if err != nil {
			return false, err
		}
		n, err := v.arith(in, a.N, b.N)
		if err != nil {
			return false, err
		}
		if err := v.push(Value{Type: in.Type, N: types.Fit(in.Type, n)}); err != nil {
			return false, err
		}

	case bytecode.Eq, bytecode.Ne, bytecode.Lt, bytecode.Le, bytecode.Gt, bytecode.Ge:
		b, err := v.pop(in)
		if err != nil {
			return false, err
		}
		a, err := v.pop(in)
		if err != nil {
			return false, err
		}
		if err := v.push(Value{Type: types.Byte, N: compare(in.Op, a.N, b.N)}); err != nil {
			return false, err
		}

	case bytecode.Neg:
		a, err := v.pop(in)
		if err != nil {
			return false, err
		}
		if err := v.push(Value{Type: types.Int, N: types.Fit(types.Int, -a.N)}); err != nil {
			return false, err
		}

	case bytecode.Cast:
		a, err := v.pop(in)
		if err != nil {
			return false, err
		}
		to := types.Fund(in.Arg)
		if err := v.push(Value{Type: to, N: types.Fit(to, a.N)}); err != nil {
			return false, err
		}

	case bytecode.Jump:
		v.pc = in.Arg

	case bytecode.JumpIfFalse:
		a, err := v.pop(in)
		if err != nil {
			return false, err
		}
		if a.N == 0 {
			v.pc = in.Arg
		}

	case bytecode.Call:
		if in.Arg < 0 || in.Arg >= len(v.prog.Routines) {
			return false, v.fault(FaultOutOfBounds, in, "bad routine index")
		}
		rt := &v.prog.Routines[in.Arg]
		if rt.Entry < 0 {
			return false, v.fault(FaultOutOfBounds, in, "routine "+rt.Name+" has no body")
		}
		if len(v.calls) >= defaultMaxCalls {
			return false, v.fault(FaultCallOverflow, in, "")
		}
		v.calls = append(v.calls, v.pc)
		v.pc = rt.Entry

	case bytecode.CallHost:
		if err := v.callHost(in); err != nil {
			return false, err
		}

	case bytecode.Return:
		var ret *Value
		if in.Type != types.Void {
			a, err := v.pop(in)
			if err != nil {
				return false, err
			}
			ret = &a
		}
		if len(v.calls) == 0 {
			if ret != nil {
				if err := v.push(*ret); err != nil {
					return false, err
				}
			}
			return true, nil
		}
		v.pc = v.calls[len(v.calls)-1]
		v.calls = v.calls[:len(v.calls)-1]
		if ret != nil {
			if err := v.push(*ret); err != nil {
				return false, err
			}
		}

	default:
		return false, v.fault(FaultUnknownOpcode, in, "")
	}
	return false, nil
}

func (v *VM) callHost(in bytecode.Instruction) error {
	if in.Arg < 0 || in.Arg >= len(v.prog.Routines) {
		return v.fault(FaultOutOfBounds, in, "bad routine index")
	}
	rt := &v.prog.Routines[in.Arg]
	fn, ok := v.hosts[rt.Name]
	if !ok {
		return v.fault(FaultBadHost, in, rt.Name)
	}
	args := make([]Value, len(rt.Params))
	for i := len(args) - 1; i >= 0; i-- {
		a, err := v.pop(in)
		if err != nil {
			return err
		}
		args[i] = a
	}
	res, err := fn(v, args)
	if err != nil {
		return fmt.Errorf("host %s: %w", rt.Name, err)
	}
	if rt.Ret != types.Void {
		return v.push(Value{Type: rt.Ret, N: types.Fit(rt.Ret, res.N)})
	}
	return nil
}

func (v *VM) arith(in bytecode.Instruction, a, b int) (int, error) {
	switch in.Op {
	case bytecode.Add:
		return a + b, nil
	case bytecode.Sub:
		return a - b, nil
	case bytecode.Mul:
		return a * b, nil
	case bytecode.Div:
		if b == 0 {
			return 0, v.fault(FaultDivideByZero, in, "")
		}
		return a / b, nil
	case bytecode.Mod:
		if b == 0 {
			return 0, v.fault(FaultDivideByZero, in, "")
		}
		return a % b, nil
	case bytecode.Lsh:
		if b < 0 || b > 15 {
			return 0, nil
		}
		return a << uint(b), nil
	case bytecode.Rsh:
		if b < 0 || b > 15 {
			return 0, nil
		}
		return a >> uint(b), nil
	case bytecode.BitAnd:
		return a & b, nil
	case bytecode.BitOr:
		return a | b, nil
	case bytecode.BitXor:
		return a ^ b, nil
	}
	return 0, v.fault(FaultUnknownOpcode, in, "")
}

func compare(op bytecode.Opcode, a, b int) int {
	var r bool
	switch op {
	case bytecode.Eq:
		r = a == b
	case bytecode.Ne:
		r = a != b
	case bytecode.Lt:
		r = a < b
	case bytecode.Le:
		r = a <= b
	case bytecode.Gt:
		r = a > b
	case bytecode.Ge:
		r = a >= b
	}
	if r {
		return 1
	}
	return 0
}

func (v *VM) push(val Value) error {
	if len(v.stack) >= defaultMaxStack {
		return &Fault{Kind: FaultStackOverflow, IP: v.ip}
	}
	v.stack = append(v.stack, val)
	return nil
}

func (v *VM) pop(in bytecode.Instruction) (Value, error) {
	if len(v.stack) == 0 {
		return Value{}, v.fault(FaultStackUnderflow, in, "")
	}
	val := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	return val, nil
}

func (v *VM) fault(kind FaultKind, in bytecode.Instruction, detail string) error {
	return &Fault{Kind: kind, IP: v.ip, Op: in.Op, Detail: detail}
}

func (v *VM) load(in bytecode.Instruction, addr int, t types.Fund) (int, error) {
	if addr < 0 || addr+t.Size() > MemorySize {
		return 0, v.fault(FaultOutOfBounds, in, fmt.Sprintf("address $%04X", addr))
	}
	if t.Size() == 1 {
		return int(v.mem[addr]), nil
	}
	n := int(v.mem[addr]) | int(v.mem[addr+1])<<8
	return types.Fit(t, n), nil
}

func (v *VM) store(in bytecode.Instruction, addr int, t types.Fund, n int) error {
	if addr < 0 || addr+t.Size() > MemorySize {
		return v.fault(FaultOutOfBounds, in, fmt.Sprintf("address $%04X", addr))
	}
	if t.Size() == 1 {
		v.writeByte(addr, n)
	} else {
		v.writeCard(addr, n)
	}
	return nil
}

func (v *VM) writeByte(addr, n int) {
	v.mem[addr] = byte(n & 0xFF)
}

func (v *VM) writeCard(addr, n int) {
	u := types.Fit(types.Card, n)
	v.mem[addr] = byte(u & 0xFF)
	v.mem[addr+1] = byte(u >> 8)
}

// PeekByte reads one byte of memory, for hosts and post-run
// inspection.
func (v *VM) PeekByte(addr int) (int, error) {
	if addr < 0 || addr >= MemorySize {
		return 0, fmt.Errorf("address $%04X out of bounds", addr)
	}
	return int(v.mem[addr]), nil
}

// PeekCard reads one little-endian 16-bit unsigned value.
func (v *VM) PeekCard(addr int) (int, error) {
	if addr < 0 || addr+2 > MemorySize {
		return 0, fmt.Errorf("address $%04X out of bounds", addr)
	}
	return int(v.mem[addr]) | int(v.mem[addr+1])<<8, nil
}

// PeekInt reads one little-endian 16-bit signed value.
func (v *VM) PeekInt(addr int) (int, error) {
	n, err := v.PeekCard(addr)
	if err != nil {
		return 0, err
	}
	return types.Fit(types.Int, n), nil
}

// PokeByte writes one byte of memory, for hosts and tests.
func (v *VM) PokeByte(addr, n int) error {
	if addr < 0 || addr >= MemorySize {
		return fmt.Errorf("address $%04X out of bounds", addr)
	}
	v.writeByte(addr, n)
	return nil
}

// PokeCard writes one little-endian 16-bit value.
func (v *VM) PokeCard(addr, n int) error {
	if addr < 0 || addr+2 > MemorySize {
		return fmt.Errorf("address $%04X out of bounds", addr)
	}
	v.writeCard(addr, n)
	return nil
}
