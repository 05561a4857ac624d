package codegen

import (
	"fmt"

	"github.com/ract-lang/ract/internal/ast"
	"github.com/ract-lang/ract/internal/bytecode"
	"github.com/ract-lang/ract/internal/resolver"
	"github.com/ract-lang/ract/internal/symbols"
	"github.com/ract-lang/ract/internal/token"
	"github.com/ract-lang/ract/internal/types"
)

// Error reports an internal inconsistency between the resolved tree
// and the emitter. User mistakes never reach this point.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return "codegen: " + e.Msg }

type compiler struct {
	prog *bytecode.Program
	cur  *symbols.Routine

	// open EXIT jumps per enclosing loop, innermost last
	loops [][]int
}

// Compile lowers a resolved unit into a program. Routines emit in
// declaration order; execution starts at the last one.
func Compile(unit *ast.Unit, out *resolver.Outcome) (*bytecode.Program, error) {
	c := &compiler{
		prog: &bytecode.Program{
			DataBase: out.Base,
			Data:     out.Data,
		},
	}

	for _, rt := range out.Table.Routines() {
		info := bytecode.Routine{
			Name:      rt.Name,
			Entry:     -1,
			Ret:       rt.Ret,
			Host:      rt.Host,
			FixedAddr: rt.FixedAddr,
		}
		for _, p := range rt.Params {
			info.Params = append(info.Params, bytecode.Param{Addr: p.Addr, Type: p.Type.Value()})
		}
		c.prog.Routines = append(c.prog.Routines, info)
	}

	for _, rt := range unit.Routines {
		if err := c.compileRoutine(rt); err != nil {
			return nil, err
		}
	}

	last := unit.Routines[len(unit.Routines)-1]
	c.prog.Entry = last.Sym.Index
	return c.prog, nil
}

func (c *compiler) compileRoutine(rt *ast.Routine) error {
	sym := rt.Sym
	if sym == nil {
		return &Error{Msg: "routine " + rt.Name + " was not resolved"}
	}
	sym.Entry = len(c.prog.Instrs)
	c.prog.Routines[sym.Index].Entry = sym.Entry
	c.cur = sym

	for _, s := range rt.Body {
		if err := c.compileStmt(s); err != nil {
			return err
		}
	}

	// implicit return for bodies that run off the end
	if sym.Ret == types.Void {
		c.emit(bytecode.Return, types.Void, 0)
	} else {
		c.emit(bytecode.PushConst, sym.Ret, 0)
		c.emit(bytecode.Return, sym.Ret, 0)
	}
	return nil
}

func (c *compiler) emit(op bytecode.Opcode, t types.Fund, arg int) int {
	c.prog.Instrs = append(c.prog.Instrs, bytecode.Instruction{Op: op, Type: t, Arg: arg})
	return len(c.prog.Instrs) - 1
}

// emitJump emits a jump with a placeholder target, returning its index
// for patchJump.
func (c *compiler) emitJump(op bytecode.Opcode, t types.Fund) int {
	return c.emit(op, t, -1)
}

// patchJump points a previously emitted jump at the next instruction.
func (c *compiler) patchJump(pos int) {
	c.prog.Instrs[pos].Arg = len(c.prog.Instrs)
}

func (c *compiler) here() int { return len(c.prog.Instrs) }

func (c *compiler) compileStmt(s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.AssignStmt:
		return c.compileAssign(s)
	case *ast.CallStmt:
		if err := c.compileCall(s.Call); err != nil {
			return err
		}
		if s.Call.Routine.Ret != types.Void {
			c.emit(bytecode.Drop, s.Call.Routine.Ret, 0)
		}
		return nil
	case *ast.DevPrintStmt:
		if err := c.compileExpr(s.Value); err != nil {
			return err
		}
		idx, ok := c.prog.Routine(resolver.DevPrintName)
		if !ok {
			return &Error{Msg: "host routine table is missing DEVPRINT"}
		}
		c.emit(bytecode.CallHost, types.Void, idx)
		return nil
	case *ast.IfStmt:
		return c.compileIf(s)
	case *ast.DoStmt:
		return c.compileLoop(nil, s.Body, s.Until, nil)
	case *ast.WhileStmt:
		return c.compileLoop(s.Cond, s.Body, s.Until, nil)
	case *ast.ForStmt:
		return c.compileFor(s)
	case *ast.ExitStmt:
		if len(c.loops) == 0 {
			return &Error{Msg: "EXIT survived resolution outside a loop"}
		}
		pos := c.emitJump(bytecode.Jump, types.Void)
		top := len(c.loops) - 1
		c.loops[top] = append(c.loops[top], pos)
		return nil
	case *ast.ReturnStmt:
		return c.compileReturn(s)
	case *ast.CodeBlockStmt:
		// the block's bytes live in the data image, nothing executes
		return nil
	}
	return &Error{Msg: fmt.Sprintf("unsupported statement %T", s)}
}

func (c *compiler) compileAssign(s *ast.AssignStmt) error {
	if err := c.compileExpr(s.Value); err != nil {
		return err
	}
	targetT := s.Target.Fund()
	c.castTo(s.Value.Fund(), targetT)
	if err := c.compileAddr(s.Target); err != nil {
		return err
	}
	c.emit(bytecode.StoreAbs, targetT, 0)
	return nil
}

// compileAddr pushes the absolute address an assignable expression
// refers to.
func (c *compiler) compileAddr(e ast.Expr) error {
	switch e := e.(type) {
	case *ast.VarRef:
		c.emit(bytecode.PushConst, types.Card, int(e.Sym.Addr))
		return nil
	case *ast.IndexExpr:
		arr, ok := e.Sym.Type.(types.Array)
		if !ok {
			return &Error{Msg: e.Name + " lost its array type"}
		}
		c.emit(bytecode.PushConst, types.Card, int(e.Sym.Addr))
		if err := c.compileExpr(e.Index); err != nil {
			return err
		}
		c.castTo(e.Index.Fund(), types.Card)
		if arr.Elem.Size() == 2 {
			c.emit(bytecode.PushConst, types.Card, 1)
			c.emit(bytecode.Lsh, types.Card, 0)
		}
		c.emit(bytecode.Add, types.Card, 0)
		return nil
	case *ast.DerefExpr:
		c.emit(bytecode.PushConst, types.Card, int(e.Sym.Addr))
		c.emit(bytecode.LoadAbs, types.Card, 0)
		return nil
	case *ast.FieldExpr:
		if e.Deref {
			c.emit(bytecode.PushConst, types.Card, int(e.Sym.Addr))
			c.emit(bytecode.LoadAbs, types.Card, 0)
			if e.Offset != 0 {
				c.emit(bytecode.PushConst, types.Card, e.Offset)
				c.emit(bytecode.Add, types.Card, 0)
			}
			return nil
		}
		c.emit(bytecode.PushConst, types.Card, int(e.Sym.Addr)+e.Offset)
		return nil
	}
	return &Error{Msg: fmt.Sprintf("unsupported address expression %T", e)}
}

func (c *compiler) compileIf(s *ast.IfStmt) error {
	var ends []int
	for _, arm := range s.Arms {
		if err := c.compileExpr(arm.Cond); err != nil {
			return err
		}
		next := c.emitJump(bytecode.JumpIfFalse, arm.Cond.Fund())
		for _, st := range arm.Body {
			if err := c.compileStmt(st); err != nil {
				return err
			}
		}
		ends = append(ends, c.emitJump(bytecode.Jump, types.Void))
		c.patchJump(next)
	}
	for _, st := range s.Else {
		if err := c.compileStmt(st); err != nil {
			return err
		}
	}
	for _, pos := range ends {
		c.patchJump(pos)
	}
	return nil
}

// compileLoop emits the shared loop shape: an optional top test, the
// body, an optional UNTIL bottom test and the back jump. incr runs
// between the body and the back jump (FOR increments).
func (c *compiler) compileLoop(cond ast.Expr, body []ast.Stmt, until ast.Expr, incr func() error) error {
	top := c.here()
	exitTop := -1
	if cond != nil {
		if err := c.compileExpr(cond); err != nil {
			return err
		}
		exitTop = c.emitJump(bytecode.JumpIfFalse, cond.Fund())
	}

	c.loops = append(c.loops, nil)
	for _, st := range body {
		if err := c.compileStmt(st); err != nil {
			return err
		}
	}
	exits := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]

	if incr != nil {
		if err := incr(); err != nil {
			return err
		}
	}

	if until != nil {
		if err := c.compileExpr(until); err != nil {
			return err
		}
		c.emit(bytecode.JumpIfFalse, until.Fund(), top)
	} else {
		c.emit(bytecode.Jump, types.Void, top)
	}

	if exitTop >= 0 {
		c.patchJump(exitTop)
	}
	for _, pos := range exits {
		c.patchJump(pos)
	}
	return nil
}

func (c *compiler) compileFor(s *ast.ForStmt) error {
	varT := s.Var.Fund()
	addr := int(s.Var.Sym.Addr)

	// initialize the loop variable
	if err := c.compileExpr(s.From); err != nil {
		return err
	}
	c.castTo(s.From.Fund(), varT)
	c.emit(bytecode.PushConst, types.Card, addr)
	c.emit(bytecode.StoreAbs, varT, 0)

	// the direction of the bound test follows a constant STEP sign
	desc := false
	if s.Step != nil {
		if n, ok := constValue(s.Step); ok && n < 0 {
			desc = true
		}
	}

	cmpT := types.Promote(varT, s.To.Fund())
	if desc {
		cmpT = types.Promote(cmpT, types.Int)
	}

	top := c.here()
	c.emit(bytecode.PushConst, types.Card, addr)
	c.emit(bytecode.LoadAbs, varT, 0)
	c.castTo(varT, cmpT)
	if err := c.compileExpr(s.To); err != nil {
		return err
	}
	c.castTo(s.To.Fund(), cmpT)
	if desc {
		c.emit(bytecode.Ge, cmpT, 0)
	} else {
		c.emit(bytecode.Le, cmpT, 0)
	}
	exitTop := c.emitJump(bytecode.JumpIfFalse, types.Byte)

	c.loops = append(c.loops, nil)
	for _, st := range s.Body {
		if err := c.compileStmt(st); err != nil {
			return err
		}
	}
	exits := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]

	// increment, at INT width when the step can go negative
	incT := varT
	if desc {
		incT = types.Int
	}
	c.emit(bytecode.PushConst, types.Card, addr)
	c.emit(bytecode.LoadAbs, varT, 0)
	c.castTo(varT, incT)
	if s.Step != nil {
		if err := c.compileExpr(s.Step); err != nil {
			return err
		}
		c.castTo(s.Step.Fund(), incT)
	} else {
		c.emit(bytecode.PushConst, incT, 1)
	}
	c.emit(bytecode.Add, incT, 0)
	c.castTo(incT, varT)
	c.emit(bytecode.PushConst, types.Card, addr)
	c.emit(bytecode.StoreAbs, varT, 0)
	c.emit(bytecode.Jump, types.Void, top)

	c.patchJump(exitTop)
	for _, pos := range exits {
		c.patchJump(pos)
	}
	return nil
}

func (c *compiler) compileReturn(s *ast.ReturnStmt) error {
	if s.Value == nil {
		c.emit(bytecode.Return, types.Void, 0)
		return nil
	}
	if err := c.compileExpr(s.Value); err != nil {
		return err
	}
	retT := c.cur.Ret
	c.castTo(s.Value.Fund(), retT)
	c.emit(bytecode.Return, retT, 0)
	return nil
}

// castTo emits a width change when from and to differ.
func (c *compiler) castTo(from, to types.Fund) {
	if from == to || to == types.Void || from == types.Void {
		return
	}
	c.emit(bytecode.Cast, from, int(to))
}

func (c *compiler) compileExpr(e ast.Expr) error {
	switch e := e.(type) {
	case *ast.NumberLit:
		c.emit(bytecode.PushConst, e.Fund(), types.Fit(e.Fund(), e.Value))
		return nil
	case *ast.StringLit:
		c.emit(bytecode.PushConst, types.Card, int(e.Addr))
		return nil
	case *ast.VarRef:
		switch e.Sym.Type.(type) {
		case types.Array, *types.Record:
			// bare array and record names are their base address
			c.emit(bytecode.PushConst, types.Card, int(e.Sym.Addr))
		default:
			c.emit(bytecode.PushConst, types.Card, int(e.Sym.Addr))
			c.emit(bytecode.LoadAbs, e.Fund(), 0)
		}
		return nil
	case *ast.IndexExpr, *ast.DerefExpr, *ast.FieldExpr:
		if err := c.compileAddr(e); err != nil {
			return err
		}
		c.emit(bytecode.LoadAbs, e.Fund(), 0)
		return nil
	case *ast.AddrExpr:
		c.emit(bytecode.PushConst, types.Card, int(e.Sym.Addr))
		return nil
	case *ast.UnaryExpr:
		if err := c.compileExpr(e.X); err != nil {
			return err
		}
		c.castTo(e.X.Fund(), types.Int)
		c.emit(bytecode.Neg, types.Int, 0)
		return nil
	case *ast.BinaryExpr:
		return c.compileBinary(e)
	case *ast.CallExpr:
		return c.compileCall(e)
	}
	return &Error{Msg: fmt.Sprintf("unsupported expression %T", e)}
}

var binaryOps = map[token.Type]bytecode.Opcode{
	token.Plus:         bytecode.Add,
	token.Minus:        bytecode.Sub,
	token.Star:         bytecode.Mul,
	token.Slash:        bytecode.Div,
	token.Mod:          bytecode.Mod,
	token.Lsh:          bytecode.Lsh,
	token.Rsh:          bytecode.Rsh,
	token.Amp:          bytecode.BitAnd,
	token.Percent:      bytecode.BitOr,
	token.Xor:          bytecode.BitXor,
	token.Equal:        bytecode.Eq,
	token.NotEqual:     bytecode.Ne,
	token.Less:         bytecode.Lt,
	token.LessEqual:    bytecode.Le,
	token.Greater:      bytecode.Gt,
	token.GreaterEqual: bytecode.Ge,
}

func (c *compiler) compileBinary(e *ast.BinaryExpr) error {
	switch e.Op {
	case token.And:
		return c.compileAnd(e)
	case token.Or:
		return c.compileOr(e)
	}

	op, ok := binaryOps[e.Op]
	if !ok {
		return &Error{Msg: "unsupported operator " + string(e.Op)}
	}

	// both operands run at one width: the result width for arithmetic,
	// the promoted operand width for comparisons
	opT := e.Fund()
	if isCompare(e.Op) {
		opT = types.Promote(e.Left.Fund(), e.Right.Fund())
	}

	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	c.castTo(e.Left.Fund(), opT)
	if err := c.compileExpr(e.Right); err != nil {
		return err
	}
	c.castTo(e.Right.Fund(), opT)
	c.emit(op, opT, 0)
	return nil
}

func isCompare(op token.Type) bool {
	switch op {
	case token.Equal, token.NotEqual, token.Less, token.LessEqual,
		token.Greater, token.GreaterEqual:
		return true
	}
	return false
}

// compileAnd short-circuits: a false left side is the result and the
// right side never evaluates, otherwise the result is the right side.
func (c *compiler) compileAnd(e *ast.BinaryExpr) error {
	resT := e.Fund()
	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	c.castTo(e.Left.Fund(), resT)
	c.emit(bytecode.Dup, resT, 0)
	end := c.emitJump(bytecode.JumpIfFalse, resT)
	c.emit(bytecode.Drop, resT, 0)
	if err := c.compileExpr(e.Right); err != nil {
		return err
	}
	c.castTo(e.Right.Fund(), resT)
	c.patchJump(end)
	return nil
}

// compileOr short-circuits: a true left side is the result, otherwise
// the result is the right side.
func (c *compiler) compileOr(e *ast.BinaryExpr) error {
	resT := e.Fund()
	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	c.castTo(e.Left.Fund(), resT)
	c.emit(bytecode.Dup, resT, 0)
	rhs := c.emitJump(bytecode.JumpIfFalse, resT)
	end := c.emitJump(bytecode.Jump, types.Void)
	c.patchJump(rhs)
	c.emit(bytecode.Drop, resT, 0)
	if err := c.compileExpr(e.Right); err != nil {
		return err
	}
	c.castTo(e.Right.Fund(), resT)
	c.patchJump(end)
	return nil
}

// compileCall evaluates arguments left to right onto the stack, then
// stores them in reverse into the callee's static parameter slots.
func (c *compiler) compileCall(e *ast.CallExpr) error {
	rt := e.Routine
	if rt == nil {
		return &Error{Msg: "call to " + e.Name + " was not resolved"}
	}
	info := c.prog.Routines[rt.Index]

	for i, a := range e.Args {
		if err := c.compileExpr(a); err != nil {
			return err
		}
		c.castTo(a.Fund(), info.Params[i].Type)
	}

	if rt.Host {
		c.emit(bytecode.CallHost, types.Void, rt.Index)
		return nil
	}

	for i := len(info.Params) - 1; i >= 0; i-- {
		c.emit(bytecode.PushConst, types.Card, int(info.Params[i].Addr))
		c.emit(bytecode.StoreAbs, info.Params[i].Type, 0)
	}
	c.emit(bytecode.Call, types.Void, rt.Index)
	return nil
}

// constValue extracts a compile-time constant from a resolved
// expression, recognizing plain and negated literals.
func constValue(e ast.Expr) (int, bool) {
	switch e := e.(type) {
	case *ast.NumberLit:
		return e.Value, true
	case *ast.UnaryExpr:
		if e.Op == token.Minus {
			if v, ok := constValue(e.X); ok {
				return -v, true
			}
		}
	}
	return 0, false
}
