package resolver

import (
	"github.com/ract-lang/ract/internal/ast"
	"github.com/ract-lang/ract/internal/symbols"
	"github.com/ract-lang/ract/internal/token"
	"github.com/ract-lang/ract/internal/types"
)

// DevPrintName is the predeclared host routine DEVPRINT lowers to.
const DevPrintName = "DEVPRINT"

// Outcome is the resolved view of a unit: its symbol table and the
// initial data image starting at Base.
type Outcome struct {
	Table *symbols.Table
	Base  uint16
	Data  []byte
}

type resolver struct {
	tab     *symbols.Table
	alloc   *symbols.Allocator
	scope   *symbols.Table
	routine *symbols.Routine

	loopDepth int
}

// Resolve checks declarations and types across the unit, assigns every
// variable its permanent address, folds constants and builds the
// initial data image. The AST is annotated in place.
func Resolve(unit *ast.Unit) (*Outcome, error) {
	r := &resolver{
		tab:   symbols.NewTable(),
		alloc: symbols.NewAllocator(),
	}
	r.scope = r.tab
	r.declareHosts()

	for _, d := range unit.Decls {
		if err := r.resolveDecl(d, symbols.Global); err != nil {
			return nil, err
		}
	}
	for _, rt := range unit.Routines {
		if err := r.resolveRoutine(rt); err != nil {
			return nil, err
		}
	}
	return &Outcome{Table: r.tab, Base: symbols.DataBase, Data: r.alloc.Image()}, nil
}

func (r *resolver) declareHosts() {
	// DEVPRINT takes one value of any width and prints it.
	r.tab.DeclareRoutine(&symbols.Routine{
		Name:      DevPrintName,
		Params:    []*symbols.Symbol{{Name: "value", Type: types.Card}},
		Ret:       types.Void,
		Entry:     -1,
		FixedAddr: -1,
		Host:      true,
	})
}

func (r *resolver) resolveDecl(d ast.Decl, kind symbols.Kind) error {
	switch d := d.(type) {
	case *ast.RecordDecl:
		if kind != symbols.Global {
			return &DeclError{Pos: d.P, Msg: "TYPE declarations are global only"}
		}
		fields := make([]types.Field, 0, len(d.Fields))
		for _, f := range d.Fields {
			fields = append(fields, types.Field{Name: f.Name, T: f.T})
		}
		rec := types.NewRecord(d.Name, fields)
		if err := r.tab.DeclareRecord(rec); err != nil {
			return &DeclError{Pos: d.P, Msg: err.Error()}
		}
		return nil
	case *ast.VarDecl:
		return r.resolveVarDecl(d, kind)
	}
	return &DeclError{Pos: d.Pos(), Msg: "unsupported declaration"}
}

// resolveVarDecl types one variable, allocates its permanent address
// and bakes any initializer into the data image.
func (r *resolver) resolveVarDecl(d *ast.VarDecl, kind symbols.Kind) error {
	t, err := r.declType(d)
	if err != nil {
		return err
	}

	addr, aerr := r.alloc.Reserve(t.Size())
	if aerr != nil {
		return &DeclError{Pos: d.P, Msg: aerr.Error()}
	}

	if d.Init != nil {
		if err := r.bakeInit(d, t, addr); err != nil {
			return err
		}
	}

	sym := &symbols.Symbol{Name: d.Name, Type: t, Addr: addr, Kind: kind}
	if err := r.scope.Declare(sym); err != nil {
		return &DeclError{Pos: d.P, Msg: err.Error()}
	}
	d.Sym = sym
	return nil
}

// declType resolves the syntactic type spec into a concrete type. For
// arrays the dimension may come from the initializer.
func (r *resolver) declType(d *ast.VarDecl) (types.Type, error) {
	spec := d.Spec
	switch {
	case spec.Pointer:
		var ref types.Type = spec.Fund
		if spec.RecordName != "" {
			rec, ok := r.tab.Record(spec.RecordName)
			if !ok {
				return nil, &DeclError{Pos: d.P, Msg: "unknown type " + spec.RecordName}
			}
			ref = rec
		}
		return types.Pointer{Ref: ref}, nil
	case spec.Array:
		n := -1
		if spec.Dim != nil {
			v, err := r.foldConst(spec.Dim)
			if err != nil {
				return nil, err
			}
			if v <= 0 {
				return nil, &DeclError{Pos: d.P, Msg: "array dimension must be positive"}
			}
			n = v
		}
		if n < 0 && d.Init != nil {
			if d.Init.IsStr {
				n = len(d.Init.Str)
			} else {
				n = len(d.Init.Values)
			}
		}
		if n <= 0 {
			return nil, &DeclError{Pos: d.P, Msg: "array " + d.Name + " needs a dimension or initializer"}
		}
		return types.Array{Elem: spec.Fund, Len: n}, nil
	case spec.RecordName != "":
		rec, ok := r.tab.Record(spec.RecordName)
		if !ok {
			return nil, &DeclError{Pos: d.P, Msg: "unknown type " + spec.RecordName}
		}
		if d.Init != nil {
			return nil, &DeclError{Pos: d.P, Msg: "record instances take no initializer"}
		}
		return rec, nil
	}
	return spec.Fund, nil
}

func (r *resolver) bakeInit(d *ast.VarDecl, t types.Type, addr uint16) error {
	init := d.Init
	switch t := t.(type) {
	case types.Fund:
		if init.IsStr || len(init.Values) != 1 {
			return &DeclError{Pos: d.P, Msg: d.Name + " takes a single initial value"}
		}
		v, err := r.foldConst(init.Values[0])
		if err != nil {
			return err
		}
		r.setCell(addr, t, v)
		return nil
	case types.Pointer:
		if init.IsStr || len(init.Values) != 1 {
			return &DeclError{Pos: d.P, Msg: d.Name + " takes a single initial value"}
		}
		v, err := r.foldConst(init.Values[0])
		if err != nil {
			return err
		}
		r.alloc.SetShort(addr, types.Fit(types.Card, v))
		return nil
	case types.Array:
		if init.IsStr {
			if t.Elem.Size() != 1 {
				return &DeclError{Pos: d.P, Msg: "string initializer needs a BYTE or CHAR array"}
			}
			if len(init.Str) > t.Len {
				return &DeclError{Pos: d.P, Msg: "string initializer longer than array " + d.Name}
			}
			for i := 0; i < len(init.Str); i++ {
				r.alloc.SetByte(addr+uint16(i), int(init.Str[i]))
			}
			return nil
		}
		if len(init.Values) > t.Len {
			return &DeclError{Pos: d.P, Msg: "too many initial values for array " + d.Name}
		}
		for i, ve := range init.Values {
			v, err := r.foldConst(ve)
			if err != nil {
				return err
			}
			r.setCell(addr+uint16(i*t.Elem.Size()), t.Elem, v)
		}
		return nil
	}
	return &DeclError{Pos: d.P, Msg: d.Name + " takes no initializer"}
}

func (r *resolver) setCell(addr uint16, f types.Fund, v int) {
	if f.Size() == 1 {
		r.alloc.SetByte(addr, types.Fit(f, v))
	} else {
		r.alloc.SetShort(addr, types.Fit(types.Card, v))
	}
}

// foldConst evaluates a compile-time constant expression. Identifiers
// fold to the address of a previously declared symbol.
func (r *resolver) foldConst(e ast.Expr) (int, error) {
	switch e := e.(type) {
	case *ast.NumberLit:
		return e.Value, nil
	case *ast.UnaryExpr:
		if e.Op != token.Minus {
			return 0, &DeclError{Pos: e.P, Msg: "not a constant expression"}
		}
		v, err := r.foldConst(e.X)
		if err != nil {
			return 0, err
		}
		return -v, nil
	case *ast.BinaryExpr:
		l, err := r.foldConst(e.Left)
		if err != nil {
			return 0, err
		}
		rv, err := r.foldConst(e.Right)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case token.Plus:
			return l + rv, nil
		case token.Minus:
			return l - rv, nil
		case token.Star:
			return l * rv, nil
		case token.Slash:
			if rv == 0 {
				return 0, &DeclError{Pos: e.P, Msg: "constant division by zero"}
			}
			return l / rv, nil
		case token.Mod:
			if rv == 0 {
				return 0, &DeclError{Pos: e.P, Msg: "constant division by zero"}
			}
			return l % rv, nil
		case token.Lsh:
			return l << uint(rv&15), nil
		case token.Rsh:
			return l >> uint(rv&15), nil
		case token.Amp:
			return l & rv, nil
		case token.Percent:
			return l | rv, nil
		case token.Xor:
			return l ^ rv, nil
		}
		return 0, &DeclError{Pos: e.P, Msg: "not a constant operator"}
	case *ast.VarRef:
		sym, ok := r.scope.Resolve(e.Name)
		if !ok {
			return 0, &UnresolvedConst{Pos: e.P, Name: e.Name}
		}
		return int(sym.Addr), nil
	case *ast.AddrExpr:
		sym, ok := r.scope.Resolve(e.Name)
		if !ok {
			return 0, &UnresolvedConst{Pos: e.P, Name: e.Name}
		}
		return int(sym.Addr), nil
	}
	return 0, &DeclError{Pos: e.Pos(), Msg: "not a constant expression"}
}

func (r *resolver) resolveRoutine(rt *ast.Routine) error {
	fixed := -1
	if rt.FixedAddr != nil {
		v, err := r.foldConst(rt.FixedAddr)
		if err != nil {
			return err
		}
		fixed = v
	}

	sym := &symbols.Routine{
		Name:      rt.Name,
		Ret:       rt.Ret,
		Entry:     -1,
		FixedAddr: fixed,
	}
	if err := r.tab.DeclareRoutine(sym); err != nil {
		return &DeclError{Pos: rt.P, Msg: err.Error()}
	}
	rt.Sym = sym

	r.scope = r.tab.NewChild()
	r.routine = sym
	defer func() {
		r.scope = r.tab
		r.routine = nil
	}()

	for _, p := range rt.Params {
		if err := r.resolveVarDecl(p, symbols.Param); err != nil {
			return err
		}
		sym.Params = append(sym.Params, p.Sym)
	}
	for _, d := range rt.Decls {
		if err := r.resolveDecl(d, symbols.Local); err != nil {
			return err
		}
	}
	return r.resolveStmts(rt.Body)
}

func (r *resolver) resolveStmts(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := r.resolveStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) resolveStmt(s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.AssignStmt:
		if err := r.resolveTarget(s.Target); err != nil {
			return err
		}
		v, err := r.resolveValue(s.Value)
		if err != nil {
			return err
		}
		s.Value = v
		return nil
	case *ast.CallStmt:
		out, err := r.resolveCall(s.Call)
		if err != nil {
			return err
		}
		if _, ok := out.(*ast.CallExpr); !ok {
			return &TypeError{Pos: s.P, Msg: s.Call.Name + " is not a routine"}
		}
		return nil
	case *ast.DevPrintStmt:
		v, err := r.resolveValue(s.Value)
		if err != nil {
			return err
		}
		s.Value = v
		return nil
	case *ast.IfStmt:
		for i := range s.Arms {
			c, err := r.resolveValue(s.Arms[i].Cond)
			if err != nil {
				return err
			}
			s.Arms[i].Cond = c
			if err := r.resolveStmts(s.Arms[i].Body); err != nil {
				return err
			}
		}
		return r.resolveStmts(s.Else)
	case *ast.DoStmt:
		r.loopDepth++
		err := r.resolveStmts(s.Body)
		r.loopDepth--
		if err != nil {
			return err
		}
		if s.Until != nil {
			u, err := r.resolveValue(s.Until)
			if err != nil {
				return err
			}
			s.Until = u
		}
		return nil
	case *ast.WhileStmt:
		c, err := r.resolveValue(s.Cond)
		if err != nil {
			return err
		}
		s.Cond = c
		r.loopDepth++
		err = r.resolveStmts(s.Body)
		r.loopDepth--
		if err != nil {
			return err
		}
		if s.Until != nil {
			u, err := r.resolveValue(s.Until)
			if err != nil {
				return err
			}
			s.Until = u
		}
		return nil
	case *ast.ForStmt:
		sym, ok := r.scope.Resolve(s.Var.Name)
		if !ok {
			return &DeclError{Pos: s.Var.P, Msg: "undeclared name " + s.Var.Name}
		}
		if _, ok := sym.Type.(types.Fund); !ok {
			return &TypeError{Pos: s.Var.P, Msg: "FOR variable " + s.Var.Name + " must be fundamental"}
		}
		s.Var.Sym = sym
		s.Var.SetFund(sym.Type.Value())
		from, err := r.resolveValue(s.From)
		if err != nil {
			return err
		}
		s.From = from
		to, err := r.resolveValue(s.To)
		if err != nil {
			return err
		}
		s.To = to
		if s.Step != nil {
			step, err := r.resolveValue(s.Step)
			if err != nil {
				return err
			}
			s.Step = step
		}
		r.loopDepth++
		err = r.resolveStmts(s.Body)
		r.loopDepth--
		return err
	case *ast.ExitStmt:
		if r.loopDepth == 0 {
			return &TypeError{Pos: s.P, Msg: "EXIT outside a loop"}
		}
		return nil
	case *ast.ReturnStmt:
		if r.routine.Ret == types.Void {
			if s.Value != nil {
				return &TypeError{Pos: s.P, Msg: "PROC returns no value"}
			}
			return nil
		}
		if s.Value == nil {
			return &TypeError{Pos: s.P, Msg: "FUNC " + r.routine.Name + " must return a value"}
		}
		v, err := r.resolveValue(s.Value)
		if err != nil {
			return err
		}
		s.Value = v
		return nil
	case *ast.CodeBlockStmt:
		return r.resolveCodeBlock(s)
	}
	return &TypeError{Pos: s.Pos(), Msg: "unsupported statement"}
}

// resolveCodeBlock folds the block's constants and preserves them in
// the data segment. One byte per value, two for values past one byte.
func (r *resolver) resolveCodeBlock(s *ast.CodeBlockStmt) error {
	var bytes []int
	for _, ve := range s.Values {
		v, err := r.foldConst(ve)
		if err != nil {
			return err
		}
		if v >= 0 && v <= 0xFF {
			bytes = append(bytes, v)
		} else {
			c := types.Fit(types.Card, v)
			bytes = append(bytes, c&0xFF, c>>8)
		}
	}
	addr, err := r.alloc.Reserve(len(bytes))
	if err != nil {
		return &DeclError{Pos: s.P, Msg: err.Error()}
	}
	for i, b := range bytes {
		r.alloc.SetByte(addr+uint16(i), b)
	}
	s.Addr = addr
	return nil
}

// resolveTarget checks that an expression can be assigned to and
// annotates it.
func (r *resolver) resolveTarget(e ast.Expr) error {
	switch e := e.(type) {
	case *ast.VarRef:
		sym, ok := r.scope.Resolve(e.Name)
		if !ok {
			return &DeclError{Pos: e.P, Msg: "undeclared name " + e.Name}
		}
		switch sym.Type.(type) {
		case types.Fund, types.Pointer:
		default:
			return &TypeError{Pos: e.P, Msg: "cannot assign to " + e.Name}
		}
		e.Sym = sym
		e.SetFund(sym.Type.Value())
		return nil
	case *ast.IndexExpr:
		return r.resolveIndex(e)
	case *ast.DerefExpr:
		_, err := r.resolveDeref(e)
		return err
	case *ast.FieldExpr:
		return r.resolveField(e)
	}
	return &TypeError{Pos: e.Pos(), Msg: "invalid assignment target"}
}

// resolveValue resolves an expression that must produce a value.
func (r *resolver) resolveValue(e ast.Expr) (ast.Expr, error) {
	out, err := r.resolveExpr(e)
	if err != nil {
		return nil, err
	}
	if out.Fund() == types.Void {
		return nil, &TypeError{Pos: out.Pos(), Msg: "expression has no value"}
	}
	return out, nil
}

// resolveExpr annotates an expression with its width, rewriting
// parenthesized array accesses from call form.
func (r *resolver) resolveExpr(e ast.Expr) (ast.Expr, error) {
	switch e := e.(type) {
	case *ast.NumberLit:
		switch {
		case e.Value < -32768 || e.Value > 65535:
			return nil, &TypeError{Pos: e.P, Msg: "number out of range"}
		case e.Value < 0 || e.Value > 32767:
			if e.Value < 0 {
				e.SetFund(types.Int)
			} else {
				e.SetFund(types.Card)
			}
		case e.Value <= 255:
			e.SetFund(types.Byte)
		default:
			e.SetFund(types.Int)
		}
		return e, nil
	case *ast.StringLit:
		addr, err := r.alloc.Reserve(len(e.Value))
		if err != nil {
			return nil, &DeclError{Pos: e.P, Msg: err.Error()}
		}
		for i := 0; i < len(e.Value); i++ {
			r.alloc.SetByte(addr+uint16(i), int(e.Value[i]))
		}
		e.Addr = addr
		e.SetFund(types.Card)
		return e, nil
	case *ast.VarRef:
		sym, ok := r.scope.Resolve(e.Name)
		if !ok {
			return nil, &DeclError{Pos: e.P, Msg: "undeclared name " + e.Name}
		}
		e.Sym = sym
		e.SetFund(sym.Type.Value())
		return e, nil
	case *ast.IndexExpr:
		if err := r.resolveIndex(e); err != nil {
			return nil, err
		}
		return e, nil
	case *ast.DerefExpr:
		if _, err := r.resolveDeref(e); err != nil {
			return nil, err
		}
		return e, nil
	case *ast.FieldExpr:
		if err := r.resolveField(e); err != nil {
			return nil, err
		}
		return e, nil
	case *ast.AddrExpr:
		sym, ok := r.scope.Resolve(e.Name)
		if !ok {
			return nil, &DeclError{Pos: e.P, Msg: "undeclared name " + e.Name}
		}
		e.Sym = sym
		e.SetFund(types.Card)
		return e, nil
	case *ast.UnaryExpr:
		x, err := r.resolveValue(e.X)
		if err != nil {
			return nil, err
		}
		e.X = x
		e.SetFund(types.Int)
		return e, nil
	case *ast.BinaryExpr:
		l, err := r.resolveValue(e.Left)
		if err != nil {
			return nil, err
		}
		e.Left = l
		rv, err := r.resolveValue(e.Right)
		if err != nil {
			return nil, err
		}
		e.Right = rv
		e.SetFund(binaryType(e.Op, l.Fund(), rv.Fund()))
		return e, nil
	case *ast.CallExpr:
		return r.resolveCall(e)
	}
	return nil, &TypeError{Pos: e.Pos(), Msg: "unsupported expression"}
}

// binaryType applies the promotion rules: MUL/DIV/MOD always yield
// INT, relational ops yield BYTE, everything else promotes.
func binaryType(op token.Type, l, rv types.Fund) types.Fund {
	switch op {
	case token.Star, token.Slash, token.Mod:
		return types.Int
	case token.Equal, token.NotEqual, token.Less, token.LessEqual,
		token.Greater, token.GreaterEqual:
		return types.Byte
	}
	return types.Promote(l, rv)
}

func (r *resolver) resolveIndex(e *ast.IndexExpr) error {
	sym, ok := r.scope.Resolve(e.Name)
	if !ok {
		return &DeclError{Pos: e.P, Msg: "undeclared name " + e.Name}
	}
	arr, ok := sym.Type.(types.Array)
	if !ok {
		return &TypeError{Pos: e.P, Msg: e.Name + " is not an array"}
	}
	idx, err := r.resolveValue(e.Index)
	if err != nil {
		return err
	}
	e.Index = idx
	e.Sym = sym
	e.SetFund(arr.Elem)
	return nil
}

func (r *resolver) resolveDeref(e *ast.DerefExpr) (types.Fund, error) {
	sym, ok := r.scope.Resolve(e.Name)
	if !ok {
		return types.Void, &DeclError{Pos: e.P, Msg: "undeclared name " + e.Name}
	}
	ptr, ok := sym.Type.(types.Pointer)
	if !ok {
		return types.Void, &TypeError{Pos: e.P, Msg: e.Name + " is not a pointer"}
	}
	f, ok := ptr.Ref.(types.Fund)
	if !ok {
		return types.Void, &TypeError{Pos: e.P, Msg: "dereference of " + e.Name + " needs a field"}
	}
	e.Sym = sym
	e.SetFund(f)
	return f, nil
}

func (r *resolver) resolveField(e *ast.FieldExpr) error {
	sym, ok := r.scope.Resolve(e.Name)
	if !ok {
		return &DeclError{Pos: e.P, Msg: "undeclared name " + e.Name}
	}
	var rec *types.Record
	if e.Deref {
		ptr, ok := sym.Type.(types.Pointer)
		if !ok {
			return &TypeError{Pos: e.P, Msg: e.Name + " is not a pointer"}
		}
		rec, ok = ptr.Ref.(*types.Record)
		if !ok {
			return &TypeError{Pos: e.P, Msg: e.Name + " does not point to a record"}
		}
	} else {
		rec, ok = sym.Type.(*types.Record)
		if !ok {
			return &TypeError{Pos: e.P, Msg: e.Name + " is not a record"}
		}
	}
	f, ok := rec.Field(e.Field)
	if !ok {
		return &TypeError{Pos: e.P, Msg: rec.Name + " has no field " + e.Field}
	}
	e.Sym = sym
	e.Offset = f.Offset
	e.FieldT = f.T
	e.SetFund(f.T)
	return nil
}

// resolveCall binds a parenthesized reference: an array access in call
// form is rewritten to an index expression, anything else must be a
// declared routine.
func (r *resolver) resolveCall(e *ast.CallExpr) (ast.Expr, error) {
	sym, declared := r.scope.Resolve(e.Name)
	if declared {
		if _, isArr := sym.Type.(types.Array); isArr {
			if len(e.Args) != 1 {
				return nil, &TypeError{Pos: e.P, Msg: "array " + e.Name + " expects one index"}
			}
			idx := &ast.IndexExpr{P: e.P, Name: e.Name, Index: e.Args[0]}
			if err := r.resolveIndex(idx); err != nil {
				return nil, err
			}
			return idx, nil
		}
	}
	rt, ok := r.tab.Routine(e.Name)
	if !ok {
		if declared {
			return nil, &TypeError{Pos: e.P, Msg: e.Name + " is not an array or routine"}
		}
		return nil, &DeclError{Pos: e.P, Msg: "undeclared routine " + e.Name}
	}
	if len(e.Args) != len(rt.Params) {
		return nil, &TypeError{Pos: e.P, Msg: "wrong argument count for " + e.Name}
	}
	for i, a := range e.Args {
		ra, err := r.resolveValue(a)
		if err != nil {
			return nil, err
		}
		e.Args[i] = ra
	}
	e.Routine = rt
	e.SetFund(rt.Ret)
	return e, nil
}
