package parser

import (
	"fmt"
	"strconv"

	"github.com/ract-lang/ract/internal/ast"
	"github.com/ract-lang/ract/internal/lexer"
	"github.com/ract-lang/ract/internal/token"
	"github.com/ract-lang/ract/internal/types"
)

// maxParams bounds routine parameter lists.
const maxParams = 8

// Error is a syntax error with its source position.
type Error struct {
	Pos token.Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Pos.Source, e.Pos.Line, e.Msg)
}

// operator precedence, lowest binds loosest
const (
	lowest = iota
	xorPrec
	orPrec
	andPrec
	comparePrec
	termPrec
	factorPrec
)

var precedences = map[token.Type]int{
	token.Xor:          xorPrec,
	token.Or:           orPrec,
	token.Percent:      orPrec,
	token.And:          andPrec,
	token.Amp:          andPrec,
	token.Equal:        comparePrec,
	token.NotEqual:     comparePrec,
	token.Less:         comparePrec,
	token.LessEqual:    comparePrec,
	token.Greater:      comparePrec,
	token.GreaterEqual: comparePrec,
	token.Plus:         termPrec,
	token.Minus:        termPrec,
	token.Star:         factorPrec,
	token.Slash:        factorPrec,
	token.Mod:          factorPrec,
	token.Lsh:          factorPrec,
	token.Rsh:          factorPrec,
}

// selfAssignOps are the operators permitted after `==`.
var selfAssignOps = map[token.Type]bool{
	token.Plus:    true,
	token.Minus:   true,
	token.Star:    true,
	token.Slash:   true,
	token.Mod:     true,
	token.Lsh:     true,
	token.Rsh:     true,
	token.Amp:     true,
	token.Percent: true,
	token.Xor:     true,
}

// Parser builds the AST with one token of lookahead.
type Parser struct {
	l    *lexer.Lexer
	cur  token.Token
	peek token.Token

	// return width of the routine being parsed, Void outside FUNCs
	curRet types.Fund
}

// New creates a parser over l and primes the token window.
func New(l *lexer.Lexer) (*Parser, error) {
	p := &Parser{l: l}
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) next() error {
	p.cur = p.peek
	t, err := p.l.Next()
	if err != nil {
		return err
	}
	p.peek = t
	return nil
}

func (p *Parser) expect(t token.Type) error {
	if p.cur.Type != t {
		return p.errorf("expected %s, got %s (%q)", t, p.cur.Type, p.cur.Literal)
	}
	return p.next()
}

func (p *Parser) errorf(format string, args ...any) error {
	return &Error{Pos: p.cur.Pos, Msg: fmt.Sprintf(format, args...)}
}

// ParseUnit parses one compilation unit: global declarations and
// routines, optionally separated by MODULE markers.
func (p *Parser) ParseUnit() (*ast.Unit, error) {
	unit := &ast.Unit{}
	for p.cur.Type != token.EOF {
		switch {
		case p.cur.Type == token.Module:
			if err := p.next(); err != nil {
				return nil, err
			}
		case p.cur.Type == token.TypeDecl:
			d, err := p.parseRecordDecl()
			if err != nil {
				return nil, err
			}
			unit.Decls = append(unit.Decls, d)
		case p.cur.Type == token.Proc:
			r, err := p.parseRoutine(types.Void)
			if err != nil {
				return nil, err
			}
			unit.Routines = append(unit.Routines, r)
		case token.IsFund(p.cur.Type) && p.peek.Type == token.Func:
			ret := fundOf(p.cur.Type)
			if err := p.next(); err != nil {
				return nil, err
			}
			r, err := p.parseRoutine(ret)
			if err != nil {
				return nil, err
			}
			unit.Routines = append(unit.Routines, r)
		case token.IsFund(p.cur.Type) || p.cur.Type == token.Ident:
			decls, err := p.parseVarDecls()
			if err != nil {
				return nil, err
			}
			unit.Decls = append(unit.Decls, decls...)
		default:
			return nil, p.errorf("unexpected %s (%q) at top level", p.cur.Type, p.cur.Literal)
		}
	}
	if len(unit.Routines) == 0 {
		return nil, p.errorf("unit declares no routines")
	}
	return unit, nil
}

// parseRecordDecl parses `TYPE name=[fund f1 fund f2 ...]`.
func (p *Parser) parseRecordDecl() (*ast.RecordDecl, error) {
	d := &ast.RecordDecl{P: p.cur.Pos}
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.cur.Type != token.Ident {
		return nil, p.errorf("TYPE expects a name, got %s", p.cur.Type)
	}
	d.Name = p.cur.Literal
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.expect(token.Equal); err != nil {
		return nil, err
	}
	if err := p.expect(token.LBracket); err != nil {
		return nil, err
	}
	for p.cur.Type != token.RBracket {
		if !token.IsFund(p.cur.Type) {
			return nil, p.errorf("record field expects a fundamental type, got %s", p.cur.Type)
		}
		ft := fundOf(p.cur.Type)
		if err := p.next(); err != nil {
			return nil, err
		}
		for {
			if p.cur.Type != token.Ident {
				return nil, p.errorf("record field expects a name, got %s", p.cur.Type)
			}
			d.Fields = append(d.Fields, ast.FieldSpec{Name: p.cur.Literal, T: ft})
			if err := p.next(); err != nil {
				return nil, err
			}
			if p.cur.Type != token.Comma {
				break
			}
			if err := p.next(); err != nil {
				return nil, err
			}
		}
	}
	if len(d.Fields) == 0 {
		return nil, p.errorf("record %s has no fields", d.Name)
	}
	return d, p.next()
}

// parseVarDecls parses one declaration line: scalars, pointers, arrays
// or record instances, with optional initializers.
func (p *Parser) parseVarDecls() ([]ast.Decl, error) {
	spec := ast.TypeSpec{}
	if token.IsFund(p.cur.Type) {
		spec.Fund = fundOf(p.cur.Type)
	} else {
		spec.RecordName = p.cur.Literal
	}
	if err := p.next(); err != nil {
		return nil, err
	}

	switch p.cur.Type {
	case token.Pointer:
		spec.Pointer = true
		if err := p.next(); err != nil {
			return nil, err
		}
	case token.Array:
		if spec.RecordName != "" {
			return nil, p.errorf("arrays of records are not supported")
		}
		spec.Array = true
		if err := p.next(); err != nil {
			return nil, err
		}
	}

	var decls []ast.Decl
	for {
		if p.cur.Type != token.Ident {
			return nil, p.errorf("declaration expects a name, got %s (%q)", p.cur.Type, p.cur.Literal)
		}
		d := &ast.VarDecl{P: p.cur.Pos, Name: p.cur.Literal, Spec: spec}
		if err := p.next(); err != nil {
			return nil, err
		}
		if spec.Array && p.cur.Type == token.LParen {
			if err := p.next(); err != nil {
				return nil, err
			}
			dim, err := p.parseExpression(lowest)
			if err != nil {
				return nil, err
			}
			d.Spec.Dim = dim
			if err := p.expect(token.RParen); err != nil {
				return nil, err
			}
		}
		if p.cur.Type == token.Equal {
			init, err := p.parseInit()
			if err != nil {
				return nil, err
			}
			d.Init = init
		}
		decls = append(decls, d)
		if p.cur.Type != token.Comma {
			return decls, nil
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
}

// parseInit parses `=v`, `=[v v ...]` or `="text"`.
func (p *Parser) parseInit() (*ast.Init, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	switch p.cur.Type {
	case token.LBracket:
		if err := p.next(); err != nil {
			return nil, err
		}
		init := &ast.Init{}
		// list elements are space separated, so `-` always negates
		for p.cur.Type != token.RBracket {
			v, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			init.Values = append(init.Values, v)
		}
		return init, p.next()
	case token.String:
		init := &ast.Init{Str: p.cur.Literal, IsStr: true}
		return init, p.next()
	default:
		v, err := p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
		return &ast.Init{Values: []ast.Expr{v}}, nil
	}
}

// parseRoutine parses a PROC or FUNC from its keyword. ret is Void for
// a PROC.
func (p *Parser) parseRoutine(ret types.Fund) (*ast.Routine, error) {
	r := &ast.Routine{P: p.cur.Pos, Ret: ret}
	p.l.PushDefineScope()
	defer p.l.PopDefineScope()

	if err := p.next(); err != nil {
		return nil, err
	}
	if p.cur.Type != token.Ident {
		return nil, p.errorf("routine expects a name, got %s", p.cur.Type)
	}
	r.Name = p.cur.Literal
	if err := p.next(); err != nil {
		return nil, err
	}

	if p.cur.Type == token.Equal {
		if err := p.next(); err != nil {
			return nil, err
		}
		addr, err := p.parseConstAtom()
		if err != nil {
			return nil, err
		}
		r.FixedAddr = addr
	}

	if err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	if err := p.parseParams(r); err != nil {
		return nil, err
	}
	if err := p.expect(token.RParen); err != nil {
		return nil, err
	}

	for p.isLocalDeclStart() {
		decls, err := p.parseVarDecls()
		if err != nil {
			return nil, err
		}
		r.Decls = append(r.Decls, decls...)
	}

	prevRet := p.curRet
	p.curRet = ret
	body, err := p.parseStmts(map[token.Type]bool{})
	p.curRet = prevRet
	if err != nil {
		return nil, err
	}
	r.Body = body
	return r, nil
}

// parseParams parses the comma-separated parameter declarations.
func (p *Parser) parseParams(r *ast.Routine) error {
	for p.cur.Type != token.RParen {
		if len(r.Params) >= maxParams {
			return p.errorf("routine %s has more than %d parameters", r.Name, maxParams)
		}
		spec := ast.TypeSpec{}
		if token.IsFund(p.cur.Type) {
			spec.Fund = fundOf(p.cur.Type)
		} else if p.cur.Type == token.Ident {
			spec.RecordName = p.cur.Literal
		} else {
			return p.errorf("parameter expects a type, got %s (%q)", p.cur.Type, p.cur.Literal)
		}
		if err := p.next(); err != nil {
			return err
		}
		if p.cur.Type == token.Pointer {
			spec.Pointer = true
			if err := p.next(); err != nil {
				return err
			}
		}
		if spec.RecordName != "" && !spec.Pointer {
			return p.errorf("records pass only by POINTER")
		}
		if p.cur.Type != token.Ident {
			return p.errorf("parameter expects a name, got %s", p.cur.Type)
		}
		r.Params = append(r.Params, &ast.VarDecl{P: p.cur.Pos, Name: p.cur.Literal, Spec: spec})
		if err := p.next(); err != nil {
			return err
		}
		if p.cur.Type == token.Comma {
			if err := p.next(); err != nil {
				return err
			}
		}
	}
	return nil
}

// isLocalDeclStart reports whether cur begins a routine-local
// declaration rather than a statement.
func (p *Parser) isLocalDeclStart() bool {
	if token.IsFund(p.cur.Type) {
		return true
	}
	// record instance or record pointer: `name name` / `name POINTER`
	return p.cur.Type == token.Ident &&
		(p.peek.Type == token.Ident || p.peek.Type == token.Pointer)
}

// routine bodies end at the next routine, module marker or EOF
func (p *Parser) atRoutineEnd() bool {
	switch p.cur.Type {
	case token.EOF, token.Module, token.Proc:
		return true
	}
	return token.IsFund(p.cur.Type) && p.peek.Type == token.Func
}

// parseStmts parses statements until a stop token or the end of the
// routine. The stop token is left in place.
func (p *Parser) parseStmts(stop map[token.Type]bool) ([]ast.Stmt, error) {
	var stmts []ast.Stmt
	for {
		if stop[p.cur.Type] || p.atRoutineEnd() {
			return stmts, nil
		}
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
}

func (p *Parser) parseStatement() (ast.Stmt, error) {
	switch p.cur.Type {
	case token.If:
		return p.parseIf()
	case token.Do:
		return p.parseDo()
	case token.While:
		return p.parseWhile()
	case token.For:
		return p.parseFor()
	case token.Exit:
		s := &ast.ExitStmt{P: p.cur.Pos}
		return s, p.next()
	case token.Return:
		return p.parseReturn()
	case token.DevPrint:
		return p.parseDevPrint()
	case token.LBracket:
		return p.parseCodeBlock()
	case token.Ident:
		return p.parseSimpleStatement()
	}
	return nil, p.errorf("unexpected %s (%q) in routine body", p.cur.Type, p.cur.Literal)
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	s := &ast.IfStmt{P: p.cur.Pos}
	stop := map[token.Type]bool{token.ElseIf: true, token.Else: true, token.Fi: true}
	for {
		if err := p.next(); err != nil {
			return nil, err
		}
		cond, err := p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.Then); err != nil {
			return nil, err
		}
		body, err := p.parseStmts(stop)
		if err != nil {
			return nil, err
		}
		s.Arms = append(s.Arms, ast.IfArm{Cond: cond, Body: body})
		if p.cur.Type != token.ElseIf {
			break
		}
	}
	if p.cur.Type == token.Else {
		if err := p.next(); err != nil {
			return nil, err
		}
		body, err := p.parseStmts(map[token.Type]bool{token.Fi: true})
		if err != nil {
			return nil, err
		}
		s.Else = body
	}
	return s, p.expect(token.Fi)
}

func (p *Parser) parseDo() (ast.Stmt, error) {
	s := &ast.DoStmt{P: p.cur.Pos}
	if err := p.next(); err != nil {
		return nil, err
	}
	body, until, err := p.parseLoopTail()
	if err != nil {
		return nil, err
	}
	s.Body, s.Until = body, until
	return s, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	s := &ast.WhileStmt{P: p.cur.Pos}
	if err := p.next(); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	s.Cond = cond
	if err := p.expect(token.Do); err != nil {
		return nil, err
	}
	body, until, err := p.parseLoopTail()
	if err != nil {
		return nil, err
	}
	s.Body, s.Until = body, until
	return s, nil
}

func (p *Parser) parseFor() (ast.Stmt, error) {
	s := &ast.ForStmt{P: p.cur.Pos}
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.cur.Type != token.Ident {
		return nil, p.errorf("FOR expects a variable, got %s", p.cur.Type)
	}
	s.Var = &ast.VarRef{P: p.cur.Pos, Name: p.cur.Literal}
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.expect(token.Equal); err != nil {
		return nil, err
	}
	from, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	s.From = from
	if err := p.expect(token.To); err != nil {
		return nil, err
	}
	to, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	s.To = to
	if p.cur.Type == token.Step {
		if err := p.next(); err != nil {
			return nil, err
		}
		step, err := p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
		s.Step = step
	}
	if err := p.expect(token.Do); err != nil {
		return nil, err
	}
	body, until, err := p.parseLoopTail()
	if err != nil {
		return nil, err
	}
	if until != nil {
		return nil, p.errorf("FOR loop does not take UNTIL")
	}
	s.Body = body
	return s, nil
}

// parseLoopTail parses a loop body up to OD, with an optional UNTIL
// condition before the OD.
func (p *Parser) parseLoopTail() ([]ast.Stmt, ast.Expr, error) {
	body, err := p.parseStmts(map[token.Type]bool{token.Until: true, token.Od: true})
	if err != nil {
		return nil, nil, err
	}
	var until ast.Expr
	if p.cur.Type == token.Until {
		if err := p.next(); err != nil {
			return nil, nil, err
		}
		until, err = p.parseExpression(lowest)
		if err != nil {
			return nil, nil, err
		}
	}
	if err := p.expect(token.Od); err != nil {
		return nil, nil, err
	}
	return body, until, nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	s := &ast.ReturnStmt{P: p.cur.Pos}
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.curRet != types.Void && p.cur.Type == token.LParen {
		if err := p.next(); err != nil {
			return nil, err
		}
		v, err := p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
		s.Value = v
		if err := p.expect(token.RParen); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (p *Parser) parseDevPrint() (ast.Stmt, error) {
	s := &ast.DevPrintStmt{P: p.cur.Pos}
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	v, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	s.Value = v
	return s, p.expect(token.RParen)
}

func (p *Parser) parseCodeBlock() (ast.Stmt, error) {
	s := &ast.CodeBlockStmt{P: p.cur.Pos}
	if err := p.next(); err != nil {
		return nil, err
	}
	for p.cur.Type != token.RBracket {
		v, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		s.Values = append(s.Values, v)
	}
	return s, p.next()
}

// parseSimpleStatement parses an assignment, self-assignment or call
// statement, all of which begin with an identifier.
func (p *Parser) parseSimpleStatement() (ast.Stmt, error) {
	pos := p.cur.Pos
	name := p.cur.Literal
	if err := p.next(); err != nil {
		return nil, err
	}

	var target ast.Expr
	switch p.cur.Type {
	case token.LParen:
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if p.cur.Type != token.Equal && p.cur.Type != token.SelfAssign {
			call := &ast.CallExpr{P: pos, Name: name, Args: args}
			return &ast.CallStmt{P: pos, Call: call}, nil
		}
		if len(args) != 1 {
			return nil, p.errorf("array assignment to %s expects one index", name)
		}
		target = &ast.IndexExpr{P: pos, Name: name, Index: args[0]}
	case token.Caret:
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.cur.Type == token.Dot {
			f, err := p.parseFieldName()
			if err != nil {
				return nil, err
			}
			target = &ast.FieldExpr{P: pos, Name: name, Field: f, Deref: true}
		} else {
			target = &ast.DerefExpr{P: pos, Name: name}
		}
	case token.Dot:
		f, err := p.parseFieldName()
		if err != nil {
			return nil, err
		}
		target = &ast.FieldExpr{P: pos, Name: name, Field: f}
	default:
		target = &ast.VarRef{P: pos, Name: name}
	}

	switch p.cur.Type {
	case token.Equal:
		if err := p.next(); err != nil {
			return nil, err
		}
		v, err := p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
		return &ast.AssignStmt{P: pos, Target: target, Value: v}, nil
	case token.SelfAssign:
		if err := p.next(); err != nil {
			return nil, err
		}
		op := p.cur.Type
		if !selfAssignOps[op] {
			return nil, p.errorf("expected an operator after ==, got %s (%q)", p.cur.Type, p.cur.Literal)
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		rhs, err := p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
		load := cloneTarget(target)
		v := &ast.BinaryExpr{P: pos, Op: op, Left: load, Right: rhs}
		return &ast.AssignStmt{P: pos, Target: target, Value: v}, nil
	}
	return nil, p.errorf("expected = in statement, got %s (%q)", p.cur.Type, p.cur.Literal)
}

// cloneTarget makes an independent load expression from an assignment
// target so the resolver can annotate both sides.
func cloneTarget(e ast.Expr) ast.Expr {
	switch t := e.(type) {
	case *ast.VarRef:
		c := *t
		return &c
	case *ast.IndexExpr:
		c := *t
		return &c
	case *ast.DerefExpr:
		c := *t
		return &c
	case *ast.FieldExpr:
		c := *t
		return &c
	}
	return e
}

func (p *Parser) parseFieldName() (string, error) {
	if err := p.expect(token.Dot); err != nil {
		return "", err
	}
	if p.cur.Type != token.Ident {
		return "", p.errorf("expected a field name, got %s", p.cur.Type)
	}
	name := p.cur.Literal
	return name, p.next()
}

// parseArgs parses a parenthesized, comma-separated expression list
// with cur on the opening parenthesis.
func (p *Parser) parseArgs() ([]ast.Expr, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	var args []ast.Expr
	for p.cur.Type != token.RParen {
		a, err := p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.cur.Type == token.Comma {
			if err := p.next(); err != nil {
				return nil, err
			}
		}
	}
	return args, p.next()
}

func (p *Parser) parseExpression(prec int) (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		opPrec, ok := precedences[p.cur.Type]
		if !ok || prec >= opPrec {
			return left, nil
		}
		op := p.cur
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseExpression(opPrec)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{P: op.Pos, Op: op.Type, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	switch p.cur.Type {
	case token.Minus:
		pos := p.cur.Pos
		if err := p.next(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{P: pos, Op: token.Minus, X: x}, nil
	case token.At:
		pos := p.cur.Pos
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.cur.Type != token.Ident {
			return nil, p.errorf("@ expects a variable name, got %s", p.cur.Type)
		}
		e := &ast.AddrExpr{P: pos, Name: p.cur.Literal}
		return e, p.next()
	}
	return p.parsePrimary()
}

// parseConstAtom parses the restricted constant form allowed in a
// routine address binding: a literal, a bare name or their negation.
func (p *Parser) parseConstAtom() (ast.Expr, error) {
	if p.cur.Type == token.Minus {
		pos := p.cur.Pos
		if err := p.next(); err != nil {
			return nil, err
		}
		x, err := p.parseConstAtom()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{P: pos, Op: token.Minus, X: x}, nil
	}
	switch p.cur.Type {
	case token.Number, token.HexNum, token.CharLit:
		return p.parsePrimary()
	case token.Ident:
		e := &ast.VarRef{P: p.cur.Pos, Name: p.cur.Literal}
		return e, p.next()
	}
	return nil, p.errorf("expected a constant, got %s (%q)", p.cur.Type, p.cur.Literal)
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	switch p.cur.Type {
	case token.Number:
		v, err := strconv.Atoi(p.cur.Literal)
		if err != nil {
			return nil, p.errorf("bad number %q", p.cur.Literal)
		}
		e := &ast.NumberLit{P: p.cur.Pos, Value: v}
		return e, p.next()
	case token.HexNum:
		v, err := strconv.ParseInt(p.cur.Literal, 16, 32)
		if err != nil {
			return nil, p.errorf("bad hex number $%s", p.cur.Literal)
		}
		e := &ast.NumberLit{P: p.cur.Pos, Value: int(v)}
		return e, p.next()
	case token.CharLit:
		e := &ast.NumberLit{P: p.cur.Pos, Value: int(p.cur.Literal[0])}
		return e, p.next()
	case token.String:
		e := &ast.StringLit{P: p.cur.Pos, Value: p.cur.Literal}
		return e, p.next()
	case token.LParen:
		if err := p.next(); err != nil {
			return nil, err
		}
		e, err := p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
		return e, p.expect(token.RParen)
	case token.Ident:
		return p.parseReference()
	}
	return nil, p.errorf("unexpected %s (%q) in expression", p.cur.Type, p.cur.Literal)
}

// parseReference parses an identifier with its access suffixes: call
// or array index, dereference, and field selection.
func (p *Parser) parseReference() (ast.Expr, error) {
	pos := p.cur.Pos
	name := p.cur.Literal
	if err := p.next(); err != nil {
		return nil, err
	}
	switch p.cur.Type {
	case token.LParen:
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return &ast.CallExpr{P: pos, Name: name, Args: args}, nil
	case token.Caret:
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.cur.Type == token.Dot {
			f, err := p.parseFieldName()
			if err != nil {
				return nil, err
			}
			return &ast.FieldExpr{P: pos, Name: name, Field: f, Deref: true}, nil
		}
		return &ast.DerefExpr{P: pos, Name: name}, nil
	case token.Dot:
		f, err := p.parseFieldName()
		if err != nil {
			return nil, err
		}
		return &ast.FieldExpr{P: pos, Name: name, Field: f}, nil
	}
	return &ast.VarRef{P: pos, Name: name}, nil
}

func fundOf(t token.Type) types.Fund {
	switch t {
	case token.Byte:
		return types.Byte
	case token.Char:
		return types.Char
	case token.Int:
		return types.Int
	case token.Card:
		return types.Card
	}
	return types.Void
}
