package ast

import (
	"github.com/ract-lang/ract/internal/symbols"
	"github.com/ract-lang/ract/internal/token"
	"github.com/ract-lang/ract/internal/types"
)

// Node is the common interface for everything in the tree.
type Node interface {
	Pos() token.Position
}

// Decl is a declaration node.
type Decl interface {
	Node
	declNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node. Fund reports the fundamental width the
// resolver assigned; it is Void until resolution.
type Expr interface {
	Node
	exprNode()
	Fund() types.Fund
}

// typed carries the resolved width of an expression.
type typed struct {
	T types.Fund
}

func (t *typed) Fund() types.Fund     { return t.T }
func (t *typed) SetFund(f types.Fund) { t.T = f }

// Unit is one compilation unit: global declarations followed by
// routines. Execution starts at the last routine.
type Unit struct {
	Decls    []Decl
	Routines []*Routine
}

func (u *Unit) Pos() token.Position {
	if len(u.Decls) > 0 {
		return u.Decls[0].Pos()
	}
	if len(u.Routines) > 0 {
		return u.Routines[0].P
	}
	return token.Position{}
}

// TypeSpec is the syntactic form of a declared type, resolved into a
// types.Type during declaration processing.
type TypeSpec struct {
	Fund       types.Fund // fundamental, or element type for arrays
	RecordName string     // set instead of Fund for record types
	Pointer    bool
	Array      bool
	Dim        Expr // array dimension, nil when omitted
}

// Init is a declaration initializer: `=v`, `=[v v ...]` or a string.
type Init struct {
	Values []Expr
	Str    string
	IsStr  bool
}

// VarDecl declares one variable. Sym is filled by the resolver.
type VarDecl struct {
	P    token.Position
	Name string
	Spec TypeSpec
	Init *Init
	Sym  *symbols.Symbol
}

func (d *VarDecl) Pos() token.Position { return d.P }
func (d *VarDecl) declNode()           {}

// FieldSpec is one field in a record declaration.
type FieldSpec struct {
	Name string
	T    types.Fund
}

// RecordDecl declares a record type.
type RecordDecl struct {
	P      token.Position
	Name   string
	Fields []FieldSpec
}

func (d *RecordDecl) Pos() token.Position { return d.P }
func (d *RecordDecl) declNode()           {}

// Routine is a PROC or FUNC. Ret is Void for a PROC. FixedAddr is the
// optional `=addr` machine-address binding.
type Routine struct {
	P         token.Position
	Name      string
	Ret       types.Fund
	FixedAddr Expr
	Params    []*VarDecl
	Decls     []Decl
	Body      []Stmt
	Sym       *symbols.Routine
}

func (r *Routine) Pos() token.Position { return r.P }

// AssignStmt stores Value into Target. Target is a variable, array
// element, dereference or record field reference.
type AssignStmt struct {
	P      token.Position
	Target Expr
	Value  Expr
}

func (s *AssignStmt) Pos() token.Position { return s.P }
func (s *AssignStmt) stmtNode()           {}

// CallStmt invokes a routine for effect, dropping any result.
type CallStmt struct {
	P    token.Position
	Call *CallExpr
}

func (s *CallStmt) Pos() token.Position { return s.P }
func (s *CallStmt) stmtNode()           {}

// DevPrintStmt hands one value to the host print routine.
type DevPrintStmt struct {
	P     token.Position
	Value Expr
}

func (s *DevPrintStmt) Pos() token.Position { return s.P }
func (s *DevPrintStmt) stmtNode()           {}

// IfArm is one IF/ELSEIF condition with its body.
type IfArm struct {
	Cond Expr
	Body []Stmt
}

// IfStmt is an IF/ELSEIF/ELSE/FI chain.
type IfStmt struct {
	P    token.Position
	Arms []IfArm
	Else []Stmt
}

func (s *IfStmt) Pos() token.Position { return s.P }
func (s *IfStmt) stmtNode()           {}

// DoStmt is DO ... [UNTIL cond] OD. A nil Until loops forever.
type DoStmt struct {
	P     token.Position
	Body  []Stmt
	Until Expr
}

func (s *DoStmt) Pos() token.Position { return s.P }
func (s *DoStmt) stmtNode()           {}

// WhileStmt is WHILE cond DO ... [UNTIL u] OD.
type WhileStmt struct {
	P     token.Position
	Cond  Expr
	Body  []Stmt
	Until Expr
}

func (s *WhileStmt) Pos() token.Position { return s.P }
func (s *WhileStmt) stmtNode()           {}

// ForStmt is FOR v=from TO to [STEP step] DO ... OD. A nil Step
// counts by one.
type ForStmt struct {
	P    token.Position
	Var  *VarRef
	From Expr
	To   Expr
	Step Expr
	Body []Stmt
}

func (s *ForStmt) Pos() token.Position { return s.P }
func (s *ForStmt) stmtNode()           {}

// ExitStmt leaves the innermost enclosing loop.
type ExitStmt struct {
	P token.Position
}

func (s *ExitStmt) Pos() token.Position { return s.P }
func (s *ExitStmt) stmtNode()           {}

// ReturnStmt returns from the current routine, with a value in a FUNC.
type ReturnStmt struct {
	P     token.Position
	Value Expr
}

func (s *ReturnStmt) Pos() token.Position { return s.P }
func (s *ReturnStmt) stmtNode()           {}

// CodeBlockStmt is an inline `[ ... ]` block. The folded constants are
// preserved as data; the block itself is never executed. Addr is the
// data address assigned by the resolver.
type CodeBlockStmt struct {
	P      token.Position
	Values []Expr
	Addr   uint16
}

func (s *CodeBlockStmt) Pos() token.Position { return s.P }
func (s *CodeBlockStmt) stmtNode()           {}

// NumberLit is a numeric constant.
type NumberLit struct {
	typed
	P     token.Position
	Value int
}

func (e *NumberLit) Pos() token.Position { return e.P }
func (e *NumberLit) exprNode()           {}

// StringLit is a string constant. Its bytes live in the data segment
// and the expression evaluates to their address.
type StringLit struct {
	typed
	P     token.Position
	Value string
	Addr  uint16
}

func (e *StringLit) Pos() token.Position { return e.P }
func (e *StringLit) exprNode()           {}

// VarRef names a variable. Loading an array variable yields its base
// address.
type VarRef struct {
	typed
	P    token.Position
	Name string
	Sym  *symbols.Symbol
}

func (e *VarRef) Pos() token.Position { return e.P }
func (e *VarRef) exprNode()           {}

// IndexExpr is an array element reference `a(i)`.
type IndexExpr struct {
	typed
	P     token.Position
	Name  string
	Sym   *symbols.Symbol
	Index Expr
}

func (e *IndexExpr) Pos() token.Position { return e.P }
func (e *IndexExpr) exprNode()           {}

// FieldExpr is `r.f` or, with Deref set, `p^.f`. Offset and FieldT are
// resolved from the record layout.
type FieldExpr struct {
	typed
	P      token.Position
	Name   string
	Sym    *symbols.Symbol
	Field  string
	Deref  bool
	Offset int
	FieldT types.Fund
}

func (e *FieldExpr) Pos() token.Position { return e.P }
func (e *FieldExpr) exprNode()           {}

// DerefExpr is a pointer dereference `p^`.
type DerefExpr struct {
	typed
	P    token.Position
	Name string
	Sym  *symbols.Symbol
}

func (e *DerefExpr) Pos() token.Position { return e.P }
func (e *DerefExpr) exprNode()           {}

// AddrExpr is `@name`, the address of a variable.
type AddrExpr struct {
	typed
	P    token.Position
	Name string
	Sym  *symbols.Symbol
}

func (e *AddrExpr) Pos() token.Position { return e.P }
func (e *AddrExpr) exprNode()           {}

// UnaryExpr is a prefix operation.
type UnaryExpr struct {
	typed
	P  token.Position
	Op token.Type
	X  Expr
}

func (e *UnaryExpr) Pos() token.Position { return e.P }
func (e *UnaryExpr) exprNode()           {}

// BinaryExpr is an infix operation.
type BinaryExpr struct {
	typed
	P     token.Position
	Op    token.Type
	Left  Expr
	Right Expr
}

func (e *BinaryExpr) Pos() token.Position { return e.P }
func (e *BinaryExpr) exprNode()           {}

// CallExpr is `name(args)`. The parser emits it for any parenthesized
// reference; the resolver rewrites array accesses into IndexExpr and
// binds routine calls to their symbol.
type CallExpr struct {
	typed
	P       token.Position
	Name    string
	Args    []Expr
	Routine *symbols.Routine
}

func (e *CallExpr) Pos() token.Position { return e.P }
func (e *CallExpr) exprNode()           {}
