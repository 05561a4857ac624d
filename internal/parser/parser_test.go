package parser

import (
	"testing"

	"github.com/ract-lang/ract/internal/ast"
	"github.com/ract-lang/ract/internal/lexer"
	"github.com/ract-lang/ract/internal/token"
	"github.com/ract-lang/ract/internal/types"
)

func parseUnit(t *testing.T, src string) *ast.Unit {
	t.Helper()
	p, err := New(lexer.New("test", src))
	if err != nil {
		t.Fatalf("lexer error: %v", err)
	}
	unit, err := p.ParseUnit()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return unit
}

func TestParseGlobalsAndRoutine(t *testing.T) {
	unit := parseUnit(t, `
BYTE x=5
BYTE y=10
PROC main()
  IF x<y THEN
    y=x
  FI
RETURN
`)

	if len(unit.Decls) != 2 {
		t.Fatalf("expected 2 declarations, got %d", len(unit.Decls))
	}
	d0 := unit.Decls[0].(*ast.VarDecl)
	if d0.Name != "x" || d0.Spec.Fund != types.Byte || d0.Init == nil {
		t.Fatalf("unexpected first declaration: %+v", d0)
	}
	if len(unit.Routines) != 1 {
		t.Fatalf("expected 1 routine, got %d", len(unit.Routines))
	}
	r := unit.Routines[0]
	if r.Name != "main" || r.Ret != types.Void {
		t.Fatalf("unexpected routine: %q ret %v", r.Name, r.Ret)
	}
	if len(r.Body) != 2 {
		t.Fatalf("expected IF and RETURN, got %d statements", len(r.Body))
	}
	ifStmt, ok := r.Body[0].(*ast.IfStmt)
	if !ok {
		t.Fatalf("expected IfStmt, got %T", r.Body[0])
	}
	if len(ifStmt.Arms) != 1 || ifStmt.Else != nil {
		t.Fatalf("unexpected IF shape: %+v", ifStmt)
	}
	cond, ok := ifStmt.Arms[0].Cond.(*ast.BinaryExpr)
	if !ok || cond.Op != token.Less {
		t.Fatalf("expected < condition, got %+v", ifStmt.Arms[0].Cond)
	}
}

func TestParseFuncAndCall(t *testing.T) {
	unit := parseUnit(t, `
INT FUNC add(INT a, INT b)
RETURN (a+b)

PROC main()
  INT r
  r=add(2,3)
RETURN
`)

	if len(unit.Routines) != 2 {
		t.Fatalf("expected 2 routines, got %d", len(unit.Routines))
	}
	f := unit.Routines[0]
	if f.Ret != types.Int || len(f.Params) != 2 {
		t.Fatalf("unexpected FUNC shape: ret %v params %d", f.Ret, len(f.Params))
	}
	ret, ok := f.Body[0].(*ast.ReturnStmt)
	if !ok || ret.Value == nil {
		t.Fatalf("expected RETURN with value, got %+v", f.Body[0])
	}

	m := unit.Routines[1]
	if len(m.Decls) != 1 {
		t.Fatalf("expected 1 local, got %d", len(m.Decls))
	}
	assign, ok := m.Body[0].(*ast.AssignStmt)
	if !ok {
		t.Fatalf("expected assignment, got %T", m.Body[0])
	}
	call, ok := assign.Value.(*ast.CallExpr)
	if !ok || call.Name != "add" || len(call.Args) != 2 {
		t.Fatalf("unexpected call: %+v", assign.Value)
	}
}

func TestParsePrecedence(t *testing.T) {
	unit := parseUnit(t, `
PROC main()
  BYTE r
  r=1+2*3
RETURN
`)
	assign := unit.Routines[0].Body[0].(*ast.AssignStmt)
	add, ok := assign.Value.(*ast.BinaryExpr)
	if !ok || add.Op != token.Plus {
		t.Fatalf("expected + at the top, got %+v", assign.Value)
	}
	mul, ok := add.Right.(*ast.BinaryExpr)
	if !ok || mul.Op != token.Star {
		t.Fatalf("expected * under +, got %+v", add.Right)
	}
}

func TestParseLogicalBelowCompare(t *testing.T) {
	unit := parseUnit(t, `
PROC main()
  BYTE r
  r=a<1 AND b>2 OR c=3
RETURN
`)
	assign := unit.Routines[0].Body[0].(*ast.AssignStmt)
	or, ok := assign.Value.(*ast.BinaryExpr)
	if !ok || or.Op != token.Or {
		t.Fatalf("expected OR at the top, got %+v", assign.Value)
	}
	and, ok := or.Left.(*ast.BinaryExpr)
	if !ok || and.Op != token.And {
		t.Fatalf("expected AND under OR, got %+v", or.Left)
	}
}

func TestParseLoops(t *testing.T) {
	unit := parseUnit(t, `
PROC main()
  BYTE i, n
  DO n=n+1 UNTIL n=3 OD
  WHILE n>0 DO n=n-1 OD
  FOR i=1 TO 10 STEP 2
  DO
    IF i=5 THEN EXIT FI
  OD
RETURN
`)
	body := unit.Routines[0].Body
	do, ok := body[0].(*ast.DoStmt)
	if !ok || do.Until == nil {
		t.Fatalf("expected DO/UNTIL, got %+v", body[0])
	}
	while, ok := body[1].(*ast.WhileStmt)
	if !ok || while.Cond == nil {
		t.Fatalf("expected WHILE, got %+v", body[1])
	}
	f, ok := body[2].(*ast.ForStmt)
	if !ok || f.Step == nil || f.Var.Name != "i" {
		t.Fatalf("expected FOR with STEP, got %+v", body[2])
	}
}

func TestParseReferences(t *testing.T) {
	unit := parseUnit(t, `
PROC main()
  CARD p, r
  a(i)=p^
  p^.f=r.g
  p=@r
RETURN
`)
	body := unit.Routines[0].Body
	a0 := body[0].(*ast.AssignStmt)
	if _, ok := a0.Target.(*ast.IndexExpr); !ok {
		t.Fatalf("expected array element target, got %T", a0.Target)
	}
	if _, ok := a0.Value.(*ast.DerefExpr); !ok {
		t.Fatalf("expected dereference value, got %T", a0.Value)
	}
	a1 := body[1].(*ast.AssignStmt)
	ft, ok := a1.Target.(*ast.FieldExpr)
	if !ok || !ft.Deref || ft.Field != "f" {
		t.Fatalf("expected p^.f target, got %+v", a1.Target)
	}
	fv, ok := a1.Value.(*ast.FieldExpr)
	if !ok || fv.Deref || fv.Field != "g" {
		t.Fatalf("expected r.g value, got %+v", a1.Value)
	}
	a2 := body[2].(*ast.AssignStmt)
	if _, ok := a2.Value.(*ast.AddrExpr); !ok {
		t.Fatalf("expected @r value, got %T", a2.Value)
	}
}

func TestParseSelfAssign(t *testing.T) {
	unit := parseUnit(t, `
PROC main()
  BYTE x
  x ==+ 1
RETURN
`)
	assign := unit.Routines[0].Body[0].(*ast.AssignStmt)
	v, ok := assign.Value.(*ast.BinaryExpr)
	if !ok || v.Op != token.Plus {
		t.Fatalf("expected x+1 value, got %+v", assign.Value)
	}
	if _, ok := v.Left.(*ast.VarRef); !ok {
		t.Fatalf("expected variable load on the left, got %T", v.Left)
	}
}

func TestParseRecordDecl(t *testing.T) {
	unit := parseUnit(t, `
TYPE point=[INT x,y BYTE tag]
point p
PROC main()
RETURN
`)
	rec, ok := unit.Decls[0].(*ast.RecordDecl)
	if !ok || rec.Name != "point" || len(rec.Fields) != 3 {
		t.Fatalf("unexpected record: %+v", unit.Decls[0])
	}
	if rec.Fields[1].Name != "y" || rec.Fields[1].T != types.Int {
		t.Fatalf("unexpected second field: %+v", rec.Fields[1])
	}
	inst, ok := unit.Decls[1].(*ast.VarDecl)
	if !ok || inst.Spec.RecordName != "point" {
		t.Fatalf("unexpected record instance: %+v", unit.Decls[1])
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing FI", "PROC main() IF x THEN y=1 RETURN"},
		{"missing THEN", "PROC main() IF x y=1 FI RETURN"},
		{"too many params", "PROC f(BYTE a,BYTE b,BYTE c,BYTE d,BYTE e,BYTE f,BYTE g,BYTE h,BYTE i) RETURN"},
		{"record by value param", "TYPE r=[BYTE a]\nPROC f(r v) RETURN"},
		{"bad self assign", "PROC main() x ==? 1 RETURN"},
		{"FOR with UNTIL", "PROC main() FOR i=1 TO 3 DO UNTIL i OD RETURN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(lexer.New("test", tt.src))
			if err != nil {
				return
			}
			if _, err := p.ParseUnit(); err == nil {
				t.Fatal("expected a parse error")
			}
		})
	}
}
