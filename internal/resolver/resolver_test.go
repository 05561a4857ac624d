package resolver

import (
	"errors"
	"testing"

	"github.com/ract-lang/ract/internal/ast"
	"github.com/ract-lang/ract/internal/lexer"
	"github.com/ract-lang/ract/internal/parser"
	"github.com/ract-lang/ract/internal/symbols"
	"github.com/ract-lang/ract/internal/types"
)

func resolveSrc(t *testing.T, src string) (*ast.Unit, *Outcome) {
	t.Helper()
	p, err := parser.New(lexer.New("test", src))
	if err != nil {
		t.Fatalf("lexer error: %v", err)
	}
	unit, err := p.ParseUnit()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	out, err := Resolve(unit)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	return unit, out
}

func resolveErr(t *testing.T, src string) error {
	t.Helper()
	p, err := parser.New(lexer.New("test", src))
	if err != nil {
		t.Fatalf("lexer error: %v", err)
	}
	unit, err := p.ParseUnit()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, err = Resolve(unit)
	if err == nil {
		t.Fatal("expected a resolve error")
	}
	return err
}

func TestResolveStaticAddresses(t *testing.T) {
	unit, out := resolveSrc(t, `
BYTE x=5
INT n=-2
CARD c=$1234
PROC main()
  BYTE local
RETURN
`)

	if out.Base != symbols.DataBase {
		t.Fatalf("data base = $%04X", out.Base)
	}
	x := unit.Decls[0].(*ast.VarDecl).Sym
	n := unit.Decls[1].(*ast.VarDecl).Sym
	c := unit.Decls[2].(*ast.VarDecl).Sym
	if x.Addr != 0x0800 || n.Addr != 0x0801 || c.Addr != 0x0803 {
		t.Fatalf("addresses: x=$%04X n=$%04X c=$%04X", x.Addr, n.Addr, c.Addr)
	}

	// initial image: x=5, n=-2 little endian, c=$1234 little endian
	want := []byte{5, 0xFE, 0xFF, 0x34, 0x12}
	for i, b := range want {
		if out.Data[i] != b {
			t.Fatalf("data[%d] = $%02X, want $%02X", i, out.Data[i], b)
		}
	}

	local := unit.Routines[0].Decls[0].(*ast.VarDecl).Sym
	if local.Kind != symbols.Local || local.Addr != 0x0805 {
		t.Fatalf("local: kind %v addr $%04X", local.Kind, local.Addr)
	}
}

func TestResolveParamsGetAddresses(t *testing.T) {
	unit, _ := resolveSrc(t, `
PROC f(BYTE a, INT b)
RETURN
PROC main()
  f(1,2)
RETURN
`)
	f := unit.Routines[0].Sym
	if len(f.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(f.Params))
	}
	if f.Params[0].Addr != 0x0800 || f.Params[1].Addr != 0x0801 {
		t.Fatalf("param addresses: $%04X $%04X", f.Params[0].Addr, f.Params[1].Addr)
	}
	if f.Params[0].Kind != symbols.Param {
		t.Fatalf("param kind %v", f.Params[0].Kind)
	}
}

func TestResolvePromotion(t *testing.T) {
	unit, _ := resolveSrc(t, `
BYTE b=1
INT i=2
CARD c=3
PROC main()
  INT r
  r=b+i
  r=b*b
  r=i+c
  r=b<i
RETURN
`)
	body := unit.Routines[0].Body
	get := func(i int) types.Fund {
		return body[i].(*ast.AssignStmt).Value.Fund()
	}
	if get(0) != types.Int {
		t.Fatalf("BYTE+INT = %v, want INT", get(0))
	}
	if get(1) != types.Int {
		t.Fatalf("BYTE*BYTE = %v, want INT", get(1))
	}
	if get(2) != types.Card {
		t.Fatalf("INT+CARD = %v, want CARD", get(2))
	}
	if get(3) != types.Byte {
		t.Fatalf("BYTE<INT = %v, want BYTE", get(3))
	}
}

func TestResolveRecordLayout(t *testing.T) {
	unit, _ := resolveSrc(t, `
TYPE point=[INT x,y BYTE tag]
point p
point POINTER pp
PROC main()
  INT v
  p.y=7
  pp=@p
  v=pp^.x
RETURN
`)
	body := unit.Routines[0].Body
	fy := body[0].(*ast.AssignStmt).Target.(*ast.FieldExpr)
	if fy.Offset != 2 || fy.FieldT != types.Int {
		t.Fatalf("p.y offset %d type %v", fy.Offset, fy.FieldT)
	}
	fx := body[2].(*ast.AssignStmt).Value.(*ast.FieldExpr)
	if !fx.Deref || fx.Offset != 0 {
		t.Fatalf("pp^.x deref %v offset %d", fx.Deref, fx.Offset)
	}
}

func TestResolveArrayAccessRewrite(t *testing.T) {
	unit, _ := resolveSrc(t, `
BYTE ARRAY a(4)=[1 2 3 4]
PROC main()
  BYTE v
  v=a(2)
RETURN
`)
	assign := unit.Routines[0].Body[0].(*ast.AssignStmt)
	idx, ok := assign.Value.(*ast.IndexExpr)
	if !ok {
		t.Fatalf("expected IndexExpr after rewrite, got %T", assign.Value)
	}
	if idx.Fund() != types.Byte {
		t.Fatalf("element type %v, want BYTE", idx.Fund())
	}
}

func TestResolveArrayFromInitLength(t *testing.T) {
	unit, _ := resolveSrc(t, `
INT ARRAY w=[10 -20 30]
PROC main()
RETURN
`)
	sym := unit.Decls[0].(*ast.VarDecl).Sym
	arr := sym.Type.(types.Array)
	if arr.Len != 3 || arr.Elem != types.Int {
		t.Fatalf("array type %+v", arr)
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want any
	}{
		{"duplicate global", "BYTE a BYTE a\nPROC main() RETURN", &DeclError{}},
		{"undeclared variable", "PROC main() x=1 RETURN", &DeclError{}},
		{"undeclared routine", "PROC main() f() RETURN", &DeclError{}},
		{"forward constant", "BYTE a=later BYTE later=1\nPROC main() RETURN", &UnresolvedConst{}},
		{"exit outside loop", "PROC main() EXIT RETURN", &TypeError{}},
		{"func missing value", "INT FUNC f() RETURN\nPROC main() RETURN", &TypeError{}},
		{"index non array", "BYTE b\nPROC main() BYTE v v=b(1) RETURN", &TypeError{}},
		{"deref non pointer", "BYTE b\nPROC main() b^=1 RETURN", &TypeError{}},
		{"record deref without field", "TYPE r=[BYTE a]\nr POINTER p\nPROC main() BYTE v v=p^ RETURN", &TypeError{}},
		{"wrong arg count", "PROC f(BYTE a) RETURN\nPROC main() f() RETURN", &TypeError{}},
		{"call on array stmt", "BYTE ARRAY a(3)\nPROC main() a(1) RETURN", &TypeError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := resolveErr(t, tt.src)
			switch tt.want.(type) {
			case *DeclError:
				var de *DeclError
				if !errors.As(err, &de) {
					t.Fatalf("expected DeclError, got %T: %v", err, err)
				}
			case *TypeError:
				var te *TypeError
				if !errors.As(err, &te) {
					t.Fatalf("expected TypeError, got %T: %v", err, err)
				}
			case *UnresolvedConst:
				var ue *UnresolvedConst
				if !errors.As(err, &ue) {
					t.Fatalf("expected UnresolvedConst, got %T: %v", err, err)
				}
			}
		})
	}
}

func TestResolveSelfRecursionAllowed(t *testing.T) {
	resolveSrc(t, `
INT FUNC fact(INT n)
  IF n<2 THEN RETURN (1) FI
RETURN (n*fact(n-1))

PROC main()
  INT r
  r=fact(5)
RETURN
`)
}

func TestResolveCodeBlockData(t *testing.T) {
	unit, out := resolveSrc(t, `
PROC main()
  [$A9 1 $60]
RETURN
`)
	blk := unit.Routines[0].Body[0].(*ast.CodeBlockStmt)
	off := int(blk.Addr) - int(out.Base)
	want := []byte{0xA9, 1, 0x60}
	for i, b := range want {
		if out.Data[off+i] != b {
			t.Fatalf("code block byte %d = $%02X, want $%02X", i, out.Data[off+i], b)
		}
	}
}
