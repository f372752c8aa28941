package lir

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wist-lang/wist/internal/ast"
	"github.com/wist-lang/wist/internal/diagnostics"
	"github.com/wist-lang/wist/internal/symbols"
)

type globalSet map[*symbols.Symbol]bool

func (g globalSet) IsGlobal(sym *symbols.Symbol) bool { return g[sym] }

func mustLower(t *testing.T, e ast.Expr, globals GlobalResolver) Expr {
	t.Helper()
	out, err := Lower(e, globals)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	return out
}

func TestLower_VarPointsAtIntroducingLam(t *testing.T) {
	x, y := ast.NewBinder("x"), ast.NewBinder("y")
	// \x -> \y -> x
	out := mustLower(t, ast.FnN([]*ast.Binder{x, y}, ast.Ref(x)), nil)

	outer, ok := out.(*Lam)
	if !ok {
		t.Fatalf("got %T, want *Lam", out)
	}
	inner := outer.Body.(*Lam)
	v := inner.Body.(*Var)
	if v.Origin != outer {
		t.Error("x must point at the outer lambda")
	}
	if v.Depth != 0 {
		t.Errorf("depth is a codegen concern, got %d", v.Depth)
	}
}

func TestLower_ShadowedBinders(t *testing.T) {
	x1, x2 := ast.NewBinder("x"), ast.NewBinder("x")
	out := mustLower(t, ast.Fn(x1, ast.Fn(x2, ast.TupleOf(ast.Ref(x1), ast.Ref(x2)))), nil)

	outer := out.(*Lam)
	inner := outer.Body.(*Lam)
	block := inner.Body.(*MakeBlock)
	if block.Fields[0].(*Var).Origin != outer {
		t.Error("first x must resolve by identity to the outer binder")
	}
	if block.Fields[1].(*Var).Origin != inner {
		t.Error("second x must resolve to the inner binder")
	}
}

func TestLower_LetScope(t *testing.T) {
	x, y := ast.NewBinder("x"), ast.NewBinder("y")
	// \x -> let y = x in y
	out := mustLower(t, ast.Fn(x, ast.LetIn(y, ast.Ref(x), ast.Ref(y))), nil)

	lam := out.(*Lam)
	let := lam.Body.(*Let)
	if let.Value.(*Var).Origin != lam {
		t.Error("let value must see the enclosing lambda")
	}
	if let.Body.(*Var).Origin != let {
		t.Error("let body must see the let binder")
	}
}

func TestLower_LetValueOutsideOwnScope(t *testing.T) {
	y := ast.NewBinder("y")
	_, err := Lower(ast.LetIn(y, ast.Ref(y), ast.IntLit(0)), nil)
	if !errors.Is(err, diagnostics.ErrUnboundVariable) {
		t.Fatalf("got %v, want unbound variable fault", err)
	}
}

func TestLower_UnboundVariableFaults(t *testing.T) {
	stray := ast.NewBinder("z")
	_, err := Lower(ast.Fn(ast.NewBinder("x"), ast.Ref(stray)), nil)
	if err == nil {
		t.Fatal("expected fault")
	}
	if kind, _ := diagnostics.KindOf(err); kind != diagnostics.FaultInternal {
		t.Errorf("kind = %v, want internal", kind)
	}
	if !errors.Is(err, diagnostics.ErrUnboundVariable) {
		t.Errorf("got %v, want ErrUnboundVariable", err)
	}
}

func TestLower_Globals(t *testing.T) {
	ix := symbols.NewIndex()
	known, unknown := ix.Intern("known"), ix.Intern("unknown")
	globals := globalSet{known: true}

	out := mustLower(t, ast.Global(known), globals)
	if g, ok := out.(*GVar); !ok || g.Symbol != known {
		t.Errorf("got %#v, want GVar known", out)
	}

	_, err := Lower(ast.Apply(ast.Global(known), ast.Global(unknown)), globals)
	if !errors.Is(err, diagnostics.ErrUnknownGlobal) {
		t.Errorf("got %v, want unknown global fault", err)
	}
}

func TestLower_TupleFieldOrder(t *testing.T) {
	out := mustLower(t, ast.TupleOf(ast.IntLit(3), ast.IntLit(4), ast.IntLit(5)), nil)
	want := &MakeBlock{Kind: BlockTuple, Fields: []Expr{&Int{Value: 3}, &Int{Value: 4}, &Int{Value: 5}}}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("tuple mismatch (-want +got):\n%s", diff)
	}
}

func TestLower_UnknownNode(t *testing.T) {
	_, err := Lower(nil, nil)
	if !errors.Is(err, diagnostics.ErrUnknownNode) {
		t.Errorf("got %v, want unknown node fault", err)
	}
}

func TestPrint(t *testing.T) {
	ix := symbols.NewIndex()
	f := ix.Intern("f")
	x := ast.NewBinder("x")
	out := mustLower(t, ast.Fn(x, ast.Apply(ast.Global(f), ast.Ref(x), ast.TupleOf(ast.IntLit(1)))), globalSet{f: true})

	want := `Lambda #0
  Application
    Application
      Global f
      Variable #0 depth 0
    Make Block tuple/1
      Integer 1
`
	if got := String(out); got != want {
		t.Errorf("Print mismatch (-want +got):\n%s", cmp.Diff(want, got))
	}
}
