package ast

import (
	"errors"
	"testing"

	"github.com/wist-lang/wist/internal/symbols"
)

func parseDoc(t *testing.T, src string) (*Document, *symbols.Index) {
	t.Helper()
	ix := symbols.NewIndex()
	doc, err := ParseDocument([]byte(src), ix)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	return doc, ix
}

func TestParseDocument_Lambda(t *testing.T) {
	doc, _ := parseDoc(t, "main: {lam: [x, y], body: x}\n")

	outer, ok := doc.Main.(*Lam)
	if !ok {
		t.Fatalf("main is %T, want *Lam", doc.Main)
	}
	inner, ok := outer.Body.(*Lam)
	if !ok {
		t.Fatalf("body is %T, want *Lam", outer.Body)
	}
	v, ok := inner.Body.(*Var)
	if !ok {
		t.Fatalf("inner body is %T, want *Var", inner.Body)
	}
	if v.Binder != outer.Param {
		t.Error("x must resolve to the outer binder")
	}
	if v.GetPos().Line != 1 {
		t.Errorf("pos = %v", v.GetPos())
	}
}

func TestParseDocument_Shadowing(t *testing.T) {
	doc, _ := parseDoc(t, "main: {lam: x, body: {lam: x, body: x}}\n")
	outer := doc.Main.(*Lam)
	inner := outer.Body.(*Lam)
	if inner.Body.(*Var).Binder != inner.Param {
		t.Error("innermost binder must win")
	}
}

func TestParseDocument_ApplicationAndGlobals(t *testing.T) {
	doc, ix := parseDoc(t, `
defs:
  - name: id
    body: {lam: x, body: x}
main: [id, 3, {tuple: [1, 2]}]
`)
	if len(doc.Defs) != 1 || doc.Defs[0].Name != ix.Intern("id") {
		t.Fatalf("defs = %+v", doc.Defs)
	}
	outer, ok := doc.Main.(*App)
	if !ok {
		t.Fatalf("main is %T, want *App", doc.Main)
	}
	if _, ok := outer.Arg.(*Tuple); !ok {
		t.Errorf("last arg is %T, want *Tuple", outer.Arg)
	}
	inner := outer.Fun.(*App)
	g, ok := inner.Fun.(*GVar)
	if !ok || g.Symbol != ix.Intern("id") {
		t.Errorf("function is %#v, want global id", inner.Fun)
	}
	if lit, ok := inner.Arg.(*Int); !ok || lit.Value != 3 {
		t.Errorf("first arg is %#v, want 3", inner.Arg)
	}
}

func TestParseDocument_Let(t *testing.T) {
	doc, _ := parseDoc(t, "main: {let: y, value: 7, body: [f, y]}\n")
	let, ok := doc.Main.(*Let)
	if !ok {
		t.Fatalf("main is %T, want *Let", doc.Main)
	}
	app := let.Body.(*App)
	if app.Arg.(*Var).Binder != let.Bind {
		t.Error("y must resolve to the let binder")
	}
	if _, ok := let.Value.(*Int); !ok {
		t.Errorf("value is %T", let.Value)
	}
}

func TestParseDocument_LetIsNotRecursive(t *testing.T) {
	doc, _ := parseDoc(t, "main: {let: y, value: y, body: y}\n")
	let := doc.Main.(*Let)
	if _, ok := let.Value.(*GVar); !ok {
		t.Errorf("y in its own value must be global, got %T", let.Value)
	}
}

func TestParseDocument_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"not mapping", "- 1\n"},
		{"nothing", "other: 1\n"},
		{"short application", "main: [f]\n"},
		{"lambda without body", "main: {lam: x}\n"},
		{"numeric param", "main: {lam: 3, body: 3}\n"},
		{"unknown form", "main: {foo: 1}\n"},
		{"def without name", "defs: [{body: 1}]\n"},
		{"let without value", "main: {let: x, body: x}\n"},
		{"tuple not list", "main: {tuple: 3}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocument([]byte(tt.src), symbols.NewIndex())
			if err == nil {
				t.Fatal("expected error")
			}
			var de *DocumentError
			if tt.name != "empty" && !errors.As(err, &de) {
				t.Errorf("error %v should be a *DocumentError", err)
			}
		})
	}
}

func TestBuilders(t *testing.T) {
	x, y := NewBinder("x"), NewBinder("y")
	e := FnN([]*Binder{x, y}, Ref(x))
	lam := e.(*Lam)
	if lam.Param != x || lam.Body.(*Lam).Param != y {
		t.Error("FnN must nest parameters left to right")
	}

	app := Apply(IntLit(1), IntLit(2), IntLit(3)).(*App)
	if app.Arg.(*Int).Value != 3 {
		t.Error("Apply must nest to the left")
	}
	if Apply(IntLit(9)).(*Int).Value != 9 {
		t.Error("Apply with no args is the function itself")
	}
}
