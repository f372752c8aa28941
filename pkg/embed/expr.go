package wist

import "github.com/wist-lang/wist/internal/ast"

// Expression building. Variables are resolved by binder identity, never by
// name: a Var must be built from the Binder of an enclosing Lam or Let.

type (
	Expr   = ast.Expr
	Binder = ast.Binder
)

// NewBinder creates a fresh binder; name is only used in listings.
func NewBinder(name string) *Binder { return ast.NewBinder(name) }

func Lam(param *Binder, body Expr) Expr     { return ast.Fn(param, body) }
func LamN(params []*Binder, body Expr) Expr { return ast.FnN(params, body) }
func App(fun Expr, args ...Expr) Expr       { return ast.Apply(fun, args...) }
func Var(b *Binder) Expr                    { return ast.Ref(b) }
func Let(b *Binder, value, body Expr) Expr  { return ast.LetIn(b, value, body) }
func Int(v int64) Expr                      { return ast.IntLit(v) }
func Tuple(fields ...Expr) Expr             { return ast.TupleOf(fields...) }

// Global references a toplevel definition of v.
func (v *VM) GlobalRef(name string) Expr { return ast.Global(v.Symbol(name)) }
