package ast

import "github.com/wist-lang/wist/internal/symbols"

// Constructors for building trees by hand, mostly in tests and embedders
// without a front end.

// Fn builds \param -> body.
func Fn(param *Binder, body Expr) *Lam {
	return &Lam{Param: param, Body: body}
}

// FnN builds \p1 -> \p2 -> ... -> body.
func FnN(params []*Binder, body Expr) Expr {
	for i := len(params) - 1; i >= 0; i-- {
		body = Fn(params[i], body)
	}
	return body
}

// Ref builds a reference to b.
func Ref(b *Binder) *Var {
	return &Var{Binder: b}
}

// Global builds a reference to sym.
func Global(sym *symbols.Symbol) *GVar {
	return &GVar{Symbol: sym}
}

// Apply builds the left-nested application f a1 a2 ... an.
func Apply(fun Expr, args ...Expr) Expr {
	for _, a := range args {
		fun = &App{Fun: fun, Arg: a}
	}
	return fun
}

// LetIn builds let b = value in body.
func LetIn(b *Binder, value, body Expr) *Let {
	return &Let{Bind: b, Value: value, Body: body}
}

func IntLit(v int64) *Int { return &Int{Value: v} }

func TupleOf(fields ...Expr) *Tuple {
	return &Tuple{Fields: fields}
}
