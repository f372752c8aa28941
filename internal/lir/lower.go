package lir

import (
	"github.com/wist-lang/wist/internal/ast"
	"github.com/wist-lang/wist/internal/diagnostics"
	"github.com/wist-lang/wist/internal/symbols"
)

// GlobalResolver reports whether a symbol names a declared global.
type GlobalResolver interface {
	IsGlobal(sym *symbols.Symbol) bool
}

type scopeEntry struct {
	binder *ast.Binder
	origin Binder
}

// lowerer carries the scope stack, innermost binder last.
type lowerer struct {
	globals GlobalResolver
	scope   []scopeEntry
}

// Lower rewrites a scope-resolved AST expression into LIR. A variable with no
// enclosing binder, or a global missing from the table, is a broken invariant
// of the front end and is reported as an internal fault.
func Lower(expr ast.Expr, globals GlobalResolver) (result Expr, err error) {
	defer diagnostics.Recover(&err)
	l := &lowerer{globals: globals, scope: make([]scopeEntry, 0, 16)}
	return l.lower(expr), nil
}

func (l *lowerer) push(b *ast.Binder, origin Binder) {
	l.scope = append(l.scope, scopeEntry{binder: b, origin: origin})
}

func (l *lowerer) pop() {
	l.scope = l.scope[:len(l.scope)-1]
}

func (l *lowerer) resolve(v *ast.Var) Binder {
	for i := len(l.scope) - 1; i >= 0; i-- {
		if l.scope[i].binder == v.Binder {
			return l.scope[i].origin
		}
	}
	name := "<nil>"
	if v.Binder != nil {
		name = v.Binder.Name
	}
	panic(diagnostics.Newf(diagnostics.FaultInternal, "lower", diagnostics.ErrUnboundVariable,
		"%s at %s", name, v.Pos))
}

func (l *lowerer) lower(expr ast.Expr) Expr {
	switch e := expr.(type) {
	case *ast.App:
		fun := l.lower(e.Fun)
		arg := l.lower(e.Arg)
		return &App{Fun: fun, Arg: arg}

	case *ast.Lam:
		lam := &Lam{}
		l.push(e.Param, lam)
		lam.Body = l.lower(e.Body)
		l.pop()
		return lam

	case *ast.Let:
		// The bound value is outside the binder's scope.
		let := &Let{Value: l.lower(e.Value)}
		l.push(e.Bind, let)
		let.Body = l.lower(e.Body)
		l.pop()
		return let

	case *ast.Var:
		return &Var{Origin: l.resolve(e)}

	case *ast.GVar:
		if e.Symbol == nil || l.globals == nil || !l.globals.IsGlobal(e.Symbol) {
			panic(diagnostics.Newf(diagnostics.FaultInternal, "lower", diagnostics.ErrUnknownGlobal,
				"%s at %s", e.Symbol, e.Pos))
		}
		return &GVar{Symbol: e.Symbol}

	case *ast.Tuple:
		fields := make([]Expr, len(e.Fields))
		for i, f := range e.Fields {
			fields[i] = l.lower(f)
		}
		return &MakeBlock{Kind: BlockTuple, Fields: fields}

	case *ast.Int:
		return &Int{Value: e.Value}
	}

	panic(diagnostics.Newf(diagnostics.FaultInternal, "lower", diagnostics.ErrUnknownNode, "%T", expr))
}
