// Package ast defines the scope-resolved expression tree handed to the Wist
// back end. Every local variable occurrence already points at its binding
// occurrence, and every free name is a global symbol. Types inferred by the
// front end may be attached but are not consumed by the core.
package ast

import (
	"fmt"

	"github.com/wist-lang/wist/internal/symbols"
)

// Pos is a source position, 1-based. The zero Pos means "unknown".
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string {
	if p.Line == 0 {
		return "?"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Type is whatever the type checker attaches to a node.
type Type interface{}

// Expr is a scope-resolved expression.
type Expr interface {
	expressionNode()
	GetPos() Pos
}

// Binder is a binding occurrence. Variables refer to it by identity, so two
// binders with the same Name are still distinct.
type Binder struct {
	Name string
	Type Type
}

func NewBinder(name string) *Binder { return &Binder{Name: name} }

// Lam is a one-argument function.
type Lam struct {
	Pos   Pos
	Param *Binder
	Body  Expr
	Type  Type
}

// App applies Fun to a single Arg.
type App struct {
	Pos  Pos
	Fun  Expr
	Arg  Expr
	Type Type
}

// Var is a reference to a local binder.
type Var struct {
	Pos    Pos
	Binder *Binder
	Type   Type
}

// GVar is a reference to a global by symbol.
type GVar struct {
	Pos    Pos
	Symbol *symbols.Symbol
	Type   Type
}

// Let binds Value to Bind within Body. It is not recursive.
type Let struct {
	Pos   Pos
	Bind  *Binder
	Value Expr
	Body  Expr
	Type  Type
}

// Int is an integer literal.
type Int struct {
	Pos   Pos
	Value int64
	Type  Type
}

// Tuple builds a fixed-arity aggregate.
type Tuple struct {
	Pos    Pos
	Fields []Expr
	Type   Type
}

func (e *Lam) expressionNode()   {}
func (e *Lam) GetPos() Pos       { return e.Pos }
func (e *App) expressionNode()   {}
func (e *App) GetPos() Pos       { return e.Pos }
func (e *Var) expressionNode()   {}
func (e *Var) GetPos() Pos       { return e.Pos }
func (e *GVar) expressionNode()  {}
func (e *GVar) GetPos() Pos      { return e.Pos }
func (e *Let) expressionNode()   {}
func (e *Let) GetPos() Pos       { return e.Pos }
func (e *Int) expressionNode()   {}
func (e *Int) GetPos() Pos       { return e.Pos }
func (e *Tuple) expressionNode() {}
func (e *Tuple) GetPos() Pos     { return e.Pos }

// Decl binds a global name to an expression.
type Decl struct {
	Pos  Pos
	Name *symbols.Symbol
	Body Expr
}
