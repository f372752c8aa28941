// Package lir is the nameless intermediate form between the scope-resolved
// AST and bytecode. Local variables point at the LIR node that introduced
// them; turning that into a frame index is left to code generation.
package lir

import "github.com/wist-lang/wist/internal/symbols"

// Expr is an LIR expression.
type Expr interface {
	lirNode()
}

// Binder is an LIR node that introduces a local variable: *Lam or *Let.
type Binder interface {
	Expr
	binder()
}

// BlockKind tags the aggregate built by MakeBlock.
type BlockKind uint8

const (
	BlockTuple BlockKind = iota
)

func (k BlockKind) String() string {
	switch k {
	case BlockTuple:
		return "tuple"
	}
	return "block"
}

// Lam is a one-argument function.
type Lam struct {
	Body Expr
}

// App applies Fun to Arg.
type App struct {
	Fun, Arg Expr
}

// Var references the local introduced by Origin. Depth is the number of
// binders between the reference and Origin; it is filled during codegen.
type Var struct {
	Origin Binder
	Depth  int
}

// GVar references a global by symbol identity.
type GVar struct {
	Symbol *symbols.Symbol
}

// Let binds Value for the extent of Body.
type Let struct {
	Value, Body Expr
}

// Int is an integer literal.
type Int struct {
	Value int64
}

// MakeBlock constructs an aggregate from Fields, in order.
type MakeBlock struct {
	Kind   BlockKind
	Fields []Expr
}

func (*Lam) lirNode()       {}
func (*App) lirNode()       {}
func (*Var) lirNode()       {}
func (*GVar) lirNode()      {}
func (*Let) lirNode()       {}
func (*Int) lirNode()       {}
func (*MakeBlock) lirNode() {}

func (*Lam) binder() {}
func (*Let) binder() {}
