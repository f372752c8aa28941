package pipeline

import (
	"fmt"

	"github.com/wist-lang/wist/internal/ast"
	"github.com/wist-lang/wist/internal/lir"
)

// DocumentProcessor decodes the YAML AST document in ctx.Source into units,
// definitions first, in order, then main.
type DocumentProcessor struct{}

func (dp *DocumentProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Failed() {
		return ctx
	}
	doc, err := ast.ParseDocument(ctx.Source, ctx.Symbols)
	if err != nil {
		return ctx.fail(fmt.Errorf("%s: %w", ctx.FilePath, err))
	}
	ctx.Document = doc
	ctx.begin()
	for _, d := range doc.Defs {
		ctx.Units = append(ctx.Units, &Unit{Name: d.Name, Pos: d.Pos, AST: d.Body, Entry: -1})
	}
	if doc.Main != nil {
		ctx.Units = append(ctx.Units, &Unit{Pos: doc.Main.GetPos(), AST: doc.Main, Entry: -1})
	}
	return ctx
}

// LowerProcessor lowers every unit to LIR. Definitions are declared as
// they are reached, so a definition may refer to itself and to earlier
// definitions but not to later ones.
type LowerProcessor struct{}

func (lp *LowerProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Failed() {
		return ctx
	}
	for _, u := range ctx.Units {
		if u.Name != nil {
			if err := ctx.Machine.Declare(u.Name); err != nil {
				return ctx.fail(unitError(u, err))
			}
		}
		l, err := ctx.Machine.Lower(u.AST)
		if err != nil {
			return ctx.fail(unitError(u, err))
		}
		u.LIR = l
	}
	return ctx
}

// CompileProcessor compiles lowered units into the machine's code area.
type CompileProcessor struct{}

func (cp *CompileProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Failed() {
		return ctx
	}
	for _, u := range ctx.Units {
		var err error
		if u.Name != nil {
			l := u.LIR
			u.Entry, err = ctx.Machine.DefineEntry(u.Name, func() (lir.Expr, error) { return l, nil })
		} else {
			u.Entry, err = ctx.Machine.CompileEntry(u.LIR)
		}
		if err != nil {
			return ctx.fail(unitError(u, err))
		}
	}
	return ctx
}

// EvalProcessor runs the compiled units in order. Definitions assign their
// globals; the value of main becomes ctx.Result. A document that fails in
// any stage leaves the machine as it was before the document.
type EvalProcessor struct{}

func (ep *EvalProcessor) Process(ctx *PipelineContext) *PipelineContext {
	if ctx.Failed() {
		return ctx
	}
	for _, u := range ctx.Units {
		v, err := ctx.Machine.RunEntry(u.Entry)
		if err != nil {
			return ctx.fail(unitError(u, err))
		}
		if u.Name == nil {
			h, err := ctx.Machine.NewHandle(v)
			if err != nil {
				return ctx.fail(unitError(u, err))
			}
			ctx.Result, ctx.HasResult = h, true
		}
	}
	ctx.commit()
	return ctx
}

func unitError(u *Unit, err error) error {
	return fmt.Errorf("%s (%s): %w", u.Label(), u.Pos, err)
}
