package pipeline

import (
	"github.com/wist-lang/wist/internal/ast"
	"github.com/wist-lang/wist/internal/lir"
	"github.com/wist-lang/wist/internal/symbols"
	"github.com/wist-lang/wist/internal/vm"
)

// Unit is one toplevel entry of a program: a global definition, or the
// main expression when Name is nil.
type Unit struct {
	Name  *symbols.Symbol
	Pos   ast.Pos
	AST   ast.Expr
	LIR   lir.Expr
	Entry int
}

// Label names the unit for listings.
func (u *Unit) Label() string {
	if u.Name == nil {
		return "main"
	}
	return u.Name.Name()
}

// PipelineContext carries a program through the stages.
type PipelineContext struct {
	FilePath string
	Source   []byte
	Symbols  *symbols.Index
	Document *ast.Document
	Machine  *vm.VM
	Units    []*Unit

	// Result is the value of the main unit once evaluated. It is rooted in
	// the machine's innermost handle frame.
	Result    vm.Handle
	HasResult bool

	Errors []error

	// checkpoint is taken once the document decodes; a failure in any
	// later stage rolls the machine back to it.
	checkpoint   vm.Checkpoint
	checkpointed bool
}

// NewPipelineContext prepares a context for source read from path, to be
// compiled into machine.
func NewPipelineContext(path string, source []byte, machine *vm.VM) *PipelineContext {
	return &PipelineContext{
		FilePath: path,
		Source:   source,
		Symbols:  symbols.NewIndex(),
		Machine:  machine,
	}
}

func (ctx *PipelineContext) fail(err error) *PipelineContext {
	ctx.Errors = append(ctx.Errors, err)
	if ctx.checkpointed {
		ctx.Machine.Rollback(ctx.checkpoint)
		ctx.checkpointed = false
	}
	return ctx
}

func (ctx *PipelineContext) begin() {
	ctx.checkpoint = ctx.Machine.Checkpoint()
	ctx.checkpointed = true
}

func (ctx *PipelineContext) commit() {
	if ctx.checkpointed {
		ctx.Machine.Commit(ctx.checkpoint)
		ctx.checkpointed = false
	}
}

// Failed reports whether any stage recorded an error.
func (ctx *PipelineContext) Failed() bool { return len(ctx.Errors) > 0 }
