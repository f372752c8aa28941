package vm

import (
	"log/slog"

	"github.com/wist-lang/wist/internal/config"
	"github.com/wist-lang/wist/internal/diagnostics"
	"github.com/wist-lang/wist/internal/lir"
	"github.com/wist-lang/wist/internal/symbols"
)

// Compiler translates LIR into bytecode appended to a shared code area.
//
// Locals are addressed by index: the number of binders between a use and its
// definition. The compiler keeps an index stack of binders in scope that
// mirrors the scope stack used while lowering.
type Compiler struct {
	code    *Code
	globals *Globals
	scope   []lir.Binder
	logger  *slog.Logger
}

// NewCompiler creates a compiler emitting into code and resolving globals
// through globals.
func NewCompiler(code *Code, globals *Globals) *Compiler {
	return &Compiler{code: code, globals: globals}
}

// SetLogger enables debug logging of each emitted entry point.
func (c *Compiler) SetLogger(l *slog.Logger) {
	c.logger = l
}

// CompileExpr emits e followed by RETURN and returns the entry offset.
// On failure the code area is left exactly as it was.
func (c *Compiler) CompileExpr(e lir.Expr) (int, error) {
	return c.compile("compile", func() {
		c.gen(e)
		c.emit(OP_RETURN)
	})
}

// CompileDefinition emits code that evaluates e and stores it in the global
// slot of sym, which must already be declared.
func (c *Compiler) CompileDefinition(sym *symbols.Symbol, e lir.Expr) (int, error) {
	return c.compile("define", func() {
		idx, ok := c.globals.IndexOf(sym)
		if !ok {
			panic(diagnostics.Newf(diagnostics.FaultInternal, "define", diagnostics.ErrUnknownGlobal, "%s", sym))
		}
		c.gen(e)
		c.emit(OP_SETGLOBAL)
		c.code.Write16(uint16(idx))
		c.emit(OP_RETURN)
	})
}

func (c *Compiler) compile(op string, body func()) (entry int, err error) {
	entry = c.code.Len()
	c.scope = c.scope[:0]
	defer func() {
		if err != nil {
			c.code.Truncate(entry)
			c.scope = c.scope[:0]
			entry = -1
		}
	}()
	defer diagnostics.Recover(&err)

	body()
	if c.logger != nil {
		c.logger.Debug("compiled", "op", op, "entry", entry, "bytes", c.code.Len()-entry)
	}
	return entry, nil
}

func (c *Compiler) emit(op Opcode) {
	c.code.WriteOp(op)
}

// emitClosure writes CLOSURE with a placeholder length and returns the
// operand offset for patchClosure.
func (c *Compiler) emitClosure() int {
	c.emit(OP_CLOSURE)
	c.code.Write16(0xffff)
	return c.code.Len() - 2
}

func (c *Compiler) patchClosure(offset int) {
	length := c.code.Len() - offset - 2
	if length > config.MaxBodyLength {
		panic(diagnostics.Newf(diagnostics.FaultCapacity, "CLOSURE", diagnostics.ErrOperandRange,
			"body of %d bytes, limit %d", length, config.MaxBodyLength))
	}
	c.code.Patch16(offset, uint16(length))
}

func (c *Compiler) enter(b lir.Binder) { c.scope = append(c.scope, b) }
func (c *Compiler) leave()             { c.scope = c.scope[:len(c.scope)-1] }

// index finds how many binders lie between the use site and origin.
func (c *Compiler) index(origin lir.Binder) int {
	for i := len(c.scope) - 1; i >= 0; i-- {
		if c.scope[i] == origin {
			return len(c.scope) - 1 - i
		}
	}
	panic(diagnostics.New(diagnostics.FaultInternal, "ACCESS", diagnostics.ErrUnboundVariable))
}

// pushArgs evaluates an application spine's arguments right to left, pushing
// each, and returns the function at the head of the spine.
func (c *Compiler) pushArgs(app *lir.App) lir.Expr {
	var args []lir.Expr
	var fn lir.Expr = app
	for {
		a, ok := fn.(*lir.App)
		if !ok {
			break
		}
		args = append(args, a.Arg)
		fn = a.Fun
	}
	// args holds the spine outermost first, which is rightmost first.
	for _, arg := range args {
		c.gen(arg)
		c.emit(OP_PUSH)
	}
	return fn
}

// gen compiles e so that its value ends up in the accumulator.
func (c *Compiler) gen(e lir.Expr) {
	switch e := e.(type) {
	case *lir.Int:
		c.emit(OP_INT64)
		c.code.Write64(e.Value)

	case *lir.Var:
		idx := c.index(e.Origin)
		if idx > config.MaxAccessIndex {
			panic(diagnostics.Newf(diagnostics.FaultCapacity, "ACCESS", diagnostics.ErrOperandRange,
				"index %d, limit %d", idx, config.MaxAccessIndex))
		}
		e.Depth = idx
		c.emit(OP_ACCESS)
		c.code.Write8(uint8(idx))

	case *lir.GVar:
		idx, ok := c.globals.IndexOf(e.Symbol)
		if !ok {
			panic(diagnostics.Newf(diagnostics.FaultInternal, "GETGLOBAL", diagnostics.ErrUnknownGlobal, "%s", e.Symbol))
		}
		c.emit(OP_GETGLOBAL)
		c.code.Write16(uint16(idx))

	case *lir.App:
		c.emit(OP_PUSHMARK)
		fn := c.pushArgs(e)
		c.gen(fn)
		c.emit(OP_APPLY)

	case *lir.Lam:
		at := c.emitClosure()
		c.genTail(e)
		c.patchClosure(at)

	case *lir.Let:
		c.gen(e.Value)
		c.emit(OP_LET)
		c.enter(e)
		c.gen(e.Body)
		c.leave()
		c.emit(OP_ENDLET)

	case *lir.MakeBlock:
		if len(e.Fields) > config.MaxBlockFields {
			panic(diagnostics.Newf(diagnostics.FaultCapacity, "MKB", diagnostics.ErrOperandRange,
				"%d fields, limit %d", len(e.Fields), config.MaxBlockFields))
		}
		for _, f := range e.Fields {
			c.gen(f)
			c.emit(OP_PUSH)
		}
		c.emit(OP_MKB)
		c.code.Write16(uint16(len(e.Fields)))

	default:
		panic(diagnostics.Newf(diagnostics.FaultInternal, "compile", diagnostics.ErrUnknownNode, "%T", e))
	}
}

// genTail compiles e in tail position: control never falls through the
// emitted code, it always leaves through RETURN or APPTERM.
func (c *Compiler) genTail(e lir.Expr) {
	switch e := e.(type) {
	case *lir.App:
		fn := c.pushArgs(e)
		c.gen(fn)
		c.emit(OP_APPTERM)

	case *lir.Lam:
		c.emit(OP_GRAB)
		c.enter(e)
		c.genTail(e.Body)
		c.leave()

	case *lir.Let:
		c.gen(e.Value)
		c.emit(OP_LET)
		c.enter(e)
		c.genTail(e.Body)
		c.leave()
		// Unreachable: the tail body leaves through RETURN or APPTERM.
		c.emit(OP_ENDLET)

	default:
		c.gen(e)
		c.emit(OP_RETURN)
	}
}
