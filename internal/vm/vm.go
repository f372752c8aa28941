package vm

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/wist-lang/wist/internal/ast"
	"github.com/wist-lang/wist/internal/config"
	"github.com/wist-lang/wist/internal/diagnostics"
	"github.com/wist-lang/wist/internal/lir"
	"github.com/wist-lang/wist/internal/symbols"
)

// rsEntry is one return-stack slot: either a pending extra argument or a
// saved call frame.
type rsEntry struct {
	frame bool
	value Value // extra argument
	pc    int
	env   Value
	extra int
}

// Stats reports what the last evaluation used.
type Stats struct {
	Steps           int64
	PeakArgDepth    int
	PeakReturnDepth int
	Heap            HeapStats
}

// VM is one isolated Wist runtime: code area, heap, global table, handle
// stack and the machine registers.
type VM struct {
	id     uuid.UUID
	limits config.Limits
	logger *slog.Logger
	ctx    context.Context

	code     *Code
	compiler *Compiler
	heap     *Heap
	handles  *HandleStack
	globals  *Globals

	// registers
	acc   Value
	pc    int
	env   Value
	extra int

	astack []Value
	rstack []rsEntry

	// opStart is the offset of the instruction being executed.
	opStart int
	op      Opcode

	// saved keeps the global values of an open checkpoint reachable.
	saved []Global

	stats  Stats
	closed bool
}

// New creates a VM bounded by limits. The handle stack starts empty; callers
// push a frame before compiling.
func New(limits config.Limits) *VM {
	if limits.ArgStack <= 0 {
		limits.ArgStack = config.DefaultArgStackSize
	}
	if limits.ReturnStack <= 0 {
		limits.ReturnStack = config.DefaultReturnStackSize
	}
	id := uuid.New()
	code := NewCode()
	globals := NewGlobals()
	return &VM{
		id:       id,
		limits:   limits,
		code:     code,
		compiler: NewCompiler(code, globals),
		heap:     NewHeap(),
		handles:  NewHandleStack(id),
		globals:  globals,
		env:      emptyEnv,
		ctx:      context.Background(),
	}
}

// SetLogger sets the logger used for instruction tracing and compiler
// debug output.
func (vm *VM) SetLogger(l *slog.Logger) {
	vm.logger = l
	vm.compiler.SetLogger(l)
}

// SetContext makes evaluation stop with ErrInterrupted once ctx is done.
func (vm *VM) SetContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	vm.ctx = ctx
}

// ID returns the VM's identity. Every handle it issues carries it.
func (vm *VM) ID() uuid.UUID { return vm.id }

// Code returns the shared code area.
func (vm *VM) Code() *Code { return vm.code }

// Globals returns the global table.
func (vm *VM) Globals() *Globals { return vm.globals }

// Heap returns the object heap.
func (vm *VM) Heap() *Heap { return vm.heap }

// Limits returns the limits the VM was created with.
func (vm *VM) Limits() config.Limits { return vm.limits }

// Stats returns the counters of the most recent evaluation together with
// cumulative heap statistics.
func (vm *VM) Stats() Stats {
	s := vm.stats
	s.Heap = vm.heap.Stats()
	return s
}

// Close releases the heap. Every later call fails with ErrClosed.
func (vm *VM) Close() error {
	if vm.closed {
		return diagnostics.New(diagnostics.FaultUsage, "close", diagnostics.ErrClosed)
	}
	vm.heap.DestroyAll()
	vm.acc, vm.env = Value{}, emptyEnv
	vm.astack, vm.rstack = nil, nil
	vm.saved = nil
	vm.closed = true
	return nil
}

func (vm *VM) checkOpen(op string) error {
	if vm.closed {
		return diagnostics.New(diagnostics.FaultUsage, op, diagnostics.ErrClosed)
	}
	return nil
}

// PushFrame opens a handle frame.
func (vm *VM) PushFrame() error {
	if err := vm.checkOpen("push frame"); err != nil {
		return err
	}
	return vm.handles.PushFrame()
}

// PopFrame closes the innermost handle frame; its handles become stale.
func (vm *VM) PopFrame() error {
	if err := vm.checkOpen("pop frame"); err != nil {
		return err
	}
	return vm.handles.PopFrame()
}

// Value resolves a handle.
func (vm *VM) Value(h Handle) (Value, error) {
	if err := vm.checkOpen("get handle"); err != nil {
		return Value{}, err
	}
	return vm.handles.Get(h)
}

// NewHandle roots v in the innermost handle frame.
func (vm *VM) NewHandle(v Value) (Handle, error) {
	if err := vm.checkOpen("add handle"); err != nil {
		return Handle{}, err
	}
	return vm.handles.Add(v)
}

// NewTuple allocates a tuple of the given fields and roots it in the
// innermost handle frame.
func (vm *VM) NewTuple(fields ...Value) (Handle, error) {
	if err := vm.needFrame("tuple"); err != nil {
		return Handle{}, err
	}
	t, err := vm.AllocTuple(fields...)
	if err != nil {
		return Handle{}, err
	}
	return vm.handles.Add(t)
}

// AllocTuple allocates a tuple without rooting it. The result stays valid
// until the next evaluation, which may collect it.
func (vm *VM) AllocTuple(fields ...Value) (t Value, err error) {
	if err := vm.checkOpen("tuple"); err != nil {
		return Value{}, err
	}
	for _, f := range fields {
		if !f.kind.Public() {
			return Value{}, diagnostics.Newf(diagnostics.FaultInternal, "tuple", diagnostics.ErrInternalKind, "%s field", f.kind)
		}
	}
	defer diagnostics.Recover(&err)
	o := vm.heap.Allocate(len(fields))
	o.SetTag(KindTuple)
	copy(o.Fields, fields)
	return ObjVal(o), nil
}

// GlobalValue returns the current value of a defined global.
func (vm *VM) GlobalValue(sym *symbols.Symbol) (Value, error) {
	if err := vm.checkOpen("global"); err != nil {
		return Value{}, err
	}
	idx, ok := vm.globals.IndexOf(sym)
	if !ok {
		return Value{}, diagnostics.Newf(diagnostics.FaultUsage, "global", diagnostics.ErrUnknownGlobal, "%s", sym)
	}
	g, _ := vm.globals.Entry(idx)
	if !g.Defined {
		return Value{}, diagnostics.Newf(diagnostics.FaultUsage, "global", diagnostics.ErrUndefinedGlobal, "%s", sym)
	}
	return g.Value, nil
}

// Declare reserves a global slot for sym so that code compiled afterwards
// may refer to it.
func (vm *VM) Declare(sym *symbols.Symbol) error {
	if err := vm.checkOpen("declare"); err != nil {
		return err
	}
	_, _, err := vm.globals.Declare(sym)
	return err
}

// Lower converts e to LIR against the current global table.
func (vm *VM) Lower(e ast.Expr) (lir.Expr, error) {
	if err := vm.checkOpen("lower"); err != nil {
		return nil, err
	}
	return lir.Lower(e, vm.globals)
}

// Compile lowers and compiles e, returning a handle to a closure that
// evaluates it when passed to Evaluate.
func (vm *VM) Compile(e ast.Expr) (Handle, error) {
	l, err := vm.Lower(e)
	if err != nil {
		return Handle{}, err
	}
	return vm.CompileLIR(l)
}

// CompileLIR compiles already lowered code into an entry closure.
func (vm *VM) CompileLIR(l lir.Expr) (Handle, error) {
	if err := vm.needFrame("compile"); err != nil {
		return Handle{}, err
	}
	entry, err := vm.CompileEntry(l)
	if err != nil {
		return Handle{}, err
	}
	return vm.entryClosure(entry)
}

// CompileEntry compiles l and returns its code offset without allocating
// a closure for it. See RunEntry.
func (vm *VM) CompileEntry(l lir.Expr) (int, error) {
	if err := vm.checkOpen("compile"); err != nil {
		return -1, err
	}
	return vm.compiler.CompileExpr(l)
}

// Define declares sym and compiles e as its definition. The global is
// assigned when the returned closure is evaluated. If compilation fails a
// freshly declared slot is released again.
func (vm *VM) Define(sym *symbols.Symbol, e ast.Expr) (Handle, error) {
	if err := vm.needFrame("define"); err != nil {
		return Handle{}, err
	}
	entry, err := vm.DefineEntry(sym, func() (lir.Expr, error) { return lir.Lower(e, vm.globals) })
	if err != nil {
		return Handle{}, err
	}
	return vm.entryClosure(entry)
}

// DefineEntry declares sym, obtains its LIR from lower (which may refer to
// sym recursively) and compiles the definition. It returns the code offset.
func (vm *VM) DefineEntry(sym *symbols.Symbol, lower func() (lir.Expr, error)) (int, error) {
	if err := vm.checkOpen("define"); err != nil {
		return -1, err
	}
	_, fresh, err := vm.globals.Declare(sym)
	if err != nil {
		return -1, err
	}
	entry := -1
	l, err := lower()
	if err == nil {
		entry, err = vm.compiler.CompileDefinition(sym, l)
	}
	if err != nil && fresh {
		vm.globals.undeclare(sym)
	}
	return entry, err
}

// Checkpoint records the extent of the code area and the global table so
// that several definitions can be undone together.
type Checkpoint struct {
	code    int
	globals []Global
}

// Checkpoint records the current state. The recorded global values stay
// reachable until Rollback or Commit.
func (vm *VM) Checkpoint() Checkpoint {
	cp := Checkpoint{code: vm.code.Len(), globals: vm.globals.snapshot()}
	vm.saved = cp.globals
	return cp
}

// Rollback discards all code compiled since cp and returns every global to
// its state at cp, dropping globals declared since.
func (vm *VM) Rollback(cp Checkpoint) {
	vm.code.Truncate(cp.code)
	vm.globals.restore(cp.globals)
	vm.saved = nil
}

// Commit keeps everything done since cp.
func (vm *VM) Commit(cp Checkpoint) {
	vm.saved = nil
}

func (vm *VM) needFrame(op string) error {
	if err := vm.checkOpen(op); err != nil {
		return err
	}
	if vm.handles.Depth() == 0 {
		return diagnostics.New(diagnostics.FaultUsage, op, diagnostics.ErrNoHandleFrame)
	}
	return nil
}

func (vm *VM) entryClosure(entry int) (h Handle, err error) {
	defer diagnostics.Recover(&err)
	clo := vm.newClosure(emptyEnv, entry)
	return vm.handles.Add(clo)
}

func (vm *VM) newClosure(env Value, code int) Value {
	o := vm.heap.Allocate(closureSize)
	o.SetTag(KindClosure)
	o.Fields[closureEnv] = env
	o.Fields[closureCode] = IntVal(int64(code))
	return ObjVal(o)
}

// Evaluate runs the closure named by h with no arguments and returns a
// handle to the result in the innermost frame.
func (vm *VM) Evaluate(h Handle) (Handle, error) {
	return vm.Call(h)
}

// Call applies the closure named by fn to args, one argument at a time, as
// if by a saturated application. Fewer arguments than the closure takes
// yields a partial application; more are passed on to its result.
func (vm *VM) Call(fn Handle, args ...Handle) (Handle, error) {
	if err := vm.checkOpen("evaluate"); err != nil {
		return Handle{}, err
	}
	clo, err := vm.handles.Get(fn)
	if err != nil {
		return Handle{}, err
	}
	if clo.kind != KindClosure {
		return Handle{}, diagnostics.Newf(diagnostics.FaultUsage, "evaluate", diagnostics.ErrNotClosure, "got %s", clo.kind)
	}
	vals := make([]Value, len(args))
	for i, a := range args {
		if vals[i], err = vm.handles.Get(a); err != nil {
			return Handle{}, err
		}
	}
	res, err := vm.run(clo, vals)
	if err != nil {
		return Handle{}, err
	}
	return vm.handles.Add(res)
}

// RunEntry evaluates the code at entry as a top-level thunk. The result is
// not rooted; add it to a handle frame or a global before evaluating again.
func (vm *VM) RunEntry(entry int) (v Value, err error) {
	if err := vm.checkOpen("evaluate"); err != nil {
		return Value{}, err
	}
	clo, err := func() (clo Value, err error) {
		defer diagnostics.Recover(&err)
		return vm.newClosure(emptyEnv, entry), nil
	}()
	if err != nil {
		return Value{}, err
	}
	return vm.run(clo, nil)
}

// Collect runs a full collection outside of evaluation.
func (vm *VM) Collect() (int, error) {
	if err := vm.checkOpen("collect"); err != nil {
		return 0, err
	}
	return vm.heap.Collect(vm.roots), nil
}

// roots yields every value the machine can still reach.
func (vm *VM) roots(mark func(Value)) {
	mark(vm.acc)
	mark(vm.env)
	for _, v := range vm.astack {
		mark(v)
	}
	for i := range vm.rstack {
		mark(vm.rstack[i].value)
		mark(vm.rstack[i].env)
	}
	vm.handles.each(mark)
	vm.globals.each(mark)
	for i := range vm.saved {
		mark(vm.saved[i].Value)
	}
}
