// Package wist is the embedding API of the Wist runtime. A host builds
// scope-resolved expressions (or loads a YAML AST document), compiles them
// into a VM and inspects results through handles.
package wist

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/wist-lang/wist/internal/config"
	"github.com/wist-lang/wist/internal/diagnostics"
	"github.com/wist-lang/wist/internal/pipeline"
	"github.com/wist-lang/wist/internal/symbols"
	"github.com/wist-lang/wist/internal/vm"
)

// Limits bounds the resources of one VM.
type Limits = config.Limits

// Stats reports resource usage; see VM.Stats.
type Stats = vm.Stats

// Fault is the error type of every failed call.
type Fault = diagnostics.Fault

// Handle references a value owned by one VM. It is valid until the handle
// frame it was created in is popped.
type Handle struct {
	h vm.Handle
}

// Kind is the type of value a handle refers to.
type Kind int

const (
	KindInteger Kind = iota
	KindClosure
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindClosure:
		return "closure"
	case KindTuple:
		return "tuple"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// VM wraps the underlying machine and provides the embedding API.
type VM struct {
	machine    *vm.VM
	symbols    *symbols.Index
	marshaller *Marshaller
}

// New creates a VM with one handle frame already pushed.
func New(opts ...Option) (*VM, error) {
	o := options{limits: config.Default().VM}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	machine := vm.New(o.limits)
	if o.logger != nil {
		machine.SetLogger(o.logger)
	}
	if o.ctx != nil {
		machine.SetContext(o.ctx)
	}
	if err := machine.PushFrame(); err != nil {
		return nil, err
	}
	v := &VM{
		machine: machine,
		symbols: symbols.NewIndex(),
	}
	v.marshaller = NewMarshaller(v)
	if o.logger != nil {
		o.logger.Debug("vm created", "id", machine.ID(), "arg_stack", o.limits.ArgStack,
			"return_stack", o.limits.ReturnStack, "gc_threshold", o.limits.GC())
	}
	return v, nil
}

// Close releases every object the VM allocated. Handles become unusable.
func (v *VM) Close() error {
	return v.machine.Close()
}

// ID identifies the VM. Handles from another VM are rejected.
func (v *VM) ID() uuid.UUID { return v.machine.ID() }

// Symbol interns name in the VM's symbol index.
func (v *VM) Symbol(name string) *symbols.Symbol {
	return v.symbols.Intern(name)
}

// Declare makes name a known global so expressions may refer to it before
// it is defined.
func (v *VM) Declare(name string) error {
	return v.machine.Declare(v.Symbol(name))
}

// Compile compiles e into a closure that computes it. Nothing is evaluated.
func (v *VM) Compile(e Expr) (Handle, error) {
	h, err := v.machine.Compile(e)
	return Handle{h}, err
}

// Define compiles the definition of global name; evaluating the returned
// closure assigns it.
func (v *VM) Define(name string, e Expr) (Handle, error) {
	h, err := v.machine.Define(v.Symbol(name), e)
	return Handle{h}, err
}

// Evaluate runs a compiled closure and returns its result.
func (v *VM) Evaluate(h Handle) (Handle, error) {
	r, err := v.machine.Evaluate(h.h)
	return Handle{r}, err
}

// Call applies a closure to arguments.
func (v *VM) Call(fn Handle, args ...Handle) (Handle, error) {
	raw := make([]vm.Handle, len(args))
	for i, a := range args {
		raw[i] = a.h
	}
	r, err := v.machine.Call(fn.h, raw...)
	return Handle{r}, err
}

// Global returns a handle to the value of a defined global.
func (v *VM) Global(name string) (Handle, error) {
	val, err := v.machine.GlobalValue(v.Symbol(name))
	if err != nil {
		return Handle{}, err
	}
	h, err := v.machine.NewHandle(val)
	return Handle{h}, err
}

// PushFrame opens a handle frame. Handles created until the matching
// PopFrame belong to it.
func (v *VM) PushFrame() error { return v.machine.PushFrame() }

// PopFrame closes the innermost frame; its handles become stale.
func (v *VM) PopFrame() error { return v.machine.PopFrame() }

// NewInt creates an integer handle.
func (v *VM) NewInt(n int64) (Handle, error) {
	h, err := v.machine.NewHandle(vm.IntVal(n))
	return Handle{h}, err
}

// NewTuple creates a tuple from existing handles.
func (v *VM) NewTuple(fields ...Handle) (Handle, error) {
	vals := make([]vm.Value, len(fields))
	for i, f := range fields {
		val, err := v.machine.Value(f.h)
		if err != nil {
			return Handle{}, err
		}
		vals[i] = val
	}
	h, err := v.machine.NewTuple(vals...)
	return Handle{h}, err
}

// Kind reports what h refers to.
func (v *VM) Kind(h Handle) (Kind, error) {
	val, err := v.machine.Value(h.h)
	if err != nil {
		return 0, err
	}
	switch val.Kind() {
	case vm.KindInt:
		return KindInteger, nil
	case vm.KindClosure:
		return KindClosure, nil
	case vm.KindTuple:
		return KindTuple, nil
	}
	return 0, diagnostics.Newf(diagnostics.FaultInternal, "kind", diagnostics.ErrInternalKind, "%s", val.Kind())
}

// Int returns the integer h refers to.
func (v *VM) Int(h Handle) (int64, error) {
	val, err := v.machine.Value(h.h)
	if err != nil {
		return 0, err
	}
	if val.Kind() != vm.KindInt {
		return 0, diagnostics.Newf(diagnostics.FaultUsage, "int", diagnostics.ErrNotInteger, "got %s", val.Kind())
	}
	return val.AsInt(), nil
}

// Len returns the number of fields of a tuple.
func (v *VM) Len(h Handle) (int, error) {
	val, err := v.tuple(h, "len")
	if err != nil {
		return 0, err
	}
	return val.Obj().Len(), nil
}

// Field returns a new handle to field i of a tuple.
func (v *VM) Field(h Handle, i int) (Handle, error) {
	val, err := v.tuple(h, "field")
	if err != nil {
		return Handle{}, err
	}
	if i < 0 || i >= val.Obj().Len() {
		return Handle{}, diagnostics.Newf(diagnostics.FaultUsage, "field", diagnostics.ErrFieldOutOfBounds,
			"index %d of %d", i, val.Obj().Len())
	}
	r, err := v.machine.NewHandle(val.Obj().Fields[i])
	return Handle{r}, err
}

func (v *VM) tuple(h Handle, op string) (vm.Value, error) {
	val, err := v.machine.Value(h.h)
	if err != nil {
		return vm.Value{}, err
	}
	if val.Kind() != vm.KindTuple {
		return vm.Value{}, diagnostics.Newf(diagnostics.FaultUsage, op, diagnostics.ErrNotTuple, "got %s", val.Kind())
	}
	return val, nil
}

// Inspect renders the value h refers to.
func (v *VM) Inspect(h Handle) (string, error) {
	val, err := v.machine.Value(h.h)
	if err != nil {
		return "", err
	}
	return val.Inspect(), nil
}

// Stats returns the counters of the last evaluation and the heap totals.
func (v *VM) Stats() Stats { return v.machine.Stats() }

// Collect forces a garbage collection and returns the number of objects
// freed.
func (v *VM) Collect() (int, error) { return v.machine.Collect() }

// Load decodes a YAML AST document, defines its globals in order and
// evaluates its main expression, if any.
func (v *VM) Load(path string, source []byte) (Handle, bool, error) {
	ctx := pipeline.NewPipelineContext(path, source, v.machine)
	ctx.Symbols = v.symbols

	p := pipeline.New(
		&pipeline.DocumentProcessor{},
		&pipeline.LowerProcessor{},
		&pipeline.CompileProcessor{},
		&pipeline.EvalProcessor{},
	)
	ctx = p.Run(ctx)
	if ctx.Failed() {
		return Handle{}, false, ctx.Errors[0]
	}
	return Handle{ctx.Result}, ctx.HasResult, nil
}

// LoadFile reads and loads a document from disk.
func (v *VM) LoadFile(path string) (Handle, bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Handle{}, false, err
	}
	return v.Load(path, content)
}
