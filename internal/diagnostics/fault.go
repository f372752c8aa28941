// Package diagnostics defines the single error type through which every
// failure of the Wist core is reported: compiler invariant violations,
// exhausted capacities, unsupported instructions and embedder misuse.
package diagnostics

import (
	"errors"
	"fmt"
)

// Kind classifies a Fault.
type Kind int

const (
	// FaultInternal is a broken invariant inside the core itself
	// (unresolved variable, malformed LIR, bad bytecode).
	FaultInternal Kind = iota
	// FaultCapacity is an exhausted bounded resource.
	FaultCapacity
	// FaultUnsupported is an opcode or shape the core does not implement.
	FaultUnsupported
	// FaultUsage is an embedder calling the API out of order.
	FaultUsage
)

var kindNames = map[Kind]string{
	FaultInternal:    "internal fault",
	FaultCapacity:    "capacity exceeded",
	FaultUnsupported: "unsupported operation",
	FaultUsage:       "usage error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("fault(%d)", int(k))
}

// Sentinel causes. Match them with errors.Is.
var (
	ErrUnboundVariable  = errors.New("variable has no enclosing binder")
	ErrUnknownGlobal    = errors.New("global is not declared")
	ErrUnknownNode      = errors.New("no rule for node")
	ErrUndefinedGlobal  = errors.New("global read before assignment")
	ErrNotClosure       = errors.New("applied value is not a closure")
	ErrBadEnvironment   = errors.New("environment chain too short")
	ErrBadOpcode        = errors.New("unknown opcode")
	ErrTruncated        = errors.New("truncated bytecode")
	ErrStackUnderflow   = errors.New("stack underflow")
	ErrArgStackFull     = errors.New("argument stack overflow")
	ErrReturnStackFull  = errors.New("return stack overflow")
	ErrHandleFrameFull  = errors.New("handle frame full")
	ErrHandleStackFull  = errors.New("handle stack full")
	ErrNoHandleFrame    = errors.New("no handle frame")
	ErrStaleHandle      = errors.New("handle used after its frame was popped")
	ErrForeignHandle    = errors.New("handle belongs to another VM")
	ErrInternalKind     = errors.New("internal value escaped to embedder")
	ErrOperandRange     = errors.New("operand out of encodable range")
	ErrObjectTooLarge   = errors.New("object exceeds slot limit")
	ErrStepLimit        = errors.New("step limit reached")
	ErrInterrupted      = errors.New("evaluation interrupted")
	ErrClosed           = errors.New("vm is closed")
	ErrNotTuple         = errors.New("value is not a tuple")
	ErrNotInteger       = errors.New("value is not an integer")
	ErrFieldOutOfBounds = errors.New("tuple field out of bounds")
)

// Fault is the error type returned by every layer of the core.
type Fault struct {
	Kind Kind
	// Op names the stage or instruction that failed, e.g. "lower", "ACCESS".
	Op string
	// PC is the code offset of the failing instruction, or -1.
	PC  int
	Err error
}

func (f *Fault) Error() string {
	if f.PC >= 0 {
		return fmt.Sprintf("%s: %s at %04d: %v", f.Kind, f.Op, f.PC, f.Err)
	}
	return fmt.Sprintf("%s: %s: %v", f.Kind, f.Op, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// New builds a Fault with no code location.
func New(kind Kind, op string, err error) *Fault {
	return &Fault{Kind: kind, Op: op, PC: -1, Err: err}
}

// Newf builds a Fault whose cause wraps err with extra detail.
func Newf(kind Kind, op string, err error, format string, args ...interface{}) *Fault {
	return &Fault{Kind: kind, Op: op, PC: -1, Err: fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))}
}

// At returns a copy of f located at pc.
func (f *Fault) At(pc int) *Fault {
	c := *f
	c.PC = pc
	return &c
}

// KindOf reports the kind of the Fault in err's chain.
func KindOf(err error) (Kind, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return 0, false
}

// Recover converts a panic carrying a *Fault into a returned error.
// Any other panic is re-raised. Use as: defer diagnostics.Recover(&err).
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if f, ok := r.(*Fault); ok {
		*err = f
		return
	}
	panic(r)
}
