package vm

import (
	"fmt"
	"strings"
)

// Kind is the runtime tag of a Value. It doubles as the tag stored in a heap
// object's header.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindInt
	KindClosure
	KindTuple
	KindEnv
	KindMark
)

var kindNames = [...]string{
	KindUndefined: "undefined",
	KindInt:       "int",
	KindClosure:   "closure",
	KindTuple:     "tuple",
	KindEnv:       "env",
	KindMark:      "mark",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Public reports whether values of this kind may be handed to an embedder.
// Environment cells, marks and unset slots stay inside the machine.
func (k Kind) Public() bool {
	return k == KindInt || k == KindClosure || k == KindTuple
}

// Value is a machine word: an immediate integer, a mark, or a heap reference.
// The zero Value is undefined.
type Value struct {
	kind Kind
	i    int64
	obj  *Object
}

// IntVal creates an integer value
func IntVal(v int64) Value {
	return Value{kind: KindInt, i: v}
}

// MarkVal creates the call-boundary marker pushed by PUSHMARK
func MarkVal() Value {
	return Value{kind: KindMark}
}

// ObjVal references a heap object; the value takes the object's tag.
func ObjVal(o *Object) Value {
	return Value{kind: o.Tag(), obj: o}
}

// emptyEnv is the environment of top-level code.
var emptyEnv = Value{kind: KindEnv}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsMark() bool { return v.kind == KindMark }
func (v Value) AsInt() int64 { return v.i }
func (v Value) Obj() *Object { return v.obj }

// Inspect renders a value for the CLI and for test failures.
func (v Value) Inspect() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindClosure:
		if v.obj != nil && len(v.obj.Fields) == closureSize {
			return fmt.Sprintf("<closure @%04d>", v.obj.Fields[closureCode].i)
		}
		return "<closure>"
	case KindTuple:
		if v.obj == nil {
			return "()"
		}
		parts := make([]string, len(v.obj.Fields))
		for i, f := range v.obj.Fields {
			parts[i] = f.Inspect()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindEnv:
		if v.obj == nil {
			return "<env []>"
		}
		return "<env>"
	case KindMark:
		return "<mark>"
	}
	return "<undefined>"
}

// Closure layout: [environment, code offset].
const (
	closureEnv  = 0
	closureCode = 1
	closureSize = 2
)

// Environment cell layout: [value, next].
const (
	envValue = 0
	envNext  = 1
	envSize  = 2
)
