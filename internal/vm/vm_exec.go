package vm

import (
	"context"
	"log/slog"

	"github.com/wist-lang/wist/internal/diagnostics"
)

// the context is polled once every interruptMask+1 instructions
const interruptMask = 1<<10 - 1

// run applies clo to args and executes until the outermost frame returns.
func (vm *VM) run(clo Value, args []Value) (result Value, err error) {
	vm.reset()
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(*diagnostics.Fault)
			if !ok {
				panic(r)
			}
			if f.PC < 0 {
				f = f.At(vm.opStart)
			}
			err = f
		}
		vm.stats.Heap = vm.heap.Stats()
		vm.clearRegisters()
	}()

	vm.pushArg(MarkVal())
	for i := len(args) - 1; i >= 0; i-- {
		vm.pushArg(args[i])
	}
	vm.jump(clo)

	trace := vm.limits.Trace && vm.logger != nil && vm.logger.Enabled(context.Background(), slog.LevelDebug)
	threshold := vm.limits.GC()
	for {
		if vm.limits.MaxSteps > 0 && vm.stats.Steps >= vm.limits.MaxSteps {
			panic(diagnostics.Newf(diagnostics.FaultCapacity, "step", diagnostics.ErrStepLimit,
				"%d instructions", vm.stats.Steps))
		}
		if vm.stats.Steps&interruptMask == 0 {
			if cerr := vm.ctx.Err(); cerr != nil {
				panic(diagnostics.Newf(diagnostics.FaultCapacity, "step", diagnostics.ErrInterrupted, "%v", cerr))
			}
		}
		if threshold > 0 && vm.heap.Live() >= threshold {
			vm.heap.Collect(vm.roots)
		}
		if trace {
			vm.trace()
		}
		vm.stats.Steps++
		if done := vm.step(); done {
			return vm.acc, nil
		}
	}
}

func (vm *VM) reset() {
	vm.stats = Stats{}
	vm.clearRegisters()
}

// clearRegisters drops every reference held by the machine so that a
// finished evaluation does not keep garbage alive.
func (vm *VM) clearRegisters() {
	vm.acc = Value{}
	vm.env = emptyEnv
	vm.pc, vm.extra = 0, 0
	vm.astack = vm.astack[:0]
	vm.rstack = vm.rstack[:0]
}

func (vm *VM) trace() {
	op := Opcode(0xff)
	if vm.pc >= 0 && vm.pc < vm.code.Len() {
		op = Opcode(vm.code.bytes[vm.pc])
	}
	vm.logger.Debug("exec",
		"pc", vm.pc,
		"op", op.String(),
		"acc", vm.acc.Inspect(),
		"sp", len(vm.astack),
		"rsp", len(vm.rstack),
		"extra", vm.extra)
}

// step executes one instruction and reports whether evaluation finished.
func (vm *VM) step() bool {
	vm.opStart = vm.pc
	vm.op = Opcode(vm.readByte())

	switch vm.op {
	case OP_INT64:
		vm.acc = IntVal(vm.readInt64())

	case OP_PUSH:
		vm.pushArg(vm.acc)

	case OP_PUSHMARK:
		vm.pushArg(MarkVal())

	case OP_ACCESS:
		vm.acc = vm.access(int(vm.readByte()))

	case OP_CLOSURE:
		length := int(vm.readUint16())
		body := vm.pc
		if body+length > vm.code.Len() {
			vm.fail(diagnostics.FaultInternal, diagnostics.ErrTruncated)
		}
		vm.pc += length
		vm.acc = vm.newClosure(vm.captureEnv(), body)

	case OP_APPLY:
		callee := vm.acc
		vm.pushReturn(rsEntry{frame: true, pc: vm.pc, env: vm.env, extra: vm.extra})
		vm.extra = 0
		vm.jump(callee)

	case OP_APPTERM:
		callee := vm.acc
		vm.dropExtras()
		vm.jump(callee)

	case OP_GRAB:
		if vm.peekArg().IsMark() {
			vm.acc = vm.newClosure(vm.captureEnv(), vm.opStart)
			return vm.leave()
		}
		vm.pushReturn(rsEntry{value: vm.popArg()})
		vm.extra++

	case OP_RETURN:
		if vm.peekArg().IsMark() {
			return vm.leave()
		}
		// A waiting argument: the result must be a function consuming it.
		callee := vm.acc
		vm.dropExtras()
		vm.jump(callee)

	case OP_MKB:
		n := int(vm.readUint16())
		o := vm.heap.Allocate(n)
		o.SetTag(KindTuple)
		for i := n - 1; i >= 0; i-- {
			o.Fields[i] = vm.popArg()
		}
		vm.acc = ObjVal(o)

	case OP_LET:
		vm.pushReturn(rsEntry{value: vm.acc})
		vm.extra++

	case OP_ENDLET:
		if vm.extra == 0 {
			vm.fail(diagnostics.FaultInternal, diagnostics.ErrStackUnderflow)
		}
		vm.rstack = vm.rstack[:len(vm.rstack)-1]
		vm.extra--

	case OP_SETGLOBAL:
		idx := int(vm.readUint16())
		if !vm.globals.set(idx, vm.acc) {
			vm.fail(diagnostics.FaultInternal, diagnostics.ErrUnknownGlobal)
		}

	case OP_GETGLOBAL:
		idx := int(vm.readUint16())
		g, ok := vm.globals.Entry(idx)
		if !ok {
			vm.fail(diagnostics.FaultInternal, diagnostics.ErrUnknownGlobal)
		}
		if !g.Defined {
			panic(diagnostics.Newf(diagnostics.FaultInternal, vm.op.String(), diagnostics.ErrUndefinedGlobal,
				"%s", g.Symbol).At(vm.opStart))
		}
		vm.acc = g.Value

	default:
		vm.fail(diagnostics.FaultUnsupported, diagnostics.ErrBadOpcode)
	}
	return false
}

// fail aborts the current instruction.
func (vm *VM) fail(kind diagnostics.Kind, err error) {
	panic(diagnostics.New(kind, vm.op.String(), err).At(vm.opStart))
}

// leave pops the mark delimiting the current call, discards its extra
// arguments and resumes the caller. It reports true when the outermost
// call has returned.
func (vm *VM) leave() bool {
	vm.popArg()
	vm.dropExtras()
	if len(vm.rstack) == 0 {
		return true
	}
	top := vm.rstack[len(vm.rstack)-1]
	if !top.frame {
		vm.fail(diagnostics.FaultInternal, diagnostics.ErrStackUnderflow)
	}
	vm.rstack = vm.rstack[:len(vm.rstack)-1]
	vm.pc, vm.env, vm.extra = top.pc, top.env, top.extra
	return false
}

func (vm *VM) dropExtras() {
	vm.rstack = vm.rstack[:len(vm.rstack)-vm.extra]
	vm.extra = 0
}

// jump enters a closure's code with its captured environment.
func (vm *VM) jump(callee Value) {
	if callee.kind != KindClosure || callee.obj == nil || len(callee.obj.Fields) != closureSize {
		panic(diagnostics.Newf(diagnostics.FaultInternal, vm.op.String(), diagnostics.ErrNotClosure,
			"got %s", callee.kind).At(vm.opStart))
	}
	vm.env = callee.obj.Fields[closureEnv]
	vm.pc = int(callee.obj.Fields[closureCode].i)
}

// captureEnv conses the pending extra arguments onto the environment,
// innermost first, producing the environment a closure built here sees.
func (vm *VM) captureEnv() Value {
	env := vm.env
	base := len(vm.rstack) - vm.extra
	for j := base; j < len(vm.rstack); j++ {
		cell := vm.heap.Allocate(envSize)
		cell.SetTag(KindEnv)
		cell.Fields[envValue] = vm.rstack[j].value
		cell.Fields[envNext] = env
		env = ObjVal(cell)
	}
	return env
}

// access loads local i: the first extra slots live on the return stack,
// the rest in the environment chain.
func (vm *VM) access(i int) Value {
	if i < vm.extra {
		return vm.rstack[len(vm.rstack)-1-i].value
	}
	env := vm.env
	for k := i - vm.extra; k > 0; k-- {
		if env.obj == nil {
			vm.fail(diagnostics.FaultInternal, diagnostics.ErrBadEnvironment)
		}
		env = env.obj.Fields[envNext]
	}
	if env.obj == nil {
		vm.fail(diagnostics.FaultInternal, diagnostics.ErrBadEnvironment)
	}
	return env.obj.Fields[envValue]
}

func (vm *VM) pushArg(v Value) {
	if len(vm.astack) >= vm.limits.ArgStack {
		vm.fail(diagnostics.FaultCapacity, diagnostics.ErrArgStackFull)
	}
	vm.astack = append(vm.astack, v)
	if len(vm.astack) > vm.stats.PeakArgDepth {
		vm.stats.PeakArgDepth = len(vm.astack)
	}
}

func (vm *VM) peekArg() Value {
	if len(vm.astack) == 0 {
		vm.fail(diagnostics.FaultInternal, diagnostics.ErrStackUnderflow)
	}
	return vm.astack[len(vm.astack)-1]
}

func (vm *VM) popArg() Value {
	v := vm.peekArg()
	vm.astack = vm.astack[:len(vm.astack)-1]
	return v
}

func (vm *VM) pushReturn(e rsEntry) {
	if len(vm.rstack) >= vm.limits.ReturnStack {
		vm.fail(diagnostics.FaultCapacity, diagnostics.ErrReturnStackFull)
	}
	vm.rstack = append(vm.rstack, e)
	if len(vm.rstack) > vm.stats.PeakReturnDepth {
		vm.stats.PeakReturnDepth = len(vm.rstack)
	}
}

func (vm *VM) readByte() byte {
	if vm.pc < 0 || vm.pc >= vm.code.Len() {
		vm.fail(diagnostics.FaultInternal, diagnostics.ErrTruncated)
	}
	b := vm.code.bytes[vm.pc]
	vm.pc++
	return b
}

func (vm *VM) readUint16() uint16 {
	v, ok := vm.code.Read16(vm.pc)
	if !ok {
		vm.fail(diagnostics.FaultInternal, diagnostics.ErrTruncated)
	}
	vm.pc += 2
	return v
}

func (vm *VM) readInt64() int64 {
	v, ok := vm.code.Read64(vm.pc)
	if !ok {
		vm.fail(diagnostics.FaultInternal, diagnostics.ErrTruncated)
	}
	vm.pc += 8
	return v
}
