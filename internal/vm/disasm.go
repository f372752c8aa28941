package vm

import (
	"fmt"
	"strings"
)

// Instruction is one decoded instruction.
type Instruction struct {
	Offset  int
	Op      Opcode
	Operand int64
}

// Decode walks code[start:end) linearly. Closure bodies are decoded inline,
// right after the CLOSURE that skips them.
func Decode(code *Code, start, end int) ([]Instruction, error) {
	if end > code.Len() {
		end = code.Len()
	}
	var out []Instruction
	for offset := start; offset < end; {
		op := Opcode(code.bytes[offset])
		if !op.Valid() {
			return out, fmt.Errorf("%04d: unknown opcode %d", offset, byte(op))
		}
		in := Instruction{Offset: offset, Op: op}
		w := op.OperandWidth()
		if offset+1+w > code.Len() {
			return out, fmt.Errorf("%04d: truncated %s", offset, op)
		}
		switch w {
		case 1:
			in.Operand = int64(code.bytes[offset+1])
		case 2:
			v, _ := code.Read16(offset + 1)
			in.Operand = int64(v)
		case 8:
			in.Operand, _ = code.Read64(offset + 1)
		}
		out = append(out, in)
		offset += 1 + w
	}
	return out, nil
}

// Disassemble returns a human-readable listing of code[start:end). Closure
// bodies are indented under the CLOSURE that creates them; globals are shown
// by name when g is not nil.
func Disassemble(code *Code, start, end int, g *Globals, name string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("== %s ==\n", name))

	instrs, err := Decode(code, start, end)
	// closing offsets of the CLOSURE bodies we are inside
	var open []int
	for _, in := range instrs {
		for len(open) > 0 && in.Offset >= open[len(open)-1] {
			open = open[:len(open)-1]
		}
		sb.WriteString(fmt.Sprintf("%04d %s", in.Offset, strings.Repeat("  ", len(open))))
		disassembleInstruction(&sb, in, g)
		if in.Op == OP_CLOSURE {
			open = append(open, in.Offset+3+int(in.Operand))
		}
	}
	if err != nil {
		sb.WriteString(fmt.Sprintf("!! %v\n", err))
	}
	return sb.String()
}

func disassembleInstruction(sb *strings.Builder, in Instruction, g *Globals) {
	switch in.Op {
	case OP_INT64, OP_ACCESS, OP_MKB:
		operandInstruction(sb, in)
	case OP_CLOSURE:
		sb.WriteString(fmt.Sprintf("%-16s %4d -> %04d\n", in.Op, in.Operand, in.Offset+3+int(in.Operand)))
	case OP_SETGLOBAL, OP_GETGLOBAL:
		globalInstruction(sb, in, g)
	default:
		simpleInstruction(sb, in)
	}
}

func simpleInstruction(sb *strings.Builder, in Instruction) {
	sb.WriteString(fmt.Sprintf("%s\n", in.Op))
}

func operandInstruction(sb *strings.Builder, in Instruction) {
	sb.WriteString(fmt.Sprintf("%-16s %4d\n", in.Op, in.Operand))
}

func globalInstruction(sb *strings.Builder, in Instruction, g *Globals) {
	name := "?"
	if g != nil {
		if e, ok := g.Entry(int(in.Operand)); ok {
			name = e.Symbol.Name()
		}
	}
	sb.WriteString(fmt.Sprintf("%-16s %4d '%s'\n", in.Op, in.Operand, name))
}
