// Package vm implements the Wist back end: a bytecode compiler for LIR and the
// abstract machine that runs it over an explicit heap.
package vm

// Opcode represents a single VM instruction
type Opcode byte

const (
	OP_INT64     Opcode = iota // Load 8-byte literal into the accumulator
	OP_RETURN                  // Pop frame, or finish when the return stack is empty
	OP_CLOSURE                 // Build closure over the following body, skip it
	OP_PUSH                    // Push accumulator onto the argument stack
	OP_PUSHMARK                // Push a mark delimiting one call's arguments
	OP_ACCESS                  // Load local by index
	OP_APPLY                   // Call, pushing a frame
	OP_APPTERM                 // Tail call, reusing the current frame
	OP_MKB                     // Build tuple from the top N arguments
	OP_GRAB                    // Take one more argument, or build a partial application
	OP_LET                     // Bind accumulator as a new local
	OP_ENDLET                  // Drop the innermost LET binding
	OP_SETGLOBAL               // Store accumulator into a global slot
	OP_GETGLOBAL               // Load a global slot

	opCount
)

// OpcodeNames maps opcodes to their string names (for debugging)
var OpcodeNames = map[Opcode]string{
	OP_INT64:     "INT64",
	OP_RETURN:    "RETURN",
	OP_CLOSURE:   "CLOSURE",
	OP_PUSH:      "PUSH",
	OP_PUSHMARK:  "PUSHMARK",
	OP_ACCESS:    "ACCESS",
	OP_APPLY:     "APPLY",
	OP_APPTERM:   "APPTERM",
	OP_MKB:       "MKB",
	OP_GRAB:      "GRAB",
	OP_LET:       "LET",
	OP_ENDLET:    "ENDLET",
	OP_SETGLOBAL: "SETGLOBAL",
	OP_GETGLOBAL: "GETGLOBAL",
}

// operand byte counts, indexed by opcode
var operandWidths = [opCount]int{
	OP_INT64:     8,
	OP_CLOSURE:   2,
	OP_ACCESS:    1,
	OP_MKB:       2,
	OP_SETGLOBAL: 2,
	OP_GETGLOBAL: 2,
}

func (op Opcode) String() string {
	if name, ok := OpcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// Valid reports whether op is part of the instruction set.
func (op Opcode) Valid() bool { return op < opCount }

// OperandWidth returns the number of operand bytes following op.
func (op Opcode) OperandWidth() int {
	if !op.Valid() {
		return 0
	}
	return operandWidths[op]
}
