package vm

import "encoding/binary"

// Code is the append-only code area shared by every closure compiled for one
// VM. Closures store offsets into it, so bodies are shared between closures
// that capture different environments. Multi-byte operands are big-endian.
type Code struct {
	bytes []byte
}

// NewCode creates an empty code area
func NewCode() *Code {
	return &Code{bytes: make([]byte, 0, 1024)}
}

// Len returns the number of bytes in the code area
func (c *Code) Len() int {
	return len(c.bytes)
}

// Bytes exposes the raw code. Callers must not modify it.
func (c *Code) Bytes() []byte {
	return c.bytes
}

// WriteOp appends an opcode
func (c *Code) WriteOp(op Opcode) {
	c.bytes = append(c.bytes, byte(op))
}

func (c *Code) Write8(b uint8) {
	c.bytes = append(c.bytes, b)
}

func (c *Code) Write16(v uint16) {
	c.bytes = binary.BigEndian.AppendUint16(c.bytes, v)
}

func (c *Code) Write64(v int64) {
	c.bytes = binary.BigEndian.AppendUint64(c.bytes, uint64(v))
}

// Patch16 overwrites a 2-byte operand previously reserved at offset.
func (c *Code) Patch16(offset int, v uint16) {
	binary.BigEndian.PutUint16(c.bytes[offset:], v)
}

// Truncate drops everything from offset n on. It is used to roll back a
// compilation that failed halfway.
func (c *Code) Truncate(n int) {
	if n < len(c.bytes) {
		c.bytes = c.bytes[:n]
	}
}

// Read16 reads a 2-byte operand at offset; ok is false past the end.
func (c *Code) Read16(offset int) (v uint16, ok bool) {
	if offset < 0 || offset+2 > len(c.bytes) {
		return 0, false
	}
	return binary.BigEndian.Uint16(c.bytes[offset:]), true
}

// Read64 reads an 8-byte operand at offset; ok is false past the end.
func (c *Code) Read64(offset int) (v int64, ok bool) {
	if offset < 0 || offset+8 > len(c.bytes) {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(c.bytes[offset:])), true
}
