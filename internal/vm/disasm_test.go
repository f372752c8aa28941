package vm

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wist-lang/wist/internal/ast"
	"github.com/wist-lang/wist/internal/config"
	"github.com/wist-lang/wist/internal/symbols"
)

func TestDisassemble_Definition(t *testing.T) {
	m := newTestVM(t, config.Limits{})
	id := symbols.NewIndex().Intern("id")
	x := ast.NewBinder("x")
	if _, err := m.Define(id, ast.Fn(x, ast.Ref(x))); err != nil {
		t.Fatal(err)
	}

	want := `== id ==
0000 CLOSURE             4 -> 0007
0003   GRAB
0004   ACCESS              0
0006   RETURN
0007 SETGLOBAL           0 'id'
0010 RETURN
`
	got := Disassemble(m.Code(), 0, m.Code().Len(), m.Globals(), "id")
	if got != want {
		t.Errorf("Disassemble mismatch (-want +got):\n%s", cmp.Diff(want, got))
	}
}

func TestDisassemble_Truncated(t *testing.T) {
	c := NewCode()
	c.WriteOp(OP_PUSHMARK)
	c.WriteOp(OP_GETGLOBAL)
	c.Write8(0)

	got := Disassemble(c, 0, c.Len(), nil, "broken")
	if !strings.Contains(got, "0000 PUSHMARK") || !strings.Contains(got, "!! 0001: truncated GETGLOBAL") {
		t.Errorf("unexpected listing:\n%s", got)
	}
}

func TestDecode_Operands(t *testing.T) {
	c := NewCode()
	c.WriteOp(OP_INT64)
	c.Write64(-2)
	c.WriteOp(OP_ACCESS)
	c.Write8(200)
	c.WriteOp(OP_MKB)
	c.Write16(0xbeef)

	got, err := Decode(c, 0, c.Len())
	if err != nil {
		t.Fatal(err)
	}
	want := []Instruction{
		{Offset: 0, Op: OP_INT64, Operand: -2},
		{Offset: 9, Op: OP_ACCESS, Operand: 200},
		{Offset: 11, Op: OP_MKB, Operand: 0xbeef},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Decode mismatch (-want +got):\n%s", diff)
	}

	c.Write8(0xee)
	if _, err := Decode(c, 0, c.Len()); err == nil || !strings.Contains(err.Error(), "unknown opcode") {
		t.Errorf("got %v, want unknown opcode", err)
	}
}
