package vm

import (
	"errors"
	"testing"

	"github.com/wist-lang/wist/internal/ast"
	"github.com/wist-lang/wist/internal/config"
	"github.com/wist-lang/wist/internal/diagnostics"
)

func TestHeader_Packing(t *testing.T) {
	tests := []struct {
		mark  uint32
		tag   Kind
		count int
	}{
		{markWhite, KindUndefined, 0},
		{markBlack, KindClosure, 2},
		{markFreed, KindTuple, config.MaxObjectSlots},
		{3, Kind(0xff), 12345},
	}
	for _, tt := range tests {
		h := makeHeader(tt.mark, tt.tag, tt.count)
		if h.mark() != tt.mark || h.tag() != tt.tag || h.count() != tt.count {
			t.Errorf("makeHeader(%d, %v, %d) unpacks to (%d, %v, %d)",
				tt.mark, tt.tag, tt.count, h.mark(), h.tag(), h.count())
		}
	}
}

func TestHeap_AllocateIsZeroed(t *testing.T) {
	h := NewHeap()
	o := h.Allocate(3)
	if o.Tag() != KindUndefined || o.Len() != 3 || len(o.Fields) != 3 {
		t.Fatalf("got tag %v len %d", o.Tag(), o.Len())
	}
	for i, f := range o.Fields {
		if f.Kind() != KindUndefined {
			t.Errorf("field %d = %s", i, f.Inspect())
		}
	}
	o.SetTag(KindTuple)
	if o.Tag() != KindTuple || o.Len() != 3 {
		t.Errorf("SetTag clobbered the header: tag %v len %d", o.Tag(), o.Len())
	}
	if h.Live() != 1 || h.Stats().Allocated != 1 {
		t.Errorf("stats = %+v", h.Stats())
	}
}

func TestHeap_AllocateTooLarge(t *testing.T) {
	h := NewHeap()
	err := func() (err error) {
		defer diagnostics.Recover(&err)
		h.Allocate(config.MaxObjectSlots + 1)
		return nil
	}()
	if !errors.Is(err, diagnostics.ErrObjectTooLarge) {
		t.Fatalf("got %v, want object too large", err)
	}
	if kind, _ := diagnostics.KindOf(err); kind != diagnostics.FaultCapacity {
		t.Errorf("kind = %v, want capacity", kind)
	}
}

func TestHeap_DestroyAll(t *testing.T) {
	h := NewHeap()
	objs := []*Object{h.Allocate(1), h.Allocate(2), h.Allocate(0)}
	h.DestroyAll()
	if h.Live() != 0 || h.Stats().Freed != 3 {
		t.Fatalf("stats after DestroyAll = %+v", h.Stats())
	}
	for _, o := range objs {
		if o.Fields != nil || o.hdr.mark() != markFreed {
			t.Error("destroyed object was not released")
		}
	}
}

func TestHeap_CollectKeepsReachable(t *testing.T) {
	h := NewHeap()
	leaf := h.Allocate(1)
	leaf.SetTag(KindTuple)
	leaf.Fields[0] = IntVal(9)

	root := h.Allocate(2)
	root.SetTag(KindTuple)
	root.Fields[0] = ObjVal(leaf)
	root.Fields[1] = ObjVal(root) // cycle

	garbage := h.Allocate(1)
	garbage.SetTag(KindTuple)
	garbage.Fields[0] = ObjVal(leaf)

	freed := h.Collect(func(mark func(Value)) { mark(ObjVal(root)) })
	if freed != 1 {
		t.Errorf("freed %d objects, want 1", freed)
	}
	if h.Live() != 2 || h.Stats().Collections != 1 {
		t.Errorf("stats = %+v", h.Stats())
	}
	if garbage.Fields != nil {
		t.Error("unreachable object survived")
	}
	if root.Fields[0].Obj().Fields[0].AsInt() != 9 {
		t.Error("reachable object was damaged")
	}

	// Marks are cleared, so a second cycle sees the same graph.
	if freed := h.Collect(func(mark func(Value)) { mark(ObjVal(root)) }); freed != 0 {
		t.Errorf("second collection freed %d", freed)
	}
}

func TestGC_DuringEvaluation(t *testing.T) {
	threshold := 4
	m := newTestVM(t, config.Limits{GCThreshold: &threshold})

	keep := evalExpr(t, m, ast.TupleOf(ast.IntLit(1), ast.TupleOf(ast.IntLit(2))))
	for i := 0; i < 100; i++ {
		if err := m.PushFrame(); err != nil {
			t.Fatal(err)
		}
		x := ast.NewBinder("x")
		v := evalExpr(t, m, ast.Apply(ast.Fn(x, ast.TupleOf(ast.Ref(x), ast.Ref(x))), ast.TupleOf(ast.IntLit(int64(i)))))
		if got := v.Obj().Fields[1].Obj().Fields[0].AsInt(); got != int64(i) {
			t.Fatalf("iteration %d: got %d", i, got)
		}
		if err := m.PopFrame(); err != nil {
			t.Fatal(err)
		}
	}

	s := m.Stats()
	if s.Heap.Collections == 0 {
		t.Fatal("no collection ran")
	}
	if s.Heap.Live > 32 {
		t.Errorf("%d objects live after popping every frame", s.Heap.Live)
	}
	if got := keep.Inspect(); got != "(1, (2))" {
		t.Errorf("rooted value changed to %s", got)
	}
}

func TestGC_Disabled(t *testing.T) {
	off := 0
	m := newTestVM(t, config.Limits{GCThreshold: &off})
	for i := 0; i < 20; i++ {
		if err := m.PushFrame(); err != nil {
			t.Fatal(err)
		}
		evalExpr(t, m, ast.TupleOf(ast.IntLit(1)))
		if err := m.PopFrame(); err != nil {
			t.Fatal(err)
		}
	}
	if s := m.Stats(); s.Heap.Collections != 0 || s.Heap.Live != 40 {
		t.Errorf("stats = %+v, want 40 live objects and no collections", s.Heap)
	}
}
