package vm

import (
	"sort"

	"github.com/wist-lang/wist/internal/config"
	"github.com/wist-lang/wist/internal/diagnostics"
	"github.com/wist-lang/wist/internal/symbols"
	"golang.org/x/exp/maps"
)

// Global is one slot of the VM's global table.
type Global struct {
	Symbol  *symbols.Symbol
	Value   Value
	Defined bool
}

// Globals maps toplevel symbols to dense slot indices. Bytecode refers to
// globals only by index.
type Globals struct {
	index   map[*symbols.Symbol]int
	entries []Global
}

func NewGlobals() *Globals {
	return &Globals{index: make(map[*symbols.Symbol]int)}
}

// Declare reserves a slot for sym. Declaring twice returns the same slot;
// fresh reports whether a new slot was created.
func (g *Globals) Declare(sym *symbols.Symbol) (idx int, fresh bool, err error) {
	if i, ok := g.index[sym]; ok {
		return i, false, nil
	}
	if len(g.entries) > config.MaxGlobals {
		return 0, false, diagnostics.Newf(diagnostics.FaultCapacity, "declare", diagnostics.ErrOperandRange,
			"more than %d globals", config.MaxGlobals+1)
	}
	idx = len(g.entries)
	g.index[sym] = idx
	g.entries = append(g.entries, Global{Symbol: sym})
	return idx, true, nil
}

// undeclare drops the most recent slot if it belongs to sym and was never
// assigned. Used to roll back a failed definition.
func (g *Globals) undeclare(sym *symbols.Symbol) {
	n := len(g.entries) - 1
	if n < 0 || g.entries[n].Symbol != sym || g.entries[n].Defined {
		return
	}
	delete(g.index, sym)
	g.entries = g.entries[:n]
}

// IndexOf returns the slot of sym.
func (g *Globals) IndexOf(sym *symbols.Symbol) (int, bool) {
	i, ok := g.index[sym]
	return i, ok
}

// IsGlobal implements lir.GlobalResolver.
func (g *Globals) IsGlobal(sym *symbols.Symbol) bool {
	_, ok := g.index[sym]
	return ok
}

// Len returns the number of declared slots.
func (g *Globals) Len() int { return len(g.entries) }

// Entry returns slot i.
func (g *Globals) Entry(i int) (Global, bool) {
	if i < 0 || i >= len(g.entries) {
		return Global{}, false
	}
	return g.entries[i], true
}

func (g *Globals) set(i int, v Value) bool {
	if i < 0 || i >= len(g.entries) {
		return false
	}
	g.entries[i].Value = v
	g.entries[i].Defined = true
	return true
}

// Symbols returns every declared symbol ordered by name.
func (g *Globals) Symbols() []*symbols.Symbol {
	syms := maps.Keys(g.index)
	sort.Slice(syms, func(i, j int) bool { return syms[i].Name() < syms[j].Name() })
	return syms
}

func (g *Globals) each(fn func(Value)) {
	for i := range g.entries {
		fn(g.entries[i].Value)
	}
}

func (g *Globals) snapshot() []Global {
	return append([]Global(nil), g.entries...)
}

// restore returns the table to a snapshot. Slots declared since are dropped
// and earlier slots get their recorded value back.
func (g *Globals) restore(s []Global) {
	if len(s) > len(g.entries) {
		return
	}
	for _, e := range g.entries[len(s):] {
		delete(g.index, e.Symbol)
	}
	g.entries = append(g.entries[:0], s...)
}
