// Package symbols interns identifier names. Two symbols with the same text are
// the same *Symbol, so equality is pointer comparison.
package symbols

// Symbol is an interned name.
type Symbol struct {
	name string
}

func (s *Symbol) String() string {
	if s == nil {
		return "<nil>"
	}
	return s.name
}

// Name returns the symbol text.
func (s *Symbol) Name() string { return s.name }

// Index owns every symbol interned through it.
type Index struct {
	syms map[string]*Symbol
}

func NewIndex() *Index {
	return &Index{syms: make(map[string]*Symbol)}
}

// Intern returns the unique symbol for name, creating it on first use.
func (ix *Index) Intern(name string) *Symbol {
	if s, ok := ix.syms[name]; ok {
		return s
	}
	s := &Symbol{name: name}
	ix.syms[name] = s
	return s
}

// Lookup returns the symbol for name without creating it.
func (ix *Index) Lookup(name string) (*Symbol, bool) {
	s, ok := ix.syms[name]
	return s, ok
}

// Len returns the number of interned symbols.
func (ix *Index) Len() int { return len(ix.syms) }
