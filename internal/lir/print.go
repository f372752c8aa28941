package lir

import (
	"fmt"
	"io"
	"strings"
)

// String renders e in the indented form used by Print.
func String(e Expr) string {
	var sb strings.Builder
	Print(&sb, e)
	return sb.String()
}

// Print writes an indented dump of e. Binders are numbered in the order they
// are first met so the output is stable across runs.
func Print(w io.Writer, e Expr) {
	p := &printer{w: w, ids: make(map[Binder]int)}
	p.expr(e, 0)
}

type printer struct {
	w   io.Writer
	ids map[Binder]int
}

func (p *printer) id(b Binder) int {
	if id, ok := p.ids[b]; ok {
		return id
	}
	id := len(p.ids)
	p.ids[b] = id
	return id
}

func (p *printer) line(indent int, format string, args ...interface{}) {
	fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", indent), fmt.Sprintf(format, args...))
}

func (p *printer) expr(e Expr, indent int) {
	switch e := e.(type) {
	case *Lam:
		p.line(indent, "Lambda #%d", p.id(e))
		p.expr(e.Body, indent+1)
	case *Let:
		p.line(indent, "Let #%d", p.id(e))
		p.expr(e.Value, indent+1)
		p.expr(e.Body, indent+1)
	case *App:
		p.line(indent, "Application")
		p.expr(e.Fun, indent+1)
		p.expr(e.Arg, indent+1)
	case *Var:
		p.line(indent, "Variable #%d depth %d", p.id(e.Origin), e.Depth)
	case *GVar:
		p.line(indent, "Global %s", e.Symbol)
	case *MakeBlock:
		p.line(indent, "Make Block %s/%d", e.Kind, len(e.Fields))
		for _, f := range e.Fields {
			p.expr(f, indent+1)
		}
	case *Int:
		p.line(indent, "Integer %d", e.Value)
	default:
		p.line(indent, "?%T", e)
	}
}
