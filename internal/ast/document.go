package ast

import (
	"fmt"
	"strconv"

	"github.com/wist-lang/wist/internal/symbols"
	"gopkg.in/yaml.v3"
)

// Document is a program in the YAML interchange form produced by a front end:
//
//	defs:
//	  - name: const
//	    body: {lam: [x, y], body: x}
//	main: [const, 1, 2]
//
// Expression forms:
//
//	42                                 integer literal
//	x                                  variable (innermost binder, else global)
//	[f, a, b]                          application f a b
//	{lam: x, body: E}                  lambda; lam may be a list of parameters
//	{let: x, value: E, body: E}        non-recursive let
//	{tuple: [E, ...]}                  tuple
type Document struct {
	Defs []*Decl
	Main Expr
}

// DocumentError reports a malformed document node.
type DocumentError struct {
	Pos Pos
	Msg string
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// ParseDocument decodes a YAML AST document, interning names in ix.
func ParseDocument(data []byte, ix *symbols.Index) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, &DocumentError{Msg: "empty document"}
	}
	d := &decoder{syms: ix}
	return d.document(root.Content[0])
}

type decoder struct {
	syms  *symbols.Index
	scope []*Binder
}

func posOf(n *yaml.Node) Pos {
	return Pos{Line: n.Line, Column: n.Column}
}

func fail(n *yaml.Node, format string, args ...interface{}) error {
	return &DocumentError{Pos: posOf(n), Msg: fmt.Sprintf(format, args...)}
}

func mappingFields(n *yaml.Node) map[string]*yaml.Node {
	fields := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		fields[n.Content[i].Value] = n.Content[i+1]
	}
	return fields
}

func (d *decoder) document(n *yaml.Node) (*Document, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fail(n, "document must be a mapping")
	}
	fields := mappingFields(n)
	doc := &Document{}

	if defs, ok := fields["defs"]; ok {
		if defs.Kind != yaml.SequenceNode {
			return nil, fail(defs, "defs must be a list")
		}
		for _, item := range defs.Content {
			decl, err := d.decl(item)
			if err != nil {
				return nil, err
			}
			doc.Defs = append(doc.Defs, decl)
		}
	}

	if m, ok := fields["main"]; ok {
		e, err := d.expr(m)
		if err != nil {
			return nil, err
		}
		doc.Main = e
	}
	if doc.Main == nil && len(doc.Defs) == 0 {
		return nil, fail(n, "document has neither defs nor main")
	}
	return doc, nil
}

func (d *decoder) decl(n *yaml.Node) (*Decl, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fail(n, "def must be a mapping with name and body")
	}
	fields := mappingFields(n)
	name, ok := fields["name"]
	if !ok || name.Kind != yaml.ScalarNode || name.Value == "" {
		return nil, fail(n, "def needs a name")
	}
	body, ok := fields["body"]
	if !ok {
		return nil, fail(n, "def %q needs a body", name.Value)
	}
	e, err := d.expr(body)
	if err != nil {
		return nil, err
	}
	return &Decl{Pos: posOf(n), Name: d.syms.Intern(name.Value), Body: e}, nil
}

func (d *decoder) expr(n *yaml.Node) (Expr, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return d.scalar(n)
	case yaml.SequenceNode:
		return d.application(n)
	case yaml.MappingNode:
		fields := mappingFields(n)
		switch {
		case fields["lam"] != nil:
			return d.lambda(n, fields)
		case fields["let"] != nil:
			return d.let(n, fields)
		case fields["tuple"] != nil:
			return d.tuple(n, fields["tuple"])
		}
		return nil, fail(n, "mapping must be a lam, let or tuple form")
	case yaml.AliasNode:
		return nil, fail(n, "aliases are not supported")
	}
	return nil, fail(n, "unexpected node")
}

func (d *decoder) scalar(n *yaml.Node) (Expr, error) {
	if n.Tag == "!!int" {
		v, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, fail(n, "integer literal %q: %v", n.Value, err)
		}
		return &Int{Pos: posOf(n), Value: v}, nil
	}
	if n.Value == "" {
		return nil, fail(n, "empty name")
	}
	for i := len(d.scope) - 1; i >= 0; i-- {
		if d.scope[i].Name == n.Value {
			return &Var{Pos: posOf(n), Binder: d.scope[i]}, nil
		}
	}
	return &GVar{Pos: posOf(n), Symbol: d.syms.Intern(n.Value)}, nil
}

func (d *decoder) application(n *yaml.Node) (Expr, error) {
	if len(n.Content) < 2 {
		return nil, fail(n, "application needs a function and at least one argument")
	}
	fun, err := d.expr(n.Content[0])
	if err != nil {
		return nil, err
	}
	for _, a := range n.Content[1:] {
		arg, err := d.expr(a)
		if err != nil {
			return nil, err
		}
		fun = &App{Pos: posOf(a), Fun: fun, Arg: arg}
	}
	return fun, nil
}

func (d *decoder) params(n *yaml.Node) ([]*Binder, error) {
	var names []*yaml.Node
	switch n.Kind {
	case yaml.ScalarNode:
		names = []*yaml.Node{n}
	case yaml.SequenceNode:
		names = n.Content
	default:
		return nil, fail(n, "parameters must be a name or a list of names")
	}
	if len(names) == 0 {
		return nil, fail(n, "lambda needs at least one parameter")
	}
	binders := make([]*Binder, 0, len(names))
	for _, p := range names {
		if p.Kind != yaml.ScalarNode || p.Tag == "!!int" || p.Value == "" {
			return nil, fail(p, "parameter must be a name")
		}
		binders = append(binders, NewBinder(p.Value))
	}
	return binders, nil
}

func (d *decoder) lambda(n *yaml.Node, fields map[string]*yaml.Node) (Expr, error) {
	binders, err := d.params(fields["lam"])
	if err != nil {
		return nil, err
	}
	bodyNode, ok := fields["body"]
	if !ok {
		return nil, fail(n, "lambda needs a body")
	}

	mark := len(d.scope)
	d.scope = append(d.scope, binders...)
	body, err := d.expr(bodyNode)
	d.scope = d.scope[:mark]
	if err != nil {
		return nil, err
	}

	for i := len(binders) - 1; i >= 0; i-- {
		body = &Lam{Pos: posOf(n), Param: binders[i], Body: body}
	}
	return body, nil
}

func (d *decoder) let(n *yaml.Node, fields map[string]*yaml.Node) (Expr, error) {
	nameNode := fields["let"]
	if nameNode.Kind != yaml.ScalarNode || nameNode.Tag == "!!int" || nameNode.Value == "" {
		return nil, fail(nameNode, "let must bind a name")
	}
	valueNode, ok := fields["value"]
	if !ok {
		return nil, fail(n, "let needs a value")
	}
	bodyNode, ok := fields["body"]
	if !ok {
		return nil, fail(n, "let needs a body")
	}

	value, err := d.expr(valueNode)
	if err != nil {
		return nil, err
	}
	b := NewBinder(nameNode.Value)
	d.scope = append(d.scope, b)
	body, err := d.expr(bodyNode)
	d.scope = d.scope[:len(d.scope)-1]
	if err != nil {
		return nil, err
	}
	return &Let{Pos: posOf(n), Bind: b, Value: value, Body: body}, nil
}

func (d *decoder) tuple(n *yaml.Node, fieldsNode *yaml.Node) (Expr, error) {
	if fieldsNode.Kind != yaml.SequenceNode {
		return nil, fail(fieldsNode, "tuple must be a list")
	}
	t := &Tuple{Pos: posOf(n)}
	for _, f := range fieldsNode.Content {
		e, err := d.expr(f)
		if err != nil {
			return nil, err
		}
		t.Fields = append(t.Fields, e)
	}
	return t, nil
}
