package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Query is a parsed filter expression. It implements mandate.Matcher.
type Query struct {
	src  string
	root Node
}

// String returns the source text the query was parsed from.
func (q *Query) String() string { return q.src }

// Parse compiles src into a Query. Field names and regular expressions are
// checked here so evaluation cannot fail on them later.
func Parse(src string) (*Query, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	root, err := p.or()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tkEOF {
		return nil, fmt.Errorf("query: unexpected %q at position %d", t.text, t.pos)
	}
	return &Query{src: src, root: root}, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tkEOF {
		p.pos++
	}
	return t
}

// or = and { "OR" and }
func (p *parser) or() (Node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.peek().is(tkIdent, "OR") {
		p.next()
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

// and = unary { "AND" unary }
func (p *parser) and() (Node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.peek().is(tkIdent, "AND") {
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

// unary = "NOT" unary | "(" or ")" | comparison
func (p *parser) unary() (Node, error) {
	t := p.peek()
	switch {
	case t.is(tkIdent, "NOT"):
		p.next()
		inner, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Not{Operand: inner}, nil
	case t.kind == tkLParen:
		p.next()
		inner, err := p.or()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tkRParen {
			return nil, fmt.Errorf("query: expected \")\" at position %d", closing.pos)
		}
		return inner, nil
	}
	return p.comparison()
}

// comparison = field operator value
func (p *parser) comparison() (Node, error) {
	ft := p.next()
	if ft.kind != tkIdent {
		return nil, fmt.Errorf("query: expected field name at position %d, got %q", ft.pos, ft.text)
	}
	path := strings.Split(ft.text, ".")
	if err := checkField(path); err != nil {
		return nil, err
	}

	ot := p.next()
	var op Operator
	switch {
	case ot.kind == tkOp:
		op = Operator(ot.text)
	case ot.is(tkIdent, string(OpContains)):
		op = OpContains
	case ot.is(tkIdent, string(OpMatches)):
		op = OpMatches
	case ot.is(tkIdent, string(OpIn)):
		op = OpIn
	default:
		return nil, fmt.Errorf("query: expected operator after %s at position %d, got %q", ft.text, ot.pos, ot.text)
	}

	var (
		val Value
		err error
	)
	if op == OpIn {
		val, err = p.list()
	} else {
		val, err = p.scalar()
	}
	if err != nil {
		return nil, err
	}

	c := &Compare{Field: path, Op: op, Value: val}
	if op == OpMatches {
		pattern, ok := val.V.(string)
		if !ok {
			return nil, fmt.Errorf("query: matches needs a string pattern")
		}
		if c.re, err = regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("query: invalid pattern %q: %w", pattern, err)
		}
	}
	return c, nil
}

func (p *parser) scalar() (Value, error) {
	t := p.next()
	switch t.kind {
	case tkString:
		return Value{V: t.text}, nil
	case tkNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("query: invalid number %q", t.text)
		}
		return Value{V: f}, nil
	case tkBool:
		return Value{V: strings.EqualFold(t.text, "true")}, nil
	}
	return Value{}, fmt.Errorf("query: expected literal at position %d, got %q", t.pos, t.text)
}

// list = "[" [ scalar { "," scalar } ] "]"
func (p *parser) list() (Value, error) {
	if open := p.next(); open.kind != tkLBracket {
		return Value{}, fmt.Errorf("query: in needs a [list] at position %d", open.pos)
	}
	items := []any{}
	if p.peek().kind == tkRBracket {
		p.next()
		return Value{V: items}, nil
	}
	for {
		v, err := p.scalar()
		if err != nil {
			return Value{}, err
		}
		items = append(items, v.V)
		t := p.next()
		if t.kind == tkRBracket {
			return Value{V: items}, nil
		}
		if t.kind != tkComma {
			return Value{}, fmt.Errorf("query: expected \",\" or \"]\" at position %d", t.pos)
		}
	}
}
