package expr

import "strconv"

// The AST is deliberately closed: the only node types are the ones below,
// and the interpreter walks them directly. There is no escape hatch into
// host code, so an expression can only ever yield a value or an *Error.

type node interface{}

type literalNode struct {
	value any
}

type identNode struct {
	name string
}

type listNode struct {
	items []node
}

type binaryNode struct {
	op    tokenKind // tokEq..tokGte, tokIn, tokAnd, tokOr
	left  node
	right node
}

type notNode struct {
	operand node
}

type parser struct {
	lex *lexer
	cur token
}

func parse(src string) (node, error) {
	p := &parser{lex: &lexer{src: src}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		return nil, p.lex.errf(p.cur.pos, "unexpected trailing input")
	}
	return root, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: tokOr, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: tokAnd, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.cur.kind == tokNot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	switch p.cur.kind {
	case tokEq, tokNeq, tokLt, tokLte, tokGt, tokGte, tokIn:
		op := p.cur.kind
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		return &binaryNode{op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parseAtom() (node, error) {
	switch p.cur.kind {
	case tokString:
		n := &literalNode{value: p.cur.text}
		return n, p.advance()
	case tokNumber:
		f, err := strconv.ParseFloat(p.cur.text, 64)
		if err != nil {
			return nil, p.lex.errf(p.cur.pos, "malformed number %q", p.cur.text)
		}
		n := &literalNode{value: f}
		return n, p.advance()
	case tokBool:
		n := &literalNode{value: p.cur.text == "true"}
		return n, p.advance()
	case tokIdent:
		n := &identNode{name: p.cur.text}
		return n, p.advance()
	case tokLBracket:
		return p.parseList()
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.cur.kind != tokRParen {
			return nil, p.lex.errf(p.cur.pos, "expected ')'")
		}
		return inner, p.advance()
	}
	return nil, p.lex.errf(p.cur.pos, "expected a value")
}

func (p *parser) parseList() (node, error) {
	if err := p.advance(); err != nil { // consume '['
		return nil, err
	}
	list := &listNode{}
	if p.cur.kind == tokRBracket {
		return list, p.advance()
	}
	for {
		item, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		list.items = append(list.items, item)
		if p.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if p.cur.kind == tokRBracket {
			return list, p.advance()
		}
		return nil, p.lex.errf(p.cur.pos, "expected ',' or ']' in list")
	}
}
