package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// node is the expression AST. The type switch in eval.go is the complete
// list of implementations.
type node interface{ exprNode() }

type litNode struct{ val any }

type identNode struct{ name string }

type kwarg struct {
	name string
	val  node
}

type callNode struct {
	name   string
	args   []node
	kwargs []kwarg
}

type unaryNode struct {
	op    tokenKind
	inner node
}

type binaryNode struct {
	op   tokenKind
	lhs  node
	rhs  node
}

type condNode struct {
	cond node
	then node
	els  node
}

type listNode struct{ elems []node }

func (litNode) exprNode()    {}
func (identNode) exprNode()  {}
func (callNode) exprNode()   {}
func (unaryNode) exprNode()  {}
func (binaryNode) exprNode() {}
func (condNode) exprNode()   {}
func (listNode) exprNode()   {}

// stmt is one statement of a block program.
type stmt struct {
	assign string // target name for "x = expr"; empty for return
	isRet  bool
	expr   node
}

// Program is a parsed column expression, ready for repeated evaluation.
type Program struct {
	src   string
	stmts []stmt
}

// Source returns the original expression text.
func (p *Program) Source() string { return p.src }

// Parse compiles expression source into a Program.
//
// A single bare expression is an implicit return. A multi-statement block
// must end with an explicit return statement - a block that cannot produce
// a value is rejected here, at load time, not at row time.
func Parse(src string) (*Program, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", abbreviate(src), err)
	}
	p := &parser{toks: toks}
	stmts, err := p.parseBlock()
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", abbreviate(src), err)
	}
	if len(stmts) == 0 {
		return nil, fmt.Errorf("parse %q: empty expression", abbreviate(src))
	}
	last := stmts[len(stmts)-1]
	if !last.isRet {
		if len(stmts) == 1 && last.assign == "" {
			// Bare expression: implicit return.
			stmts[0].isRet = true
		} else {
			return nil, fmt.Errorf("parse %q: block must end with a return statement", abbreviate(src))
		}
	}
	for _, s := range stmts[:len(stmts)-1] {
		if s.isRet {
			return nil, fmt.Errorf("parse %q: return must be the final statement", abbreviate(src))
		}
	}
	return &Program{src: src, stmts: stmts}, nil
}

// MustParse is a test helper that panics on parse failure.
func MustParse(src string) *Program {
	p, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return p
}

func abbreviate(src string) string {
	src = strings.ReplaceAll(src, "\n", " ")
	if len(src) > 40 {
		return src[:37] + "..."
	}
	return src
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance()    { p.pos++ }
func (p *parser) at(k tokenKind) bool { return p.cur().kind == k }

func (p *parser) expect(k tokenKind, what string) (token, error) {
	if !p.at(k) {
		return token{}, fmt.Errorf("expected %s, found %q", what, p.cur().text)
	}
	t := p.cur()
	p.advance()
	return t, nil
}

func (p *parser) skipSeparators() {
	for p.at(tokSemi) {
		p.advance()
	}
}

func (p *parser) parseBlock() ([]stmt, error) {
	var stmts []stmt
	p.skipSeparators()
	for !p.at(tokEOF) {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		if !p.at(tokEOF) {
			if !p.at(tokSemi) {
				return nil, fmt.Errorf("expected end of statement, found %q", p.cur().text)
			}
			p.skipSeparators()
		}
	}
	return stmts, nil
}

func (p *parser) parseStmt() (stmt, error) {
	if p.at(tokReturn) {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return stmt{}, err
		}
		return stmt{isRet: true, expr: e}, nil
	}

	// Assignment: ident "=" expr. Only undotted names may be assigned.
	if p.at(tokIdent) && p.pos+1 < len(p.toks) && p.toks[p.pos+1].kind == tokAssign {
		name := p.cur().text
		if strings.Contains(name, ".") {
			return stmt{}, fmt.Errorf("cannot assign to %q", name)
		}
		p.advance() // ident
		p.advance() // =
		e, err := p.parseExpr()
		if err != nil {
			return stmt{}, err
		}
		return stmt{assign: name, expr: e}, nil
	}

	e, err := p.parseExpr()
	if err != nil {
		return stmt{}, err
	}
	return stmt{expr: e}, nil
}

// parseExpr parses a full expression. Precedence, loosest first:
// ternary, ||, &&, equality, comparison, additive, multiplicative, unary.
func (p *parser) parseExpr() (node, error) {
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.at(tokQuestion) {
		return cond, nil
	}
	p.advance()
	then, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokColon, "':'"); err != nil {
		return nil, err
	}
	els, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return condNode{cond: cond, then: then, els: els}, nil
}

func (p *parser) parseOr() (node, error) {
	return p.parseBinary(p.parseAnd, tokOr)
}

func (p *parser) parseAnd() (node, error) {
	return p.parseBinary(p.parseEquality, tokAnd)
}

func (p *parser) parseEquality() (node, error) {
	return p.parseBinary(p.parseComparison, tokEq, tokNeq)
}

func (p *parser) parseComparison() (node, error) {
	return p.parseBinary(p.parseAdditive, tokLt, tokLte, tokGt, tokGte)
}

func (p *parser) parseAdditive() (node, error) {
	return p.parseBinary(p.parseMultiplicative, tokPlus, tokMinus)
}

func (p *parser) parseMultiplicative() (node, error) {
	return p.parseBinary(p.parseUnary, tokStar, tokSlash, tokPercent)
}

func (p *parser) parseBinary(next func() (node, error), ops ...tokenKind) (node, error) {
	lhs, err := next()
	if err != nil {
		return nil, err
	}
	for {
		matched := false
		for _, op := range ops {
			if p.at(op) {
				matched = true
				opKind := p.cur().kind
				p.advance()
				rhs, err := next()
				if err != nil {
					return nil, err
				}
				lhs = binaryNode{op: opKind, lhs: lhs, rhs: rhs}
				break
			}
		}
		if !matched {
			return lhs, nil
		}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.at(tokMinus) || p.at(tokNot) {
		op := p.cur().kind
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: op, inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	switch tok := p.cur(); tok.kind {
	case tokInt:
		n, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", tok.text)
		}
		p.advance()
		return litNode{val: n}, nil
	case tokFloat:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q", tok.text)
		}
		p.advance()
		return litNode{val: f}, nil
	case tokString:
		p.advance()
		return litNode{val: tok.text}, nil
	case tokTrue:
		p.advance()
		return litNode{val: true}, nil
	case tokFalse:
		p.advance()
		return litNode{val: false}, nil
	case tokNull:
		p.advance()
		return litNode{val: nil}, nil
	case tokLParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case tokLBracket:
		p.advance()
		list := listNode{}
		if p.at(tokRBracket) {
			p.advance()
			return list, nil
		}
		for {
			elem, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			list.elems = append(list.elems, elem)
			if p.at(tokComma) {
				p.advance()
				continue
			}
			if _, err := p.expect(tokRBracket, "']'"); err != nil {
				return nil, err
			}
			return list, nil
		}
	case tokIdent:
		p.advance()
		if p.at(tokLParen) {
			return p.parseCall(tok.text)
		}
		if strings.Contains(tok.text, ".") {
			return nil, fmt.Errorf("%q is a function name and must be called", tok.text)
		}
		return identNode{name: tok.text}, nil
	default:
		return nil, fmt.Errorf("unexpected token %q", tok.text)
	}
}

// parseCall parses the argument list of name(...). Arguments are positional
// until the first name=value pair; keywords must come last.
func (p *parser) parseCall(name string) (node, error) {
	p.advance() // (
	call := callNode{name: name}
	if p.at(tokRParen) {
		p.advance()
		return call, nil
	}
	for {
		// Keyword argument: ident "=" expr (but not "==").
		if p.at(tokIdent) && p.pos+1 < len(p.toks) && p.toks[p.pos+1].kind == tokAssign {
			kwName := p.cur().text
			p.advance()
			p.advance()
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.kwargs = append(call.kwargs, kwarg{name: kwName, val: val})
		} else {
			if len(call.kwargs) > 0 {
				return nil, fmt.Errorf("call %s: positional argument after keyword argument", name)
			}
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.args = append(call.args, arg)
		}
		if p.at(tokComma) {
			p.advance()
			continue
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, fmt.Errorf("call %s: %w", name, err)
		}
		return call, nil
	}
}
