package expr

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokFloat
	tokString
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokSemi // ";" or newline - both terminate a statement
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPercent
	tokAssign // "="
	tokEq     // "=="
	tokNeq
	tokLt
	tokLte
	tokGt
	tokGte
	tokAnd
	tokOr
	tokNot
	tokQuestion
	tokColon
	tokReturn
	tokTrue
	tokFalse
	tokNull
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lexer converts expression source into a token stream.
// Dotted names (person.first_name) are lexed as a single identifier so the
// parser can treat capability names atomically.
type lexer struct {
	src string
	pos int
}

func (l *lexer) errf(pos int, format string, args ...any) error {
	return fmt.Errorf("%s at offset %d", fmt.Sprintf(format, args...), pos)
}

// lex tokenizes the whole source. Newlines become statement separators;
// runs of separators are collapsed by the parser.
func lex(src string) ([]token, error) {
	l := &lexer{src: src}
	var toks []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	// Skip horizontal whitespace; newlines are significant.
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == ' ' || c == '\t' || c == '\r' {
			l.pos++
			continue
		}
		break
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]

	switch {
	case c == '\n' || c == ';':
		l.pos++
		return token{kind: tokSemi, text: string(c), pos: start}, nil
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case c == '[':
		l.pos++
		return token{kind: tokLBracket, text: "[", pos: start}, nil
	case c == ']':
		l.pos++
		return token{kind: tokRBracket, text: "]", pos: start}, nil
	case c == ',':
		l.pos++
		return token{kind: tokComma, text: ",", pos: start}, nil
	case c == '+':
		l.pos++
		return token{kind: tokPlus, text: "+", pos: start}, nil
	case c == '-':
		l.pos++
		return token{kind: tokMinus, text: "-", pos: start}, nil
	case c == '*':
		l.pos++
		return token{kind: tokStar, text: "*", pos: start}, nil
	case c == '/':
		l.pos++
		return token{kind: tokSlash, text: "/", pos: start}, nil
	case c == '%':
		l.pos++
		return token{kind: tokPercent, text: "%", pos: start}, nil
	case c == '?':
		l.pos++
		return token{kind: tokQuestion, text: "?", pos: start}, nil
	case c == ':':
		l.pos++
		return token{kind: tokColon, text: ":", pos: start}, nil
	case c == '=':
		if l.peek(1) == '=' {
			l.pos += 2
			return token{kind: tokEq, text: "==", pos: start}, nil
		}
		l.pos++
		return token{kind: tokAssign, text: "=", pos: start}, nil
	case c == '!':
		if l.peek(1) == '=' {
			l.pos += 2
			return token{kind: tokNeq, text: "!=", pos: start}, nil
		}
		l.pos++
		return token{kind: tokNot, text: "!", pos: start}, nil
	case c == '<':
		if l.peek(1) == '=' {
			l.pos += 2
			return token{kind: tokLte, text: "<=", pos: start}, nil
		}
		l.pos++
		return token{kind: tokLt, text: "<", pos: start}, nil
	case c == '>':
		if l.peek(1) == '=' {
			l.pos += 2
			return token{kind: tokGte, text: ">=", pos: start}, nil
		}
		l.pos++
		return token{kind: tokGt, text: ">", pos: start}, nil
	case c == '&':
		if l.peek(1) == '&' {
			l.pos += 2
			return token{kind: tokAnd, text: "&&", pos: start}, nil
		}
		return token{}, l.errf(start, "unexpected character %q", c)
	case c == '|':
		if l.peek(1) == '|' {
			l.pos += 2
			return token{kind: tokOr, text: "||", pos: start}, nil
		}
		return token{}, l.errf(start, "unexpected character %q", c)
	case c == '\'' || c == '"':
		return l.lexString(c)
	case c >= '0' && c <= '9':
		return l.lexNumber()
	}

	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	if isIdentStart(r) {
		return l.lexIdent()
	}
	return token{}, l.errf(start, "unexpected character %q", r)
}

func (l *lexer) peek(ahead int) byte {
	if l.pos+ahead < len(l.src) {
		return l.src[l.pos+ahead]
	}
	return 0
}

func (l *lexer) lexString(quote byte) (token, error) {
	start := l.pos
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case quote:
			l.pos++
			return token{kind: tokString, text: b.String(), pos: start}, nil
		case '\\':
			if l.pos+1 >= len(l.src) {
				return token{}, l.errf(start, "unterminated string")
			}
			esc := l.src[l.pos+1]
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\', '\'', '"':
				b.WriteByte(esc)
			default:
				return token{}, l.errf(l.pos, "unknown escape \\%c", esc)
			}
			l.pos += 2
		case '\n':
			return token{}, l.errf(start, "unterminated string")
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return token{}, l.errf(start, "unterminated string")
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	isFloat := false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c >= '0' && c <= '9' {
			l.pos++
			continue
		}
		// A dot is part of the number only when followed by a digit,
		// so "1.foo" fails loudly instead of lexing as 1.0 then garbage.
		if c == '.' && !isFloat && l.peek(1) >= '0' && l.peek(1) <= '9' {
			isFloat = true
			l.pos++
			continue
		}
		break
	}
	kind := tokInt
	if isFloat {
		kind = tokFloat
	}
	return token{kind: kind, text: l.src[start:l.pos], pos: start}, nil
}

func (l *lexer) lexIdent() (token, error) {
	start := l.pos
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if isIdentPart(r) {
			l.pos += size
			continue
		}
		// Dotted segment: only between identifier characters.
		if r == '.' && l.pos+1 < len(l.src) {
			next, _ := utf8.DecodeRuneInString(l.src[l.pos+1:])
			if isIdentStart(next) {
				l.pos++
				continue
			}
		}
		break
	}
	text := l.src[start:l.pos]
	switch text {
	case "return":
		return token{kind: tokReturn, text: text, pos: start}, nil
	case "true":
		return token{kind: tokTrue, text: text, pos: start}, nil
	case "false":
		return token{kind: tokFalse, text: text, pos: start}, nil
	case "null", "None":
		return token{kind: tokNull, text: text, pos: start}, nil
	}
	return token{kind: tokIdent, text: text, pos: start}, nil
}

func isIdentStart(c rune) bool {
	return c == '_' || unicode.IsLetter(c)
}

func isIdentPart(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}
