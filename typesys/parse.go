package typesys

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrParse is returned for malformed type strings.
var ErrParse = errors.New("type parse error")

var greeks = map[string]string{
	"alpha":   "α",
	"beta":    "β",
	"gamma":   "γ",
	"delta":   "δ",
	"epsilon": "ε",
}

// Greek letters used as variable names, in allocation order.
var greekNames = []string{"α", "β", "γ", "δ", "ε"}

// Parse reads a type string. Primitives are bare identifiers, variables are
// written \alpha (or directly as a greek letter), parametric types as
// name[T, U] and function types with a right associative ->.
func Parse(s string) (Type, error) {
	p := &parser{src: s}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("%w: unexpected %q in %q", ErrParse, p.src[p.pos:], s)
	}
	return t, nil
}

// MustParse is Parse for literals known to be well formed.
func MustParse(s string) Type {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Arity counts the top level arrows of a type string.
func Arity(s string) int {
	depth, n := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case '-':
			if depth == 0 && i+1 < len(s) && s[i+1] == '>' {
				n++
				i++
			}
		}
	}
	return n
}

type parser struct {
	src string
	pos int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) expect(tok string) error {
	p.skipSpace()
	if !strings.HasPrefix(p.src[p.pos:], tok) {
		return fmt.Errorf("%w: expected %q at %d in %q", ErrParse, tok, p.pos, p.src)
	}
	p.pos += len(tok)
	return nil
}

func (p *parser) parseType() (Type, error) {
	var t Type
	if p.peek() == '(' {
		p.pos++
		inner, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		t = inner
	} else {
		atom, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		t = atom
	}
	if p.peek() == '-' {
		if err := p.expect("->"); err != nil {
			return nil, err
		}
		to, err := p.parseType()
		if err != nil {
			return nil, err
		}
		t = Func{From: t, To: to}
	}
	return t, nil
}

func (p *parser) parseAtom() (Type, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, fmt.Errorf("%w: unexpected end of %q", ErrParse, p.src)
	}
	if p.src[p.pos] == '\\' {
		p.pos++
		name := p.ident()
		if name == "" {
			return nil, fmt.Errorf("%w: empty variable name in %q", ErrParse, p.src)
		}
		if g, ok := greeks[name]; ok {
			name = g
		}
		return Var{Name: name}, nil
	}
	if r, size := utf8.DecodeRuneInString(p.src[p.pos:]); isGreek(r) {
		p.pos += size
		return Var{Name: string(r)}, nil
	}
	name := p.ident()
	if name == "" {
		return nil, fmt.Errorf("%w: expected a type name at %d in %q", ErrParse, p.pos, p.src)
	}
	if p.peek() != '[' {
		return Prim{Name: name}, nil
	}
	p.pos++
	var args []Type
	for p.peek() != ']' {
		a, err := p.parseType()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.peek() == ',' {
			p.pos++
		} else if p.peek() != ']' {
			return nil, fmt.Errorf("%w: expected , or ] at %d in %q", ErrParse, p.pos, p.src)
		}
	}
	p.pos++
	return Param{Name: name, Args: args}, nil
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' && p.pos > start || c == '_' {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func isGreek(r rune) bool {
	return r >= 'α' && r <= 'ω'
}
