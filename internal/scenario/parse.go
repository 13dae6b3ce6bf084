package scenario

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/lunalang/generics/internal/types"
)

// Type expressions in scenario files use a compact textual grammar:
//
//	type    := func | tuple | named | param
//	func    := '(' list ')' '->' type
//	tuple   := '(' ')' | '(' type ',' list ')'
//	named   := Ident ('<' list '>')?
//	param   := ('@' digits | Ident | 'Self') member*
//	member  := '.' Ident | '.[' Ident ':' Ident ']'
//
// A leading identifier names a generic parameter when it appears in the
// param table, and a nominal type otherwise. '@n' is the n-th parameter of
// the enclosing declaration context; 'Self' is parameter zero.

type typeParser struct {
	src    string
	pos    int
	params map[string]int
}

func newTypeParser(src string, params map[string]int) *typeParser {
	return &typeParser{src: src, params: params}
}

// ParseType parses one type expression. params maps parameter names to
// their index at depth zero.
func ParseType(src string, params map[string]int) (types.Type, error) {
	p := newTypeParser(src, params)
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("trailing input %q in type %q", p.src[p.pos:], p.src)
	}
	return t, nil
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *typeParser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return fmt.Errorf("expected %q at offset %d in %q", string(c), p.pos, p.src)
	}
	p.pos++
	return nil
}

func (p *typeParser) ident() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return "", fmt.Errorf("expected identifier at offset %d in %q", start, p.src)
	}
	return p.src[start:p.pos], nil
}

func (p *typeParser) parseType() (types.Type, error) {
	p.skipSpace()

	switch {
	case p.peek() == '(':
		return p.parseParenthesized()

	case p.peek() == '@':
		p.pos++
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		if p.pos == start {
			return nil, fmt.Errorf("expected parameter index after '@' in %q", p.src)
		}
		index, _ := strconv.Atoi(p.src[start:p.pos])
		return p.parseMembers(types.Param{Depth: 0, Index: index})
	}

	name, err := p.ident()
	if err != nil {
		return nil, err
	}

	if name == "Self" {
		return p.parseMembers(types.Param{Depth: 0, Index: 0})
	}
	if index, ok := p.params[name]; ok {
		return p.parseMembers(types.Param{Depth: 0, Index: index})
	}

	nominal := types.Nominal{Name: name}
	p.skipSpace()
	if p.peek() == '<' {
		p.pos++
		args, err := p.parseList('>')
		if err != nil {
			return nil, err
		}
		nominal.Args = args
	}
	return nominal, nil
}

func (p *typeParser) parseParenthesized() (types.Type, error) {
	p.pos++ // '('
	var elems []types.Type
	p.skipSpace()
	if p.peek() != ')' {
		list, err := p.parseList(')')
		if err != nil {
			return nil, err
		}
		elems = list
	} else {
		p.pos++
	}

	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], "->") {
		p.pos += 2
		result, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return types.Func{Params: elems, Result: result}, nil
	}

	if len(elems) == 1 {
		return elems[0], nil
	}
	return types.Tuple{Elements: elems}, nil
}

// parseList parses a comma separated type list terminated by close,
// consuming the terminator.
func (p *typeParser) parseList(close byte) ([]types.Type, error) {
	var out []types.Type
	for {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			continue
		case close:
			p.pos++
			return out, nil
		default:
			return nil, fmt.Errorf("expected %q or ',' at offset %d in %q", string(close), p.pos, p.src)
		}
	}
}

func (p *typeParser) parseMembers(base types.Type) (types.Type, error) {
	result := base
	for {
		p.skipSpace()
		if p.peek() != '.' {
			return result, nil
		}
		p.pos++
		p.skipSpace()

		if p.peek() == '[' {
			p.pos++
			proto, err := p.ident()
			if err != nil {
				return nil, err
			}
			if err := p.expect(':'); err != nil {
				return nil, err
			}
			name, err := p.ident()
			if err != nil {
				return nil, err
			}
			if err := p.expect(']'); err != nil {
				return nil, err
			}
			result = types.Member{Base: result, Name: name, Protocol: proto}
			continue
		}

		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		result = types.Member{Base: result, Name: name}
	}
}
