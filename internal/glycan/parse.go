package glycan

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokResidue tokenKind = iota
	tokLinkage
	tokBranchOpen  // '['
	tokBranchClose // ']'
)

type structToken struct {
	kind    tokenKind
	residue Kind
	link    Linkage
	pos     int
}

// ParseStructure parses condensed glycan notation such as
//
//	Gal(b1-4)GlcNAc(b1-2)Man(a1-6)[Man(a1-3)]Man(b1-4)GlcNAc(b1-4)[Fuc(a1-6)]GlcNAc
//
// into a topology tree. The rightmost residue is the reducing end, square
// brackets delimit branches, and a linkage descriptor binds the residue
// written directly before it to the residue it attaches to on the right.
func ParseStructure(name, input string) (*Structure, error) {
	toks, err := lexStructure(input)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, &ParseError{input, 0, ErrMalformedStructure, "empty structure"}
	}

	// Build right to left so the root is created first. The stack holds the
	// attachment point of the chain being read; a branch close duplicates it
	// because the bracketed residues hang off the same parent.
	s := &Structure{Name: name}
	var stack []int
	var pending *Linkage
	for i := len(toks) - 1; i >= 0; i-- {
		t := toks[i]
		switch t.kind {
		case tokResidue:
			var link Linkage
			if pending != nil {
				link = *pending
				pending = nil
			}
			if len(stack) == 0 {
				if link != (Linkage{}) {
					return nil, &ParseError{input, t.pos, ErrMalformedStructure, "linkage after the reducing end"}
				}
				stack = append(stack, s.addNode(t.residue, NoParent, Linkage{}))
				continue
			}
			stack[len(stack)-1] = s.addNode(t.residue, stack[len(stack)-1], link)
		case tokLinkage:
			if pending != nil {
				return nil, &ParseError{input, t.pos, ErrMalformedStructure, "two linkage descriptors in a row"}
			}
			l := t.link
			pending = &l
		case tokBranchClose:
			if len(stack) == 0 {
				return nil, &ParseError{input, t.pos, ErrMalformedStructure, "unbalanced brackets"}
			}
			stack = append(stack, stack[len(stack)-1])
		case tokBranchOpen:
			if len(stack) <= 1 {
				return nil, &ParseError{input, t.pos, ErrMalformedStructure, "unbalanced brackets"}
			}
			stack = stack[:len(stack)-1]
		}
	}
	if pending != nil {
		return nil, &ParseError{input, toks[0].pos, ErrMalformedStructure, "dangling linkage"}
	}
	if len(stack) != 1 {
		return nil, &ParseError{input, toks[0].pos, ErrMalformedStructure, "unbalanced brackets"}
	}
	return s, nil
}

func lexStructure(input string) ([]structToken, error) {
	var toks []structToken
	i := 0
	for i < len(input) {
		switch c := input[i]; {
		case c == '[':
			toks = append(toks, structToken{kind: tokBranchOpen, pos: i})
			i++
		case c == ']':
			toks = append(toks, structToken{kind: tokBranchClose, pos: i})
			i++
		case c == '(':
			end := strings.IndexByte(input[i:], ')')
			if end < 0 {
				return nil, &ParseError{input, i, ErrMalformedStructure, "unterminated linkage descriptor"}
			}
			link, err := parseLinkage(input[i+1 : i+end])
			if err != nil {
				return nil, &ParseError{input, i, ErrMalformedStructure, err.Error()}
			}
			toks = append(toks, structToken{kind: tokLinkage, link: link, pos: i})
			i += end + 1
		case isResidueChar(c):
			start := i
			for i < len(input) && isResidueChar(input[i]) {
				i++
			}
			name := input[start:i]
			k, ok := KindFromName(name)
			if !ok {
				return nil, &ParseError{input, start, ErrUnknownResidue, name}
			}
			toks = append(toks, structToken{kind: tokResidue, residue: k, pos: start})
		default:
			return nil, &ParseError{input, i, ErrMalformedStructure, fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return toks, nil
}

func isResidueChar(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}

// parseLinkage reads the body of a descriptor like a2-6, b1-4 or a2-?.
func parseLinkage(body string) (Linkage, error) {
	if len(body) != 4 || body[2] != '-' {
		return Linkage{}, fmt.Errorf("bad linkage descriptor %q", body)
	}
	var l Linkage
	switch body[0] {
	case 'a', 'b', '?':
		l.Anomer = body[0]
	default:
		return Linkage{}, fmt.Errorf("bad anomeric configuration in %q", body)
	}
	var err error
	if l.ChildPos, err = parseCarbonPos(body[1]); err != nil {
		return Linkage{}, fmt.Errorf("%v in %q", err, body)
	}
	if l.ParentPos, err = parseCarbonPos(body[3]); err != nil {
		return Linkage{}, fmt.Errorf("%v in %q", err, body)
	}
	return l, nil
}

func parseCarbonPos(c byte) (int8, error) {
	if c == '?' {
		return UnknownPos, nil
	}
	if c >= '1' && c <= '9' {
		return int8(c - '0'), nil
	}
	return 0, fmt.Errorf("bad carbon position %q", c)
}
