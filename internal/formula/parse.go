package formula

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Error kinds for formula handling.
var (
	ErrSyntax      = errors.New("formula syntax error")
	ErrFormulaFile = errors.New("bad formula file")
)

// SyntaxError pinpoints a rejected definition.
type SyntaxError struct {
	Expr   string
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d in %q: %s", e.Offset, e.Expr, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// FileError ties a formula file problem to its line.
type FileError struct {
	Line int
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("formula file line %d: %v", e.Line, e.Err) }

func (e *FileError) Unwrap() error { return e.Err }

type exprTokKind int

const (
	tokIdent exprTokKind = iota
	tokNumber
	tokString
	tokBool
	tokAssign
	tokStar
	tokSlash
	tokCond // the // conditional divider
	tokLParen
	tokRParen
	tokDot
	tokCmp
	tokEOF
)

type exprToken struct {
	kind exprTokKind
	text string
	num  float64
	b    bool
	op   CompareOp
	pos  int
}

// ParseExpression parses a single definition such as
//
//	TM = (isHighMannose) / (.)
//
// The description is left empty; file parsing fills it in.
func ParseExpression(expr string) (*Formula, error) {
	expr = strings.TrimSpace(expr)
	toks, err := lexExpr(expr)
	if err != nil {
		return nil, err
	}
	p := &exprParser{src: expr, toks: toks}
	return p.parseLine()
}

type exprParser struct {
	src  string
	toks []exprToken
	i    int
}

func (p *exprParser) peek() *exprToken { return &p.toks[p.i] }

func (p *exprParser) ahead(n int) *exprToken {
	if p.i+n >= len(p.toks) {
		return &p.toks[len(p.toks)-1]
	}
	return &p.toks[p.i+n]
}

func (p *exprParser) next() *exprToken {
	t := &p.toks[p.i]
	if p.i < len(p.toks)-1 {
		p.i++
	}
	return t
}

func (p *exprParser) errf(pos int, format string, args ...any) error {
	return &SyntaxError{Expr: p.src, Offset: pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *exprParser) parseLine() (*Formula, error) {
	name := p.next()
	if name.kind != tokIdent {
		return nil, p.errf(name.pos, "expected a trait name")
	}
	if eq := p.next(); eq.kind != tokAssign {
		return nil, p.errf(eq.pos, "expected '=' after the trait name")
	}

	num, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	div := p.next()
	if div.kind != tokSlash && div.kind != tokCond {
		return nil, p.errf(div.pos, "expected '/' or '//' between numerator and denominator")
	}
	den, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	coef := 1.0
	if p.peek().kind == tokStar {
		star := p.next()
		if coef, err = p.parseCoefficient(star.pos); err != nil {
			return nil, err
		}
	}
	if end := p.peek(); end.kind != tokEOF {
		return nil, p.errf(end.pos, "unexpected trailing input")
	}

	// A conditional ratio restricts the numerator to the denominator's
	// population, which is the same as multiplying the selectors in.
	if div.kind == tokCond {
		num = append(num, den...)
	}

	f := &Formula{
		Name:        name.text,
		Expression:  p.src,
		Numerator:   num,
		Denominator: den,
		Coefficient: coef,
	}
	if err := validate(f, p); err != nil {
		return nil, err
	}
	return f, nil
}

func validate(f *Formula, p *exprParser) error {
	for _, s := range f.Numerator {
		if s.Kind == SelectAll {
			return p.errf(0, "'.' cannot appear in the numerator")
		}
	}
	hasDot := false
	for _, s := range f.Denominator {
		if s.Kind == SelectAll {
			hasDot = true
		}
	}
	if hasDot && len(f.Denominator) > 1 {
		return p.errf(0, "'.' must be the only denominator selector")
	}
	return nil
}

// parseOperand reads unit ('*' unit)* and flattens the selectors. A '*'
// followed by a number belongs to the trailing coefficient, not to the
// operand, so only a '(' continues the unit list.
func (p *exprParser) parseOperand() ([]Selector, error) {
	sels, err := p.parseUnit()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokStar && p.ahead(1).kind == tokLParen {
		p.next()
		more, err := p.parseUnit()
		if err != nil {
			return nil, err
		}
		sels = append(sels, more...)
	}
	return sels, nil
}

func (p *exprParser) parseUnit() ([]Selector, error) {
	if open := p.next(); open.kind != tokLParen {
		return nil, p.errf(open.pos, "expected '('")
	}
	var sels []Selector
	for {
		s, err := p.parseSelector()
		if err != nil {
			return nil, err
		}
		sels = append(sels, s)
		if p.peek().kind != tokStar {
			break
		}
		p.next()
	}
	if closing := p.next(); closing.kind != tokRParen {
		return nil, p.errf(closing.pos, "expected ')'")
	}
	return sels, nil
}

func (p *exprParser) parseSelector() (Selector, error) {
	t := p.next()
	switch t.kind {
	case tokDot:
		return Selector{Kind: SelectAll}, nil
	case tokNumber:
		if t.num <= 0 {
			return Selector{}, p.errf(t.pos, "constants must be positive")
		}
		return Selector{Kind: SelectConstant, Constant: t.num}, nil
	case tokIdent:
		if p.peek().kind != tokCmp {
			return Selector{Kind: SelectProperty, Property: t.text}, nil
		}
		cmp := p.next()
		lit, err := p.parseLiteral(cmp.op)
		if err != nil {
			return Selector{}, err
		}
		return Selector{Kind: SelectCompare, Property: t.text, Op: cmp.op, Literal: lit}, nil
	}
	return Selector{}, p.errf(t.pos, "expected a selector")
}

func (p *exprParser) parseLiteral(op CompareOp) (Literal, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return Literal{Kind: NumberLit, Num: t.num}, nil
	case tokString:
		if op.Ordered() {
			return Literal{}, p.errf(t.pos, "%s needs a numeric right-hand side", op)
		}
		return Literal{Kind: StringLit, Str: t.text}, nil
	case tokBool:
		if op.Ordered() {
			return Literal{}, p.errf(t.pos, "%s needs a numeric right-hand side", op)
		}
		return Literal{Kind: BoolLit, Bool: t.b}, nil
	}
	return Literal{}, p.errf(t.pos, "expected a comparison value")
}

func (p *exprParser) parseCoefficient(pos int) (float64, error) {
	t := p.next()
	if t.kind != tokNumber {
		return 0, p.errf(t.pos, "expected a coefficient after '*'")
	}
	coef := t.num
	if p.peek().kind == tokSlash {
		p.next()
		d := p.next()
		if d.kind != tokNumber {
			return 0, p.errf(d.pos, "expected a divisor in the coefficient")
		}
		if d.num == 0 {
			return 0, p.errf(d.pos, "coefficient divisor cannot be zero")
		}
		coef /= d.num
	}
	if coef <= 0 {
		return 0, p.errf(pos, "the coefficient must be positive")
	}
	return coef, nil
}

func lexExpr(src string) ([]exprToken, error) {
	var toks []exprToken
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			toks = append(toks, exprToken{kind: tokLParen, pos: i})
			i++
		case c == ')':
			toks = append(toks, exprToken{kind: tokRParen, pos: i})
			i++
		case c == '*':
			toks = append(toks, exprToken{kind: tokStar, pos: i})
			i++
		case c == '/':
			if i+1 < len(src) && src[i+1] == '/' {
				toks = append(toks, exprToken{kind: tokCond, pos: i})
				i += 2
			} else {
				toks = append(toks, exprToken{kind: tokSlash, pos: i})
				i++
			}
		case c == '.':
			toks = append(toks, exprToken{kind: tokDot, pos: i})
			i++
		case c == '=':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, exprToken{kind: tokCmp, op: OpEq, pos: i})
				i += 2
			} else {
				toks = append(toks, exprToken{kind: tokAssign, pos: i})
				i++
			}
		case c == '!':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, exprToken{kind: tokCmp, op: OpNe, pos: i})
				i += 2
			} else {
				return nil, &SyntaxError{src, i, "unexpected '!'"}
			}
		case c == '>':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, exprToken{kind: tokCmp, op: OpGe, pos: i})
				i += 2
			} else {
				toks = append(toks, exprToken{kind: tokCmp, op: OpGt, pos: i})
				i++
			}
		case c == '<':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, exprToken{kind: tokCmp, op: OpLe, pos: i})
				i += 2
			} else {
				toks = append(toks, exprToken{kind: tokCmp, op: OpLt, pos: i})
				i++
			}
		case c == '"' || c == '\'':
			end := strings.IndexByte(src[i+1:], c)
			if end < 0 {
				return nil, &SyntaxError{src, i, "unterminated string"}
			}
			toks = append(toks, exprToken{kind: tokString, text: src[i+1 : i+1+end], pos: i})
			i += end + 2
		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && src[i] >= '0' && src[i] <= '9' {
				i++
			}
			if i < len(src) && src[i] == '.' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9' {
				i++
				for i < len(src) && src[i] >= '0' && src[i] <= '9' {
					i++
				}
			}
			num, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return nil, &SyntaxError{src, start, "bad number"}
			}
			toks = append(toks, exprToken{kind: tokNumber, num: num, pos: start})
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentChar(src[i]) {
				i++
			}
			text := src[start:i]
			switch text {
			case "true":
				toks = append(toks, exprToken{kind: tokBool, b: true, pos: start})
			case "false":
				toks = append(toks, exprToken{kind: tokBool, b: false, pos: start})
			default:
				toks = append(toks, exprToken{kind: tokIdent, text: text, pos: start})
			}
		default:
			return nil, &SyntaxError{src, i, fmt.Sprintf("unexpected character %q", c)}
		}
	}
	toks = append(toks, exprToken{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '_'
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

// ParseFile reads a formula file: '#' lines are comments, '@' lines carry
// the description for the '$' expression line that must follow.
func ParseFile(r io.Reader) ([]*Formula, error) {
	var formulas []*Formula
	var description string
	haveDescription := false
	lineNo := 0

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "@"):
			if haveDescription {
				return nil, &FileError{lineNo, fmt.Errorf("%w: description line without an expression before it", ErrFormulaFile)}
			}
			description = strings.TrimSpace(line[1:])
			haveDescription = true
		case strings.HasPrefix(line, "$"):
			if !haveDescription {
				return nil, &FileError{lineNo, fmt.Errorf("%w: expression line without a preceding description", ErrFormulaFile)}
			}
			f, err := ParseExpression(strings.TrimSpace(line[1:]))
			if err != nil {
				return nil, &FileError{lineNo, err}
			}
			f.Description = description
			haveDescription = false
			formulas = append(formulas, f)
		default:
			return nil, &FileError{lineNo, fmt.Errorf("%w: lines must start with '@', '$' or '#'", ErrFormulaFile)}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if haveDescription {
		return nil, &FileError{lineNo, fmt.Errorf("%w: description at end of file without an expression", ErrFormulaFile)}
	}
	return formulas, nil
}
