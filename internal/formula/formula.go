// Package formula parses the trait definition language and assembles the
// formula set for a run. A definition reads
//
//	NAME = (selector * selector) / (selector)
//
// where a selector is the universe dot, a positive constant, a
// meta-property name, or a property comparison. The conditional form //
// folds the denominator selectors into the numerator.
package formula

import (
	"fmt"
	"strconv"
	"strings"

	"glytrait/internal/meta"
)

// SelectorKind discriminates the four selector forms.
type SelectorKind int

const (
	SelectAll SelectorKind = iota // the '.' universe
	SelectConstant
	SelectProperty
	SelectCompare
)

// CompareOp is a comparison operator inside a selector.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
)

func (op CompareOp) String() string {
	switch op {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	}
	return "?"
}

// Ordered reports whether the operator needs an ordering, which restricts
// it to numeric operands.
func (op CompareOp) Ordered() bool { return op >= OpGt }

// LiteralKind tags the right-hand side of a comparison.
type LiteralKind int

const (
	NumberLit LiteralKind = iota
	StringLit
	BoolLit
)

// Literal is a comparison right-hand side.
type Literal struct {
	Kind LiteralKind
	Num  float64
	Str  string
	Bool bool
}

func (l Literal) String() string {
	switch l.Kind {
	case NumberLit:
		return strconv.FormatFloat(l.Num, 'g', -1, 64)
	case StringLit:
		return strconv.Quote(l.Str)
	case BoolLit:
		return strconv.FormatBool(l.Bool)
	}
	return "?"
}

// Selector is one term of a formula operand.
type Selector struct {
	Kind     SelectorKind
	Property string  // SelectProperty, SelectCompare
	Constant float64 // SelectConstant
	Op       CompareOp
	Literal  Literal
}

func (s Selector) String() string {
	switch s.Kind {
	case SelectAll:
		return "."
	case SelectConstant:
		return strconv.FormatFloat(s.Constant, 'g', -1, 64)
	case SelectProperty:
		return s.Property
	case SelectCompare:
		return fmt.Sprintf("%s %s %s", s.Property, s.Op, s.Literal)
	}
	return "?"
}

// Formula is one parsed trait definition. After parsing, a conditional
// ratio has its denominator selectors already folded into the numerator.
type Formula struct {
	Name        string
	Description string
	Expression  string // the raw definition text
	Numerator   []Selector
	Denominator []Selector
	Coefficient float64
}

func (f *Formula) String() string {
	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteString(" = (")
	writeSelectors(&b, f.Numerator)
	b.WriteString(") / (")
	writeSelectors(&b, f.Denominator)
	b.WriteString(")")
	if f.Coefficient != 1 {
		fmt.Fprintf(&b, " * %s", strconv.FormatFloat(f.Coefficient, 'g', -1, 64))
	}
	return b.String()
}

func writeSelectors(b *strings.Builder, sels []Selector) {
	for i, s := range sels {
		if i > 0 {
			b.WriteString(" * ")
		}
		b.WriteString(s.String())
	}
}

// Properties lists every meta-property the formula references, numerator
// and denominator, without duplicates.
func (f *Formula) Properties() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range append(append([]Selector(nil), f.Numerator...), f.Denominator...) {
		if s.Kind != SelectProperty && s.Kind != SelectCompare {
			continue
		}
		if !seen[s.Property] {
			seen[s.Property] = true
			out = append(out, s.Property)
		}
	}
	return out
}

// SiaLinkage reports whether the formula touches linkage-only properties
// and therefore needs a linkage-aware run.
func (f *Formula) SiaLinkage() bool {
	for _, p := range f.Properties() {
		if meta.SiaLinkageProperty(p) {
			return true
		}
	}
	return false
}

// selectorSet is the canonical selector set used for family comparisons.
func selectorSet(sels []Selector) map[string]bool {
	set := make(map[string]bool, len(sels))
	for _, s := range sels {
		set[s.String()] = true
	}
	return set
}

// NumeratorSet returns the canonical numerator selector set.
func (f *Formula) NumeratorSet() map[string]bool { return selectorSet(f.Numerator) }

// DenominatorSet returns the canonical denominator selector set.
func (f *Formula) DenominatorSet() map[string]bool { return selectorSet(f.Denominator) }
