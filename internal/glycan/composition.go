package glycan

import (
	"fmt"
	"strconv"
)

// Composition is a letter-coded monosaccharide tally such as H5N4F1S2.
// H counts hexoses, N HexNAc, F fucose, S sialic acid with unspecified
// linkage, E a2,6-linked sialic acid and L a2,3-linked sialic acid.
type Composition struct {
	Hex    int
	HexNAc int
	Fuc    int
	Sia    int
	SiaE   int
	SiaL   int
}

// ParseComposition parses a composition string. Counts for repeated letters
// accumulate and zero counts are dropped.
func ParseComposition(input string) (Composition, error) {
	var c Composition
	if input == "" {
		return c, &ParseError{input, 0, ErrMalformedStructure, "empty composition"}
	}
	i := 0
	for i < len(input) {
		letter := input[i]
		if letter < 'A' || letter > 'Z' {
			return Composition{}, &ParseError{input, i, ErrMalformedStructure, fmt.Sprintf("unexpected character %q", letter)}
		}
		target, ok := c.target(letter)
		if !ok {
			return Composition{}, &ParseError{input, i, ErrUnknownResidue, string(letter)}
		}
		i++
		start := i
		for i < len(input) && input[i] >= '0' && input[i] <= '9' {
			i++
		}
		if start == i {
			return Composition{}, &ParseError{input, start, ErrMalformedStructure, "letter without a count"}
		}
		n, err := strconv.Atoi(input[start:i])
		if err != nil {
			return Composition{}, &ParseError{input, start, ErrMalformedStructure, "bad count"}
		}
		*target += n
	}
	return c, nil
}

func (c *Composition) target(letter byte) (*int, bool) {
	switch letter {
	case 'H':
		return &c.Hex, true
	case 'N':
		return &c.HexNAc, true
	case 'F':
		return &c.Fuc, true
	case 'S':
		return &c.Sia, true
	case 'E':
		return &c.SiaE, true
	case 'L':
		return &c.SiaL, true
	}
	return nil, false
}

// TotalSia returns the sialic acid count regardless of linkage labeling.
func (c Composition) TotalSia() int { return c.Sia + c.SiaE + c.SiaL }

// CheckSiaLinkage reports whether the composition supports linkage-aware
// derivation. Every sialic acid must be labeled E or L; a nonzero S count
// means at least one linkage is unknown.
func (c Composition) CheckSiaLinkage() error {
	if c.Sia > 0 {
		return fmt.Errorf("%w: %d sialic acids carry no linkage label", ErrMissingLinkage, c.Sia)
	}
	return nil
}
