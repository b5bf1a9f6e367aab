package glycan

import (
	"errors"
	"fmt"
)

// Sentinel kinds for glycan parsing and derivation failures. Concrete
// errors wrap one of these so callers can classify with errors.Is.
var (
	ErrMalformedStructure = errors.New("malformed structure")
	ErrUnknownResidue     = errors.New("unknown residue")
	ErrMissingLinkage     = errors.New("missing sialic acid linkage")
)

// ParseError reports why a single glycan string was rejected.
type ParseError struct {
	Input  string
	Offset int // byte position into Input
	Kind   error
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v at offset %d in %q: %s", e.Kind, e.Offset, e.Input, e.Detail)
}

func (e *ParseError) Unwrap() error { return e.Kind }

// ItemError ties a per-glycan failure to the glycan id it came from, so
// batch operations can report every bad item instead of the first.
type ItemError struct {
	ID  string
	Err error
}

func (e ItemError) Error() string { return fmt.Sprintf("glycan %s: %v", e.ID, e.Err) }

func (e ItemError) Unwrap() error { return e.Err }
