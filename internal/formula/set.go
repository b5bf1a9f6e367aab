package formula

import "fmt"

// Set is the ordered formula collection a run evaluates. Built-ins come
// first and own their names; custom definitions fill in behind them.
type Set struct {
	formulas []*Formula
	byName   map[string]*Formula
}

// NewSet merges built-in and custom formulas. A custom formula that
// reuses a taken name is dropped with a warning, so built-ins always win
// and the first custom occurrence wins within the custom list. Formulas
// that touch linkage-only properties are excluded unless siaLinkage is
// set.
func NewSet(builtins, customs []*Formula, siaLinkage bool) (*Set, []string) {
	s := &Set{byName: make(map[string]*Formula)}
	var warnings []string
	add := func(f *Formula, origin string) {
		if !siaLinkage && f.SiaLinkage() {
			return
		}
		if _, taken := s.byName[f.Name]; taken {
			warnings = append(warnings, fmt.Sprintf("duplicate formula %q from %s ignored", f.Name, origin))
			return
		}
		s.byName[f.Name] = f
		s.formulas = append(s.formulas, f)
	}
	for _, f := range builtins {
		add(f, "built-ins")
	}
	for _, f := range customs {
		add(f, "custom file")
	}
	return s, warnings
}

// Formulas returns the set in registration order.
func (s *Set) Formulas() []*Formula { return s.formulas }

// Get looks a formula up by name.
func (s *Set) Get(name string) (*Formula, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Len returns the number of formulas in the set.
func (s *Set) Len() int { return len(s.formulas) }
