package meta

import (
	"fmt"
	"sync"
)

// Table holds the derived meta-properties for a set of glycans, one row per
// glycan in input order. Boolean columns store 0 and 1 so they can be used
// directly as selector weights.
type Table struct {
	Mode       Mode
	SiaLinkage bool
	GlycanIDs  []string

	order   []Property
	numeric map[string][]float64
	strs    map[string][]string
}

func newTable(mode Mode, siaLinkage bool, ids []string) *Table {
	return &Table{
		Mode:       mode,
		SiaLinkage: siaLinkage,
		GlycanIDs:  ids,
		numeric:    make(map[string][]float64),
		strs:       make(map[string][]string),
	}
}

func (t *Table) addNumeric(p Property, col []float64) {
	t.order = append(t.order, p)
	t.numeric[p.Name] = col
}

func (t *Table) addString(p Property, col []string) {
	t.order = append(t.order, p)
	t.strs[p.Name] = col
}

// Properties returns the derived vocabulary in registration order.
func (t *Table) Properties() []Property { return t.order }

// Has reports whether the property was derived for this table.
func (t *Table) Has(name string) bool {
	_, ok := t.kind(name)
	return ok
}

// Kind returns the value kind of a derived property.
func (t *Table) Kind(name string) (ValueKind, error) {
	k, ok := t.kind(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}
	return k, nil
}

func (t *Table) kind(name string) (ValueKind, bool) {
	for _, p := range t.order {
		if p.Name == name {
			return p.Kind, true
		}
	}
	return 0, false
}

// Numeric returns the column for a boolean or integer property. Boolean
// columns come back as 0/1 weights.
func (t *Table) Numeric(name string) ([]float64, error) {
	col, ok := t.numeric[name]
	if !ok {
		if _, isStr := t.strs[name]; isStr {
			return nil, fmt.Errorf("meta-property %q is string-valued and can only be used in a comparison", name)
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}
	return col, nil
}

// Strings returns the column for a string property.
func (t *Table) Strings(name string) ([]string, error) {
	col, ok := t.strs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a string property", ErrUnknownProperty, name)
	}
	return col, nil
}

// Select returns a table restricted to the given glycan ids, in the
// given order. Every id must have a derived row.
func (t *Table) Select(ids []string) (*Table, error) {
	idx := make(map[string]int, len(t.GlycanIDs))
	for i, id := range t.GlycanIDs {
		idx[id] = i
	}
	rows := make([]int, len(ids))
	for k, id := range ids {
		i, ok := idx[id]
		if !ok {
			return nil, fmt.Errorf("no derived row for glycan %q", id)
		}
		rows[k] = i
	}

	out := newTable(t.Mode, t.SiaLinkage, append([]string(nil), ids...))
	for _, p := range t.order {
		if p.Kind == StringKind {
			col := t.strs[p.Name]
			sub := make([]string, len(rows))
			for k, i := range rows {
				sub[k] = col[i]
			}
			out.addString(p, sub)
			continue
		}
		col := t.numeric[p.Name]
		sub := make([]float64, len(rows))
		for k, i := range rows {
			sub[k] = col[i]
		}
		out.addNumeric(p, sub)
	}
	return out, nil
}

func boolWeight(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// parallelFor runs fn once per index with a goroutine each and waits for
// all of them. Writers must touch disjoint slots.
func parallelFor(n int, fn func(i int)) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			fn(i)
		}()
	}
	wg.Wait()
}
