// Package trait binds formula sets to derived meta-properties and
// evaluates them against abundance tables.
package trait

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"

	"glytrait/internal/formula"
	"glytrait/internal/meta"
	"glytrait/internal/table"
)

// Bound is one formula resolved against a meta-property table: the
// selector products collapsed into per-glycan weight vectors.
type Bound struct {
	Formula    *formula.Formula
	NumWeights []float64
	DenWeights []float64
}

// BoundSet carries the bound formulas plus the glycan order they were
// resolved against.
type BoundSet struct {
	Bounds    []*Bound
	glycanIDs []string
}

// Bind resolves formulas against the table. Every selector must name a
// derived property with a compatible value kind; the first offending
// formula aborts the bind.
func Bind(formulas []*formula.Formula, tbl *meta.Table) (*BoundSet, error) {
	bs := &BoundSet{glycanIDs: tbl.GlycanIDs}
	for _, f := range formulas {
		num, err := weights(f.Numerator, tbl)
		if err != nil {
			return nil, fmt.Errorf("binding formula %s: %w", f.Name, err)
		}
		den, err := weights(f.Denominator, tbl)
		if err != nil {
			return nil, fmt.Errorf("binding formula %s: %w", f.Name, err)
		}
		bs.Bounds = append(bs.Bounds, &Bound{Formula: f, NumWeights: num, DenWeights: den})
	}
	return bs, nil
}

// weights multiplies the selector vectors together. Booleans contribute
// 0/1, integers their value, comparisons an indicator, the dot all ones.
func weights(sels []formula.Selector, tbl *meta.Table) ([]float64, error) {
	n := len(tbl.GlycanIDs)
	acc := make([]float64, n)
	for i := range acc {
		acc[i] = 1
	}
	for _, s := range sels {
		switch s.Kind {
		case formula.SelectAll:
			// all ones, nothing to do
		case formula.SelectConstant:
			for i := range acc {
				acc[i] *= s.Constant
			}
		case formula.SelectProperty:
			col, err := tbl.Numeric(s.Property)
			if err != nil {
				return nil, err
			}
			floats.Mul(acc, col)
		case formula.SelectCompare:
			ind, err := compareWeights(s, tbl)
			if err != nil {
				return nil, err
			}
			floats.Mul(acc, ind)
		}
	}
	return acc, nil
}

func compareWeights(s formula.Selector, tbl *meta.Table) ([]float64, error) {
	kind, err := tbl.Kind(s.Property)
	if err != nil {
		return nil, err
	}
	switch kind {
	case meta.StringKind:
		if s.Op.Ordered() {
			return nil, fmt.Errorf("property %q is string-valued and cannot be ordered", s.Property)
		}
		if s.Literal.Kind != formula.StringLit {
			return nil, fmt.Errorf("property %q compares against strings only", s.Property)
		}
		col, err := tbl.Strings(s.Property)
		if err != nil {
			return nil, err
		}
		ind := make([]float64, len(col))
		for i, v := range col {
			match := v == s.Literal.Str
			if s.Op == formula.OpNe {
				match = !match
			}
			if match {
				ind[i] = 1
			}
		}
		return ind, nil
	case meta.BoolKind:
		var want float64
		switch s.Literal.Kind {
		case formula.BoolLit:
			if s.Op.Ordered() {
				return nil, fmt.Errorf("property %q cannot be ordered against a boolean", s.Property)
			}
			if s.Literal.Bool {
				want = 1
			}
		case formula.NumberLit:
			want = s.Literal.Num
		default:
			return nil, fmt.Errorf("property %q compares against booleans or numbers", s.Property)
		}
		return numericIndicator(tbl, s.Property, s.Op, want)
	case meta.IntKind:
		if s.Literal.Kind != formula.NumberLit {
			return nil, fmt.Errorf("property %q compares against numbers only", s.Property)
		}
		return numericIndicator(tbl, s.Property, s.Op, s.Literal.Num)
	}
	return nil, fmt.Errorf("property %q has an unsupported value kind", s.Property)
}

func numericIndicator(tbl *meta.Table, prop string, op formula.CompareOp, want float64) ([]float64, error) {
	col, err := tbl.Numeric(prop)
	if err != nil {
		return nil, err
	}
	ind := make([]float64, len(col))
	for i, v := range col {
		var match bool
		switch op {
		case formula.OpEq:
			match = v == want
		case formula.OpNe:
			match = v != want
		case formula.OpGt:
			match = v > want
		case formula.OpGe:
			match = v >= want
		case formula.OpLt:
			match = v < want
		case formula.OpLe:
			match = v <= want
		}
		if match {
			ind[i] = 1
		}
	}
	return ind, nil
}

// Evaluate computes every bound trait for every sample. The abundance
// columns must be exactly the glycans the formulas were bound against, in
// the same order. A zero denominator makes the cell NaN, which keeps
// "undefined" apart from a genuine zero.
func Evaluate(bs *BoundSet, ab *table.AbundanceTable) (*table.TraitTable, error) {
	if len(ab.Glycans) != len(bs.glycanIDs) {
		return nil, fmt.Errorf("trait: abundance has %d glycans, formulas were bound against %d", len(ab.Glycans), len(bs.glycanIDs))
	}
	for j, id := range bs.glycanIDs {
		if ab.Glycans[j] != id {
			return nil, fmt.Errorf("trait: abundance column %d is %q, bound against %q", j, ab.Glycans[j], id)
		}
	}

	names := make([]string, len(bs.Bounds))
	values := make([][]float64, len(ab.Samples))
	for i := range values {
		values[i] = make([]float64, len(bs.Bounds))
	}
	parallelFor(len(bs.Bounds), func(j int) {
		b := bs.Bounds[j]
		names[j] = b.Formula.Name
		for i, row := range ab.Values {
			num := floats.Dot(row, b.NumWeights)
			den := floats.Dot(row, b.DenWeights)
			if den == 0 {
				values[i][j] = table.Missing()
				continue
			}
			values[i][j] = b.Formula.Coefficient * num / den
		}
	})
	return table.NewTraitTable(append([]string(nil), ab.Samples...), names, values), nil
}

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
