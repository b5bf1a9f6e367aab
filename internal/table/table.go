// Package table defines the tabular records handed between pipeline
// stages: glycan abundance matrices, derived trait matrices and sample
// group assignments. Missing measurements and undefined trait values are
// NaN throughout.
package table

import (
	"fmt"
	"math"
)

// AbundanceTable is samples by glycans. Values[i][j] is the abundance of
// glycan j in sample i.
type AbundanceTable struct {
	Samples []string
	Glycans []string
	Values  [][]float64

	glycanIdx map[string]int
}

// NewAbundanceTable wires up an abundance matrix. The value matrix must
// match the sample and glycan counts; a mismatch is a programming error.
func NewAbundanceTable(samples, glycans []string, values [][]float64) *AbundanceTable {
	if len(values) != len(samples) {
		panic(fmt.Sprintf("table: %d value rows for %d samples", len(values), len(samples)))
	}
	for i, row := range values {
		if len(row) != len(glycans) {
			panic(fmt.Sprintf("table: row %d has %d values for %d glycans", i, len(row), len(glycans)))
		}
	}
	t := &AbundanceTable{Samples: samples, Glycans: glycans, Values: values}
	t.reindex()
	return t
}

func (t *AbundanceTable) reindex() {
	t.glycanIdx = make(map[string]int, len(t.Glycans))
	for j, g := range t.Glycans {
		t.glycanIdx[g] = j
	}
}

// GlycanIndex returns the column position of a glycan id.
func (t *AbundanceTable) GlycanIndex(id string) (int, bool) {
	j, ok := t.glycanIdx[id]
	return j, ok
}

// Column copies the values of one glycan across all samples.
func (t *AbundanceTable) Column(j int) []float64 {
	col := make([]float64, len(t.Samples))
	for i := range t.Values {
		col[i] = t.Values[i][j]
	}
	return col
}

// Clone deep-copies the table so a stage can rewrite values freely.
func (t *AbundanceTable) Clone() *AbundanceTable {
	values := make([][]float64, len(t.Values))
	for i, row := range t.Values {
		values[i] = append([]float64(nil), row...)
	}
	return NewAbundanceTable(
		append([]string(nil), t.Samples...),
		append([]string(nil), t.Glycans...),
		values,
	)
}

// SelectGlycans returns a new table keeping only the given column
// positions, in the given order.
func (t *AbundanceTable) SelectGlycans(keep []int) *AbundanceTable {
	glycans := make([]string, len(keep))
	for k, j := range keep {
		glycans[k] = t.Glycans[j]
	}
	values := make([][]float64, len(t.Values))
	for i, row := range t.Values {
		values[i] = make([]float64, len(keep))
		for k, j := range keep {
			values[i][k] = row[j]
		}
	}
	return NewAbundanceTable(append([]string(nil), t.Samples...), glycans, values)
}

// TraitTable is samples by derived traits.
type TraitTable struct {
	Samples []string
	Traits  []string
	Values  [][]float64

	traitIdx map[string]int
}

// NewTraitTable wires up a trait matrix with the same shape rules as
// NewAbundanceTable.
func NewTraitTable(samples, traits []string, values [][]float64) *TraitTable {
	if len(values) != len(samples) {
		panic(fmt.Sprintf("table: %d value rows for %d samples", len(values), len(samples)))
	}
	for i, row := range values {
		if len(row) != len(traits) {
			panic(fmt.Sprintf("table: row %d has %d values for %d traits", i, len(row), len(traits)))
		}
	}
	t := &TraitTable{Samples: samples, Traits: traits, Values: values}
	t.traitIdx = make(map[string]int, len(traits))
	for j, name := range traits {
		t.traitIdx[name] = j
	}
	return t
}

// TraitIndex returns the column position of a trait name.
func (t *TraitTable) TraitIndex(name string) (int, bool) {
	j, ok := t.traitIdx[name]
	return j, ok
}

// Column copies the values of one trait across all samples.
func (t *TraitTable) Column(j int) []float64 {
	col := make([]float64, len(t.Samples))
	for i := range t.Values {
		col[i] = t.Values[i][j]
	}
	return col
}

// SelectTraits returns a new table keeping only the named traits, in the
// given order. Unknown names are reported, not skipped.
func (t *TraitTable) SelectTraits(names []string) (*TraitTable, error) {
	keep := make([]int, len(names))
	for k, name := range names {
		j, ok := t.traitIdx[name]
		if !ok {
			return nil, fmt.Errorf("table: no trait %q", name)
		}
		keep[k] = j
	}
	values := make([][]float64, len(t.Values))
	for i, row := range t.Values {
		values[i] = make([]float64, len(keep))
		for k, j := range keep {
			values[i][k] = row[j]
		}
	}
	return NewTraitTable(append([]string(nil), t.Samples...), append([]string(nil), names...), values), nil
}

// Groups assigns samples to experimental groups.
type Groups struct {
	bySample map[string]string
	levels   []string
}

// NewGroups pairs samples with group labels. Duplicate samples are
// rejected; levels keep first-seen order.
func NewGroups(samples, labels []string) (*Groups, error) {
	if len(samples) != len(labels) {
		return nil, fmt.Errorf("table: %d samples for %d group labels", len(samples), len(labels))
	}
	g := &Groups{bySample: make(map[string]string, len(samples))}
	seen := make(map[string]bool)
	for i, s := range samples {
		if _, dup := g.bySample[s]; dup {
			return nil, fmt.Errorf("table: sample %q assigned to a group twice", s)
		}
		g.bySample[s] = labels[i]
		if !seen[labels[i]] {
			seen[labels[i]] = true
			g.levels = append(g.levels, labels[i])
		}
	}
	return g, nil
}

// Label returns the group of a sample.
func (g *Groups) Label(sample string) (string, bool) {
	l, ok := g.bySample[sample]
	return l, ok
}

// Levels returns the distinct group labels in first-seen order.
func (g *Groups) Levels() []string { return g.levels }

// NumSamples returns how many samples carry a group label.
func (g *Groups) NumSamples() int { return len(g.bySample) }

// IsMissing reports whether a cell holds no value.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Missing is the cell value for absent measurements and undefined traits.
func Missing() float64 { return math.NaN() }
