// Package preprocess cleans an abundance table before trait derivation:
// sparse glycans are dropped, the remaining gaps are imputed and every
// sample row is normalized to unit total.
package preprocess

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"glytrait/internal/table"
)

// ImputeMethod selects how missing abundances are filled.
type ImputeMethod int

const (
	ImputeZero ImputeMethod = iota
	ImputeMin
	ImputeLOD // one fifth of the observed minimum
	ImputeMean
	ImputeMedian
)

func (m ImputeMethod) String() string {
	switch m {
	case ImputeZero:
		return "zero"
	case ImputeMin:
		return "min"
	case ImputeLOD:
		return "lod"
	case ImputeMean:
		return "mean"
	case ImputeMedian:
		return "median"
	}
	return fmt.Sprintf("ImputeMethod(%d)", int(m))
}

// ParseImputeMethod reads an imputation method name.
func ParseImputeMethod(s string) (ImputeMethod, error) {
	switch strings.ToLower(s) {
	case "zero":
		return ImputeZero, nil
	case "min":
		return ImputeMin, nil
	case "lod":
		return ImputeLOD, nil
	case "mean":
		return ImputeMean, nil
	case "median":
		return ImputeMedian, nil
	}
	return 0, fmt.Errorf("unknown imputation method %q", s)
}

// Options configures the preprocessing stages.
type Options struct {
	MaxMissingRatio float64 // glycans with more missing values are dropped
	Impute          ImputeMethod
}

// Run drops sparse glycans, imputes whatever gaps remain and normalizes
// each sample row. The input table is left untouched.
func Run(ab *table.AbundanceTable, opts Options) (*table.AbundanceTable, error) {
	out := FilterMissing(ab, opts.MaxMissingRatio)
	if len(out.Glycans) == 0 {
		return nil, fmt.Errorf("preprocess: no glycan passed the missing-value filter (ratio %.2f)", opts.MaxMissingRatio)
	}
	out = Impute(out, opts.Impute)
	return Normalize(out)
}

// FilterMissing drops glycan columns whose fraction of missing values
// exceeds maxRatio. A ratio of 1 keeps every column.
func FilterMissing(ab *table.AbundanceTable, maxRatio float64) *table.AbundanceTable {
	keep := make([]int, 0, len(ab.Glycans))
	for j := range ab.Glycans {
		missing := 0
		for i := range ab.Samples {
			if table.IsMissing(ab.Values[i][j]) {
				missing++
			}
		}
		if float64(missing) <= maxRatio*float64(len(ab.Samples)) {
			keep = append(keep, j)
		}
	}
	return ab.SelectGlycans(keep)
}

// Impute fills missing cells column by column. Columns with no observed
// value at all stay missing.
func Impute(ab *table.AbundanceTable, method ImputeMethod) *table.AbundanceTable {
	out := ab.Clone()
	for j := range out.Glycans {
		var obs []float64
		for i := range out.Samples {
			if v := out.Values[i][j]; !table.IsMissing(v) {
				obs = append(obs, v)
			}
		}
		if len(obs) == 0 {
			continue
		}
		fill := fillValue(obs, method)
		for i := range out.Samples {
			if table.IsMissing(out.Values[i][j]) {
				out.Values[i][j] = fill
			}
		}
	}
	return out
}

func fillValue(obs []float64, method ImputeMethod) float64 {
	switch method {
	case ImputeZero:
		return 0
	case ImputeMin:
		return floats.Min(obs)
	case ImputeLOD:
		return floats.Min(obs) / 5
	case ImputeMean:
		return stat.Mean(obs, nil)
	case ImputeMedian:
		return median(obs)
	}
	panic(fmt.Sprintf("preprocess: unknown impute method %d", method))
}

// median takes the mean of the two middle values for even counts.
func median(obs []float64) float64 {
	s := append([]float64(nil), obs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Normalize scales every sample row to sum to one, skipping missing
// cells. A sample with zero total abundance is rejected.
func Normalize(ab *table.AbundanceTable) (*table.AbundanceTable, error) {
	out := ab.Clone()
	for i, sample := range out.Samples {
		sum := 0.0
		for _, v := range out.Values[i] {
			if !table.IsMissing(v) {
				sum += v
			}
		}
		if sum == 0 {
			return nil, fmt.Errorf("preprocess: sample %s has zero total abundance", sample)
		}
		for j, v := range out.Values[i] {
			if !table.IsMissing(v) {
				out.Values[i][j] = v / sum
			}
		}
	}
	return out, nil
}
