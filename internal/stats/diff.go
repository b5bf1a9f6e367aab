package stats

import (
	"fmt"
	"math"
	"sort"

	"glytrait/internal/table"
)

// Test names reported in differential results.
const (
	TestMannWhitney   = "mannwhitneyu"
	TestKruskalWallis = "kruskal"
)

// DiffResult is one trait's comparison across sample groups.
type DiffResult struct {
	Trait     string
	Test      string
	Statistic float64 // U for two groups, H beyond
	P         float64
	PAdjusted float64
	CLES      float64 // two-group only, NaN otherwise
}

// Differential compares every trait between groups: Mann-Whitney U for
// two groups, Kruskal-Wallis for more. P-values are BH-adjusted across
// traits. Traits without enough observations in some group keep NaN
// statistics.
func Differential(tt *table.TraitTable, groups *table.Groups) ([]DiffResult, error) {
	levels := groups.Levels()
	if len(levels) < 2 {
		return nil, fmt.Errorf("differential analysis needs at least 2 groups, got %d", len(levels))
	}

	// Sample index sets per level, in level order.
	members := make([][]int, len(levels))
	levelIdx := make(map[string]int, len(levels))
	for i, lv := range levels {
		levelIdx[lv] = i
	}
	for i, sample := range tt.Samples {
		lv, ok := groups.Label(sample)
		if !ok {
			return nil, fmt.Errorf("sample %s has no group label", sample)
		}
		j := levelIdx[lv]
		members[j] = append(members[j], i)
	}

	testName := TestKruskalWallis
	if len(levels) == 2 {
		testName = TestMannWhitney
	}

	results := make([]DiffResult, len(tt.Traits))
	for j, name := range tt.Traits {
		col := tt.Column(j)
		split := make([][]float64, len(members))
		for g, idxs := range members {
			split[g] = make([]float64, len(idxs))
			for k, i := range idxs {
				split[g][k] = col[i]
			}
		}

		res := DiffResult{
			Trait:     name,
			Test:      testName,
			Statistic: math.NaN(),
			P:         math.NaN(),
			PAdjusted: math.NaN(),
			CLES:      math.NaN(),
		}
		if len(levels) == 2 {
			mwu, err := MannWhitneyU(split[0], split[1])
			if err == nil {
				res.Statistic = mwu.U
				res.P = mwu.P
				res.CLES = mwu.CLES
			}
		} else {
			kw, err := KruskalWallis(split...)
			if err == nil {
				res.Statistic = kw.H
				res.P = kw.P
			}
		}
		results[j] = res
	}

	pvals := make([]float64, len(results))
	for i := range results {
		pvals[i] = results[i].P
	}
	adjusted := AdjustBH(pvals)
	for i := range results {
		results[i].PAdjusted = adjusted[i]
	}

	sort.SliceStable(results, func(a, b int) bool {
		pa, pb := results[a].P, results[b].P
		if math.IsNaN(pb) {
			return !math.IsNaN(pa)
		}
		if math.IsNaN(pa) {
			return false
		}
		return pa < pb
	})
	return results, nil
}
