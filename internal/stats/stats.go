// Package stats holds the statistical machinery behind post-filtering and
// group comparisons: NaN-aware correlation, rank tests and p-value
// adjustment.
package stats

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrNotEnoughData flags comparisons without enough observations.
var ErrNotEnoughData = errors.New("not enough observations")

// Pearson correlates the pairwise complete observations of x and y.
// Fewer than two complete pairs give NaN.
func Pearson(x, y []float64) float64 {
	xs, ys := completePairs(x, y)
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}

// Spearman correlates the average ranks of the pairwise complete
// observations of x and y.
func Spearman(x, y []float64) float64 {
	xs, ys := completePairs(x, y)
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.Correlation(rankAvg(xs), rankAvg(ys), nil)
}

func completePairs(x, y []float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}

// rankAvg assigns 1-based ranks, ties sharing their average rank.
func rankAvg(v []float64) []float64 {
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return v[idx[a]] < v[idx[b]] })

	ranks := make([]float64, len(v))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && v[idx[j+1]] == v[idx[i]] {
			j++
		}
		avg := float64(i+j+2) / 2
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// tieTerm computes the tie correction sum over runs of equal values in a
// sorted slice.
func tieTerm(sorted []float64) float64 {
	term := 0.0
	for i := 0; i < len(sorted); {
		j := i
		for j+1 < len(sorted) && sorted[j+1] == sorted[i] {
			j++
		}
		t := float64(j - i + 1)
		term += t*t*t - t
		i = j + 1
	}
	return term
}

// MWUResult is a two-group Mann-Whitney U comparison.
type MWUResult struct {
	U    float64 // U statistic of the first group
	P    float64 // two-sided, tie-corrected normal approximation
	CLES float64 // common language effect size, P(x > y)
	N1   int
	N2   int
}

// MannWhitneyU compares two groups. NaN observations are dropped per
// group; each group needs at least one observation left.
func MannWhitneyU(x, y []float64) (MWUResult, error) {
	xs := dropNaN(x)
	ys := dropNaN(y)
	n1, n2 := len(xs), len(ys)
	if n1 == 0 || n2 == 0 {
		return MWUResult{}, ErrNotEnoughData
	}

	combined := make([]float64, 0, n1+n2)
	combined = append(combined, xs...)
	combined = append(combined, ys...)
	ranks := rankAvg(combined)

	r1 := 0.0
	for i := 0; i < n1; i++ {
		r1 += ranks[i]
	}
	u1 := r1 - float64(n1)*float64(n1+1)/2

	n := float64(n1 + n2)
	mu := float64(n1) * float64(n2) / 2

	sorted := append([]float64(nil), combined...)
	sort.Float64s(sorted)
	ties := tieTerm(sorted)
	sigma2 := float64(n1) * float64(n2) / 12 * (n + 1 - ties/(n*(n-1)))
	res := MWUResult{
		U:    u1,
		CLES: u1 / (float64(n1) * float64(n2)),
		N1:   n1,
		N2:   n2,
	}
	if sigma2 <= 0 {
		res.P = 1
		return res, nil
	}

	// Continuity-corrected z against the large-sample normal.
	z := u1 - mu
	switch {
	case z > 0:
		z -= 0.5
	case z < 0:
		z += 0.5
	}
	z /= math.Sqrt(sigma2)

	normal := distuv.Normal{Mu: 0, Sigma: 1}
	p := 2 * normal.Survival(math.Abs(z))
	if p > 1 {
		p = 1
	}
	res.P = p
	return res, nil
}

// KWResult is a multi-group Kruskal-Wallis comparison.
type KWResult struct {
	H      float64
	P      float64
	Groups int
}

// KruskalWallis compares two or more groups by ranks. NaN observations
// are dropped per group; every group needs at least one observation left.
func KruskalWallis(groups ...[]float64) (KWResult, error) {
	if len(groups) < 2 {
		return KWResult{}, ErrNotEnoughData
	}
	cleaned := make([][]float64, len(groups))
	total := 0
	for i, g := range groups {
		cleaned[i] = dropNaN(g)
		if len(cleaned[i]) == 0 {
			return KWResult{}, ErrNotEnoughData
		}
		total += len(cleaned[i])
	}

	combined := make([]float64, 0, total)
	for _, g := range cleaned {
		combined = append(combined, g...)
	}
	ranks := rankAvg(combined)

	n := float64(total)
	h := 0.0
	offset := 0
	for _, g := range cleaned {
		rsum := 0.0
		for i := range g {
			rsum += ranks[offset+i]
		}
		h += rsum * rsum / float64(len(g))
		offset += len(g)
	}
	h = 12/(n*(n+1))*h - 3*(n+1)

	sorted := append([]float64(nil), combined...)
	sort.Float64s(sorted)
	ties := tieTerm(sorted)
	res := KWResult{Groups: len(groups)}
	denom := 1 - ties/(n*n*n-n)
	if denom <= 0 {
		// every observation tied, no evidence of any difference
		res.H = 0
		res.P = 1
		return res, nil
	}
	res.H = h / denom

	chi2 := distuv.ChiSquared{K: float64(len(groups) - 1)}
	res.P = chi2.Survival(res.H)
	return res, nil
}

// AdjustBH applies the Benjamini-Hochberg step-up adjustment. NaN inputs
// stay NaN and do not count toward the number of tests.
func AdjustBH(p []float64) []float64 {
	idx := make([]int, 0, len(p))
	for i, v := range p {
		if !math.IsNaN(v) {
			idx = append(idx, i)
		}
	}
	adjusted := make([]float64, len(p))
	for i := range adjusted {
		adjusted[i] = math.NaN()
	}
	m := len(idx)
	if m == 0 {
		return adjusted
	}
	sort.Slice(idx, func(a, b int) bool { return p[idx[a]] < p[idx[b]] })

	minSoFar := math.Inf(1)
	for rank := m; rank >= 1; rank-- {
		i := idx[rank-1]
		v := p[i] * float64(m) / float64(rank)
		if v < minSoFar {
			minSoFar = v
		}
		if minSoFar > 1 {
			adjusted[i] = 1
		} else {
			adjusted[i] = minSoFar
		}
	}
	return adjusted
}

func dropNaN(v []float64) []float64 {
	out := make([]float64, 0, len(v))
	for _, x := range v {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}
