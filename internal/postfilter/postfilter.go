// Package postfilter prunes a derived trait table. Traits that carry no
// information across the samples go first; then child traits collinear
// with an already retained parent are removed, so the surviving table
// keeps the most general formulation of each family.
package postfilter

import (
	"fmt"
	"math"
	"strings"

	"glytrait/internal/formula"
	"glytrait/internal/stats"
	"glytrait/internal/table"
)

// Method selects the correlation flavor for the collinearity filter.
type Method int

const (
	Pearson Method = iota
	Spearman
)

func (m Method) String() string {
	if m == Spearman {
		return "spearman"
	}
	return "pearson"
}

// ParseMethod reads a correlation method name.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "pearson":
		return Pearson, nil
	case "spearman":
		return Spearman, nil
	}
	return 0, fmt.Errorf("unknown correlation method %q", s)
}

// Apply runs the invalid-trait filter followed by the collinearity
// filter.
func Apply(formulas []*formula.Formula, tt *table.TraitTable, threshold float64, method Method) *table.TraitTable {
	return FilterCollinearity(formulas, FilterInvalid(tt), threshold, method)
}

// FilterInvalid drops traits that are NaN for every sample or hold a
// single distinct value.
func FilterInvalid(tt *table.TraitTable) *table.TraitTable {
	keep := make([]string, 0, len(tt.Traits))
	for j, name := range tt.Traits {
		if informative(tt.Column(j)) {
			keep = append(keep, name)
		}
	}
	return mustSelect(tt, keep)
}

// informative needs at least two distinct non-NaN values.
func informative(col []float64) bool {
	var first float64
	seen := false
	for _, v := range col {
		if math.IsNaN(v) {
			continue
		}
		if !seen {
			first = v
			seen = true
			continue
		}
		if v != first {
			return true
		}
	}
	return false
}

// FilterCollinearity drops every trait that refines an already retained
// trait and correlates with it at or above threshold. Traits are visited
// in table order, so earlier definitions win over their children. A
// negative threshold disables the filter.
func FilterCollinearity(formulas []*formula.Formula, tt *table.TraitTable, threshold float64, method Method) *table.TraitTable {
	if threshold < 0 {
		return tt
	}
	byName := make(map[string]*formula.Formula, len(formulas))
	for _, f := range formulas {
		byName[f.Name] = f
	}

	var retained []int
	for j, name := range tt.Traits {
		drop := false
		if f := byName[name]; f != nil {
			col := tt.Column(j)
			for _, i := range retained {
				parent := byName[tt.Traits[i]]
				if parent == nil || !childOf(f, parent) {
					continue
				}
				r := correlation(col, tt.Column(i), method)
				if !math.IsNaN(r) && math.Abs(r) >= threshold {
					drop = true
					break
				}
			}
		}
		if !drop {
			retained = append(retained, j)
		}
	}

	keep := make([]string, len(retained))
	for k, j := range retained {
		keep[k] = tt.Traits[j]
	}
	return mustSelect(tt, keep)
}

// childOf reports whether child refines parent: the same ratio narrowed
// by exactly one extra selector on both sides, or one of the named
// antennary sialylation families (A2S refines CS and so on).
func childOf(child, parent *formula.Formula) bool {
	if child.Name == parent.Name {
		return false
	}
	if familyChild(child.Name, parent.Name) {
		return true
	}
	cn, cd := child.NumeratorSet(), child.DenominatorSet()
	pn, pd := parent.NumeratorSet(), parent.DenominatorSet()
	if !subset(pn, cn) || !subset(pd, cd) {
		return false
	}
	extraNum := diff(cn, pn)
	extraDen := diff(cd, pd)
	return len(extraNum) == 1 && sameSet(extraNum, extraDen)
}

func familyChild(child, parent string) bool {
	if len(child) != 3 || child[0] != 'A' || child[1] < '1' || child[1] > '4' {
		return false
	}
	switch child[2] {
	case 'S', 'E', 'L':
		return parent == "C"+string(child[2])
	}
	return false
}

// correlation treats element-wise equal columns as perfectly correlated,
// so constant duplicates are caught even where Pearson is undefined.
func correlation(x, y []float64, method Method) float64 {
	if equalColumns(x, y) {
		return 1
	}
	if method == Spearman {
		return stats.Spearman(x, y)
	}
	return stats.Pearson(x, y)
}

func equalColumns(x, y []float64) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		switch {
		case math.IsNaN(x[i]) && math.IsNaN(y[i]):
		case x[i] == y[i]:
		default:
			return false
		}
	}
	return true
}

func subset(a, b map[string]bool) bool {
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func diff(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for k := range a {
		if !b[k] {
			out[k] = true
		}
	}
	return out
}

func sameSet(a, b map[string]bool) bool {
	return len(a) == len(b) && subset(a, b)
}

func mustSelect(tt *table.TraitTable, names []string) *table.TraitTable {
	out, err := tt.SelectTraits(names)
	if err != nil {
		panic(err)
	}
	return out
}
