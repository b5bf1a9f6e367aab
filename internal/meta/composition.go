package meta

import (
	"fmt"

	"glytrait/internal/glycan"
)

// compRecord carries the composition-mode approximations. Galactose and
// mannose counts are heuristic: hexoses beyond the three core mannoses are
// read as galactoses when the HexNAc count allows enough antennae, and
// hybrid glycans are knowingly treated as complex.
type compRecord struct {
	gal           int
	man           int
	fuc           int
	sia           int
	a23           int
	a26           int
	highBranching bool
}

type compProp struct {
	Property
	num func(*compRecord) float64
}

var compProps = []compProp{
	{Property{"isHighBranching", BoolKind, false}, func(r *compRecord) float64 { return boolWeight(r.highBranching) }},
	{Property{"isLowBranching", BoolKind, false}, func(r *compRecord) float64 { return boolWeight(!r.highBranching) }},
	{Property{"nM", IntKind, false}, func(r *compRecord) float64 { return float64(r.man) }},
	{Property{"totalGal", IntKind, false}, func(r *compRecord) float64 { return float64(r.gal) }},
	{Property{"totalFuc", IntKind, false}, func(r *compRecord) float64 { return float64(r.fuc) }},
	{Property{"totalSia", IntKind, false}, func(r *compRecord) float64 { return float64(r.sia) }},
	{Property{"hasGal", BoolKind, false}, func(r *compRecord) float64 { return boolWeight(r.gal > 0) }},
	{Property{"noGal", BoolKind, false}, func(r *compRecord) float64 { return boolWeight(r.gal == 0) }},
	{Property{"hasFuc", BoolKind, false}, func(r *compRecord) float64 { return boolWeight(r.fuc > 0) }},
	{Property{"noFuc", BoolKind, false}, func(r *compRecord) float64 { return boolWeight(r.fuc == 0) }},
	{Property{"hasSia", BoolKind, false}, func(r *compRecord) float64 { return boolWeight(r.sia > 0) }},
	{Property{"noSia", BoolKind, false}, func(r *compRecord) float64 { return boolWeight(r.sia == 0) }},
	{Property{"a23Sia", IntKind, true}, func(r *compRecord) float64 { return float64(r.a23) }},
	{Property{"a26Sia", IntKind, true}, func(r *compRecord) float64 { return float64(r.a26) }},
	{Property{"hasa23Sia", BoolKind, true}, func(r *compRecord) float64 { return boolWeight(r.a23 > 0) }},
	{Property{"hasa26Sia", BoolKind, true}, func(r *compRecord) float64 { return boolWeight(r.a26 > 0) }},
	{Property{"noa23Sia", BoolKind, true}, func(r *compRecord) float64 { return boolWeight(r.a23 == 0) }},
	{Property{"noa26Sia", BoolKind, true}, func(r *compRecord) float64 { return boolWeight(r.a26 == 0) }},
}

// DeriveCompositions builds the composition-mode table. ids and comps run
// in parallel and must have the same length.
func DeriveCompositions(ids []string, comps []glycan.Composition, siaLinkage bool) (*Table, []glycan.ItemError) {
	if len(ids) != len(comps) {
		panic(fmt.Sprintf("meta: %d ids for %d compositions", len(ids), len(comps)))
	}
	records := make([]compRecord, len(comps))
	errs := make([]error, len(comps))
	parallelFor(len(comps), func(i int) {
		records[i], errs[i] = deriveComposition(comps[i], siaLinkage)
	})

	var itemErrs []glycan.ItemError
	var keep []int
	kept := make([]string, 0, len(ids))
	for i := range comps {
		if errs[i] != nil {
			itemErrs = append(itemErrs, glycan.ItemError{ID: ids[i], Err: errs[i]})
			continue
		}
		keep = append(keep, i)
		kept = append(kept, ids[i])
	}

	t := newTable(CompositionMode, siaLinkage, kept)
	for _, p := range compProps {
		if p.SiaLinkage && !siaLinkage {
			continue
		}
		col := make([]float64, len(keep))
		for j, i := range keep {
			col[j] = p.num(&records[i])
		}
		t.addNumeric(p.Property, col)
	}
	return t, itemErrs
}

func deriveComposition(c glycan.Composition, siaLinkage bool) (compRecord, error) {
	if siaLinkage {
		if err := c.CheckSiaLinkage(); err != nil {
			return compRecord{}, err
		}
	}
	gal := 0
	if c.Hex >= 4 && c.HexNAc >= c.Hex-1 {
		gal = c.Hex - 3
	}
	r := compRecord{
		gal:           gal,
		man:           c.Hex - gal,
		fuc:           c.Fuc,
		sia:           c.TotalSia(),
		highBranching: c.HexNAc > 4,
	}
	if siaLinkage {
		r.a23 = c.SiaL
		r.a26 = c.SiaE
	}
	return r, nil
}
