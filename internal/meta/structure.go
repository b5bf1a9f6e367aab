package meta

import (
	"fmt"

	"glytrait/internal/glycan"
)

// GlycanType classifies an N-glycan topology.
type GlycanType int

const (
	Complex GlycanType = iota
	HighMannose
	Hybrid
)

func (t GlycanType) String() string {
	switch t {
	case Complex:
		return "complex"
	case HighMannose:
		return "highmannose"
	case Hybrid:
		return "hybrid"
	}
	return "unknown"
}

// structRecord carries everything derived from one structure. The property
// registry below maps these fields onto vocabulary columns.
type structRecord struct {
	typ        GlycanType
	bisecting  bool
	antennae   int
	man        int
	gal        int
	fuc        int
	coreFuc    int
	sia        int
	a23        int
	a26        int
	polyLacNAc bool
}

type structProp struct {
	Property
	num func(*structRecord) float64
	str func(*structRecord) string
}

var structProps = []structProp{
	{Property: Property{"type", StringKind, false}, str: func(r *structRecord) string { return r.typ.String() }},
	{Property: Property{"isComplex", BoolKind, false}, num: func(r *structRecord) float64 { return boolWeight(r.typ == Complex) }},
	{Property: Property{"isHighMannose", BoolKind, false}, num: func(r *structRecord) float64 { return boolWeight(r.typ == HighMannose) }},
	{Property: Property{"isHybrid", BoolKind, false}, num: func(r *structRecord) float64 { return boolWeight(r.typ == Hybrid) }},
	{Property: Property{"isBisecting", BoolKind, false}, num: func(r *structRecord) float64 { return boolWeight(r.bisecting) }},
	{Property: Property{"is1Antennary", BoolKind, false}, num: func(r *structRecord) float64 { return boolWeight(r.antennae == 1) }},
	{Property: Property{"is2Antennary", BoolKind, false}, num: func(r *structRecord) float64 { return boolWeight(r.antennae == 2) }},
	{Property: Property{"is3Antennary", BoolKind, false}, num: func(r *structRecord) float64 { return boolWeight(r.antennae == 3) }},
	{Property: Property{"is4Antennary", BoolKind, false}, num: func(r *structRecord) float64 { return boolWeight(r.antennae == 4) }},
	{Property: Property{"nAnt", IntKind, false}, num: func(r *structRecord) float64 { return float64(r.antennae) }},
	{Property: Property{"nM", IntKind, false}, num: func(r *structRecord) float64 { return float64(r.man) }},
	{Property: Property{"totalGal", IntKind, false}, num: func(r *structRecord) float64 { return float64(r.gal) }},
	{Property: Property{"totalFuc", IntKind, false}, num: func(r *structRecord) float64 { return float64(r.fuc) }},
	{Property: Property{"coreFuc", IntKind, false}, num: func(r *structRecord) float64 { return float64(r.coreFuc) }},
	{Property: Property{"antennaryFuc", IntKind, false}, num: func(r *structRecord) float64 { return float64(r.fuc - r.coreFuc) }},
	{Property: Property{"hasFuc", BoolKind, false}, num: func(r *structRecord) float64 { return boolWeight(r.fuc > 0) }},
	{Property: Property{"noFuc", BoolKind, false}, num: func(r *structRecord) float64 { return boolWeight(r.fuc == 0) }},
	{Property: Property{"hasAntennaryFuc", BoolKind, false}, num: func(r *structRecord) float64 { return boolWeight(r.fuc-r.coreFuc > 0) }},
	{Property: Property{"totalSia", IntKind, false}, num: func(r *structRecord) float64 { return float64(r.sia) }},
	{Property: Property{"hasSia", BoolKind, false}, num: func(r *structRecord) float64 { return boolWeight(r.sia > 0) }},
	{Property: Property{"noSia", BoolKind, false}, num: func(r *structRecord) float64 { return boolWeight(r.sia == 0) }},
	{Property: Property{"hasPolyLacNAc", BoolKind, false}, num: func(r *structRecord) float64 { return boolWeight(r.polyLacNAc) }},
	{Property: Property{"a23Sia", IntKind, true}, num: func(r *structRecord) float64 { return float64(r.a23) }},
	{Property: Property{"a26Sia", IntKind, true}, num: func(r *structRecord) float64 { return float64(r.a26) }},
	{Property: Property{"hasa23Sia", BoolKind, true}, num: func(r *structRecord) float64 { return boolWeight(r.a23 > 0) }},
	{Property: Property{"hasa26Sia", BoolKind, true}, num: func(r *structRecord) float64 { return boolWeight(r.a26 > 0) }},
	{Property: Property{"noa23Sia", BoolKind, true}, num: func(r *structRecord) float64 { return boolWeight(r.a23 == 0) }},
	{Property: Property{"noa26Sia", BoolKind, true}, num: func(r *structRecord) float64 { return boolWeight(r.a26 == 0) }},
}

// DeriveStructures builds the structure-mode table. Rows keep the input
// order; glycans that fail derivation are reported in errs and omitted.
func DeriveStructures(glycans []*glycan.Structure, siaLinkage bool) (*Table, []glycan.ItemError) {
	records := make([]structRecord, len(glycans))
	errs := make([]error, len(glycans))
	parallelFor(len(glycans), func(i int) {
		records[i], errs[i] = deriveStructure(glycans[i], siaLinkage)
	})

	var itemErrs []glycan.ItemError
	var keep []int
	ids := make([]string, 0, len(glycans))
	for i, g := range glycans {
		if errs[i] != nil {
			itemErrs = append(itemErrs, glycan.ItemError{ID: g.Name, Err: errs[i]})
			continue
		}
		keep = append(keep, i)
		ids = append(ids, g.Name)
	}

	t := newTable(StructureMode, siaLinkage, ids)
	for _, p := range structProps {
		if p.SiaLinkage && !siaLinkage {
			continue
		}
		if p.Kind == StringKind {
			col := make([]string, len(keep))
			for j, i := range keep {
				col[j] = p.str(&records[i])
			}
			t.addString(p.Property, col)
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

func deriveStructure(g *glycan.Structure, siaLinkage bool) (structRecord, error) {
	r := structRecord{
		man: g.Count(glycan.Man),
		gal: g.Count(glycan.Gal),
		fuc: g.Count(glycan.Fuc),
		sia: g.Count(glycan.Neu5Ac) + g.Count(glycan.Neu5Gc),
	}

	var err error
	if r.bisecting, err = isBisecting(g); err != nil {
		return r, err
	}
	if r.typ, err = glycanType(g, r.bisecting); err != nil {
		return r, err
	}
	if r.antennae, err = antennaeCount(g, r.typ); err != nil {
		return r, err
	}
	r.coreFuc = coreFucCount(g)
	r.polyLacNAc = hasPolyLacNAc(g)
	if siaLinkage {
		if r.a23, r.a26, err = siaLinkageCounts(g); err != nil {
			return r, err
		}
	}
	return r, nil
}

// isBisecting checks the branching core mannose, the third node of a
// fucose-skipping breadth-first walk. A bisecting GlcNAc gives it a fourth
// link on top of its parent and the two arms.
func isBisecting(g *glycan.Structure) (bool, error) {
	order := g.BreadthFirst(glycan.Fuc)
	if len(order) < 3 {
		return false, fmt.Errorf("%w: %q lacks the N-glycan core", glycan.ErrMalformedStructure, g.Name)
	}
	return g.LinkCount(order[2]) == 4, nil
}

// glycanType runs the classification chain. Order matters: the bare
// GlcNAc2Man3 core and bisected glycans count as complex before the
// GlcNAc tally is consulted, and a mono-antennary glycan is complex even
// with three GlcNAc.
func glycanType(g *glycan.Structure, bisecting bool) (GlycanType, error) {
	if g.NumNodes() == 5 && g.Count(glycan.GlcNAc) == 2 && g.Count(glycan.Man) == 3 {
		return Complex, nil
	}
	if bisecting {
		return Complex, nil
	}
	if g.Count(glycan.GlcNAc) == 2 {
		return HighMannose, nil
	}
	m1, m2, err := branchCoreMannoses(g)
	if err != nil {
		return 0, err
	}
	if len(g.Node(m1).Children) == 0 || len(g.Node(m2).Children) == 0 {
		return Complex, nil
	}
	if g.Count(glycan.GlcNAc) == 3 {
		return Hybrid, nil
	}
	return Complex, nil
}

// branchCoreMannoses finds the two arm mannoses: skip the first three nodes
// of a fucose-free breadth-first walk, then take the next two mannoses.
func branchCoreMannoses(g *glycan.Structure) (int, int, error) {
	order := g.BreadthFirst(glycan.Fuc)
	if len(order) > 3 {
		found := make([]int, 0, 2)
		for _, i := range order[3:] {
			if g.Node(i).Kind != glycan.Man {
				continue
			}
			found = append(found, i)
			if len(found) == 2 {
				return found[0], found[1], nil
			}
		}
	}
	return 0, 0, fmt.Errorf("%w: %q lacks the two branch mannoses", glycan.ErrMalformedStructure, g.Name)
}

func antennaeCount(g *glycan.Structure, typ GlycanType) (int, error) {
	if typ != Complex {
		return 0, nil
	}
	m1, m2, err := branchCoreMannoses(g)
	if err != nil {
		return 0, err
	}
	return len(g.Node(m1).Children) + len(g.Node(m2).Children), nil
}

// coreFucCount counts fucoses attached to the chitobiose core. The core is
// identified by collecting the GlcNAc, GlcNAc, Man, Man, Man pattern from a
// fucose-skipping breadth-first walk, which also steps over a bisecting
// GlcNAc.
func coreFucCount(g *glycan.Structure) int {
	pattern := [5]glycan.Kind{glycan.GlcNAc, glycan.GlcNAc, glycan.Man, glycan.Man, glycan.Man}
	core := make(map[int]bool, 5)
	n := 0
	for _, i := range g.BreadthFirst(glycan.Fuc) {
		if g.Node(i).Kind == pattern[n] {
			core[i] = true
			n++
		}
		if n == 5 {
			break
		}
	}

	count := 0
	for i := 0; i < g.NumNodes(); i++ {
		nd := g.Node(i)
		if nd.Kind == glycan.Fuc && nd.Parent != glycan.NoParent && core[nd.Parent] {
			count++
		}
	}
	return count
}

// hasPolyLacNAc reports a Gal-GlcNAc-Gal chain anywhere in the tree, read
// away from the reducing end.
func hasPolyLacNAc(g *glycan.Structure) bool {
	for i := 0; i < g.NumNodes(); i++ {
		if g.Node(i).Kind != glycan.Gal {
			continue
		}
		for _, c := range g.Node(i).Children {
			if g.Node(c).Kind != glycan.GlcNAc {
				continue
			}
			for _, gc := range g.Node(c).Children {
				if g.Node(gc).Kind == glycan.Gal {
					return true
				}
			}
		}
	}
	return false
}

// siaLinkageCounts tallies a2,3- and a2,6-linked sialic acids by the carbon
// they occupy on their parent. Any sialic acid without a known parent
// position fails the whole glycan.
func siaLinkageCounts(g *glycan.Structure) (a23, a26 int, err error) {
	for i := 0; i < g.NumNodes(); i++ {
		nd := g.Node(i)
		if nd.Kind != glycan.Neu5Ac && nd.Kind != glycan.Neu5Gc {
			continue
		}
		if nd.Link.Anomer == 0 || nd.Link.ParentPos == glycan.UnknownPos {
			return 0, 0, fmt.Errorf("%w: sialic acid with unknown linkage in %q", glycan.ErrMissingLinkage, g.Name)
		}
		switch nd.Link.ParentPos {
		case 3:
			a23++
		case 6:
			a26++
		}
	}
	return a23, a26, nil
}
