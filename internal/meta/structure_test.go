package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glytrait/internal/glycan"
)

const (
	complexBi   = "Neu5Ac(a2-6)Gal(b1-4)GlcNAc(b1-2)Man(a1-6)[Neu5Ac(a2-3)Gal(b1-4)GlcNAc(b1-2)Man(a1-3)]Man(b1-4)GlcNAc(b1-4)[Fuc(a1-6)]GlcNAc"
	highMan5    = "Man(a1-6)[Man(a1-3)]Man(a1-6)[Man(a1-3)]Man(b1-4)GlcNAc(b1-4)GlcNAc"
	hybridGly   = "Man(a1-6)[Man(a1-3)]Man(a1-6)[Gal(b1-4)GlcNAc(b1-2)Man(a1-3)]Man(b1-4)GlcNAc(b1-4)GlcNAc"
	bisected    = "Gal(b1-4)GlcNAc(b1-2)Man(a1-6)[GlcNAc(b1-4)][Gal(b1-4)GlcNAc(b1-2)Man(a1-3)]Man(b1-4)GlcNAc(b1-4)GlcNAc"
	monoAnt     = "Gal(b1-4)GlcNAc(b1-2)Man(a1-6)[Man(a1-3)]Man(b1-4)GlcNAc(b1-4)GlcNAc"
	bareCore    = "Man(a1-6)[Man(a1-3)]Man(b1-4)GlcNAc(b1-4)GlcNAc"
	tetraAnt    = "Gal(b1-4)GlcNAc(b1-2)[Gal(b1-4)GlcNAc(b1-4)]Man(a1-6)[Gal(b1-4)GlcNAc(b1-2)[Gal(b1-4)GlcNAc(b1-4)]Man(a1-3)]Man(b1-4)GlcNAc(b1-4)GlcNAc"
	antFuc      = "Gal(b1-4)[Fuc(a1-3)]GlcNAc(b1-2)Man(a1-6)[Gal(b1-4)GlcNAc(b1-2)Man(a1-3)]Man(b1-4)GlcNAc(b1-4)GlcNAc"
	polyLacNAc  = "Gal(b1-4)GlcNAc(b1-3)Gal(b1-4)GlcNAc(b1-2)Man(a1-6)[Man(a1-3)]Man(b1-4)GlcNAc(b1-4)GlcNAc"
	unknownSia  = "Neu5Ac(a2-?)Gal(b1-4)GlcNAc(b1-2)Man(a1-6)[Man(a1-3)]Man(b1-4)GlcNAc(b1-4)GlcNAc"
)

func mustParse(t *testing.T, name, text string) *glycan.Structure {
	t.Helper()
	s, err := glycan.ParseStructure(name, text)
	require.NoError(t, err)
	return s
}

func deriveOne(t *testing.T, text string, siaLinkage bool) *Table {
	t.Helper()
	tbl, errs := DeriveStructures([]*glycan.Structure{mustParse(t, "G", text)}, siaLinkage)
	require.Empty(t, errs)
	return tbl
}

func value(t *testing.T, tbl *Table, prop string) float64 {
	t.Helper()
	col, err := tbl.Numeric(prop)
	require.NoError(t, err)
	require.Len(t, col, 1)
	return col[0]
}

func TestGlycanTypeClassification(t *testing.T) {
	cases := []struct {
		name string
		text string
		typ  string
	}{
		{"biantennary complex", complexBi, "complex"},
		{"high mannose", highMan5, "highmannose"},
		{"hybrid", hybridGly, "hybrid"},
		{"bisected is complex", bisected, "complex"},
		{"mono-antennary is complex despite three GlcNAc", monoAnt, "complex"},
		{"bare core is complex", bareCore, "complex"},
		{"tetra-antennary complex", tetraAnt, "complex"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tbl := deriveOne(t, tc.text, false)
			col, err := tbl.Strings("type")
			require.NoError(t, err)
			assert.Equal(t, []string{tc.typ}, col)
		})
	}
}

func TestDeriveStructuresBiantennary(t *testing.T) {
	tbl := deriveOne(t, complexBi, true)

	assert.Equal(t, 1.0, value(t, tbl, "isComplex"))
	assert.Equal(t, 0.0, value(t, tbl, "isHighMannose"))
	assert.Equal(t, 0.0, value(t, tbl, "isBisecting"))
	assert.Equal(t, 1.0, value(t, tbl, "is2Antennary"))
	assert.Equal(t, 2.0, value(t, tbl, "nAnt"))
	assert.Equal(t, 3.0, value(t, tbl, "nM"))
	assert.Equal(t, 2.0, value(t, tbl, "totalGal"))
	assert.Equal(t, 1.0, value(t, tbl, "totalFuc"))
	assert.Equal(t, 1.0, value(t, tbl, "coreFuc"))
	assert.Equal(t, 0.0, value(t, tbl, "antennaryFuc"))
	assert.Equal(t, 0.0, value(t, tbl, "hasAntennaryFuc"))
	assert.Equal(t, 1.0, value(t, tbl, "hasFuc"))
	assert.Equal(t, 0.0, value(t, tbl, "noFuc"))
	assert.Equal(t, 2.0, value(t, tbl, "totalSia"))
	assert.Equal(t, 1.0, value(t, tbl, "hasSia"))
	assert.Equal(t, 1.0, value(t, tbl, "a23Sia"))
	assert.Equal(t, 1.0, value(t, tbl, "a26Sia"))
	assert.Equal(t, 1.0, value(t, tbl, "hasa23Sia"))
	assert.Equal(t, 1.0, value(t, tbl, "hasa26Sia"))
	assert.Equal(t, 0.0, value(t, tbl, "noa23Sia"))
	assert.Equal(t, 0.0, value(t, tbl, "hasPolyLacNAc"))
}

func TestDeriveStructuresAntennae(t *testing.T) {
	t.Run("mono", func(t *testing.T) {
		tbl := deriveOne(t, monoAnt, false)
		assert.Equal(t, 1.0, value(t, tbl, "nAnt"))
		assert.Equal(t, 1.0, value(t, tbl, "is1Antennary"))
	})
	t.Run("tetra", func(t *testing.T) {
		tbl := deriveOne(t, tetraAnt, false)
		assert.Equal(t, 4.0, value(t, tbl, "nAnt"))
		assert.Equal(t, 1.0, value(t, tbl, "is4Antennary"))
	})
	t.Run("bare core has none", func(t *testing.T) {
		tbl := deriveOne(t, bareCore, false)
		assert.Equal(t, 0.0, value(t, tbl, "nAnt"))
	})
	t.Run("high mannose has none", func(t *testing.T) {
		tbl := deriveOne(t, highMan5, false)
		assert.Equal(t, 0.0, value(t, tbl, "nAnt"))
		assert.Equal(t, 5.0, value(t, tbl, "nM"))
	})
}

func TestDeriveStructuresFucosylation(t *testing.T) {
	tbl := deriveOne(t, antFuc, false)
	assert.Equal(t, 1.0, value(t, tbl, "totalFuc"))
	assert.Equal(t, 0.0, value(t, tbl, "coreFuc"))
	assert.Equal(t, 1.0, value(t, tbl, "antennaryFuc"))
	assert.Equal(t, 1.0, value(t, tbl, "hasAntennaryFuc"))
}

func TestDeriveStructuresBisecting(t *testing.T) {
	tbl := deriveOne(t, bisected, false)
	assert.Equal(t, 1.0, value(t, tbl, "isBisecting"))
	assert.Equal(t, 2.0, value(t, tbl, "nAnt"))
}

func TestDeriveStructuresPolyLacNAc(t *testing.T) {
	tbl := deriveOne(t, polyLacNAc, false)
	assert.Equal(t, 1.0, value(t, tbl, "hasPolyLacNAc"))
}

func TestDeriveStructuresMissingLinkage(t *testing.T) {
	g := mustParse(t, "GBad", unknownSia)

	// Linkage-aware derivation rejects the glycan and omits its row.
	tbl, errs := DeriveStructures([]*glycan.Structure{g}, true)
	require.Len(t, errs, 1)
	assert.Equal(t, "GBad", errs[0].ID)
	assert.ErrorIs(t, errs[0].Err, glycan.ErrMissingLinkage)
	assert.Empty(t, tbl.GlycanIDs)

	// Without linkage awareness the same glycan derives fine.
	tbl, errs = DeriveStructures([]*glycan.Structure{g}, false)
	require.Empty(t, errs)
	require.Equal(t, []string{"GBad"}, tbl.GlycanIDs)
	assert.Equal(t, 1.0, value(t, tbl, "totalSia"))
	assert.False(t, tbl.Has("a23Sia"))
}

func TestDeriveStructuresKeepsInputOrder(t *testing.T) {
	gs := []*glycan.Structure{
		mustParse(t, "G1", highMan5),
		mustParse(t, "G2", complexBi),
		mustParse(t, "G3", hybridGly),
	}
	tbl, errs := DeriveStructures(gs, false)
	require.Empty(t, errs)
	assert.Equal(t, []string{"G1", "G2", "G3"}, tbl.GlycanIDs)

	col, err := tbl.Strings("type")
	require.NoError(t, err)
	assert.Equal(t, []string{"highmannose", "complex", "hybrid"}, col)
}

func TestTableSelect(t *testing.T) {
	glycans := []*glycan.Structure{
		mustParse(t, "G1", complexBi),
		mustParse(t, "G2", highMan5),
		mustParse(t, "G3", hybridGly),
	}
	tbl, errs := DeriveStructures(glycans, false)
	require.Empty(t, errs)

	sub, err := tbl.Select([]string{"G3", "G1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"G3", "G1"}, sub.GlycanIDs)

	col, err := sub.Numeric("isComplex")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, col)

	types, err := sub.Strings("type")
	require.NoError(t, err)
	assert.Equal(t, []string{"hybrid", "complex"}, types)

	_, err = tbl.Select([]string{"G9"})
	assert.ErrorContains(t, err, `no derived row for glycan "G9"`)
}

func TestTableColumnAccess(t *testing.T) {
	tbl := deriveOne(t, complexBi, false)

	_, err := tbl.Numeric("type")
	require.Error(t, err)

	_, err = tbl.Numeric("nope")
	assert.ErrorIs(t, err, ErrUnknownProperty)

	_, err = tbl.Strings("nAnt")
	assert.ErrorIs(t, err, ErrUnknownProperty)

	k, err := tbl.Kind("isComplex")
	require.NoError(t, err)
	assert.Equal(t, BoolKind, k)
}
