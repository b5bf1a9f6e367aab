package workflow

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glytrait/internal/formula"
	"glytrait/internal/loader"
	"glytrait/internal/meta"
	"glytrait/internal/postfilter"
	"glytrait/internal/preprocess"
	"glytrait/internal/table"
)

const (
	wfComplexBi = "Neu5Ac(a2-6)Gal(b1-4)GlcNAc(b1-2)Man(a1-6)[Neu5Ac(a2-3)Gal(b1-4)GlcNAc(b1-2)Man(a1-3)]Man(b1-4)GlcNAc(b1-4)[Fuc(a1-6)]GlcNAc"
	wfHighMan   = "Man(a1-6)[Man(a1-3)]Man(a1-6)[Man(a1-3)]Man(b1-4)GlcNAc(b1-4)GlcNAc"
	wfMonoFuc   = "Gal(b1-4)GlcNAc(b1-2)Man(a1-6)[Man(a1-3)]Man(b1-4)GlcNAc(b1-4)[Fuc(a1-6)]GlcNAc"
	wfHybrid    = "Man(a1-6)[Man(a1-3)]Man(a1-6)[Gal(b1-4)GlcNAc(b1-2)Man(a1-3)]Man(b1-4)GlcNAc(b1-4)GlcNAc"
	wfNoLinkSia = "Neu5Ac(a2-?)Gal(b1-4)GlcNAc(b1-2)Man(a1-6)[Man(a1-3)]Man(b1-4)GlcNAc(b1-4)GlcNAc"
)

var wfRows = []loader.StructureRow{
	{ID: "G1", Structure: wfComplexBi},
	{ID: "G2", Structure: wfHighMan},
	{ID: "G3", Structure: wfMonoFuc},
	{ID: "G4", Structure: wfHybrid},
}

func wfAbundance() *table.AbundanceTable {
	return table.NewAbundanceTable(
		[]string{"S1", "S2", "S3", "S4"},
		[]string{"G1", "G2", "G3", "G4"},
		[][]float64{
			{0.25, 0.25, 0.25, 0.25},
			{0.5, 0.5, 0, 0},
			{0.4, 0.2, 0.2, 0.2},
			{math.NaN(), 0.5, 0.25, 0.25},
		},
	)
}

func wfFormulas(t *testing.T, exprs ...string) []*formula.Formula {
	t.Helper()
	fs := make([]*formula.Formula, len(exprs))
	for i, expr := range exprs {
		f, err := formula.ParseExpression(expr)
		require.NoError(t, err)
		fs[i] = f
	}
	return fs
}

func TestExperimentFullRun(t *testing.T) {
	structures, parseErrs := ParseStructureRows(wfRows)
	require.Empty(t, parseErrs)

	exp, itemErrs, err := NewStructureExperiment(wfAbundance(), structures, false)
	require.NoError(t, err)
	require.Empty(t, itemErrs)
	assert.Equal(t, meta.StructureMode, exp.Mode())
	assert.False(t, exp.SiaLinkage())

	require.NoError(t, exp.Preprocess(preprocess.Options{MaxMissingRatio: 0.5, Impute: preprocess.ImputeMin}))

	processed, err := exp.ProcessedAbundance()
	require.NoError(t, err)
	for i := range processed.Samples {
		sum := 0.0
		for _, v := range processed.Values[i] {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-12, "sample %s", processed.Samples[i])
	}
	// S4's gap imputed with the column minimum 0.25, then renormalized.
	assert.InDelta(t, 0.2, processed.Values[3][0], 1e-12)

	fs := wfFormulas(t,
		"TF = (hasFuc) / (.)",
		"CS = (totalSia) // (isComplex)",
		"A2S = (totalSia) // (isComplex * is2Antennary)",
	)
	require.NoError(t, exp.DeriveTraits(fs))

	derived, err := exp.DerivedTraits()
	require.NoError(t, err)
	assert.Equal(t, []string{"TF", "CS", "A2S"}, derived.Traits)

	j, ok := derived.TraitIndex("TF")
	require.True(t, ok)
	tf := derived.Column(j)
	assert.InDelta(t, 0.5, tf[0], 1e-12)
	assert.InDelta(t, 0.5, tf[1], 1e-12)
	assert.InDelta(t, 0.6, tf[2], 1e-12)
	assert.InDelta(t, 0.4, tf[3], 1e-12)

	require.NoError(t, exp.PostFilter(1.0, postfilter.Pearson))
	filtered, err := exp.FilteredTraits()
	require.NoError(t, err)
	// A2S is constant 2.0 across samples here, so the invalid filter
	// removes it.
	assert.Equal(t, []string{"TF", "CS"}, filtered.Traits)

	groups, err := table.NewGroups(
		[]string{"S1", "S2", "S3", "S4"},
		[]string{"A", "A", "B", "B"},
	)
	require.NoError(t, err)
	require.NoError(t, exp.DiffAnalysis(groups))

	results, err := exp.DiffResults()
	require.NoError(t, err)
	require.Len(t, results, 2)

	values, err := exp.TryFormula("THM = (isHighMannose) / (.)")
	require.NoError(t, err)
	require.Len(t, values, 4)
	assert.InDelta(t, 0.25, values[0], 1e-12)
	assert.InDelta(t, 0.5, values[1], 1e-12)

	exp.Reset()
	_, err = exp.ProcessedAbundance()
	assert.ErrorIs(t, err, ErrOperationOrder)
}

func TestExperimentStageOrder(t *testing.T) {
	structures, _ := ParseStructureRows(wfRows)
	exp, _, err := NewStructureExperiment(wfAbundance(), structures, false)
	require.NoError(t, err)

	assert.ErrorIs(t, exp.DeriveTraits(nil), ErrOperationOrder)
	assert.ErrorIs(t, exp.PostFilter(1.0, postfilter.Pearson), ErrOperationOrder)
	assert.ErrorIs(t, exp.DiffAnalysis(nil), ErrOperationOrder)

	_, err = exp.TryFormula("X = (hasFuc) / (.)")
	assert.ErrorIs(t, err, ErrOperationOrder)
	_, err = exp.DerivedTraits()
	assert.ErrorIs(t, err, ErrOperationOrder)
	_, err = exp.FilteredTraits()
	assert.ErrorIs(t, err, ErrOperationOrder)
	_, err = exp.DiffResults()
	assert.ErrorIs(t, err, ErrOperationOrder)

	// Re-running an earlier stage clears the later results.
	require.NoError(t, exp.Preprocess(preprocess.Options{MaxMissingRatio: 1, Impute: preprocess.ImputeZero}))
	require.NoError(t, exp.DeriveTraits(wfFormulas(t, "TF = (hasFuc) / (.)")))
	require.NoError(t, exp.PostFilter(-1, postfilter.Pearson))
	require.NoError(t, exp.Preprocess(preprocess.Options{MaxMissingRatio: 1, Impute: preprocess.ImputeZero}))
	_, err = exp.FilteredTraits()
	assert.ErrorIs(t, err, ErrOperationOrder)
}

func TestNewStructureExperimentMissing(t *testing.T) {
	structures, _ := ParseStructureRows(wfRows[:2])
	_, _, err := NewStructureExperiment(wfAbundance(), structures, false)
	assert.ErrorContains(t, err, "no structure for glycans: G3, G4")
}

func TestNewStructureExperimentDropsFailedGlycans(t *testing.T) {
	rows := append(append([]loader.StructureRow(nil), wfRows...),
		loader.StructureRow{ID: "G5", Structure: wfNoLinkSia})
	structures, parseErrs := ParseStructureRows(rows)
	require.Empty(t, parseErrs)

	ab := table.NewAbundanceTable(
		[]string{"S1"},
		[]string{"G1", "G5"},
		[][]float64{{0.5, 0.5}},
	)
	exp, itemErrs, err := NewStructureExperiment(ab, structures, true)
	require.NoError(t, err)
	require.Len(t, itemErrs, 1)
	assert.Equal(t, "G5", itemErrs[0].ID)
	assert.Equal(t, []string{"G1"}, exp.InputAbundance().Glycans)
}

func TestNewCompositionExperiment(t *testing.T) {
	ab := table.NewAbundanceTable(
		[]string{"S1", "S2"},
		[]string{"H5N4F1S2", "H3N2", "badid"},
		[][]float64{
			{0.5, 0.4, 0.1},
			{0.2, 0.8, 0.1},
		},
	)

	exp, itemErrs, err := NewCompositionExperiment(ab, false)
	require.NoError(t, err)
	require.Len(t, itemErrs, 1)
	assert.Equal(t, "badid", itemErrs[0].ID)
	assert.Equal(t, meta.CompositionMode, exp.Mode())
	assert.Equal(t, []string{"H5N4F1S2", "H3N2"}, exp.InputAbundance().Glycans)

	require.NoError(t, exp.Preprocess(preprocess.Options{MaxMissingRatio: 1, Impute: preprocess.ImputeZero}))
	require.NoError(t, exp.DeriveTraits(wfFormulas(t, "Fuc = (hasFuc) / (.)")))

	derived, err := exp.DerivedTraits()
	require.NoError(t, err)
	fuc := derived.Column(0)
	assert.InDelta(t, 0.5/0.9, fuc[0], 1e-12)
	assert.InDelta(t, 0.2, fuc[1], 1e-12)
}

func TestParseStructureRows(t *testing.T) {
	rows := []loader.StructureRow{
		{ID: "ok", Structure: wfHighMan},
		{ID: "bad", Structure: "Man(a1-6"},
	}
	structures, itemErrs := ParseStructureRows(rows)
	require.Len(t, structures, 1)
	require.Len(t, itemErrs, 1)
	assert.Equal(t, "bad", itemErrs[0].ID)
}
