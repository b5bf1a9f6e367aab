package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glytrait/internal/meta"
)

func TestBuiltinFormulas(t *testing.T) {
	struc := Builtin(meta.StructureMode)
	require.NotEmpty(t, struc)
	comp := Builtin(meta.CompositionMode)
	require.NotEmpty(t, comp)

	names := make(map[string]bool)
	for _, f := range struc {
		assert.NotEmpty(t, f.Description, "builtin %s lacks a description", f.Name)
		assert.False(t, names[f.Name], "builtin name %s repeats", f.Name)
		names[f.Name] = true
	}

	// The sialylation families used by post-filtering must exist.
	for _, want := range []string{"CS", "A1S", "A2S", "A3S", "A4S", "CE", "CL", "A2E", "A2L"} {
		assert.True(t, names[want], "missing builtin %s", want)
	}
}

func TestNewSetLinkageFiltering(t *testing.T) {
	builtins := Builtin(meta.StructureMode)

	plain, _ := NewSet(builtins, nil, false)
	_, hasCE := plain.Get("CE")
	assert.False(t, hasCE, "linkage-only formula kept in a plain run")
	_, hasTM := plain.Get("TM")
	assert.True(t, hasTM)

	linked, _ := NewSet(builtins, nil, true)
	_, hasCE = linked.Get("CE")
	assert.True(t, hasCE)
	assert.Greater(t, linked.Len(), plain.Len())
}

func TestNewSetPrecedence(t *testing.T) {
	mustParseExpr := func(expr string) *Formula {
		f, err := ParseExpression(expr)
		require.NoError(t, err)
		return f
	}

	builtins := []*Formula{mustParseExpr("TM = (isHighMannose) / (.)")}
	customs := []*Formula{
		mustParseExpr("TM = (isHybrid) / (.)"),
		mustParseExpr("TX = (hasFuc) / (.)"),
		mustParseExpr("TX = (noFuc) / (.)"),
	}

	s, warnings := NewSet(builtins, customs, false)

	// 1. the built-in TM survives, the custom one is dropped
	tm, ok := s.Get("TM")
	require.True(t, ok)
	assert.Equal(t, "isHighMannose", tm.Numerator[0].Property)

	// 2. within the custom list the first TX wins
	tx, ok := s.Get("TX")
	require.True(t, ok)
	assert.Equal(t, "hasFuc", tx.Numerator[0].Property)

	// 3. both clashes are reported
	assert.Len(t, warnings, 2)
	assert.Equal(t, 2, s.Len())

	// 4. registration order: built-ins first, then customs
	order := []string{}
	for _, f := range s.Formulas() {
		order = append(order, f.Name)
	}
	assert.Equal(t, []string{"TM", "TX"}, order)
}
