package glycan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseComposition(t *testing.T) {
	c, err := ParseComposition("H5N4F1S2")
	require.NoError(t, err)

	assert.Equal(t, Composition{Hex: 5, HexNAc: 4, Fuc: 1, Sia: 2}, c)
	assert.Equal(t, 2, c.TotalSia())
}

func TestParseCompositionLinkageLabels(t *testing.T) {
	c, err := ParseComposition("H5N4F1E1L1")
	require.NoError(t, err)

	assert.Equal(t, 1, c.SiaE)
	assert.Equal(t, 1, c.SiaL)
	assert.Equal(t, 0, c.Sia)
	assert.Equal(t, 2, c.TotalSia())
	assert.NoError(t, c.CheckSiaLinkage())
}

func TestCheckSiaLinkageUnlabeled(t *testing.T) {
	c, err := ParseComposition("H5N4F1S2")
	require.NoError(t, err)
	assert.ErrorIs(t, c.CheckSiaLinkage(), ErrMissingLinkage)
}

func TestParseCompositionZeroAndRepeated(t *testing.T) {
	c, err := ParseComposition("H3S0H2N4")
	require.NoError(t, err)

	// Repeated letters accumulate, zero counts drop out.
	assert.Equal(t, 5, c.Hex)
	assert.Equal(t, 0, c.Sia)
}

func TestParseCompositionErrors(t *testing.T) {
	cases := []struct {
		input string
		kind  error
	}{
		{"", ErrMalformedStructure},
		{"H5N4Z1", ErrUnknownResidue},
		{"h5N4", ErrMalformedStructure},
		{"H5N", ErrMalformedStructure},
		{"5H4N", ErrMalformedStructure},
		{"H5 N4", ErrMalformedStructure},
	}
	for _, tc := range cases {
		_, err := ParseComposition(tc.input)
		assert.ErrorIs(t, err, tc.kind, "input %q", tc.input)
	}
}
