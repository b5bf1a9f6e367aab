package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glytrait/internal/glycan"
)

func TestBuiltinNames(t *testing.T) {
	assert.Equal(t, []string{"igg", "serum"}, BuiltinNames())
}

// Every shipped structure must parse, and its residue counts must match
// the composition encoded in its id.
func TestBuiltinLibrariesAreConsistent(t *testing.T) {
	for _, name := range BuiltinNames() {
		t.Run(name, func(t *testing.T) {
			rows, err := Builtin(name)
			require.NoError(t, err)
			require.NotEmpty(t, rows)

			for _, row := range rows {
				s, err := glycan.ParseStructure(row.ID, row.Structure)
				require.NoError(t, err, "structure of %s", row.ID)

				comp, err := glycan.ParseComposition(row.ID)
				require.NoError(t, err, "composition id %s", row.ID)

				hex := s.Count(glycan.Man) + s.Count(glycan.Gal) + s.Count(glycan.Glc)
				hexNAc := s.Count(glycan.GlcNAc) + s.Count(glycan.GalNAc)
				sia := s.Count(glycan.Neu5Ac) + s.Count(glycan.Neu5Gc)
				assert.Equal(t, comp.Hex, hex, "%s hexoses", row.ID)
				assert.Equal(t, comp.HexNAc, hexNAc, "%s HexNAc", row.ID)
				assert.Equal(t, comp.Fuc, s.Count(glycan.Fuc), "%s fucoses", row.ID)
				assert.Equal(t, comp.TotalSia(), sia, "%s sialic acids", row.ID)
			}
		})
	}
}

func TestBuiltinLookup(t *testing.T) {
	rows, err := Builtin("IgG")
	require.NoError(t, err, "names are case-insensitive")
	assert.NotEmpty(t, rows)

	_, err = Builtin("plasma")
	assert.ErrorContains(t, err, `no built-in library "plasma"`)
	assert.ErrorContains(t, err, "igg, serum")
}
