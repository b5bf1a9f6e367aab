package loader

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAbundanceCSV(t *testing.T) {
	csvText := "Sample,G1,G2,G3\n" +
		"S1,0.5,0.25,0.25\n" +
		"S2,,NA,NaN\n"

	ab, err := ReadAbundanceCSV(strings.NewReader(csvText))
	require.NoError(t, err)

	assert.Equal(t, []string{"S1", "S2"}, ab.Samples)
	assert.Equal(t, []string{"G1", "G2", "G3"}, ab.Glycans)
	assert.Equal(t, 0.5, ab.Values[0][0])
	for j := range ab.Glycans {
		assert.True(t, math.IsNaN(ab.Values[1][j]), "S2 %s should be missing", ab.Glycans[j])
	}
}

func TestReadAbundanceCSVErrors(t *testing.T) {
	cases := []struct {
		name    string
		csvText string
		wantErr string
	}{
		{"empty input", "", "empty"},
		{"wrong first column", "ID,G1\nS1,1\n", `must start with a "Sample" column`},
		{"no glycan columns", "Sample\nS1\n", "no glycan columns"},
		{"duplicate glycan", "Sample,G1,G1\nS1,1,2\n", `duplicate glycan column "G1"`},
		{"empty glycan name", "Sample,G1,\nS1,1,2\n", "empty glycan name"},
		{"duplicate sample", "Sample,G1\nS1,1\nS1,2\n", `duplicate sample "S1"`},
		{"empty sample", "Sample,G1\n,1\n", "empty sample name"},
		{"bad number", "Sample,G1\nS1,abc\n", `bad abundance "abc"`},
		{"ragged row", "Sample,G1\nS1,1,2\n", "line 2"},
		{"no rows", "Sample,G1\n", "no sample rows"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadAbundanceCSV(strings.NewReader(tc.csvText))
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestReadAbundanceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abundance.csv")
	require.NoError(t, os.WriteFile(path, []byte("Sample,G1\nS1,1\n"), 0o644))

	ab, err := ReadAbundanceFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"S1"}, ab.Samples)

	_, err = ReadAbundanceFile(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	// Errors carry the file path for context.
	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("ID,G1\nS1,1\n"), 0o644))
	_, err = ReadAbundanceFile(bad)
	assert.ErrorContains(t, err, "bad.csv")
}

func TestReadStructureCSV(t *testing.T) {
	csvText := "GlycanID,Structure\n" +
		"H3N2,Man(a1-6)[Man(a1-3)]Man(b1-4)GlcNAc(b1-4)GlcNAc\n" +
		"H4N2,Gal(b1-4)Man(a1-6)[Man(a1-3)]Man(b1-4)GlcNAc(b1-4)GlcNAc\n"

	rows, err := ReadStructureCSV(strings.NewReader(csvText))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "H3N2", rows[0].ID)
	assert.True(t, strings.HasPrefix(rows[0].Structure, "Man(a1-6)"))

	t.Run("errors", func(t *testing.T) {
		cases := []struct {
			name    string
			csvText string
			wantErr string
		}{
			{"wrong header", "ID,Structure\nA,B\n", "header must be GlycanID,Structure"},
			{"extra column", "GlycanID,Structure,Extra\nA,B,C\n", "header must be"},
			{"empty structure", "GlycanID,Structure\nA,\n", "empty glycan id or structure"},
			{"duplicate id", "GlycanID,Structure\nA,x\nA,y\n", `duplicate glycan id "A"`},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := ReadStructureCSV(strings.NewReader(tc.csvText))
				assert.ErrorContains(t, err, tc.wantErr)
			})
		}
	})
}

func TestReadStructureDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, text string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644))
	}
	write("a.csv", "GlycanID,Structure\nG1,s1\n")
	write("b.csv", "GlycanID,Structure\nG2,s2\n")
	write("notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	rows, err := ReadStructureDir(dir)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "G1", rows[0].ID)
	assert.Equal(t, "G2", rows[1].ID)

	t.Run("duplicate across files", func(t *testing.T) {
		write("c.csv", "GlycanID,Structure\nG1,s3\n")
		_, err := ReadStructureDir(dir)
		assert.ErrorContains(t, err, `glycan id "G1" appears in both`)
	})

	t.Run("empty directory", func(t *testing.T) {
		_, err := ReadStructureDir(t.TempDir())
		assert.ErrorContains(t, err, "no structure rows")
	})
}

func TestReadGroupsCSV(t *testing.T) {
	csvText := "Sample,Group\nS1,case\nS2,control\nS3,case\n"

	groups, err := ReadGroupsCSV(strings.NewReader(csvText))
	require.NoError(t, err)
	assert.Equal(t, []string{"case", "control"}, groups.Levels())
	label, ok := groups.Label("S3")
	require.True(t, ok)
	assert.Equal(t, "case", label)

	t.Run("errors", func(t *testing.T) {
		cases := []struct {
			name    string
			csvText string
			wantErr string
		}{
			{"wrong header", "Name,Group\nS1,A\n", "header must be Sample,Group"},
			{"duplicate sample", "Sample,Group\nS1,A\nS1,B\n", "assigned to a group twice"},
			{"empty group", "Sample,Group\nS1,\n", "empty sample or group"},
			{"no rows", "Sample,Group\n", "no rows"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := ReadGroupsCSV(strings.NewReader(tc.csvText))
				assert.ErrorContains(t, err, tc.wantErr)
			})
		}
	})
}
