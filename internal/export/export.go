// Package export writes run results into the output directory as CSV
// files. Missing values become empty cells.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"glytrait/internal/meta"
	"glytrait/internal/stats"
	"glytrait/internal/table"
)

// File names written into the output directory.
const (
	AbundanceFileName = "processed_abundance.csv"
	MetaFileName      = "meta_properties.csv"
	TraitFileName     = "derived_traits.csv"
	FilteredFileName  = "derived_traits_filtered.csv"
	DiffFileName      = "differential_analysis.csv"
)

// DefaultDir derives the output directory from the abundance file path:
// a sibling directory named after the file with a _glytrait suffix.
func DefaultDir(abundancePath string) string {
	base := strings.TrimSuffix(filepath.Base(abundancePath), filepath.Ext(abundancePath))
	return filepath.Join(filepath.Dir(abundancePath), base+"_glytrait")
}

func formatValue(v float64) string {
	if table.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteAbundanceCSV writes the samples-by-glycans matrix.
func WriteAbundanceCSV(w io.Writer, ab *table.AbundanceTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"Sample"}, ab.Glycans...)); err != nil {
		return err
	}
	for i, sample := range ab.Samples {
		record := make([]string, 0, len(ab.Glycans)+1)
		record = append(record, sample)
		for _, v := range ab.Values[i] {
			record = append(record, formatValue(v))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTraitCSV writes the samples-by-traits matrix.
func WriteTraitCSV(w io.Writer, tt *table.TraitTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"Sample"}, tt.Traits...)); err != nil {
		return err
	}
	for i, sample := range tt.Samples {
		record := make([]string, 0, len(tt.Traits)+1)
		record = append(record, sample)
		for _, v := range tt.Values[i] {
			record = append(record, formatValue(v))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMetaCSV writes one row per glycan with the derived properties as
// columns: booleans as true/false, integers unpadded, strings raw.
func WriteMetaCSV(w io.Writer, mt *meta.Table) error {
	props := mt.Properties()
	cols := make([][]string, len(props))
	for k, p := range props {
		if p.Kind == meta.StringKind {
			col, err := mt.Strings(p.Name)
			if err != nil {
				return err
			}
			cols[k] = col
			continue
		}
		col, err := mt.Numeric(p.Name)
		if err != nil {
			return err
		}
		out := make([]string, len(col))
		for i, v := range col {
			if p.Kind == meta.BoolKind {
				out[i] = strconv.FormatBool(v != 0)
			} else {
				out[i] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		cols[k] = out
	}

	cw := csv.NewWriter(w)
	header := make([]string, 0, len(props)+1)
	header = append(header, "GlycanID")
	for _, p := range props {
		header = append(header, p.Name)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, id := range mt.GlycanIDs {
		record := make([]string, 0, len(props)+1)
		record = append(record, id)
		for k := range props {
			record = append(record, cols[k][i])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDiffCSV writes one row per trait comparison, best p-value first.
func WriteDiffCSV(w io.Writer, results []stats.DiffResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Trait", "Test", "Statistic", "P", "P-adj", "CLES"}); err != nil {
		return err
	}
	for _, r := range results {
		record := []string{
			r.Trait,
			r.Test,
			formatValue(r.Statistic),
			formatValue(r.P),
			formatValue(r.PAdjusted),
			formatValue(r.CLES),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Results bundles what a run produced. Nil tables and empty result
// slices are skipped.
type Results struct {
	Abundance *table.AbundanceTable
	Meta      *meta.Table
	Derived   *table.TraitTable
	Filtered  *table.TraitTable
	Diff      []stats.DiffResult
}

// Write creates dir if needed and lays the result files out inside it.
func Write(dir string, res Results) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	write := func(name string, fn func(io.Writer) error) error {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", name, err)
		}
		return f.Close()
	}

	if res.Abundance != nil {
		if err := write(AbundanceFileName, func(w io.Writer) error { return WriteAbundanceCSV(w, res.Abundance) }); err != nil {
			return err
		}
	}
	if res.Meta != nil {
		if err := write(MetaFileName, func(w io.Writer) error { return WriteMetaCSV(w, res.Meta) }); err != nil {
			return err
		}
	}
	if res.Derived != nil {
		if err := write(TraitFileName, func(w io.Writer) error { return WriteTraitCSV(w, res.Derived) }); err != nil {
			return err
		}
	}
	if res.Filtered != nil {
		if err := write(FilteredFileName, func(w io.Writer) error { return WriteTraitCSV(w, res.Filtered) }); err != nil {
			return err
		}
	}
	if len(res.Diff) > 0 {
		if err := write(DiffFileName, func(w io.Writer) error { return WriteDiffCSV(w, res.Diff) }); err != nil {
			return err
		}
	}
	return nil
}
