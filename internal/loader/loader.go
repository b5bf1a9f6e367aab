// Package loader reads the CSV inputs of a run: the abundance matrix,
// glycan structure tables and sample group assignments.
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"glytrait/internal/table"
)

// Missing cell spellings accepted in abundance tables.
func isMissingCell(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "na") || strings.EqualFold(s, "nan")
}

// ReadAbundanceCSV parses a samples-by-glycans matrix. The first header
// cell must be "Sample"; every other header cell names a glycan column.
// Empty, NA and NaN cells load as missing values.
func ReadAbundanceCSV(r io.Reader) (*table.AbundanceTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("abundance table is empty")
	}
	if err != nil {
		return nil, err
	}
	if header[0] != "Sample" {
		return nil, fmt.Errorf("abundance table must start with a %q column, got %q", "Sample", header[0])
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("abundance table has no glycan columns")
	}

	glycans := make([]string, len(header)-1)
	seen := make(map[string]bool, len(glycans))
	for j, name := range header[1:] {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("abundance column %d has an empty glycan name", j+2)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate glycan column %q", name)
		}
		seen[name] = true
		glycans[j] = name
	}

	var samples []string
	var values [][]float64
	sampleSeen := make(map[string]bool)
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		sample := strings.TrimSpace(record[0])
		if sample == "" {
			return nil, fmt.Errorf("line %d: empty sample name", line)
		}
		if sampleSeen[sample] {
			return nil, fmt.Errorf("line %d: duplicate sample %q", line, sample)
		}
		sampleSeen[sample] = true

		row := make([]float64, len(glycans))
		for j, cell := range record[1:] {
			if isMissingCell(cell) {
				row[j] = table.Missing()
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %q: bad abundance %q", line, glycans[j], cell)
			}
			row[j] = v
		}
		samples = append(samples, sample)
		values = append(values, row)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("abundance table has no sample rows")
	}
	return table.NewAbundanceTable(samples, glycans, values), nil
}

// ReadAbundanceFile reads an abundance matrix from a CSV file.
func ReadAbundanceFile(path string) (*table.AbundanceTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ab, err := ReadAbundanceCSV(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ab, nil
}

// StructureRow pairs a glycan id with its structure string.
type StructureRow struct {
	ID        string
	Structure string
}

// ReadStructureCSV parses a two-column table mapping glycan ids to
// condensed structure strings. The header must be GlycanID,Structure.
func ReadStructureCSV(r io.Reader) ([]StructureRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("structure table is empty")
	}
	if err != nil {
		return nil, err
	}
	if len(header) != 2 || header[0] != "GlycanID" || header[1] != "Structure" {
		return nil, fmt.Errorf("structure table header must be GlycanID,Structure, got %s", strings.Join(header, ","))
	}

	var rows []StructureRow
	seen := make(map[string]bool)
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		id := strings.TrimSpace(record[0])
		structure := strings.TrimSpace(record[1])
		if id == "" || structure == "" {
			return nil, fmt.Errorf("line %d: empty glycan id or structure", line)
		}
		if seen[id] {
			return nil, fmt.Errorf("line %d: duplicate glycan id %q", line, id)
		}
		seen[id] = true
		rows = append(rows, StructureRow{ID: id, Structure: structure})
	}
	return rows, nil
}

// ReadStructureFile reads a structure table from a CSV file.
func ReadStructureFile(path string) ([]StructureRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := ReadStructureCSV(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rows, nil
}

// ReadStructureDir reads every CSV file directly inside dir and merges
// the rows. Ids must stay unique across the files.
func ReadStructureDir(dir string) ([]StructureRow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var rows []StructureRow
	seen := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		part, err := ReadStructureFile(path)
		if err != nil {
			return nil, err
		}
		for _, row := range part {
			if prev, dup := seen[row.ID]; dup {
				return nil, fmt.Errorf("glycan id %q appears in both %s and %s", row.ID, prev, path)
			}
			seen[row.ID] = path
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no structure rows found under %s", dir)
	}
	return rows, nil
}

// ReadGroupsCSV parses the sample grouping table. The header must be
// Sample,Group.
func ReadGroupsCSV(r io.Reader) (*table.Groups, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("group table is empty")
	}
	if err != nil {
		return nil, err
	}
	if len(header) != 2 || header[0] != "Sample" || header[1] != "Group" {
		return nil, fmt.Errorf("group table header must be Sample,Group, got %s", strings.Join(header, ","))
	}

	var samples, labels []string
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		sample := strings.TrimSpace(record[0])
		label := strings.TrimSpace(record[1])
		if sample == "" || label == "" {
			return nil, fmt.Errorf("line %d: empty sample or group", line)
		}
		samples = append(samples, sample)
		labels = append(labels, label)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("group table has no rows")
	}
	return table.NewGroups(samples, labels)
}

// ReadGroupsFile reads the sample grouping from a CSV file.
func ReadGroupsFile(path string) (*table.Groups, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := ReadGroupsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return g, nil
}
