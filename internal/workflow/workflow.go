// Package workflow drives an analysis run end to end. An Experiment
// walks fixed stages in order: Preprocess, DeriveTraits, PostFilter,
// DiffAnalysis. Running a stage clears everything downstream of it.
package workflow

import (
	"errors"
	"fmt"
	"strings"

	"glytrait/internal/formula"
	"glytrait/internal/glycan"
	"glytrait/internal/loader"
	"glytrait/internal/meta"
	"glytrait/internal/postfilter"
	"glytrait/internal/preprocess"
	"glytrait/internal/stats"
	"glytrait/internal/table"
	"glytrait/internal/trait"
)

// ErrOperationOrder flags a stage invoked before its prerequisites.
var ErrOperationOrder = errors.New("operation out of order")

// Experiment holds the inputs and stage results of one analysis run.
type Experiment struct {
	input     *table.AbundanceTable
	metaTable *meta.Table

	processed *table.AbundanceTable
	formulas  []*formula.Formula
	derived   *table.TraitTable
	filtered  *table.TraitTable
	diff      []stats.DiffResult
}

// ParseStructureRows parses structure strings into topology trees,
// collecting per-glycan failures instead of stopping at the first.
func ParseStructureRows(rows []loader.StructureRow) ([]*glycan.Structure, []glycan.ItemError) {
	var structures []*glycan.Structure
	var itemErrs []glycan.ItemError
	for _, row := range rows {
		s, err := glycan.ParseStructure(row.ID, row.Structure)
		if err != nil {
			itemErrs = append(itemErrs, glycan.ItemError{ID: row.ID, Err: err})
			continue
		}
		structures = append(structures, s)
	}
	return structures, itemErrs
}

// NewStructureExperiment matches the abundance glycans against parsed
// structures and derives their meta-properties. Glycans whose derivation
// fails are dropped and reported; an abundance glycan without any
// structure is a hard error.
func NewStructureExperiment(ab *table.AbundanceTable, structures []*glycan.Structure, siaLinkage bool) (*Experiment, []glycan.ItemError, error) {
	byName := make(map[string]*glycan.Structure, len(structures))
	for _, s := range structures {
		byName[s.Name] = s
	}

	ordered := make([]*glycan.Structure, 0, len(ab.Glycans))
	var missing []string
	for _, id := range ab.Glycans {
		s, ok := byName[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		ordered = append(ordered, s)
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("no structure for glycans: %s", strings.Join(missing, ", "))
	}

	mt, itemErrs := meta.DeriveStructures(ordered, siaLinkage)
	return newExperiment(ab, mt, itemErrs)
}

// NewCompositionExperiment parses the abundance glycan ids as
// compositions and derives their meta-properties. Glycans that fail to
// parse or derive are dropped and reported.
func NewCompositionExperiment(ab *table.AbundanceTable, siaLinkage bool) (*Experiment, []glycan.ItemError, error) {
	var ids []string
	var comps []glycan.Composition
	var itemErrs []glycan.ItemError
	for _, id := range ab.Glycans {
		c, err := glycan.ParseComposition(id)
		if err != nil {
			itemErrs = append(itemErrs, glycan.ItemError{ID: id, Err: err})
			continue
		}
		ids = append(ids, id)
		comps = append(comps, c)
	}

	mt, deriveErrs := meta.DeriveCompositions(ids, comps, siaLinkage)
	itemErrs = append(itemErrs, deriveErrs...)
	return newExperiment(ab, mt, itemErrs)
}

// newExperiment narrows the abundance table to the glycans that survived
// meta-property derivation.
func newExperiment(ab *table.AbundanceTable, mt *meta.Table, itemErrs []glycan.ItemError) (*Experiment, []glycan.ItemError, error) {
	if len(mt.GlycanIDs) == 0 {
		return nil, itemErrs, errors.New("no glycan survived meta-property derivation")
	}
	keep := make([]int, len(mt.GlycanIDs))
	for k, id := range mt.GlycanIDs {
		j, ok := ab.GlycanIndex(id)
		if !ok {
			return nil, itemErrs, fmt.Errorf("derived glycan %q is not in the abundance table", id)
		}
		keep[k] = j
	}
	e := &Experiment{input: ab.SelectGlycans(keep), metaTable: mt}
	return e, itemErrs, nil
}

// Mode reports whether the experiment runs on structures or
// compositions.
func (e *Experiment) Mode() meta.Mode { return e.metaTable.Mode }

// SiaLinkage reports whether linkage-aware properties were derived.
func (e *Experiment) SiaLinkage() bool { return e.metaTable.SiaLinkage }

// InputAbundance returns the abundance table the experiment started
// from, narrowed to the glycans with derived meta-properties.
func (e *Experiment) InputAbundance() *table.AbundanceTable { return e.input }

// MetaProperties returns the derived meta-property table.
func (e *Experiment) MetaProperties() *meta.Table { return e.metaTable }

// Preprocess filters sparse glycans, imputes the gaps and normalizes
// each sample row.
func (e *Experiment) Preprocess(opts preprocess.Options) error {
	processed, err := preprocess.Run(e.input, opts)
	if err != nil {
		return err
	}
	e.processed = processed
	e.formulas, e.derived, e.filtered, e.diff = nil, nil, nil, nil
	return nil
}

// DeriveTraits binds the formulas to the meta-properties and evaluates
// them against the processed abundance.
func (e *Experiment) DeriveTraits(formulas []*formula.Formula) error {
	if e.processed == nil {
		return fmt.Errorf("%w: DeriveTraits before Preprocess", ErrOperationOrder)
	}
	mt, err := e.metaTable.Select(e.processed.Glycans)
	if err != nil {
		return err
	}
	bound, err := trait.Bind(formulas, mt)
	if err != nil {
		return err
	}
	tt, err := trait.Evaluate(bound, e.processed)
	if err != nil {
		return err
	}
	e.formulas = formulas
	e.derived = tt
	e.filtered, e.diff = nil, nil
	return nil
}

// PostFilter drops uninformative traits and collinear children.
func (e *Experiment) PostFilter(threshold float64, method postfilter.Method) error {
	if e.derived == nil {
		return fmt.Errorf("%w: PostFilter before DeriveTraits", ErrOperationOrder)
	}
	e.filtered = postfilter.Apply(e.formulas, e.derived, threshold, method)
	e.diff = nil
	return nil
}

// DiffAnalysis compares the filtered traits between sample groups.
func (e *Experiment) DiffAnalysis(groups *table.Groups) error {
	if e.filtered == nil {
		return fmt.Errorf("%w: DiffAnalysis before PostFilter", ErrOperationOrder)
	}
	results, err := stats.Differential(e.filtered, groups)
	if err != nil {
		return err
	}
	e.diff = results
	return nil
}

// TryFormula evaluates a single ad hoc expression against the processed
// abundance and returns the trait value per sample.
func (e *Experiment) TryFormula(expr string) ([]float64, error) {
	if e.processed == nil {
		return nil, fmt.Errorf("%w: TryFormula before Preprocess", ErrOperationOrder)
	}
	f, err := formula.ParseExpression(expr)
	if err != nil {
		return nil, err
	}
	mt, err := e.metaTable.Select(e.processed.Glycans)
	if err != nil {
		return nil, err
	}
	bound, err := trait.Bind([]*formula.Formula{f}, mt)
	if err != nil {
		return nil, err
	}
	tt, err := trait.Evaluate(bound, e.processed)
	if err != nil {
		return nil, err
	}
	return tt.Column(0), nil
}

// Reset clears every stage result, keeping the input table and the
// derived meta-properties.
func (e *Experiment) Reset() {
	e.processed = nil
	e.formulas = nil
	e.derived = nil
	e.filtered = nil
	e.diff = nil
}

// ProcessedAbundance returns the preprocessed table.
func (e *Experiment) ProcessedAbundance() (*table.AbundanceTable, error) {
	if e.processed == nil {
		return nil, fmt.Errorf("%w: Preprocess has not run", ErrOperationOrder)
	}
	return e.processed, nil
}

// DerivedTraits returns the full trait table.
func (e *Experiment) DerivedTraits() (*table.TraitTable, error) {
	if e.derived == nil {
		return nil, fmt.Errorf("%w: DeriveTraits has not run", ErrOperationOrder)
	}
	return e.derived, nil
}

// FilteredTraits returns the post-filtered trait table.
func (e *Experiment) FilteredTraits() (*table.TraitTable, error) {
	if e.filtered == nil {
		return nil, fmt.Errorf("%w: PostFilter has not run", ErrOperationOrder)
	}
	return e.filtered, nil
}

// DiffResults returns the group comparison results.
func (e *Experiment) DiffResults() ([]stats.DiffResult, error) {
	if e.diff == nil {
		return nil, fmt.Errorf("%w: DiffAnalysis has not run", ErrOperationOrder)
	}
	return e.diff, nil
}
