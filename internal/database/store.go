// Package database ships the built-in glycan structure libraries and
// persists user libraries and finished runs in SQLite.
package database

import (
	"context"
	"time"

	"glytrait/internal/loader"
)

// Store combines structure library and run archive capabilities.
type Store interface {
	StructureStore
	RunStore
	Close() error
}

// StructureStore persists named glycan structure libraries.
type StructureStore interface {
	// SaveLibrary stores a library under name, replacing any previous
	// content.
	SaveLibrary(ctx context.Context, name string, rows []loader.StructureRow) error

	// LoadLibrary returns the rows of a library in their saved order.
	LoadLibrary(ctx context.Context, name string) ([]loader.StructureRow, error)

	// ListLibraries describes every stored library.
	ListLibraries(ctx context.Context) ([]LibraryInfo, error)
}

// RunStore archives finished runs for later inspection.
type RunStore interface {
	// SaveRun archives one run, assigning an id when the record has none.
	SaveRun(ctx context.Context, run *RunRecord) error

	// ListRuns returns archived runs, newest first.
	ListRuns(ctx context.Context) ([]RunRecord, error)
}

// LibraryInfo describes one stored structure library.
type LibraryInfo struct {
	Name      string
	Glycans   int
	CreatedAt time.Time
}

// RunRecord is one archived run.
type RunRecord struct {
	ID        string
	Mode      string
	Samples   int
	Glycans   int
	Traits    int
	OutputDir string
	CreatedAt time.Time
}
