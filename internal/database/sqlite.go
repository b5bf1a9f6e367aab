package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"glytrait/internal/loader"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS libraries (
			name TEXT PRIMARY KEY,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS structures (
			library TEXT NOT NULL,
			glycan_id TEXT NOT NULL,
			structure TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (library, glycan_id)
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			mode TEXT,
			samples INTEGER,
			glycans INTEGER,
			traits INTEGER,
			output_dir TEXT,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_structures_library ON structures(library);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// --- StructureStore Implementation ---

func (s *SQLiteStore) SaveLibrary(ctx context.Context, name string, rows []loader.StructureRow) error {
	if name == "" {
		return fmt.Errorf("library name must not be empty")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO libraries (name, created_at) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET created_at=excluded.created_at
	`, name, time.Now().UTC())
	if err != nil {
		return err
	}

	// Replace semantics: the new rows are the whole library.
	if _, err := tx.ExecContext(ctx, "DELETE FROM structures WHERE library = ?", name); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO structures (library, glycan_id, structure, position) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.Exec(name, row.ID, row.Structure, i); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadLibrary(ctx context.Context, name string) ([]loader.StructureRow, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM libraries WHERE name = ?", name).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("no structure library %q", name)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT glycan_id, structure FROM structures WHERE library = ? ORDER BY position", name)
	if err != nil {
		return nil, fmt.Errorf("failed to query structures: %w", err)
	}
	defer rows.Close()

	var out []loader.StructureRow
	for rows.Next() {
		var row loader.StructureRow
		if err := rows.Scan(&row.ID, &row.Structure); err != nil {
			return nil, fmt.Errorf("failed to scan structure: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListLibraries(ctx context.Context) ([]LibraryInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.name, l.created_at, COUNT(s.glycan_id)
		FROM libraries l
		LEFT JOIN structures s ON s.library = l.name
		GROUP BY l.name
		ORDER BY l.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query libraries: %w", err)
	}
	defer rows.Close()

	var infos []LibraryInfo
	for rows.Next() {
		var info LibraryInfo
		if err := rows.Scan(&info.Name, &info.CreatedAt, &info.Glycans); err != nil {
			return nil, fmt.Errorf("failed to scan library: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// --- RunStore Implementation ---

func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, mode, samples, glycans, traits, output_dir, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Mode, run.Samples, run.Glycans, run.Traits, run.OutputDir, run.CreatedAt)
	return err
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, samples, glycans, traits, output_dir, created_at
		FROM runs
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var run RunRecord
		if err := rows.Scan(&run.ID, &run.Mode, &run.Samples, &run.Glycans, &run.Traits, &run.OutputDir, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
