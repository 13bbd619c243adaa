package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Index is the SQLite catalogue of saved runs. The run directories stay the
// source of truth for trajectories; the index answers listing queries.
type Index struct {
	db *sql.DB
}

// OpenIndex creates or opens the index database at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to index: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Index{db: db}, nil
}

func (x *Index) Close() error {
	if x.db == nil {
		return nil
	}
	return x.db.Close()
}

func (x *Index) Insert(ctx context.Context, m RunMetadata) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, created_at, solver, atol, rtol, duration, final_time, accepted, rejected, dropped, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Scenario, m.Timestamp.UTC().Format(time.RFC3339Nano), m.Solver, m.Atol, m.Rtol,
		m.Duration, m.FinalTime, m.Accepted, m.Rejected, m.Dropped, m.Error)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", m.ID, err)
	}
	for name, value := range m.Metrics {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_metrics (run_id, name, value) VALUES (?, ?, ?)`,
			m.ID, name, value); err != nil {
			return fmt.Errorf("insert metric %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// List returns indexed runs, newest first. An empty scenario matches all.
func (x *Index) List(ctx context.Context, scenario string) ([]RunMetadata, error) {
	rows, err := x.db.QueryContext(ctx, `
		SELECT id, scenario, created_at, solver, atol, rtol, duration, final_time, accepted, rejected, dropped, error
		FROM runs
		WHERE ? = '' OR scenario = ?
		ORDER BY created_at DESC, id`, scenario, scenario)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		var m RunMetadata
		var created string
		if err := rows.Scan(&m.ID, &m.Scenario, &created, &m.Solver, &m.Atol, &m.Rtol,
			&m.Duration, &m.FinalTime, &m.Accepted, &m.Rejected, &m.Dropped, &m.Error); err != nil {
			return nil, err
		}
		if m.Timestamp, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("run %s: bad timestamp: %w", m.ID, err)
		}
		runs = append(runs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		if runs[i].Metrics, err = x.metrics(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (x *Index) metrics(ctx context.Context, id string) (map[string]float64, error) {
	rows, err := x.db.QueryContext(ctx, `SELECT name, value FROM run_metrics WHERE run_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}

func (x *Index) Delete(ctx context.Context, id string) error {
	_, err := x.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	return err
}
