// Package results provides persistent run stores.
package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	core "github.com/kilianp07/openbat/core/results"
)

// SQLiteStore persists run records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ core.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database and ensures the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS runs (
        run_id TEXT PRIMARY KEY,
        system TEXT NOT NULL,
        topology TEXT NOT NULL,
        ts INTEGER NOT NULL,
        steps INTEGER,
        step_s REAL,
        final_soc REAL,
        self_sufficiency REAL,
        duration_ns INTEGER,
        energy TEXT,
        ideal TEXT
    );`
	for _, stmt := range []string{schema, `CREATE INDEX IF NOT EXISTS runs_system_ts ON runs(system, ts)`} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Save inserts the record or replaces the one with the same run id.
func (s *SQLiteStore) Save(ctx context.Context, r core.Record) error {
	if r.RunID == "" {
		return errors.New("results: run id is required")
	}
	energy, err := json.Marshal(r.Energy)
	if err != nil {
		return err
	}
	ideal, err := json.Marshal(r.Ideal)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO runs (run_id, system, topology, ts, steps, step_s,
            final_soc, self_sufficiency, duration_ns, energy, ideal)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(run_id) DO UPDATE SET
            system = excluded.system,
            topology = excluded.topology,
            ts = excluded.ts,
            steps = excluded.steps,
            step_s = excluded.step_s,
            final_soc = excluded.final_soc,
            self_sufficiency = excluded.self_sufficiency,
            duration_ns = excluded.duration_ns,
            energy = excluded.energy,
            ideal = excluded.ideal`,
		r.RunID, r.System, r.Topology, r.Time.UnixNano(), r.Steps, r.StepSeconds,
		r.FinalSOC, r.SelfSufficiency, int64(r.Duration), string(energy), string(ideal))
	return err
}

const selectRuns = `SELECT run_id, system, topology, ts, steps, step_s, final_soc,
        self_sufficiency, duration_ns, energy, ideal FROM runs`

// Get returns the record of runID.
func (s *SQLiteStore) Get(ctx context.Context, runID string) (core.Record, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE run_id = ?`, runID)
	r, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, core.ErrNotFound
	}
	return r, err
}

// List returns records matching q ordered by time.
func (s *SQLiteStore) List(ctx context.Context, q core.Query) ([]core.Record, error) {
	where := ` WHERE 1 = 1`
	var args []any
	if q.System != "" {
		where += ` AND system = ?`
		args = append(args, q.System)
	}
	if !q.Start.IsZero() {
		where += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		where += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	query := selectRuns + where + ` ORDER BY ts, run_id`
	if q.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []core.Record
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(sc scanner) (core.Record, error) {
	var (
		r             core.Record
		ts, duration  int64
		energy, ideal string
	)
	if err := sc.Scan(&r.RunID, &r.System, &r.Topology, &ts, &r.Steps, &r.StepSeconds,
		&r.FinalSOC, &r.SelfSufficiency, &duration, &energy, &ideal); err != nil {
		return core.Record{}, err
	}
	r.Time = time.Unix(0, ts).UTC()
	r.Duration = time.Duration(duration)
	if err := json.Unmarshal([]byte(energy), &r.Energy); err != nil {
		return core.Record{}, fmt.Errorf("decode energy of %s: %w", r.RunID, err)
	}
	if err := json.Unmarshal([]byte(ideal), &r.Ideal); err != nil {
		return core.Record{}, fmt.Errorf("decode ideal of %s: %w", r.RunID, err)
	}
	return r, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
