package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fraudleak/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	options    TEXT NOT NULL,
	total      INTEGER NOT NULL,
	flagged    INTEGER NOT NULL,
	rejected   INTEGER NOT NULL,
	stats      TEXT NOT NULL,
	rejections TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS assessments (
	run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	transaction_id TEXT NOT NULL,
	amount         REAL NOT NULL,
	vendor         TEXT NOT NULL,
	department     TEXT NOT NULL,
	rule_score     REAL NOT NULL,
	anomaly_score  REAL NOT NULL,
	risk_score     REAL NOT NULL,
	flagged        INTEGER NOT NULL,
	reasons        TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
`

// Migrate creates the run tables if they do not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun writes the run header and its assessments in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	cols, err := encodeRun(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: save run")
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save run")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, options, total, flagged, rejected, stats, rejections, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, run.Source, string(cols.options), run.Summary.Total, run.Summary.Flagged,
		run.Summary.Rejected, string(cols.stats), string(cols.rejected), now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert run")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO assessments (run_id, position, transaction_id, amount, vendor, department,
		 rule_score, anomaly_score, risk_score, flagged, reasons)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare assessment insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, a := range run.Assessments {
		reasons, err := json.Marshal(reasonsOrEmpty(a.Reasons))
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal reasons")
		}
		if _, err := stmt.ExecContext(ctx, id, i, a.ID, a.Amount, a.Vendor, a.Department,
			a.RuleScore, a.AnomalyScore, a.RiskScore, a.Flagged, string(reasons)); err != nil {
			return eris.Wrapf(err, "sqlite: insert assessment %s", a.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit save run")
	}
	run.ID = id
	run.CreatedAt = now
	return nil
}

// GetRun loads a run and its assessments in source order.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, options, total, flagged, rejected, stats, rejections, created_at
		 FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, ErrRunNotFound) {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT transaction_id, amount, vendor, department, rule_score, anomaly_score,
		 risk_score, flagged, reasons FROM assessments WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query assessments")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var a model.Assessment
		var reasons string
		if err := rows.Scan(&a.ID, &a.Amount, &a.Vendor, &a.Department, &a.RuleScore,
			&a.AnomalyScore, &a.RiskScore, &a.Flagged, &reasons); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assessment")
		}
		if err := json.Unmarshal([]byte(reasons), &a.Reasons); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal reasons")
		}
		if len(a.Reasons) == 0 {
			a.Reasons = nil
		}
		r.Assessments = append(r.Assessments, a)
	}
	return r, eris.Wrap(rows.Err(), "sqlite: assessments iterate")
}

// ListRuns returns run headers, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, options, total, flagged, rejected, stats, rejections, created_at
		FROM runs WHERE 1=1`
	var args []any

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, listLimit(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var options, stats, rejected string

	err := row.Scan(&r.ID, &r.Source, &options, &r.Summary.Total, &r.Summary.Flagged,
		&r.Summary.Rejected, &stats, &rejected, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	cols := runColumns{options: []byte(options), stats: []byte(stats), rejected: []byte(rejected)}
	if err := cols.decode(&r); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode run")
	}
	return &r, nil
}

func reasonsOrEmpty(reasons []string) []string {
	if reasons == nil {
		return []string{}
	}
	return reasons
}
