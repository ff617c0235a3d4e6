package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fraudleak/internal/db"
	"github.com/sells-group/fraudleak/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// assessmentColumns is the COPY column order for the assessments table.
var assessmentColumns = []string{
	"run_id", "position", "transaction_id", "amount", "vendor", "department",
	"rule_score", "anomaly_score", "risk_score", "flagged", "reasons",
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source     TEXT NOT NULL,
	options    JSONB NOT NULL,
	total      INTEGER NOT NULL,
	flagged    INTEGER NOT NULL,
	rejected   INTEGER NOT NULL,
	stats      JSONB NOT NULL,
	rejections JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS assessments (
	run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	transaction_id TEXT NOT NULL,
	amount         DOUBLE PRECISION NOT NULL,
	vendor         TEXT NOT NULL,
	department     TEXT NOT NULL,
	rule_score     DOUBLE PRECISION NOT NULL,
	anomaly_score  DOUBLE PRECISION NOT NULL,
	risk_score     DOUBLE PRECISION NOT NULL,
	flagged        BOOLEAN NOT NULL,
	reasons        TEXT[] NOT NULL DEFAULT '{}',
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
CREATE INDEX IF NOT EXISTS idx_assessments_flagged ON assessments(run_id) WHERE flagged;
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate creates the run tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveRun inserts the run header and bulk-copies its assessments in a single
// transaction.
func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run) error {
	cols, err := encodeRun(run)
	if err != nil {
		return eris.Wrap(err, "postgres: save run")
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save run")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO runs (id, source, options, total, flagged, rejected, stats, rejections, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, run.Source, cols.options, run.Summary.Total, run.Summary.Flagged,
		run.Summary.Rejected, cols.stats, cols.rejected, now,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert run")
	}

	rows := make([][]any, len(run.Assessments))
	for i, a := range run.Assessments {
		rows[i] = []any{id, i, a.ID, a.Amount, a.Vendor, a.Department,
			a.RuleScore, a.AnomalyScore, a.RiskScore, a.Flagged, reasonsOrEmpty(a.Reasons)}
	}
	if _, err := db.CopyFrom(ctx, tx, "assessments", assessmentColumns, rows); err != nil {
		return eris.Wrap(err, "postgres: copy assessments")
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit save run")
	}
	run.ID = id
	run.CreatedAt = now
	return nil
}

// GetRun loads a run and its assessments in source order.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPGRun(s.pool.QueryRow(ctx,
		`SELECT id, source, options, total, flagged, rejected, stats, rejections, created_at
		 FROM runs WHERE id = $1`,
		runID,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT transaction_id, amount, vendor, department, rule_score, anomaly_score,
		 risk_score, flagged, reasons FROM assessments WHERE run_id = $1 ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query assessments")
	}
	defer rows.Close()

	for rows.Next() {
		var a model.Assessment
		if err := rows.Scan(&a.ID, &a.Amount, &a.Vendor, &a.Department, &a.RuleScore,
			&a.AnomalyScore, &a.RiskScore, &a.Flagged, &a.Reasons); err != nil {
			return nil, eris.Wrap(err, "postgres: scan assessment")
		}
		if len(a.Reasons) == 0 {
			a.Reasons = nil
		}
		r.Assessments = append(r.Assessments, a)
	}
	return r, eris.Wrap(rows.Err(), "postgres: assessments iterate")
}

// ListRuns returns run headers, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, options, total, flagged, rejected, stats, rejections, created_at
		FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, filter.Source)
		argIdx++
	}
	if !filter.CreatedAfter.IsZero() {
		query += fmt.Sprintf(` AND created_at > $%d`, argIdx)
		args = append(args, filter.CreatedAfter)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPGRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPGRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var cols runColumns

	err := row.Scan(&r.ID, &r.Source, &cols.options, &r.Summary.Total, &r.Summary.Flagged,
		&r.Summary.Rejected, &cols.stats, &cols.rejected, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}
	if err := cols.decode(&r); err != nil {
		return nil, eris.Wrap(err, "postgres: decode run")
	}
	return &r, nil
}
