// Package store persists scoring runs so past audits can be listed and
// reviewed without re-reading the source ledger.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fraudleak/internal/model"
)

// ErrRunNotFound is returned by GetRun when no run has the requested ID.
var ErrRunNotFound = eris.New("run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Source       string    `json:"source,omitempty"`
	CreatedAfter time.Time `json:"created_after,omitempty"`
	Limit        int       `json:"limit,omitempty"`
	Offset       int       `json:"offset,omitempty"`
}

// DefaultListLimit caps ListRuns when the filter has no limit.
const DefaultListLimit = 100

// Store defines the persistence interface for scoring runs.
type Store interface {
	// SaveRun assigns run an ID and creation time, then writes it together
	// with its assessments.
	SaveRun(ctx context.Context, run *model.Run) error
	// GetRun returns a run with all of its assessments.
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	// ListRuns returns run headers, newest first, without assessments.
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// runColumns are the JSON-encoded parts of a run header.
type runColumns struct {
	options  []byte
	stats    []byte
	rejected []byte
}

func encodeRun(run *model.Run) (runColumns, error) {
	var cols runColumns
	var err error
	if cols.options, err = json.Marshal(run.Options); err != nil {
		return cols, eris.Wrap(err, "marshal options")
	}
	if cols.stats, err = json.Marshal(run.Stats); err != nil {
		return cols, eris.Wrap(err, "marshal stats")
	}
	rejected := run.Rejected
	if rejected == nil {
		rejected = []model.RecordError{}
	}
	if cols.rejected, err = json.Marshal(rejected); err != nil {
		return cols, eris.Wrap(err, "marshal rejected")
	}
	return cols, nil
}

func (c runColumns) decode(run *model.Run) error {
	if err := json.Unmarshal(c.options, &run.Options); err != nil {
		return eris.Wrap(err, "unmarshal options")
	}
	if err := json.Unmarshal(c.stats, &run.Stats); err != nil {
		return eris.Wrap(err, "unmarshal stats")
	}
	if len(c.rejected) > 0 {
		if err := json.Unmarshal(c.rejected, &run.Rejected); err != nil {
			return eris.Wrap(err, "unmarshal rejected")
		}
		if len(run.Rejected) == 0 {
			run.Rejected = nil
		}
	}
	return nil
}

func listLimit(f RunFilter) int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}
