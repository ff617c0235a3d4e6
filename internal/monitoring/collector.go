// Package monitoring exports batch metrics and watches persisted run history
// for unusual flag or rejection rates.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fraudleak/internal/model"
	"github.com/sells-group/fraudleak/internal/store"
)

// maxSnapshotRuns bounds how many runs a snapshot reads.
const maxSnapshotRuns = 10000

// Snapshot holds a point-in-time view of recent scoring runs.
type Snapshot struct {
	Runs        int     `json:"runs"`
	Scored      int     `json:"scored"`
	Flagged     int     `json:"flagged"`
	Rejected    int     `json:"rejected"`
	FlagRate    float64 `json:"flag_rate"`
	RejectRate  float64 `json:"reject_rate"`
	MeanAmount  float64 `json:"mean_amount"`
	LatestRunID string  `json:"latest_run_id,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the part of store.Store the collector needs.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers a Snapshot from the run store.
type Collector struct {
	runs RunLister
}

// NewCollector creates a new collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs}
}

// Collect summarizes runs created within the lookback window. MeanAmount is
// weighted by each run's scored count.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := time.Now().UTC()
	snap := &Snapshot{LookbackHours: lookbackHours, CollectedAt: now}

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        maxSnapshotRuns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.Runs = len(runs)
	if len(runs) > 0 {
		snap.LatestRunID = runs[0].ID
	}

	var amountSum float64
	for _, r := range runs {
		snap.Scored += r.Summary.Total
		snap.Flagged += r.Summary.Flagged
		snap.Rejected += r.Summary.Rejected
		amountSum += r.Stats.Mean * float64(r.Summary.Total)
	}

	if snap.Scored > 0 {
		snap.FlagRate = float64(snap.Flagged) / float64(snap.Scored)
		snap.MeanAmount = amountSum / float64(snap.Scored)
	}
	if seen := snap.Scored + snap.Rejected; seen > 0 {
		snap.RejectRate = float64(snap.Rejected) / float64(seen)
	}
	return snap, nil
}
