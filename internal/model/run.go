package model

import "time"

// RunOptions records how a scoring run was configured.
type RunOptions struct {
	Threshold     float64 `json:"threshold"`
	Anomaly       bool    `json:"anomaly"`
	Clamp         bool    `json:"clamp"`
	MissingPolicy string  `json:"missing_policy"`
}

// RunSummary holds the headline counts of a run.
type RunSummary struct {
	Total    int `json:"total"`
	Flagged  int `json:"flagged"`
	Rejected int `json:"rejected"`
}

// Run is a persisted scoring run. Only results are stored, never rule state.
type Run struct {
	ID          string        `json:"id"`
	Source      string        `json:"source"`
	Options     RunOptions    `json:"options"`
	Summary     RunSummary    `json:"summary"`
	Stats       DatasetStats  `json:"stats"`
	Assessments []Assessment  `json:"assessments,omitempty"`
	Rejected    []RecordError `json:"rejected,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// NewRun builds a Run from a finished batch. ID and CreatedAt are assigned by
// the store.
func NewRun(source string, opts RunOptions, res *BatchResult) Run {
	return Run{
		Source:  source,
		Options: opts,
		Summary: RunSummary{
			Total:    len(res.Assessments),
			Flagged:  res.FlaggedCount(),
			Rejected: len(res.Rejected),
		},
		Stats:       res.Stats,
		Assessments: res.Assessments,
		Rejected:    res.Rejected,
	}
}
