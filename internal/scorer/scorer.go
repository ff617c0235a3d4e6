// Package scorer assigns heuristic fraud-risk scores to batches of
// transaction records and flags those at or above a threshold.
package scorer

import (
	"context"
	"errors"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fraudleak/internal/model"
)

// MissingPolicy decides what happens to a record that cannot be scored.
type MissingPolicy string

const (
	// MissingAbort fails the whole batch on the first invalid record.
	MissingAbort MissingPolicy = "abort"
	// MissingSkip excludes invalid records and reports them as rejected.
	MissingSkip MissingPolicy = "skip"
)

// Options selects which strategies contribute to the final score.
type Options struct {
	// Anomaly adds the dataset outlier contribution to the risk score. The
	// anomaly score is always computed and reported either way.
	Anomaly bool
	// Clamp bounds risk scores to [0, 1]. Unbounded by default.
	Clamp         bool
	MissingPolicy MissingPolicy
	// Workers bounds parallel scoring; values below 1 mean 1.
	Workers int
}

// Scorer runs the rule and anomaly evaluators across a batch. It holds no
// per-batch state and is safe for concurrent use.
type Scorer struct {
	rules   *RuleEvaluator
	anomaly AnomalyEvaluator
	opts    Options
}

// New creates a Scorer with the given options.
func New(opts Options) *Scorer {
	if opts.MissingPolicy == "" {
		opts.MissingPolicy = MissingAbort
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Scorer{rules: NewRuleEvaluator(), opts: opts}
}

// Options returns the options the scorer was built with.
func (s *Scorer) Options() Options {
	return s.opts
}

// ScoreBatch scores txs against threshold. Output order matches input order
// and identical input always yields identical output.
func (s *Scorer) ScoreBatch(ctx context.Context, txs []model.Transaction, threshold float64) (*model.BatchResult, error) {
	log := zap.L().With(zap.String("component", "scorer"))

	accepted := make([]model.Transaction, 0, len(txs))
	var rejected []model.RecordError
	for _, tx := range txs {
		if err := Validate(tx); err != nil {
			if s.opts.MissingPolicy != MissingSkip {
				return nil, eris.Wrap(err, "scorer: validate batch")
			}
			var re *model.RecordError
			if errors.As(err, &re) {
				rejected = append(rejected, *re)
			}
			log.Debug("record rejected", zap.Error(err))
			continue
		}
		accepted = append(accepted, tx)
	}

	stats := ComputeStats(accepted)

	assessments := make([]model.Assessment, len(accepted))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i := range accepted {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return eris.Wrap(err, "scorer: batch cancelled")
			}
			assessments[i] = s.Assess(accepted[i], stats, threshold)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &model.BatchResult{
		Threshold:   threshold,
		Stats:       stats,
		Assessments: assessments,
		Rejected:    rejected,
	}

	log.Debug("batch scored",
		zap.Int("total", len(txs)),
		zap.Int("scored", len(assessments)),
		zap.Int("rejected", len(rejected)),
		zap.Int("flagged", res.FlaggedCount()),
		zap.Float64("mean_amount", stats.Mean),
		zap.Float64("std_amount", stats.StdDev),
	)
	return res, nil
}

// Assess scores a single validated record against precomputed batch stats.
func (s *Scorer) Assess(tx model.Transaction, stats model.DatasetStats, threshold float64) model.Assessment {
	ruleScore, reasons := s.rules.Explain(tx)
	anomalyScore, anomalyReasons := s.anomaly.Explain(tx, stats)

	raw := ruleScore
	if s.opts.Anomaly {
		raw += anomalyScore
		reasons = append(reasons, anomalyReasons...)
	}

	risk := Round2(raw)
	if s.opts.Clamp {
		risk = math.Min(math.Max(risk, 0), 1)
	}

	return model.Assessment{
		ID:           tx.Identifier(),
		Amount:       tx.Amount,
		Vendor:       tx.Vendor,
		Department:   tx.Department,
		RuleScore:    Round2(ruleScore),
		AnomalyScore: Round2(anomalyScore),
		RiskScore:    risk,
		Flagged:      risk >= threshold,
		Reasons:      reasons,
	}
}

// Validate checks that tx carries every required field and a usable amount.
func Validate(tx model.Transaction) error {
	if missing := tx.Missing(); missing != 0 {
		return model.NewRecordError(tx.Row, tx.Identifier(), missing, model.ErrMissingField)
	}
	if math.IsNaN(tx.Amount) || math.IsInf(tx.Amount, 0) {
		return model.NewRecordError(tx.Row, tx.Identifier(), model.FieldAmount,
			eris.Wrap(model.ErrInvalidAmount, "not a finite number"))
	}
	if tx.Amount < 0 {
		return model.NewRecordError(tx.Row, tx.Identifier(), model.FieldAmount,
			eris.Wrapf(model.ErrInvalidAmount, "negative amount %g", tx.Amount))
	}
	return nil
}

// Round2 rounds x to two decimal places, halves away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
