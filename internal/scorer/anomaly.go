package scorer

import (
	"math"

	"github.com/sells-group/fraudleak/internal/model"
)

// Anomaly contributions and the deviation multiplier.
const (
	OutlierHighWeight = 0.4
	OutlierLowWeight  = 0.2
	OutlierSigma      = 2
)

// ComputeStats returns the mean and sample standard deviation of the amounts
// in txs. Records without an amount are ignored. With fewer than two amounts
// the deviation is 0.
func ComputeStats(txs []model.Transaction) model.DatasetStats {
	var n int
	var sum float64
	for _, tx := range txs {
		if !tx.Has(model.FieldAmount) {
			continue
		}
		n++
		sum += tx.Amount
	}
	if n == 0 {
		return model.DatasetStats{}
	}
	mean := sum / float64(n)

	stats := model.DatasetStats{Count: n, Mean: mean}
	if n < 2 {
		return stats
	}

	var sq float64
	for _, tx := range txs {
		if !tx.Has(model.FieldAmount) {
			continue
		}
		d := tx.Amount - mean
		sq += d * d
	}
	stats.StdDev = math.Sqrt(sq / float64(n-1))
	return stats
}

// AnomalyEvaluator scores how far an amount sits from the batch distribution.
type AnomalyEvaluator struct{}

// Evaluate returns 0.4 above mean+2σ, 0.2 below mean-2σ, else 0. A zero or
// non-finite deviation yields no contribution.
func (AnomalyEvaluator) Evaluate(tx model.Transaction, stats model.DatasetStats) float64 {
	score, _ := AnomalyEvaluator{}.Explain(tx, stats)
	return score
}

// Explain is Evaluate plus the name of the bound that was crossed.
func (AnomalyEvaluator) Explain(tx model.Transaction, stats model.DatasetStats) (float64, []string) {
	if !tx.Has(model.FieldAmount) {
		return 0, nil
	}
	std := stats.StdDev
	if std == 0 || math.IsNaN(std) || math.IsInf(std, 0) {
		return 0, nil
	}

	switch {
	case tx.Amount > stats.Mean+OutlierSigma*std:
		return OutlierHighWeight, []string{"amount_outlier_high"}
	case tx.Amount < stats.Mean-OutlierSigma*std:
		return OutlierLowWeight, []string{"amount_outlier_low"}
	}
	return 0, nil
}
