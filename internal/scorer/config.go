package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fraudleak/internal/config"
)

// DefaultThreshold is the risk score at or above which a record is flagged.
const DefaultThreshold = 0.7

// DefaultScorerConfig returns a config.ScorerConfig with the legacy
// behavior: rule score only, unbounded, abort on invalid records.
func DefaultScorerConfig() config.ScorerConfig {
	return config.ScorerConfig{
		Threshold:     DefaultThreshold,
		Anomaly:       false,
		Clamp:         false,
		MissingPolicy: string(MissingAbort),
		Workers:       1,
	}
}

// MaxScore returns the largest risk score the enabled rules can produce.
func MaxScore(c config.ScorerConfig) float64 {
	// The two amount rules are mutually exclusive, as are the two outlier bounds.
	maxScore := HighAmountWeight + RiskyVendorWeight + RiskyDepartmentWeight
	if c.Anomaly {
		maxScore += OutlierHighWeight
	}
	if c.Clamp {
		maxScore = math.Min(maxScore, 1)
	}
	return Round2(maxScore)
}

// ValidateConfig checks that a ScorerConfig is internally consistent.
func ValidateConfig(c config.ScorerConfig) error {
	var errs []string

	if math.IsNaN(c.Threshold) || c.Threshold < 0 {
		errs = append(errs, "threshold must be >= 0")
	}
	switch MissingPolicy(c.MissingPolicy) {
	case MissingAbort, MissingSkip:
	default:
		errs = append(errs, fmt.Sprintf("missing_policy must be %q or %q, got %q", MissingAbort, MissingSkip, c.MissingPolicy))
	}
	if c.Workers < 1 {
		errs = append(errs, "workers must be >= 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// OptionsFromConfig validates c and converts it to scorer Options.
func OptionsFromConfig(c config.ScorerConfig) (Options, error) {
	if err := ValidateConfig(c); err != nil {
		return Options{}, err
	}
	return Options{
		Anomaly:       c.Anomaly,
		Clamp:         c.Clamp,
		MissingPolicy: MissingPolicy(c.MissingPolicy),
		Workers:       c.Workers,
	}, nil
}
