package monitoring

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/fraudleak/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFlagRate   AlertType = "flag_rate"
	AlertRejectRate AlertType = "reject_rate"
)

// Alert is a threshold breach found in a Snapshot.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds.
type Alerter struct {
	cfg config.MonitoringConfig
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{cfg: cfg}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// Nothing fires until at least MinRuns runs are in the window. A zero
// threshold disables its check.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	if snap.Runs == 0 || snap.Runs < a.cfg.MinRuns {
		return nil
	}

	var alerts []Alert
	now := time.Now().UTC()

	if a.cfg.FlagRateThreshold > 0 && snap.FlagRate > a.cfg.FlagRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertFlagRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Flag rate %.1f%% exceeds threshold %.1f%% (%d flagged / %d scored in last %dh)",
				snap.FlagRate*100, a.cfg.FlagRateThreshold*100,
				snap.Flagged, snap.Scored, snap.LookbackHours,
			),
			Details: map[string]any{
				"flag_rate": snap.FlagRate,
				"threshold": a.cfg.FlagRateThreshold,
				"flagged":   snap.Flagged,
				"scored":    snap.Scored,
			},
			Timestamp: now,
		})
	}

	if a.cfg.RejectRateThreshold > 0 && snap.RejectRate > a.cfg.RejectRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRejectRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Rejection rate %.1f%% exceeds threshold %.1f%% (%d rejected in last %dh)",
				snap.RejectRate*100, a.cfg.RejectRateThreshold*100,
				snap.Rejected, snap.LookbackHours,
			),
			Details: map[string]any{
				"reject_rate": snap.RejectRate,
				"threshold":   a.cfg.RejectRateThreshold,
				"rejected":    snap.Rejected,
			},
			Timestamp: now,
		})
	}

	for _, al := range alerts {
		zap.L().Warn("monitoring: threshold breached",
			zap.String("type", string(al.Type)),
			zap.String("message", al.Message),
		)
	}
	return alerts
}
