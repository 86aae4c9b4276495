package monitoring

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/campus-locator/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFailureRate   AlertType = "train_failure_rate"
	AlertLowResolution AlertType = "low_resolution"
	AlertNoSuccess     AlertType = "no_successful_run"
)

// Alert is one breached threshold.
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

// NewAlerter creates an Alerter with the given thresholds.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{cfg: cfg}
}

// Evaluate returns every alert snap triggers. Rate-based checks wait for
// MinFinishedRuns terminal runs.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := snap.CollectedAt

	if snap.Finished() >= a.cfg.MinFinishedRuns && snap.FailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertFailureRate,
			Severity: "high",
			Message: fmt.Sprintf("training failure rate %.1f%% exceeds threshold %.1f%%",
				snap.FailRate*100, a.cfg.FailureRateThreshold*100),
			Details: map[string]any{
				"failed":     snap.Failed,
				"complete":   snap.Complete,
				"last_error": snap.LastError,
			},
			Timestamp: now,
		})
	}

	if snap.WithStats > 0 && snap.AvgResolvedRatio < a.cfg.MinResolvedRatio {
		alerts = append(alerts, Alert{
			Type:     AlertLowResolution,
			Severity: "medium",
			Message: fmt.Sprintf("only %.1f%% of events resolved to an entity on average (minimum %.1f%%)",
				snap.AvgResolvedRatio*100, a.cfg.MinResolvedRatio*100),
			Timestamp: now,
		})
	}

	if snap.Failed > 0 && snap.Complete == 0 {
		alerts = append(alerts, Alert{
			Type:      AlertNoSuccess,
			Severity:  "high",
			Message:   fmt.Sprintf("no successful training run in the last %s", snap.Lookback),
			Details:   map[string]any{"last_error": snap.LastError},
			Timestamp: now,
		})
	}

	return alerts
}

// Log writes each alert to the global logger.
func Log(alerts []Alert) {
	for _, al := range alerts {
		zap.L().Warn("monitoring: alert",
			zap.String("type", string(al.Type)),
			zap.String("severity", al.Severity),
			zap.String("message", al.Message),
			zap.Any("details", al.Details),
		)
	}
}
