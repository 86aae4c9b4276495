// Package monitoring derives training run health from the run store.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/campus-locator/internal/model"
	"github.com/sells-group/campus-locator/internal/store"
)

// maxRuns bounds how many runs one collection reads.
const maxRuns = 10000

// Snapshot holds a point-in-time view of training health.
type Snapshot struct {
	Total    int     `json:"total"`
	Complete int     `json:"complete"`
	Failed   int     `json:"failed"`
	Running  int     `json:"running"`
	FailRate float64 `json:"fail_rate"`

	// Complete runs that recorded stats; the averages below cover only these.
	WithStats        int           `json:"with_stats"`
	AvgDuration      time.Duration `json:"avg_duration"`
	AvgResolvedRatio float64       `json:"avg_resolved_ratio"`

	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastError   string     `json:"last_error,omitempty"`

	Lookback    time.Duration `json:"lookback"`
	CollectedAt time.Time     `json:"collected_at"`
}

// Finished is the number of runs that reached a terminal state.
func (s *Snapshot) Finished() int {
	return s.Complete + s.Failed
}

// RunLister is the slice of store.Store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.TrainRun, error)
}

// Collector gathers run health from a store.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a collector over runs.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: func() time.Time { return time.Now().UTC() }}
}

// Collect summarizes runs created within lookback.
func (c *Collector) Collect(ctx context.Context, lookback time.Duration) (*Snapshot, error) {
	now := c.now()
	snap := &Snapshot{Lookback: lookback, CollectedAt: now}
	cutoff := now.Add(-lookback)

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{Limit: maxRuns})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	var totalDur time.Duration
	var totalRatio float64

	// Runs arrive newest first.
	for _, r := range runs {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		snap.Total++

		switch r.Status {
		case model.TrainStatusComplete:
			snap.Complete++
			if snap.LastSuccess == nil {
				at := r.UpdatedAt
				snap.LastSuccess = &at
			}
			if r.Stats != nil {
				totalDur += r.Stats.Duration
				totalRatio += r.Stats.ResolvedRatio()
				snap.WithStats++
			}
		case model.TrainStatusFailed:
			snap.Failed++
			if snap.LastError == "" {
				snap.LastError = r.Error
			}
		case model.TrainStatusRunning:
			snap.Running++
		}
	}

	if finished := snap.Finished(); finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	if snap.WithStats > 0 {
		snap.AvgDuration = totalDur / time.Duration(snap.WithStats)
		snap.AvgResolvedRatio = totalRatio / float64(snap.WithStats)
	}

	return snap, nil
}
