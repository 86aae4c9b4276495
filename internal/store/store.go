// Package store records training runs and their artifacts.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/campus-locator/internal/model"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.TrainStatus `json:"status,omitempty"`
	Limit  int               `json:"limit,omitempty"`
	Offset int               `json:"offset,omitempty"`
}

// Artifacts are the per-run outputs worth keeping: the aggregated history,
// the cluster assignment and, optionally, bulk predictions.
type Artifacts struct {
	Records     []model.AggregatedRecord
	Clusters    map[string]int
	Predictions []model.Prediction
}

// ArtifactCounts reports how many artifact rows a run persisted.
type ArtifactCounts struct {
	Records     int `json:"records"`
	Clusters    int `json:"clusters"`
	Predictions int `json:"predictions"`
}

// Store defines the persistence interface for run history.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, params model.TrainParams) (*model.TrainRun, error)
	CompleteRun(ctx context.Context, runID string, stats *model.TrainStats) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*model.TrainRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.TrainRun, error)

	// Artifacts
	SaveArtifacts(ctx context.Context, runID string, a *Artifacts) error
	CountArtifacts(ctx context.Context, runID string) (ArtifactCounts, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(f RunFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// sortedEntities returns cluster assignments in entity order so persisted
// rows are stable across runs.
func sortedEntities(clusters map[string]int) []string {
	out := make([]string, 0, len(clusters))
	for e := range clusters {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func nullableLocation(p model.Prediction) any {
	if p.PredictedLocation == nil {
		return nil
	}
	return *p.PredictedLocation
}

func now() time.Time {
	return time.Now().UTC()
}
