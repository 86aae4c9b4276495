package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campus-locator/internal/aggregate"
	"github.com/sells-group/campus-locator/internal/cluster"
	"github.com/sells-group/campus-locator/internal/identity"
	"github.com/sells-group/campus-locator/internal/model"
	"github.com/sells-group/campus-locator/internal/predict"
	"github.com/sells-group/campus-locator/internal/probability"
	"github.com/sells-group/campus-locator/internal/source"
)

// Snapshot is everything one training pass produced. It is immutable once
// published.
type Snapshot struct {
	Options  TrainOptions
	Events   []model.ResolvedEvent
	Records  []model.AggregatedRecord
	Clusters map[string]int
	Tables   *model.ProbabilityTables
	Stats    model.TrainStats
	Sources  []source.ReadStats

	model *predict.Model
}

// Model returns the predictor built from this snapshot.
func (s *Snapshot) Model() *predict.Model {
	return s.model
}

// build runs the stages in order: read, resolve, aggregate, cluster, tables.
func build(ctx context.Context, reader *source.Reader, opts TrainOptions) (*Snapshot, error) {
	start := time.Now()
	log := zap.L().With(zap.String("data_dir", opts.DataDir))

	profiles, found, err := source.LoadProfiles(ctx, opts.DataDir)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load profiles")
	}
	if !found {
		log.Warn("pipeline: no profile table, only entity-keyed sources will resolve")
		profiles = nil
	}

	events, readStats, err := reader.Load(ctx, opts.DataDir)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read sources")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: cancelled after read")
	}

	resolved, idStats, err := identity.NewMapper(profiles).Resolve(events)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: resolve identities")
	}

	records := aggregate.Aggregate(resolved, opts.WindowHours)
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: cancelled after aggregate")
	}

	matrix := cluster.BuildMatrix(records)
	clusters, err := cluster.Assign(matrix, cluster.Options{
		K:        opts.Clusters,
		Seed:     opts.Seed,
		Restarts: opts.Restarts,
		MaxIter:  opts.MaxIter,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: cluster entities")
	}

	tables := probability.Build(records, clusters.Assignments)

	snap := &Snapshot{
		Options:  opts,
		Events:   resolved,
		Records:  records,
		Clusters: clusters.Assignments,
		Tables:   tables,
		Sources:  readStats,
		Stats: model.TrainStats{
			EventsRead:       idStats.Total,
			EventsResolved:   idStats.Resolved,
			Entities:         len(matrix.Entities),
			Windows:          len(matrix.Windows),
			Records:          len(records),
			Clusters:         clusters.K,
			Locations:        len(matrix.Locations),
			ClusterWindowKey: len(tables.ClusterWindow),
			Inertia:          clusters.Inertia,
			Duration:         time.Since(start),
		},
	}
	snap.model = predict.NewModel(opts.predictParams(), records, clusters.Assignments, tables)

	log.Info("pipeline: training complete",
		zap.Int("events", snap.Stats.EventsRead),
		zap.Float64("resolved_ratio", snap.Stats.ResolvedRatio()),
		zap.Int("entities", snap.Stats.Entities),
		zap.Int("clusters", snap.Stats.Clusters),
		zap.Duration("duration", snap.Stats.Duration),
	)
	return snap, nil
}
