package pipeline

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campus-locator/internal/aggregate"
	"github.com/sells-group/campus-locator/internal/metrics"
	"github.com/sells-group/campus-locator/internal/model"
	"github.com/sells-group/campus-locator/internal/predict"
	"github.com/sells-group/campus-locator/internal/source"
	"github.com/sells-group/campus-locator/internal/store"
)

const defaultCacheTTL = 10 * time.Minute

// TrainResult reports a successful training run.
type TrainResult struct {
	RunID   string             `json:"run_id,omitempty"`
	Stats   model.TrainStats   `json:"stats"`
	Sources []source.ReadStats `json:"sources"`
}

// Service owns the current model. Training is serialized; a new model is
// built without blocking readers and published atomically. A failed run
// leaves the previous model in place.
type Service struct {
	trainMu sync.Mutex

	mu   sync.RWMutex
	snap *Snapshot

	memo        *cache.Cache
	store       store.Store
	reader      *source.Reader
	concurrency int
}

// Option configures a Service.
type Option func(*Service)

// WithStore records every training run in st.
func WithStore(st store.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithCacheTTL sets how long memoized predictions live.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.memo = cache.New(ttl, 2*ttl)
		}
	}
}

// WithConcurrency bounds bulk prediction fan-out.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithReader overrides the source descriptor table.
func WithReader(r *source.Reader) Option {
	return func(s *Service) { s.reader = r }
}

// New creates an untrained Service.
func New(opts ...Option) *Service {
	s := &Service{
		memo:        cache.New(defaultCacheTTL, 2*defaultCacheTTL),
		reader:      source.NewReader(),
		concurrency: 4,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Train builds a model from opts.DataDir and publishes it.
func (s *Service) Train(ctx context.Context, opts TrainOptions) (*TrainResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	var runID string
	if s.store != nil {
		run, err := s.store.CreateRun(ctx, opts.Params())
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		runID = run.ID
	}
	log := zap.L().With(zap.String("run_id", runID))

	start := time.Now()
	snap, err := build(ctx, s.reader, opts)
	metrics.RecordTrain(time.Since(start), statsOf(snap), err)
	if err != nil {
		log.Error("pipeline: training failed, keeping previous model", zap.Error(err))
		if s.store != nil && runID != "" {
			if failErr := s.store.FailRun(context.WithoutCancel(ctx), runID, err.Error()); failErr != nil {
				log.Warn("pipeline: failed to record run failure", zap.Error(failErr))
			}
		}
		return nil, err
	}

	s.mu.Lock()
	s.snap = snap
	s.memo.Flush()
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.CompleteRun(ctx, runID, &snap.Stats); err != nil {
			log.Warn("pipeline: failed to record run completion", zap.Error(err))
		}
	}

	return &TrainResult{RunID: runID, Stats: snap.Stats, Sources: snap.Sources}, nil
}

func statsOf(snap *Snapshot) *model.TrainStats {
	if snap == nil {
		return nil
	}
	return &snap.Stats
}

// Trained reports whether a model has been published.
func (s *Service) Trained() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap != nil
}

// Snapshot returns the current training artifacts.
func (s *Service) Snapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil, ErrNotTrained
	}
	return s.snap, nil
}

// Predict answers a single query against the current model.
func (s *Service) Predict(entityID string, ts time.Time) (model.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return model.Prediction{}, ErrNotTrained
	}

	m := s.snap.model
	key := entityID + "|" + strconv.FormatInt(aggregate.Floor(ts, m.Params.WindowHours).Unix(), 10)
	if v, ok := s.memo.Get(key); ok {
		p := v.(model.Prediction)
		p.Timestamp = ts.UTC()
		metrics.RecordPrediction(p.Method, true)
		return p, nil
	}

	p := m.Predict(entityID, ts)
	s.memo.Set(key, p, cache.DefaultExpiration)
	metrics.RecordPrediction(p.Method, false)
	return p, nil
}

// PredictAll fills every unobserved (entity, window) pair of the current
// model, optionally restricted to the given windows.
func (s *Service) PredictAll(ctx context.Context, restrict []time.Time) ([]model.Prediction, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.model.PredictAll(ctx, restrict, s.concurrency)
}

// Summarize describes every cluster of the current model.
func (s *Service) Summarize(topN int) ([]predict.ClusterSummary, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.model.Summarize(topN), nil
}

// SaveArtifacts persists the current model's records and clusters, plus
// preds, under runID.
func (s *Service) SaveArtifacts(ctx context.Context, runID string, preds []model.Prediction) error {
	if s.store == nil {
		return eris.New("pipeline: no store configured")
	}
	snap, err := s.Snapshot()
	if err != nil {
		return err
	}
	err = s.store.SaveArtifacts(ctx, runID, &store.Artifacts{
		Records:     snap.Records,
		Clusters:    snap.Clusters,
		Predictions: preds,
	})
	return eris.Wrapf(err, "pipeline: save artifacts for run %s", runID)
}
