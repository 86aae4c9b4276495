package predict

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/campus-locator/internal/model"
	"github.com/sells-group/campus-locator/internal/probability"
)

// PredictAll predicts every (clustered entity, observed window) pair that has
// no aggregated record. When restrict is non-empty only those windows that
// were also observed are used. Output is sorted by entity, then window.
func (m *Model) PredictAll(ctx context.Context, restrict []time.Time, concurrency int) ([]model.Prediction, error) {
	windows := m.Tables.Windows
	if len(restrict) > 0 {
		windows = nil
		seen := make(map[time.Time]bool)
		for _, w := range restrict {
			w = w.UTC()
			if !seen[w] && probability.HasWindow(m.Tables, w) {
				seen[w] = true
				windows = append(windows, w)
			}
		}
		sort.Slice(windows, func(i, j int) bool { return windows[i].Before(windows[j]) })
	}

	entities := make([]string, 0, len(m.Clusters))
	for e := range m.Clusters {
		entities = append(entities, e)
	}
	sort.Strings(entities)

	if concurrency < 1 {
		concurrency = 1
	}
	perEntity := make([][]model.Prediction, len(entities))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, ent := range entities {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return eris.Wrap(err, "predict: bulk cancelled")
			}
			var preds []model.Prediction
			for _, w := range windows {
				if _, ok := m.Record(ent, w); ok {
					continue
				}
				preds = append(preds, m.Predict(ent, w))
			}
			perEntity[i] = preds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []model.Prediction
	for _, preds := range perEntity {
		out = append(out, preds...)
	}

	zap.L().Info("predict: bulk predictions",
		zap.Int("entities", len(entities)),
		zap.Int("windows", len(windows)),
		zap.Int("predictions", len(out)),
	)
	return out, nil
}
