package predict

import (
	"time"

	"github.com/sells-group/campus-locator/internal/aggregate"
	"github.com/sells-group/campus-locator/internal/model"
)

// Predict runs the fallback chain for one (entity, timestamp) query. Earlier
// tiers always take precedence:
//
//  1. an aggregated record for the window (confidence 1.0)
//  2. unknown entity
//  3. the cluster's distribution for the window, or
//  4. a decay-weighted blend of neighboring observed windows
//  5. (3 or 4 produced a distribution) its top location
//  6. the cluster prior
//  7. the global prior, at half its frequency
//  8. no data
func (m *Model) Predict(entityID string, ts time.Time) model.Prediction {
	window := aggregate.Floor(ts, m.Params.WindowHours)
	p := model.Prediction{
		EntityID:   entityID,
		Timestamp:  ts.UTC(),
		TimeWindow: window,
		Cluster:    model.UnknownCluster,
	}

	cluster, known := m.Cluster(entityID)
	if known {
		p.Cluster = cluster
	}

	if rec, ok := m.Record(entityID, window); ok {
		loc := rec.LocationID
		p.PredictedLocation = &loc
		p.Confidence = 1.0
		p.Method = model.MethodActualData
		p.Details = map[string]any{"sources": rec.SourcesString(), "event_count": rec.EventCount}
		return p
	}

	if !known {
		p.Method = model.MethodEntityNotFound
		return p
	}

	dist := m.Tables.ClusterWindow[model.WindowKey{Cluster: cluster, Window: window}]
	exact := len(dist) > 0
	considered := []time.Time{window}
	if !exact {
		dist, considered = m.smooth(cluster, window)
	}

	if top, ok := dist.Top(); ok {
		loc := top.LocationID
		p.PredictedLocation = &loc
		p.Confidence = top.Prob
		p.Method = model.MethodProbabilistic
		p.Details = map[string]any{
			"exact_window":       exact,
			"considered_windows": formatWindows(considered),
		}
		return p
	}

	if top, ok := m.Tables.ClusterPrior[cluster].Top(); ok {
		loc := top.LocationID
		p.PredictedLocation = &loc
		p.Confidence = top.Prob
		p.Method = model.MethodClusterPrior
		return p
	}

	if len(m.Tables.Global) > 0 {
		// Global is sorted most-frequent first.
		top := m.Tables.Global[0]
		loc := top.LocationID
		p.PredictedLocation = &loc
		p.Confidence = top.Prob * globalPriorPenalty
		p.Method = model.MethodGlobalPrior
		return p
	}

	p.Method = model.MethodNoData
	return p
}

// smooth blends the cluster's distributions at nearby observed windows,
// weighting each by its temporal distance from target. It returns nil when
// no neighbor carries weight.
func (m *Model) smooth(cluster int, target time.Time) (model.Distribution, []time.Time) {
	var used []time.Time
	scores := make(map[string]float64)
	var order []string

	for _, w := range m.NearbyWindows(target) {
		d, ok := m.Tables.ClusterWindow[model.WindowKey{Cluster: cluster, Window: w}]
		if !ok || len(d) == 0 {
			continue
		}
		used = append(used, w)
		weight := DecayWeight(w.Sub(target).Hours(), m.Params.DecayHalfLifeHours)
		for _, e := range d {
			if _, seen := scores[e.LocationID]; !seen {
				order = append(order, e.LocationID)
			}
			scores[e.LocationID] += e.Prob * weight
		}
	}

	var total float64
	for _, s := range scores {
		total += s
	}
	if total <= 0 {
		return nil, used
	}

	out := make(model.Distribution, 0, len(order))
	for _, loc := range order {
		out = append(out, model.LocationProb{LocationID: loc, Prob: scores[loc] / total})
	}
	return out, used
}

func formatWindows(ws []time.Time) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Format(time.RFC3339)
	}
	return out
}
