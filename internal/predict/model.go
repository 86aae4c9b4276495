// Package predict answers "where is this entity at this time" from a trained
// model using a strict fallback chain, and generates bulk predictions and
// cluster summaries from the same model.
package predict

import (
	"math"
	"time"

	"github.com/sells-group/campus-locator/internal/aggregate"
	"github.com/sells-group/campus-locator/internal/model"
	"github.com/sells-group/campus-locator/internal/probability"
)

// Defaults for the smoothing parameters.
const (
	DefaultDecayHalfLifeHours = 2.0
	DefaultNearbyWindowRadius = 2
	globalPriorPenalty        = 0.5
)

// Params are the inference knobs fixed at training time.
type Params struct {
	WindowHours        int
	DecayHalfLifeHours float64
	NearbyWindowRadius int
}

// Model is an immutable trained model. It is safe for concurrent use.
type Model struct {
	Params   Params
	Records  []model.AggregatedRecord
	Clusters map[string]int
	Tables   *model.ProbabilityTables

	index map[string]map[time.Time]int
}

// NewModel indexes records for exact lookups. The caller must not mutate
// the arguments afterwards.
func NewModel(p Params, records []model.AggregatedRecord, clusters map[string]int, tables *model.ProbabilityTables) *Model {
	if p.WindowHours < 1 {
		p.WindowHours = aggregate.DefaultWindowHours
	}
	if clusters == nil {
		clusters = map[string]int{}
	}
	if tables == nil {
		tables = probability.Build(nil, nil)
	}
	m := &Model{
		Params:   p,
		Records:  records,
		Clusters: clusters,
		Tables:   tables,
		index:    make(map[string]map[time.Time]int),
	}
	for i, r := range records {
		byWin, ok := m.index[r.EntityID]
		if !ok {
			byWin = make(map[time.Time]int)
			m.index[r.EntityID] = byWin
		}
		if _, dup := byWin[r.TimeWindow]; !dup {
			byWin[r.TimeWindow] = i
		}
	}
	return m
}

// Record returns the aggregated record for (entity, window), if any.
func (m *Model) Record(entityID string, window time.Time) (model.AggregatedRecord, bool) {
	i, ok := m.index[entityID][window.UTC()]
	if !ok {
		return model.AggregatedRecord{}, false
	}
	return m.Records[i], true
}

// Cluster returns the entity's cluster id.
func (m *Model) Cluster(entityID string) (int, bool) {
	c, ok := m.Clusters[entityID]
	return c, ok
}

// DecayWeight is the exponential half-life weight for a neighbor window
// hoursDiff hours away. With a non-positive half-life only the target window
// itself carries weight.
func DecayWeight(hoursDiff, halfLife float64) float64 {
	h := math.Abs(hoursDiff)
	if halfLife <= 0 {
		if h == 0 {
			return 1
		}
		return 0
	}
	return math.Pow(0.5, h/halfLife)
}

// NearbyWindows returns the observed windows within the configured radius of
// target, in ascending order. Windows never seen in the corpus are skipped.
func (m *Model) NearbyWindows(target time.Time) []time.Time {
	r := m.Params.NearbyWindowRadius
	if r < 0 {
		r = 0
	}
	var out []time.Time
	for off := -r; off <= r; off++ {
		w := aggregate.Offset(target, m.Params.WindowHours, off)
		if probability.HasWindow(m.Tables, w) {
			out = append(out, w)
		}
	}
	return out
}
