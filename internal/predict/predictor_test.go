package predict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/campus-locator/internal/model"
	"github.com/sells-group/campus-locator/internal/probability"
)

func at(h, m int) time.Time {
	return time.Date(2025, 1, 7, h, m, 0, 0, time.UTC)
}

func rec(entity string, h int, loc string) model.AggregatedRecord {
	return model.AggregatedRecord{
		EntityID:   entity,
		TimeWindow: at(h, 0),
		LocationID: loc,
		Sources:    []model.Source{model.SourceCard},
		EventCount: 1,
	}
}

func defaultParams() Params {
	return Params{WindowHours: 2, DecayHalfLifeHours: DefaultDecayHalfLifeHours, NearbyWindowRadius: DefaultNearbyWindowRadius}
}

// fixtureModel: cluster 0 = {A, B}, cluster 1 = {C}, cluster 2 = {D} with no
// records. Observed windows are 08:00, 10:00 and 14:00.
func fixtureModel(p Params) *Model {
	records := []model.AggregatedRecord{
		rec("A", 8, "LAB"),
		rec("A", 10, "LAB"),
		rec("B", 8, "LAB"),
		rec("B", 14, "LIB"),
		rec("C", 8, "CAFE"),
	}
	clusters := map[string]int{"A": 0, "B": 0, "C": 1, "D": 2}
	return NewModel(p, records, clusters, probability.Build(records, clusters))
}

func TestPredict_ActualData(t *testing.T) {
	m := fixtureModel(defaultParams())

	p := m.Predict("A", at(8, 5))
	assert.Equal(t, model.MethodActualData, p.Method)
	assert.Equal(t, "LAB", p.Location())
	assert.Equal(t, 1.0, p.Confidence)
	assert.Equal(t, 0, p.Cluster)
	assert.Equal(t, "card", p.Details["sources"])
	assert.Equal(t, at(8, 0), p.TimeWindow)
}

func TestPredict_ActualDataIgnoresTables(t *testing.T) {
	records := []model.AggregatedRecord{rec("A", 8, "LAB")}
	// Tables deliberately disagree with the record and the entity has no cluster.
	tables := probability.Build([]model.AggregatedRecord{rec("Z", 8, "ELSEWHERE")}, map[string]int{"Z": 0})
	m := NewModel(defaultParams(), records, nil, tables)

	p := m.Predict("A", at(9, 59))
	assert.Equal(t, model.MethodActualData, p.Method)
	assert.Equal(t, "LAB", p.Location())
	assert.Equal(t, 1.0, p.Confidence)
	assert.Equal(t, model.UnknownCluster, p.Cluster)
}

func TestPredict_EntityNotFound(t *testing.T) {
	m := fixtureModel(defaultParams())

	p := m.Predict("E999", at(8, 0))
	assert.Equal(t, model.MethodEntityNotFound, p.Method)
	assert.Nil(t, p.PredictedLocation)
	assert.Equal(t, 0.0, p.Confidence)
	assert.Equal(t, model.UnknownCluster, p.Cluster)
}

func TestPredict_ExactClusterWindow(t *testing.T) {
	m := fixtureModel(defaultParams())

	p := m.Predict("B", at(10, 30))
	assert.Equal(t, model.MethodProbabilistic, p.Method)
	assert.Equal(t, "LAB", p.Location())
	assert.InDelta(t, 1.0, p.Confidence, 1e-9)
	assert.Equal(t, true, p.Details["exact_window"])
}

func TestPredict_NeighborSmoothing(t *testing.T) {
	m := fixtureModel(defaultParams())

	// 12:00 is unobserved. Neighbors: 08:00 (w=0.25, LAB), 10:00 (w=0.5,
	// LAB), 14:00 (w=0.5, LIB) → LAB 0.75/1.25, LIB 0.5/1.25.
	p := m.Predict("A", at(12, 30))
	assert.Equal(t, model.MethodProbabilistic, p.Method)
	assert.Equal(t, "LAB", p.Location())
	assert.InDelta(t, 0.6, p.Confidence, 1e-9)
	assert.Equal(t, false, p.Details["exact_window"])
	assert.Equal(t, []string{
		"2025-01-07T08:00:00Z",
		"2025-01-07T10:00:00Z",
		"2025-01-07T14:00:00Z",
	}, p.Details["considered_windows"])
}

func TestPredict_SmoothingZeroHalfLifeFallsThrough(t *testing.T) {
	p := defaultParams()
	p.DecayHalfLifeHours = 0
	m := fixtureModel(p)

	// All neighbors are at non-zero distance and weigh 0.
	got := m.Predict("A", at(12, 0))
	assert.Equal(t, model.MethodClusterPrior, got.Method)
	assert.Equal(t, "LAB", got.Location())
	assert.InDelta(t, 0.75, got.Confidence, 1e-9)
}

func TestPredict_ClusterPrior(t *testing.T) {
	m := fixtureModel(defaultParams())

	p := m.Predict("C", at(20, 0))
	assert.Equal(t, model.MethodClusterPrior, p.Method)
	assert.Equal(t, "CAFE", p.Location())
	assert.InDelta(t, 1.0, p.Confidence, 1e-9)
	assert.Equal(t, 1, p.Cluster)
}

func TestPredict_GlobalPrior(t *testing.T) {
	m := fixtureModel(defaultParams())

	// D is clustered but its cluster has no records: LAB is 3/5 globally.
	p := m.Predict("D", at(8, 0))
	assert.Equal(t, model.MethodGlobalPrior, p.Method)
	assert.Equal(t, "LAB", p.Location())
	assert.InDelta(t, 0.3, p.Confidence, 1e-9)
	assert.Equal(t, 2, p.Cluster)
}

func TestPredict_NoData(t *testing.T) {
	m := NewModel(defaultParams(), nil, map[string]int{"X": 0}, nil)

	p := m.Predict("X", at(8, 0))
	assert.Equal(t, model.MethodNoData, p.Method)
	assert.Nil(t, p.PredictedLocation)
	assert.Equal(t, 0.0, p.Confidence)
	assert.Equal(t, 0, p.Cluster)
}

func TestPredict_FallbackOrder(t *testing.T) {
	m := fixtureModel(defaultParams())

	cases := []struct {
		entity string
		ts     time.Time
		want   model.Method
	}{
		{"A", at(8, 0), model.MethodActualData},
		{"B", at(10, 0), model.MethodProbabilistic},
		{"C", at(22, 0), model.MethodClusterPrior},
		{"D", at(22, 0), model.MethodGlobalPrior},
	}
	for _, c := range cases {
		t.Run(string(c.want), func(t *testing.T) {
			p := m.Predict(c.entity, c.ts)
			assert.Equal(t, c.want, p.Method)
			assert.GreaterOrEqual(t, p.Confidence, 0.0)
			assert.LessOrEqual(t, p.Confidence, 1.0)
		})
	}
}

func TestDecayWeight(t *testing.T) {
	assert.Equal(t, 1.0, DecayWeight(0, 2))
	assert.InDelta(t, 0.5, DecayWeight(2, 2), 1e-12)
	assert.InDelta(t, 0.5, DecayWeight(-2, 2), 1e-12)
	assert.InDelta(t, 0.25, DecayWeight(4, 2), 1e-12)

	prev := DecayWeight(0, 2)
	for h := 0.5; h <= 24; h += 0.5 {
		w := DecayWeight(h, 2)
		assert.LessOrEqual(t, w, prev, "weight must not increase at %v", h)
		prev = w
	}

	assert.Equal(t, 1.0, DecayWeight(0, 0))
	assert.Equal(t, 0.0, DecayWeight(2, 0))
	assert.Equal(t, 0.0, DecayWeight(2, -1))
}

func TestNearbyWindows(t *testing.T) {
	m := fixtureModel(defaultParams())
	assert.Equal(t, []time.Time{at(8, 0), at(10, 0), at(14, 0)}, m.NearbyWindows(at(12, 0)))
	assert.Empty(t, m.NearbyWindows(at(22, 0)))

	p := defaultParams()
	p.NearbyWindowRadius = 0
	m = fixtureModel(p)
	assert.Equal(t, []time.Time{at(10, 0)}, m.NearbyWindows(at(10, 0)))
	assert.Empty(t, m.NearbyWindows(at(12, 0)))
}

func TestDistributionTopTieBreak(t *testing.T) {
	d := model.Distribution{{LocationID: "B", Prob: 0.5}, {LocationID: "A", Prob: 0.5}}
	top, ok := d.Top()
	require.True(t, ok)
	assert.Equal(t, "B", top.LocationID)
}
