// Package probability turns aggregated records and cluster assignments into
// the three location probability layers used for prediction.
package probability

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/campus-locator/internal/aggregate"
	"github.com/sells-group/campus-locator/internal/model"
)

// counter tallies locations while remembering first-seen order.
type counter struct {
	counts map[string]int
	order  []string
	total  int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(loc string) {
	if _, ok := c.counts[loc]; !ok {
		c.order = append(c.order, loc)
	}
	c.counts[loc]++
	c.total++
}

func (c *counter) distribution() model.Distribution {
	if c.total == 0 {
		return nil
	}
	d := make(model.Distribution, 0, len(c.order))
	for _, loc := range c.order {
		d = append(d, model.LocationProb{LocationID: loc, Prob: float64(c.counts[loc]) / float64(c.total)})
	}
	return d
}

// Build computes cluster×window, cluster and global location distributions.
// Records whose entity has no cluster contribute to none of the layers.
func Build(records []model.AggregatedRecord, clusters map[string]int) *model.ProbabilityTables {
	window := make(map[model.WindowKey]*counter)
	prior := make(map[int]*counter)
	global := newCounter()

	for _, r := range records {
		c, ok := clusters[r.EntityID]
		if !ok {
			continue
		}
		k := model.WindowKey{Cluster: c, Window: r.TimeWindow}
		if window[k] == nil {
			window[k] = newCounter()
		}
		window[k].add(r.LocationID)

		if prior[c] == nil {
			prior[c] = newCounter()
		}
		prior[c].add(r.LocationID)
		global.add(r.LocationID)
	}

	t := &model.ProbabilityTables{
		ClusterWindow: make(map[model.WindowKey]model.Distribution, len(window)),
		ClusterPrior:  make(map[int]model.Distribution, len(prior)),
		Global:        sortedByFrequency(global),
		Windows:       aggregate.Windows(records),
	}
	for k, c := range window {
		t.ClusterWindow[k] = c.distribution()
	}
	for k, c := range prior {
		t.ClusterPrior[k] = c.distribution()
	}

	zap.L().Info("probability: built tables",
		zap.Int("cluster_window_keys", len(t.ClusterWindow)),
		zap.Int("cluster_priors", len(t.ClusterPrior)),
		zap.Int("global_locations", len(t.Global)),
	)
	return t
}

// sortedByFrequency orders the global prior most-frequent first, keeping
// first-seen order among equal counts.
func sortedByFrequency(c *counter) model.Distribution {
	d := c.distribution()
	for i := 1; i < len(d); i++ {
		for j := i; j > 0 && d[j].Prob > d[j-1].Prob; j-- {
			d[j], d[j-1] = d[j-1], d[j]
		}
	}
	return d
}

// HasWindow reports whether w was observed anywhere in the corpus.
func HasWindow(t *model.ProbabilityTables, w time.Time) bool {
	lo, hi := 0, len(t.Windows)
	for lo < hi {
		mid := (lo + hi) / 2
		if t.Windows[mid].Before(w) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo < len(t.Windows) && t.Windows[lo].Equal(w)
}
