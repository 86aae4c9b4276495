package model

import "time"

// LocationProb is one entry of a location distribution.
type LocationProb struct {
	LocationID string  `json:"location_id"`
	Prob       float64 `json:"prob"`
}

// Distribution is an ordered probability distribution over locations. Order
// is significant: Top breaks ties by position.
type Distribution []LocationProb

// Top returns the highest-probability entry. The first entry wins ties.
func (d Distribution) Top() (LocationProb, bool) {
	if len(d) == 0 {
		return LocationProb{}, false
	}
	best := d[0]
	for _, e := range d[1:] {
		if e.Prob > best.Prob {
			best = e
		}
	}
	return best, true
}

// Sum returns the total probability mass.
func (d Distribution) Sum() float64 {
	var s float64
	for _, e := range d {
		s += e.Prob
	}
	return s
}

// WindowKey addresses one (cluster, time window) cell of the probability table.
type WindowKey struct {
	Cluster int
	Window  time.Time
}

// ProbabilityTables holds the three probability layers built per training run.
type ProbabilityTables struct {
	ClusterWindow map[WindowKey]Distribution
	ClusterPrior  map[int]Distribution
	Global        Distribution
	// Windows lists every observed time window in ascending order.
	Windows []time.Time
}
