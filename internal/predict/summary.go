package predict

import (
	"sort"
)

// LocationCount is a location and how many aggregated records name it.
type LocationCount struct {
	LocationID string `json:"location_id"`
	Count      int    `json:"count"`
}

// ClusterSummary describes one cluster's membership and favourite places.
type ClusterSummary struct {
	Cluster      int             `json:"cluster"`
	Members      int             `json:"members"`
	Events       int             `json:"events"`
	TopLocations []LocationCount `json:"top_locations"`
}

// Summarize reports every cluster in ascending id order with its topN
// locations by record count.
func (m *Model) Summarize(topN int) []ClusterSummary {
	byCluster := make(map[int]*ClusterSummary)
	counts := make(map[int]map[string]int)
	for _, c := range m.Clusters {
		if byCluster[c] == nil {
			byCluster[c] = &ClusterSummary{Cluster: c}
			counts[c] = make(map[string]int)
		}
		byCluster[c].Members++
	}
	for _, r := range m.Records {
		c, ok := m.Clusters[r.EntityID]
		if !ok {
			continue
		}
		byCluster[c].Events += r.EventCount
		counts[c][r.LocationID]++
	}

	out := make([]ClusterSummary, 0, len(byCluster))
	for c, s := range byCluster {
		locs := make([]LocationCount, 0, len(counts[c]))
		for loc, n := range counts[c] {
			locs = append(locs, LocationCount{LocationID: loc, Count: n})
		}
		sort.Slice(locs, func(i, j int) bool {
			if locs[i].Count != locs[j].Count {
				return locs[i].Count > locs[j].Count
			}
			return locs[i].LocationID < locs[j].LocationID
		})
		if topN > 0 && len(locs) > topN {
			locs = locs[:topN]
		}
		s.TopLocations = locs
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cluster < out[j].Cluster })
	return out
}
