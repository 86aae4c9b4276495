package aggregate

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/campus-locator/internal/model"
)

type groupKey struct {
	entity string
	window time.Time
}

type group struct {
	counts  map[string]int
	order   []string // locations in order of first occurrence
	sources map[model.Source]bool
	events  int
}

// Aggregate produces one record per (entity, window) that has at least one
// event. The location is the mode of the group; among tied modes the value
// that occurred earliest (by timestamp, then input order) wins. Records are
// sorted by entity then window.
func Aggregate(events []model.ResolvedEvent, windowHours int) []model.AggregatedRecord {
	sorted := make([]model.ResolvedEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	groups := make(map[groupKey]*group)
	var keys []groupKey
	for _, ev := range sorted {
		k := groupKey{entity: ev.EntityID, window: Floor(ev.Timestamp, windowHours)}
		g, ok := groups[k]
		if !ok {
			g = &group{counts: make(map[string]int), sources: make(map[model.Source]bool)}
			groups[k] = g
			keys = append(keys, k)
		}
		if _, seen := g.counts[ev.LocationID]; !seen {
			g.order = append(g.order, ev.LocationID)
		}
		g.counts[ev.LocationID]++
		g.sources[ev.Source] = true
		g.events++
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].entity != keys[j].entity {
			return keys[i].entity < keys[j].entity
		}
		return keys[i].window.Before(keys[j].window)
	})

	records := make([]model.AggregatedRecord, 0, len(keys))
	windows := make(map[time.Time]bool)
	for _, k := range keys {
		g := groups[k]
		records = append(records, model.AggregatedRecord{
			EntityID:   k.entity,
			TimeWindow: k.window,
			LocationID: mode(g),
			Sources:    sortedSources(g.sources),
			EventCount: g.events,
		})
		windows[k.window] = true
	}

	zap.L().Info("aggregate: built timeline",
		zap.Int("events", len(events)),
		zap.Int("records", len(records)),
		zap.Int("windows", len(windows)),
		zap.Int("window_hours", windowHours),
	)
	return records
}

func mode(g *group) string {
	best, bestN := "", 0
	for _, loc := range g.order {
		if n := g.counts[loc]; n > bestN {
			best, bestN = loc, n
		}
	}
	return best
}

func sortedSources(set map[model.Source]bool) []model.Source {
	out := make([]model.Source, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Windows returns the distinct windows of records in ascending order.
func Windows(records []model.AggregatedRecord) []time.Time {
	seen := make(map[time.Time]bool)
	var out []time.Time
	for _, r := range records {
		if !seen[r.TimeWindow] {
			seen[r.TimeWindow] = true
			out = append(out, r.TimeWindow)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
