// Package cluster groups entities by their location-over-time patterns.
package cluster

import (
	"sort"
	"time"

	"github.com/sells-group/campus-locator/internal/aggregate"
	"github.com/sells-group/campus-locator/internal/model"
)

// Absent marks a window in which an entity has no record. Location codes
// start at 0, so it never collides with a real code.
const Absent = -1.0

// Matrix is the entity × window feature matrix. Rows[i][j] is the location
// code of Entities[i] in Windows[j], or Absent.
type Matrix struct {
	Entities  []string
	Windows   []time.Time
	Locations []string
	Rows      [][]float64
}

// BuildMatrix encodes aggregated records. Entities are sorted, windows are
// ascending and location codes follow sorted location order, so the same
// records always produce the same matrix.
func BuildMatrix(records []model.AggregatedRecord) *Matrix {
	m := &Matrix{Windows: aggregate.Windows(records)}

	locSet := make(map[string]bool)
	entSet := make(map[string]bool)
	for _, r := range records {
		locSet[r.LocationID] = true
		entSet[r.EntityID] = true
	}
	m.Locations = sortedKeys(locSet)
	m.Entities = sortedKeys(entSet)

	locCode := make(map[string]int, len(m.Locations))
	for i, l := range m.Locations {
		locCode[l] = i
	}
	entRow := make(map[string]int, len(m.Entities))
	for i, e := range m.Entities {
		entRow[e] = i
	}
	winCol := make(map[time.Time]int, len(m.Windows))
	for j, w := range m.Windows {
		winCol[w] = j
	}

	m.Rows = make([][]float64, len(m.Entities))
	for i := range m.Rows {
		row := make([]float64, len(m.Windows))
		for j := range row {
			row[j] = Absent
		}
		m.Rows[i] = row
	}
	for _, r := range records {
		i, j := entRow[r.EntityID], winCol[r.TimeWindow]
		// First record wins when a pair repeats; Aggregate never emits duplicates.
		if m.Rows[i][j] == Absent {
			m.Rows[i][j] = float64(locCode[r.LocationID])
		}
	}
	return m
}

// LocationCode returns the integer code of a location.
func (m *Matrix) LocationCode(loc string) (int, bool) {
	i := sort.SearchStrings(m.Locations, loc)
	if i < len(m.Locations) && m.Locations[i] == loc {
		return i, true
	}
	return 0, false
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
