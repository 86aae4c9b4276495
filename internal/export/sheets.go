// Package export writes training artifacts as CSV files and an optional XLSX
// workbook.
package export

import (
	"sort"
	"strconv"
	"time"

	"github.com/sells-group/campus-locator/internal/model"
	"github.com/sells-group/campus-locator/internal/pipeline"
)

// Artifact file stems.
const (
	MergedData         = "merged_data"
	AggregatedData     = "aggregated_data"
	ClusterAssignments = "cluster_assignments"
	ClusterProbTable   = "cluster_prob_table"
	ClusterPrior       = "cluster_prior"
	GlobalPrior        = "global_prior"
	PredictedLocations = "predicted_locations"
)

// Sheet is one tabular artifact.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Sheets renders a snapshot as artifact tables. The predictions sheet is
// included only when preds is non-nil.
func Sheets(snap *pipeline.Snapshot, preds []model.Prediction) []Sheet {
	out := []Sheet{
		mergedSheet(snap.Events),
		aggregatedSheet(snap.Records),
		assignmentSheet(snap.Clusters),
		probTableSheet(snap.Tables),
		clusterPriorSheet(snap.Tables),
		globalPriorSheet(snap.Tables),
	}
	if preds != nil {
		out = append(out, predictionSheet(preds))
	}
	return out
}

func mergedSheet(events []model.ResolvedEvent) Sheet {
	s := Sheet{Name: MergedData, Header: []string{"entity_id", "temp_id", "timestamp", "location_id", "source"}}
	for _, e := range events {
		s.Rows = append(s.Rows, []string{e.EntityID, e.TempID, formatTime(e.Timestamp), e.LocationID, string(e.Source)})
	}
	return s
}

func aggregatedSheet(records []model.AggregatedRecord) Sheet {
	s := Sheet{Name: AggregatedData, Header: []string{"entity_id", "time_window", "location_id", "sources", "event_count"}}
	for _, r := range records {
		s.Rows = append(s.Rows, []string{r.EntityID, formatTime(r.TimeWindow), r.LocationID, r.SourcesString(), strconv.Itoa(r.EventCount)})
	}
	return s
}

func assignmentSheet(clusters map[string]int) Sheet {
	s := Sheet{Name: ClusterAssignments, Header: []string{"entity_id", "cluster"}}
	entities := make([]string, 0, len(clusters))
	for e := range clusters {
		entities = append(entities, e)
	}
	sort.Strings(entities)
	for _, e := range entities {
		s.Rows = append(s.Rows, []string{e, strconv.Itoa(clusters[e])})
	}
	return s
}

func probTableSheet(t *model.ProbabilityTables) Sheet {
	s := Sheet{Name: ClusterProbTable, Header: []string{"cluster", "time_window", "location_id", "prob"}}
	keys := make([]model.WindowKey, 0, len(t.ClusterWindow))
	for k := range t.ClusterWindow {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Cluster != keys[j].Cluster {
			return keys[i].Cluster < keys[j].Cluster
		}
		return keys[i].Window.Before(keys[j].Window)
	})
	for _, k := range keys {
		for _, e := range t.ClusterWindow[k] {
			s.Rows = append(s.Rows, []string{strconv.Itoa(k.Cluster), formatTime(k.Window), e.LocationID, formatFloat(e.Prob)})
		}
	}
	return s
}

func clusterPriorSheet(t *model.ProbabilityTables) Sheet {
	s := Sheet{Name: ClusterPrior, Header: []string{"cluster", "location_id", "prob"}}
	ids := make([]int, 0, len(t.ClusterPrior))
	for c := range t.ClusterPrior {
		ids = append(ids, c)
	}
	sort.Ints(ids)
	for _, c := range ids {
		for _, e := range t.ClusterPrior[c] {
			s.Rows = append(s.Rows, []string{strconv.Itoa(c), e.LocationID, formatFloat(e.Prob)})
		}
	}
	return s
}

func globalPriorSheet(t *model.ProbabilityTables) Sheet {
	s := Sheet{Name: GlobalPrior, Header: []string{"location_id", "prob"}}
	for _, e := range t.Global {
		s.Rows = append(s.Rows, []string{e.LocationID, formatFloat(e.Prob)})
	}
	return s
}

func predictionSheet(preds []model.Prediction) Sheet {
	s := Sheet{Name: PredictedLocations, Header: []string{"entity_id", "time_window", "predicted_location", "confidence", "cluster", "method"}}
	for _, p := range preds {
		s.Rows = append(s.Rows, []string{
			p.EntityID, formatTime(p.TimeWindow), p.Location(), formatFloat(p.Confidence), strconv.Itoa(p.Cluster), string(p.Method),
		})
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
