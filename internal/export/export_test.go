package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/campus-locator/internal/fetcher"
	"github.com/sells-group/campus-locator/internal/pipeline"
)

func trainedSnapshot(t *testing.T) *pipeline.Snapshot {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profiles.csv"),
		[]byte("entity_id,card_id\nE1,C1\nE2,C2\nE3,C3\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cards.csv"), []byte(
		"card_id,location_id,timestamp\n"+
			"C1,L1,2025-01-07 08:00:00\n"+
			"C1,L2,2025-01-07 10:00:00\n"+
			"C2,L1,2025-01-07 08:30:00\n"+
			"C3,LIB,2025-01-07 10:30:00\n"), 0o644))

	s := pipeline.New()
	opts := pipeline.DefaultTrainOptions(dir)
	opts.Clusters = 2
	_, err := s.Train(context.Background(), opts)
	require.NoError(t, err)
	snap, err := s.Snapshot()
	require.NoError(t, err)
	return snap
}

func sheetByName(sheets []Sheet, name string) Sheet {
	for _, s := range sheets {
		if s.Name == name {
			return s
		}
	}
	return Sheet{}
}

func TestSheets(t *testing.T) {
	snap := trainedSnapshot(t)

	sheets := Sheets(snap, nil)
	require.Len(t, sheets, 6)
	assert.Empty(t, sheetByName(sheets, PredictedLocations).Name)

	merged := sheetByName(sheets, MergedData)
	assert.Len(t, merged.Rows, 4)

	agg := sheetByName(sheets, AggregatedData)
	require.Len(t, agg.Rows, 4)
	assert.Equal(t, []string{"E1", "2025-01-07T08:00:00Z", "L1", "card", "1"}, agg.Rows[0])

	assign := sheetByName(sheets, ClusterAssignments)
	require.Len(t, assign.Rows, 3)
	assert.Equal(t, "E1", assign.Rows[0][0])

	global := sheetByName(sheets, GlobalPrior)
	require.NotEmpty(t, global.Rows)
	assert.Equal(t, []string{"L1", "0.5"}, global.Rows[0])
}

func TestSheets_WithPredictions(t *testing.T) {
	snap := trainedSnapshot(t)
	preds, err := snap.Model().PredictAll(context.Background(), nil, 1)
	require.NoError(t, err)

	sheets := Sheets(snap, preds)
	require.Len(t, sheets, 7)
	pred := sheetByName(sheets, PredictedLocations)
	assert.Len(t, pred.Rows, len(preds))
	assert.Equal(t, []string{"entity_id", "time_window", "predicted_location", "confidence", "cluster", "method"}, pred.Header)
}

func TestWrite_CSVAndXLSX(t *testing.T) {
	snap := trainedSnapshot(t)
	out := filepath.Join(t.TempDir(), "output")

	paths, err := Write(out, Sheets(snap, nil), Options{XLSX: true})
	require.NoError(t, err)
	require.Len(t, paths, 7)
	assert.Equal(t, filepath.Join(out, WorkbookName), paths[6])

	tbl, err := fetcher.ReadTable(context.Background(), filepath.Join(out, "aggregated_data.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"entity_id", "time_window", "location_id", "sources", "event_count"}, tbl.Header)
	assert.Equal(t, 4, tbl.Len())

	wb, err := fetcher.ReadXLSX(filepath.Join(out, WorkbookName), fetcher.XLSXOptions{SheetName: ClusterAssignments})
	require.NoError(t, err)
	assert.Equal(t, []string{"entity_id", "cluster"}, wb.Header)
	assert.Equal(t, 3, wb.Len())
}

func TestWrite_CSVOnly(t *testing.T) {
	snap := trainedSnapshot(t)
	out := t.TempDir()

	paths, err := Write(out, Sheets(snap, nil), Options{})
	require.NoError(t, err)
	assert.Len(t, paths, 6)
	_, err = os.Stat(filepath.Join(out, WorkbookName))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteCSV_BadPath(t *testing.T) {
	err := WriteCSV(filepath.Join(t.TempDir(), "missing", "x.csv"), Sheet{Name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export: create")
}
