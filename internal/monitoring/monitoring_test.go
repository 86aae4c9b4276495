package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/campus-locator/internal/config"
	"github.com/sells-group/campus-locator/internal/model"
	"github.com/sells-group/campus-locator/internal/store"
)

type fakeRuns struct {
	runs []model.TrainRun
	err  error
}

func (f *fakeRuns) ListRuns(_ context.Context, _ store.RunFilter) ([]model.TrainRun, error) {
	return f.runs, f.err
}

var now = time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC)

func newTestCollector(runs ...model.TrainRun) *Collector {
	c := NewCollector(&fakeRuns{runs: runs})
	c.now = func() time.Time { return now }
	return c
}

func completeRun(age time.Duration, read, resolved int, dur time.Duration) model.TrainRun {
	return model.TrainRun{
		Status:    model.TrainStatusComplete,
		Stats:     &model.TrainStats{EventsRead: read, EventsResolved: resolved, Duration: dur},
		CreatedAt: now.Add(-age),
		UpdatedAt: now.Add(-age + time.Second),
	}
}

func failedRun(age time.Duration, reason string) model.TrainRun {
	return model.TrainRun{
		Status:    model.TrainStatusFailed,
		Error:     reason,
		CreatedAt: now.Add(-age),
		UpdatedAt: now.Add(-age),
	}
}

func testThresholds() config.MonitoringConfig {
	return config.MonitoringConfig{
		LookbackHours:        24,
		FailureRateThreshold: 0.5,
		MinResolvedRatio:     0.5,
		MinFinishedRuns:      3,
	}
}

func TestCollect(t *testing.T) {
	c := newTestCollector(
		failedRun(time.Hour, "source: no data files found"),
		completeRun(2*time.Hour, 10, 8, 2*time.Second),
		model.TrainRun{Status: model.TrainStatusRunning, CreatedAt: now.Add(-3 * time.Hour)},
		completeRun(4*time.Hour, 10, 4, 4*time.Second),
		failedRun(48*time.Hour, "too old"),
	)

	snap, err := c.Collect(context.Background(), 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.Total)
	assert.Equal(t, 2, snap.Complete)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.Running)
	assert.InDelta(t, 1.0/3.0, snap.FailRate, 1e-9)
	assert.Equal(t, 2, snap.WithStats)
	assert.Equal(t, 3*time.Second, snap.AvgDuration)
	assert.InDelta(t, 0.6, snap.AvgResolvedRatio, 1e-9)
	require.NotNil(t, snap.LastSuccess)
	assert.Equal(t, now.Add(-2*time.Hour+time.Second), *snap.LastSuccess)
	assert.Equal(t, "source: no data files found", snap.LastError)
	assert.Equal(t, now, snap.CollectedAt)
}

func TestCollect_CompleteWithoutStats(t *testing.T) {
	c := newTestCollector(model.TrainRun{
		Status:    model.TrainStatusComplete,
		CreatedAt: now.Add(-time.Hour),
		UpdatedAt: now.Add(-time.Hour),
	})

	snap, err := c.Collect(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Complete)
	assert.Zero(t, snap.WithStats)
	assert.Zero(t, snap.AvgResolvedRatio)
	assert.Empty(t, NewAlerter(testThresholds()).Evaluate(snap))
}

func TestCollect_Empty(t *testing.T) {
	snap, err := newTestCollector().Collect(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, snap.Total)
	assert.Zero(t, snap.FailRate)
	assert.Nil(t, snap.LastSuccess)
}

func TestCollect_StoreError(t *testing.T) {
	c := NewCollector(&fakeRuns{err: errors.New("db down")})
	_, err := c.Collect(context.Background(), time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list runs")
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want []AlertType
	}{
		{
			name: "healthy",
			snap: Snapshot{Complete: 5, Failed: 1, FailRate: 1.0 / 6.0, AvgResolvedRatio: 0.9},
		},
		{
			name: "failure rate over threshold",
			snap: Snapshot{Complete: 1, Failed: 3, FailRate: 0.75, AvgResolvedRatio: 0.9},
			want: []AlertType{AlertFailureRate},
		},
		{
			name: "too few finished runs for rate",
			snap: Snapshot{Complete: 1, Failed: 1, FailRate: 0.5, AvgResolvedRatio: 0.9},
		},
		{
			name: "low resolution",
			snap: Snapshot{Complete: 2, WithStats: 2, AvgResolvedRatio: 0.2},
			want: []AlertType{AlertLowResolution},
		},
		{
			name: "complete runs without stats",
			snap: Snapshot{Complete: 2},
		},
		{
			name: "only failures",
			snap: Snapshot{Failed: 3, FailRate: 1},
			want: []AlertType{AlertFailureRate, AlertNoSuccess},
		},
	}

	a := NewAlerter(testThresholds())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.snap.CollectedAt = now
			var got []AlertType
			for _, al := range a.Evaluate(&tt.snap) {
				got = append(got, al.Type)
				assert.Equal(t, now, al.Timestamp)
				assert.NotEmpty(t, al.Message)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollectAgainstSQLite(t *testing.T) {
	st, err := store.NewSQLite(t.TempDir() + "/runs.db")
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	ok, err := st.CreateRun(ctx, model.TrainParams{DataDir: "data", WindowHours: 2})
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, ok.ID, &model.TrainStats{EventsRead: 4, EventsResolved: 4}))
	bad, err := st.CreateRun(ctx, model.TrainParams{DataDir: "missing", WindowHours: 2})
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, bad.ID, "source: no data files found"))

	snap, err := NewCollector(st).Collect(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, 1, snap.Complete)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.WithStats)
	assert.InDelta(t, 1.0, snap.AvgResolvedRatio, 1e-9)
	assert.Empty(t, NewAlerter(testThresholds()).Evaluate(snap))
}
