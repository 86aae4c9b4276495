package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/campus-locator/internal/model"
)

func TestRecordTrain(t *testing.T) {
	completeBefore := testutil.ToFloat64(TrainRunsTotal.WithLabelValues("complete"))
	failedBefore := testutil.ToFloat64(TrainRunsTotal.WithLabelValues("failed"))

	RecordTrain(time.Second, &model.TrainStats{EventsRead: 12, EventsResolved: 9, Entities: 4, Clusters: 3}, nil)
	RecordTrain(time.Second, nil, errors.New("no sources"))

	assert.Equal(t, completeBefore+1, testutil.ToFloat64(TrainRunsTotal.WithLabelValues("complete")))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(TrainRunsTotal.WithLabelValues("failed")))
	assert.Equal(t, 12.0, testutil.ToFloat64(TrainEvents.WithLabelValues("read")))
	assert.Equal(t, 9.0, testutil.ToFloat64(TrainEvents.WithLabelValues("resolved")))
	assert.Equal(t, 4.0, testutil.ToFloat64(ModelEntities))
	assert.Equal(t, 3.0, testutil.ToFloat64(ModelClusters))
}

func TestRecordPrediction(t *testing.T) {
	before := testutil.ToFloat64(PredictionsTotal.WithLabelValues("cluster_prior"))
	hits := testutil.ToFloat64(PredictionCacheHits)
	misses := testutil.ToFloat64(PredictionCacheMisses)

	RecordPrediction(model.MethodClusterPrior, false)
	RecordPrediction(model.MethodClusterPrior, true)

	assert.Equal(t, before+2, testutil.ToFloat64(PredictionsTotal.WithLabelValues("cluster_prior")))
	assert.Equal(t, hits+1, testutil.ToFloat64(PredictionCacheHits))
	assert.Equal(t, misses+1, testutil.ToFloat64(PredictionCacheMisses))
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/health", "200"))
	RecordAPIRequest("GET", "/health", "200", 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/health", "200")))
}

func TestMetricGathering(t *testing.T) {
	RecordAPIRequest("POST", "/api/v1/train", "200", time.Millisecond)

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	require.NoError(t, err)
	for _, p := range problems {
		if len(p.Metric) >= 7 && p.Metric[:7] == "campus_" {
			t.Errorf("lint problem on %s: %s", p.Metric, p.Text)
		}
	}
}
