package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/campus-locator/internal/metrics"
	"github.com/sells-group/campus-locator/internal/pipeline"
)

const profilesCSV = `entity_id,name,card_id,device_hash,face_id
E1,Ada,C1,D1,F1
E2,Ben,C2,D2,F2
E3,Cy,C3,D3,F3
E4,Di,C4,D4,F4
`

const swipesCSV = `card_id,location_id,timestamp
C1,L1,2025-01-07 08:00:00
C2,L1,2025-01-07 08:05:00
C3,LIB,2025-01-07 08:00:00
C4,LIB,2025-01-07 08:00:00
C1,L2,2025-01-07 10:00:00
C3,LIB,2025-01-07 10:00:00
C4,LIB,2025-01-07 10:00:00
`

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "student or staff profiles.csv"), []byte(profilesCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "campus card_swipes.csv"), []byte(swipesCSV), 0o644))
	return dir
}

func newTestServer(t *testing.T, cfg Config) (http.Handler, string) {
	t.Helper()
	dir := fixtureDir(t)
	cfg.Defaults = pipeline.DefaultTrainOptions(dir)
	cfg.Defaults.Clusters = 2
	return NewServer(pipeline.New(), cfg).Router(), dir
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	rec := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["trained"])
}

func TestNotTrained(t *testing.T) {
	h, _ := newTestServer(t, Config{})

	rec := do(t, h, http.MethodPost, "/api/v1/predict", `{"entity_id":"E1","timestamp":"2025-01-07 08:30:00"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/clusters", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTrain(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		h, _ := newTestServer(t, Config{})

		rec := do(t, h, http.MethodPost, "/api/v1/train", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		stats, ok := decode(t, rec)["stats"].(map[string]any)
		require.True(t, ok)
		assert.InDelta(t, 2, stats["clusters"], 0)
		assert.InDelta(t, 7, stats["events_read"], 0)

		rec = do(t, h, http.MethodGet, "/health", "")
		assert.Equal(t, true, decode(t, rec)["trained"])
	})

	t.Run("overrides", func(t *testing.T) {
		h, _ := newTestServer(t, Config{})

		rec := do(t, h, http.MethodPost, "/api/v1/train", `{"clusters":1,"window_hours":4}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		stats := decode(t, rec)["stats"].(map[string]any)
		assert.InDelta(t, 1, stats["clusters"], 0)
		assert.InDelta(t, 1, stats["windows"], 0)
	})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed body", `{"clusters":`, http.StatusBadRequest},
		{"invalid window", `{"window_hours":0}`, http.StatusBadRequest},
		{"empty data dir", `{"data_dir":"` + t.TempDir() + `"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestServer(t, Config{})
			rec := do(t, h, http.MethodPost, "/api/v1/train", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestPredict(t *testing.T) {
	h, _ := newTestServer(t, Config{})
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/train", "").Code)

	t.Run("post observed", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/predict", `{"entity_id":"E1","timestamp":"2025-01-07 08:30:00"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "actual_data", body["method"])
		assert.Equal(t, "L1", body["predicted_location"])
		assert.InDelta(t, 1.0, body["confidence"], 1e-9)
	})

	t.Run("get unknown entity", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/v1/entities/E999/prediction?at=2025-01-07T08:00:00Z", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "entity_not_found", body["method"])
		assert.Nil(t, body["predicted_location"])
	})

	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"missing entity", http.MethodPost, "/api/v1/predict", `{"timestamp":"2025-01-07 08:30:00"}`},
		{"bad timestamp", http.MethodPost, "/api/v1/predict", `{"entity_id":"E1","timestamp":"yesterday"}`},
		{"malformed body", http.MethodPost, "/api/v1/predict", `not json`},
		{"missing at", http.MethodGet, "/api/v1/entities/E1/prediction", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestClusters(t *testing.T) {
	h, _ := newTestServer(t, Config{})
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/train", "").Code)

	rec := do(t, h, http.MethodGet, "/api/v1/clusters?top=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	clusters, ok := decode(t, rec)["clusters"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, clusters)
	for _, c := range clusters {
		top := c.(map[string]any)["top_locations"].([]any)
		assert.Len(t, top, 1)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/clusters?top=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h, _ := newTestServer(t, Config{RateLimitRPS: 0.001})
	before := testutil.ToFloat64(metrics.APIRateLimited)

	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodGet, "/api/v1/clusters", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, "/api/v1/clusters", "").Code)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.APIRateLimited))

	// Health sits outside the limited group.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t, Config{})
	do(t, h, http.MethodGet, "/health", "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `campus_api_requests_total{method="GET",route="/health",status="200"}`)
}

func TestCORS(t *testing.T) {
	h, _ := newTestServer(t, Config{CORSOrigins: []string{"https://campus.example"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://campus.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://campus.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
