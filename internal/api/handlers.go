package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/sells-group/campus-locator/internal/identity"
	"github.com/sells-group/campus-locator/internal/pipeline"
	"github.com/sells-group/campus-locator/internal/source"
)

type trainRequest struct {
	DataDir            *string  `json:"data_dir"`
	WindowHours        *int     `json:"window_hours"`
	Clusters           *int     `json:"clusters"`
	DecayHalfLifeHours *float64 `json:"decay_half_life_hours"`
	NearbyWindowRadius *int     `json:"nearby_window_radius"`
	Seed               *uint64  `json:"seed"`
}

func (req trainRequest) apply(opts pipeline.TrainOptions) pipeline.TrainOptions {
	if req.DataDir != nil {
		opts.DataDir = *req.DataDir
	}
	if req.WindowHours != nil {
		opts.WindowHours = *req.WindowHours
	}
	if req.Clusters != nil {
		opts.Clusters = *req.Clusters
	}
	if req.DecayHalfLifeHours != nil {
		opts.DecayHalfLifeHours = *req.DecayHalfLifeHours
	}
	if req.NearbyWindowRadius != nil {
		opts.NearbyWindowRadius = *req.NearbyWindowRadius
	}
	if req.Seed != nil {
		opts.Seed = *req.Seed
	}
	return opts
}

type predictRequest struct {
	EntityID  string `json:"entity_id"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"trained": s.svc.Trained(),
	})
}

func (s *Server) train(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	res, err := s.svc.Train(r.Context(), req.apply(s.cfg.Defaults))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, pipeline.ErrInvalidOptions):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, source.ErrNoSources), errors.Is(err, identity.ErrNoEntitiesResolved):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		zap.L().Error("api: train failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "training failed")
	}
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.respondPrediction(w, req.EntityID, req.Timestamp)
}

func (s *Server) entityPrediction(w http.ResponseWriter, r *http.Request) {
	s.respondPrediction(w, chi.URLParam(r, "entityID"), r.URL.Query().Get("at"))
}

func (s *Server) respondPrediction(w http.ResponseWriter, entityID, rawTS string) {
	if entityID == "" {
		writeError(w, http.StatusBadRequest, "entity_id is required")
		return
	}
	ts, ok := parseTimestamp(rawTS)
	if !ok {
		writeError(w, http.StatusBadRequest, "timestamp is missing or unparsable")
		return
	}

	p, err := s.svc.Predict(entityID, ts)
	if errors.Is(err, pipeline.ErrNotTrained) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) clusters(w http.ResponseWriter, r *http.Request) {
	top := s.cfg.DefaultTop
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "top must be a positive integer")
			return
		}
		top = n
	}

	sum, err := s.svc.Summarize(top)
	if errors.Is(err, pipeline.ErrNotTrained) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clusters": sum})
}

func parseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	return source.ParseTimestamp(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
