// Package api serves the location model over HTTP.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/sells-group/campus-locator/internal/metrics"
	"github.com/sells-group/campus-locator/internal/pipeline"
)

// Config tunes the HTTP surface.
type Config struct {
	// RateLimitRPS caps /api/v1 requests per second for the whole process.
	// Zero disables limiting.
	RateLimitRPS float64
	CORSOrigins  []string
	// Defaults fills any field a train request leaves out.
	Defaults pipeline.TrainOptions
	// DefaultTop is the cluster summary size when ?top is absent.
	DefaultTop int
}

// Server holds the handlers' dependencies.
type Server struct {
	svc     *pipeline.Service
	cfg     Config
	limiter *rate.Limiter
}

// NewServer wires a Server around svc.
func NewServer(svc *pipeline.Service, cfg Config) *Server {
	if cfg.DefaultTop <= 0 {
		cfg.DefaultTop = 5
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	s := &Server{svc: svc, cfg: cfg}
	if cfg.RateLimitRPS > 0 {
		burst := int(cfg.RateLimitRPS)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	return s
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(recordMetrics)

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Post("/train", s.train)
		r.Post("/predict", s.predict)
		r.Get("/entities/{entityID}/prediction", s.entityPrediction)
		r.Get("/clusters", s.clusters)
	})

	return r
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			metrics.APIRateLimited.Inc()
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recordMetrics labels requests by route pattern, not raw path, to keep
// entity ids out of label values.
func recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordAPIRequest(r.Method, route, strconv.Itoa(status), time.Since(start))
	})
}
