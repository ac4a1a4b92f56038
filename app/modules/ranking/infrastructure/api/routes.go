package rankingapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

type Config struct {
	RateLimit float64
	RateBurst int
	// ExportCost is the number of tokens one xlsx or png export spends.
	ExportCost int
	// ClientIdleTTL is how long an idle client's bucket is remembered.
	ClientIdleTTL time.Duration
}

// Register mounts the ranking read API under /api/v1.
func Register(r chi.Router, h *HTTPHandlers, cfg Config) {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 20
	}
	if cfg.ExportCost <= 0 {
		cfg.ExportCost = 5
	}
	if cfg.ClientIdleTTL <= 0 {
		cfg.ClientIdleTTL = 10 * time.Minute
	}
	limiter := NewClientLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst, cfg.ClientIdleTTL)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limiter.Limit(1))
			r.Get("/maps", h.ListMaps)
			r.Get("/maps/{mapID}/leaderboard", h.MapLeaderboard)
			r.Get("/maps/{mapID}/leaderboard/{participantID}", h.MapRecord)
			r.Get("/leaderboard", h.GlobalLeaderboard)
			r.Get("/players/{participantID}/rank", h.PlayerRank)
		})
		r.Group(func(r chi.Router) {
			r.Use(limiter.Limit(cfg.ExportCost))
			r.Get("/leaderboard.xlsx", h.ExportXLSX)
			r.Get("/leaderboard.png", h.ExportPNG)
		})
	})
}

// NewRootRouter builds the process-wide router: request ids, real client IPs,
// panic recovery, /healthz and /metrics. Modules mount their routes on it.
func NewRootRouter(registry *prometheus.Registry, health func(ctx context.Context) error) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			if err := health(req.Context()); err != nil {
				http.Error(w, "unhealthy: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}
	return r
}
