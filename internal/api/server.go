// Package api exposes risk data and live predictions over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/patrickmn/go-cache"

	"github.com/sells-group/waste-risk/internal/inference"
)

// Banner is the root endpoint message.
const Banner = "Waste Risk API is running."

// Options configures a Server.
type Options struct {
	// RiskDataPath is the scored GeoJSON served by /api/risk-data.
	RiskDataPath string
	// CacheTTL keeps the risk-data payload in memory. 0 reads the file on
	// every request.
	CacheTTL time.Duration
	// CORSOrigins lists allowed origins. Empty allows all.
	CORSOrigins []string
	// ModelName is reported by /api/model-info.
	ModelName string
}

// Server holds the handler dependencies.
type Server struct {
	svc   *inference.Service
	opts  Options
	cache *cache.Cache
}

// New builds a Server.
func New(svc *inference.Service, opts Options) *Server {
	s := &Server{svc: svc, opts: opts}
	if opts.CacheTTL > 0 {
		s.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return s
}

// Handler returns the router with middleware applied.
func (s *Server) Handler() http.Handler {
	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", s.root)
	r.Get("/health", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/risk-data", s.riskData)
		r.Post("/predict", s.predict)
		r.Get("/model-info", s.modelInfo)
	})
	return r
}

// Invalidate drops the cached risk-data payload.
func (s *Server) Invalidate() {
	if s.cache != nil {
		s.cache.Delete(riskDataKey)
	}
}
