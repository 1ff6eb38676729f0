package api

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"aida/internal/middleware"
)

// RouterConfig holds the cross-cutting pieces of the HTTP stack.
type RouterConfig struct {
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter // nil disables rate limiting
	CORSOrigins   []string
	OpenAPI       *openapi3.T // nil hides /openapi.json
}

// NewRouter mounts every route. Authenticated routes are also served under
// /api for clients of the original paths.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", middleware.TokenHeader, middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Handler)
	}

	r.Get("/healthz", h.Health)
	if cfg.OpenAPI != nil {
		doc := cfg.OpenAPI
		r.Get("/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, doc)
		})
	}

	routes := func(r chi.Router) {
		r.Post("/upload", h.Upload)
		r.Get("/data-sources", h.ListDataSources)
		r.Get("/data-sources/{id}", h.GetDataSource)
		r.Get("/data-sources/{id}/entries", h.ListDataEntries)
		r.Post("/projects", h.CreateProject)
		r.Get("/projects", h.ListProjects)
		r.Get("/projects/{id}", h.GetProject)
	}
	r.Group(func(r chi.Router) {
		r.Use(cfg.Authenticator.Middleware)
		routes(r)
		r.Route("/api", routes)
	})
	return r
}
