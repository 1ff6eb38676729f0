// Package app wires repositories, services and the HTTP stack of the
// ingestion service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"aida/internal/api"
	"aida/internal/config"
	internaldb "aida/internal/db"
	"aida/internal/db/repository"
	"aida/internal/domain"
	"aida/internal/middleware"
	"aida/internal/service/auditutil"
	"aida/internal/service/datasource"
	"aida/internal/service/ingestion"
	"aida/internal/service/project"
	"aida/internal/service/security"
)

// Deps holds what main must provide: configuration, the metastore pools,
// the blob store and the token verifier.
type Deps struct {
	Cfg      *config.Config
	Pools    *internaldb.Pools
	Store    domain.BlobStore
	Verifier middleware.TokenVerifier
	Logger   *slog.Logger
}

// App is the fully wired application.
type App struct {
	Handler     http.Handler
	Coordinator *ingestion.Coordinator
	Janitor     *ingestion.Janitor
	RateLimiter *middleware.RateLimiter // nil when rate limiting is off
}

// New wires every component from deps.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger

	// === Repositories ===
	projectRepo := repository.NewProjectRepo(deps.Pools.Write)
	sourceRepo := repository.NewDataSourceRepo(deps.Pools.Write)
	entryRepo := repository.NewDataEntryRepo(deps.Pools.Write)
	auditRepo := repository.NewAuditRepo(deps.Pools.Write)
	sourceReadRepo := repository.NewDataSourceRepo(deps.Pools.Read)
	entryReadRepo := repository.NewDataEntryRepo(deps.Pools.Read)

	// === Services ===
	recorder := auditutil.NewRecorder(auditRepo, logger.With("component", "audit"))
	gate := security.NewOwnershipGate(projectRepo, recorder)
	gateway := ingestion.NewGateway(deps.Store, cfg.Ingest.MaxUploadBytes, logger)
	coord := ingestion.NewCoordinator(gate, gateway, deps.Store, sourceRepo, entryRepo,
		recorder, cfg.Ingest.OrphanPolicy, logger)
	sourceSvc := datasource.NewService(gate, sourceReadRepo, entryReadRepo)
	projectSvc := project.NewService(projectRepo, gate, recorder)
	janitor := ingestion.NewJanitor(deps.Store, sourceReadRepo, cfg.Ingest.JanitorGrace, logger)

	// === HTTP ===
	doc, err := api.LoadOpenAPI(ctx)
	if err != nil {
		return nil, err
	}
	var limiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	handler := api.NewHandler(coord, sourceSvc, projectSvc, api.HandlerConfig{
		MaxUploadBytes: cfg.Ingest.MaxUploadBytes,
		ReadTimeout:    cfg.Ingest.ReadTimeout,
	}, logger)
	router := api.NewRouter(handler, api.RouterConfig{
		Authenticator: middleware.NewAuthenticator(deps.Verifier, logger),
		RateLimiter:   limiter,
		CORSOrigins:   cfg.CORSAllowedOrigins,
		OpenAPI:       doc,
	})

	return &App{
		Handler:     router,
		Coordinator: coord,
		Janitor:     janitor,
		RateLimiter: limiter,
	}, nil
}

// NewVerifier picks OIDC when an issuer is configured and the shared
// secret otherwise.
func NewVerifier(ctx context.Context, cfg config.AuthConfig) (middleware.TokenVerifier, error) {
	if cfg.OIDCEnabled() {
		v, err := middleware.NewOIDCVerifier(ctx, cfg.IssuerURL, cfg.Audience)
		if err != nil {
			return nil, fmt.Errorf("oidc verifier: %w", err)
		}
		return v, nil
	}
	v, err := middleware.NewHS256Verifier(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	return v, nil
}
