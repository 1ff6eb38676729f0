// Package api provides the HTTP handlers of the ingestion service.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"aida/internal/domain"
	"aida/internal/service/ingestion"
)

type ingestService interface {
	Ingest(ctx context.Context, req ingestion.UploadRequest) (*ingestion.Result, error)
}

type dataSourceService interface {
	List(ctx context.Context, projectID string, page domain.PageRequest) ([]domain.DataSource, int64, error)
	Get(ctx context.Context, id string) (*domain.DataSource, error)
	ListEntries(ctx context.Context, id string, page domain.PageRequest) ([]domain.DataEntry, int64, error)
}

type projectService interface {
	Create(ctx context.Context, req domain.CreateProjectRequest) (*domain.Project, error)
	Get(ctx context.Context, id string) (*domain.Project, error)
	ListMine(ctx context.Context, page domain.PageRequest) ([]domain.Project, int64, error)
}

// HandlerConfig holds the request limits applied by the handlers.
type HandlerConfig struct {
	MaxUploadBytes int64
	ReadTimeout    time.Duration // zero leaves the server's deadline alone
}

// Handler serves the REST API.
type Handler struct {
	ingest   ingestService
	sources  dataSourceService
	projects projectService
	cfg      HandlerConfig
	logger   *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(ingest ingestService, sources dataSourceService, projects projectService, cfg HandlerConfig, logger *slog.Logger) *Handler {
	return &Handler{
		ingest:   ingest,
		sources:  sources,
		projects: projects,
		cfg:      cfg,
		logger:   logger.With("component", "api"),
	}
}

// Page is the envelope of every list response.
type Page[T any] struct {
	Data          []T    `json:"data"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

func newPage[T any](items []T, page domain.PageRequest, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Data: items, NextPageToken: domain.NextPageToken(page.Offset(), page.Limit(), total)}
}

// pageFromQuery reads max_results and page_token.
func pageFromQuery(r *http.Request) (domain.PageRequest, error) {
	q := r.URL.Query()
	p := domain.PageRequest{PageToken: q.Get("page_token")}
	if v := q.Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, domain.ErrInvalidFields(domain.FieldError{Param: "max_results", Msg: "max_results must be a non-negative integer"})
		}
		p.MaxResults = n
	}
	return p, nil
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
