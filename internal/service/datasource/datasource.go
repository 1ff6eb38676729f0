// Package datasource serves read access to ingested data sources and their
// entries.
package datasource

import (
	"context"
	"errors"

	"aida/internal/domain"
)

// Authorizer confirms a principal owns a project.
type Authorizer interface {
	Authorize(ctx context.Context, principalID, projectID string) (*domain.Project, error)
}

// Service lists and reads data sources owned by the calling principal.
type Service struct {
	gate    Authorizer
	sources domain.DataSourceRepository
	entries domain.DataEntryRepository
}

// NewService creates a Service.
func NewService(gate Authorizer, sources domain.DataSourceRepository, entries domain.DataEntryRepository) *Service {
	return &Service{gate: gate, sources: sources, entries: entries}
}

// List returns the caller's data sources in projectID, newest first.
func (s *Service) List(ctx context.Context, projectID string, page domain.PageRequest) ([]domain.DataSource, int64, error) {
	if projectID == "" {
		return nil, 0, domain.ErrInvalidFields(domain.FieldError{Param: "projectId", Msg: "Project ID is required"})
	}
	principal, _ := domain.PrincipalFromContext(ctx)
	if _, err := s.gate.Authorize(ctx, principal.ID, projectID); err != nil {
		return nil, 0, err
	}
	list, total, err := s.sources.ListByProject(ctx, principal.ID, projectID, page)
	if err != nil {
		return nil, 0, domain.ErrPersistence("list data sources", err)
	}
	return list, total, nil
}

// Get returns one data source. Sources owned by someone else are reported
// as missing.
func (s *Service) Get(ctx context.Context, id string) (*domain.DataSource, error) {
	principal, ok := domain.PrincipalFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated("authentication required")
	}
	ds, err := s.sources.GetByID(ctx, id)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, domain.ErrNotFound("Data source not found")
		}
		return nil, domain.ErrPersistence("load data source", err)
	}
	if ds.Owner != principal.ID {
		return nil, domain.ErrNotFound("Data source not found")
	}
	return ds, nil
}

// ListEntries pages through a data source's entries in ingestion order.
func (s *Service) ListEntries(ctx context.Context, id string, page domain.PageRequest) ([]domain.DataEntry, int64, error) {
	ds, err := s.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	entries, total, err := s.entries.ListBySource(ctx, ds.ID, page)
	if err != nil {
		return nil, 0, domain.ErrPersistence("list entries", err)
	}
	return entries, total, nil
}
