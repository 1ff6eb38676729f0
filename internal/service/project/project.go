// Package project manages the projects data sources are uploaded into.
package project

import (
	"context"
	"strings"
	"time"

	"aida/internal/domain"
	"aida/internal/service/auditutil"
)

// Authorizer confirms a principal owns a project.
type Authorizer interface {
	Authorize(ctx context.Context, principalID, projectID string) (*domain.Project, error)
}

// Service creates and lists the calling principal's projects.
type Service struct {
	repo  domain.ProjectRepository
	gate  Authorizer
	audit *auditutil.Recorder
	now   func() time.Time
}

// NewService creates a Service.
func NewService(repo domain.ProjectRepository, gate Authorizer, audit *auditutil.Recorder) *Service {
	return &Service{repo: repo, gate: gate, audit: audit, now: time.Now}
}

// Create adds a project owned by the caller.
func (s *Service) Create(ctx context.Context, req domain.CreateProjectRequest) (*domain.Project, error) {
	principal, ok := domain.PrincipalFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated("authentication required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p, err := s.repo.Create(ctx, &domain.Project{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Owner:       principal.ID,
	})
	if err != nil {
		return nil, domain.ErrPersistence("create project", err)
	}
	s.audit.Allowed(ctx, auditutil.Event{
		Principal:    principal.ID,
		Action:       "CREATE_PROJECT",
		ResourceType: "project",
		ResourceID:   p.ID,
		Detail:       p.Name,
	})
	return p, nil
}

// Get returns one of the caller's projects and marks it as opened.
func (s *Service) Get(ctx context.Context, id string) (*domain.Project, error) {
	principal, _ := domain.PrincipalFromContext(ctx)
	p, err := s.gate.Authorize(ctx, principal.ID, id)
	if err != nil {
		return nil, err
	}
	at := s.now().UTC()
	if err := s.repo.TouchLastOpened(ctx, p.ID, at); err != nil {
		return nil, domain.ErrPersistence("touch project", err)
	}
	p.LastOpened = &at
	return p, nil
}

// ListMine returns the caller's projects.
func (s *Service) ListMine(ctx context.Context, page domain.PageRequest) ([]domain.Project, int64, error) {
	principal, ok := domain.PrincipalFromContext(ctx)
	if !ok {
		return nil, 0, domain.ErrUnauthenticated("authentication required")
	}
	list, total, err := s.repo.ListByOwner(ctx, principal.ID, page)
	if err != nil {
		return nil, 0, domain.ErrPersistence("list projects", err)
	}
	return list, total, nil
}
