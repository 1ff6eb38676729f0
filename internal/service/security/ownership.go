// Package security enforces resource ownership for mutating operations.
package security

import (
	"context"
	"errors"

	"aida/internal/domain"
	"aida/internal/service/auditutil"
)

// OwnershipGate confirms a principal owns a project.
type OwnershipGate struct {
	projects domain.ProjectRepository
	audit    *auditutil.Recorder
}

// NewOwnershipGate creates an OwnershipGate.
func NewOwnershipGate(projects domain.ProjectRepository, audit *auditutil.Recorder) *OwnershipGate {
	return &OwnershipGate{projects: projects, audit: audit}
}

// Authorize returns the project when principalID owns it. A missing
// project is NotFound; someone else's is AccessDenied.
func (g *OwnershipGate) Authorize(ctx context.Context, principalID, projectID string) (*domain.Project, error) {
	if principalID == "" {
		return nil, domain.ErrUnauthenticated("authentication required")
	}
	p, err := g.projects.GetByID(ctx, projectID)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, domain.ErrNotFound("Project not found")
		}
		return nil, domain.ErrPersistence("load project", err)
	}
	if p.Owner != principalID {
		g.audit.Denied(ctx, auditutil.Event{
			Principal:    principalID,
			Action:       "AUTHORIZE_PROJECT",
			ResourceType: "project",
			ResourceID:   projectID,
			Detail:       "project owned by another principal",
		})
		return nil, domain.ErrAccessDenied("project %q is not owned by the caller", projectID)
	}
	return p, nil
}
