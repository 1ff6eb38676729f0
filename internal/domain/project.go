package domain

import (
	"strings"
	"time"
)

// Project groups data sources under one owning principal.
type Project struct {
	ID          string
	Name        string
	Description string
	Owner       string
	CreatedAt   time.Time
	LastOpened  *time.Time
}

// CreateProjectRequest holds parameters for creating a project.
type CreateProjectRequest struct {
	Name        string
	Description string
}

// Validate checks that the request is well-formed.
func (r CreateProjectRequest) Validate() error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return ErrInvalidFields(FieldError{Param: "name", Msg: "Project name is required"})
	}
	if len(name) > 128 {
		return ErrInvalidFields(FieldError{Param: "name", Msg: "Project name must be at most 128 characters"})
	}
	return nil
}
