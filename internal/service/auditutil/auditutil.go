// Package auditutil writes audit entries without failing the caller.
package auditutil

import (
	"context"
	"log/slog"
	"time"

	"aida/internal/domain"
)

// Event describes one audited action.
type Event struct {
	Principal    string
	Action       string
	ResourceType string
	ResourceID   string
	Detail       string
	Started      time.Time // zero skips the duration
}

// Recorder writes audit entries. A nil Recorder or repository is a no-op.
type Recorder struct {
	repo   domain.AuditRepository
	logger *slog.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(repo domain.AuditRepository, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// Allowed records a permitted action.
func (r *Recorder) Allowed(ctx context.Context, ev Event) {
	r.record(ctx, domain.AuditAllowed, ev)
}

// Denied records a refused action.
func (r *Recorder) Denied(ctx context.Context, ev Event) {
	r.record(ctx, domain.AuditDenied, ev)
}

// Failed records an action that was permitted but did not complete.
func (r *Recorder) Failed(ctx context.Context, ev Event) {
	r.record(ctx, domain.AuditError, ev)
}

func (r *Recorder) record(ctx context.Context, status string, ev Event) {
	if r == nil || r.repo == nil {
		return
	}
	entry := &domain.AuditEntry{
		PrincipalID:  ev.Principal,
		Action:       ev.Action,
		ResourceType: ev.ResourceType,
		ResourceID:   ev.ResourceID,
		Status:       status,
	}
	if ev.Detail != "" {
		d := ev.Detail
		entry.Detail = &d
	}
	if !ev.Started.IsZero() {
		ms := time.Since(ev.Started).Milliseconds()
		entry.DurationMs = &ms
	}
	// the request may already be canceled; the audit row should still land
	if err := r.repo.Insert(context.WithoutCancel(ctx), entry); err != nil && r.logger != nil {
		r.logger.Warn("audit write failed", "action", ev.Action, "status", status, "error", err)
	}
}
