// Package ingestion turns an authenticated upload into a data source with
// stored entries.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"aida/internal/config"
	"aida/internal/domain"
	"aida/internal/parser"
	"aida/internal/service/auditutil"
)

// State names a step of one ingestion.
type State string

// Ingestion states, in order. Any state may move to StateAborted.
const (
	StateValidating     State = "validating"
	StateAuthorized     State = "authorized"
	StateStored         State = "stored"
	StateSourceRecorded State = "source_recorded"
	StateParsing        State = "parsing"
	StatePersisted      State = "persisted"
	StateAborted        State = "aborted"
)

const auditAction = "INGEST_UPLOAD"

// Field messages reported to clients.
const (
	msgFileTypeInvalid  = "File type is required and must be either csv or sql"
	msgProjectRequired  = "Project ID is required"
	msgFileRequired     = "File is required"
	msgFileTypeMismatch = "Invalid file type"
)

// Authorizer confirms a principal owns a project.
type Authorizer interface {
	Authorize(ctx context.Context, principalID, projectID string) (*domain.Project, error)
}

// UploadRequest is one upload as received from the client. File is nil
// when no file part was sent.
type UploadRequest struct {
	Principal string
	ProjectID string
	FileType  string
	File      *FilePart
}

// Result describes a completed ingestion.
type Result struct {
	DataSource *domain.DataSource
	Entries    int64
}

// Coordinator runs the ingestion pipeline for one request at a time;
// concurrent calls share nothing but the stores.
type Coordinator struct {
	gate         Authorizer
	gateway      *Gateway
	store        domain.BlobStore
	sources      domain.DataSourceRepository
	entries      domain.DataEntryRepository
	audit        *auditutil.Recorder
	orphanPolicy string
	logger       *slog.Logger
}

// NewCoordinator creates a Coordinator. An empty orphanPolicy means retain.
func NewCoordinator(
	gate Authorizer,
	gateway *Gateway,
	store domain.BlobStore,
	sources domain.DataSourceRepository,
	entries domain.DataEntryRepository,
	audit *auditutil.Recorder,
	orphanPolicy string,
	logger *slog.Logger,
) *Coordinator {
	if orphanPolicy == "" {
		orphanPolicy = config.OrphanRetain
	}
	return &Coordinator{
		gate:         gate,
		gateway:      gateway,
		store:        store,
		sources:      sources,
		entries:      entries,
		audit:        audit,
		orphanPolicy: orphanPolicy,
		logger:       logger.With("component", "ingestion"),
	}
}

// Validate checks the request fields without touching any store.
func Validate(req UploadRequest) (domain.ContentKind, error) {
	var fields []domain.FieldError
	kind, ok := domain.ParseContentKind(req.FileType)
	if !ok {
		fields = append(fields, domain.FieldError{Param: "fileType", Msg: msgFileTypeInvalid})
	}
	if req.ProjectID == "" {
		fields = append(fields, domain.FieldError{Param: "projectId", Msg: msgProjectRequired})
	}
	if req.File == nil {
		fields = append(fields, domain.FieldError{Param: "file", Msg: msgFileRequired})
	}
	if len(fields) > 0 {
		return "", domain.ErrInvalidFields(fields...)
	}
	return kind, nil
}

// Ingest validates, authorizes, stores, records and parses one upload.
// Once the data source exists a parse failure leaves it and the stored
// file in place unless the orphan policy is rollback.
func (c *Coordinator) Ingest(ctx context.Context, req UploadRequest) (*Result, error) {
	started := time.Now()
	ev := auditutil.Event{
		Principal:    req.Principal,
		Action:       auditAction,
		ResourceType: "project",
		ResourceID:   req.ProjectID,
		Started:      started,
	}

	c.transition(ctx, StateValidating)
	kind, err := Validate(req)
	if err != nil {
		return nil, c.abort(ctx, StateValidating, err)
	}

	project, err := c.gate.Authorize(ctx, req.Principal, req.ProjectID)
	if err != nil {
		if domain.KindOf(err) == domain.KindForbidden {
			ev.Detail = err.Error()
			c.audit.Denied(ctx, ev)
		}
		return nil, c.abort(ctx, StateAuthorized, err)
	}
	c.transition(ctx, StateAuthorized)

	stored, err := c.gateway.Receive(ctx, *req.File, kind)
	if err != nil {
		return nil, c.abort(ctx, StateStored, err)
	}
	c.transition(ctx, StateStored, "location", stored.Location, "size", stored.Size)

	ds, err := c.sources.Create(ctx, &domain.DataSource{
		Name:            stored.OriginalName,
		Origin:          domain.OriginManualUpload,
		ContentKind:     &stored.ContentKind,
		StorageLocation: &stored.Location,
		SizeBytes:       &stored.Size,
		Owner:           req.Principal,
		ProjectID:       project.ID,
	})
	if err != nil {
		c.deleteBlob(ctx, stored.Location)
		return nil, c.abort(ctx, StateSourceRecorded, domain.ErrPersistence("create data source", err))
	}
	c.transition(ctx, StateSourceRecorded, "data_source_id", ds.ID)
	ev.ResourceType, ev.ResourceID = "data_source", ds.ID

	c.transition(ctx, StateParsing)
	n, err := c.parseAndPersist(ctx, ds.ID, stored)
	if err != nil {
		err = c.compensate(ctx, ds, stored, err)
		ev.Detail = err.Error()
		c.audit.Failed(ctx, ev)
		return nil, c.abort(ctx, StatePersisted, err)
	}
	c.transition(ctx, StatePersisted, "entries", n)

	ev.Detail = fmt.Sprintf("%s %q: %d entries", kind, stored.OriginalName, n)
	c.audit.Allowed(ctx, ev)
	c.logger.InfoContext(ctx, "upload ingested",
		"data_source_id", ds.ID, "project_id", project.ID, "kind", kind,
		"entries", n, "bytes", stored.Size, "duration_ms", time.Since(started).Milliseconds())
	return &Result{DataSource: ds, Entries: n}, nil
}

func (c *Coordinator) parseAndPersist(ctx context.Context, sourceID string, stored *domain.StoredFile) (int64, error) {
	rc, err := c.store.Open(ctx, stored.Location)
	if err != nil {
		return 0, &domain.IOFailureError{Op: "open stored file", Err: err}
	}
	defer rc.Close() //nolint:errcheck

	records, err := parser.New(stored.ContentKind, rc, int(c.gateway.MaxBytes()))
	if err != nil {
		return 0, err
	}
	n, err := c.entries.BulkInsert(ctx, sourceID, records)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// compensate applies the cleanup for a failure after the data source was
// recorded and returns the error to report.
func (c *Coordinator) compensate(ctx context.Context, ds *domain.DataSource, stored *domain.StoredFile, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		c.deleteBlob(ctx, stored.Location)
		if c.orphanPolicy == config.OrphanRollback {
			c.deleteSource(ctx, ds.ID)
		}
		return domain.ErrIO("ingest interrupted", ctxErr)
	}
	if c.orphanPolicy == config.OrphanRollback {
		c.deleteSource(ctx, ds.ID)
		c.deleteBlob(ctx, stored.Location)
	}
	if domain.KindOf(err) == domain.KindInternal {
		return domain.ErrPersistence("store entries", err)
	}
	return err
}

func (c *Coordinator) deleteBlob(ctx context.Context, location string) {
	if err := c.store.Delete(context.WithoutCancel(ctx), location); err != nil {
		c.logger.WarnContext(ctx, "failed to delete stored file", "location", location, "error", err)
	}
}

func (c *Coordinator) deleteSource(ctx context.Context, id string) {
	err := c.sources.Delete(context.WithoutCancel(ctx), id)
	var nf *domain.NotFoundError
	if err != nil && !errors.As(err, &nf) {
		c.logger.WarnContext(ctx, "failed to delete data source", "data_source_id", id, "error", err)
	}
}

func (c *Coordinator) transition(ctx context.Context, s State, args ...any) {
	args = append([]any{"state", s, "request_id", domain.RequestIDFromContext(ctx)}, args...)
	c.logger.DebugContext(ctx, "ingest transition", args...)
}

// abort logs the move to StateAborted. failed is the state that could not
// be reached.
func (c *Coordinator) abort(ctx context.Context, failed State, err error) error {
	c.logger.DebugContext(ctx, "ingest transition",
		"state", StateAborted, "failed", failed, "kind", domain.KindOf(err),
		"request_id", domain.RequestIDFromContext(ctx), "error", err)
	return err
}
