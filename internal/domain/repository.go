package domain

import (
	"context"
	"io"
	"time"
)

// RecordReader is a forward-only, single-pass sequence of parsed records.
// Next returns io.EOF after the last record.
type RecordReader interface {
	Next() (Payload, error)
}

// ProjectRepository stores projects.
type ProjectRepository interface {
	Create(ctx context.Context, p *Project) (*Project, error)
	GetByID(ctx context.Context, id string) (*Project, error)
	ListByOwner(ctx context.Context, owner string, page PageRequest) ([]Project, int64, error)
	TouchLastOpened(ctx context.Context, id string, at time.Time) error
}

// DataSourceRepository stores data source descriptors.
type DataSourceRepository interface {
	Create(ctx context.Context, ds *DataSource) (*DataSource, error)
	GetByID(ctx context.Context, id string) (*DataSource, error)
	ListByProject(ctx context.Context, owner, projectID string, page PageRequest) ([]DataSource, int64, error)
	Delete(ctx context.Context, id string) error
	// ReferencedLocations reports which of locations belong to a data source.
	ReferencedLocations(ctx context.Context, locations []string) (map[string]bool, error)
}

// DataEntryRepository stores parsed records.
type DataEntryRepository interface {
	// BulkInsert drains records into sourceID. Nothing is committed unless
	// every record is stored.
	BulkInsert(ctx context.Context, sourceID string, records RecordReader) (int64, error)
	ListBySource(ctx context.Context, sourceID string, page PageRequest) ([]DataEntry, int64, error)
}

// AuditRepository stores audit log entries.
type AuditRepository interface {
	Insert(ctx context.Context, e *AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEntry, int64, error)
}

// BlobInfo describes one stored object.
type BlobInfo struct {
	Location string
	Size     int64
	ModTime  time.Time
}

// MaxNameAttempts bounds how many candidate names a BlobStore tries.
const MaxNameAttempts = 5

// NameFunc proposes the blob name for a 1-based attempt.
type NameFunc func(attempt int) string

// FixedName proposes name on every attempt, so a taken name is final.
func FixedName(name string) NameFunc {
	return func(int) string { return name }
}

// BlobStore holds raw uploaded bytes under opaque locations.
type BlobStore interface {
	// Put reads r once and stores it under the first free name from names.
	// ErrBlobExists means all MaxNameAttempts candidates were taken.
	// Nothing is left behind when Put fails.
	Put(ctx context.Context, names NameFunc, r io.Reader) (location string, size int64, err error)
	Open(ctx context.Context, location string) (io.ReadCloser, error)
	Delete(ctx context.Context, location string) error
	List(ctx context.Context) ([]BlobInfo, error)
}
