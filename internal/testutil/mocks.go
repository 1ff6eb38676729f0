// Package testutil provides shared fakes of the domain ports for tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"aida/internal/domain"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// === Audit Repository Mock ===

// MockAuditRepo implements domain.AuditRepository and collects entries.
type MockAuditRepo struct {
	InsertFn func(ctx context.Context, e *domain.AuditEntry) error

	mu      sync.Mutex
	Entries []*domain.AuditEntry
}

var _ domain.AuditRepository = (*MockAuditRepo)(nil)

// Insert implements the interface method for testing.
func (m *MockAuditRepo) Insert(ctx context.Context, e *domain.AuditEntry) error {
	if m.InsertFn != nil {
		if err := m.InsertFn(ctx, e); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, e)
	return nil
}

// List returns every collected entry.
func (m *MockAuditRepo) List(_ context.Context, _ domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AuditEntry, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = *e
	}
	return out, int64(len(out)), nil
}

// HasEntry reports whether an entry with action and status was recorded.
func (m *MockAuditRepo) HasEntry(action, status string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Entries {
		if e.Action == action && e.Status == status {
			return true
		}
	}
	return false
}

// === Project Repository Mock ===

// MockProjectRepo implements domain.ProjectRepository.
type MockProjectRepo struct {
	CreateFn          func(ctx context.Context, p *domain.Project) (*domain.Project, error)
	GetByIDFn         func(ctx context.Context, id string) (*domain.Project, error)
	ListByOwnerFn     func(ctx context.Context, owner string, page domain.PageRequest) ([]domain.Project, int64, error)
	TouchLastOpenedFn func(ctx context.Context, id string, at time.Time) error
}

var _ domain.ProjectRepository = (*MockProjectRepo)(nil)

// Create implements the interface method for testing.
func (m *MockProjectRepo) Create(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, p)
	}
	panic("unexpected call to MockProjectRepo.Create")
}

// GetByID implements the interface method for testing.
func (m *MockProjectRepo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	panic("unexpected call to MockProjectRepo.GetByID")
}

// ListByOwner implements the interface method for testing.
func (m *MockProjectRepo) ListByOwner(ctx context.Context, owner string, page domain.PageRequest) ([]domain.Project, int64, error) {
	if m.ListByOwnerFn != nil {
		return m.ListByOwnerFn(ctx, owner, page)
	}
	panic("unexpected call to MockProjectRepo.ListByOwner")
}

// TouchLastOpened implements the interface method for testing.
func (m *MockProjectRepo) TouchLastOpened(ctx context.Context, id string, at time.Time) error {
	if m.TouchLastOpenedFn != nil {
		return m.TouchLastOpenedFn(ctx, id, at)
	}
	panic("unexpected call to MockProjectRepo.TouchLastOpened")
}

// OwnedProjects returns a GetByIDFn serving the given projects.
func OwnedProjects(projects ...domain.Project) func(context.Context, string) (*domain.Project, error) {
	return func(_ context.Context, id string) (*domain.Project, error) {
		for i := range projects {
			if projects[i].ID == id {
				p := projects[i]
				return &p, nil
			}
		}
		return nil, domain.ErrNotFound("project %q not found", id)
	}
}

// === Data Source Repository Mock ===

// MockDataSourceRepo implements domain.DataSourceRepository.
type MockDataSourceRepo struct {
	CreateFn              func(ctx context.Context, ds *domain.DataSource) (*domain.DataSource, error)
	GetByIDFn             func(ctx context.Context, id string) (*domain.DataSource, error)
	ListByProjectFn       func(ctx context.Context, owner, projectID string, page domain.PageRequest) ([]domain.DataSource, int64, error)
	DeleteFn              func(ctx context.Context, id string) error
	ReferencedLocationsFn func(ctx context.Context, locations []string) (map[string]bool, error)
}

var _ domain.DataSourceRepository = (*MockDataSourceRepo)(nil)

// Create implements the interface method for testing.
func (m *MockDataSourceRepo) Create(ctx context.Context, ds *domain.DataSource) (*domain.DataSource, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, ds)
	}
	panic("unexpected call to MockDataSourceRepo.Create")
}

// GetByID implements the interface method for testing.
func (m *MockDataSourceRepo) GetByID(ctx context.Context, id string) (*domain.DataSource, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	panic("unexpected call to MockDataSourceRepo.GetByID")
}

// ListByProject implements the interface method for testing.
func (m *MockDataSourceRepo) ListByProject(ctx context.Context, owner, projectID string, page domain.PageRequest) ([]domain.DataSource, int64, error) {
	if m.ListByProjectFn != nil {
		return m.ListByProjectFn(ctx, owner, projectID, page)
	}
	panic("unexpected call to MockDataSourceRepo.ListByProject")
}

// Delete implements the interface method for testing.
func (m *MockDataSourceRepo) Delete(ctx context.Context, id string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	panic("unexpected call to MockDataSourceRepo.Delete")
}

// ReferencedLocations implements the interface method for testing.
func (m *MockDataSourceRepo) ReferencedLocations(ctx context.Context, locations []string) (map[string]bool, error) {
	if m.ReferencedLocationsFn != nil {
		return m.ReferencedLocationsFn(ctx, locations)
	}
	panic("unexpected call to MockDataSourceRepo.ReferencedLocations")
}

// === Data Entry Repository Mock ===

// MockDataEntryRepo implements domain.DataEntryRepository.
type MockDataEntryRepo struct {
	BulkInsertFn   func(ctx context.Context, sourceID string, records domain.RecordReader) (int64, error)
	ListBySourceFn func(ctx context.Context, sourceID string, page domain.PageRequest) ([]domain.DataEntry, int64, error)
}

var _ domain.DataEntryRepository = (*MockDataEntryRepo)(nil)

// BulkInsert implements the interface method for testing.
func (m *MockDataEntryRepo) BulkInsert(ctx context.Context, sourceID string, records domain.RecordReader) (int64, error) {
	if m.BulkInsertFn != nil {
		return m.BulkInsertFn(ctx, sourceID, records)
	}
	panic("unexpected call to MockDataEntryRepo.BulkInsert")
}

// ListBySource implements the interface method for testing.
func (m *MockDataEntryRepo) ListBySource(ctx context.Context, sourceID string, page domain.PageRequest) ([]domain.DataEntry, int64, error) {
	if m.ListBySourceFn != nil {
		return m.ListBySourceFn(ctx, sourceID, page)
	}
	panic("unexpected call to MockDataEntryRepo.ListBySource")
}

// === Blob Store Fake ===

// MemBlobStore is an in-memory domain.BlobStore. PutErr, when set, is
// returned after the reader has been drained.
type MemBlobStore struct {
	PutErr    error
	DeleteErr error

	mu      sync.Mutex
	objects map[string]memObject
	Deleted []string
}

type memObject struct {
	data    []byte
	modTime time.Time
}

var _ domain.BlobStore = (*MemBlobStore)(nil)

// NewMemBlobStore creates an empty store.
func NewMemBlobStore() *MemBlobStore {
	return &MemBlobStore{objects: map[string]memObject{}}
}

// Put implements domain.BlobStore.
func (m *MemBlobStore) Put(ctx context.Context, names domain.NameFunc, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	if m.PutErr != nil {
		return "", 0, m.PutErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for attempt := 1; attempt <= domain.MaxNameAttempts; attempt++ {
		name := names(attempt)
		if _, ok := m.objects[name]; ok {
			continue
		}
		m.objects[name] = memObject{data: data, modTime: time.Now()}
		return name, int64(len(data)), nil
	}
	return "", 0, domain.ErrBlobExists
}

// Open implements domain.BlobStore.
func (m *MemBlobStore) Open(_ context.Context, location string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[location]
	if !ok {
		return nil, domain.ErrNotFound("stored file %q not found", location)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete implements domain.BlobStore.
func (m *MemBlobStore) Delete(_ context.Context, location string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, location)
	m.Deleted = append(m.Deleted, location)
	return nil
}

// List implements domain.BlobStore.
func (m *MemBlobStore) List(_ context.Context) ([]domain.BlobInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.BlobInfo, 0, len(m.objects))
	for k, v := range m.objects {
		out = append(out, domain.BlobInfo{Location: k, Size: int64(len(v.data)), ModTime: v.modTime})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out, nil
}

// Seed stores data under name with the given modification time.
func (m *MemBlobStore) Seed(name string, data []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = memObject{data: data, modTime: modTime}
}

// Names returns the stored locations in order.
func (m *MemBlobStore) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.objects))
	for k := range m.objects {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
