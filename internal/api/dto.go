package api

import (
	"time"

	"aida/internal/domain"
)

// DataSource is the JSON form of a data source.
type DataSource struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Origin          string    `json:"origin"`
	ContentKind     *string   `json:"contentKind,omitempty"`
	StorageLocation *string   `json:"storageLocation,omitempty"`
	SizeBytes       *int64    `json:"sizeBytes,omitempty"`
	Owner           string    `json:"owner"`
	ProjectID       string    `json:"projectId"`
	CreatedAt       time.Time `json:"createdAt"`
}

// DataEntry is the JSON form of one stored record.
type DataEntry struct {
	ID           string         `json:"id"`
	DataSourceID string         `json:"dataSourceId"`
	Ordinal      int64          `json:"ordinal"`
	Payload      domain.Payload `json:"payload"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Project is the JSON form of a project.
type Project struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Owner       string     `json:"owner"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastOpened  *time.Time `json:"lastOpened,omitempty"`
}

// UploadResponse is returned by a successful upload.
type UploadResponse struct {
	Msg          string `json:"msg"`
	DataSourceID string `json:"dataSourceId"`
	Entries      int64  `json:"entries"`
}

// CreateProjectBody is the request body of POST /projects.
type CreateProjectBody struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func dataSourceToAPI(ds domain.DataSource) DataSource {
	out := DataSource{
		ID:              ds.ID,
		Name:            ds.Name,
		Origin:          string(ds.Origin),
		StorageLocation: ds.StorageLocation,
		SizeBytes:       ds.SizeBytes,
		Owner:           ds.Owner,
		ProjectID:       ds.ProjectID,
		CreatedAt:       ds.CreatedAt,
	}
	if ds.ContentKind != nil {
		k := string(*ds.ContentKind)
		out.ContentKind = &k
	}
	return out
}

func dataEntryToAPI(e domain.DataEntry) DataEntry {
	return DataEntry{
		ID:           e.ID,
		DataSourceID: e.DataSourceID,
		Ordinal:      e.Ordinal,
		Payload:      e.Payload,
		CreatedAt:    e.CreatedAt,
	}
}

func projectToAPI(p domain.Project) Project {
	return Project{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Owner:       p.Owner,
		CreatedAt:   p.CreatedAt,
		LastOpened:  p.LastOpened,
	}
}

func mapSlice[T, U any](in []T, f func(T) U) []U {
	out := make([]U, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}
