package domain

import "time"

// OriginKind says how a data source came into existence.
type OriginKind string

// Supported origins.
const (
	OriginManualUpload   OriginKind = "manual-upload"
	OriginAPIIntegration OriginKind = "api-integration"
)

// ContentKind is the declared format of an uploaded file.
type ContentKind string

// Supported content kinds.
const (
	ContentCSV ContentKind = "csv"
	ContentSQL ContentKind = "sql"
)

// ParseContentKind maps a request value onto a ContentKind.
func ParseContentKind(s string) (ContentKind, bool) {
	switch ContentKind(s) {
	case ContentCSV:
		return ContentCSV, true
	case ContentSQL:
		return ContentSQL, true
	default:
		return "", false
	}
}

// DataSource describes one ingested artifact. ContentKind and
// StorageLocation are set only for manual uploads.
type DataSource struct {
	ID              string
	Name            string
	Origin          OriginKind
	ContentKind     *ContentKind
	StorageLocation *string
	SizeBytes       *int64
	Owner           string
	ProjectID       string
	CreatedAt       time.Time
}

// StoredFile is the gateway's receipt for bytes written to blob storage.
type StoredFile struct {
	Location     string // opaque handle, stored verbatim
	Size         int64
	ContentKind  ContentKind
	OriginalName string
}
