package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"aida/internal/domain"
)

// allowedMediaTypes is the per-kind allow-list, keyed on the parsed,
// lower-cased media type.
var allowedMediaTypes = map[domain.ContentKind]map[string]bool{
	domain.ContentCSV: {
		"text/csv":                 true,
		"application/vnd.ms-excel": true,
		"application/csv":          true,
	},
	domain.ContentSQL: {
		"application/sql": true,
		"text/plain":      true,
	},
}

const maxNameLength = 180

// FilePart is one uploaded file as it arrives at the boundary.
type FilePart struct {
	Name      string // client-supplied file name
	MediaType string // declared Content-Type of the part
	Body      io.Reader
}

// Gateway writes uploaded bytes to blob storage after checking the
// declared media type and enforcing the size ceiling.
type Gateway struct {
	store    domain.BlobStore
	maxBytes int64
	now      func() time.Time
	logger   *slog.Logger
}

// NewGateway creates a Gateway. maxBytes must be positive.
func NewGateway(store domain.BlobStore, maxBytes int64, logger *slog.Logger) *Gateway {
	return &Gateway{
		store:    store,
		maxBytes: maxBytes,
		now:      time.Now,
		logger:   logger.With("component", "upload-gateway"),
	}
}

// MaxBytes returns the upload ceiling.
func (g *Gateway) MaxBytes() int64 { return g.maxBytes }

// AllowedMediaType reports whether mediaType may carry kind.
func AllowedMediaType(kind domain.ContentKind, mediaType string) bool {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	return allowedMediaTypes[kind][strings.ToLower(mt)]
}

// Receive stores part under a fresh name. Nothing is stored when the media
// type is not allowed for kind, when the body exceeds the ceiling, or when
// reading fails.
func (g *Gateway) Receive(ctx context.Context, part FilePart, kind domain.ContentKind) (*domain.StoredFile, error) {
	if !AllowedMediaType(kind, part.MediaType) {
		return nil, domain.ErrInvalidFields(domain.FieldError{Param: "file", Msg: "Invalid file type"})
	}

	body := &limitReader{r: part.Body, limit: g.maxBytes}
	location, size, err := g.store.Put(ctx, g.names(SanitizeName(part.Name)), body)
	if err != nil {
		if errors.Is(err, domain.ErrBlobExists) {
			return nil, domain.ErrConflict("could not allocate a unique name for %q", part.Name)
		}
		return nil, receiveError(ctx, err)
	}
	g.logger.DebugContext(ctx, "upload stored", "location", location, "size", size)
	return &domain.StoredFile{
		Location:     location,
		Size:         size,
		ContentKind:  kind,
		OriginalName: part.Name,
	}, nil
}

// names proposes {millis}-{base}. Later attempts add a random tag so two
// uploads of one file within the same millisecond both land.
func (g *Gateway) names(base string) domain.NameFunc {
	return func(attempt int) string {
		millis := g.now().UnixMilli()
		if attempt == 1 {
			return fmt.Sprintf("%d-%s", millis, base)
		}
		return fmt.Sprintf("%d-%s-%s", millis, uuid.NewString()[:8], base)
	}
}

func receiveError(ctx context.Context, err error) error {
	if kind := domain.KindOf(err); kind != domain.KindInternal {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.ErrIO("receive upload", ctxErr)
	}
	return domain.ErrIO("receive upload", err)
}

// SanitizeName reduces a client file name to its base name restricted to
// [A-Za-z0-9._-]. Leading dots are dropped; an empty result becomes "upload".
func SanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if len(out) > maxNameLength {
		out = out[len(out)-maxNameLength:]
	}
	if out == "" {
		return "upload"
	}
	return out
}

// limitReader fails with PayloadTooLargeError once more than limit bytes
// have been read. Exactly limit bytes is fine.
type limitReader struct {
	r     io.Reader
	limit int64
	n     int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.n > l.limit {
		return 0, &domain.PayloadTooLargeError{Limit: l.limit}
	}
	if room := l.limit - l.n + 1; int64(len(p)) > room {
		p = p[:room]
	}
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.limit {
		return n, &domain.PayloadTooLargeError{Limit: l.limit}
	}
	return n, err
}
