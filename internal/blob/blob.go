// Package blob stores uploaded files on local disk or in object storage.
//
// Every store is create-only: Put never replaces an existing object and
// leaves nothing behind when it fails.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"aida/internal/config"
	"aida/internal/domain"
)

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (domain.BlobStore, error) {
	switch cfg.Backend {
	case config.BackendLocal, "":
		return NewLocalStore(cfg.UploadDir)
	case config.BackendS3:
		return NewS3Store(cfg.S3)
	case config.BackendGCS:
		return NewGCSStore(ctx, cfg.GCS)
	case config.BackendAzure:
		return NewAzureStore(cfg.Azure)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// checkName rejects names that could escape the flat upload namespace.
func checkName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid blob name %q", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("blob name %q must not contain path separators", name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("blob name %q must not start with a dot", name)
	}
	return nil
}

// objectKey joins an optional prefix and a name.
func objectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// publish offers candidate names to try until one is accepted. try reports
// a taken name with domain.ErrBlobExists; any other error is final.
func publish(names domain.NameFunc, try func(name string) error) (string, error) {
	var prev string
	for attempt := 1; attempt <= domain.MaxNameAttempts; attempt++ {
		name := names(attempt)
		if attempt > 1 && name == prev {
			break
		}
		prev = name
		if err := checkName(name); err != nil {
			return "", err
		}
		err := try(name)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, domain.ErrBlobExists) {
			return "", err
		}
	}
	return "", domain.ErrBlobExists
}

// replayReader lets a streamed body be sent again after a collision. Each
// reader from next yields the bytes already consumed, then the rest of the
// source.
type replayReader struct {
	src  io.Reader
	seen bytes.Buffer
}

func (rr *replayReader) next() io.Reader {
	return io.MultiReader(bytes.NewReader(rr.seen.Bytes()), io.TeeReader(rr.src, &rr.seen))
}

// countingReader tallies bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// notFound normalizes a missing-object error.
func notFound(location string) error {
	return domain.ErrNotFound("stored file %q not found", location)
}
