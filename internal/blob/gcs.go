package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"aida/internal/config"
	"aida/internal/domain"
)

// GCSStore keeps uploads in a Google Cloud Storage bucket.
type GCSStore struct {
	bucket *storage.BucketHandle
	name   string
	prefix string
}

var _ domain.BlobStore = (*GCSStore)(nil)

// NewGCSStore creates a store. An empty credentials file falls back to
// application default credentials.
func NewGCSStore(ctx context.Context, cfg config.GCSConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSStore{bucket: client.Bucket(cfg.Bucket), name: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Put writes with a DoesNotExist precondition. On a failed copy the
// upload context is canceled so GCS discards the partial object. A taken
// name is retried with the next candidate, replaying the bytes already
// sent.
func (s *GCSStore) Put(ctx context.Context, names domain.NameFunc, r io.Reader) (string, int64, error) {
	body := &replayReader{src: r}
	var size int64
	name, err := publish(names, func(name string) error {
		n, err := s.write(ctx, objectKey(s.prefix, name), body.next())
		size = n
		return err
	})
	if err != nil {
		return "", 0, err
	}
	return objectKey(s.prefix, name), size, nil
}

func (s *GCSStore) write(ctx context.Context, key string, r io.Reader) (int64, error) {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := s.bucket.Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(wctx)
	w.ContentType = "application/octet-stream"

	n, err := io.Copy(w, r)
	if err != nil {
		cancel()
		_ = w.Close()
		if isPreconditionFailed(err) {
			return 0, domain.ErrBlobExists
		}
		return 0, err
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return 0, domain.ErrBlobExists
		}
		return 0, fmt.Errorf("put gs://%s/%s: %w", s.name, key, err)
	}
	return n, nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

// Open streams the object.
func (s *GCSStore) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	rc, err := s.bucket.Object(location).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, notFound(location)
		}
		return nil, fmt.Errorf("get gs://%s/%s: %w", s.name, location, err)
	}
	return rc, nil
}

// Delete removes the object. Missing objects are ignored.
func (s *GCSStore) Delete(ctx context.Context, location string) error {
	err := s.bucket.Object(location).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete gs://%s/%s: %w", s.name, location, err)
	}
	return nil
}

// List iterates every object under the prefix.
func (s *GCSStore) List(ctx context.Context) ([]domain.BlobInfo, error) {
	q := &storage.Query{}
	if p := strings.Trim(s.prefix, "/"); p != "" {
		q.Prefix = p + "/"
	}
	var out []domain.BlobInfo
	it := s.bucket.Objects(ctx, q)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s: %w", s.name, err)
		}
		out = append(out, domain.BlobInfo{Location: attrs.Name, Size: attrs.Size, ModTime: attrs.Updated})
	}
}
