package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"aida/internal/domain"
)

const partialPattern = ".upload-*.partial"

// LocalStore keeps uploads as files in one flat directory. Locations are
// the bare file names.
type LocalStore struct {
	dir string
}

var _ domain.BlobStore = (*LocalStore)(nil)

// NewLocalStore creates dir if needed and returns a store rooted there.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the root directory.
func (s *LocalStore) Dir() string { return s.dir }

// Put streams r into a hidden partial file and links it into place. A link
// fails if the name already exists, so concurrent writers never clobber
// each other; the loser links the same partial file under its next name.
func (s *LocalStore) Put(ctx context.Context, names domain.NameFunc, r io.Reader) (string, int64, error) {
	tmp, err := os.CreateTemp(s.dir, partialPattern)
	if err != nil {
		return "", 0, fmt.Errorf("create partial file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	n, err := io.Copy(tmp, ctxReader{ctx: ctx, r: r})
	if err != nil {
		_ = tmp.Close()
		return "", 0, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", 0, fmt.Errorf("sync partial file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("close partial file: %w", err)
	}
	name, err := publish(names, func(name string) error {
		if err := os.Link(tmpName, filepath.Join(s.dir, name)); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return domain.ErrBlobExists
			}
			return fmt.Errorf("publish %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return "", 0, err
	}
	return name, n, nil
}

// Open returns the stored file.
func (s *LocalStore) Open(_ context.Context, location string) (io.ReadCloser, error) {
	if err := checkName(location); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, location))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(location)
		}
		return nil, err
	}
	return f, nil
}

// Delete removes the file. Removing a missing file is not an error.
func (s *LocalStore) Delete(_ context.Context, location string) error {
	if err := checkName(location); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, location))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List returns every published file. Partial files are skipped.
func (s *LocalStore) List(_ context.Context) ([]domain.BlobInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	out := make([]domain.BlobInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		out = append(out, domain.BlobInfo{Location: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return out, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
