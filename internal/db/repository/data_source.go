package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"aida/internal/domain"
)

// DataSourceRepo implements domain.DataSourceRepository.
type DataSourceRepo struct {
	db *sql.DB
}

var _ domain.DataSourceRepository = (*DataSourceRepo)(nil)

// NewDataSourceRepo creates a DataSourceRepo.
func NewDataSourceRepo(db *sql.DB) *DataSourceRepo {
	return &DataSourceRepo{db: db}
}

const dataSourceColumns = `id, name, origin, content_kind, storage_location, size_bytes, owner, project_id, created_at`

// Create inserts ds. The returned copy carries the generated ID.
func (r *DataSourceRepo) Create(ctx context.Context, ds *domain.DataSource) (*domain.DataSource, error) {
	out := *ds
	if out.ID == "" {
		out.ID = domain.NewID()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now()
	}
	out.CreatedAt = out.CreatedAt.UTC()

	var kind sql.NullString
	if out.ContentKind != nil {
		kind = sql.NullString{String: string(*out.ContentKind), Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO data_sources (`+dataSourceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.Name, string(out.Origin), kind, nullString(out.StorageLocation),
		nullInt64(out.SizeBytes), out.Owner, out.ProjectID, formatTime(out.CreatedAt))
	if err != nil {
		return nil, mapDBError(err, "data source")
	}
	return &out, nil
}

// GetByID returns the data source with id.
func (r *DataSourceRepo) GetByID(ctx context.Context, id string) (*domain.DataSource, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+dataSourceColumns+` FROM data_sources WHERE id = ?`, id)
	ds, err := scanDataSource(row)
	if err != nil {
		return nil, mapDBError(err, "data source")
	}
	return ds, nil
}

// ListByProject lists the sources owner created in projectID, newest first.
func (r *DataSourceRepo) ListByProject(ctx context.Context, owner, projectID string, page domain.PageRequest) ([]domain.DataSource, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM data_sources WHERE owner = ? AND project_id = ?`,
		owner, projectID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+dataSourceColumns+` FROM data_sources WHERE owner = ? AND project_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		owner, projectID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.DataSource
	for rows.Next() {
		ds, err := scanDataSource(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *ds)
	}
	return out, total, rows.Err()
}

// Delete removes the source and its entries.
func (r *DataSourceRepo) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM data_entries WHERE data_source_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM data_sources WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrNotFound("data source %q not found", id)
		}
		return nil
	})
}

// ReferencedLocations reports which locations a data source points at.
func (r *DataSourceRepo) ReferencedLocations(ctx context.Context, locations []string) (map[string]bool, error) {
	found := make(map[string]bool, len(locations))
	// stay well under SQLITE_MAX_VARIABLE_NUMBER
	const chunk = 500
	for start := 0; start < len(locations); start += chunk {
		end := min(start+chunk, len(locations))
		batch := locations[start:end]

		args := make([]any, len(batch))
		for i, loc := range batch {
			args[i] = loc
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		rows, err := r.db.QueryContext(ctx,
			`SELECT DISTINCT storage_location FROM data_sources WHERE storage_location IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var loc string
			if err := rows.Scan(&loc); err != nil {
				rows.Close() //nolint:errcheck
				return nil, err
			}
			found[loc] = true
		}
		err = rows.Err()
		rows.Close() //nolint:errcheck
		if err != nil {
			return nil, err
		}
	}
	return found, nil
}

func scanDataSource(s rowScanner) (*domain.DataSource, error) {
	var (
		ds        domain.DataSource
		origin    string
		kind      sql.NullString
		location  sql.NullString
		size      sql.NullInt64
		createdAt string
	)
	if err := s.Scan(&ds.ID, &ds.Name, &origin, &kind, &location, &size, &ds.Owner, &ds.ProjectID, &createdAt); err != nil {
		return nil, err
	}
	ds.Origin = domain.OriginKind(origin)
	if kind.Valid {
		k := domain.ContentKind(kind.String)
		ds.ContentKind = &k
	}
	ds.StorageLocation = stringPtr(location)
	ds.SizeBytes = int64Ptr(size)
	var err error
	if ds.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &ds, nil
}
