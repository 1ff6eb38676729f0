package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"aida/internal/domain"
)

// DataEntryRepo implements domain.DataEntryRepository.
type DataEntryRepo struct {
	db *sql.DB
}

var _ domain.DataEntryRepository = (*DataEntryRepo)(nil)

// NewDataEntryRepo creates a DataEntryRepo.
func NewDataEntryRepo(db *sql.DB) *DataEntryRepo {
	return &DataEntryRepo{db: db}
}

// BulkInsert drains records into sourceID inside one transaction. Reader
// errors abort the transaction and are returned unchanged so callers keep
// the parser's error kind.
func (r *DataEntryRepo) BulkInsert(ctx context.Context, sourceID string, records domain.RecordReader) (int64, error) {
	var n int64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO data_entries (id, data_source_id, ordinal, payload, created_at) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare entry insert: %w", err)
		}
		defer stmt.Close() //nolint:errcheck

		createdAt := formatTime(time.Now())
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			payload, err := records.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return &readerError{err: err}
			}
			raw, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("encode entry %d: %w", n, err)
			}
			if _, err := stmt.ExecContext(ctx, domain.NewID(), sourceID, n, string(raw), createdAt); err != nil {
				return mapDBError(fmt.Errorf("insert entry %d: %w", n, err), "data entry")
			}
			n++
		}
	})
	if err != nil {
		var re *readerError
		if errors.As(err, &re) {
			return 0, re.err
		}
		return 0, err
	}
	return n, nil
}

// ListBySource lists a source's entries in ingestion order.
func (r *DataEntryRepo) ListBySource(ctx context.Context, sourceID string, page domain.PageRequest) ([]domain.DataEntry, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM data_entries WHERE data_source_id = ?`, sourceID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, data_source_id, ordinal, payload, created_at FROM data_entries
		 WHERE data_source_id = ? ORDER BY ordinal LIMIT ? OFFSET ?`,
		sourceID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.DataEntry
	for rows.Next() {
		var (
			e         domain.DataEntry
			raw       string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.DataSourceID, &e.Ordinal, &raw, &createdAt); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal([]byte(raw), &e.Payload); err != nil {
			return nil, 0, fmt.Errorf("decode entry %s: %w", e.ID, err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// readerError marks failures that came from the record source rather than
// the database.
type readerError struct{ err error }

func (e *readerError) Error() string { return e.err.Error() }
func (e *readerError) Unwrap() error { return e.err }
