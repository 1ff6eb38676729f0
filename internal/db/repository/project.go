package repository

import (
	"context"
	"database/sql"
	"time"

	"aida/internal/domain"
)

// ProjectRepo implements domain.ProjectRepository.
type ProjectRepo struct {
	db *sql.DB
}

var _ domain.ProjectRepository = (*ProjectRepo)(nil)

// NewProjectRepo creates a ProjectRepo.
func NewProjectRepo(db *sql.DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

const projectColumns = `id, name, description, owner, created_at, last_opened`

// Create inserts p, assigning ID and CreatedAt when unset.
func (r *ProjectRepo) Create(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	out := *p
	if out.ID == "" {
		out.ID = domain.NewID()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, owner, created_at) VALUES (?, ?, ?, ?, ?)`,
		out.ID, out.Name, out.Description, out.Owner, formatTime(out.CreatedAt))
	if err != nil {
		return nil, mapDBError(err, "project")
	}
	out.CreatedAt = out.CreatedAt.UTC()
	return &out, nil
}

// GetByID returns the project with id.
func (r *ProjectRepo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err != nil {
		return nil, mapDBError(err, "project")
	}
	return p, nil
}

// ListByOwner lists owner's projects, most recently opened first.
func (r *ProjectRepo) ListByOwner(ctx context.Context, owner string, page domain.PageRequest) ([]domain.Project, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE owner = ?`, owner).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE owner = ?
		 ORDER BY COALESCE(last_opened, created_at) DESC, id DESC LIMIT ? OFFSET ?`,
		owner, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

// TouchLastOpened records that the project was opened at at.
func (r *ProjectRepo) TouchLastOpened(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE projects SET last_opened = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("project %q not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(s rowScanner) (*domain.Project, error) {
	var (
		p          domain.Project
		createdAt  string
		lastOpened sql.NullString
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &p.Owner, &createdAt, &lastOpened); err != nil {
		return nil, err
	}
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.LastOpened, err = parseNullTime(lastOpened); err != nil {
		return nil, err
	}
	return &p, nil
}
