package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"novadream/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id,owner_id,title,segment,status,progress,description,deadline,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.OwnerID, p.Title, p.Segment, p.Status, p.Progress, nullable(p.Description), nullableStringPtr(p.Deadline), p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, ownerID, id string) (domain.Project, error) {
	var p domain.Project
	var desc, deadline sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,owner_id,title,segment,status,progress,description,deadline,created_at,updated_at FROM projects WHERE id=? AND owner_id=?`, id, ownerID).
		Scan(&p.ID, &p.OwnerID, &p.Title, &p.Segment, &p.Status, &p.Progress, &desc, &deadline, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if desc.Valid {
		p.Description = desc.String
	}
	if deadline.Valid {
		p.Deadline = &deadline.String
	}
	return p, nil
}

func (r Repo) ListProjects(ctx context.Context, ownerID string) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,owner_id,title,segment,status,progress,description,deadline,created_at,updated_at FROM projects WHERE owner_id=? ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		var desc, deadline sql.NullString
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Segment, &p.Status, &p.Progress, &desc, &deadline, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			p.Description = desc.String
		}
		if deadline.Valid {
			p.Deadline = &deadline.String
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProject(ctx context.Context, ownerID, id string, status string, progress *int, description *string) error {
	var (
		fields []string
		args   []any
	)
	if status != "" {
		fields = append(fields, "status=?")
		args = append(args, status)
	}
	if progress != nil {
		fields = append(fields, "progress=?")
		args = append(args, *progress)
	}
	if description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*description))
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id, ownerID)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE projects SET %s WHERE id=? AND owner_id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProject(ctx context.Context, ownerID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM projects WHERE id=? AND owner_id=?`, id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
