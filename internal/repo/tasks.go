package repo

import (
	"context"
	"database/sql"
	"strings"

	"novadream/internal/domain"
)

const taskColumns = `id,owner_id,project_id,mission_id,title,description,status,priority,estimated_time,time_spent,due_date,created_at,updated_at,completed_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var projectID, missionID, description, dueDate, completedAt sql.NullString
	err := scan(&t.ID, &t.OwnerID, &projectID, &missionID, &t.Title, &description, &t.Status, &t.Priority,
		&t.EstimatedTime, &t.TimeSpent, &dueDate, &t.CreatedAt, &t.UpdatedAt, &completedAt)
	if err != nil {
		return t, err
	}
	if projectID.Valid {
		t.ProjectID = &projectID.String
	}
	if missionID.Valid {
		t.MissionID = &missionID.String
	}
	if description.Valid {
		t.Description = &description.String
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.String
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.String
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.OwnerID, nullableStringPtr(t.ProjectID), nullableStringPtr(t.MissionID), t.Title, nullableStringPtr(t.Description),
		t.Status, t.Priority, t.EstimatedTime, t.TimeSpent, nullableStringPtr(t.DueDate), t.CreatedAt, t.UpdatedAt, nullableStringPtr(t.CompletedAt))
	return err
}

func (r Repo) GetTask(ctx context.Context, ownerID, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=? AND owner_id=?`, id, ownerID)
	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

type TaskFilters struct {
	OwnerID   string
	ProjectID string
	MissionID string
	Status    string
	Priority  string
	Limit     int
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	clauses := []string{"owner_id=?"}
	args := []any{f.OwnerID}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.MissionID != "" {
		clauses = append(clauses, "mission_id=?")
		args = append(args, f.MissionID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, f.Priority)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `UPDATE tasks SET project_id=?, mission_id=?, title=?, description=?, status=?, priority=?, estimated_time=?, time_spent=?, due_date=?, updated_at=?, completed_at=? WHERE id=? AND owner_id=?`,
		nullableStringPtr(t.ProjectID), nullableStringPtr(t.MissionID), t.Title, nullableStringPtr(t.Description), t.Status, t.Priority,
		t.EstimatedTime, t.TimeSpent, nullableStringPtr(t.DueDate), t.UpdatedAt, nullableStringPtr(t.CompletedAt), t.ID, t.OwnerID)
	return err
}

func (r Repo) DeleteTask(ctx context.Context, ownerID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=? AND owner_id=?`, id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountTasksByStatus(ctx context.Context, ownerID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM tasks WHERE owner_id=? GROUP BY status`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}
