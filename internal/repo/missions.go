package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"novadream/internal/domain"
)

const missionColumns = `id,owner_id,project_id,title,description,status,order_index,deadline,estimated_duration,created_at,updated_at`

func scanMission(scan func(dest ...any) error) (domain.Mission, error) {
	var m domain.Mission
	var desc, deadline, duration sql.NullString
	err := scan(&m.ID, &m.OwnerID, &m.ProjectID, &m.Title, &desc, &m.Status, &m.OrderIndex, &deadline, &duration, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return m, err
	}
	if desc.Valid {
		m.Description = desc.String
	}
	if deadline.Valid {
		m.Deadline = &deadline.String
	}
	if duration.Valid {
		m.EstimatedDuration = &duration.String
	}
	return m, nil
}

func (r Repo) InsertMission(ctx context.Context, tx *sql.Tx, m domain.Mission) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO missions(`+missionColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.OwnerID, m.ProjectID, m.Title, nullable(m.Description), m.Status, m.OrderIndex,
		nullableStringPtr(m.Deadline), nullableStringPtr(m.EstimatedDuration), m.CreatedAt, m.UpdatedAt)
	return err
}

func (r Repo) GetMission(ctx context.Context, ownerID, id string) (domain.Mission, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+missionColumns+` FROM missions WHERE id=? AND owner_id=?`, id, ownerID)
	m, err := scanMission(row.Scan)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

// ListMissions returns a project's missions in display order.
func (r Repo) ListMissions(ctx context.Context, ownerID, projectID string) ([]domain.Mission, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+missionColumns+` FROM missions WHERE owner_id=? AND project_id=? ORDER BY order_index ASC, id ASC`, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Mission
	for rows.Next() {
		m, err := scanMission(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// MaxOrderIndex returns the highest order_index in a project, -1 when the
// project has no missions yet.
func (r Repo) MaxOrderIndex(ctx context.Context, ownerID, projectID string) (int, error) {
	var max sql.NullInt64
	err := r.DB.QueryRowContext(ctx, `SELECT MAX(order_index) FROM missions WHERE owner_id=? AND project_id=?`, ownerID, projectID).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return -1, nil
	}
	return int(max.Int64), nil
}

// MissionFieldUpdate carries the field-level changes written by an update.
// Nil pointers leave the column untouched; DurationSet writes EstimatedDuration
// even when the new value is null.
type MissionFieldUpdate struct {
	Title             *string
	Description       *string
	Status            *string
	EstimatedDuration *string
	DurationSet       bool
	Deadline          *string
	UpdatedAt         string
}

func (r Repo) UpdateMissionFields(ctx context.Context, ownerID, id string, u MissionFieldUpdate) error {
	fields := []string{"updated_at=?"}
	args := []any{u.UpdatedAt}
	if u.Title != nil {
		fields = append(fields, "title=?")
		args = append(args, *u.Title)
	}
	if u.Description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*u.Description))
	}
	if u.Status != nil {
		fields = append(fields, "status=?")
		args = append(args, *u.Status)
	}
	if u.DurationSet {
		fields = append(fields, "estimated_duration=?")
		args = append(args, nullableStringPtr(u.EstimatedDuration))
	}
	if u.Deadline != nil {
		fields = append(fields, "deadline=?")
		args = append(args, nullable(*u.Deadline))
	}
	args = append(args, id, ownerID)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE missions SET %s WHERE id=? AND owner_id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteMission(ctx context.Context, ownerID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM missions WHERE id=? AND owner_id=?`, id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SwapMissionOrder exchanges the order_index of two missions in one project.
func (r Repo) SwapMissionOrder(ctx context.Context, ownerID, aID, bID string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	var aIdx, bIdx int
	if err := tx.QueryRowContext(ctx, `SELECT order_index FROM missions WHERE id=? AND owner_id=?`, aID, ownerID).Scan(&aIdx); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	if err := tx.QueryRowContext(ctx, `SELECT order_index FROM missions WHERE id=? AND owner_id=?`, bID, ownerID).Scan(&bIdx); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	// Park one row on a free index to respect the unique constraint.
	if _, err := tx.ExecContext(ctx, `UPDATE missions SET order_index=-1 WHERE id=?`, aID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE missions SET order_index=? WHERE id=?`, aIdx, bID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE missions SET order_index=? WHERE id=?`, bIdx, aID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r Repo) CountMissionsByStatus(ctx context.Context, ownerID, projectID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM missions WHERE owner_id=? AND project_id=? GROUP BY status`, ownerID, projectID)
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
