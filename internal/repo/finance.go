package repo

import (
	"context"
	"database/sql"
	"strings"

	"novadream/internal/domain"
)

func (r Repo) InsertTransaction(ctx context.Context, tx *sql.Tx, t domain.Transaction) error {
	counts := 0
	if t.CountsTowardGoal {
		counts = 1
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO transactions(id,owner_id,type,amount,segment,description,date,counts_toward_goal,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		t.ID, t.OwnerID, t.Type, t.Amount, t.Segment, nullable(t.Description), t.Date, counts, t.CreatedAt)
	return err
}

func (r Repo) GetTransaction(ctx context.Context, ownerID, id string) (domain.Transaction, error) {
	var t domain.Transaction
	var desc sql.NullString
	var counts int
	err := r.DB.QueryRowContext(ctx, `SELECT id,owner_id,type,amount,segment,description,date,counts_toward_goal,created_at FROM transactions WHERE id=? AND owner_id=?`, id, ownerID).
		Scan(&t.ID, &t.OwnerID, &t.Type, &t.Amount, &t.Segment, &desc, &t.Date, &counts, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if desc.Valid {
		t.Description = desc.String
	}
	t.CountsTowardGoal = counts != 0
	return t, nil
}

type TransactionFilters struct {
	OwnerID string
	Type    string
	Segment string
	Limit   int
}

func (r Repo) ListTransactions(ctx context.Context, f TransactionFilters) ([]domain.Transaction, error) {
	clauses := []string{"owner_id=?"}
	args := []any{f.OwnerID}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.Segment != "" {
		clauses = append(clauses, "segment=?")
		args = append(args, f.Segment)
	}
	query := `SELECT id,owner_id,type,amount,segment,description,date,counts_toward_goal,created_at FROM transactions WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY date DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var desc sql.NullString
		var counts int
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Type, &t.Amount, &t.Segment, &desc, &t.Date, &counts, &t.CreatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			t.Description = desc.String
		}
		t.CountsTowardGoal = counts != 0
		res = append(res, t)
	}
	return res, rows.Err()
}

// SumTransactions totals amounts by type for an owner, optionally per segment.
func (r Repo) SumTransactions(ctx context.Context, ownerID, txType, segment string) (float64, error) {
	clauses := []string{"owner_id=?"}
	args := []any{ownerID}
	if txType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, txType)
	}
	if segment != "" {
		clauses = append(clauses, "segment=?")
		args = append(args, segment)
	}
	var total sql.NullFloat64
	err := r.DB.QueryRowContext(ctx, `SELECT SUM(amount) FROM transactions WHERE `+strings.Join(clauses, " AND "), args...).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Float64, nil
}
