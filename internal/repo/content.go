package repo

import (
	"context"
	"database/sql"

	"novadream/internal/domain"
)

func (r Repo) InsertNote(ctx context.Context, tx *sql.Tx, n domain.Note) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO notes(id,owner_id,title,content,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		n.ID, n.OwnerID, n.Title, nullable(n.Content), n.CreatedAt, n.UpdatedAt)
	return err
}

func (r Repo) GetNote(ctx context.Context, ownerID, id string) (domain.Note, error) {
	var n domain.Note
	var content sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,owner_id,title,content,created_at,updated_at FROM notes WHERE id=? AND owner_id=?`, id, ownerID).
		Scan(&n.ID, &n.OwnerID, &n.Title, &content, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return n, ErrNotFound
	}
	if err != nil {
		return n, err
	}
	if content.Valid {
		n.Content = content.String
	}
	return n, nil
}

func (r Repo) ListNotes(ctx context.Context, ownerID string) ([]domain.Note, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,owner_id,title,content,created_at,updated_at FROM notes WHERE owner_id=? ORDER BY updated_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Note
	for rows.Next() {
		var n domain.Note
		var content sql.NullString
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Title, &content, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		if content.Valid {
			n.Content = content.String
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) DeleteNote(ctx context.Context, ownerID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM notes WHERE id=? AND owner_id=?`, id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertDocument(ctx context.Context, tx *sql.Tx, d domain.Document) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO documents(id,owner_id,name,path,mime_type,size_bytes,created_at) VALUES (?,?,?,?,?,?,?)`,
		d.ID, d.OwnerID, d.Name, d.Path, nullable(d.MimeType), d.SizeBytes, d.CreatedAt)
	return err
}

func (r Repo) GetDocument(ctx context.Context, ownerID, id string) (domain.Document, error) {
	var d domain.Document
	var mime sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,owner_id,name,path,mime_type,size_bytes,created_at FROM documents WHERE id=? AND owner_id=?`, id, ownerID).
		Scan(&d.ID, &d.OwnerID, &d.Name, &d.Path, &mime, &d.SizeBytes, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if mime.Valid {
		d.MimeType = mime.String
	}
	return d, nil
}

func (r Repo) ListDocuments(ctx context.Context, ownerID string) ([]domain.Document, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,owner_id,name,path,mime_type,size_bytes,created_at FROM documents WHERE owner_id=? ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Document
	for rows.Next() {
		var d domain.Document
		var mime sql.NullString
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Name, &d.Path, &mime, &d.SizeBytes, &d.CreatedAt); err != nil {
			return nil, err
		}
		if mime.Valid {
			d.MimeType = mime.String
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) DeleteDocument(ctx context.Context, ownerID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM documents WHERE id=? AND owner_id=?`, id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertChatMessage(ctx context.Context, tx *sql.Tx, m domain.ChatMessage) error {
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return r.DB.ExecContext(ctx, query, args...)
	}
	_, err := exec(`INSERT INTO chat_messages(id,owner_id,role,content,created_at) VALUES (?,?,?,?,?)`,
		m.ID, m.OwnerID, m.Role, m.Content, m.CreatedAt)
	return err
}

func (r Repo) GetChatMessage(ctx context.Context, ownerID, id string) (domain.ChatMessage, error) {
	var m domain.ChatMessage
	err := r.DB.QueryRowContext(ctx, `SELECT id,owner_id,role,content,created_at FROM chat_messages WHERE id=? AND owner_id=?`, id, ownerID).
		Scan(&m.ID, &m.OwnerID, &m.Role, &m.Content, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

// ListChatMessages returns the most recent messages in chronological order.
func (r Repo) ListChatMessages(ctx context.Context, ownerID string, limit int) ([]domain.ChatMessage, error) {
	query := `SELECT id,owner_id,role,content,created_at FROM chat_messages WHERE owner_id=? ORDER BY created_at DESC, id DESC`
	args := []any{ownerID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// reverse into chronological order
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, nil
}
