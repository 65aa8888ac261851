package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quipper/poc/classroom/be/pkg/reconcile"
	st "github.com/quipper/poc/classroom/be/pkg/repositories/students"
)

// SQLiteRepo is the sqlite-backed student directory.
type SQLiteRepo struct{ db *sql.DB }

func NewSQLiteRepo(db *sql.DB) *SQLiteRepo { return &SQLiteRepo{db: db} }

// Ensure interface compliance
var _ st.Repository = (*SQLiteRepo)(nil)

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *SQLiteRepo) UpsertStudent(ctx context.Context, in *st.Student) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if in.ID == "" {
		err := tx.QueryRowContext(ctx, `
		SELECT id FROM students WHERE (email IS NOT NULL AND email = ?) OR (code IS NOT NULL AND code = ?)
		ORDER BY created_at ASC LIMIT 1`, in.Email, in.Code).Scan(&in.ID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			in.ID = uuid.NewString()
		case err != nil:
			return err
		}
	}
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
	INSERT INTO students (id, email, code, name, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id)
	DO UPDATE SET
		email = COALESCE(excluded.email, students.email),
		code = COALESCE(excluded.code, students.code),
		name = COALESCE(excluded.name, students.name),
		updated_at = excluded.updated_at
	`, in.ID, nullable(in.Email), nullable(in.Code), nullable(in.Name), now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return st.ErrConflict
		}
		return err
	}
	// Blank fields keep their stored value; report the merged row.
	var email, code, name sql.NullString
	if err := tx.QueryRowContext(ctx, `SELECT email, code, name, created_at FROM students WHERE id = ?`, in.ID).
		Scan(&email, &code, &name, &in.CreatedAt); err != nil {
		return err
	}
	in.Email, in.Code, in.Name = email.String, code.String, name.String
	in.UpdatedAt = now
	return tx.Commit()
}

func (s *SQLiteRepo) ListStudentsPage(ctx context.Context, offset, limit int) ([]*st.Student, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, email, code, name, created_at, updated_at FROM students ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*st.Student
	for rows.Next() {
		var x st.Student
		var email, code, name sql.NullString
		if err := rows.Scan(&x.ID, &email, &code, &name, &x.CreatedAt, &x.UpdatedAt); err != nil {
			return nil, 0, err
		}
		x.Email, x.Code, x.Name = email.String, code.String, name.String
		out = append(out, &x)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ResolveMany looks up emails and codes with one query per kind. Matching is
// exact on the trimmed value.
func (s *SQLiteRepo) ResolveMany(ctx context.Context, ids []reconcile.Identifier) (map[reconcile.Identifier]reconcile.Lookup, error) {
	var emails, codes []string
	for _, id := range ids {
		if id.Kind == reconcile.KindEmail {
			emails = append(emails, id.Value)
		} else {
			codes = append(codes, id.Value)
		}
	}
	byEmail, err := s.lookup(ctx, "email", emails)
	if err != nil {
		return nil, err
	}
	byCode, err := s.lookup(ctx, "code", codes)
	if err != nil {
		return nil, err
	}

	out := make(map[reconcile.Identifier]reconcile.Lookup, len(ids))
	for _, id := range ids {
		src := byCode
		if id.Kind == reconcile.KindEmail {
			src = byEmail
		}
		if ref, ok := src[id.Value]; ok {
			out[id] = reconcile.Lookup{Student: ref, Found: true}
		} else {
			out[id] = reconcile.Lookup{}
		}
	}
	return out, nil
}

// lookupBatchSize bounds the IN list of one query, well under SQLite's
// host parameter limit.
var lookupBatchSize = 500

// lookup is only called with column set to "email" or "code".
func (s *SQLiteRepo) lookup(ctx context.Context, column string, values []string) (map[string]reconcile.StudentRef, error) {
	found := map[string]reconcile.StudentRef{}
	for start := 0; start < len(values); start += lookupBatchSize {
		batch := values[start:min(start+lookupBatchSize, len(values))]
		if err := s.lookupBatch(ctx, column, batch, found); err != nil {
			return nil, err
		}
	}
	return found, nil
}

func (s *SQLiteRepo) lookupBatch(ctx context.Context, column string, values []string, found map[string]reconcile.StudentRef) error {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
	rows, err := s.db.QueryContext(ctx, `SELECT id, email, code, name FROM students WHERE `+column+` IN (`+placeholders+`)`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var ref reconcile.StudentRef
		var email, code, name sql.NullString
		if err := rows.Scan(&ref.ID, &email, &code, &name); err != nil {
			return err
		}
		ref.Email, ref.Code, ref.Name = email.String, code.String, name.String
		if column == "email" {
			found[ref.Email] = ref
		} else {
			found[ref.Code] = ref
		}
	}
	return rows.Err()
}
