package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quipper/poc/classroom/be/pkg/reconcile"
	r "github.com/quipper/poc/classroom/be/pkg/repositories/roster"
)

type SQLiteRepo struct{ db *sql.DB }

// NewSQLiteRepo wraps an already migrated database.
func NewSQLiteRepo(db *sql.DB) *SQLiteRepo { return &SQLiteRepo{db: db} }

// Ensure interface compliance
var _ r.Repository = (*SQLiteRepo)(nil)

func (s *SQLiteRepo) Health(ctx context.Context) error { return s.db.PingContext(ctx) }

const classColumns = `c.id, c.teacher_id, c.name, c.teacher_name, c.description, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM members m WHERE m.class_id = c.id)`

func scanClass(row interface{ Scan(...any) error }) (*r.Class, error) {
	var c r.Class
	var teacherName, description sql.NullString
	if err := row.Scan(&c.ID, &c.TeacherID, &c.Name, &teacherName, &description, &c.CreatedAt, &c.UpdatedAt, &c.StudentCount); err != nil {
		return nil, err
	}
	c.TeacherName = teacherName.String
	c.Description = description.String
	return &c, nil
}

func (s *SQLiteRepo) CreateClass(ctx context.Context, c *r.Class) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO classes (id, teacher_id, name, teacher_name, description, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.TeacherID, c.Name, c.TeacherName, c.Description, now, now)
	if err != nil {
		return err
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

func (s *SQLiteRepo) GetClass(ctx context.Context, id string) (*r.Class, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+classColumns+` FROM classes c WHERE c.id = ?`, id)
	c, err := scanClass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *SQLiteRepo) ListClassesByTeacher(ctx context.Context, teacherID string) ([]*r.Class, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+classColumns+` FROM classes c WHERE c.teacher_id = ? ORDER BY c.created_at ASC, c.id ASC`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*r.Class
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteRepo) UpdateClass(ctx context.Context, c *r.Class) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
	UPDATE classes SET name = ?, teacher_name = ?, description = ?, updated_at = ? WHERE id = ?
	`, c.Name, c.TeacherName, c.Description, now, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("class %s not found", c.ID)
	}
	c.UpdatedAt = now
	return nil
}

func (s *SQLiteRepo) DeleteClass(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM classes WHERE id = ?`, id)
	return err
}

func (s *SQLiteRepo) ListMembersPage(ctx context.Context, classID string, offset, limit int) ([]*r.Member, int, error) {
	// total count
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members WHERE class_id = ?`, classID).Scan(&total); err != nil {
		return nil, 0, err
	}
	// page query
	rows, err := s.db.QueryContext(ctx, `
	SELECT st.id, st.email, st.code, st.name, m.added_at
	FROM members m JOIN students st ON st.id = m.student_id
	WHERE m.class_id = ?
	ORDER BY m.added_at ASC, st.id ASC LIMIT ? OFFSET ?`, classID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []*r.Member
	for rows.Next() {
		var m r.Member
		var email, code, name sql.NullString
		if err := rows.Scan(&m.StudentID, &email, &code, &name, &m.AddedAt); err != nil {
			return nil, 0, err
		}
		m.Email, m.Code, m.Name = email.String, code.String, name.String
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ApplyMembership writes additions and removals in one transaction. Existing
// members are left untouched on add; non-members are ignored on remove.
func (s *SQLiteRepo) ApplyMembership(ctx context.Context, classID string, add, remove []reconcile.StudentRef) (reconcile.MembershipChange, error) {
	var ch reconcile.MembershipChange
	if len(add) == 0 && len(remove) == 0 {
		return ch, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ch, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, st := range add {
		res, err := tx.ExecContext(ctx, `
		INSERT INTO members (class_id, student_id, added_at) VALUES (?, ?, ?)
		ON CONFLICT(class_id, student_id) DO NOTHING`, classID, st.ID, now)
		if err != nil {
			return reconcile.MembershipChange{}, fmt.Errorf("add member %s: %w", st.ID, err)
		}
		n, _ := res.RowsAffected()
		ch.Added += int(n)
	}
	for _, st := range remove {
		res, err := tx.ExecContext(ctx, `DELETE FROM members WHERE class_id = ? AND student_id = ?`, classID, st.ID)
		if err != nil {
			return reconcile.MembershipChange{}, fmt.Errorf("remove member %s: %w", st.ID, err)
		}
		n, _ := res.RowsAffected()
		ch.Removed += int(n)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE classes SET updated_at = ? WHERE id = ?`, now, classID); err != nil {
		return reconcile.MembershipChange{}, err
	}
	if err := tx.Commit(); err != nil {
		return reconcile.MembershipChange{}, err
	}
	return ch, nil
}
