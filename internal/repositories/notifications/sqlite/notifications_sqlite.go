package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quipper/poc/classroom/be/pkg/reconcile"
	nrepo "github.com/quipper/poc/classroom/be/pkg/repositories/notifications"
)

// SQLiteRepo keeps rendered reconciliation outcomes per class.
type SQLiteRepo struct {
	db *sql.DB
}

func NewSQLiteRepo(db *sql.DB) *SQLiteRepo { return &SQLiteRepo{db: db} }

// Ensure interface compliance
var _ nrepo.Repository = (*SQLiteRepo)(nil)

// Notify renders the outcome and stores it together with its report.
func (r *SQLiteRepo) Notify(ctx context.Context, classID string, o reconcile.Outcome, phaseErr error) error {
	summary := reconcile.Summarize(o, phaseErr)
	report, err := json.Marshal(reconcile.NewReport(o, phaseErr))
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO notifications (class_id, level, title, text, outcome_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`, classID, string(summary.Level), summary.Title, summary.Text, string(report), time.Now().UTC())
	return err
}

// ListByClass returns the newest notifications first.
func (r *SQLiteRepo) ListByClass(ctx context.Context, classID string, limit int) ([]*nrepo.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, class_id, level, title, text, outcome_json, created_at
	FROM notifications WHERE class_id = ? ORDER BY id DESC LIMIT ?`, classID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*nrepo.Notification
	for rows.Next() {
		var n nrepo.Notification
		var level, report string
		if err := rows.Scan(&n.ID, &n.ClassID, &level, &n.Title, &n.Text, &report, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Level = reconcile.Level(level)
		if err := json.Unmarshal([]byte(report), &n.Report); err != nil {
			return nil, fmt.Errorf("decode report %d: %w", n.ID, err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes notifications created before cutoff.
func (r *SQLiteRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
