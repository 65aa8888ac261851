package notifications

import (
	"context"
	"time"

	"github.com/quipper/poc/classroom/be/pkg/reconcile"
)

// Notification is a rendered reconciliation outcome kept for the teacher.
type Notification struct {
	ID        int64            `json:"id"`
	ClassID   string           `json:"classId"`
	Level     reconcile.Level  `json:"level"`
	Title     string           `json:"title"`
	Text      string           `json:"text"`
	Report    reconcile.Report `json:"report"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Repository stores notifications and is the reconciler's Notifier.
type Repository interface {
	reconcile.Notifier

	ListByClass(ctx context.Context, classID string, limit int) ([]*Notification, error)
	// DeleteOlderThan prunes notifications created before cutoff and returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
