package students

import (
	"context"
	"errors"
	"time"

	"github.com/quipper/poc/classroom/be/pkg/reconcile"
)

// ErrConflict is returned when an email or code already belongs to another student.
var ErrConflict = errors.New("email or student code already used by another student")

// Student is a directory entry. Email and Code are each unique when set.
type Student struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Code      string    `json:"studentId,omitempty"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Ref converts the entry to the reference handed to the reconciler.
func (s *Student) Ref() reconcile.StudentRef {
	return reconcile.StudentRef{ID: s.ID, Email: s.Email, Code: s.Code, Name: s.Name}
}

// Repository is the student directory.
type Repository interface {
	reconcile.StudentDirectory

	// UpsertStudent inserts a student or updates the one matching ID, email or code.
	UpsertStudent(ctx context.Context, s *Student) error
	ListStudentsPage(ctx context.Context, offset, limit int) ([]*Student, int, error)
}
