package roster

import (
	"context"
	"time"

	"github.com/quipper/poc/classroom/be/pkg/reconcile"
)

// Class is a teacher-owned class. TeacherID is the subject of the owner's
// access token; TeacherName is free display text.
type Class struct {
	ID           string    `json:"id"`
	TeacherID    string    `json:"-"`
	Name         string    `json:"name"`
	TeacherName  string    `json:"teacherName,omitempty"`
	Description  string    `json:"description,omitempty"`
	StudentCount int       `json:"studentCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Member is a student enrolled in a class.
type Member struct {
	StudentID string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Code      string    `json:"studentId,omitempty"`
	Name      string    `json:"name,omitempty"`
	AddedAt   time.Time `json:"addedAt"`
}

// Repository persists classes and their membership. It is the ClassStore
// used by the reconciler.
type Repository interface {
	reconcile.ClassStore

	// Health is a simple check to verify repository works.
	Health(ctx context.Context) error
	// CreateClass assigns an ID when empty and inserts the class.
	CreateClass(ctx context.Context, c *Class) error
	// GetClass returns nil and a nil error when the class does not exist.
	GetClass(ctx context.Context, id string) (*Class, error)
	ListClassesByTeacher(ctx context.Context, teacherID string) ([]*Class, error)
	// UpdateClass overwrites name, teacher name and description.
	UpdateClass(ctx context.Context, c *Class) error
	DeleteClass(ctx context.Context, id string) error
	// ListMembersPage returns members for a class with pagination,
	// along with the total count for the class.
	ListMembersPage(ctx context.Context, classID string, offset, limit int) ([]*Member, int, error)
}
