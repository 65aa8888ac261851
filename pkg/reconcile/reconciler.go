package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/quipper/poc/classroom/be/pkg/common/logger"
)

// Lookup is the directory's answer for one identifier. Found is false when no
// student matches; that is a normal answer, not an error.
type Lookup struct {
	Student StudentRef
	Found   bool
}

// StudentDirectory resolves identifiers to students.
type StudentDirectory interface {
	// ResolveMany returns one Lookup per requested identifier, keyed by the
	// identifier as passed in. Missing keys are treated as not found.
	ResolveMany(ctx context.Context, ids []Identifier) (map[Identifier]Lookup, error)
}

// MembershipChange reports what a store actually changed.
type MembershipChange struct {
	Added   int
	Removed int
}

// ClassStore persists class membership. Adding an existing member and
// removing a non-member are both no-ops.
type ClassStore interface {
	ApplyMembership(ctx context.Context, classID string, add, remove []StudentRef) (MembershipChange, error)
}

// Notifier renders an outcome for the teacher. Failures are reported but
// never change the outcome.
type Notifier interface {
	Notify(ctx context.Context, classID string, o Outcome, phaseErr error) error
}

// Request is one roster edit submission.
type Request struct {
	ClassID      string
	AddEmails    *IdentifierSet
	AddCodes     *IdentifierSet
	RemoveEmails *IdentifierSet
	RemoveCodes  *IdentifierSet
}

// Empty reports whether the request carries no identifiers at all.
func (r Request) Empty() bool {
	return r.AddEmails.Len()+r.AddCodes.Len()+r.RemoveEmails.Len()+r.RemoveCodes.Len() == 0
}

// Outcome describes the result of a reconciliation.
type Outcome struct {
	Added            []StudentRef `json:"added"`
	Removed          []StudentRef `json:"removed"`
	NotFoundOnAdd    []Identifier `json:"notFoundOnAdd"`
	NotFoundOnRemove []Identifier `json:"notFoundOnRemove"`
	RemovedCount     int          `json:"removedCount"`
}

// Phase names one of the two reconciliation stages.
type Phase string

const (
	PhaseAdd    Phase = "add"
	PhaseRemove Phase = "remove"
)

var (
	ErrAddPhaseFailed    = errors.New("add phase failed")
	ErrRemovePhaseFailed = errors.New("remove phase failed")
)

// PhaseError is returned when a directory or store call aborts a phase.
// It matches ErrAddPhaseFailed or ErrRemovePhaseFailed with errors.Is.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

func (e *PhaseError) Is(target error) bool {
	switch target {
	case ErrAddPhaseFailed:
		return e.Phase == PhaseAdd
	case ErrRemovePhaseFailed:
		return e.Phase == PhaseRemove
	}
	return false
}

// Reconciler applies roster edits. It holds no per-call state and may be
// shared between goroutines.
type Reconciler struct {
	directory StudentDirectory
	store     ClassStore
}

// NewReconciler returns a Reconciler backed by the given directory and store.
func NewReconciler(directory StudentDirectory, store ClassStore) *Reconciler {
	return &Reconciler{directory: directory, store: store}
}

// Reconcile runs the add phase and then the remove phase. On a phase failure
// the returned Outcome still carries the results of the add phase when it was
// the remove phase that failed.
//
// An identifier listed for both addition and removal is only removed.
func (rc *Reconciler) Reconcile(ctx context.Context, req Request) (Outcome, error) {
	var out Outcome
	adds := withoutRemoved(req.AddEmails, req.RemoveEmails)
	adds = append(adds, withoutRemoved(req.AddCodes, req.RemoveCodes)...)

	if len(adds) > 0 {
		added, notFound, err := rc.addPhase(ctx, req.ClassID, adds)
		if err != nil {
			logger.Warn("reconcile: class=%s add phase aborted: %v", req.ClassID, err)
			return out, &PhaseError{Phase: PhaseAdd, Err: err}
		}
		out.Added, out.NotFoundOnAdd = added, notFound
	}

	removes := append(req.RemoveEmails.Items(), req.RemoveCodes.Items()...)
	if len(removes) == 0 {
		return out, nil
	}
	removed, notFound, count, err := rc.removePhase(ctx, req.ClassID, removes)
	if err != nil {
		logger.Warn("reconcile: class=%s remove phase aborted: %v", req.ClassID, err)
		return out, &PhaseError{Phase: PhaseRemove, Err: err}
	}
	out.Removed, out.NotFoundOnRemove, out.RemovedCount = removed, notFound, count
	return out, nil
}

func (rc *Reconciler) addPhase(ctx context.Context, classID string, ids []Identifier) ([]StudentRef, []Identifier, error) {
	found, notFound, err := rc.resolve(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	if len(found) > 0 {
		if _, err := rc.store.ApplyMembership(ctx, classID, found, nil); err != nil {
			return nil, nil, fmt.Errorf("apply membership: %w", err)
		}
	}
	logger.Debug("reconcile: class=%s added=%d not_found=%d", classID, len(found), len(notFound))
	return found, notFound, nil
}

func (rc *Reconciler) removePhase(ctx context.Context, classID string, ids []Identifier) ([]StudentRef, []Identifier, int, error) {
	found, notFound, err := rc.resolve(ctx, ids)
	if err != nil {
		return nil, nil, 0, err
	}
	count := 0
	if len(found) > 0 {
		change, err := rc.store.ApplyMembership(ctx, classID, nil, found)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("apply membership: %w", err)
		}
		count = change.Removed
	}
	logger.Debug("reconcile: class=%s resolved_for_removal=%d removed=%d not_found=%d", classID, len(found), count, len(notFound))
	return found, notFound, count, nil
}

// resolve looks ids up in one directory call. Students reached through more
// than one identifier are returned once, in first-seen order.
func (rc *Reconciler) resolve(ctx context.Context, ids []Identifier) ([]StudentRef, []Identifier, error) {
	lookups, err := rc.directory.ResolveMany(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve students: %w", err)
	}
	var found []StudentRef
	var notFound []Identifier
	seen := map[string]struct{}{}
	for _, id := range ids {
		l, ok := lookups[id]
		if !ok || !l.Found {
			notFound = append(notFound, id)
			continue
		}
		if _, dup := seen[l.Student.ID]; dup {
			continue
		}
		seen[l.Student.ID] = struct{}{}
		found = append(found, l.Student)
	}
	return found, notFound, nil
}

func withoutRemoved(add, remove *IdentifierSet) []Identifier {
	var out []Identifier
	for _, id := range add.Items() {
		if remove.Contains(id.Value) {
			continue
		}
		out = append(out, id)
	}
	return out
}
