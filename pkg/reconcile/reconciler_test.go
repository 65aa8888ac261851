package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	students map[string]StudentRef // keyed by trimmed email or code
	err      error
	calls    [][]Identifier
}

func (d *fakeDirectory) ResolveMany(_ context.Context, ids []Identifier) (map[Identifier]Lookup, error) {
	d.calls = append(d.calls, ids)
	if d.err != nil {
		return nil, d.err
	}
	out := make(map[Identifier]Lookup, len(ids))
	for _, id := range ids {
		if s, ok := d.students[id.Value]; ok {
			out[id] = Lookup{Student: s, Found: true}
		} else {
			out[id] = Lookup{}
		}
	}
	return out, nil
}

type storeCall struct {
	classID     string
	add, remove []StudentRef
}

type fakeStore struct {
	members   map[string]bool
	addErr    error
	removeErr error
	calls     []storeCall
}

func newFakeStore(members ...string) *fakeStore {
	s := &fakeStore{members: map[string]bool{}}
	for _, m := range members {
		s.members[m] = true
	}
	return s
}

func (s *fakeStore) ApplyMembership(_ context.Context, classID string, add, remove []StudentRef) (MembershipChange, error) {
	s.calls = append(s.calls, storeCall{classID: classID, add: add, remove: remove})
	if len(add) > 0 && s.addErr != nil {
		return MembershipChange{}, s.addErr
	}
	if len(remove) > 0 && s.removeErr != nil {
		return MembershipChange{}, s.removeErr
	}
	var ch MembershipChange
	for _, st := range add {
		if !s.members[st.ID] {
			s.members[st.ID] = true
			ch.Added++
		}
	}
	for _, st := range remove {
		if s.members[st.ID] {
			delete(s.members, st.ID)
			ch.Removed++
		}
	}
	return ch, nil
}

func emails(t *testing.T, raws ...string) *IdentifierSet {
	t.Helper()
	set := NewEmailSet()
	for _, r := range raws {
		require.NoError(t, set.Add(r))
	}
	return set
}

func codes(t *testing.T, raws ...string) *IdentifierSet {
	t.Helper()
	set := NewCodeSet()
	for _, r := range raws {
		require.NoError(t, set.Add(r))
	}
	return set
}

var (
	alice = StudentRef{ID: "1", Email: "a@x.com", Code: "S001"}
	bob   = StudentRef{ID: "2", Email: "b@x.com", Code: "S002"}
	carol = StudentRef{ID: "3", Email: "c@x.com", Code: "S003"}
)

func directoryOf(students ...StudentRef) *fakeDirectory {
	d := &fakeDirectory{students: map[string]StudentRef{}}
	for _, s := range students {
		d.students[s.Email] = s
		d.students[s.Code] = s
	}
	return d
}

func TestReconcile_EmptyRequestTouchesNothing(t *testing.T) {
	dir := directoryOf(alice)
	store := newFakeStore()

	out, err := NewReconciler(dir, store).Reconcile(context.Background(), Request{
		ClassID:      "c1",
		AddEmails:    NewEmailSet(),
		AddCodes:     NewCodeSet(),
		RemoveEmails: NewEmailSet(),
		RemoveCodes:  NewCodeSet(),
	})

	require.NoError(t, err)
	assert.Empty(t, out.Added)
	assert.Empty(t, out.Removed)
	assert.Empty(t, out.NotFoundOnAdd)
	assert.Empty(t, out.NotFoundOnRemove)
	assert.Zero(t, out.RemovedCount)
	assert.Empty(t, store.calls)
	assert.Empty(t, dir.calls)
}

func TestReconcile_AddReportsUnresolved(t *testing.T) {
	dir := &fakeDirectory{students: map[string]StudentRef{"a@x.com": alice}}
	store := newFakeStore()

	out, err := NewReconciler(dir, store).Reconcile(context.Background(), Request{
		ClassID:   "c1",
		AddEmails: emails(t, "a@x.com", "b@x.com"),
	})

	require.NoError(t, err)
	assert.Equal(t, []StudentRef{alice}, out.Added)
	require.Len(t, out.NotFoundOnAdd, 1)
	assert.Equal(t, "b@x.com", out.NotFoundOnAdd[0].Raw)
	require.Len(t, store.calls, 1, "additions are written in one batch")
	assert.Equal(t, []StudentRef{alice}, store.calls[0].add)
	assert.Nil(t, store.calls[0].remove)
}

func TestReconcile_AddBatchesEmailsBeforeCodes(t *testing.T) {
	dir := directoryOf(alice, bob, carol)
	store := newFakeStore()

	out, err := NewReconciler(dir, store).Reconcile(context.Background(), Request{
		ClassID:   "c1",
		AddEmails: emails(t, "c@x.com"),
		AddCodes:  codes(t, "S001", "S002"),
	})

	require.NoError(t, err)
	assert.Equal(t, []StudentRef{carol, alice, bob}, out.Added)
	require.Len(t, dir.calls, 1)
	assert.Len(t, dir.calls[0], 3)
	require.Len(t, store.calls, 1)
	assert.Len(t, store.calls[0].add, 3)
}

func TestReconcile_SameStudentByEmailAndCodeAddedOnce(t *testing.T) {
	store := newFakeStore()

	out, err := NewReconciler(directoryOf(alice), store).Reconcile(context.Background(), Request{
		ClassID:   "c1",
		AddEmails: emails(t, "a@x.com"),
		AddCodes:  codes(t, "S001"),
	})

	require.NoError(t, err)
	assert.Equal(t, []StudentRef{alice}, out.Added)
	assert.Len(t, store.calls[0].add, 1)
}

func TestReconcile_ReAddingMemberIsNoopSuccess(t *testing.T) {
	store := newFakeStore(alice.ID)

	out, err := NewReconciler(directoryOf(alice), store).Reconcile(context.Background(), Request{
		ClassID:   "c1",
		AddEmails: emails(t, "a@x.com"),
	})

	require.NoError(t, err)
	assert.Equal(t, []StudentRef{alice}, out.Added)
	assert.Empty(t, out.NotFoundOnAdd)
	assert.Len(t, store.members, 1)
}

func TestReconcile_RemovingNonMemberIsNotUnresolved(t *testing.T) {
	store := newFakeStore()

	out, err := NewReconciler(directoryOf(alice), store).Reconcile(context.Background(), Request{
		ClassID:     "c1",
		RemoveCodes: codes(t, "S001"),
	})

	require.NoError(t, err)
	require.Len(t, store.calls, 1)
	assert.Equal(t, []StudentRef{alice}, store.calls[0].remove)
	assert.Zero(t, out.RemovedCount)
	assert.Empty(t, out.NotFoundOnRemove)
	assert.Equal(t, []StudentRef{alice}, out.Removed)
}

func TestReconcile_RemoveCountsAndUnresolved(t *testing.T) {
	store := newFakeStore(alice.ID, bob.ID)

	out, err := NewReconciler(directoryOf(alice, bob), store).Reconcile(context.Background(), Request{
		ClassID:      "c1",
		RemoveEmails: emails(t, "a@x.com", "ghost@x.com"),
		RemoveCodes:  codes(t, "S002", "S404"),
	})

	require.NoError(t, err)
	assert.Equal(t, 2, out.RemovedCount)
	assert.Equal(t, []StudentRef{alice, bob}, out.Removed)
	require.Len(t, out.NotFoundOnRemove, 2)
	assert.Equal(t, "ghost@x.com", out.NotFoundOnRemove[0].Raw)
	assert.Equal(t, "S404", out.NotFoundOnRemove[1].Raw)
	assert.Empty(t, store.members)
}

func TestReconcile_NothingResolvedSkipsStore(t *testing.T) {
	store := newFakeStore()

	out, err := NewReconciler(directoryOf(), store).Reconcile(context.Background(), Request{
		ClassID:     "c1",
		AddEmails:   emails(t, "nobody@x.com"),
		RemoveCodes: codes(t, "S999"),
	})

	require.NoError(t, err)
	assert.Empty(t, store.calls)
	assert.Len(t, out.NotFoundOnAdd, 1)
	assert.Len(t, out.NotFoundOnRemove, 1)
}

func TestReconcile_AddsRunBeforeRemoves(t *testing.T) {
	store := newFakeStore(bob.ID)

	_, err := NewReconciler(directoryOf(alice, bob), store).Reconcile(context.Background(), Request{
		ClassID:      "c1",
		AddEmails:    emails(t, "a@x.com"),
		RemoveEmails: emails(t, "b@x.com"),
	})

	require.NoError(t, err)
	require.Len(t, store.calls, 2)
	assert.NotEmpty(t, store.calls[0].add)
	assert.Empty(t, store.calls[0].remove)
	assert.Empty(t, store.calls[1].add)
	assert.NotEmpty(t, store.calls[1].remove)
}

func TestReconcile_AddStoreFailureAbortsWithoutPartialResults(t *testing.T) {
	dir := directoryOf(alice, bob)
	store := newFakeStore()
	store.addErr = errors.New("connection reset")

	out, err := NewReconciler(dir, store).Reconcile(context.Background(), Request{
		ClassID:      "c1",
		AddEmails:    emails(t, "a@x.com", "b@x.com", "ghost@x.com"),
		RemoveEmails: emails(t, "c@x.com"),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAddPhaseFailed)
	assert.NotErrorIs(t, err, ErrRemovePhaseFailed)
	assert.ErrorIs(t, err, store.addErr)
	assert.Empty(t, out.Added)
	assert.Empty(t, out.NotFoundOnAdd)
	assert.Len(t, store.calls, 1, "remove phase must not run")
	assert.Len(t, dir.calls, 1)
}

func TestReconcile_DirectoryFailureAbortsAddPhase(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("timeout")}
	store := newFakeStore()

	_, err := NewReconciler(dir, store).Reconcile(context.Background(), Request{
		ClassID:   "c1",
		AddEmails: emails(t, "a@x.com"),
	})

	var pe *PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PhaseAdd, pe.Phase)
	assert.Empty(t, store.calls)
}

func TestReconcile_RemoveFailureKeepsAddResults(t *testing.T) {
	store := newFakeStore(bob.ID)
	store.removeErr = errors.New("backend down")

	out, err := NewReconciler(directoryOf(alice, bob), store).Reconcile(context.Background(), Request{
		ClassID:      "c1",
		AddEmails:    emails(t, "a@x.com", "ghost@x.com"),
		RemoveEmails: emails(t, "b@x.com"),
	})

	assert.ErrorIs(t, err, ErrRemovePhaseFailed)
	assert.Equal(t, []StudentRef{alice}, out.Added)
	assert.Len(t, out.NotFoundOnAdd, 1)
	assert.Empty(t, out.Removed)
	assert.Zero(t, out.RemovedCount)
}

func TestReconcile_SameIdentifierInAddAndRemoveIsOnlyRemoved(t *testing.T) {
	store := newFakeStore(alice.ID)

	out, err := NewReconciler(directoryOf(alice, bob), store).Reconcile(context.Background(), Request{
		ClassID:      "c1",
		AddEmails:    emails(t, "a@x.com", "b@x.com"),
		RemoveEmails: emails(t, " a@x.com"),
	})

	require.NoError(t, err)
	assert.Equal(t, []StudentRef{bob}, out.Added)
	assert.Equal(t, []StudentRef{alice}, out.Removed)
	assert.Equal(t, 1, out.RemovedCount)
	assert.False(t, store.members[alice.ID])
	assert.True(t, store.members[bob.ID])
}

func TestReconcile_SameStudentViaDifferentIdentifiersEndsRemoved(t *testing.T) {
	store := newFakeStore()

	out, err := NewReconciler(directoryOf(alice), store).Reconcile(context.Background(), Request{
		ClassID:     "c1",
		AddEmails:   emails(t, "a@x.com"),
		RemoveCodes: codes(t, "S001"),
	})

	require.NoError(t, err)
	assert.Equal(t, []StudentRef{alice}, out.Added)
	assert.Equal(t, 1, out.RemovedCount)
	assert.Empty(t, store.members)
}
