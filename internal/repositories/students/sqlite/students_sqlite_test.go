package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quipper/poc/classroom/be/internal/db"
	"github.com/quipper/poc/classroom/be/pkg/reconcile"
	st "github.com/quipper/poc/classroom/be/pkg/repositories/students"
)

func TestUpsertStudent_AssignsIDAndMergesOnEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepo(db.OpenTest(t))

	s := &st.Student{Email: "a@x.com", Name: "Alice"}
	require.NoError(t, repo.UpsertStudent(ctx, s))
	require.NotEmpty(t, s.ID)

	again := &st.Student{Email: "a@x.com", Code: "S001", Name: "Alice A."}
	require.NoError(t, repo.UpsertStudent(ctx, again))
	assert.Equal(t, s.ID, again.ID)

	list, total, err := repo.ListStudentsPage(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "S001", list[0].Code)
	assert.Equal(t, "Alice A.", list[0].Name)
}

func TestUpsertStudent_OmittedFieldsKeepStoredValues(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepo(db.OpenTest(t))

	require.NoError(t, repo.UpsertStudent(ctx, &st.Student{Email: "a@x.com", Code: "S001", Name: "Alice"}))

	rename := &st.Student{Email: "a@x.com", Name: "Alice B."}
	require.NoError(t, repo.UpsertStudent(ctx, rename))
	assert.Equal(t, "S001", rename.Code)
	assert.Equal(t, "Alice B.", rename.Name)

	byCode := &st.Student{Code: "S001"}
	require.NoError(t, repo.UpsertStudent(ctx, byCode))
	assert.Equal(t, rename.ID, byCode.ID)
	assert.Equal(t, "a@x.com", byCode.Email)
	assert.Equal(t, "Alice B.", byCode.Name)

	code := reconcile.StudentCode("S001")
	got, err := repo.ResolveMany(ctx, []reconcile.Identifier{code})
	require.NoError(t, err)
	require.True(t, got[code].Found)
	assert.Equal(t, rename.ID, got[code].Student.ID)
	assert.Equal(t, "a@x.com", got[code].Student.Email)
}

func TestUpsertStudent_ConflictingCode(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepo(db.OpenTest(t))

	require.NoError(t, repo.UpsertStudent(ctx, &st.Student{Email: "a@x.com", Code: "S001"}))
	b := &st.Student{Email: "b@x.com"}
	require.NoError(t, repo.UpsertStudent(ctx, b))

	b.Code = "S001"
	assert.ErrorIs(t, repo.UpsertStudent(ctx, b), st.ErrConflict)
}

func TestResolveMany(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepo(db.OpenTest(t))
	alice := &st.Student{Email: "a@x.com", Code: "S001"}
	require.NoError(t, repo.UpsertStudent(ctx, alice))

	ids := []reconcile.Identifier{
		reconcile.Email(" a@x.com "),
		reconcile.Email("A@x.com"),
		reconcile.StudentCode("S001"),
		reconcile.StudentCode("S002"),
	}
	got, err := repo.ResolveMany(ctx, ids)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.True(t, got[ids[0]].Found)
	assert.Equal(t, alice.ID, got[ids[0]].Student.ID)
	assert.False(t, got[ids[1]].Found, "matching is case-sensitive")
	assert.True(t, got[ids[2]].Found)
	assert.Equal(t, "a@x.com", got[ids[2]].Student.Email)
	assert.False(t, got[ids[3]].Found)
}

func TestResolveMany_Empty(t *testing.T) {
	repo := NewSQLiteRepo(db.OpenTest(t))
	got, err := repo.ResolveMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveMany_SpansLookupBatches(t *testing.T) {
	orig := lookupBatchSize
	lookupBatchSize = 2
	t.Cleanup(func() { lookupBatchSize = orig })

	ctx := context.Background()
	repo := NewSQLiteRepo(db.OpenTest(t))
	var ids []reconcile.Identifier
	for i := 1; i <= 5; i++ {
		code := fmt.Sprintf("S%03d", i)
		require.NoError(t, repo.UpsertStudent(ctx, &st.Student{Code: code}))
		ids = append(ids, reconcile.StudentCode(code))
	}
	ids = append(ids, reconcile.StudentCode("S999"))

	got, err := repo.ResolveMany(ctx, ids)
	require.NoError(t, err)
	require.Len(t, got, 6)
	for _, id := range ids[:5] {
		assert.True(t, got[id].Found, id.Value)
	}
	assert.False(t, got[reconcile.StudentCode("S999")].Found)
}

func TestResolveMany_BeyondHostParameterLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepo(db.OpenTest(t))
	require.NoError(t, repo.UpsertStudent(ctx, &st.Student{Code: "C40000"}))

	ids := make([]reconcile.Identifier, 0, 40000)
	for i := 1; i <= 40000; i++ {
		ids = append(ids, reconcile.StudentCode(fmt.Sprintf("C%d", i)))
	}
	got, err := repo.ResolveMany(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, got, 40000)
	assert.True(t, got[reconcile.StudentCode("C40000")].Found)
	assert.False(t, got[reconcile.StudentCode("C1")].Found)
}
