package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
)

func newApp(t *testing.T, n int, updated time.Time) *application.Application {
	t.Helper()
	app, err := application.NewApplication(application.NewApplicationParams{
		ID:      fmt.Sprintf("00000000-0000-4000-8000-%012d", n),
		OwnerID: shared.UserID(fmt.Sprintf("student-%d", n)),
		Now:     updated,
	})
	require.NoError(t, err)
	return app
}

func TestCreate_UniqueOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewApplicationRepository()
	now := time.Now().UTC()

	app := newApp(t, 1, now)
	require.NoError(t, repo.Create(ctx, app))
	assert.Equal(t, int64(1), app.Version)

	dup := newApp(t, 2, now)
	dup.OwnerID = app.OwnerID
	err := repo.Create(ctx, dup)
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestUpdate_OptimisticConcurrency(t *testing.T) {
	ctx := context.Background()
	repo := NewApplicationRepository()
	app := newApp(t, 1, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, app))

	first, err := repo.GetByID(ctx, shared.ApplicationID(app.ID))
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, shared.ApplicationID(app.ID))
	require.NoError(t, err)

	first.Status = application.StatusAccepted
	require.NoError(t, repo.Update(ctx, first, 1))
	assert.Equal(t, int64(2), first.Version)

	second.Status = application.StatusRejected
	err = repo.Update(ctx, second, 1)
	assert.ErrorIs(t, err, shared.ErrConflict)

	stored, err := repo.GetByID(ctx, shared.ApplicationID(app.ID))
	require.NoError(t, err)
	assert.Equal(t, application.StatusAccepted, stored.Status)

	missing := newApp(t, 9, time.Now().UTC())
	assert.ErrorIs(t, repo.Update(ctx, missing, 0), shared.ErrNotFound)
}

func TestReadsAreIsolatedCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewApplicationRepository()
	app := newApp(t, 1, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, app))

	app.Status = application.StatusApproved
	got, err := repo.GetByOwner(ctx, app.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, application.StatusSubmitted, got.Status)

	_, err = repo.GetByOwner(ctx, "nobody")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestList_FilterSortPaginate(t *testing.T) {
	ctx := context.Background()
	repo := NewApplicationRepository()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= 5; i++ {
		app := newApp(t, i, base.Add(time.Duration(i)*time.Hour))
		if i%2 == 0 {
			app.Status = application.StatusAccepted
			app.AssignedAgent = "agent-x"
		}
		require.NoError(t, repo.Create(ctx, app))
	}

	all, total, err := repo.List(ctx, application.ListFilter{}, shared.NewPagination(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, all, 2)
	assert.Equal(t, shared.UserID("student-5"), all[0].OwnerID, "most recently updated first")
	assert.Equal(t, shared.UserID("student-4"), all[1].OwnerID)

	last, _, err := repo.List(ctx, application.ListFilter{}, shared.NewPagination(3, 2))
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, shared.UserID("student-1"), last[0].OwnerID)

	assigned, total, err := repo.List(ctx, application.ListFilter{}.WithAssignedAgent("agent-x").WithStatus(application.StatusAccepted), shared.NewPagination(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, assigned, 2)

	empty, total, err := repo.List(ctx, application.ListFilter{}, shared.NewPagination(9, 10))
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, empty)
}
