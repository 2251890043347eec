package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/net-toolbox/onboarder/internal/model"
)

func TestMemStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemStore()

	task := model.NewTask("192.0.2.1", "lab")
	require.NoError(t, s.Add(ctx, task))

	t.Run("duplicate add rejected", func(t *testing.T) {
		assert.Error(t, s.Add(ctx, task))
	})

	t.Run("by id", func(t *testing.T) {
		got, err := s.ByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.Address, got.Address)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("update", func(t *testing.T) {
		got, err := s.ByID(ctx, task.ID)
		require.NoError(t, err)

		got.Status = model.StatusRunning
		require.NoError(t, s.Update(ctx, *got))

		updated, err := s.ByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusRunning, updated.Status)
	})

	t.Run("by status", func(t *testing.T) {
		running, err := s.ByStatus(ctx, model.StatusRunning)
		require.NoError(t, err)
		assert.Len(t, running, 1)

		pending, err := s.ByStatus(ctx, model.StatusPending)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, s.Remove(ctx, task.ID))

		_, err := s.ByID(ctx, task.ID)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("unknown task errors", func(t *testing.T) {
		other := model.NewTask("192.0.2.2", "lab")

		assert.ErrorIs(t, s.Update(ctx, other), ErrTaskNotFound)
		assert.ErrorIs(t, s.Remove(ctx, other.ID), ErrTaskNotFound)
	})
}

func TestDBStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	s, err := NewDBStore(t.TempDir() + "/tasks.db")
	require.NoError(t, err)

	defer s.Close() //nolint:errcheck // test teardown

	task := model.NewTask("192.0.2.1", "lab")
	task.RoleSlug = "core-switch"
	require.NoError(t, s.Add(ctx, task))

	got, err := s.ByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Address, got.Address)
	assert.Equal(t, task.RoleSlug, got.RoleSlug)
	assert.Equal(t, model.StatusPending, got.Status)

	got.Status = model.StatusFailed
	got.FailedReason = model.FailConnect
	got.Message = "connection refused"
	require.NoError(t, s.Update(ctx, *got))

	failed, err := s.ByStatus(ctx, model.StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, model.FailConnect, failed[0].FailedReason)

	require.NoError(t, s.Remove(ctx, task.ID))

	_, err = s.ByID(ctx, task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	assert.ErrorIs(t, s.Update(ctx, task), ErrTaskNotFound)
	assert.ErrorIs(t, s.Remove(ctx, task.ID), ErrTaskNotFound)
}
