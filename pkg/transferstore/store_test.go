package transferstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architect-io/mdpack/pkg/transfer"
	"github.com/architect-io/mdpack/pkg/transferstore"
	"github.com/architect-io/mdpack/pkg/transferstore/backend"
	"github.com/architect-io/mdpack/pkg/transferstore/backend/local"
)

func newTestStore(t *testing.T) *transferstore.Store {
	t.Helper()
	b, err := local.NewBackend(map[string]string{"path": t.TempDir()})
	require.NoError(t, err)
	return transferstore.New(b)
}

func TestStore_SaveGet_RoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := transferstore.RecordFromResult("op-1", "deploy", "59.0", time.Now(), transfer.Result{
		Status: transfer.StateSucceeded,
		Deploy: &transfer.DeployResult{Success: true},
	})

	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Get(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, "op-1", got.ID)
	assert.Equal(t, transfer.StateSucceeded, got.Status)
	require.NotNil(t, got.DeployResult)
	assert.True(t, got.DeployResult.Success)
}

func TestStore_Get_MissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrNotFound)
}

func TestStore_List_OrdersMostRecentFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := transferstore.RecordFromResult("op-older", "deploy", "59.0", time.Now().Add(-time.Hour), transfer.Result{Status: transfer.StateSucceeded})
	newer := transferstore.RecordFromResult("op-newer", "deploy", "59.0", time.Now(), transfer.Result{Status: transfer.StateSucceeded})

	require.NoError(t, s.Save(ctx, older))
	require.NoError(t, s.Save(ctx, newer))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "op-newer", list[0].ID)
	assert.Equal(t, "op-older", list[1].ID)
}

func TestStore_Delete_RemovesRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := transferstore.RecordFromResult("op-1", "retrieve", "59.0", time.Now(), transfer.Result{Status: transfer.StateFailed, Err: assert.AnError})
	require.NoError(t, s.Save(ctx, rec))
	require.NoError(t, s.Delete(ctx, "op-1"))

	_, err := s.Get(ctx, "op-1")
	assert.Error(t, err)
}
