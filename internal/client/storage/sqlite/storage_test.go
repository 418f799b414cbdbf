package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hearthside/homekeeper/internal/models"
)

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	s, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func createTestList(t *testing.T, ctx context.Context, s *Storage, name string) *models.Entity {
	t.Helper()

	entity := &models.Entity{
		LocalID: uuid.New().String(),
		Type:    models.EntityShoppingList,
	}
	require.NoError(t, entity.SetPayload(models.ShoppingList{Name: name}))
	require.NoError(t, s.CreateLocal(ctx, entity))
	return entity
}

func createSyncedList(t *testing.T, ctx context.Context, s *Storage, name string, serverID int64) *models.Entity {
	t.Helper()

	entity := createTestList(t, ctx, s, name)
	require.NoError(t, s.MarkSynced(ctx, entity.LocalID, serverID, 1, nil))

	synced, err := s.Get(ctx, entity.LocalID)
	require.NoError(t, err)
	return synced
}

func TestStorage_New(t *testing.T) {
	s := setupTestStorage(t)
	require.NotNil(t, s.DB())
}
