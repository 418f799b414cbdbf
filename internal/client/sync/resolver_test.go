package sync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthside/homekeeper/internal/client/storage"
	"github.com/hearthside/homekeeper/internal/models"
	"github.com/hearthside/homekeeper/pkg/api"
)

// conflictedList seeds a list with a pending edit that the server rejected
// with a newer version.
func conflictedList(t *testing.T, ctx context.Context, env *testEnv) *models.Entity {
	t.Helper()

	list := seedSyncedList(t, ctx, env, "groceries", 10, 1)
	require.NoError(t, env.data.UpdateShoppingList(ctx, list.LocalID, models.ShoppingList{Name: "my edit"}))

	serverTime := time.Now().UTC()
	serverVersion := int64(3)
	theirs := api.Object(map[string]api.Value{"name": api.String("their edit")})

	env.mock.PushFunc = func(ctx context.Context, req api.PushRequest) (*api.PushResponse, error) {
		return pushResults(serverTime, api.OperationResult{
			LocalID: req.Operations[0].LocalID,
			Status:  api.StatusConflict,
			Version: &serverVersion,
			Data:    &theirs,
			Error:   "version mismatch",
		}), nil
	}
	env.mock.PullFunc = emptyPull(serverTime)

	_, err := env.engine.Sync(ctx)
	require.NoError(t, err)

	entity, err := env.store.Get(ctx, list.LocalID)
	require.NoError(t, err)
	require.Equal(t, models.StatusConflicted, entity.Status)
	return entity
}

func TestResolver_Conflicts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	entity := conflictedList(t, ctx, env)

	conflicts, err := env.engine.Conflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, entity.LocalID, conflicts[0].LocalID)
	assert.Equal(t, "version mismatch", conflicts[0].Note)
	assert.JSONEq(t, `{"name":"my edit"}`, string(conflicts[0].LocalData))
	assert.JSONEq(t, `{"name":"their edit"}`, string(conflicts[0].ServerData))
}

func TestResolver_Resolve_NotConflicted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	list := seedSyncedList(t, ctx, env, "groceries", 10, 1)
	err := env.engine.Resolve(ctx, list.LocalID, TakeTheirs)
	assert.ErrorIs(t, err, ErrNotConflicted)
}

func TestResolver_TakeTheirs(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	entity := conflictedList(t, ctx, env)

	require.NoError(t, env.engine.Resolve(ctx, entity.LocalID, TakeTheirs))

	resolved, err := env.store.Get(ctx, entity.LocalID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, resolved.Status)
	assert.Equal(t, int64(3), resolved.Version)
	assert.Empty(t, resolved.ConflictNote)

	var payload models.ShoppingList
	require.NoError(t, resolved.DecodePayload(&payload))
	assert.Equal(t, "their edit", payload.Name)

	pending, err := env.store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
}

func TestResolver_KeepMine(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	entity := conflictedList(t, ctx, env)

	require.NoError(t, env.engine.Resolve(ctx, entity.LocalID, KeepMine))

	resolved, err := env.store.Get(ctx, entity.LocalID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingUpdate, resolved.Status)
	// The server's version is adopted so the re-push passes the
	// optimistic concurrency check.
	assert.Equal(t, int64(3), resolved.Version)

	var payload models.ShoppingList
	require.NoError(t, resolved.DecodePayload(&payload))
	assert.Equal(t, "my edit", payload.Name)

	batch, err := env.store.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, models.OpUpdate, batch[0].Type)
	assert.Equal(t, entity.LocalID, batch[0].LocalEntityID)
	require.NotNil(t, batch[0].ServerEntityID)
	assert.Equal(t, int64(10), *batch[0].ServerEntityID)
}

// serverDeletedConflict parks an entity after the server deleted it while a
// local edit was pending.
func serverDeletedConflict(t *testing.T, ctx context.Context, env *testEnv) *models.Entity {
	t.Helper()

	list := seedSyncedList(t, ctx, env, "groceries", 10, 1)
	require.NoError(t, env.data.UpdateShoppingList(ctx, list.LocalID, models.ShoppingList{Name: "my edit"}))
	_, err := env.store.RemoveForEntity(ctx, list.LocalID)
	require.NoError(t, err)

	serverTime := time.Now().UTC()
	env.mock.PullFunc = func(ctx context.Context, req api.PullRequest) (*api.PullResponse, error) {
		return &api.PullResponse{
			Success:    true,
			ServerTime: serverTime,
			Data: api.PullData{
				Updated: map[string][]api.Record{},
				Deleted: map[string][]int64{string(models.EntityShoppingList): {10}},
			},
		}, nil
	}

	_, err = env.engine.Sync(ctx)
	require.NoError(t, err)

	entity, err := env.store.Get(ctx, list.LocalID)
	require.NoError(t, err)
	require.Equal(t, models.StatusConflicted, entity.Status)
	require.Equal(t, "deleted on server", entity.ConflictNote)
	return entity
}

func TestResolver_TakeTheirs_ServerDeletion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	entity := serverDeletedConflict(t, ctx, env)

	require.NoError(t, env.engine.Resolve(ctx, entity.LocalID, TakeTheirs))

	_, err := env.store.Get(ctx, entity.LocalID)
	assert.ErrorIs(t, err, storage.ErrEntityNotFound)
}

func TestResolver_KeepMine_ServerDeletion_RecreatesEntity(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	entity := serverDeletedConflict(t, ctx, env)

	require.NoError(t, env.engine.Resolve(ctx, entity.LocalID, KeepMine))

	resolved, err := env.store.Get(ctx, entity.LocalID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingCreate, resolved.Status)
	assert.Nil(t, resolved.ServerID)
	assert.Equal(t, int64(1), resolved.Version)

	batch, err := env.store.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, models.OpCreate, batch[0].Type)
	assert.Nil(t, batch[0].ServerEntityID)

	var payload models.ShoppingList
	require.NoError(t, json.Unmarshal(batch[0].Payload, &payload))
	assert.Equal(t, "my edit", payload.Name)
}

func TestResolver_TakeTheirs_NoSnapshot(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	list := seedSyncedList(t, ctx, env, "groceries", 10, 1)
	require.NoError(t, env.store.MarkConflicted(ctx, list.LocalID, nil, nil, "sync failed: boom"))

	err := env.engine.Resolve(ctx, list.LocalID, TakeTheirs)
	assert.ErrorIs(t, err, ErrSnapshotUnknown)
}
