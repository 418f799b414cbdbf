package sync

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpClient "github.com/hearthside/homekeeper/internal/client/api"
	"github.com/hearthside/homekeeper/internal/client/connectivity"
	"github.com/hearthside/homekeeper/internal/client/data"
	"github.com/hearthside/homekeeper/internal/client/storage"
	"github.com/hearthside/homekeeper/internal/client/storage/boltdb"
	"github.com/hearthside/homekeeper/internal/client/storage/sqlite"
	"github.com/hearthside/homekeeper/internal/models"
	"github.com/hearthside/homekeeper/pkg/api"
)

type testEnv struct {
	engine *Engine
	store  *sqlite.Storage
	kv     *boltdb.Storage
	gate   *connectivity.ManualGate
	mock   *httpClient.ClientAPIMock
	data   data.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	kv, err := boltdb.New(ctx, filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	gate := connectivity.NewManualGate(true)
	mock := &httpClient.ClientAPIMock{}
	logger := slog.New(slog.DiscardHandler)

	return &testEnv{
		engine: NewEngine(mock, store, store, kv, gate, "test-device", logger),
		store:  store,
		kv:     kv,
		gate:   gate,
		mock:   mock,
		data:   data.NewService(store, store, logger),
	}
}

func emptyPull(serverTime time.Time) func(ctx context.Context, req api.PullRequest) (*api.PullResponse, error) {
	return func(ctx context.Context, req api.PullRequest) (*api.PullResponse, error) {
		return &api.PullResponse{
			Success:    true,
			ServerTime: serverTime,
			Data: api.PullData{
				Updated: map[string][]api.Record{},
				Deleted: map[string][]int64{},
			},
		}, nil
	}
}

func pushResults(serverTime time.Time, results ...api.OperationResult) *api.PushResponse {
	return &api.PushResponse{Success: true, ServerTime: serverTime, Results: results}
}

func TestEngine_Sync_Offline(t *testing.T) {
	env := newTestEnv(t)
	env.gate.SetOnline(false)

	_, err := env.engine.Sync(context.Background())
	assert.ErrorIs(t, err, ErrOffline)
	assert.Empty(t, env.mock.PushCalls())
	assert.Empty(t, env.mock.PullCalls())
}

func TestEngine_Sync_SingleFlight(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.data.CreateShoppingList(ctx, models.ShoppingList{Name: "groceries"})
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	serverTime := time.Now().UTC()

	env.mock.PushFunc = func(ctx context.Context, req api.PushRequest) (*api.PushResponse, error) {
		close(started)
		<-release
		serverID := int64(1)
		return pushResults(serverTime, api.OperationResult{
			LocalID: req.Operations[0].LocalID, Status: api.StatusCreated, ServerID: &serverID,
		}), nil
	}
	env.mock.PullFunc = emptyPull(serverTime)

	done := make(chan error, 1)
	go func() {
		_, err := env.engine.Sync(ctx)
		done <- err
	}()

	<-started
	assert.True(t, env.engine.Syncing())

	_, err = env.engine.Sync(ctx)
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, env.engine.Syncing())
}

func TestEngine_Sync_OfflineCreateFlow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.gate.SetOnline(false)

	// Everything below happens without connectivity.
	list, err := env.data.CreateShoppingList(ctx, models.ShoppingList{Name: "groceries"})
	require.NoError(t, err)
	milk, err := env.data.AddShoppingItem(ctx, list.LocalID, models.ShoppingItem{Name: "milk", Quantity: 2, Unit: "l"})
	require.NoError(t, err)
	bread, err := env.data.AddShoppingItem(ctx, list.LocalID, models.ShoppingItem{Name: "bread"})
	require.NoError(t, err)

	serverTime := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	ids := map[string]int64{list.LocalID: 100, milk.LocalID: 201, bread.LocalID: 202}

	env.mock.PushFunc = func(ctx context.Context, req api.PushRequest) (*api.PushResponse, error) {
		require.Len(t, req.Operations, 3)
		assert.Equal(t, "test-device", req.DeviceName)

		results := make([]api.OperationResult, 0, len(req.Operations))
		for _, op := range req.Operations {
			assert.Equal(t, string(models.OpCreate), op.OperationType)
			// The items' parent has no server id yet; the wire operation
			// references it by local id so the server can resolve in-batch.
			if op.EntityType == string(models.EntityShoppingItem) {
				assert.Nil(t, op.ParentServerID)
				assert.Equal(t, list.LocalID, op.ParentLocalID)
			}
			serverID := ids[op.LocalID]
			results = append(results, api.OperationResult{
				LocalID: op.LocalID, Status: api.StatusCreated, ServerID: &serverID,
			})
		}
		return pushResults(serverTime, results...), nil
	}
	env.mock.PullFunc = emptyPull(serverTime)

	env.gate.SetOnline(true)
	result, err := env.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Pushed)

	// All three entities carry their server identity and are clean.
	for localID, wantServerID := range ids {
		entity, err := env.store.Get(ctx, localID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusSynced, entity.Status)
		require.NotNil(t, entity.ServerID)
		assert.Equal(t, wantServerID, *entity.ServerID)
	}

	// Children adopted the list's new server id.
	item, err := env.store.Get(ctx, milk.LocalID)
	require.NoError(t, err)
	require.NotNil(t, item.ParentServerID)
	assert.Equal(t, int64(100), *item.ParentServerID)

	pending, err := env.store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)

	watermark, err := env.kv.LastSyncAt(ctx)
	require.NoError(t, err)
	assert.Equal(t, serverTime, watermark)
}

func TestEngine_Sync_VersionConflict(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	list := seedSyncedList(t, ctx, env, "groceries", 10, 1)

	require.NoError(t, env.data.UpdateShoppingList(ctx, list.LocalID, models.ShoppingList{Name: "my edit"}))

	serverTime := time.Now().UTC()
	serverVersion := int64(3)
	theirs := api.Object(map[string]api.Value{"name": api.String("their edit")})

	env.mock.PushFunc = func(ctx context.Context, req api.PushRequest) (*api.PushResponse, error) {
		require.Len(t, req.Operations, 1)
		return pushResults(serverTime, api.OperationResult{
			LocalID: req.Operations[0].LocalID,
			Status:  api.StatusConflict,
			Version: &serverVersion,
			Data:    &theirs,
			Error:   "version mismatch",
		}), nil
	}
	env.mock.PullFunc = emptyPull(serverTime)

	result, err := env.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Conflicts)

	entity, err := env.store.Get(ctx, list.LocalID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConflicted, entity.Status)
	assert.Equal(t, "version mismatch", entity.ConflictNote)
	require.NotNil(t, entity.ConflictVersion)
	assert.Equal(t, int64(3), *entity.ConflictVersion)
	assert.JSONEq(t, `{"name":"their edit"}`, string(entity.ConflictSnapshot))

	// The local edit is preserved for the user's decision.
	var payload models.ShoppingList
	require.NoError(t, entity.DecodePayload(&payload))
	assert.Equal(t, "my edit", payload.Name)

	// The operation waits in the outbox but is not replayed while the
	// entity stays conflicted.
	pending, err := env.store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	_, err = env.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Len(t, env.mock.PushCalls(), 1)
}

func TestEngine_Sync_ConfirmationWithoutVersionKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	list := seedSyncedList(t, ctx, env, "groceries", 10, 5)
	require.NoError(t, env.data.UpdateShoppingList(ctx, list.LocalID, models.ShoppingList{Name: "renamed"}))

	serverTime := time.Now().UTC()
	env.mock.PushFunc = func(ctx context.Context, req api.PushRequest) (*api.PushResponse, error) {
		require.Len(t, req.Operations, 1)
		return pushResults(serverTime, api.OperationResult{
			LocalID: req.Operations[0].LocalID, Status: api.StatusUpdated,
		}), nil
	}
	env.mock.PullFunc = emptyPull(serverTime)

	result, err := env.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pushed)

	// A confirmation without the optional version must not roll the
	// entity's version back.
	entity, err := env.store.Get(ctx, list.LocalID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, entity.Status)
	assert.Equal(t, int64(5), entity.Version)
}

func TestEngine_Sync_TransportFailureLeavesQueueUntouched(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.data.CreateShoppingList(ctx, models.ShoppingList{Name: "groceries"})
	require.NoError(t, err)

	env.mock.PushFunc = func(ctx context.Context, req api.PushRequest) (*api.PushResponse, error) {
		return nil, &httpClient.TransportError{Op: "push", Err: errors.New("connection reset"), Timeout: false}
	}

	_, err = env.engine.Sync(ctx)
	require.Error(t, err)
	assert.NotEmpty(t, env.engine.LastError())

	// No retry counter moved, nothing was dropped, the watermark did not
	// advance and the pull phase never ran.
	batch, err := env.store.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, 0, batch[0].RetryCount)

	watermark, err := env.kv.LastSyncAt(ctx)
	require.NoError(t, err)
	assert.True(t, watermark.IsZero())
	assert.Empty(t, env.mock.PullCalls())

	// A later successful pass clears the error.
	serverTime := time.Now().UTC()
	env.mock.PushFunc = func(ctx context.Context, req api.PushRequest) (*api.PushResponse, error) {
		serverID := int64(1)
		return pushResults(serverTime, api.OperationResult{
			LocalID: req.Operations[0].LocalID, Status: api.StatusCreated, ServerID: &serverID,
		}), nil
	}
	env.mock.PullFunc = emptyPull(serverTime)

	_, err = env.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Empty(t, env.engine.LastError())
}

func TestEngine_Sync_AckGapLeavesOperationQueued(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	first, err := env.data.CreateShoppingList(ctx, models.ShoppingList{Name: "answered"})
	require.NoError(t, err)
	second, err := env.data.CreateShoppingList(ctx, models.ShoppingList{Name: "ignored"})
	require.NoError(t, err)

	serverTime := time.Now().UTC()
	env.mock.PushFunc = func(ctx context.Context, req api.PushRequest) (*api.PushResponse, error) {
		require.Len(t, req.Operations, 2)
		serverID := int64(1)
		return pushResults(serverTime, api.OperationResult{
			LocalID: first.LocalID, Status: api.StatusCreated, ServerID: &serverID,
		}), nil
	}
	env.mock.PullFunc = emptyPull(serverTime)

	result, err := env.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pushed)

	batch, err := env.store.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, second.LocalID, batch[0].LocalEntityID)
	assert.Equal(t, 0, batch[0].RetryCount)
}

func TestEngine_Sync_ServerErrorRetriesThenAbandons(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	list, err := env.data.CreateShoppingList(ctx, models.ShoppingList{Name: "groceries"})
	require.NoError(t, err)

	serverTime := time.Now().UTC()
	env.mock.PushFunc = func(ctx context.Context, req api.PushRequest) (*api.PushResponse, error) {
		return pushResults(serverTime, api.OperationResult{
			LocalID: req.Operations[0].LocalID, Status: api.StatusError, Error: "boom",
		}), nil
	}
	env.mock.PullFunc = emptyPull(serverTime)

	for attempt := 1; attempt <= models.DefaultMaxRetries; attempt++ {
		result, err := env.engine.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Retried)

		batch, err := env.store.NextBatch(ctx)
		require.NoError(t, err)
		require.Len(t, batch, 1)
		assert.Equal(t, attempt, batch[0].RetryCount)
		assert.Equal(t, "boom", batch[0].LastError)
	}

	// Retries exhausted: the operation is dropped and the entity parked.
	result, err := env.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	pending, err := env.store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)

	entity, err := env.store.Get(ctx, list.LocalID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConflicted, entity.Status)
	assert.Equal(t, "sync failed: boom", entity.ConflictNote)
}

func TestEngine_Sync_PullAppliesRecordsAndDeletions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	// A clean asset the server deleted, and a list with a pending local
	// edit the server also deleted.
	asset := seedSyncedEntity(t, ctx, env, models.EntityAsset, "vacuum", 3, 1)
	list := seedSyncedList(t, ctx, env, "groceries", 10, 1)
	require.NoError(t, env.data.UpdateShoppingList(ctx, list.LocalID, models.ShoppingList{Name: "my edit"}))
	_, err := env.store.RemoveForEntity(ctx, list.LocalID)
	require.NoError(t, err)

	serverTime := time.Date(2026, 8, 21, 8, 0, 0, 0, time.UTC)
	env.mock.PullFunc = func(ctx context.Context, req api.PullRequest) (*api.PullResponse, error) {
		return &api.PullResponse{
			Success:    true,
			ServerTime: serverTime,
			Data: api.PullData{
				Updated: map[string][]api.Record{
					string(models.EntityGoal): {{
						ServerID:  55,
						Version:   2,
						UpdatedAt: serverTime,
						Fields:    api.Object(map[string]api.Value{"title": api.String("new roof")}),
					}},
				},
				Deleted: map[string][]int64{
					string(models.EntityAsset):        {3},
					string(models.EntityShoppingList): {10},
				},
			},
		}, nil
	}

	result, err := env.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 1, result.Conflicts)

	// Clean entity: deletion applied.
	_, err = env.store.Get(ctx, asset.LocalID)
	assert.ErrorIs(t, err, storage.ErrEntityNotFound)

	// Pending local edit: surfaced as conflict instead of silent delete.
	conflicted, err := env.store.Get(ctx, list.LocalID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConflicted, conflicted.Status)
	assert.Equal(t, "deleted on server", conflicted.ConflictNote)

	// New server record landed as a synced goal.
	goal, err := env.store.GetByServerID(ctx, models.EntityGoal, 55)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, goal.Status)
	var payload models.Goal
	require.NoError(t, goal.DecodePayload(&payload))
	assert.Equal(t, "new roof", payload.Title)

	watermark, err := env.kv.LastSyncAt(ctx)
	require.NoError(t, err)
	assert.Equal(t, serverTime, watermark)

	// The first pull was unbounded; the next one starts from the advanced
	// watermark.
	_, err = env.engine.Sync(ctx)
	require.NoError(t, err)
	calls := env.mock.PullCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "", calls[0].Req.Since)
	assert.Equal(t, serverTime.Format(time.RFC3339), calls[1].Req.Since)
}

func TestEngine_Sync_PullLinksChildToLocalParent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	list := seedSyncedList(t, ctx, env, "groceries", 10, 1)

	serverTime := time.Now().UTC()
	parentServerID := int64(10)
	env.mock.PullFunc = func(ctx context.Context, req api.PullRequest) (*api.PullResponse, error) {
		return &api.PullResponse{
			Success:    true,
			ServerTime: serverTime,
			Data: api.PullData{
				Updated: map[string][]api.Record{
					string(models.EntityShoppingItem): {{
						ServerID:       77,
						Version:        1,
						UpdatedAt:      serverTime,
						ParentServerID: &parentServerID,
						Fields:         api.Object(map[string]api.Value{"name": api.String("milk")}),
					}},
				},
				Deleted: map[string][]int64{},
			},
		}, nil
	}

	_, err := env.engine.Sync(ctx)
	require.NoError(t, err)

	item, err := env.store.GetByServerID(ctx, models.EntityShoppingItem, 77)
	require.NoError(t, err)
	assert.Equal(t, list.LocalID, item.ParentLocalID)

	children, err := env.store.ListChildren(ctx, list.LocalID)
	require.NoError(t, err)
	assert.Len(t, children, 1)
}

func TestEngine_Start_AutoSyncOnReconnect(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.gate.SetOnline(false)

	_, err := env.data.CreateShoppingList(ctx, models.ShoppingList{Name: "groceries"})
	require.NoError(t, err)

	serverTime := time.Now().UTC()
	pushed := make(chan struct{})
	env.mock.PushFunc = func(ctx context.Context, req api.PushRequest) (*api.PushResponse, error) {
		defer close(pushed)
		serverID := int64(1)
		return pushResults(serverTime, api.OperationResult{
			LocalID: req.Operations[0].LocalID, Status: api.StatusCreated, ServerID: &serverID,
		}), nil
	}
	env.mock.PullFunc = emptyPull(serverTime)

	stop := env.engine.Start(ctx)
	defer stop()

	env.gate.SetOnline(true)

	select {
	case <-pushed:
	case <-time.After(2 * time.Second):
		t.Fatal("reconnect did not trigger a sync pass")
	}
}

func TestEngine_Events(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	list := seedSyncedList(t, ctx, env, "groceries", 10, 1)
	require.NoError(t, env.data.UpdateShoppingList(ctx, list.LocalID, models.ShoppingList{Name: "my edit"}))

	serverTime := time.Now().UTC()
	env.mock.PushFunc = func(ctx context.Context, req api.PushRequest) (*api.PushResponse, error) {
		return pushResults(serverTime, api.OperationResult{
			LocalID: req.Operations[0].LocalID, Status: api.StatusConflict, Error: "version mismatch",
		}), nil
	}
	env.mock.PullFunc = emptyPull(serverTime)

	var kinds []EventKind
	unsubscribe := env.engine.Subscribe(func(ev Event) {
		kinds = append(kinds, ev.Kind)
	})
	defer unsubscribe()

	_, err := env.engine.Sync(ctx)
	require.NoError(t, err)

	assert.Equal(t, []EventKind{EventSyncStarted, EventConflict, EventSyncFinished}, kinds)
}

// seedSyncedList inserts a shopping list that is already known to the server.
func seedSyncedList(t *testing.T, ctx context.Context, env *testEnv, name string, serverID, version int64) *models.Entity {
	t.Helper()
	return seedSyncedEntity(t, ctx, env, models.EntityShoppingList, name, serverID, version)
}

func seedSyncedEntity(t *testing.T, ctx context.Context, env *testEnv, entityType models.EntityType, name string, serverID, version int64) *models.Entity {
	t.Helper()

	var created *models.Entity
	var err error
	switch entityType {
	case models.EntityShoppingList:
		created, err = env.data.CreateShoppingList(ctx, models.ShoppingList{Name: name})
	case models.EntityAsset:
		created, err = env.data.CreateAsset(ctx, models.Asset{Name: name})
	default:
		t.Fatalf("unsupported seed type %s", entityType)
	}
	require.NoError(t, err)

	require.NoError(t, env.store.MarkSynced(ctx, created.LocalID, serverID, version, nil))
	_, err = env.store.RemoveForEntity(ctx, created.LocalID)
	require.NoError(t, err)

	entity, err := env.store.Get(ctx, created.LocalID)
	require.NoError(t, err)
	return entity
}
