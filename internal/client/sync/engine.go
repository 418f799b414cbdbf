package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	httpClient "github.com/hearthside/homekeeper/internal/client/api"
	"github.com/hearthside/homekeeper/internal/client/connectivity"
	"github.com/hearthside/homekeeper/internal/client/storage"
	"github.com/hearthside/homekeeper/internal/models"
	"github.com/hearthside/homekeeper/pkg/api"
)

// Engine state. Only one sync pass runs at a time; a trigger while syncing
// is coalesced, not queued.
const (
	stateIdle int32 = iota
	stateSyncing
)

// Engine orchestrates one full synchronization pass: drain the outbox
// against the transport, apply per-operation results to the local store,
// then pull and apply server deltas under the conflict rules.
type Engine struct {
	transport httpClient.ClientAPI
	entities  storage.EntityStorage
	outbox    storage.OutboxStorage
	meta      storage.MetadataStorage
	gate      connectivity.Gate
	logger    *slog.Logger

	mu          sync.Mutex
	subscribers map[int]func(Event)
	lastError   string
	nextSubID   int

	deviceName string
	state      atomic.Int32
}

// NewEngine creates a sync engine. All collaborators are required.
func NewEngine(
	transport httpClient.ClientAPI,
	entities storage.EntityStorage,
	outbox storage.OutboxStorage,
	meta storage.MetadataStorage,
	gate connectivity.Gate,
	deviceName string,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		transport:   transport,
		entities:    entities,
		outbox:      outbox,
		meta:        meta,
		gate:        gate,
		deviceName:  deviceName,
		logger:      logger,
		subscribers: make(map[int]func(Event)),
	}
}

// Result summarizes one sync pass.
type Result struct {
	StartedAt time.Time
	Duration  time.Duration
	Pushed    int // operations confirmed by the server
	Retried   int // operations that failed and stay queued
	Failed    int // operations abandoned after exhausting retries
	Conflicts int // entities that entered the Conflicted state
	Applied   int // pulled records applied locally
	Deleted   int // pulled deletions applied locally
}

// Syncing reports whether a pass is currently running.
func (e *Engine) Syncing() bool {
	return e.state.Load() == stateSyncing
}

// LastError returns the most recent pass-level error message, empty after
// a fully successful pass.
func (e *Engine) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastError
}

func (e *Engine) setLastError(msg string) {
	e.mu.Lock()
	e.lastError = msg
	e.mu.Unlock()
}

// Sync runs one full pass: push phase, then pull phase. A concurrent call
// returns ErrSyncInProgress immediately. An offline call returns
// ErrOffline without touching any queued operation.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	if !e.gate.Online() {
		return nil, ErrOffline
	}
	if !e.state.CompareAndSwap(stateIdle, stateSyncing) {
		return nil, ErrSyncInProgress
	}
	defer e.state.Store(stateIdle)

	result := &Result{StartedAt: time.Now()}
	e.publish(Event{Kind: EventSyncStarted})
	defer func() {
		result.Duration = time.Since(result.StartedAt)
		e.publish(Event{Kind: EventSyncFinished, Result: result, Message: e.LastError()})
	}()

	e.logger.Info("starting sync pass")

	if err := e.pushPhase(ctx, result); err != nil {
		e.setLastError(err.Error())
		e.logger.Warn("push phase aborted", "error", err)
		return result, err
	}

	if err := e.pullPhase(ctx, result); err != nil {
		e.setLastError(err.Error())
		e.logger.Warn("pull phase aborted", "error", err)
		return result, err
	}

	e.setLastError("")
	e.logger.Info("sync pass completed",
		"pushed", result.Pushed,
		"retried", result.Retried,
		"failed", result.Failed,
		"conflicts", result.Conflicts,
		"applied", result.Applied,
		"deleted", result.Deleted)

	return result, nil
}

// Start subscribes the engine to connectivity transitions: regaining
// connectivity with pending work queued triggers a pass. The returned
// function removes the subscription.
func (e *Engine) Start(ctx context.Context) (stop func()) {
	return e.gate.Subscribe(func(online bool) {
		if !online {
			return
		}
		pending, err := e.outbox.PendingCount(ctx)
		if err != nil {
			e.logger.Error("failed to read pending count", "error", err)
			return
		}
		if pending == 0 {
			return
		}
		go func() {
			if _, err := e.Sync(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
				e.logger.Warn("auto sync failed", "error", err)
			}
		}()
	})
}

// pushPhase drains the outbox in one batch request and applies the
// per-operation results. Any transport failure aborts the pass with the
// batch left queued untouched.
func (e *Engine) pushPhase(ctx context.Context, result *Result) error {
	batch, err := e.outbox.NextBatch(ctx)
	if err != nil {
		return fmt.Errorf("failed to read outbox: %w", err)
	}

	// Operations for conflicted entities wait for explicit resolution;
	// replaying them would only produce the same conflict again.
	ops := make([]*models.PendingOperation, 0, len(batch))
	for _, op := range batch {
		entity, err := e.entities.Get(ctx, op.LocalEntityID)
		if err == nil && entity.Status == models.StatusConflicted {
			continue
		}
		if err != nil && !errors.Is(err, storage.ErrEntityNotFound) {
			return fmt.Errorf("failed to load entity for operation %d: %w", op.ID, err)
		}
		ops = append(ops, op)
	}

	if len(ops) == 0 {
		return nil
	}

	req, err := e.buildPushRequest(ctx, ops)
	if err != nil {
		return err
	}

	resp, err := e.transport.Push(ctx, *req)
	if err != nil {
		// Batch-level failure is not evidence that any individual
		// operation was invalid: retry counters stay untouched.
		return fmt.Errorf("push request failed: %w", err)
	}

	results := make(map[string]api.OperationResult, len(resp.Results))
	for _, r := range resp.Results {
		results[r.LocalID] = r
	}

	for _, op := range ops {
		r, ok := results[op.LocalEntityID]
		if !ok {
			// Acknowledgement gap: the server did not answer for this
			// operation. Leave it queued for the next pass.
			e.logger.Warn("no result for submitted operation",
				"operation_id", op.ID, "local_id", op.LocalEntityID)
			continue
		}
		if err := e.applyPushResult(ctx, op, r, result); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) buildPushRequest(ctx context.Context, ops []*models.PendingOperation) (*api.PushRequest, error) {
	deviceID, err := e.meta.DeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device id: %w", err)
	}

	req := api.PushRequest{
		DeviceID:   deviceID,
		DeviceName: e.deviceName,
		Operations: make([]api.PushOperation, 0, len(ops)),
	}

	for _, op := range ops {
		pushOp := api.PushOperation{
			LocalID:       op.LocalEntityID,
			OperationType: string(op.Type),
			EntityType:    string(op.EntityType),
			ServerID:      op.ServerEntityID,
			ParentLocalID: op.ParentLocalID,
			CreatedAt:     op.CreatedAt,
		}

		entity, err := e.entities.Get(ctx, op.LocalEntityID)
		if err != nil && !errors.Is(err, storage.ErrEntityNotFound) {
			return nil, fmt.Errorf("failed to load entity %s: %w", op.LocalEntityID, err)
		}
		if entity != nil {
			version := entity.Version
			pushOp.Version = &version
			if pushOp.ServerID == nil {
				pushOp.ServerID = entity.ServerID
			}
		}

		parentID, err := e.resolveParent(ctx, op)
		if err != nil {
			return nil, err
		}
		pushOp.ParentServerID = parentID

		if len(op.Payload) > 0 {
			value, err := api.ParseValue(op.Payload)
			if err != nil {
				return nil, fmt.Errorf("invalid payload on operation %d: %w", op.ID, err)
			}
			pushOp.Data = &value
		}

		req.Operations = append(req.Operations, pushOp)
	}

	return &req, nil
}

// resolveParent returns the parent's server id for owned sub-entities,
// resolving through the parent's local id when the id was unknown at
// enqueue time (parent created offline).
func (e *Engine) resolveParent(ctx context.Context, op *models.PendingOperation) (*int64, error) {
	if op.ParentServerID != nil {
		return op.ParentServerID, nil
	}
	if op.ParentLocalID == "" {
		return nil, nil
	}

	parent, err := e.entities.Get(ctx, op.ParentLocalID)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve parent %s: %w", op.ParentLocalID, err)
	}
	return parent.ServerID, nil
}

func (e *Engine) applyPushResult(ctx context.Context, op *models.PendingOperation, r api.OperationResult, result *Result) error {
	switch r.Status {
	case api.StatusCreated, api.StatusUpdated, api.StatusToggled:
		serverID, ok := confirmedServerID(op, r)
		if !ok {
			e.logger.Warn("result missing server id, leaving operation queued",
				"operation_id", op.ID, "local_id", op.LocalEntityID)
			return nil
		}
		version, err := e.confirmedVersion(ctx, op, r)
		if err != nil {
			return err
		}
		if err := e.entities.MarkSynced(ctx, op.LocalEntityID, serverID, version, r.ServerUpdatedAt); err != nil {
			return fmt.Errorf("failed to mark %s synced: %w", op.LocalEntityID, err)
		}
		if r.Status == api.StatusCreated {
			if err := e.entities.AdoptParent(ctx, op.LocalEntityID, serverID); err != nil {
				return fmt.Errorf("failed to adopt parent id: %w", err)
			}
		}
		if err := e.outbox.RemoveOperation(ctx, op.ID); err != nil {
			return fmt.Errorf("failed to dequeue operation %d: %w", op.ID, err)
		}
		result.Pushed++

	case api.StatusDeleted:
		if err := e.entities.Remove(ctx, op.LocalEntityID); err != nil && !errors.Is(err, storage.ErrEntityNotFound) {
			return fmt.Errorf("failed to finalize delete of %s: %w", op.LocalEntityID, err)
		}
		if err := e.outbox.RemoveOperation(ctx, op.ID); err != nil {
			return fmt.Errorf("failed to dequeue operation %d: %w", op.ID, err)
		}
		result.Pushed++

	case api.StatusConflict:
		if err := e.flagConflict(ctx, op, r); err != nil {
			return err
		}
		result.Conflicts++

	case api.StatusError:
		if op.CanRetry() {
			if err := e.outbox.RecordFailure(ctx, op.ID, r.Error); err != nil {
				return fmt.Errorf("failed to record failure: %w", err)
			}
			result.Retried++
			return nil
		}
		// Retries exhausted: abandon the operation and park the entity
		// where the user can see and resolve it.
		if err := e.outbox.RemoveOperation(ctx, op.ID); err != nil {
			return fmt.Errorf("failed to dequeue operation %d: %w", op.ID, err)
		}
		note := "sync failed: " + r.Error
		if err := e.entities.MarkConflicted(ctx, op.LocalEntityID, nil, nil, note); err != nil && !errors.Is(err, storage.ErrEntityNotFound) {
			return fmt.Errorf("failed to mark %s conflicted: %w", op.LocalEntityID, err)
		}
		e.publish(Event{
			Kind:       EventOperationFailed,
			EntityType: op.EntityType,
			LocalID:    op.LocalEntityID,
			Message:    r.Error,
		})
		result.Failed++

	default:
		e.logger.Warn("unknown operation result status, leaving operation queued",
			"status", r.Status, "operation_id", op.ID)
	}

	return nil
}

// confirmedServerID picks the server id a confirmation applies.
func confirmedServerID(op *models.PendingOperation, r api.OperationResult) (int64, bool) {
	switch {
	case r.ServerID != nil:
		return *r.ServerID, true
	case op.ServerEntityID != nil:
		return *op.ServerEntityID, true
	default:
		return 0, false
	}
}

// confirmedVersion picks the version a confirmation applies: the server's
// reported version when present, otherwise the entity's current one. The
// version never moves backwards on a missing optional field.
func (e *Engine) confirmedVersion(ctx context.Context, op *models.PendingOperation, r api.OperationResult) (int64, error) {
	if r.Version != nil {
		return *r.Version, nil
	}
	entity, err := e.entities.Get(ctx, op.LocalEntityID)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return 1, nil
		}
		return 0, fmt.Errorf("failed to load entity %s: %w", op.LocalEntityID, err)
	}
	return entity.Version, nil
}

// pullPhase fetches server deltas since the watermark and applies them:
// deletions first, then updates, then the watermark advance. Only runs
// when the push phase completed without a transport abort.
func (e *Engine) pullPhase(ctx context.Context, result *Result) error {
	deviceID, err := e.meta.DeviceID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get device id: %w", err)
	}

	since, err := e.meta.LastSyncAt(ctx)
	if err != nil {
		return fmt.Errorf("failed to get watermark: %w", err)
	}
	sinceStr := ""
	if !since.IsZero() {
		sinceStr = since.UTC().Format(time.RFC3339)
	}

	types := models.AllEntityTypes()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}

	resp, err := e.transport.Pull(ctx, api.PullRequest{
		DeviceID: deviceID,
		Since:    sinceStr,
		Entities: names,
	})
	if err != nil {
		return fmt.Errorf("pull request failed: %w", err)
	}

	for _, t := range types {
		for _, serverID := range resp.Data.Deleted[string(t)] {
			if err := e.applyServerDeletion(ctx, t, serverID, result); err != nil {
				return err
			}
		}
	}

	for _, t := range types {
		for _, rec := range resp.Data.Updated[string(t)] {
			if err := e.applyServerRecord(ctx, t, rec, result); err != nil {
				return err
			}
		}
	}

	// The watermark comes from the server clock, so a skewed local clock
	// can neither miss nor replay deltas.
	if err := e.meta.SaveLastSyncAt(ctx, resp.ServerTime); err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}

	return nil
}

func (e *Engine) applyServerDeletion(ctx context.Context, t models.EntityType, serverID int64, result *Result) error {
	entity, err := e.entities.GetByServerID(ctx, t, serverID)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up %s %d: %w", t, serverID, err)
	}

	if entity.Status == models.StatusSynced {
		if err := e.entities.Remove(ctx, entity.LocalID); err != nil {
			return fmt.Errorf("failed to apply deletion of %s: %w", entity.LocalID, err)
		}
		result.Deleted++
		return nil
	}

	// A pending local edit on a server-deleted entity is a conflict, not
	// a silent delete.
	if err := e.entities.MarkConflicted(ctx, entity.LocalID, nil, nil, "deleted on server"); err != nil {
		return fmt.Errorf("failed to mark %s conflicted: %w", entity.LocalID, err)
	}
	e.publish(Event{
		Kind:       EventConflict,
		EntityType: t,
		LocalID:    entity.LocalID,
		Message:    "deleted on server",
	})
	result.Conflicts++
	return nil
}

func (e *Engine) applyServerRecord(ctx context.Context, t models.EntityType, rec api.Record, result *Result) error {
	payload, err := rec.Fields.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode pulled record %d: %w", rec.ServerID, err)
	}

	serverID := rec.ServerID
	updatedAt := rec.UpdatedAt
	incoming := &models.Entity{
		LocalID:         uuid.New().String(),
		Type:            t,
		ServerID:        &serverID,
		Version:         rec.Version,
		Payload:         payload,
		ParentServerID:  rec.ParentServerID,
		ServerUpdatedAt: &updatedAt,
	}

	// Link to the locally known parent when the server only sends the
	// parent's server id.
	if rec.ParentServerID != nil {
		if parentType, ok := t.ParentType(); ok {
			parent, err := e.entities.GetByServerID(ctx, parentType, *rec.ParentServerID)
			if err == nil {
				incoming.ParentLocalID = parent.LocalID
			} else if !errors.Is(err, storage.ErrEntityNotFound) {
				return fmt.Errorf("failed to resolve parent of %s %d: %w", t, rec.ServerID, err)
			}
		}
	}

	applied, err := e.entities.UpsertFromServer(ctx, incoming)
	if err != nil {
		return fmt.Errorf("failed to apply pulled record %d: %w", rec.ServerID, err)
	}
	if applied {
		result.Applied++
	}
	return nil
}
