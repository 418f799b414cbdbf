package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hearthside/homekeeper/internal/models"
	"github.com/hearthside/homekeeper/pkg/api"
)

// Resolution is the user's verdict on a conflicted entity. The engine
// never merges on its own: it surfaces the divergence and waits.
type Resolution string

const (
	// KeepMine discards the server state and re-stages the local payload
	// for push under the server's current version.
	KeepMine Resolution = "keep-mine"

	// TakeTheirs discards the local pending edit and adopts the server
	// snapshot (or the server's deletion).
	TakeTheirs Resolution = "take-theirs"
)

// Conflict describes one unresolved divergence for the UI.
type Conflict struct {
	EntityType models.EntityType
	LocalID    string
	Note       string
	LocalData  json.RawMessage
	ServerData json.RawMessage
}

// flagConflict parks the entity behind a version-mismatch push result.
// The queued operation stays in the outbox (it is skipped while the
// entity is conflicted) until resolution decides its fate.
func (e *Engine) flagConflict(ctx context.Context, op *models.PendingOperation, r api.OperationResult) error {
	var snapshot json.RawMessage
	if r.Data != nil {
		data, err := r.Data.MarshalJSON()
		if err != nil {
			return fmt.Errorf("failed to encode conflict snapshot: %w", err)
		}
		snapshot = data
	}

	note := "version mismatch"
	if r.Error != "" {
		note = r.Error
	}

	if err := e.entities.MarkConflicted(ctx, op.LocalEntityID, snapshot, r.Version, note); err != nil {
		return fmt.Errorf("failed to mark %s conflicted: %w", op.LocalEntityID, err)
	}

	e.publish(Event{
		Kind:       EventConflict,
		EntityType: op.EntityType,
		LocalID:    op.LocalEntityID,
		Message:    note,
	})

	return nil
}

// Conflicts lists all unresolved conflicts with both sides of the data.
func (e *Engine) Conflicts(ctx context.Context) ([]Conflict, error) {
	entities, err := e.entities.ListByStatus(ctx, models.StatusConflicted)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}

	conflicts := make([]Conflict, 0, len(entities))
	for _, entity := range entities {
		conflicts = append(conflicts, Conflict{
			EntityType: entity.Type,
			LocalID:    entity.LocalID,
			Note:       entity.ConflictNote,
			LocalData:  entity.Payload,
			ServerData: entity.ConflictSnapshot,
		})
	}

	return conflicts, nil
}

// Resolve applies the user's decision to a conflicted entity.
func (e *Engine) Resolve(ctx context.Context, localID string, choice Resolution) error {
	entity, err := e.entities.Get(ctx, localID)
	if err != nil {
		return fmt.Errorf("failed to load entity: %w", err)
	}
	if entity.Status != models.StatusConflicted {
		return ErrNotConflicted
	}

	switch choice {
	case TakeTheirs:
		return e.resolveTakeTheirs(ctx, entity)
	case KeepMine:
		return e.resolveKeepMine(ctx, entity)
	default:
		return fmt.Errorf("unknown resolution %q", choice)
	}
}

func (e *Engine) resolveTakeTheirs(ctx context.Context, entity *models.Entity) error {
	if _, err := e.outbox.RemoveForEntity(ctx, entity.LocalID); err != nil {
		return fmt.Errorf("failed to drop queued operations: %w", err)
	}

	// No snapshot and a server-side deletion means "theirs" is absence.
	if entity.ConflictNote == "deleted on server" {
		if err := e.entities.Remove(ctx, entity.LocalID); err != nil {
			return fmt.Errorf("failed to remove entity: %w", err)
		}
		e.logger.Info("conflict resolved, server deletion adopted", "local_id", entity.LocalID)
		return nil
	}

	if len(entity.ConflictSnapshot) == 0 || entity.ServerID == nil {
		return ErrSnapshotUnknown
	}

	version := entity.Version
	if entity.ConflictVersion != nil {
		version = *entity.ConflictVersion
	}

	if _, err := e.entities.StageChange(ctx, entity.LocalID, entity.ConflictSnapshot); err != nil {
		return fmt.Errorf("failed to adopt server payload: %w", err)
	}
	if err := e.entities.MarkSynced(ctx, entity.LocalID, *entity.ServerID, version, nil); err != nil {
		return fmt.Errorf("failed to mark resolved entity synced: %w", err)
	}

	e.logger.Info("conflict resolved, server state adopted",
		"local_id", entity.LocalID, "version", version)
	return nil
}

func (e *Engine) resolveKeepMine(ctx context.Context, entity *models.Entity) error {
	// The server deleted the record: keeping the local edit means
	// re-creating it from scratch.
	if entity.ConflictNote == "deleted on server" {
		if err := e.entities.ResetToLocal(ctx, entity.LocalID); err != nil {
			return fmt.Errorf("failed to reset entity: %w", err)
		}
		method, endpoint := models.RouteFor(entity.Type, models.OpCreate, nil, entity.ParentServerID)
		op := &models.PendingOperation{
			Type:           models.OpCreate,
			EntityType:     entity.Type,
			LocalEntityID:  entity.LocalID,
			ParentLocalID:  entity.ParentLocalID,
			ParentServerID: entity.ParentServerID,
			Endpoint:       endpoint,
			Method:         method,
			Payload:        entity.Payload,
		}
		if err := e.outbox.Enqueue(ctx, op); err != nil {
			return fmt.Errorf("failed to enqueue re-create: %w", err)
		}
		e.logger.Info("conflict resolved, local edit re-created", "local_id", entity.LocalID)
		return nil
	}

	if entity.ServerID == nil {
		return fmt.Errorf("conflicted entity %s has no server identity", entity.LocalID)
	}

	// Adopt the server's version number so the re-pushed update is likely
	// to pass the optimistic concurrency check, then re-stage the local
	// payload as a fresh pending update.
	version := entity.Version
	if entity.ConflictVersion != nil {
		version = *entity.ConflictVersion
	}
	if err := e.entities.MarkSynced(ctx, entity.LocalID, *entity.ServerID, version, nil); err != nil {
		return fmt.Errorf("failed to adopt server version: %w", err)
	}
	if _, err := e.entities.StageChange(ctx, entity.LocalID, entity.Payload); err != nil {
		return fmt.Errorf("failed to re-stage local payload: %w", err)
	}

	method, endpoint := models.RouteFor(entity.Type, models.OpUpdate, entity.ServerID, entity.ParentServerID)
	op := &models.PendingOperation{
		Type:           models.OpUpdate,
		EntityType:     entity.Type,
		LocalEntityID:  entity.LocalID,
		ServerEntityID: entity.ServerID,
		ParentLocalID:  entity.ParentLocalID,
		ParentServerID: entity.ParentServerID,
		Endpoint:       endpoint,
		Method:         method,
		Payload:        entity.Payload,
	}
	if err := e.outbox.Enqueue(ctx, op); err != nil {
		return fmt.Errorf("failed to enqueue update: %w", err)
	}

	e.logger.Info("conflict resolved, local edit kept",
		"local_id", entity.LocalID, "version", version)
	return nil
}
