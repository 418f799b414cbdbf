package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hearthside/homekeeper/internal/models"
)

// EntityStorage is the single source of truth for cached domain entities.
// All reads by the presentation layer and all mutation staging for sync go
// through it; sync status transitions happen only here.
type EntityStorage interface {
	// CreateLocal inserts a locally created entity as PendingCreate with
	// version 1 and stamps its local timestamps.
	CreateLocal(ctx context.Context, entity *models.Entity) error

	// Get retrieves an entity by local id.
	// Returns ErrEntityNotFound if it doesn't exist.
	Get(ctx context.Context, localID string) (*models.Entity, error)

	// GetByServerID retrieves an entity by its server identity.
	// Returns ErrEntityNotFound if no local record carries that server id.
	GetByServerID(ctx context.Context, entityType models.EntityType, serverID int64) (*models.Entity, error)

	// ListActive returns entities of the given type, excluding those staged
	// for deletion.
	ListActive(ctx context.Context, entityType models.EntityType) ([]*models.Entity, error)

	// ListByStatus returns all entities in the given sync status.
	ListByStatus(ctx context.Context, status models.SyncStatus) ([]*models.Entity, error)

	// ListChildren returns active entities owned by the given parent.
	ListChildren(ctx context.Context, parentLocalID string) ([]*models.Entity, error)

	// StageChange replaces the payload and marks the entity PendingUpdate
	// (PendingCreate if it has no server identity yet). Idempotent: staging
	// the same payload twice yields the same state.
	StageChange(ctx context.Context, localID string, payload json.RawMessage) (*models.Entity, error)

	// StageDelete marks the entity PendingDelete. The record stays on disk,
	// filtered from active queries, until the server confirms the deletion.
	StageDelete(ctx context.Context, localID string) (*models.Entity, error)

	// UpsertFromServer applies one pulled server record. A missing local
	// record is inserted as Synced. A Synced record is overwritten unless
	// the incoming version is lower than the stored one. A record with a
	// pending local edit is left untouched (the local intent wins until
	// pushed); a Conflicted record only has its server snapshot refreshed.
	// Returns whether the local payload was replaced.
	UpsertFromServer(ctx context.Context, incoming *models.Entity) (bool, error)

	// MarkSynced records a confirmed push or pull for the entity: attaches
	// the server id, updates the version and clears any pending state.
	MarkSynced(ctx context.Context, localID string, serverID, version int64, serverUpdatedAt *time.Time) error

	// MarkConflicted parks the entity in the Conflicted state, retaining
	// the server snapshot and version (either may be absent when not yet
	// known) and a note for the UI. Never resolves anything by itself.
	MarkConflicted(ctx context.Context, localID string, snapshot json.RawMessage, serverVersion *int64, note string) error

	// AdoptParent fans a freshly assigned parent server id out to all
	// children that reference the parent by local id.
	AdoptParent(ctx context.Context, parentLocalID string, parentServerID int64) error

	// ResetToLocal strips the entity's server identity and re-stages it as
	// a fresh PendingCreate. Used when the user keeps a local edit to a
	// record the server has deleted.
	ResetToLocal(ctx context.Context, localID string) error

	// Remove deletes the local record outright (confirmed server deletion,
	// or discarding a never-pushed local create).
	Remove(ctx context.Context, localID string) error

	// CountByStatus reports how many entities sit in the given status.
	CountByStatus(ctx context.Context, status models.SyncStatus) (int, error)
}
