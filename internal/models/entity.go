package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityType identifies a synchronized domain type.
type EntityType string

const (
	EntityShoppingList EntityType = "shopping_list"
	EntityShoppingItem EntityType = "shopping_item"
	EntityGoal         EntityType = "goal"
	EntityGoalTask     EntityType = "goal_task"
	EntityAsset        EntityType = "asset"
)

// AllEntityTypes returns every tracked entity type, in pull-request order.
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityShoppingList,
		EntityShoppingItem,
		EntityGoal,
		EntityGoalTask,
		EntityAsset,
	}
}

// SyncStatus is the per-entity sync state machine. Transitions are driven
// only by the storage mutation API and by sync result application.
type SyncStatus string

const (
	StatusSynced        SyncStatus = "synced"
	StatusPendingCreate SyncStatus = "pending_create"
	StatusPendingUpdate SyncStatus = "pending_update"
	StatusPendingDelete SyncStatus = "pending_delete"
	StatusConflicted    SyncStatus = "conflicted"
)

// IsPending reports whether the entity holds a not-yet-pushed local change.
func (s SyncStatus) IsPending() bool {
	return s == StatusPendingCreate || s == StatusPendingUpdate || s == StatusPendingDelete
}

// Entity is the envelope stored for every cached domain record: sync
// metadata plus the typed payload serialized as JSON.
type Entity struct {
	LocalUpdatedAt   time.Time
	CreatedAt        time.Time
	LastSyncedAt     *time.Time
	ServerUpdatedAt  *time.Time
	ServerID         *int64
	ParentServerID   *int64
	ConflictVersion  *int64
	LocalID          string
	Type             EntityType
	Status           SyncStatus
	ParentLocalID    string
	ConflictNote     string
	Payload          json.RawMessage
	ConflictSnapshot json.RawMessage
	Version          int64
}

// ID returns the entity's identity as a sum type: remote once the server
// has assigned an id, local otherwise.
func (e *Entity) ID() EntityID {
	if e.ServerID != nil {
		return RemoteID(*e.ServerID)
	}
	return LocalID(e.LocalID)
}

// DecodePayload unmarshals the stored payload into dst.
func (e *Entity) DecodePayload(dst any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("entity %s has no payload", e.LocalID)
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// SetPayload marshals v and stores it as the entity payload.
func (e *Entity) SetPayload(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", e.Type, err)
	}
	e.Payload = data
	return nil
}
