package storage

import (
	"context"

	"github.com/hearthside/homekeeper/internal/models"
)

// OutboxStorage is the durable queue of not-yet-confirmed mutations,
// ordered for safe replay. A mutation is only "saved" from the user's point
// of view once it is either confirmed by the server or durably queued here.
type OutboxStorage interface {
	// Enqueue inserts the operation, first removing any pending operation
	// for the same entity so that only the latest intent is ever replayed.
	// The store assigns the id, priority class and creation time.
	Enqueue(ctx context.Context, op *models.PendingOperation) error

	// NextBatch returns all pending operations ordered by
	// (priority ascending, creation order ascending): toggles first,
	// creates/updates next, deletes last.
	NextBatch(ctx context.Context) ([]*models.PendingOperation, error)

	// RecordFailure increments the retry counter and stores the error for
	// the next pass.
	RecordFailure(ctx context.Context, id int64, message string) error

	// RemoveOperation drops the operation on confirmed success or terminal
	// failure.
	RemoveOperation(ctx context.Context, id int64) error

	// RemoveForEntity drops every pending operation for the entity.
	// Returns how many were removed.
	RemoveForEntity(ctx context.Context, localEntityID string) (int, error)

	// PendingCount reports the total number of queued operations.
	PendingCount(ctx context.Context) (int, error)

	// CountForEntity reports queued operations for one entity.
	CountForEntity(ctx context.Context, localEntityID string) (int, error)

	// HasPending reports whether the entity has a queued operation. Used by
	// the UI for "pending sync" indicators.
	HasPending(ctx context.Context, localEntityID string) (bool, error)
}
