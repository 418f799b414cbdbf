package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/hearthside/homekeeper/internal/models"
)

// Status is the read-only view the UI is shown: counts and the last
// pass-level error, never raw transport failures.
type Status struct {
	LastSyncAt time.Time
	LastError  string
	Pending    int
	Conflicts  int
	Syncing    bool
}

// Status reports the engine's current externally visible state.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	pending, err := e.outbox.PendingCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending operations: %w", err)
	}

	conflicts, err := e.entities.CountByStatus(ctx, models.StatusConflicted)
	if err != nil {
		return nil, fmt.Errorf("failed to count conflicts: %w", err)
	}

	lastSync, err := e.meta.LastSyncAt(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read watermark: %w", err)
	}

	return &Status{
		Pending:    pending,
		Conflicts:  conflicts,
		LastSyncAt: lastSync,
		LastError:  e.LastError(),
		Syncing:    e.Syncing(),
	}, nil
}
