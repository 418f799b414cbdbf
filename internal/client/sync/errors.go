package sync

import "errors"

var (
	// ErrOffline indicates a sync was requested with no connectivity; the
	// pass is skipped entirely and no queued operations are touched.
	ErrOffline = errors.New("device is offline")

	// ErrSyncInProgress indicates another sync pass is already running.
	// Triggers are coalesced, not queued: the caller should not block.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrNotConflicted indicates a resolution was requested for an entity
	// that is not in the Conflicted state.
	ErrNotConflicted = errors.New("entity is not conflicted")

	// ErrSnapshotUnknown indicates "take theirs" was chosen before the
	// server snapshot arrived; a sync pass will backfill it.
	ErrSnapshotUnknown = errors.New("server snapshot not yet known, sync first")
)
