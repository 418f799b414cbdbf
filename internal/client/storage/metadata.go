package storage

import (
	"context"
	"time"
)

// MetadataStorage holds the small device-scoped state the sync engine owns.
type MetadataStorage interface {
	// DeviceID returns the stable device identifier, generating and
	// persisting one on first use.
	DeviceID(ctx context.Context) (string, error)

	// LastSyncAt retrieves the watermark of the last fully successful sync
	// pass. Returns the zero time if no sync has completed yet.
	LastSyncAt(ctx context.Context) (time.Time, error)

	// SaveLastSyncAt persists the watermark.
	SaveLastSyncAt(ctx context.Context, t time.Time) error
}
