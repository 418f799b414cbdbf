package cli

import (
	"context"
	"fmt"
	"time"
)

// parseDateFlag parses an optional YYYY-MM-DD flag value.
func parseDateFlag(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return &parsed, nil
}

// pendingMarker returns the suffix shown next to rows with queued changes.
func pendingMarker(ctx context.Context, a *app, localID string) string {
	pending, err := a.data.HasPendingSync(ctx, localID)
	if err != nil || !pending {
		return ""
	}
	return " *"
}
