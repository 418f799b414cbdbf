package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthside/homekeeper/internal/client/storage"
)

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	s, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestMetadata_DeviceID_Stable(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	first, err := s.DeviceID(ctx)
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	require.NoError(t, err)

	second, err := s.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMetadata_LastSyncAt(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	// Never synced: zero time requests a full pull.
	got, err := s.LastSyncAt(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	watermark := time.Date(2026, 8, 20, 12, 30, 0, 0, time.UTC)
	require.NoError(t, s.SaveLastSyncAt(ctx, watermark))

	got, err = s.LastSyncAt(ctx)
	require.NoError(t, err)
	assert.Equal(t, watermark, got)
}

func TestSession_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	_, err := s.GetSession(ctx)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)

	session := &storage.Session{
		Email:        "casey@example.com",
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}
	require.NoError(t, s.SaveSession(ctx, session))

	got, err := s.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, session, got)

	require.NoError(t, s.DeleteSession(ctx))
	_, err = s.GetSession(ctx)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}
