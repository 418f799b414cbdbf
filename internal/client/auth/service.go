package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	httpClient "github.com/hearthside/homekeeper/internal/client/api"
	"github.com/hearthside/homekeeper/internal/client/storage"
	pkgapi "github.com/hearthside/homekeeper/pkg/api"
)

// ErrNotAuthenticated indicates no usable session exists on this device.
var ErrNotAuthenticated = errors.New("not authenticated")

// Service handles login, logout and token access for the device.
type Service struct {
	apiClient httpClient.ClientAPI
	sessions  storage.SessionStorage
	meta      storage.MetadataStorage
	logger    *slog.Logger
}

// NewService creates a new auth service.
func NewService(apiClient httpClient.ClientAPI, sessions storage.SessionStorage, meta storage.MetadataStorage, logger *slog.Logger) *Service {
	return &Service{
		apiClient: apiClient,
		sessions:  sessions,
		meta:      meta,
		logger:    logger,
	}
}

// SetClient injects the API client after construction. The client itself
// depends on Token as its token source, so construction is two-phase.
func (s *Service) SetClient(c httpClient.ClientAPI) {
	s.apiClient = c
}

// Login authenticates against the server and persists the session.
func (s *Service) Login(ctx context.Context, email, password, deviceName string) error {
	deviceID, err := s.meta.DeviceID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get device id: %w", err)
	}

	resp, err := s.apiClient.Login(ctx, pkgapi.LoginRequest{
		Email:      email,
		Password:   password,
		DeviceID:   deviceID,
		DeviceName: deviceName,
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	session := &storage.Session{
		Email:        email,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix(),
	}
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info("logged in", "email", email, "device_id", deviceID)
	return nil
}

// Logout removes the stored session.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.sessions.DeleteSession(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Token returns a currently valid access token.
// Returns ErrNotAuthenticated when no session exists or it has expired.
func (s *Service) Token(ctx context.Context) (string, error) {
	session, err := s.sessions.GetSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return "", ErrNotAuthenticated
		}
		return "", fmt.Errorf("failed to load session: %w", err)
	}

	if expired(session) {
		return "", fmt.Errorf("%w: access token expired", ErrNotAuthenticated)
	}

	return session.AccessToken, nil
}

// expired prefers the exp claim inside the token itself; the stored
// expiry is the fallback for opaque tokens. The signature is not checked
// client-side, the server owns the key.
func expired(session *storage.Session) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(session.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return time.Now().After(exp.Time)
		}
	}
	return session.ExpiresAt > 0 && time.Now().Unix() >= session.ExpiresAt
}
