package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/models"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/utils"
)

// SessionMeta carries client metadata recorded with a refresh token.
type SessionMeta struct {
	DeviceInfo string
	IPAddress  string
	UserAgent  string
}

// TokenPair is the session issued to a client: a short-lived signed access
// token and a persisted opaque refresh token. ExpiresIn values are seconds.
type TokenPair struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	AccessTokenExpiresIn  int64  `json:"access_token_expires_in"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
}

// RefreshStore is the refresh-token persistence the issuer depends on.
type RefreshStore interface {
	Create(ctx context.Context, t *models.RefreshToken) error
	Consume(ctx context.Context, token string) (*models.RefreshToken, error)
	Delete(ctx context.Context, token string) error
}

// BootstrapDirectory resolves the owning user of a refresh token. Refresh
// runs before any tenant context exists (the token itself is what tells us
// the tenant), so this lookup is unscoped and must stay session-internal.
type BootstrapDirectory interface {
	GetUserGlobal(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// SessionIssuer creates token pairs for both password login and SSO.
type SessionIssuer struct {
	jwt         *JWTService
	store       RefreshStore
	users       BootstrapDirectory
	refreshTTL  time.Duration // plain sessions
	rememberTTL time.Duration // "remember me" sessions
	logger      *zap.Logger
}

// NewSessionIssuer creates a session issuer.
func NewSessionIssuer(jwt *JWTService, store RefreshStore, users BootstrapDirectory, refreshTTL, rememberTTL time.Duration, logger *zap.Logger) *SessionIssuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionIssuer{jwt: jwt, store: store, users: users, refreshTTL: refreshTTL, rememberTTL: rememberTTL, logger: logger}
}

// GenerateTokenPair issues an access token and persists a refresh token for
// the user. rememberMe selects the long expiry horizon.
func (s *SessionIssuer) GenerateTokenPair(ctx context.Context, user *models.User, rememberMe bool, meta SessionMeta) (*TokenPair, error) {
	access, err := s.jwt.Generate(user.ID, user.TenantID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshTTL := s.refreshTTL
	if rememberMe {
		refreshTTL = s.rememberTTL
	}
	opaque, err := utils.RandomToken(32)
	if err != nil {
		return nil, err
	}
	row := &models.RefreshToken{
		Token:      opaque,
		UserID:     user.ID,
		DeviceInfo: meta.DeviceInfo,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		RememberMe: rememberMe,
		ExpiresAt:  time.Now().Add(refreshTTL),
	}
	if err := s.store.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	s.logger.Debug("session issued",
		zap.String("user_id", user.ID.String()),
		zap.String("tenant_id", user.TenantID),
		zap.Bool("remember_me", rememberMe))

	return &TokenPair{
		AccessToken:           access,
		RefreshToken:          opaque,
		AccessTokenExpiresIn:  int64(s.jwt.AccessTTL().Seconds()),
		RefreshTokenExpiresIn: int64(refreshTTL.Seconds()),
	}, nil
}

// Refresh exchanges a live refresh token for a new access token. The refresh
// token itself stays valid until its original horizon. Expired, unknown and
// revoked tokens all fail with ErrInvalidRefreshToken.
func (s *SessionIssuer) Refresh(ctx context.Context, token string) (*TokenPair, *models.User, error) {
	row, err := s.store.Consume(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	u, err := s.users.GetUserGlobal(ctx, row.UserID)
	if err != nil || !u.IsActive {
		return nil, nil, ErrInvalidRefreshToken
	}
	access, err := s.jwt.Generate(u.ID, u.TenantID, u.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("sign access token: %w", err)
	}
	return &TokenPair{
		AccessToken:           access,
		RefreshToken:          token,
		AccessTokenExpiresIn:  int64(s.jwt.AccessTTL().Seconds()),
		RefreshTokenExpiresIn: int64(time.Until(row.ExpiresAt).Seconds()),
	}, u, nil
}

// Revoke deletes a refresh token (logout). Idempotent.
func (s *SessionIssuer) Revoke(ctx context.Context, token string) error {
	return s.store.Delete(ctx, token)
}
