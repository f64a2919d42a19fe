package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/models"
)

type fakeRefreshStore struct {
	rows map[string]*models.RefreshToken
}

func newFakeRefreshStore() *fakeRefreshStore {
	return &fakeRefreshStore{rows: make(map[string]*models.RefreshToken)}
}

func (f *fakeRefreshStore) Create(_ context.Context, t *models.RefreshToken) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	f.rows[t.Token] = t
	return nil
}

func (f *fakeRefreshStore) Consume(_ context.Context, token string) (*models.RefreshToken, error) {
	row, ok := f.rows[token]
	if !ok || row.ExpiresAt.Before(time.Now()) {
		return nil, ErrInvalidRefreshToken
	}
	row.LastUsedAt = time.Now()
	return row, nil
}

func (f *fakeRefreshStore) Delete(_ context.Context, token string) error {
	delete(f.rows, token)
	return nil
}

type fakeDirectory struct {
	users map[uuid.UUID]*models.User
}

func (f *fakeDirectory) GetUserGlobal(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func testUser() *models.User {
	return &models.User{
		ID:       uuid.New(),
		TenantID: "acme",
		Email:    "jamie@acme.test",
		Username: "jamie",
		IsActive: true,
	}
}

func newIssuer(store *fakeRefreshStore, dir *fakeDirectory) *SessionIssuer {
	jwt := NewJWTService("test-secret", 15*time.Minute)
	return NewSessionIssuer(jwt, store, dir, 7*24*time.Hour, 30*24*time.Hour, zap.NewNop())
}

func TestGenerateTokenPair(t *testing.T) {
	store := newFakeRefreshStore()
	user := testUser()
	issuer := newIssuer(store, &fakeDirectory{users: map[uuid.UUID]*models.User{user.ID: user}})

	pair, err := issuer.GenerateTokenPair(context.Background(), user, false, SessionMeta{DeviceInfo: "cli"})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.EqualValues(t, 15*60, pair.AccessTokenExpiresIn)
	assert.EqualValues(t, 7*24*3600, pair.RefreshTokenExpiresIn)

	row := store.rows[pair.RefreshToken]
	require.NotNil(t, row)
	assert.Equal(t, user.ID, row.UserID)
	assert.False(t, row.RememberMe)

	claims, err := NewJWTService("test-secret", 15*time.Minute).Validate(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "acme", claims.TenantID)
}

func TestRememberMeExtendsRefreshHorizon(t *testing.T) {
	store := newFakeRefreshStore()
	user := testUser()
	issuer := newIssuer(store, &fakeDirectory{users: map[uuid.UUID]*models.User{user.ID: user}})

	pair, err := issuer.GenerateTokenPair(context.Background(), user, true, SessionMeta{})
	require.NoError(t, err)
	assert.EqualValues(t, 30*24*3600, pair.RefreshTokenExpiresIn)
	assert.True(t, store.rows[pair.RefreshToken].RememberMe)
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	store := newFakeRefreshStore()
	user := testUser()
	issuer := newIssuer(store, &fakeDirectory{users: map[uuid.UUID]*models.User{user.ID: user}})

	pair, err := issuer.GenerateTokenPair(context.Background(), user, false, SessionMeta{})
	require.NoError(t, err)

	refreshed, got, err := issuer.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, pair.RefreshToken, refreshed.RefreshToken, "refresh token is not rotated")
	assert.NotEmpty(t, refreshed.AccessToken)
}

func TestRefreshRejectsUnknownToken(t *testing.T) {
	issuer := newIssuer(newFakeRefreshStore(), &fakeDirectory{users: map[uuid.UUID]*models.User{}})
	_, _, err := issuer.Refresh(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshRejectsDeactivatedUser(t *testing.T) {
	store := newFakeRefreshStore()
	user := testUser()
	dir := &fakeDirectory{users: map[uuid.UUID]*models.User{user.ID: user}}
	issuer := newIssuer(store, dir)

	pair, err := issuer.GenerateTokenPair(context.Background(), user, false, SessionMeta{})
	require.NoError(t, err)

	user.IsActive = false
	_, _, err = issuer.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRevokeInvalidatesToken(t *testing.T) {
	store := newFakeRefreshStore()
	user := testUser()
	issuer := newIssuer(store, &fakeDirectory{users: map[uuid.UUID]*models.User{user.ID: user}})

	pair, err := issuer.GenerateTokenPair(context.Background(), user, false, SessionMeta{})
	require.NoError(t, err)

	require.NoError(t, issuer.Revoke(context.Background(), pair.RefreshToken))
	_, _, err = issuer.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// revoking again is a no-op
	assert.NoError(t, issuer.Revoke(context.Background(), pair.RefreshToken))
}
