package tenants

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/auth"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/models"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/tenantctx"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeSecretDir struct {
	tenants map[string]*models.TenantWithSecret
}

func (f *fakeSecretDir) GetWithSecret(_ context.Context, id string) (*models.TenantWithSecret, error) {
	t, ok := f.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

type fakeUserStore struct {
	byExternal map[string]*models.User
	created    int
	updated    int
}

func (f *fakeUserStore) FindByExternal(ctx context.Context, externalID, externalSystem string) (*models.User, error) {
	if _, err := tenantctx.Current(ctx); err != nil {
		return nil, err
	}
	u, ok := f.byExternal[externalSystem+"/"+externalID]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserStore) CreateFederated(_ context.Context, u *models.User) error {
	u.ID = uuid.New()
	f.byExternal[u.ExternalSystem+"/"+u.ExternalID] = u
	f.created++
	return nil
}

func (f *fakeUserStore) UpdateFromAssertion(_ context.Context, u *models.User) error {
	f.updated++
	return nil
}

type fakeIssuer struct{}

func (fakeIssuer) GenerateTokenPair(ctx context.Context, user *models.User, _ bool, _ auth.SessionMeta) (*auth.TokenPair, error) {
	if _, err := tenantctx.Current(ctx); err != nil {
		return nil, err
	}
	return &auth.TokenPair{
		AccessToken:           "access-" + user.ID.String(),
		RefreshToken:          "refresh-" + user.ID.String(),
		AccessTokenExpiresIn:  900,
		RefreshTokenExpiresIn: 86400,
	}, nil
}

func activeTenant() *models.TenantWithSecret {
	return &models.TenantWithSecret{
		Tenant: models.Tenant{
			ID:             "acme",
			Name:           "Acme Corp",
			AllowedOrigins: []string{"https://app.acme.test"},
			Status:         models.TenantStatusVerified,
			IsActive:       true,
		},
		Secret: testSecret,
	}
}

func signToken(t *testing.T, secret string, payload map[string]any) (string, string) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	token := base64.StdEncoding.EncodeToString(raw)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(token))
	return token, hex.EncodeToString(mac.Sum(nil))
}

func validPayload() map[string]any {
	return map[string]any{
		"tenantId":       "acme",
		"tenantUserId":   "crm-user-42",
		"email":          "jamie@acme.test",
		"externalSystem": "crm",
		"displayName":    "Jamie R",
		"exp":            time.Now().Add(5 * time.Minute).Unix(),
		"iat":            time.Now().Unix(),
	}
}

func newSSORouter(dir *fakeSecretDir, users *fakeUserStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewSSOHandler(dir, users, fakeIssuer{}, zap.NewNop())
	r := gin.New()
	r.POST("/api/v1/tenants/sso/init", h.Exchange)
	return r
}

func postSSO(r *gin.Engine, token, signature, origin string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(gin.H{"token": token, "signature": signature})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tenants/sso/init", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSSOExchangeProvisionsUser(t *testing.T) {
	dir := &fakeSecretDir{tenants: map[string]*models.TenantWithSecret{"acme": activeTenant()}}
	users := &fakeUserStore{byExternal: map[string]*models.User{}}
	r := newSSORouter(dir, users)

	token, sig := signToken(t, testSecret, validPayload())
	w := postSSO(r, token, sig, "https://app.acme.test")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, users.created)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
			User         struct {
				Username    string `json:"username"`
				DisplayName string `json:"display_name"`
				Email       string `json:"email"`
			} `json:"user"`
			Tenant struct {
				ID string `json:"id"`
			} `json:"tenant"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Data.AccessToken)
	assert.NotEmpty(t, resp.Data.RefreshToken)
	assert.Equal(t, "acme", resp.Data.Tenant.ID)
	assert.Equal(t, "jamie-crm-user", resp.Data.User.Username)
	assert.Equal(t, "Jamie R", resp.Data.User.DisplayName)
}

func TestSSOExchangeIdempotentRepost(t *testing.T) {
	dir := &fakeSecretDir{tenants: map[string]*models.TenantWithSecret{"acme": activeTenant()}}
	users := &fakeUserStore{byExternal: map[string]*models.User{}}
	r := newSSORouter(dir, users)

	token, sig := signToken(t, testSecret, validPayload())
	w1 := postSSO(r, token, sig, "https://app.acme.test")
	w2 := postSSO(r, token, sig, "https://app.acme.test")

	require.Equal(t, http.StatusOK, w1.Code)
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, 1, users.created, "second exchange must reuse the provisioned user")
	assert.Equal(t, 1, users.updated, "second exchange refreshes the profile instead")
}

func TestSSOExchangeRejectsTamperedSignature(t *testing.T) {
	dir := &fakeSecretDir{tenants: map[string]*models.TenantWithSecret{"acme": activeTenant()}}
	users := &fakeUserStore{byExternal: map[string]*models.User{}}
	r := newSSORouter(dir, users)

	token, sig := signToken(t, testSecret, validPayload())
	// flip the first hex digit
	flipped := "0" + sig[1:]
	if sig[0] == '0' {
		flipped = "1" + sig[1:]
	}
	w := postSSO(r, token, flipped, "https://app.acme.test")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, users.created)
}

func TestSSOExchangeRejectsWrongSecret(t *testing.T) {
	dir := &fakeSecretDir{tenants: map[string]*models.TenantWithSecret{"acme": activeTenant()}}
	users := &fakeUserStore{byExternal: map[string]*models.User{}}
	r := newSSORouter(dir, users)

	token, sig := signToken(t, "some-other-secret", validPayload())
	w := postSSO(r, token, sig, "https://app.acme.test")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSSOExchangeRejectsExpiredToken(t *testing.T) {
	dir := &fakeSecretDir{tenants: map[string]*models.TenantWithSecret{"acme": activeTenant()}}
	users := &fakeUserStore{byExternal: map[string]*models.User{}}
	r := newSSORouter(dir, users)

	p := validPayload()
	p["exp"] = time.Now().Add(-time.Minute).Unix()
	token, sig := signToken(t, testSecret, p)
	w := postSSO(r, token, sig, "https://app.acme.test")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSSOExchangeRejectsFutureIssuedToken(t *testing.T) {
	dir := &fakeSecretDir{tenants: map[string]*models.TenantWithSecret{"acme": activeTenant()}}
	users := &fakeUserStore{byExternal: map[string]*models.User{}}
	r := newSSORouter(dir, users)

	p := validPayload()
	p["iat"] = time.Now().Add(10 * time.Minute).Unix()
	token, sig := signToken(t, testSecret, p)
	w := postSSO(r, token, sig, "https://app.acme.test")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSSOExchangeRejectsMissingFields(t *testing.T) {
	dir := &fakeSecretDir{tenants: map[string]*models.TenantWithSecret{"acme": activeTenant()}}
	users := &fakeUserStore{byExternal: map[string]*models.User{}}
	r := newSSORouter(dir, users)

	p := validPayload()
	delete(p, "tenantUserId")
	token, sig := signToken(t, testSecret, p)
	w := postSSO(r, token, sig, "https://app.acme.test")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSSOExchangeRejectsMalformedToken(t *testing.T) {
	dir := &fakeSecretDir{tenants: map[string]*models.TenantWithSecret{"acme": activeTenant()}}
	users := &fakeUserStore{byExternal: map[string]*models.User{}}
	r := newSSORouter(dir, users)

	w := postSSO(r, "%%%not-base64%%%", "deadbeef", "https://app.acme.test")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSSOExchangeRejectsUnknownOrigin(t *testing.T) {
	dir := &fakeSecretDir{tenants: map[string]*models.TenantWithSecret{"acme": activeTenant()}}
	users := &fakeUserStore{byExternal: map[string]*models.User{}}
	r := newSSORouter(dir, users)

	token, sig := signToken(t, testSecret, validPayload())
	w := postSSO(r, token, sig, "https://evil.example")

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSSOExchangeRejectsInactiveTenant(t *testing.T) {
	suspended := activeTenant()
	suspended.Status = models.TenantStatusSuspended
	suspended.IsActive = false
	dir := &fakeSecretDir{tenants: map[string]*models.TenantWithSecret{"acme": suspended}}
	users := &fakeUserStore{byExternal: map[string]*models.User{}}
	r := newSSORouter(dir, users)

	token, sig := signToken(t, testSecret, validPayload())
	w := postSSO(r, token, sig, "https://app.acme.test")

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSSOExchangeRejectsUnknownTenant(t *testing.T) {
	dir := &fakeSecretDir{tenants: map[string]*models.TenantWithSecret{}}
	users := &fakeUserStore{byExternal: map[string]*models.User{}}
	r := newSSORouter(dir, users)

	token, sig := signToken(t, testSecret, validPayload())
	w := postSSO(r, token, sig, "https://app.acme.test")

	assert.Equal(t, http.StatusNotFound, w.Code)
}
