package tenants

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/auth"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/models"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/tenantctx"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/metrics"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/response"
)

// maxClockSkew tolerates small clock drift between the parent application
// and this backend when checking iat.
const maxClockSkew = 2 * time.Minute

// SecretDirectory is the privileged tenant lookup the SSO exchange needs.
type SecretDirectory interface {
	GetWithSecret(ctx context.Context, id string) (*models.TenantWithSecret, error)
}

// FederatedUserStore provisions and refreshes federated users. All calls run
// under an established tenant context.
type FederatedUserStore interface {
	FindByExternal(ctx context.Context, externalID, externalSystem string) (*models.User, error)
	CreateFederated(ctx context.Context, u *models.User) error
	UpdateFromAssertion(ctx context.Context, u *models.User) error
}

// SessionFactory issues token pairs for resolved users.
type SessionFactory interface {
	GenerateTokenPair(ctx context.Context, user *models.User, rememberMe bool, meta auth.SessionMeta) (*auth.TokenPair, error)
}

// ssoRequest is the body for POST /tenants/sso/init.
type ssoRequest struct {
	Token     string `json:"token"`
	Signature string `json:"signature"`
}

// ssoPayload is the signed assertion from the parent application. Field
// names follow the cross-system wire format.
type ssoPayload struct {
	TenantID       string `json:"tenantId"`
	TenantUserID   string `json:"tenantUserId"`
	Email          string `json:"email"`
	ExternalSystem string `json:"externalSystem"`
	DisplayName    string `json:"displayName"`
	AvatarURL      string `json:"avatarUrl"`
	Exp            int64  `json:"exp"`
	Iat            int64  `json:"iat"`
}

// SSOHandler exchanges a signed cross-system token for a backend session.
// It is terminal: every outcome, expected or not, becomes a JSON response
// from here; nothing escapes to a framework-level error handler.
type SSOHandler struct {
	dir    SecretDirectory
	users  FederatedUserStore
	issuer SessionFactory
	logger *zap.Logger
}

// NewSSOHandler creates the SSO federation handler.
func NewSSOHandler(dir SecretDirectory, users FederatedUserStore, issuer SessionFactory, logger *zap.Logger) *SSOHandler {
	return &SSOHandler{dir: dir, users: users, issuer: issuer, logger: logger}
}

// Exchange handles POST /tenants/sso/init.
func (h *SSOHandler) Exchange(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("sso exchange panicked", zap.Any("panic", r))
			h.fail(c, response.CodeInternal, func() { response.Internal(c, "Authentication failed") })
		}
	}()

	var req ssoRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" || req.Signature == "" {
		h.fail(c, response.CodeValidation, func() { response.BadRequest(c, "token and signature required") })
		return
	}

	raw, err := base64.StdEncoding.DecodeString(req.Token)
	if err != nil {
		h.fail(c, response.CodeValidation, func() { response.BadRequest(c, "malformed token") })
		return
	}
	var payload ssoPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.fail(c, response.CodeValidation, func() { response.BadRequest(c, "malformed token") })
		return
	}

	if payload.TenantID == "" || payload.TenantUserID == "" || payload.Email == "" || payload.ExternalSystem == "" {
		h.fail(c, response.CodeValidation, func() {
			response.BadRequest(c, "tenantId, tenantUserId, email and externalSystem are required")
		})
		return
	}

	now := time.Now()
	if payload.Exp != 0 && time.Unix(payload.Exp, 0).Before(now) {
		h.fail(c, response.CodeUnauthorized, func() { response.Unauthorized(c, "token expired") })
		return
	}
	if payload.Iat != 0 && time.Unix(payload.Iat, 0).After(now.Add(maxClockSkew)) {
		h.fail(c, response.CodeUnauthorized, func() { response.Unauthorized(c, "token issued in the future") })
		return
	}

	tenant, err := h.dir.GetWithSecret(c.Request.Context(), payload.TenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.fail(c, response.CodeNotFound, func() { response.NotFound(c, "tenant not found") })
			return
		}
		h.logger.Error("sso tenant lookup failed", zap.String("tenant_id", payload.TenantID), zap.Error(err))
		h.fail(c, response.CodeInternal, func() { response.Internal(c, "Authentication failed") })
		return
	}
	if !tenant.IsActive || tenant.Status != models.TenantStatusVerified {
		h.fail(c, response.CodeForbidden, func() { response.Forbidden(c, "tenant is not active") })
		return
	}

	if !verifySignature(tenant.Secret, req.Token, req.Signature) {
		h.fail(c, response.CodeUnauthorized, func() { response.Unauthorized(c, "invalid signature") })
		return
	}

	if !originAllowed(c, tenant.AllowedOrigins) {
		h.fail(c, response.CodeForbidden, func() { response.Forbidden(c, "origin not allowed") })
		return
	}

	var session *auth.SessionResponse
	err = tenantctx.Establish(c.Request.Context(), tenant.ID, func(ctx context.Context) error {
		user, err := h.resolveUser(ctx, tenant.ID, &payload)
		if err != nil {
			return err
		}
		pair, err := h.issuer.GenerateTokenPair(ctx, user, false, auth.SessionMeta{
			DeviceInfo: "sso",
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		})
		if err != nil {
			return err
		}
		session = &auth.SessionResponse{TokenPair: *pair, User: user.ToPublic()}
		return nil
	})
	if err != nil {
		h.logger.Error("sso provisioning failed",
			zap.String("tenant_id", tenant.ID),
			zap.String("external_system", payload.ExternalSystem),
			zap.Error(err))
		h.fail(c, response.CodeInternal, func() { response.Internal(c, "Authentication failed") })
		return
	}

	metrics.SSOExchangesTotal.WithLabelValues("success").Inc()
	response.OK(c, gin.H{
		"access_token":             session.AccessToken,
		"refresh_token":            session.RefreshToken,
		"access_token_expires_in":  session.AccessTokenExpiresIn,
		"refresh_token_expires_in": session.RefreshTokenExpiresIn,
		"user":                     session.User,
		"tenant": gin.H{
			"id":   tenant.ID,
			"name": tenant.Name,
		},
	})
}

// resolveUser finds the federated user or provisions one lazily, refreshing
// profile fields from the trusted payload on every exchange.
func (h *SSOHandler) resolveUser(ctx context.Context, tenantID string, p *ssoPayload) (*models.User, error) {
	user, err := h.users.FindByExternal(ctx, p.TenantUserID, p.ExternalSystem)
	if err == nil {
		user.DisplayName = displayNameFor(p)
		user.Email = p.Email
		user.AvatarURL = p.AvatarURL
		user.IsActive = true
		if err := h.users.UpdateFromAssertion(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}
	if !errors.Is(err, auth.ErrUserNotFound) {
		return nil, err
	}

	user = &models.User{
		TenantID:       tenantID,
		Email:          p.Email,
		Username:       deriveUsername(p.Email, p.TenantUserID),
		DisplayName:    displayNameFor(p),
		ExternalID:     p.TenantUserID,
		ExternalSystem: p.ExternalSystem,
		AvatarURL:      p.AvatarURL,
		IsActive:       true,
	}
	if err := h.users.CreateFederated(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (h *SSOHandler) fail(c *gin.Context, result string, respond func()) {
	if c.Writer.Written() {
		return
	}
	metrics.SSOExchangesTotal.WithLabelValues(result).Inc()
	respond()
}

// verifySignature recomputes HMAC-SHA256 over the raw token string and
// compares in constant time. The provided signature is hex-encoded.
func verifySignature(secret, token, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(token))
	expected := mac.Sum(nil)
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, provided)
}

// originAllowed prefix-matches the request Origin (or Referer fallback)
// against the tenant's allowed origins.
func originAllowed(c *gin.Context, allowed []string) bool {
	origin := c.GetHeader("Origin")
	if origin == "" {
		origin = c.GetHeader("Referer")
	}
	if origin == "" || len(allowed) == 0 {
		return false
	}
	for _, prefix := range allowed {
		if prefix != "" && strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

// displayNameFor falls back to the email local part when the parent sends
// no display name.
func displayNameFor(p *ssoPayload) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if i := strings.Index(p.Email, "@"); i > 0 {
		return p.Email[:i]
	}
	return p.Email
}

// deriveUsername builds a human-debuggable, reasonably unique username from
// the email local part and a slice of the external id.
func deriveUsername(email, externalID string) string {
	local := email
	if i := strings.Index(email, "@"); i > 0 {
		local = email[:i]
	}
	local = strings.ToLower(strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		default:
			return '-'
		}
	}, local))
	slice := externalID
	if len(slice) > 8 {
		slice = slice[:8]
	}
	return local + "-" + strings.ToLower(slice)
}
