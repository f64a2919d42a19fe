package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/models"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/tenantctx"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/response"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/utils"
)

// LoginRequest is the body for POST /auth/login. Password login is
// tenant-qualified: the same email may exist under many tenants.
type LoginRequest struct {
	TenantID   string `json:"tenant_id" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"remember_me"`
	DeviceInfo string `json:"device_info"`
}

// RefreshRequest is the body for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest is the body for DELETE /tenants/sso/logout.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// SessionResponse is returned by login, refresh and SSO exchange.
type SessionResponse struct {
	TokenPair
	User models.UserPublic `json:"user"`
}

// Handler handles password login, refresh and session endpoints.
type Handler struct {
	users  *Repository
	issuer *SessionIssuer
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(users *Repository, issuer *SessionIssuer, logger *zap.Logger) *Handler {
	return &Handler{users: users, issuer: issuer, logger: logger}
}

// Login handles POST /auth/login. The tenant context is established for the
// lifetime of the authenticated lookup, same contract as the SSO exchange.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	var session *SessionResponse
	err := tenantctx.Establish(c.Request.Context(), req.TenantID, func(ctx context.Context) error {
		user, err := h.users.GetByEmail(ctx, req.Email)
		if err != nil {
			return ErrInvalidToken
		}
		if user.PasswordHash == "" || !utils.CheckPassword(req.Password, user.PasswordHash) {
			return ErrInvalidToken
		}
		if !user.IsActive {
			return ErrInvalidToken
		}
		pair, err := h.issuer.GenerateTokenPair(ctx, user, req.RememberMe, SessionMeta{
			DeviceInfo: req.DeviceInfo,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		})
		if err != nil {
			return err
		}
		session = &SessionResponse{TokenPair: *pair, User: user.ToPublic()}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			response.Unauthorized(c, "invalid credentials")
			return
		}
		h.logger.Error("login failed", zap.String("tenant_id", req.TenantID), zap.Error(err))
		response.Internal(c, "login failed")
		return
	}
	response.OK(c, session)
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "refresh_token required")
		return
	}
	pair, user, err := h.issuer.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			response.Unauthorized(c, "invalid refresh token")
			return
		}
		h.logger.Error("refresh failed", zap.Error(err))
		response.Internal(c, "refresh failed")
		return
	}
	response.OK(c, SessionResponse{TokenPair: *pair, User: user.ToPublic()})
}

// Session handles GET /tenants/sso/session. Requires prior session auth;
// returns the authenticated user and tenant binding.
func (h *Handler) Session(c *gin.Context) {
	userID, ok := c.Get(ContextUserID)
	if !ok {
		response.Unauthorized(c, "missing session")
		return
	}
	id, _ := userID.(uuid.UUID)
	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Unauthorized(c, "invalid session")
		return
	}
	tenantID, err := tenantctx.Current(c.Request.Context())
	if err != nil {
		h.logger.Error("authenticated request without tenant context", zap.Error(err))
		response.Internal(c, "session lookup failed")
		return
	}
	response.OK(c, gin.H{"user": user.ToPublic(), "tenant_id": tenantID})
}

// List handles GET /users: the tenant's member directory.
func (h *Handler) List(c *gin.Context) {
	list, err := h.users.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list users failed", zap.Error(err))
		response.Internal(c, "could not list users")
		return
	}
	if list == nil {
		list = []models.UserPublic{}
	}
	response.OK(c, gin.H{"users": list})
}

// Logout handles DELETE /tenants/sso/logout. Idempotent.
func (h *Handler) Logout(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "refresh_token required")
		return
	}
	if err := h.issuer.Revoke(c.Request.Context(), req.RefreshToken); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
		response.Internal(c, "logout failed")
		return
	}
	response.NoContent(c)
}
