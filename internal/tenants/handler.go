package tenants

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/models"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/queue"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/response"
)

// Tenant ids are externally chosen; keep them URL- and key-safe.
var tenantIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// Directory is the tenant directory surface the handler depends on.
type Directory interface {
	Register(ctx context.Context, id, name, domain string, allowedOrigins []string, adminEmail string) (*models.TenantWithSecret, error)
	Verify(ctx context.Context, id, code string) (*models.Tenant, bool, error)
	SetStatus(ctx context.Context, id string, status models.TenantStatus) (*models.Tenant, error)
	ListActive(ctx context.Context) ([]*models.Tenant, error)
}

// ProvisionEnqueuer enqueues default-space provisioning after verification.
type ProvisionEnqueuer interface {
	EnqueueTenantProvision(ctx context.Context, payload queue.TenantProvisionPayload) error
}

// Handler handles tenant registration and lifecycle HTTP endpoints.
type Handler struct {
	dir    Directory
	jobs   ProvisionEnqueuer
	logger *zap.Logger
}

// NewHandler creates a tenants handler.
func NewHandler(dir Directory, jobs ProvisionEnqueuer, logger *zap.Logger) *Handler {
	return &Handler{dir: dir, jobs: jobs, logger: logger}
}

// RegisterRequest is the body for POST /tenants/register.
type RegisterRequest struct {
	TenantID       string   `json:"tenant_id" binding:"required"`
	Name           string   `json:"name" binding:"required"`
	Domain         string   `json:"domain" binding:"required"`
	AllowedOrigins []string `json:"allowed_origins"`
	AdminEmail     string   `json:"admin_email" binding:"required,email"`
}

// VerifyRequest is the body for POST /tenants/verify.
type VerifyRequest struct {
	TenantID         string `json:"tenant_id" binding:"required"`
	VerificationCode string `json:"verification_code" binding:"required"`
}

// StatusRequest is the body for POST /tenants/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Register handles POST /tenants/register. The response includes the shared
// secret exactly once; it cannot be retrieved again.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.TenantID = strings.ToLower(strings.TrimSpace(req.TenantID))
	if !tenantIDRegex.MatchString(req.TenantID) {
		response.BadRequest(c, "tenant_id must be 2-64 chars, lowercase letters, numbers, hyphens only")
		return
	}
	for _, origin := range req.AllowedOrigins {
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			response.BadRequest(c, "allowed_origins entries must be absolute http(s) origins")
			return
		}
	}

	tenant, err := h.dir.Register(c.Request.Context(), req.TenantID, strings.TrimSpace(req.Name),
		strings.TrimSpace(req.Domain), req.AllowedOrigins, req.AdminEmail)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			response.Conflict(c, "tenant id already registered")
			return
		}
		h.logger.Error("tenant registration failed", zap.String("tenant_id", req.TenantID), zap.Error(err))
		response.Internal(c, "failed to register tenant")
		return
	}
	response.Created(c, tenant)
}

// Verify handles POST /tenants/verify. First successful verification
// enqueues default-channel provisioning; re-verifying is idempotent.
func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	tenant, firstVerify, err := h.dir.Verify(c.Request.Context(), req.TenantID, req.VerificationCode)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "tenant not found")
		case errors.Is(err, ErrBadVerification):
			response.BadRequest(c, "invalid verification code")
		default:
			h.logger.Error("tenant verification failed", zap.String("tenant_id", req.TenantID), zap.Error(err))
			response.Internal(c, "failed to verify tenant")
		}
		return
	}
	if firstVerify && h.jobs != nil {
		if err := h.jobs.EnqueueTenantProvision(c.Request.Context(), queue.TenantProvisionPayload{TenantID: tenant.ID}); err != nil {
			// Provisioning is retried by operators; verification itself succeeded.
			h.logger.Error("enqueue tenant provisioning failed", zap.String("tenant_id", tenant.ID), zap.Error(err))
		}
	}
	response.OK(c, tenant)
}

// SetStatus handles POST /tenants/:id/status (platform administration).
func (h *Handler) SetStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status required")
		return
	}
	status := models.TenantStatus(req.Status)
	if status != models.TenantStatusVerified && status != models.TenantStatusSuspended {
		response.BadRequest(c, "status must be verified or suspended")
		return
	}
	tenant, err := h.dir.SetStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "tenant not found")
			return
		}
		h.logger.Error("tenant status change failed", zap.String("tenant_id", c.Param("id")), zap.Error(err))
		response.Internal(c, "failed to update tenant status")
		return
	}
	response.OK(c, tenant)
}

// ListActive handles GET /tenants (platform administration).
func (h *Handler) ListActive(c *gin.Context) {
	list, err := h.dir.ListActive(c.Request.Context())
	if err != nil {
		h.logger.Error("list tenants failed", zap.Error(err))
		response.Internal(c, "failed to list tenants")
		return
	}
	response.OK(c, list)
}
