package messages

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/auth"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/models"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/tenantctx"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/response"
)

// MaxContentLength bounds a single message body.
const MaxContentLength = 4000

// Notifier pushes realtime events to a user's sockets.
type Notifier interface {
	NotifyUser(tenantID string, userID uuid.UUID, event string, payload interface{})
}

// UnreadIncrementer is the unread engine surface the message path needs.
type UnreadIncrementer interface {
	Increment(ctx context.Context, kind models.ConversationKind, conversationID, senderID uuid.UUID, recipients []uuid.UUID) error
}

// Handler handles direct-message endpoints.
type Handler struct {
	repo     *Repository
	unread   UnreadIncrementer
	notifier Notifier
	logger   *zap.Logger
}

// NewHandler creates a DM handler.
func NewHandler(repo *Repository, unread UnreadIncrementer, notifier Notifier, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, unread: unread, notifier: notifier, logger: logger}
}

type openDMRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type sendRequest struct {
	Content       string `json:"content"`
	AttachmentKey string `json:"attachment_key"`
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(auth.ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// Open handles POST /dm: get-or-create the conversation with another user.
func (h *Handler) Open(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing session")
		return
	}
	var req openDMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "user_id required")
		return
	}
	if req.UserID == userID {
		response.BadRequest(c, "cannot open a conversation with yourself")
		return
	}
	dc, err := h.repo.GetOrCreateDM(c.Request.Context(), userID, req.UserID)
	if err != nil {
		h.logger.Error("open dm failed", zap.Error(err))
		response.Internal(c, "could not open conversation")
		return
	}
	response.OK(c, dc)
}

// List handles GET /dm.
func (h *Handler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing session")
		return
	}
	list, err := h.repo.ListDMs(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list dms failed", zap.Error(err))
		response.Internal(c, "could not list conversations")
		return
	}
	if list == nil {
		list = []models.DirectConversation{}
	}
	response.OK(c, gin.H{"conversations": list})
}

// Send handles POST /dm/:id/messages.
func (h *Handler) Send(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing session")
		return
	}
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid conversation id")
		return
	}
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if req.Content == "" && req.AttachmentKey == "" {
		response.BadRequest(c, "message needs content or an attachment")
		return
	}
	if len(req.Content) > MaxContentLength {
		response.BadRequest(c, "message too long")
		return
	}

	ctx := c.Request.Context()
	dc, err := h.repo.GetDM(ctx, convID, userID)
	if err != nil {
		h.respondConversationErr(c, err)
		return
	}
	tenantID, err := tenantctx.Current(ctx)
	if err != nil {
		h.logger.Error("send without tenant context", zap.Error(err))
		response.Internal(c, "could not send message")
		return
	}

	msg := &models.Message{
		TenantID:       tenantID,
		Kind:           models.KindDirect,
		ConversationID: dc.ID,
		SenderID:       userID,
		Content:        req.Content,
		AttachmentKey:  req.AttachmentKey,
	}
	if err := h.repo.Create(ctx, msg); err != nil {
		h.logger.Error("create message failed", zap.Error(err))
		response.Internal(c, "could not send message")
		return
	}

	recipients := []uuid.UUID{dc.UserA, dc.UserB}
	if err := h.unread.Increment(ctx, models.KindDirect, dc.ID, userID, recipients); err != nil {
		// The message is already durable; a lost badge is recoverable.
		h.logger.Warn("unread increment failed", zap.String("conversation_id", dc.ID.String()), zap.Error(err))
	}
	for _, r := range recipients {
		if r == userID {
			continue
		}
		h.notifier.NotifyUser(tenantID, r, "message_new", msg)
	}
	response.Created(c, msg)
}

// History handles GET /dm/:id/messages.
func (h *Handler) History(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing session")
		return
	}
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid conversation id")
		return
	}
	ctx := c.Request.Context()
	dc, err := h.repo.GetDM(ctx, convID, userID)
	if err != nil {
		h.respondConversationErr(c, err)
		return
	}

	before := time.Time{}
	if raw := c.Query("before"); raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			before = ts
		}
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	list, err := h.repo.List(ctx, models.KindDirect, dc.ID, before, limit)
	if err != nil {
		h.logger.Error("list messages failed", zap.Error(err))
		response.Internal(c, "could not load messages")
		return
	}
	if list == nil {
		list = []models.Message{}
	}
	response.OK(c, gin.H{"messages": list})
}

func (h *Handler) respondConversationErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrConversationNotFound):
		response.NotFound(c, "conversation not found")
	case errors.Is(err, ErrNotParticipant):
		response.Forbidden(c, "not a participant")
	default:
		h.logger.Error("conversation lookup failed", zap.Error(err))
		response.Internal(c, "could not load conversation")
	}
}
