package channels

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/auth"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/messages"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/models"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/tenantctx"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/response"
)

// MessageStore is the message persistence the channel path needs.
type MessageStore interface {
	Create(ctx context.Context, m *models.Message) error
	List(ctx context.Context, kind models.ConversationKind, conversationID uuid.UUID, before time.Time, limit int) ([]models.Message, error)
}

// Handler handles channel endpoints.
type Handler struct {
	repo     *Repository
	msgs     MessageStore
	unread   messages.UnreadIncrementer
	notifier messages.Notifier
	logger   *zap.Logger
}

// NewHandler creates a channel handler.
func NewHandler(repo *Repository, msgs MessageStore, unread messages.UnreadIncrementer, notifier messages.Notifier, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, msgs: msgs, unread: unread, notifier: notifier, logger: logger}
}

type createRequest struct {
	Name  string `json:"name" binding:"required,min=1,max=80"`
	Topic string `json:"topic" binding:"max=250"`
}

type postRequest struct {
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

// Create handles POST /channels.
func (h *Handler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing session")
		return
	}
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	tenantID, err := tenantctx.Current(c.Request.Context())
	if err != nil {
		response.Internal(c, "could not create channel")
		return
	}
	ch := &models.Channel{
		TenantID:  tenantID,
		Name:      req.Name,
		Topic:     req.Topic,
		CreatedBy: &userID,
	}
	if err := h.repo.Create(c.Request.Context(), ch); err != nil {
		if errors.Is(err, ErrChannelExists) {
			response.Conflict(c, "channel name already taken")
			return
		}
		h.logger.Error("create channel failed", zap.Error(err))
		response.Internal(c, "could not create channel")
		return
	}
	response.Created(c, ch)
}

// List handles GET /channels.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list channels failed", zap.Error(err))
		response.Internal(c, "could not list channels")
		return
	}
	if list == nil {
		list = []models.Channel{}
	}
	response.OK(c, gin.H{"channels": list})
}

// Join handles POST /channels/:id/join.
func (h *Handler) Join(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing session")
		return
	}
	ch, ok := h.loadChannel(c)
	if !ok {
		return
	}
	if err := h.repo.Join(c.Request.Context(), ch.ID, userID); err != nil {
		h.logger.Error("join channel failed", zap.Error(err))
		response.Internal(c, "could not join channel")
		return
	}
	response.OK(c, gin.H{"channel_id": ch.ID, "joined": true})
}

// Leave handles POST /channels/:id/leave.
func (h *Handler) Leave(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing session")
		return
	}
	ch, ok := h.loadChannel(c)
	if !ok {
		return
	}
	if err := h.repo.Leave(c.Request.Context(), ch.ID, userID); err != nil {
		h.logger.Error("leave channel failed", zap.Error(err))
		response.Internal(c, "could not leave channel")
		return
	}
	response.NoContent(c)
}

// Post handles POST /channels/:id/messages. Membership is required to post.
func (h *Handler) Post(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing session")
		return
	}
	ch, ok := h.loadChannel(c)
	if !ok {
		return
	}
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if req.Content == "" && req.AttachmentKey == "" {
		response.BadRequest(c, "message needs content or an attachment")
		return
	}
	if len(req.Content) > messages.MaxContentLength {
		response.BadRequest(c, "message too long")
		return
	}

	ctx := c.Request.Context()
	member, err := h.repo.IsMember(ctx, ch.ID, userID)
	if err != nil {
		h.logger.Error("membership check failed", zap.Error(err))
		response.Internal(c, "could not post message")
		return
	}
	if !member {
		response.Forbidden(c, "join the channel first")
		return
	}

	msg := &models.Message{
		TenantID:       ch.TenantID,
		Kind:           models.KindChannel,
		ConversationID: ch.ID,
		SenderID:       userID,
		Content:        req.Content,
		AttachmentKey:  req.AttachmentKey,
	}
	if err := h.msgs.Create(ctx, msg); err != nil {
		h.logger.Error("create message failed", zap.Error(err))
		response.Internal(c, "could not post message")
		return
	}

	members, err := h.repo.Members(ctx, ch.ID)
	if err != nil {
		h.logger.Warn("member fan-out failed", zap.String("channel_id", ch.ID.String()), zap.Error(err))
	} else {
		if err := h.unread.Increment(ctx, models.KindChannel, ch.ID, userID, members); err != nil {
			h.logger.Warn("unread increment failed", zap.String("channel_id", ch.ID.String()), zap.Error(err))
		}
		for _, m := range members {
			if m == userID {
				continue
			}
			h.notifier.NotifyUser(ch.TenantID, m, "message_new", msg)
		}
	}
	response.Created(c, msg)
}

// History handles GET /channels/:id/messages. Membership is required to read.
func (h *Handler) History(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing session")
		return
	}
	ch, ok := h.loadChannel(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	member, err := h.repo.IsMember(ctx, ch.ID, userID)
	if err != nil {
		h.logger.Error("membership check failed", zap.Error(err))
		response.Internal(c, "could not load messages")
		return
	}
	if !member {
		response.Forbidden(c, "join the channel first")
		return
	}

	before := time.Time{}
	if raw := c.Query("before"); raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			before = ts
		}
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	list, err := h.msgs.List(ctx, models.KindChannel, ch.ID, before, limit)
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

func (h *Handler) loadChannel(c *gin.Context) (*models.Channel, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid channel id")
		return nil, false
	}
	ch, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrChannelNotFound) {
			response.NotFound(c, "channel not found")
			return nil, false
		}
		h.logger.Error("channel lookup failed", zap.Error(err))
		response.Internal(c, "could not load channel")
		return nil, false
	}
	return ch, true
}
