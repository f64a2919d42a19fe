package unread

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/auth"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/models"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/response"
)

// Handler exposes unread counters over HTTP.
type Handler struct {
	engine *Engine
}

// NewHandler creates an unread handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(auth.ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func parseConversation(c *gin.Context) (models.ConversationKind, uuid.UUID, bool) {
	kind := models.ConversationKind(c.Param("kind"))
	if !kind.Valid() {
		response.BadRequest(c, "kind must be dm or channel")
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("conversationID"))
	if err != nil {
		response.BadRequest(c, "invalid conversation id")
		return "", uuid.Nil, false
	}
	return kind, id, true
}

// GetAll handles GET /unread. Returns every non-zero badge for the user.
func (h *Handler) GetAll(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing session")
		return
	}
	entries := h.engine.GetAll(c.Request.Context(), userID)
	if entries == nil {
		entries = []Entry{}
	}
	response.OK(c, gin.H{"unread": entries})
}

// Get handles GET /unread/:kind/:conversationID.
func (h *Handler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing session")
		return
	}
	kind, conversationID, ok := parseConversation(c)
	if !ok {
		return
	}
	count := h.engine.Get(c.Request.Context(), userID, kind, conversationID)
	response.OK(c, gin.H{"kind": kind, "conversation_id": conversationID, "count": count})
}

// MarkAsRead handles POST /unread/:kind/:conversationID/read.
func (h *Handler) MarkAsRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing session")
		return
	}
	kind, conversationID, ok := parseConversation(c)
	if !ok {
		return
	}
	h.engine.MarkAsRead(c.Request.Context(), userID, kind, conversationID)
	response.NoContent(c)
}
