package models

import (
	"time"

	"github.com/google/uuid"
)

// ConversationKind distinguishes direct messages from group channels.
type ConversationKind string

const (
	KindDirect  ConversationKind = "dm"
	KindChannel ConversationKind = "channel"
)

// Valid reports whether k is a known conversation kind.
func (k ConversationKind) Valid() bool {
	return k == KindDirect || k == KindChannel
}

// Message is a chat message in either a direct conversation or a channel.
type Message struct {
	ID             uuid.UUID        `json:"id"`
	TenantID       string           `json:"tenant_id"`
	Kind           ConversationKind `json:"kind"`
	ConversationID uuid.UUID        `json:"conversation_id"`
	SenderID       uuid.UUID        `json:"sender_id"`
	Content        string           `json:"content"`
	AttachmentKey  string           `json:"attachment_key,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// DirectConversation pairs two users of the same tenant. UserA/UserB are
// stored in sorted order so the pair is unique regardless of who initiated.
type DirectConversation struct {
	ID        uuid.UUID `json:"id"`
	TenantID  string    `json:"tenant_id"`
	UserA     uuid.UUID `json:"user_a"`
	UserB     uuid.UUID `json:"user_b"`
	CreatedAt time.Time `json:"created_at"`
}
