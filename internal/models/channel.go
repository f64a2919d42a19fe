package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a named group conversation within a tenant. CreatedBy is nil
// for system channels provisioned at tenant setup.
type Channel struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  string     `json:"tenant_id"`
	Name      string     `json:"name"`
	Topic     string     `json:"topic,omitempty"`
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ChannelMember links a user to a channel.
type ChannelMember struct {
	TenantID  string    `json:"tenant_id"`
	ChannelID uuid.UUID `json:"channel_id"`
	UserID    uuid.UUID `json:"user_id"`
	JoinedAt  time.Time `json:"joined_at"`
}
