package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a persisted opaque session token. Rows are immutable after
// creation except for last_used_at and deletion (logout or expiry).
type RefreshToken struct {
	ID         uuid.UUID `json:"id"`
	Token      string    `json:"-"`
	UserID     uuid.UUID `json:"user_id"`
	DeviceInfo string    `json:"device_info,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	RememberMe bool      `json:"remember_me"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	CreatedAt  time.Time `json:"created_at"`
}
