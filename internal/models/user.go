package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a chat user within a tenant. Federated users carry the
// (ExternalID, ExternalSystem) pair identifying them in the parent
// application and have no password credential.
type User struct {
	ID             uuid.UUID `json:"id"`
	TenantID       string    `json:"tenant_id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"display_name"`
	PasswordHash   string    `json:"-"`
	ExternalID     string    `json:"external_id,omitempty"`
	ExternalSystem string    `json:"external_system,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	EmailVerified  bool      `json:"email_verified"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsFederated reports whether the user was provisioned via SSO.
func (u *User) IsFederated() bool {
	return u.ExternalID != "" && u.ExternalSystem != ""
}

// UserPublic is User without credential fields for API responses.
type UserPublic struct {
	ID          uuid.UUID `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:          u.ID,
		TenantID:    u.TenantID,
		Email:       u.Email,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
	}
}
