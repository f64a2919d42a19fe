package models

import (
	"time"
)

// TenantStatus is the lifecycle state of a tenant.
type TenantStatus string

const (
	TenantStatusPending   TenantStatus = "pending"
	TenantStatusVerified  TenantStatus = "verified"
	TenantStatusSuspended TenantStatus = "suspended"
)

// Tenant represents an isolated customer organization. The ID is externally
// chosen by the parent application (e.g. "acme") and globally unique.
type Tenant struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Domain         string       `json:"domain"`
	AllowedOrigins []string     `json:"allowed_origins"`
	AdminEmail     string       `json:"admin_email"`
	Status         TenantStatus `json:"status"`
	IsActive       bool         `json:"is_active"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// TenantWithSecret carries the shared secret used for SSO token HMAC
// verification. Returned only by registration (one time) and by the
// privileged directory accessor; never by public read paths.
type TenantWithSecret struct {
	Tenant
	Secret string `json:"secret,omitempty"`
}
