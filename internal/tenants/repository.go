package tenants

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/models"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/utils"
)

var (
	// ErrNotFound means no tenant exists with the given id.
	ErrNotFound = errors.New("tenant not found")
	// ErrDuplicate means the tenant id is already registered.
	ErrDuplicate = errors.New("tenant id already registered")
	// ErrBadVerification means the verification code did not match.
	ErrBadVerification = errors.New("invalid verification code")
)

// Repository is the tenant directory. The tenants table is the registry that
// tenant scoping derives from, so it is the one store accessed without a
// tenant context.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a tenant directory repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const tenantColumns = `id, name, domain, allowed_origins, admin_email, status, is_active, created_at, updated_at`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Domain, &t.AllowedOrigins, &t.AdminEmail, &t.Status, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Register creates a tenant in pending status. The shared secret and the
// domain verification code are generated here and the secret is returned
// exactly once; no other read path exposes it.
func (r *Repository) Register(ctx context.Context, id, name, domain string, allowedOrigins []string, adminEmail string) (*models.TenantWithSecret, error) {
	secret, err := utils.RandomToken(32)
	if err != nil {
		return nil, err
	}
	code, err := utils.RandomToken(16)
	if err != nil {
		return nil, err
	}
	if allowedOrigins == nil {
		allowedOrigins = []string{}
	}
	const q = `INSERT INTO tenants (id, name, domain, allowed_origins, admin_email, secret, verification_code, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
		RETURNING ` + tenantColumns
	t, err := scanTenant(r.pool.QueryRow(ctx, q, id, name, domain, allowedOrigins, adminEmail, secret, code))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("register tenant: %w", err)
	}
	return &models.TenantWithSecret{Tenant: *t, Secret: secret}, nil
}

// VerificationCode returns the stored verification code. Used by operators to
// deliver the code out of band; never exposed on the HTTP surface.
func (r *Repository) VerificationCode(ctx context.Context, id string) (string, error) {
	var code string
	err := r.pool.QueryRow(ctx, `SELECT verification_code FROM tenants WHERE id = $1`, id).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return code, err
}

// Verify transitions pending -> verified when the code matches. Verifying an
// already-verified tenant is idempotent: it succeeds without re-triggering
// provisioning, reported through firstVerify.
func (r *Repository) Verify(ctx context.Context, id, code string) (t *models.Tenant, firstVerify bool, err error) {
	var status models.TenantStatus
	var stored string
	err = r.pool.QueryRow(ctx, `SELECT status, verification_code FROM tenants WHERE id = $1`, id).Scan(&status, &stored)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}
	if status == models.TenantStatusVerified {
		t, err = r.GetByID(ctx, id)
		return t, false, err
	}
	if stored != code {
		return nil, false, ErrBadVerification
	}
	const q = `UPDATE tenants SET status = 'verified', updated_at = NOW() WHERE id = $1 RETURNING ` + tenantColumns
	t, err = scanTenant(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

// GetByID returns a tenant without its secret.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	const q = `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return scanTenant(r.pool.QueryRow(ctx, q, id))
}

// GetWithSecret returns a tenant including the shared secret. Privileged
// accessor for the SSO exchange only.
func (r *Repository) GetWithSecret(ctx context.Context, id string) (*models.TenantWithSecret, error) {
	const q = `SELECT ` + tenantColumns + `, secret FROM tenants WHERE id = $1`
	var t models.TenantWithSecret
	err := r.pool.QueryRow(ctx, q, id).Scan(&t.ID, &t.Name, &t.Domain, &t.AllowedOrigins, &t.AdminEmail,
		&t.Status, &t.IsActive, &t.CreatedAt, &t.UpdatedAt, &t.Secret)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// SetStatus transitions verified <-> suspended. Suspension also clears the
// active flag so in-flight SSO exchanges are refused.
func (r *Repository) SetStatus(ctx context.Context, id string, status models.TenantStatus) (*models.Tenant, error) {
	const q = `UPDATE tenants SET status = $2, is_active = ($2 <> 'suspended'), updated_at = NOW()
		WHERE id = $1 RETURNING ` + tenantColumns
	return scanTenant(r.pool.QueryRow(ctx, q, id, string(status)))
}

// ListActive returns active, verified tenants.
func (r *Repository) ListActive(ctx context.Context) ([]*models.Tenant, error) {
	const q = `SELECT ` + tenantColumns + ` FROM tenants WHERE is_active AND status = 'verified' ORDER BY id`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Domain, &t.AllowedOrigins, &t.AdminEmail, &t.Status, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}
