package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/models"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/tenantscope"
)

var (
	// ErrUserNotFound means no user matched within the current tenant.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserConflict means a unique (tenant, email/username/external) pair
	// already exists.
	ErrUserConflict = errors.New("user already exists")
)

// Repository handles user persistence. All statements run through the
// tenant-scoped pool: $1 is always the tenant id injected from the context.
type Repository struct {
	db *tenantscope.Pool
}

// NewRepository creates a user repository.
func NewRepository(db *tenantscope.Pool) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, tenant_id, email, username, COALESCE(display_name,''), COALESCE(password_hash,''),
	COALESCE(external_id,''), COALESCE(external_system,''), COALESCE(avatar_url,''),
	email_verified, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Username, &u.DisplayName, &u.PasswordHash,
		&u.ExternalID, &u.ExternalSystem, &u.AvatarURL, &u.EmailVerified, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID within the current tenant.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND id = $2`
	return scanUser(r.db.QueryRow(ctx, q, id))
}

// GetByEmail returns a user by email within the current tenant.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND email = $2`
	return scanUser(r.db.QueryRow(ctx, q, email))
}

// FindByExternal returns the federated user for (externalID, externalSystem)
// within the current tenant.
func (r *Repository) FindByExternal(ctx context.Context, externalID, externalSystem string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users
		WHERE tenant_id = $1 AND external_id = $2 AND external_system = $3`
	return scanUser(r.db.QueryRow(ctx, q, externalID, externalSystem))
}

// CreateFederated provisions a user from a trusted external assertion. The
// tenant id on the model is validated against the bound context; federated
// users have no password and their email counts as verified.
func (r *Repository) CreateFederated(ctx context.Context, u *models.User) error {
	if err := tenantscope.EnsureTenant(ctx, u.TenantID); err != nil {
		return err
	}
	const q = `INSERT INTO users (tenant_id, email, username, display_name, external_id, external_system, avatar_url, email_verified, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7,''), TRUE, $8)
		RETURNING ` + userColumns
	created, err := scanUser(r.db.QueryRow(ctx, q,
		u.Email, u.Username, u.DisplayName, u.ExternalID, u.ExternalSystem, u.AvatarURL, u.IsActive))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrUserConflict
		}
		return fmt.Errorf("create federated user: %w", err)
	}
	*u = *created
	return nil
}

// UpdateFromAssertion refreshes profile fields from the parent application
// on every SSO exchange. The parent is authoritative for these fields.
func (r *Repository) UpdateFromAssertion(ctx context.Context, u *models.User) error {
	const q = `UPDATE users SET display_name = $3, email = $4, avatar_url = NULLIF($5,''),
		is_active = $6, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING ` + userColumns
	updated, err := scanUser(r.db.QueryRow(ctx, q, u.ID, u.DisplayName, u.Email, u.AvatarURL, u.IsActive))
	if err != nil {
		return fmt.Errorf("update federated user: %w", err)
	}
	*u = *updated
	return nil
}

// CreateWithPassword creates a local (non-federated) user.
func (r *Repository) CreateWithPassword(ctx context.Context, u *models.User, passwordHash string) error {
	if err := tenantscope.EnsureTenant(ctx, u.TenantID); err != nil {
		return err
	}
	const q = `INSERT INTO users (tenant_id, email, username, display_name, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns
	created, err := scanUser(r.db.QueryRow(ctx, q, u.Email, u.Username, u.DisplayName, passwordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrUserConflict
		}
		return fmt.Errorf("create user: %w", err)
	}
	*u = *created
	return nil
}

// GlobalDirectory is the privileged unscoped user lookup used only to
// bootstrap a session from a refresh token, before any tenant context
// exists. Nothing else may use it.
type GlobalDirectory struct {
	pool Bootstrapper
}

// Bootstrapper is the single-row query surface GlobalDirectory needs.
type Bootstrapper interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewGlobalDirectory creates the bootstrap user lookup.
func NewGlobalDirectory(pool Bootstrapper) *GlobalDirectory {
	return &GlobalDirectory{pool: pool}
}

// GetUserGlobal returns a user by id across tenants.
func (g *GlobalDirectory) GetUserGlobal(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(g.pool.QueryRow(ctx, q, id))
}

// List returns users of the current tenant for member pickers.
func (r *Repository) List(ctx context.Context) ([]models.UserPublic, error) {
	const q = `SELECT id, tenant_id, email, username, COALESCE(display_name,''), COALESCE(avatar_url,''), is_active, created_at
		FROM users WHERE tenant_id = $1 ORDER BY username`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserPublic
	for rows.Next() {
		var u models.UserPublic
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Email, &u.Username, &u.DisplayName, &u.AvatarURL, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}
