package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/models"
)

// ErrInvalidRefreshToken covers expired, unknown and deleted tokens alike so
// the response never reveals which case applied.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// RefreshRepository persists opaque refresh tokens. Rows carry no tenant_id
// (scoping comes from the owning user), so this uses the plain pool.
type RefreshRepository struct {
	pool *pgxpool.Pool
}

// NewRefreshRepository creates a refresh token repository.
func NewRefreshRepository(pool *pgxpool.Pool) *RefreshRepository {
	return &RefreshRepository{pool: pool}
}

// Create persists a refresh token row.
func (r *RefreshRepository) Create(ctx context.Context, t *models.RefreshToken) error {
	const q = `INSERT INTO refresh_tokens (token, user_id, device_info, ip_address, user_agent, remember_me, expires_at)
		VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), $6, $7)
		RETURNING id, created_at, last_used_at`
	return r.pool.QueryRow(ctx, q, t.Token, t.UserID, t.DeviceInfo, t.IPAddress, t.UserAgent, t.RememberMe, t.ExpiresAt).
		Scan(&t.ID, &t.CreatedAt, &t.LastUsedAt)
}

// Consume looks up a live token and stamps last_used_at. Expired, unknown
// and deleted tokens are rejected identically.
func (r *RefreshRepository) Consume(ctx context.Context, token string) (*models.RefreshToken, error) {
	const q = `UPDATE refresh_tokens SET last_used_at = NOW()
		WHERE token = $1 AND expires_at > NOW()
		RETURNING id, token, user_id, COALESCE(device_info,''), COALESCE(ip_address,''), COALESCE(user_agent,''),
			remember_me, expires_at, last_used_at, created_at`
	var t models.RefreshToken
	err := r.pool.QueryRow(ctx, q, token).Scan(&t.ID, &t.Token, &t.UserID, &t.DeviceInfo, &t.IPAddress, &t.UserAgent,
		&t.RememberMe, &t.ExpiresAt, &t.LastUsedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	return &t, nil
}

// Delete removes a token (logout). Deleting an absent token is not an error.
func (r *RefreshRepository) Delete(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	return err
}

// DeleteExpired prunes tokens past their horizon. Run periodically by the
// background worker.
func (r *RefreshRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
