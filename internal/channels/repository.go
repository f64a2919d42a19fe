package channels

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
	// ErrChannelNotFound means no channel matched within the tenant.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrChannelExists means the (tenant, name) pair is taken.
	ErrChannelExists = errors.New("channel already exists")
	// ErrNotMember means the user has not joined the channel.
	ErrNotMember = errors.New("not a channel member")
)

// DefaultChannelNames are created for every tenant at provisioning time.
var DefaultChannelNames = []string{"general", "random"}

// Repository persists channels and memberships through the tenant-scoped pool.
type Repository struct {
	db *tenantscope.Pool
}

// NewRepository creates a channel repository.
func NewRepository(db *tenantscope.Pool) *Repository {
	return &Repository{db: db}
}

const channelColumns = `id, tenant_id, name, topic, created_by, created_at, updated_at`

func scanChannel(row pgx.Row) (*models.Channel, error) {
	var ch models.Channel
	err := row.Scan(&ch.ID, &ch.TenantID, &ch.Name, &ch.Topic, &ch.CreatedBy, &ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	return &ch, nil
}

// Create creates a channel and makes the creator its first member.
func (r *Repository) Create(ctx context.Context, ch *models.Channel) error {
	const q = `INSERT INTO channels (tenant_id, name, topic, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + channelColumns
	created, err := scanChannel(r.db.QueryRow(ctx, q, ch.Name, ch.Topic, ch.CreatedBy))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrChannelExists
		}
		return fmt.Errorf("create channel: %w", err)
	}
	*ch = *created
	if ch.CreatedBy != nil {
		if err := r.Join(ctx, ch.ID, *ch.CreatedBy); err != nil {
			return err
		}
	}
	return nil
}

// CreateDefaults provisions the standard channels for a new tenant. System
// channels have no creator. Idempotent: rerunning a provisioning job must
// not fail on existing channels.
func (r *Repository) CreateDefaults(ctx context.Context) error {
	const q = `INSERT INTO channels (tenant_id, name) VALUES ($1, $2)
		ON CONFLICT (tenant_id, name) DO NOTHING`
	for _, name := range DefaultChannelNames {
		if _, err := r.db.Exec(ctx, q, name); err != nil {
			return fmt.Errorf("create default channel %s: %w", name, err)
		}
	}
	return nil
}

// GetByID returns a channel by id within the tenant.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	const q = `SELECT ` + channelColumns + ` FROM channels WHERE tenant_id = $1 AND id = $2`
	return scanChannel(r.db.QueryRow(ctx, q, id))
}

// List returns all channels of the tenant.
func (r *Repository) List(ctx context.Context) ([]models.Channel, error) {
	const q = `SELECT ` + channelColumns + ` FROM channels WHERE tenant_id = $1 ORDER BY name`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Channel
	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(&ch.ID, &ch.TenantID, &ch.Name, &ch.Topic, &ch.CreatedBy, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, ch)
	}
	return list, rows.Err()
}

// Join adds a user to a channel. Idempotent.
func (r *Repository) Join(ctx context.Context, channelID, userID uuid.UUID) error {
	const q = `INSERT INTO channel_members (tenant_id, channel_id, user_id)
		VALUES ($1, $2, $3) ON CONFLICT (tenant_id, channel_id, user_id) DO NOTHING`
	if _, err := r.db.Exec(ctx, q, channelID, userID); err != nil {
		return fmt.Errorf("join channel: %w", err)
	}
	return nil
}

// Leave removes a user from a channel. Idempotent.
func (r *Repository) Leave(ctx context.Context, channelID, userID uuid.UUID) error {
	const q = `DELETE FROM channel_members WHERE tenant_id = $1 AND channel_id = $2 AND user_id = $3`
	if _, err := r.db.Exec(ctx, q, channelID, userID); err != nil {
		return fmt.Errorf("leave channel: %w", err)
	}
	return nil
}

// IsMember reports whether the user has joined the channel.
func (r *Repository) IsMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM channel_members
		WHERE tenant_id = $1 AND channel_id = $2 AND user_id = $3)`
	var ok bool
	if err := r.db.QueryRow(ctx, q, channelID, userID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Members returns the user ids of a channel's members.
func (r *Repository) Members(ctx context.Context, channelID uuid.UUID) ([]uuid.UUID, error) {
	const q = `SELECT user_id FROM channel_members WHERE tenant_id = $1 AND channel_id = $2`
	rows, err := r.db.Query(ctx, q, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
