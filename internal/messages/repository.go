package messages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/models"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/tenantscope"
)

var (
	// ErrConversationNotFound means no conversation matched within the tenant.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrNotParticipant means the user is not part of the conversation.
	ErrNotParticipant = errors.New("not a participant")
)

// DefaultPageSize bounds message history pages.
const DefaultPageSize = 50

// Repository persists messages and direct conversations. All statements run
// through the tenant-scoped pool.
type Repository struct {
	db *tenantscope.Pool
}

// NewRepository creates a message repository.
func NewRepository(db *tenantscope.Pool) *Repository {
	return &Repository{db: db}
}

// sortPair orders a DM pair so (a, b) and (b, a) map to the same row.
func sortPair(x, y uuid.UUID) (uuid.UUID, uuid.UUID) {
	if x.String() < y.String() {
		return x, y
	}
	return y, x
}

// GetOrCreateDM returns the direct conversation between two users, creating
// it on first contact. Concurrent first messages race safely: the unique
// (tenant, pair) row wins and both callers get the same conversation.
func (r *Repository) GetOrCreateDM(ctx context.Context, me, other uuid.UUID) (*models.DirectConversation, error) {
	if me == other {
		return nil, fmt.Errorf("cannot open a conversation with yourself")
	}
	a, b := sortPair(me, other)

	const insert = `INSERT INTO direct_conversations (tenant_id, user_a, user_b)
		VALUES ($1, $2, $3) ON CONFLICT (tenant_id, user_a, user_b) DO NOTHING`
	if _, err := r.db.Exec(ctx, insert, a, b); err != nil {
		return nil, fmt.Errorf("create dm conversation: %w", err)
	}

	const q = `SELECT id, tenant_id, user_a, user_b, created_at FROM direct_conversations
		WHERE tenant_id = $1 AND user_a = $2 AND user_b = $3`
	var dc models.DirectConversation
	err := r.db.QueryRow(ctx, q, a, b).Scan(&dc.ID, &dc.TenantID, &dc.UserA, &dc.UserB, &dc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("load dm conversation: %w", err)
	}
	return &dc, nil
}

// GetDM returns a direct conversation by id. ErrNotParticipant when the user
// is not one of the pair.
func (r *Repository) GetDM(ctx context.Context, id, userID uuid.UUID) (*models.DirectConversation, error) {
	const q = `SELECT id, tenant_id, user_a, user_b, created_at FROM direct_conversations
		WHERE tenant_id = $1 AND id = $2`
	var dc models.DirectConversation
	err := r.db.QueryRow(ctx, q, id).Scan(&dc.ID, &dc.TenantID, &dc.UserA, &dc.UserB, &dc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if dc.UserA != userID && dc.UserB != userID {
		return nil, ErrNotParticipant
	}
	return &dc, nil
}

// ListDMs returns the user's direct conversations, most recent first.
func (r *Repository) ListDMs(ctx context.Context, userID uuid.UUID) ([]models.DirectConversation, error) {
	const q = `SELECT id, tenant_id, user_a, user_b, created_at FROM direct_conversations
		WHERE tenant_id = $1 AND (user_a = $2 OR user_b = $2)
		ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.DirectConversation
	for rows.Next() {
		var dc models.DirectConversation
		if err := rows.Scan(&dc.ID, &dc.TenantID, &dc.UserA, &dc.UserB, &dc.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, dc)
	}
	return list, rows.Err()
}

// Create persists a message.
func (r *Repository) Create(ctx context.Context, m *models.Message) error {
	if err := tenantscope.EnsureTenant(ctx, m.TenantID); err != nil {
		return err
	}
	const q = `INSERT INTO messages (tenant_id, kind, conversation_id, sender_id, content, attachment_key)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6,''))
		RETURNING id, created_at`
	err := r.db.QueryRow(ctx, q, m.Kind, m.ConversationID, m.SenderID, m.Content, m.AttachmentKey).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// List returns a page of conversation history, newest first. A zero before
// means "from now".
func (r *Repository) List(ctx context.Context, kind models.ConversationKind, conversationID uuid.UUID, before time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > DefaultPageSize {
		limit = DefaultPageSize
	}
	if before.IsZero() {
		before = time.Now()
	}
	const q = `SELECT id, tenant_id, kind, conversation_id, sender_id, content, COALESCE(attachment_key,''), created_at
		FROM messages
		WHERE tenant_id = $1 AND kind = $2 AND conversation_id = $3 AND created_at < $4
		ORDER BY created_at DESC LIMIT $5`
	rows, err := r.db.Query(ctx, q, kind, conversationID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.TenantID, &m.Kind, &m.ConversationID, &m.SenderID, &m.Content, &m.AttachmentKey, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
