package unread

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/models"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/tenantctx"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/metrics"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/redis"
)

// DefaultTTL is the sliding retention window for unread counters. Every
// increment resets it, so only counters untouched for the full window expire.
const DefaultTTL = 30 * 24 * time.Hour

const scanBatch = 200

// Entry is one conversation's unread count for a user.
type Entry struct {
	Kind           models.ConversationKind `json:"kind"`
	ConversationID uuid.UUID               `json:"conversation_id"`
	Count          int64                   `json:"count"`
}

// Engine maintains per-user unread counters in Redis. Counters are a badge
// cache, not a ledger: reads degrade to zero when Redis is unavailable so
// messaging keeps working, while writes surface their errors to the caller.
type Engine struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewEngine creates an unread counter engine.
func NewEngine(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Engine {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Engine{rdb: rdb, ttl: ttl, logger: logger}
}

// key is unread:{tenant}:{recipient}:{kind}:{conversation}.
func key(tenantID string, recipient uuid.UUID, kind models.ConversationKind, conversationID uuid.UUID) string {
	return fmt.Sprintf("unread:%s:%s:%s:%s", tenantID, recipient, kind, conversationID)
}

func parseKey(k string) (kind models.ConversationKind, conversationID uuid.UUID, ok bool) {
	parts := strings.Split(k, ":")
	if len(parts) != 5 || parts[0] != "unread" {
		return "", uuid.Nil, false
	}
	kind = models.ConversationKind(parts[3])
	if !kind.Valid() {
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(parts[4])
	if err != nil {
		return "", uuid.Nil, false
	}
	return kind, id, true
}

// Increment bumps the counter for every recipient except the sender, in one
// pipeline round trip, and resets the retention window on each touched key.
// Unlike reads, a failed increment is reported: the caller decides whether a
// lost badge matters for the operation at hand.
func (e *Engine) Increment(ctx context.Context, kind models.ConversationKind, conversationID, senderID uuid.UUID, recipients []uuid.UUID) error {
	tenantID, err := tenantctx.Current(ctx)
	if err != nil {
		return err
	}
	if !kind.Valid() {
		return fmt.Errorf("invalid conversation kind %q", kind)
	}

	pipe := e.rdb.TxPipeline()
	touched := 0
	for _, r := range recipients {
		if r == senderID {
			continue
		}
		k := key(tenantID, r, kind, conversationID)
		pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, e.ttl)
		touched++
	}
	if touched == 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.UnreadStoreErrors.Inc()
		return fmt.Errorf("increment unread counters: %w", err)
	}
	return nil
}

// Get returns one conversation's unread count for the user. Missing keys and
// store failures both read as zero.
func (e *Engine) Get(ctx context.Context, userID uuid.UUID, kind models.ConversationKind, conversationID uuid.UUID) int64 {
	tenantID, err := tenantctx.Current(ctx)
	if err != nil {
		return 0
	}
	val, err := e.rdb.Get(ctx, key(tenantID, userID, kind, conversationID)).Int64()
	if err != nil {
		if err != goredis.Nil {
			metrics.UnreadStoreErrors.Inc()
			e.logger.Warn("unread read failed, serving zero", zap.Error(err))
		}
		return 0
	}
	return val
}

// GetAll returns every non-zero counter for the user. Any failure returns an
// empty map; the client treats that as "no badges", never as an error.
func (e *Engine) GetAll(ctx context.Context, userID uuid.UUID) []Entry {
	tenantID, err := tenantctx.Current(ctx)
	if err != nil {
		return nil
	}
	pattern := fmt.Sprintf("unread:%s:%s:*", tenantID, userID)

	var keys []string
	var cursor uint64
	for {
		batch, next, err := e.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			metrics.UnreadStoreErrors.Inc()
			e.logger.Warn("unread scan failed, serving empty", zap.Error(err))
			return nil
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return nil
	}

	vals, err := e.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		metrics.UnreadStoreErrors.Inc()
		e.logger.Warn("unread mget failed, serving empty", zap.Error(err))
		return nil
	}

	entries := make([]Entry, 0, len(keys))
	for i, k := range keys {
		kind, conversationID, ok := parseKey(k)
		if !ok {
			continue
		}
		s, ok := vals[i].(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n == 0 {
			continue
		}
		entries = append(entries, Entry{Kind: kind, ConversationID: conversationID, Count: n})
	}
	return entries
}

// MarkAsRead clears the counter for one conversation. Fails soft: a missed
// clear self-corrects on the next read-and-clear cycle.
func (e *Engine) MarkAsRead(ctx context.Context, userID uuid.UUID, kind models.ConversationKind, conversationID uuid.UUID) {
	tenantID, err := tenantctx.Current(ctx)
	if err != nil {
		return
	}
	if err := e.rdb.Del(ctx, key(tenantID, userID, kind, conversationID)).Err(); err != nil {
		metrics.UnreadStoreErrors.Inc()
		e.logger.Warn("unread clear failed", zap.Error(err))
	}
}
