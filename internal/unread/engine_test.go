package unread

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/models"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/tenantctx"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/redis"
)

func TestKeyRoundTrip(t *testing.T) {
	conv := uuid.New()
	user := uuid.New()
	k := key("acme", user, models.KindChannel, conv)
	assert.Equal(t, "unread:acme:"+user.String()+":channel:"+conv.String(), k)

	kind, id, ok := parseKey(k)
	require.True(t, ok)
	assert.Equal(t, models.KindChannel, kind)
	assert.Equal(t, conv, id)
}

func TestParseKeyRejectsGarbage(t *testing.T) {
	for _, k := range []string{
		"",
		"unread:acme:only-four:parts",
		"other:acme:u:dm:" + uuid.New().String(),
		"unread:acme:u:room:" + uuid.New().String(),
		"unread:acme:u:dm:not-a-uuid",
	} {
		_, _, ok := parseKey(k)
		assert.False(t, ok, "key %q should not parse", k)
	}
}

func TestReadsServeZeroWithoutTenantContext(t *testing.T) {
	// nil client is never touched: the tenant check fails first.
	e := NewEngine(nil, time.Hour, zap.NewNop())
	assert.Zero(t, e.Get(context.Background(), uuid.New(), models.KindDirect, uuid.New()))
	assert.Empty(t, e.GetAll(context.Background(), uuid.New()))
}

func TestIncrementRequiresTenantContext(t *testing.T) {
	e := NewEngine(nil, time.Hour, zap.NewNop())
	err := e.Increment(context.Background(), models.KindDirect, uuid.New(), uuid.New(), []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, tenantctx.ErrNoContext)
}

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	c, err := redis.NewClient(context.Background(), addr, "", 15, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { c.FlushDB(context.Background()); c.Close() })
	return c
}

func TestEngineAgainstRedis(t *testing.T) {
	rdb := testClient(t)
	e := NewEngine(rdb, time.Hour, zap.NewNop())

	sender := uuid.New()
	alice := uuid.New()
	bob := uuid.New()
	conv := uuid.New()

	err := tenantctx.Establish(context.Background(), "acme", func(ctx context.Context) error {
		require.NoError(t, e.Increment(ctx, models.KindChannel, conv, sender, []uuid.UUID{sender, alice, bob}))
		require.NoError(t, e.Increment(ctx, models.KindChannel, conv, sender, []uuid.UUID{sender, alice, bob}))

		assert.EqualValues(t, 0, e.Get(ctx, sender, models.KindChannel, conv), "sender never counts their own message")
		assert.EqualValues(t, 2, e.Get(ctx, alice, models.KindChannel, conv))
		assert.EqualValues(t, 2, e.Get(ctx, bob, models.KindChannel, conv))

		all := e.GetAll(ctx, alice)
		require.Len(t, all, 1)
		assert.Equal(t, models.KindChannel, all[0].Kind)
		assert.Equal(t, conv, all[0].ConversationID)
		assert.EqualValues(t, 2, all[0].Count)

		ttl, err := rdb.TTL(ctx, key("acme", alice, models.KindChannel, conv)).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 50*time.Minute, "increments must carry the retention window")

		e.MarkAsRead(ctx, alice, models.KindChannel, conv)
		assert.EqualValues(t, 0, e.Get(ctx, alice, models.KindChannel, conv))
		assert.EqualValues(t, 2, e.Get(ctx, bob, models.KindChannel, conv), "clears are per user")
		return nil
	})
	require.NoError(t, err)
}

func TestEngineTenantIsolation(t *testing.T) {
	rdb := testClient(t)
	e := NewEngine(rdb, time.Hour, zap.NewNop())

	user := uuid.New()
	conv := uuid.New()

	err := tenantctx.Establish(context.Background(), "acme", func(ctx context.Context) error {
		return e.Increment(ctx, models.KindDirect, conv, uuid.New(), []uuid.UUID{user})
	})
	require.NoError(t, err)

	err = tenantctx.Establish(context.Background(), "globex", func(ctx context.Context) error {
		assert.EqualValues(t, 0, e.Get(ctx, user, models.KindDirect, conv))
		assert.Empty(t, e.GetAll(ctx, user))
		return nil
	})
	require.NoError(t, err)
}
