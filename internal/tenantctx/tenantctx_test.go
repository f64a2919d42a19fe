package tenantctx_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/tenantctx"
)

func TestCurrent_NoContext(t *testing.T) {
	_, err := tenantctx.Current(context.Background())
	assert.ErrorIs(t, err, tenantctx.ErrNoContext)
}

func TestBind_AndCurrent(t *testing.T) {
	ctx, err := tenantctx.Bind(context.Background(), "acme")
	require.NoError(t, err)

	id, err := tenantctx.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acme", id)
}

func TestBind_SameTenantIsNoop(t *testing.T) {
	ctx, err := tenantctx.Bind(context.Background(), "acme")
	require.NoError(t, err)

	again, err := tenantctx.Bind(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, ctx, again)
}

func TestBind_DifferentTenantConflicts(t *testing.T) {
	ctx, err := tenantctx.Bind(context.Background(), "acme")
	require.NoError(t, err)

	_, err = tenantctx.Bind(ctx, "globex")
	assert.ErrorIs(t, err, tenantctx.ErrConflict)
}

func TestBind_EmptyTenantRejected(t *testing.T) {
	_, err := tenantctx.Bind(context.Background(), "")
	assert.ErrorIs(t, err, tenantctx.ErrNoContext)
}

func TestEstablish_RunsUnderTenant(t *testing.T) {
	var seen string
	err := tenantctx.Establish(context.Background(), "acme", func(ctx context.Context) error {
		id, err := tenantctx.Current(ctx)
		if err != nil {
			return err
		}
		seen = id
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "acme", seen)
}

func TestEstablish_InheritedByGoroutines(t *testing.T) {
	results := make([]string, 8)
	err := tenantctx.Establish(context.Background(), "acme", func(ctx context.Context) error {
		var wg sync.WaitGroup
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id, err := tenantctx.Current(ctx)
				if err == nil {
					results[i] = id
				}
			}(i)
		}
		wg.Wait()
		return nil
	})
	require.NoError(t, err)
	for _, id := range results {
		assert.Equal(t, "acme", id)
	}
}

func TestEstablish_DoesNotLeakAcrossOperations(t *testing.T) {
	// Two concurrent "requests" each bind their own tenant; neither may
	// observe the other's binding.
	var wg sync.WaitGroup
	for _, tenant := range []string{"acme", "globex"} {
		wg.Add(1)
		go func(tenant string) {
			defer wg.Done()
			_ = tenantctx.Establish(context.Background(), tenant, func(ctx context.Context) error {
				for i := 0; i < 100; i++ {
					id, err := tenantctx.Current(ctx)
					assert.NoError(t, err)
					assert.Equal(t, tenant, id)
				}
				return nil
			})
		}(tenant)
	}
	wg.Wait()

	// The background context is untouched after both operations finish.
	_, err := tenantctx.Current(context.Background())
	assert.ErrorIs(t, err, tenantctx.ErrNoContext)
}

func TestRequestID(t *testing.T) {
	ctx := tenantctx.WithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", tenantctx.RequestID(ctx))
	assert.Empty(t, tenantctx.RequestID(context.Background()))
}
