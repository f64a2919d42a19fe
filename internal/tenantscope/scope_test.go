package tenantscope_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/tenantctx"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/tenantscope"
)

// fakeQuerier records the statements and args the scoped pool forwards.
type fakeQuerier struct {
	sql  string
	args []any
}

func (f *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.sql, f.args = sql, args
	return nil, nil
}

func (f *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.sql, f.args = sql, args
	return okRow{}
}

func (f *fakeQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql, f.args = sql, args
	return pgconn.CommandTag{}, nil
}

type okRow struct{}

func (okRow) Scan(...any) error { return nil }

func boundCtx(t *testing.T, tenant string) context.Context {
	t.Helper()
	ctx, err := tenantctx.Bind(context.Background(), tenant)
	require.NoError(t, err)
	return ctx
}

func TestQuery_InjectsTenantAsFirstArg(t *testing.T) {
	fake := &fakeQuerier{}
	pool := tenantscope.NewPool(fake, nil)

	_, err := pool.Query(boundCtx(t, "acme"),
		`SELECT id FROM users WHERE tenant_id = $1 AND email = $2`, "a@b.com")
	require.NoError(t, err)
	require.Len(t, fake.args, 2)
	assert.Equal(t, "acme", fake.args[0])
	assert.Equal(t, "a@b.com", fake.args[1])
}

func TestQuery_NoContextFailsBeforeStore(t *testing.T) {
	fake := &fakeQuerier{}
	pool := tenantscope.NewPool(fake, nil)

	_, err := pool.Query(context.Background(),
		`SELECT id FROM users WHERE tenant_id = $1`)
	assert.ErrorIs(t, err, tenantctx.ErrNoContext)
	assert.Empty(t, fake.sql, "statement must not reach the store")
}

func TestQuery_UnscopedStatementRejected(t *testing.T) {
	fake := &fakeQuerier{}
	pool := tenantscope.NewPool(fake, nil)

	_, err := pool.Query(boundCtx(t, "acme"), `SELECT id FROM users WHERE email = $2`)
	assert.ErrorIs(t, err, tenantscope.ErrUnscopedStatement)
	assert.Empty(t, fake.sql)
}

func TestQueryRow_NoContextSurfacesOnScan(t *testing.T) {
	fake := &fakeQuerier{}
	pool := tenantscope.NewPool(fake, nil)

	row := pool.QueryRow(context.Background(),
		`SELECT id FROM users WHERE tenant_id = $1`)
	var id string
	assert.ErrorIs(t, row.Scan(&id), tenantctx.ErrNoContext)
}

func TestExec_InjectsTenant(t *testing.T) {
	fake := &fakeQuerier{}
	pool := tenantscope.NewPool(fake, nil)

	_, err := pool.Exec(boundCtx(t, "globex"),
		`UPDATE users SET is_active = $2 WHERE tenant_id = $1 AND id = $3`, true, "u1")
	require.NoError(t, err)
	require.Len(t, fake.args, 3)
	assert.Equal(t, "globex", fake.args[0])
}

func TestExec_NoContextFails(t *testing.T) {
	fake := &fakeQuerier{}
	pool := tenantscope.NewPool(fake, nil)

	_, err := pool.Exec(context.Background(),
		`DELETE FROM messages WHERE tenant_id = $1`)
	assert.ErrorIs(t, err, tenantctx.ErrNoContext)
}

func TestEnsureTenant(t *testing.T) {
	ctx := boundCtx(t, "acme")

	assert.NoError(t, tenantscope.EnsureTenant(ctx, ""))
	assert.NoError(t, tenantscope.EnsureTenant(ctx, "acme"))
	assert.ErrorIs(t, tenantscope.EnsureTenant(ctx, "globex"), tenantscope.ErrTenantMismatch)
	assert.ErrorIs(t, tenantscope.EnsureTenant(context.Background(), "acme"), tenantctx.ErrNoContext)
}
