// Package tenantscope wraps database access for tenant-owned tables so that
// every statement is scoped to the tenant bound in the context. Repositories
// never add tenant filters themselves; forgetting one cannot leak data
// because the scoped pool injects the tenant and refuses unscoped SQL.
//
// Convention: scoped SQL reserves placeholder $1 for the tenant id and must
// reference the tenant_id column. Caller-supplied args start at $2.
package tenantscope

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/tenantctx"
)

var (
	// ErrUnscopedStatement means a statement handed to the scoped pool does
	// not reference tenant_id. Like a missing context, this is a programming
	// error caught before the statement reaches the database.
	ErrUnscopedStatement = errors.New("tenantscope: statement does not reference tenant_id")
	// ErrTenantMismatch means a write carried an explicit tenant id that
	// differs from the bound context.
	ErrTenantMismatch = errors.New("tenantscope: explicit tenant id differs from bound context")
)

// Querier is the subset of pgxpool.Pool the scoped pool builds on.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Pool is a tenant-scoped database handle for tenant-owned tables.
type Pool struct {
	db     Querier
	logger *zap.Logger
}

// NewPool wraps a querier (normally *pgxpool.Pool) with tenant scoping.
func NewPool(db Querier, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{db: db, logger: logger}
}

// guard resolves the bound tenant and rejects unscoped SQL.
func (p *Pool) guard(ctx context.Context, sql string) (string, error) {
	tenantID, err := tenantctx.Current(ctx)
	if err != nil {
		p.logger.Error("tenant-scoped query without tenant context",
			zap.String("request_id", tenantctx.RequestID(ctx)))
		return "", err
	}
	if !strings.Contains(strings.ToLower(sql), "tenant_id") {
		return "", fmt.Errorf("%w: %.60s", ErrUnscopedStatement, sql)
	}
	return tenantID, nil
}

// Query runs a scoped query. $1 is the tenant id; args begin at $2.
func (p *Pool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	tenantID, err := p.guard(ctx, sql)
	if err != nil {
		return nil, err
	}
	return p.db.Query(ctx, sql, prepend(tenantID, args)...)
}

// QueryRow runs a scoped single-row query. $1 is the tenant id; args begin
// at $2. Guard failures surface from Row.Scan.
func (p *Pool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	tenantID, err := p.guard(ctx, sql)
	if err != nil {
		return errRow{err}
	}
	return p.db.QueryRow(ctx, sql, prepend(tenantID, args)...)
}

// Exec runs a scoped statement. $1 is the tenant id; args begin at $2.
func (p *Pool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tenantID, err := p.guard(ctx, sql)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return p.db.Exec(ctx, sql, prepend(tenantID, args)...)
}

// EnsureTenant validates an explicitly supplied tenant id against the bound
// context. Writes that carry a tenant id call this before executing.
func EnsureTenant(ctx context.Context, claimed string) error {
	tenantID, err := tenantctx.Current(ctx)
	if err != nil {
		return err
	}
	if claimed != "" && claimed != tenantID {
		return fmt.Errorf("%w: bound %q, claimed %q", ErrTenantMismatch, tenantID, claimed)
	}
	return nil
}

func prepend(tenantID string, args []any) []any {
	out := make([]any, 0, len(args)+1)
	out = append(out, tenantID)
	return append(out, args...)
}

// errRow satisfies pgx.Row for guard failures.
type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }
