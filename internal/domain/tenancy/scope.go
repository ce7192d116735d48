// Package tenancy carries the tenant binding for a unit of work.
//
// A scope is attached to a context.Context at the work-unit boundary (HTTP
// middleware, scheduler run) and consulted by the persistence layer on every
// read and write. Operations over tenant-owned tables fail with ErrNotScoped
// when no scope is bound, and with ErrGlobalScopeForbidden when the global
// scope is bound and the table is not whitelisted for cross-tenant access.
package tenancy

import (
	"context"

	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Scope errors. These are fatal to the work unit and are never masked.
var (
	ErrNotScoped = shared.NewDomainError("TENANT_NOT_SCOPED",
		"No tenant bound to the current unit of work")
	ErrGlobalScopeForbidden = shared.NewDomainError("GLOBAL_SCOPE_FORBIDDEN",
		"Operation not permitted under the global scope")
	ErrCrossTenant = shared.NewDomainError("CROSS_TENANT",
		"Referenced resource belongs to another tenant")
)

type contextKey struct{}

var scopeKey contextKey

// Scope is the tenant binding of a unit of work.
type Scope struct {
	TenantID uuid.UUID
	// Global marks an explicitly authorized cross-tenant scope. Only the
	// operations whitelisted by the persistence guard (tenant enumeration,
	// schema migration) may run under it.
	Global bool
}

// WithTenant binds a tenant to the context.
func WithTenant(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, scopeKey, Scope{TenantID: tenantID})
}

// WithGlobal binds the global scope to the context.
func WithGlobal(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeKey, Scope{Global: true})
}

// FromContext returns the bound scope, or ErrNotScoped when none is bound.
func FromContext(ctx context.Context) (Scope, error) {
	s, ok := ctx.Value(scopeKey).(Scope)
	if !ok {
		return Scope{}, ErrNotScoped
	}
	if !s.Global && s.TenantID == uuid.Nil {
		return Scope{}, ErrNotScoped
	}
	return s, nil
}

// TenantFromContext returns the bound tenant id. It fails with ErrNotScoped
// when nothing is bound and with ErrGlobalScopeForbidden when the global
// scope is bound, because callers asking for a single tenant must not run
// cross-tenant.
func TenantFromContext(ctx context.Context) (uuid.UUID, error) {
	s, err := FromContext(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if s.Global {
		return uuid.Nil, ErrGlobalScopeForbidden
	}
	return s.TenantID, nil
}
