package persistence_test

import (
	"context"
	"testing"

	"github.com/fiscalerp/backend/internal/domain/fiscal"
	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/fiscalerp/backend/internal/domain/tenancy"
	"github.com/fiscalerp/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guardIssuer = "12345678000190"

func TestGuardRejectsUnscopedOperations(t *testing.T) {
	db := newTestDB(t)
	repo := persistence.NewGormCursorRepository(db.DB)

	_, err := repo.List(context.Background())
	assert.ErrorIs(t, err, tenancy.ErrNotScoped)

	cursor := mustCursor(t, uuid.New(), guardIssuer, "")
	err = repo.Save(context.Background(), cursor)
	assert.ErrorIs(t, err, tenancy.ErrNotScoped)
}

func TestGuardIsolatesTenants(t *testing.T) {
	db := newTestDB(t)
	repo := persistence.NewGormCursorRepository(db.DB)

	tenantA := uuid.New()
	tenantB := uuid.New()

	require.NoError(t, repo.Save(scoped(tenantA), mustCursor(t, tenantA, guardIssuer, "")))

	// tenant B sees nothing of tenant A
	_, err := repo.Find(scoped(tenantB), guardIssuer, "")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	listed, err := repo.List(scoped(tenantB))
	require.NoError(t, err)
	assert.Empty(t, listed)

	found, err := repo.Find(scoped(tenantA), guardIssuer, "")
	require.NoError(t, err)
	assert.Equal(t, tenantA, found.TenantID)
}

func TestGuardStampsTenantOnCreate(t *testing.T) {
	db := newTestDB(t)
	tenantID := uuid.New()

	cursor := &fiscal.NSUCursor{
		TenantEntity: shared.TenantEntity{BaseEntity: shared.NewBaseEntity()},
		IssuerCNPJ:   guardIssuer,
	}
	require.Equal(t, uuid.Nil, cursor.TenantID)

	repo := persistence.NewGormCursorRepository(db.DB)
	require.NoError(t, repo.Save(scoped(tenantID), cursor))
	assert.Equal(t, tenantID, cursor.TenantID)
}

func TestGuardRejectsCrossTenantCreate(t *testing.T) {
	db := newTestDB(t)
	repo := persistence.NewGormCursorRepository(db.DB)

	tenantA := uuid.New()
	tenantB := uuid.New()

	err := repo.Save(scoped(tenantA), mustCursor(t, tenantB, guardIssuer, ""))
	assert.ErrorIs(t, err, tenancy.ErrCrossTenant)
}

func TestGuardForbidsGlobalScopeOnOwnedTables(t *testing.T) {
	db := newTestDB(t)
	repo := persistence.NewGormCursorRepository(db.DB)

	ctx := tenancy.WithGlobal(context.Background())

	_, err := repo.List(ctx)
	assert.ErrorIs(t, err, tenancy.ErrGlobalScopeForbidden)

	err = repo.Save(ctx, mustCursor(t, uuid.New(), guardIssuer, ""))
	assert.ErrorIs(t, err, tenancy.ErrGlobalScopeForbidden)
}

func TestTenantTableIsExemptFromGuard(t *testing.T) {
	db := newTestDB(t)
	repo := persistence.NewGormTenantRepository(db.DB)

	tenant, err := tenancy.NewTenant("acme", "Acme Ltda", "12345678000190")
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), tenant))

	// enumeration runs under the global scope only
	_, err = repo.ListActive(scoped(uuid.New()))
	assert.ErrorIs(t, err, tenancy.ErrGlobalScopeForbidden)

	listed, err := repo.ListActive(tenancy.WithGlobal(context.Background()))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "acme", listed[0].Code)
}
