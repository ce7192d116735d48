package persistence_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fiscalerp/backend/internal/domain/tenancy"
	"github.com/fiscalerp/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newMockPostgres opens a gorm handle over sqlmock with the postgres
// dialector, so the SET LOCAL branch of TenantTx is exercised without a
// real server.
func newMockPostgres(t *testing.T) (*persistence.Database, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{
		Conn:       sqlDB,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	wrapped, err := persistence.Wrap(db)
	require.NoError(t, err)

	t.Cleanup(func() { sqlDB.Close() })
	return wrapped, mock
}

func TestTenantTx_BindsTenantToSession(t *testing.T) {
	db, mock := newMockPostgres(t)
	tenantID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL app\.tenant_id = \$1`).
		WithArgs(tenantID.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := db.TenantTx(tenancy.WithTenant(context.Background(), tenantID), func(tx *gorm.DB) error {
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantTx_RollsBackOnError(t *testing.T) {
	db, mock := newMockPostgres(t)
	tenantID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL app\.tenant_id = \$1`).
		WithArgs(tenantID.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	boom := errors.New("posting failed")
	err := db.TenantTx(tenancy.WithTenant(context.Background(), tenantID), func(tx *gorm.DB) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantTx_GlobalScopeSkipsBinding(t *testing.T) {
	db, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := db.TenantTx(tenancy.WithGlobal(context.Background()), func(tx *gorm.DB) error {
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantTx_RefusesUnscopedContext(t *testing.T) {
	db, mock := newMockPostgres(t)

	err := db.TenantTx(context.Background(), func(tx *gorm.DB) error {
		t.Fatal("fn must not run without a scope")
		return nil
	})
	require.ErrorIs(t, err, tenancy.ErrNotScoped)
	require.NoError(t, mock.ExpectationsWereMet())
}
