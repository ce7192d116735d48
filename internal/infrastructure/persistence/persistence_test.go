package persistence_test

import (
	"context"
	"testing"

	"github.com/fiscalerp/backend/internal/domain/certificate"
	"github.com/fiscalerp/backend/internal/domain/fiscal"
	"github.com/fiscalerp/backend/internal/domain/ledger"
	"github.com/fiscalerp/backend/internal/domain/tenancy"
	"github.com/fiscalerp/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens an in-memory sqlite database with the full schema and the
// tenant guard installed.
func newTestDB(t *testing.T) *persistence.Database {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a second connection to :memory: would see an empty database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&tenancy.Tenant{},
		&certificate.Certificate{},
		&fiscal.Document{},
		&fiscal.DocumentItem{},
		&fiscal.NSUCursor{},
		&ledger.ChartVersion{},
		&ledger.Account{},
		&ledger.Entry{},
		&ledger.EntryItem{},
	))

	wrapped, err := persistence.Wrap(db)
	require.NoError(t, err)

	t.Cleanup(func() { _ = wrapped.Close() })
	return wrapped
}

func scoped(tenantID uuid.UUID) context.Context {
	return tenancy.WithTenant(context.Background(), tenantID)
}

func mustCursor(t *testing.T, tenantID uuid.UUID, issuer, municipality string) *fiscal.NSUCursor {
	t.Helper()
	cursor, err := fiscal.NewNSUCursor(tenantID, issuer, municipality)
	require.NoError(t, err)
	return cursor
}
