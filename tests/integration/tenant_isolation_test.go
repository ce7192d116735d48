package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscalerp/backend/internal/domain/fiscal"
	"github.com/fiscalerp/backend/internal/domain/tenancy"
	"github.com/fiscalerp/backend/internal/infrastructure/persistence"
)

// seedDocument inserts a fiscal document row as the superuser, bypassing
// both the GORM guard and RLS. Tests use it to stage cross-tenant data.
func seedDocument(t *testing.T, tdb *TestDB, tenantID uuid.UUID, key string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	err := tdb.DB.Exec(`
		INSERT INTO fiscal_documents
			(id, tenant_id, kind, key, number, issuer_cnpj, direction, status,
			 issue_date, total_amount, xml_path, xml_hash)
		VALUES (?, ?, 'nfe', ?, '123', '11222333000181', 'INBOUND', 'NORMAL',
			NOW(), 100.00, ?, ?)
	`, id, tenantID, key, "xml/"+key+".xml", fmt.Sprintf("%032d", 1)).Error
	require.NoError(t, err, "Failed to seed document")
	return id
}

func testKey(prefix string) string {
	return fmt.Sprintf("%s%0*d", prefix, 44-len(prefix), time.Now().UnixNano())
}

func TestRowLevelSecurity_IsolatesTenants(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	tenantA := tdb.CreateTestTenant("rls_a")
	tenantB := tdb.CreateTestTenant("rls_b")

	keyA := testKey("50")
	keyB := testKey("51")
	seedDocument(t, tdb, tenantA, keyA)
	seedDocument(t, tdb, tenantB, keyB)

	conn := tdb.AppRoleConn()
	ctx := context.Background()

	t.Run("scoped session sees only its tenant", func(t *testing.T) {
		tx, err := conn.BeginTx(ctx, nil)
		require.NoError(t, err)
		defer tx.Rollback()

		_, err = tx.Exec("SET LOCAL app.tenant_id = '" + tenantA.String() + "'")
		require.NoError(t, err)

		var count int
		require.NoError(t, tx.QueryRow("SELECT COUNT(*) FROM fiscal_documents").Scan(&count))
		assert.Equal(t, 1, count)

		var key string
		require.NoError(t, tx.QueryRow("SELECT key FROM fiscal_documents").Scan(&key))
		assert.Equal(t, keyA, key)
	})

	t.Run("unscoped session sees nothing", func(t *testing.T) {
		var count int
		require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM fiscal_documents").Scan(&count))
		assert.Equal(t, 0, count)
	})

	t.Run("write for another tenant is rejected", func(t *testing.T) {
		tx, err := conn.BeginTx(ctx, nil)
		require.NoError(t, err)
		defer tx.Rollback()

		_, err = tx.Exec("SET LOCAL app.tenant_id = '" + tenantA.String() + "'")
		require.NoError(t, err)

		_, err = tx.Exec(`
			INSERT INTO fiscal_documents
				(id, tenant_id, kind, key, number, issuer_cnpj, direction, status,
				 issue_date, total_amount, xml_path, xml_hash)
			VALUES ($1, $2, 'nfe', $3, '9', '11222333000181', 'INBOUND', 'NORMAL',
				NOW(), 1.00, 'xml/x.xml', $4)
		`, uuid.New(), tenantB, testKey("52"), fmt.Sprintf("%032d", 2))
		require.Error(t, err, "cross-tenant insert should violate the policy")
	})

	t.Run("tenants table stays readable without scope", func(t *testing.T) {
		var count int
		require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM tenants").Scan(&count))
		assert.GreaterOrEqual(t, count, 2)
	})
}

func TestTenancyGuard_ScopesGormQueries(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	db := tdb.Wrap()
	tenantA := tdb.CreateTestTenant("guard_a")
	tenantB := tdb.CreateTestTenant("guard_b")

	keyA := testKey("53")
	docID := seedDocument(t, tdb, tenantA, keyA)
	seedDocument(t, tdb, tenantB, testKey("54"))

	repo := persistence.NewGormDocumentRepository(db.DB)

	t.Run("find is invisible across tenants", func(t *testing.T) {
		ctxA := tenancy.WithTenant(context.Background(), tenantA)
		doc, err := repo.FindByID(ctxA, docID)
		require.NoError(t, err)
		assert.Equal(t, keyA, doc.Key)

		ctxB := tenancy.WithTenant(context.Background(), tenantB)
		_, err = repo.FindByID(ctxB, docID)
		require.Error(t, err)
	})

	t.Run("list returns only the scoped tenant's rows", func(t *testing.T) {
		ctxA := tenancy.WithTenant(context.Background(), tenantA)
		docs, total, err := repo.List(ctxA, fiscal.DocumentFilter{Page: 1, PageSize: 50})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, docs, 1)
		assert.Equal(t, tenantA, docs[0].TenantID)
	})

	t.Run("unscoped context is refused", func(t *testing.T) {
		_, err := repo.FindByID(context.Background(), docID)
		require.ErrorIs(t, err, tenancy.ErrNotScoped)
	})
}
