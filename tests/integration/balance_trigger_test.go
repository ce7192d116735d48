package integration

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ledgerFixture seeds a chart version with two postable accounts
type ledgerFixture struct {
	tenantID  uuid.UUID
	versionID uuid.UUID
	cashID    uuid.UUID
	revenueID uuid.UUID
}

func seedLedger(t *testing.T, tdb *TestDB, code string) ledgerFixture {
	t.Helper()

	fx := ledgerFixture{
		tenantID:  tdb.CreateTestTenant(code),
		versionID: uuid.New(),
		cashID:    uuid.New(),
		revenueID: uuid.New(),
	}

	err := tdb.DB.Exec(`
		INSERT INTO chart_versions (id, tenant_id, name, fiscal_year, valid_from, valid_to, is_active)
		VALUES (?, ?, 'Plano 2026', 2026, '2026-01-01', '2026-12-31', TRUE)
	`, fx.versionID, fx.tenantID).Error
	require.NoError(t, err)

	for _, acc := range []struct {
		id             uuid.UUID
		accountCode    string
		description    string
		classification string
		nature         string
	}{
		{fx.cashID, "1.1.01.001", "Caixa", "ATIVO", "DEVEDORA"},
		{fx.revenueID, "4.1.02", "Prestação de Serviços", "RECEITA", "CREDORA"},
	} {
		err := tdb.DB.Exec(`
			INSERT INTO accounts
				(id, tenant_id, chart_version_id, code, description, level,
				 classification, nature, kind, allow_posting)
			VALUES (?, ?, ?, ?, ?, 4, ?, ?, 'ANALITICA', TRUE)
		`, acc.id, fx.tenantID, fx.versionID, acc.accountCode, acc.description,
			acc.classification, acc.nature).Error
		require.NoError(t, err)
	}

	return fx
}

// insertEntry writes an entry header and its items inside tx. The balance
// trigger is deferred, so violations surface at commit.
func insertEntry(t *testing.T, tx *sql.Tx, fx ledgerFixture, items []struct {
	side   string
	amount string
}) uuid.UUID {
	t.Helper()

	entryID := uuid.New()
	_, err := tx.Exec(`
		INSERT INTO entries
			(id, tenant_id, chart_version_id, entry_number, date, narrative, kind, total)
		VALUES ($1, $2, $3, nextval('entry_number_seq'), $4, 'lancamento de teste', 'MANUAL', 100.00)
	`, entryID, fx.tenantID, fx.versionID, time.Now())
	require.NoError(t, err)

	for i, item := range items {
		accountID := fx.cashID
		if item.side == "C" {
			accountID = fx.revenueID
		}
		_, err := tx.Exec(`
			INSERT INTO entry_items (id, entry_id, tenant_id, account_id, side, amount, sequence)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.New(), entryID, fx.tenantID, accountID, item.side, item.amount, i+1)
		require.NoError(t, err)
	}
	return entryID
}

type itemSpec = struct {
	side   string
	amount string
}

func TestBalanceTrigger_EnforcesDoubleEntry(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	ctx := context.Background()

	t.Run("balanced entry commits", func(t *testing.T) {
		fx := seedLedger(t, tdb, "bal_ok")
		tx, err := tdb.SqlDB.BeginTx(ctx, nil)
		require.NoError(t, err)

		entryID := insertEntry(t, tx, fx, []itemSpec{
			{"D", "100.00"},
			{"C", "100.00"},
		})
		require.NoError(t, tx.Commit())

		var count int
		require.NoError(t, tdb.SqlDB.QueryRow(
			"SELECT COUNT(*) FROM entry_items WHERE entry_id = $1", entryID).Scan(&count))
		assert.Equal(t, 2, count)
	})

	t.Run("unbalanced entry is rejected at commit", func(t *testing.T) {
		fx := seedLedger(t, tdb, "bal_bad")
		tx, err := tdb.SqlDB.BeginTx(ctx, nil)
		require.NoError(t, err)

		insertEntry(t, tx, fx, []itemSpec{
			{"D", "100.00"},
			{"C", "90.00"},
		})
		err = tx.Commit()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unbalanced")
	})

	t.Run("single-item entry is rejected", func(t *testing.T) {
		fx := seedLedger(t, tdb, "bal_one")
		tx, err := tdb.SqlDB.BeginTx(ctx, nil)
		require.NoError(t, err)

		insertEntry(t, tx, fx, []itemSpec{
			{"D", "100.00"},
		})
		err = tx.Commit()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least two items")
	})

	t.Run("removing one item from a posted entry is rejected", func(t *testing.T) {
		fx := seedLedger(t, tdb, "bal_del")
		tx, err := tdb.SqlDB.BeginTx(ctx, nil)
		require.NoError(t, err)
		entryID := insertEntry(t, tx, fx, []itemSpec{
			{"D", "100.00"},
			{"C", "100.00"},
		})
		require.NoError(t, tx.Commit())

		tx, err = tdb.SqlDB.BeginTx(ctx, nil)
		require.NoError(t, err)
		_, err = tx.Exec("DELETE FROM entry_items WHERE entry_id = $1 AND side = 'C'", entryID)
		require.NoError(t, err)
		err = tx.Commit()
		require.Error(t, err)
	})

	t.Run("deleting the whole entry cascades cleanly", func(t *testing.T) {
		fx := seedLedger(t, tdb, "bal_casc")
		tx, err := tdb.SqlDB.BeginTx(ctx, nil)
		require.NoError(t, err)
		entryID := insertEntry(t, tx, fx, []itemSpec{
			{"D", "100.00"},
			{"C", "100.00"},
		})
		require.NoError(t, tx.Commit())

		_, err = tdb.SqlDB.Exec("DELETE FROM entries WHERE id = $1", entryID)
		require.NoError(t, err)

		var count int
		require.NoError(t, tdb.SqlDB.QueryRow(
			"SELECT COUNT(*) FROM entry_items WHERE entry_id = $1", entryID).Scan(&count))
		assert.Equal(t, 0, count)
	})

	t.Run("check constraint rejects non-positive amounts", func(t *testing.T) {
		fx := seedLedger(t, tdb, "bal_amt")
		tx, err := tdb.SqlDB.BeginTx(ctx, nil)
		require.NoError(t, err)
		defer tx.Rollback()

		entryID := uuid.New()
		_, err = tx.Exec(`
			INSERT INTO entries
				(id, tenant_id, chart_version_id, entry_number, date, narrative, kind, total)
			VALUES ($1, $2, $3, nextval('entry_number_seq'), NOW(), 'valor invalido', 'MANUAL', 0)
		`, entryID, fx.tenantID, fx.versionID)
		require.NoError(t, err)

		_, err = tx.Exec(`
			INSERT INTO entry_items (id, entry_id, tenant_id, account_id, side, amount, sequence)
			VALUES ($1, $2, $3, $4, 'D', -5.00, 1)
		`, uuid.New(), entryID, fx.tenantID, fx.cashID)
		require.Error(t, err)
	})
}
