package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appledger "github.com/fiscalerp/backend/internal/application/ledger"
	"github.com/fiscalerp/backend/internal/domain/ledger"
	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/fiscalerp/backend/internal/domain/tenancy"
	"github.com/fiscalerp/backend/internal/infrastructure/persistence"
)

type ledgerServices struct {
	chart   *appledger.ChartService
	posting *appledger.PostingService
	reports *appledger.ReportService
}

func newLedgerServices(t *testing.T, tdb *TestDB) ledgerServices {
	t.Helper()

	db := tdb.Wrap()
	versions := persistence.NewGormChartVersionRepository(db.DB)
	accounts := persistence.NewGormAccountRepository(db.DB)
	entries := persistence.NewGormEntryRepository(db.DB)
	reports := persistence.NewGormReportRepository(db.DB)

	return ledgerServices{
		chart:   appledger.NewChartService(db, versions, accounts),
		posting: appledger.NewPostingService(db, versions, accounts, entries),
		reports: appledger.NewReportService(reports, accounts),
	}
}

func accountByCode(t *testing.T, accounts []ledger.Account, code string) ledger.Account {
	t.Helper()
	for _, acc := range accounts {
		if acc.Code == code {
			return acc
		}
	}
	t.Fatalf("account %s not found in chart", code)
	return ledger.Account{}
}

func TestPostingFlow_ChartToTrialBalance(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	svc := newLedgerServices(t, tdb)
	tenantID := tdb.CreateTestTenant("flow_a")
	ctx := tenancy.WithTenant(context.Background(), tenantID)

	result, err := svc.chart.ImportDefaultChart(ctx, 2026)
	require.NoError(t, err)
	assert.Greater(t, result.AccountsCreated, 50)

	accounts, err := svc.chart.ListAccounts(ctx, result.VersionID, false)
	require.NoError(t, err)
	cash := accountByCode(t, accounts, "1.1.01.001")
	revenue := accountByCode(t, accounts, "4.1.02")
	assetRoot := accountByCode(t, accounts, "1")

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	amount := decimal.NewFromFloat(1500.00)

	entry, err := svc.posting.PostEntry(ctx, appledger.PostEntryInput{
		VersionID: result.VersionID,
		Date:      date,
		Narrative: "Recebimento de serviços prestados",
		Kind:      ledger.EntryManual,
		Items: []appledger.PostingItemInput{
			{AccountID: cash.ID, Side: ledger.SideDebit, Amount: amount},
			{AccountID: revenue.ID, Side: ledger.SideCredit, Amount: amount},
		},
	})
	require.NoError(t, err)
	assert.Positive(t, entry.EntryNumber)
	assert.True(t, entry.Total.Equal(amount))

	t.Run("unbalanced posting is refused before the database", func(t *testing.T) {
		_, err := svc.posting.PostEntry(ctx, appledger.PostEntryInput{
			VersionID: result.VersionID,
			Date:      date,
			Narrative: "Lançamento inconsistente",
			Kind:      ledger.EntryManual,
			Items: []appledger.PostingItemInput{
				{AccountID: cash.ID, Side: ledger.SideDebit, Amount: amount},
				{AccountID: revenue.ID, Side: ledger.SideCredit, Amount: amount.Sub(decimal.NewFromInt(10))},
			},
		})
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "UNBALANCED_ENTRY", domainErr.Code)
	})

	t.Run("synthetic account refuses postings", func(t *testing.T) {
		_, err := svc.posting.PostEntry(ctx, appledger.PostEntryInput{
			VersionID: result.VersionID,
			Date:      date,
			Narrative: "Lançamento em conta sintética",
			Kind:      ledger.EntryManual,
			Items: []appledger.PostingItemInput{
				{AccountID: assetRoot.ID, Side: ledger.SideDebit, Amount: amount},
				{AccountID: revenue.ID, Side: ledger.SideCredit, Amount: amount},
			},
		})
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "NON_POSTABLE_ACCOUNT", domainErr.Code)
	})

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)

	t.Run("trial balance closes balanced", func(t *testing.T) {
		tb, err := svc.reports.TrialBalance(ctx, result.VersionID, start, end, false)
		require.NoError(t, err)
		assert.True(t, tb.Sound)
		assert.True(t, tb.TotalDebit.Equal(tb.TotalCredit))
		assert.True(t, tb.TotalDebit.Equal(amount))

		cashRow := false
		for _, row := range tb.Rows {
			if row.AccountID == cash.ID {
				cashRow = true
				assert.True(t, row.Closing.Equal(amount))
			}
		}
		assert.True(t, cashRow, "cash account should appear with movement")
	})

	t.Run("reversal nets the ledger to zero", func(t *testing.T) {
		reversal, err := svc.posting.ReverseEntry(ctx, entry.ID, "Estorno do recebimento", nil)
		require.NoError(t, err)
		assert.NotEqual(t, entry.ID, reversal.ID)

		tb, err := svc.reports.TrialBalance(ctx, result.VersionID, start, end, false)
		require.NoError(t, err)
		assert.True(t, tb.Sound)
		for _, row := range tb.Rows {
			if row.AccountID == cash.ID {
				assert.True(t, row.Closing.IsZero(), "reversal should cancel the cash movement")
			}
		}

		_, err = svc.posting.ReverseEntry(ctx, entry.ID, "Estorno duplicado", nil)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "ALREADY_REVERSED", domainErr.Code)
	})

	t.Run("reversed entry cannot be deleted", func(t *testing.T) {
		err := svc.posting.DeleteEntry(ctx, entry.ID)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "REVERSED_ENTRY_DELETION", domainErr.Code)
	})

	t.Run("account ledger lists both movements", func(t *testing.T) {
		lg, err := svc.reports.AccountLedger(ctx, cash.ID, start, end)
		require.NoError(t, err)
		assert.Len(t, lg.Rows, 2)
		assert.True(t, lg.Closing.IsZero())
	})

	t.Run("another tenant sees an empty chart", func(t *testing.T) {
		otherID := tdb.CreateTestTenant("flow_b")
		otherCtx := tenancy.WithTenant(context.Background(), otherID)

		versions, err := svc.chart.ListVersions(otherCtx)
		require.NoError(t, err)
		assert.Empty(t, versions)
	})
}

func TestPostingFlow_EntryNumbersNeverRecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	svc := newLedgerServices(t, tdb)
	tenantID := tdb.CreateTestTenant("seq_a")
	ctx := tenancy.WithTenant(context.Background(), tenantID)

	result, err := svc.chart.ImportDefaultChart(ctx, 2026)
	require.NoError(t, err)
	accounts, err := svc.chart.ListAccounts(ctx, result.VersionID, false)
	require.NoError(t, err)
	cash := accountByCode(t, accounts, "1.1.01.001")
	revenue := accountByCode(t, accounts, "4.1.02")

	post := func(narrative string) *ledger.Entry {
		entry, err := svc.posting.PostEntry(ctx, appledger.PostEntryInput{
			VersionID: result.VersionID,
			Date:      time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
			Narrative: narrative,
			Kind:      ledger.EntryManual,
			Items: []appledger.PostingItemInput{
				{AccountID: cash.ID, Side: ledger.SideDebit, Amount: decimal.NewFromInt(10)},
				{AccountID: revenue.ID, Side: ledger.SideCredit, Amount: decimal.NewFromInt(10)},
			},
		})
		require.NoError(t, err)
		return entry
	}

	first := post("Primeiro lançamento")
	second := post("Segundo lançamento")
	require.Greater(t, second.EntryNumber, first.EntryNumber)

	require.NoError(t, svc.posting.DeleteEntry(ctx, second.ID))

	third := post("Terceiro lançamento")
	assert.Greater(t, third.EntryNumber, second.EntryNumber,
		"deleting an entry must not release its number")

	var id uuid.UUID
	err = tdb.SqlDB.QueryRow("SELECT id FROM entries WHERE id = $1", second.ID).Scan(&id)
	require.Error(t, err, "deleted entry should be gone")
}
