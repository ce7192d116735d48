package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/fiscalerp/backend/internal/domain/ledger"
	"github.com/fiscalerp/backend/internal/domain/tenancy"
	"github.com/fiscalerp/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reportFixture seeds one chart version with two analytic accounts and three
// entries: January 100, February 50 and a reversed February 30 with its
// estorno. Only the first two may contribute to any aggregate.
type reportFixture struct {
	ctx      context.Context
	version  uuid.UUID
	caixa    *ledger.Account
	receita  *ledger.Account
	idle     *ledger.Account
	reports  *persistence.GormReportRepository
	entries  *persistence.GormEntryRepository
	tenantID uuid.UUID
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	db := newTestDB(t)

	tenantID := uuid.New()
	ctx := scoped(tenantID)
	versionID := uuid.New()

	accounts := persistence.NewGormAccountRepository(db.DB)
	entries := persistence.NewGormEntryRepository(db.DB)

	caixa, err := ledger.NewAccount(tenantID, versionID, "1.1.01", "Caixa", nil,
		ledger.ClassificationAsset, ledger.NatureDebit, ledger.AccountAnalytic)
	require.NoError(t, err)
	receita, err := ledger.NewAccount(tenantID, versionID, "4.1.01", "Receita de Vendas", nil,
		ledger.ClassificationRevenue, ledger.NatureCredit, ledger.AccountAnalytic)
	require.NoError(t, err)
	idle, err := ledger.NewAccount(tenantID, versionID, "1.1.02", "Bancos", nil,
		ledger.ClassificationAsset, ledger.NatureDebit, ledger.AccountAnalytic)
	require.NoError(t, err)
	synthetic, err := ledger.NewAccount(tenantID, versionID, "1", "Ativo", nil,
		ledger.ClassificationAsset, ledger.NatureDebit, ledger.AccountSynthetic)
	require.NoError(t, err)
	require.NoError(t, accounts.SaveAll(ctx, []*ledger.Account{synthetic, caixa, receita, idle}))

	post := func(date time.Time, narrative, amount string) *ledger.Entry {
		entry := mustEntry(t, tenantID, versionID, caixa.ID, receita.ID, date, narrative, amount)
		number, err := entries.NextEntryNumber(ctx)
		require.NoError(t, err)
		entry.EntryNumber = number
		require.NoError(t, entries.Save(ctx, entry))
		return entry
	}

	post(time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC), "Venda janeiro", "100.00")
	post(time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC), "Venda fevereiro", "50.00")

	cancelled := post(time.Date(2026, time.February, 20, 0, 0, 0, 0, time.UTC), "Venda cancelada", "30.00")
	reversal, err := cancelled.BuildReversal("", nil)
	require.NoError(t, err)
	number, err := entries.NextEntryNumber(ctx)
	require.NoError(t, err)
	reversal.EntryNumber = number
	require.NoError(t, entries.Save(ctx, reversal))
	require.NoError(t, entries.UpdateHeader(ctx, cancelled))

	return &reportFixture{
		ctx:      ctx,
		version:  versionID,
		caixa:    caixa,
		receita:  receita,
		idle:     idle,
		reports:  persistence.NewGormReportRepository(db.DB),
		entries:  entries,
		tenantID: tenantID,
	}
}

func movementByCode(rows []ledger.AccountMovement, code string) *ledger.AccountMovement {
	for i := range rows {
		if rows[i].Code == code {
			return &rows[i]
		}
	}
	return nil
}

func TestAccountMovementsSplitsAndExcludesReversals(t *testing.T) {
	f := newReportFixture(t)

	start := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.February, 28, 23, 59, 59, 0, time.UTC)

	rows, err := f.reports.AccountMovements(f.ctx, f.version, start, end, false)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	caixa := movementByCode(rows, "1.1.01")
	require.NotNil(t, caixa)
	assert.True(t, caixa.OpeningDebit.Equal(decimal.RequireFromString("100.00")), caixa.OpeningDebit.String())
	assert.True(t, caixa.OpeningCredit.IsZero())
	assert.True(t, caixa.Debit.Equal(decimal.RequireFromString("50.00")), caixa.Debit.String())
	assert.True(t, caixa.Credit.IsZero())
	assert.True(t, caixa.NatureSignedOpening().Equal(decimal.RequireFromString("100.00")))
	assert.True(t, caixa.NatureSignedClosing().Equal(decimal.RequireFromString("150.00")))

	receita := movementByCode(rows, "4.1.01")
	require.NotNil(t, receita)
	assert.True(t, receita.Credit.Equal(decimal.RequireFromString("50.00")))
	assert.True(t, receita.NatureSignedClosing().Equal(decimal.RequireFromString("150.00")))

	// idle accounts appear only on request, synthetic ones never
	rows, err = f.reports.AccountMovements(f.ctx, f.version, start, end, true)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.NotNil(t, movementByCode(rows, "1.1.02"))
	assert.Nil(t, movementByCode(rows, "1"))
}

func TestBalancesAsOfAccumulates(t *testing.T) {
	f := newReportFixture(t)

	rows, err := f.reports.BalancesAsOf(f.ctx, f.version,
		time.Date(2026, time.February, 28, 23, 59, 59, 0, time.UTC))
	require.NoError(t, err)

	caixa := movementByCode(rows, "1.1.01")
	require.NotNil(t, caixa)
	assert.True(t, caixa.Debit.Equal(decimal.RequireFromString("150.00")), caixa.Debit.String())
	assert.True(t, caixa.Credit.IsZero())

	// cut before February sees January only
	rows, err = f.reports.BalancesAsOf(f.ctx, f.version,
		time.Date(2026, time.January, 31, 23, 59, 59, 0, time.UTC))
	require.NoError(t, err)
	caixa = movementByCode(rows, "1.1.01")
	require.NotNil(t, caixa)
	assert.True(t, caixa.Debit.Equal(decimal.RequireFromString("100.00")))
}

func TestAccountPostingsWindow(t *testing.T) {
	f := newReportFixture(t)

	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.December, 31, 23, 59, 59, 0, time.UTC)

	rows, err := f.reports.AccountPostings(f.ctx, f.caixa.ID, start, end)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Venda janeiro", rows[0].Narrative)
	assert.Equal(t, ledger.SideDebit, rows[0].Side)
	assert.True(t, rows[0].Amount.Equal(decimal.RequireFromString("100.00")))
	assert.Equal(t, "Venda fevereiro", rows[1].Narrative)

	february := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	rows, err = f.reports.AccountPostings(f.ctx, f.caixa.ID, february, end)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestReportsRequireTenantScope(t *testing.T) {
	f := newReportFixture(t)

	_, err := f.reports.AccountMovements(context.Background(), f.version,
		time.Now().AddDate(0, -1, 0), time.Now(), false)
	assert.ErrorIs(t, err, tenancy.ErrNotScoped)

	_, err = f.reports.BalancesAsOf(tenancy.WithGlobal(context.Background()), f.version, time.Now())
	assert.ErrorIs(t, err, tenancy.ErrGlobalScopeForbidden)
}
