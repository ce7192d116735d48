package ledger_test

import (
	"context"
	"testing"
	"time"

	app "github.com/fiscalerp/backend/internal/application/ledger"
	"github.com/fiscalerp/backend/internal/domain/ledger"
	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/fiscalerp/backend/internal/domain/tenancy"
	"github.com/fiscalerp/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type ledgerEnv struct {
	ctx       context.Context
	tenantID  uuid.UUID
	versionID uuid.UUID
	posting   *app.PostingService
	charts    *app.ChartService
	reports   *app.ReportService
	accounts  ledger.AccountRepository
	entries   ledger.EntryRepository
}

func newLedgerEnv(t *testing.T) *ledgerEnv {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.AutoMigrate(
		&ledger.ChartVersion{}, &ledger.Account{}, &ledger.Entry{}, &ledger.EntryItem{},
	))
	db, err := persistence.Wrap(gdb)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tenantID := uuid.New()
	ctx := tenancy.WithTenant(context.Background(), tenantID)

	versions := persistence.NewGormChartVersionRepository(db.DB)
	accounts := persistence.NewGormAccountRepository(db.DB)
	entries := persistence.NewGormEntryRepository(db.DB)
	reportsRepo := persistence.NewGormReportRepository(db.DB)

	charts := app.NewChartService(db, versions, accounts)
	imported, err := charts.ImportDefaultChart(ctx, 2026)
	require.NoError(t, err)

	return &ledgerEnv{
		ctx:       ctx,
		tenantID:  tenantID,
		versionID: imported.VersionID,
		posting:   app.NewPostingService(db, versions, accounts, entries),
		charts:    charts,
		reports:   app.NewReportService(reportsRepo, accounts),
		accounts:  accounts,
		entries:   entries,
	}
}

func (e *ledgerEnv) account(t *testing.T, code string) *ledger.Account {
	t.Helper()
	account, err := e.accounts.FindByCode(e.ctx, e.versionID, code)
	require.NoError(t, err)
	return account
}

func (e *ledgerEnv) post(t *testing.T, date time.Time, narrative, debitCode, creditCode, amount string) *ledger.Entry {
	t.Helper()
	value := decimal.RequireFromString(amount)
	entry, err := e.posting.PostEntry(e.ctx, app.PostEntryInput{
		VersionID: e.versionID,
		Date:      date,
		Narrative: narrative,
		Kind:      ledger.EntryManual,
		Items: []app.PostingItemInput{
			{AccountID: e.account(t, debitCode).ID, Side: ledger.SideDebit, Amount: value},
			{AccountID: e.account(t, creditCode).ID, Side: ledger.SideCredit, Amount: value},
		},
	})
	require.NoError(t, err)
	return entry
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	return domainErr.Code
}

func TestImportDefaultChart(t *testing.T) {
	env := newLedgerEnv(t)

	listed, err := env.charts.ListAccounts(env.ctx, env.versionID, false)
	require.NoError(t, err)
	assert.Equal(t, len(ledger.DefaultPlan()), len(listed))

	// parents resolved in code order
	caixa := env.account(t, "1.1.01.001")
	require.NotNil(t, caixa.ParentID)
	parent := env.account(t, "1.1.01")
	assert.Equal(t, parent.ID, *caixa.ParentID)

	// non-empty active version gets a fresh sibling
	again, err := env.charts.ImportDefaultChart(env.ctx, 2026)
	require.NoError(t, err)
	assert.False(t, again.Populated)
	assert.NotEqual(t, env.versionID, again.VersionID)
}

func TestPostEntryAssignsSequentialNumbers(t *testing.T) {
	env := newLedgerEnv(t)
	date := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)

	first := env.post(t, date, "Venda #42", "1.1.01.002", "4.1.01", "1000.00")
	second := env.post(t, date, "Venda #43", "1.1.01.002", "4.1.01", "500.00")

	assert.EqualValues(t, 1, first.EntryNumber)
	assert.EqualValues(t, 2, second.EntryNumber)
}

func TestPostEntryInvariants(t *testing.T) {
	env := newLedgerEnv(t)
	date := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	bancos := env.account(t, "1.1.01.002")
	receita := env.account(t, "4.1.01")

	t.Run("unbalanced", func(t *testing.T) {
		_, err := env.posting.PostEntry(env.ctx, app.PostEntryInput{
			VersionID: env.versionID, Date: date, Narrative: "desbalanceado", Kind: ledger.EntryManual,
			Items: []app.PostingItemInput{
				{AccountID: bancos.ID, Side: ledger.SideDebit, Amount: decimal.RequireFromString("100.00")},
				{AccountID: receita.ID, Side: ledger.SideCredit, Amount: decimal.RequireFromString("99.99")},
			},
		})
		assert.Equal(t, "UNBALANCED_ENTRY", domainCode(t, err))
		assert.Contains(t, err.Error(), "0.01")
	})

	t.Run("degenerate", func(t *testing.T) {
		_, err := env.posting.PostEntry(env.ctx, app.PostEntryInput{
			VersionID: env.versionID, Date: date, Narrative: "um item", Kind: ledger.EntryManual,
			Items: []app.PostingItemInput{
				{AccountID: bancos.ID, Side: ledger.SideDebit, Amount: decimal.RequireFromString("100.00")},
			},
		})
		assert.ErrorIs(t, err, ledger.ErrDegenerateEntry)
	})

	t.Run("synthetic account", func(t *testing.T) {
		synthetic := env.account(t, "1.1")
		_, err := env.posting.PostEntry(env.ctx, app.PostEntryInput{
			VersionID: env.versionID, Date: date, Narrative: "sintética", Kind: ledger.EntryManual,
			Items: []app.PostingItemInput{
				{AccountID: synthetic.ID, Side: ledger.SideDebit, Amount: decimal.RequireFromString("100.00")},
				{AccountID: receita.ID, Side: ledger.SideCredit, Amount: decimal.RequireFromString("100.00")},
			},
		})
		assert.ErrorIs(t, err, ledger.ErrNonPostableAccount)
	})

	t.Run("account from another version", func(t *testing.T) {
		other, err := env.charts.ImportDefaultChart(env.ctx, 2026)
		require.NoError(t, err)
		foreign, err := env.accounts.FindByCode(env.ctx, other.VersionID, "4.1.01")
		require.NoError(t, err)
		_, err = env.posting.PostEntry(env.ctx, app.PostEntryInput{
			VersionID: env.versionID, Date: date, Narrative: "versão errada", Kind: ledger.EntryManual,
			Items: []app.PostingItemInput{
				{AccountID: bancos.ID, Side: ledger.SideDebit, Amount: decimal.RequireFromString("100.00")},
				{AccountID: foreign.ID, Side: ledger.SideCredit, Amount: decimal.RequireFromString("100.00")},
			},
		})
		assert.ErrorIs(t, err, app.ErrAccountVersionMismatch)
	})
}

func TestPostAndReverseSale(t *testing.T) {
	env := newLedgerEnv(t)
	date := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)

	entry := env.post(t, date, "Venda #42", "1.1.01.002", "4.1.01", "1000.00")

	reversal, err := env.posting.ReverseEntry(env.ctx, entry.ID, "Cancela Venda #42", nil)
	require.NoError(t, err)
	assert.Equal(t, ledger.OriginReversal, reversal.OriginTag)
	assert.Equal(t, entry.ID.String(), reversal.OriginID)
	require.Len(t, reversal.Items, 2)
	assert.Equal(t, ledger.SideCredit, reversal.Items[0].Side)
	assert.Equal(t, ledger.SideDebit, reversal.Items[1].Side)

	original, err := env.entries.FindByID(env.ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, original.Reversed)
	require.NotNil(t, original.ReversalEntryID)
	assert.Equal(t, reversal.ID, *original.ReversalEntryID)

	// reversing twice is refused
	_, err = env.posting.ReverseEntry(env.ctx, entry.ID, "", nil)
	assert.ErrorIs(t, err, ledger.ErrAlreadyReversed)

	// the pair nets to zero on the trial balance
	tb, err := env.reports.TrialBalance(env.ctx, env.versionID,
		time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.January, 31, 23, 59, 59, 0, time.UTC), false)
	require.NoError(t, err)
	assert.Empty(t, tb.Rows)
	assert.True(t, tb.TotalDebit.IsZero())
	assert.True(t, tb.Sound)
}

func TestDeleteEntryRules(t *testing.T) {
	env := newLedgerEnv(t)
	date := time.Date(2026, time.January, 20, 0, 0, 0, 0, time.UTC)

	entry := env.post(t, date, "Venda #50", "1.1.01.002", "4.1.01", "200.00")
	reversal, err := env.posting.ReverseEntry(env.ctx, entry.ID, "", nil)
	require.NoError(t, err)

	// a reversed original cannot be deleted
	err = env.posting.DeleteEntry(env.ctx, entry.ID)
	assert.ErrorIs(t, err, ledger.ErrReversedEntryDeletion)

	// deleting the reversal un-marks the source
	require.NoError(t, env.posting.DeleteEntry(env.ctx, reversal.ID))
	original, err := env.entries.FindByID(env.ctx, entry.ID)
	require.NoError(t, err)
	assert.False(t, original.Reversed)
	assert.Nil(t, original.ReversalEntryID)

	// now the source itself can go
	require.NoError(t, env.posting.DeleteEntry(env.ctx, entry.ID))
	_, err = env.entries.FindByID(env.ctx, entry.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestTrialBalanceWindow(t *testing.T) {
	env := newLedgerEnv(t)

	env.post(t, time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC), "Venda jan", "1.1.01.002", "4.1.01", "100.00")
	env.post(t, time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC), "Venda fev", "1.1.01.002", "4.1.01", "50.00")

	tb, err := env.reports.TrialBalance(env.ctx, env.versionID,
		time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.February, 28, 23, 59, 59, 0, time.UTC), false)
	require.NoError(t, err)
	require.Len(t, tb.Rows, 2)

	var bancos *app.TrialBalanceRow
	for i := range tb.Rows {
		if tb.Rows[i].Code == "1.1.01.002" {
			bancos = &tb.Rows[i]
		}
	}
	require.NotNil(t, bancos)
	assert.True(t, bancos.Opening.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, bancos.Debit.Equal(decimal.RequireFromString("50.00")))
	assert.True(t, bancos.Closing.Equal(decimal.RequireFromString("150.00")))

	assert.True(t, tb.TotalDebit.Equal(tb.TotalCredit))
	assert.True(t, tb.TotalDebitBalances.Equal(decimal.RequireFromString("150.00")))
	assert.True(t, tb.TotalCreditBalances.Equal(decimal.RequireFromString("150.00")))
	assert.True(t, tb.Sound)
}

func TestIncomeStatementSingleMonth(t *testing.T) {
	env := newLedgerEnv(t)

	env.post(t, time.Date(2026, time.February, 5, 0, 0, 0, 0, time.UTC), "Licenças fevereiro", "1.1.01.002", "4.1.01", "10000.00")
	env.post(t, time.Date(2026, time.February, 12, 0, 0, 0, 0, time.UTC), "Folha fevereiro", "6.1.01", "2.1.01.001", "3000.00")

	dre, err := env.reports.IncomeStatement(env.ctx, env.versionID,
		time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.February, 28, 23, 59, 59, 0, time.UTC), false)
	require.NoError(t, err)

	totals := dre.Totals
	assert.True(t, totals.GrossRevenue.Equal(decimal.RequireFromString("10000.00")))
	assert.True(t, totals.Deductions.IsZero())
	assert.True(t, totals.NetRevenue.Equal(decimal.RequireFromString("10000.00")))
	assert.True(t, totals.Costs.IsZero())
	assert.True(t, totals.GrossProfit.Equal(decimal.RequireFromString("10000.00")))
	assert.True(t, totals.OperatingExpenses.Equal(decimal.RequireFromString("3000.00")))
	assert.True(t, totals.OperatingResult.Equal(decimal.RequireFromString("7000.00")))
	assert.True(t, totals.FinancialResult.IsZero())
	assert.True(t, totals.NetResult.Equal(decimal.RequireFromString("7000.00")))
	assert.True(t, totals.NetMarginPercent.Equal(decimal.RequireFromString("70.00")), totals.NetMarginPercent.String())

	require.Len(t, dre.GrossRevenue.Lines, 1)
	assert.Equal(t, "4.1.01", dre.GrossRevenue.Lines[0].Code)
	require.Len(t, dre.OperatingExpenses.Lines, 1)
	assert.True(t, dre.OperatingExpenses.PercentOfGross.Equal(decimal.RequireFromString("30.00")))
	assert.Nil(t, dre.Prior)
}

func TestIncomeStatementComparative(t *testing.T) {
	env := newLedgerEnv(t)

	// equal-length window immediately before February: Jan 4 .. Jan 31
	env.post(t, time.Date(2026, time.January, 20, 0, 0, 0, 0, time.UTC), "Licenças janeiro", "1.1.01.002", "4.1.01", "5000.00")
	env.post(t, time.Date(2026, time.February, 5, 0, 0, 0, 0, time.UTC), "Licenças fevereiro", "1.1.01.002", "4.1.01", "10000.00")

	dre, err := env.reports.IncomeStatement(env.ctx, env.versionID,
		time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC), true)
	require.NoError(t, err)

	require.NotNil(t, dre.Prior)
	assert.True(t, dre.Prior.GrossRevenue.Equal(decimal.RequireFromString("5000.00")))
	require.NotNil(t, dre.Variation)
	assert.True(t, dre.Variation.GrossRevenue.Equal(decimal.RequireFromString("100.00")), dre.Variation.GrossRevenue.String())
}

func TestBalanceSheetCloses(t *testing.T) {
	env := newLedgerEnv(t)

	env.post(t, time.Date(2026, time.February, 5, 0, 0, 0, 0, time.UTC), "Licenças fevereiro", "1.1.01.002", "4.1.01", "10000.00")
	env.post(t, time.Date(2026, time.February, 12, 0, 0, 0, 0, time.UTC), "Folha fevereiro", "6.1.01", "2.1.01.001", "3000.00")

	bs, err := env.reports.BalanceSheet(env.ctx, env.versionID,
		time.Date(2026, time.February, 28, 23, 59, 59, 0, time.UTC))
	require.NoError(t, err)

	assert.True(t, bs.CurrentAssets.Total.Equal(decimal.RequireFromString("10000.00")))
	assert.True(t, bs.CurrentLiabilities.Total.Equal(decimal.RequireFromString("3000.00")))
	assert.True(t, bs.PeriodResult.Equal(decimal.RequireFromString("7000.00")))
	assert.True(t, bs.TotalEquity.Equal(decimal.RequireFromString("7000.00")))
	assert.True(t, bs.Balanced)
}

func TestAccountLedgerRunningBalance(t *testing.T) {
	env := newLedgerEnv(t)
	bancos := env.account(t, "1.1.01.002")

	env.post(t, time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC), "Venda jan", "1.1.01.002", "4.1.01", "100.00")
	env.post(t, time.Date(2026, time.February, 5, 0, 0, 0, 0, time.UTC), "Venda fev", "1.1.01.002", "4.1.01", "40.00")
	env.post(t, time.Date(2026, time.February, 12, 0, 0, 0, 0, time.UTC), "Tarifa", "7.2.02", "1.1.01.002", "10.00")

	razao, err := env.reports.AccountLedger(env.ctx, bancos.ID,
		time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.February, 28, 23, 59, 59, 0, time.UTC))
	require.NoError(t, err)

	assert.True(t, razao.Opening.Equal(decimal.RequireFromString("100.00")))
	require.Len(t, razao.Rows, 2)
	assert.True(t, razao.Rows[0].Balance.Equal(decimal.RequireFromString("140.00")))
	assert.Equal(t, ledger.SideCredit, razao.Rows[1].Side)
	assert.True(t, razao.Rows[1].Balance.Equal(decimal.RequireFromString("130.00")))
	assert.True(t, razao.Closing.Equal(decimal.RequireFromString("130.00")))

	// razão of a synthetic account is refused
	_, err = env.reports.AccountLedger(env.ctx, env.account(t, "1.1").ID,
		time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ledger.ErrNonPostableAccount)
}

func TestEntriesInvisibleAcrossTenants(t *testing.T) {
	env := newLedgerEnv(t)
	env.post(t, time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC), "Venda #42", "1.1.01.002", "4.1.01", "1000.00")

	otherCtx := tenancy.WithTenant(context.Background(), uuid.New())
	listed, total, err := env.entries.List(otherCtx, ledger.EntryFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, listed)

	listed, total, err = env.entries.List(env.ctx, ledger.EntryFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, listed, 1)

	_, _, err = env.entries.List(context.Background(), ledger.EntryFilter{})
	assert.ErrorIs(t, err, tenancy.ErrNotScoped)
}
