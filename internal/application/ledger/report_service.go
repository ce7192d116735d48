package ledger

import (
	"context"
	"time"

	"github.com/fiscalerp/backend/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// balanceTolerance is the rounding slack accepted before a ledger or balance
// sheet is flagged unsound.
var balanceTolerance = decimal.RequireFromString("0.01")

var hundred = decimal.New(100, 0)

// ReportService builds the four financial reports from committed entries.
// Reversed entries and their estorno pairs never appear in any figure.
type ReportService struct {
	reports  ledger.ReportRepository
	accounts ledger.AccountRepository
}

// NewReportService creates a report service
func NewReportService(reports ledger.ReportRepository, accounts ledger.AccountRepository) *ReportService {
	return &ReportService{reports: reports, accounts: accounts}
}

// TrialBalanceRow is one analytic account of the trial balance
type TrialBalanceRow struct {
	AccountID   uuid.UUID
	Code        string
	Description string
	Nature      ledger.Nature
	Opening     decimal.Decimal
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Closing     decimal.Decimal
}

// TrialBalance is the balancete over one window
type TrialBalance struct {
	VersionID           uuid.UUID
	Start, End          time.Time
	Rows                []TrialBalanceRow
	TotalDebit          decimal.Decimal
	TotalCredit         decimal.Decimal
	TotalDebitBalances  decimal.Decimal
	TotalCreditBalances decimal.Decimal
	Imbalance           decimal.Decimal
	Sound               bool
}

// TrialBalance builds the balancete for one version over [start, end].
// showAll includes analytic accounts without any movement or balance.
func (s *ReportService) TrialBalance(ctx context.Context, versionID uuid.UUID, start, end time.Time, showAll bool) (*TrialBalance, error) {
	movements, err := s.reports.AccountMovements(ctx, versionID, start, end, showAll)
	if err != nil {
		return nil, err
	}

	tb := &TrialBalance{VersionID: versionID, Start: start, End: end}
	for _, m := range movements {
		tb.Rows = append(tb.Rows, TrialBalanceRow{
			AccountID:   m.AccountID,
			Code:        m.Code,
			Description: m.Description,
			Nature:      m.Nature,
			Opening:     m.NatureSignedOpening(),
			Debit:       m.Debit,
			Credit:      m.Credit,
			Closing:     m.NatureSignedClosing(),
		})
		tb.TotalDebit = tb.TotalDebit.Add(m.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(m.Credit)

		raw := m.OpeningDebit.Add(m.Debit).Sub(m.OpeningCredit.Add(m.Credit))
		if raw.IsPositive() {
			tb.TotalDebitBalances = tb.TotalDebitBalances.Add(raw)
		} else {
			tb.TotalCreditBalances = tb.TotalCreditBalances.Add(raw.Neg())
		}
	}
	tb.Imbalance = tb.TotalDebitBalances.Sub(tb.TotalCreditBalances).Abs()
	tb.Sound = tb.Imbalance.LessThan(balanceTolerance)
	return tb, nil
}

// DRELine is one analytic account inside a DRE group
type DRELine struct {
	AccountID   uuid.UUID
	Code        string
	Description string
	Amount      decimal.Decimal
	// PercentOfGross is the line amount over gross revenue
	PercentOfGross decimal.Decimal
}

// DREGroup is one section of the income statement
type DREGroup struct {
	Name           string
	Lines          []DRELine
	Total          decimal.Decimal
	PercentOfGross decimal.Decimal
}

// DRETotals are the scalar lines of the income statement
type DRETotals struct {
	GrossRevenue      decimal.Decimal
	Deductions        decimal.Decimal
	NetRevenue        decimal.Decimal
	Costs             decimal.Decimal
	GrossProfit       decimal.Decimal
	OperatingExpenses decimal.Decimal
	OperatingResult   decimal.Decimal
	FinancialResult   decimal.Decimal
	NetResult         decimal.Decimal
	// NetMarginPercent is the net result over gross revenue
	NetMarginPercent decimal.Decimal
}

// IncomeStatement is the DRE over one window
type IncomeStatement struct {
	VersionID  uuid.UUID
	Start, End time.Time

	GrossRevenue      DREGroup
	Deductions        DREGroup
	Costs             DREGroup
	OperatingExpenses DREGroup
	FinancialRevenue  DREGroup
	FinancialExpenses DREGroup

	Totals DRETotals
	// Prior carries the same totals over the equal-length window immediately
	// before start; Variation the percent change per line. Nil without the
	// comparative option.
	Prior     *DRETotals
	Variation *DRETotals
}

// IncomeStatement builds the DRE for one version over [start, end].
// comparative adds the prior equal-length window and per-line variations.
func (s *ReportService) IncomeStatement(ctx context.Context, versionID uuid.UUID, start, end time.Time, comparative bool) (*IncomeStatement, error) {
	st, err := s.incomeStatement(ctx, versionID, start, end)
	if err != nil {
		return nil, err
	}
	if comparative {
		days := int(end.Sub(start).Hours()/24) + 1
		priorEnd := start.AddDate(0, 0, -1)
		priorStart := priorEnd.AddDate(0, 0, -(days - 1))
		prior, err := s.incomeStatement(ctx, versionID, priorStart, priorEnd)
		if err != nil {
			return nil, err
		}
		st.Prior = &prior.Totals
		st.Variation = variation(&st.Totals, &prior.Totals)
	}
	return st, nil
}

func (s *ReportService) incomeStatement(ctx context.Context, versionID uuid.UUID, start, end time.Time) (*IncomeStatement, error) {
	movements, err := s.reports.AccountMovements(ctx, versionID, start, end, false)
	if err != nil {
		return nil, err
	}

	st := &IncomeStatement{
		VersionID:         versionID,
		Start:             start,
		End:               end,
		GrossRevenue:      DREGroup{Name: "Receita Bruta"},
		Deductions:        DREGroup{Name: "Deduções da Receita"},
		Costs:             DREGroup{Name: "Custos"},
		OperatingExpenses: DREGroup{Name: "Despesas Operacionais"},
		FinancialRevenue:  DREGroup{Name: "Receitas Financeiras"},
		FinancialExpenses: DREGroup{Name: "Despesas Financeiras"},
	}

	for _, m := range movements {
		creditward := m.Credit.Sub(m.Debit)
		debitward := m.Debit.Sub(m.Credit)
		switch {
		case ledger.CodeMatchesPrefix(m.Code, "4.9"):
			appendLine(&st.Deductions, m, debitward)
		case ledger.CodeGroup(m.Code) == "4":
			appendLine(&st.GrossRevenue, m, creditward)
		case ledger.CodeGroup(m.Code) == "5":
			appendLine(&st.Costs, m, debitward)
		case ledger.CodeGroup(m.Code) == "6":
			appendLine(&st.OperatingExpenses, m, debitward)
		case ledger.CodeMatchesPrefix(m.Code, "7.1"):
			appendLine(&st.FinancialRevenue, m, creditward)
		case ledger.CodeMatchesPrefix(m.Code, "7.2"):
			appendLine(&st.FinancialExpenses, m, debitward)
		}
	}

	t := &st.Totals
	t.GrossRevenue = st.GrossRevenue.Total
	t.Deductions = st.Deductions.Total
	t.NetRevenue = t.GrossRevenue.Sub(t.Deductions)
	t.Costs = st.Costs.Total
	t.GrossProfit = t.NetRevenue.Sub(t.Costs)
	t.OperatingExpenses = st.OperatingExpenses.Total
	t.OperatingResult = t.GrossProfit.Sub(t.OperatingExpenses)
	t.FinancialResult = st.FinancialRevenue.Total.Sub(st.FinancialExpenses.Total)
	t.NetResult = t.OperatingResult.Add(t.FinancialResult)
	t.NetMarginPercent = percentOf(t.NetResult, t.GrossRevenue)

	for _, g := range []*DREGroup{&st.GrossRevenue, &st.Deductions, &st.Costs,
		&st.OperatingExpenses, &st.FinancialRevenue, &st.FinancialExpenses} {
		g.PercentOfGross = percentOf(g.Total, t.GrossRevenue)
		for i := range g.Lines {
			g.Lines[i].PercentOfGross = percentOf(g.Lines[i].Amount, t.GrossRevenue)
		}
	}
	return st, nil
}

func appendLine(g *DREGroup, m ledger.AccountMovement, amount decimal.Decimal) {
	g.Total = g.Total.Add(amount)
	if amount.IsZero() {
		return
	}
	g.Lines = append(g.Lines, DRELine{
		AccountID:   m.AccountID,
		Code:        m.Code,
		Description: m.Description,
		Amount:      amount,
	})
}

func percentOf(part, base decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return part.Div(base).Mul(hundred).Round(2)
}

func variationOf(current, prior decimal.Decimal) decimal.Decimal {
	if prior.IsZero() {
		return decimal.Zero
	}
	return current.Sub(prior).Div(prior.Abs()).Mul(hundred).Round(2)
}

func variation(current, prior *DRETotals) *DRETotals {
	return &DRETotals{
		GrossRevenue:      variationOf(current.GrossRevenue, prior.GrossRevenue),
		Deductions:        variationOf(current.Deductions, prior.Deductions),
		NetRevenue:        variationOf(current.NetRevenue, prior.NetRevenue),
		Costs:             variationOf(current.Costs, prior.Costs),
		GrossProfit:       variationOf(current.GrossProfit, prior.GrossProfit),
		OperatingExpenses: variationOf(current.OperatingExpenses, prior.OperatingExpenses),
		OperatingResult:   variationOf(current.OperatingResult, prior.OperatingResult),
		FinancialResult:   variationOf(current.FinancialResult, prior.FinancialResult),
		NetResult:         variationOf(current.NetResult, prior.NetResult),
	}
}

// BalanceLine is one analytic account of a balance sheet section
type BalanceLine struct {
	AccountID   uuid.UUID
	Code        string
	Description string
	Amount      decimal.Decimal
}

// BalanceSection is one grouping of the balance sheet
type BalanceSection struct {
	Name  string
	Lines []BalanceLine
	Total decimal.Decimal
}

// BalanceSheet is the position statement as of one date
type BalanceSheet struct {
	VersionID uuid.UUID
	AsOf      time.Time

	CurrentAssets         BalanceSection
	NonCurrentAssets      BalanceSection
	CurrentLiabilities    BalanceSection
	NonCurrentLiabilities BalanceSection
	Equity                BalanceSection

	TotalAssets      decimal.Decimal
	TotalLiabilities decimal.Decimal
	// PeriodResult is the accumulated result of groups 4-7, folded into equity
	PeriodResult decimal.Decimal
	TotalEquity  decimal.Decimal
	Balanced     bool
}

// BalanceSheet aggregates every posting dated up to asOf
func (s *ReportService) BalanceSheet(ctx context.Context, versionID uuid.UUID, asOf time.Time) (*BalanceSheet, error) {
	balances, err := s.reports.BalancesAsOf(ctx, versionID, asOf)
	if err != nil {
		return nil, err
	}

	bs := &BalanceSheet{
		VersionID:             versionID,
		AsOf:                  asOf,
		CurrentAssets:         BalanceSection{Name: "Ativo Circulante"},
		NonCurrentAssets:      BalanceSection{Name: "Ativo Não Circulante"},
		CurrentLiabilities:    BalanceSection{Name: "Passivo Circulante"},
		NonCurrentLiabilities: BalanceSection{Name: "Passivo Não Circulante"},
		Equity:                BalanceSection{Name: "Patrimônio Líquido"},
	}

	for _, m := range balances {
		debitward := m.Debit.Sub(m.Credit)
		creditward := m.Credit.Sub(m.Debit)
		switch {
		case ledger.CodeMatchesPrefix(m.Code, "1.1"):
			appendBalance(&bs.CurrentAssets, m, debitward)
		case ledger.CodeMatchesPrefix(m.Code, "1.2"):
			appendBalance(&bs.NonCurrentAssets, m, debitward)
		case ledger.CodeMatchesPrefix(m.Code, "2.1"):
			appendBalance(&bs.CurrentLiabilities, m, creditward)
		case ledger.CodeMatchesPrefix(m.Code, "2.2"):
			appendBalance(&bs.NonCurrentLiabilities, m, creditward)
		case ledger.CodeGroup(m.Code) == "3":
			appendBalance(&bs.Equity, m, creditward)
		case ledger.CodeGroup(m.Code) == "4",
			ledger.CodeGroup(m.Code) == "5",
			ledger.CodeGroup(m.Code) == "6",
			ledger.CodeGroup(m.Code) == "7":
			bs.PeriodResult = bs.PeriodResult.Add(creditward)
		}
	}

	bs.TotalAssets = bs.CurrentAssets.Total.Add(bs.NonCurrentAssets.Total)
	bs.TotalLiabilities = bs.CurrentLiabilities.Total.Add(bs.NonCurrentLiabilities.Total)
	bs.TotalEquity = bs.Equity.Total.Add(bs.PeriodResult)
	diff := bs.TotalAssets.Sub(bs.TotalLiabilities.Add(bs.TotalEquity)).Abs()
	bs.Balanced = diff.LessThan(balanceTolerance)
	return bs, nil
}

func appendBalance(section *BalanceSection, m ledger.AccountMovement, amount decimal.Decimal) {
	section.Total = section.Total.Add(amount)
	if amount.IsZero() {
		return
	}
	section.Lines = append(section.Lines, BalanceLine{
		AccountID:   m.AccountID,
		Code:        m.Code,
		Description: m.Description,
		Amount:      amount,
	})
}

// AccountLedgerRow is one posting of the razão with its running balance
type AccountLedgerRow struct {
	EntryID     uuid.UUID
	EntryNumber int64
	Date        time.Time
	Narrative   string
	Side        ledger.Side
	Amount      decimal.Decimal
	Balance     decimal.Decimal
}

// AccountLedger is the razão of one analytic account over a window
type AccountLedger struct {
	AccountID   uuid.UUID
	Code        string
	Description string
	Nature      ledger.Nature
	Start, End  time.Time
	Opening     decimal.Decimal
	Rows        []AccountLedgerRow
	Closing     decimal.Decimal
}

// AccountLedger lists one account's postings with a running nature-signed
// balance.
func (s *ReportService) AccountLedger(ctx context.Context, accountID uuid.UUID, start, end time.Time) (*AccountLedger, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.IsPostable() {
		return nil, ledger.ErrNonPostableAccount
	}

	movements, err := s.reports.AccountMovements(ctx, account.ChartVersionID, start, end, true)
	if err != nil {
		return nil, err
	}
	opening := decimal.Zero
	for _, m := range movements {
		if m.AccountID == account.ID {
			opening = m.NatureSignedOpening()
			break
		}
	}

	postings, err := s.reports.AccountPostings(ctx, accountID, start, end)
	if err != nil {
		return nil, err
	}

	razao := &AccountLedger{
		AccountID:   account.ID,
		Code:        account.Code,
		Description: account.Description,
		Nature:      account.Nature,
		Start:       start,
		End:         end,
		Opening:     opening,
	}
	running := opening
	for _, p := range postings {
		delta := p.Amount
		if (account.Nature == ledger.NatureDebit) != (p.Side == ledger.SideDebit) {
			delta = delta.Neg()
		}
		running = running.Add(delta)
		razao.Rows = append(razao.Rows, AccountLedgerRow{
			EntryID:     p.EntryID,
			EntryNumber: p.EntryNumber,
			Date:        p.Date,
			Narrative:   p.Narrative,
			Side:        p.Side,
			Amount:      p.Amount,
			Balance:     running,
		})
	}
	razao.Closing = running
	return razao, nil
}
