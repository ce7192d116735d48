package handler

import (
	"time"

	appledger "github.com/fiscalerp/backend/internal/application/ledger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReportHandler exposes the four financial reports
type ReportHandler struct {
	BaseHandler
	reports *appledger.ReportService
}

// NewReportHandler creates a report handler
func NewReportHandler(reports *appledger.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// reportWindow parses the common version_id/start/end query parameters
func (h *ReportHandler) reportWindow(c *gin.Context) (uuid.UUID, time.Time, time.Time, bool) {
	versionID, err := uuid.Parse(c.Query("version_id"))
	if err != nil {
		h.BadRequest(c, "version_id query parameter is required")
		return uuid.Nil, time.Time{}, time.Time{}, false
	}
	start, err := parseDate(c.Query("start"))
	if err != nil {
		h.BadRequest(c, "Invalid start date, expected yyyy-mm-dd")
		return uuid.Nil, time.Time{}, time.Time{}, false
	}
	end, err := parseDate(c.Query("end"))
	if err != nil {
		h.BadRequest(c, "Invalid end date, expected yyyy-mm-dd")
		return uuid.Nil, time.Time{}, time.Time{}, false
	}
	if end.Before(start) {
		h.BadRequest(c, "Date range is inverted")
		return uuid.Nil, time.Time{}, time.Time{}, false
	}
	return versionID, start, end, true
}

// TrialBalanceRowResponse is one analytic account of the balancete
type TrialBalanceRowResponse struct {
	AccountID   uuid.UUID       `json:"account_id"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Nature      string          `json:"nature"`
	Opening     decimal.Decimal `json:"opening"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Closing     decimal.Decimal `json:"closing"`
}

// TrialBalanceResponse is the balancete over one window
type TrialBalanceResponse struct {
	VersionID           uuid.UUID                 `json:"version_id"`
	Start               time.Time                 `json:"start"`
	End                 time.Time                 `json:"end"`
	Rows                []TrialBalanceRowResponse `json:"rows"`
	TotalDebit          decimal.Decimal           `json:"total_debit"`
	TotalCredit         decimal.Decimal           `json:"total_credit"`
	TotalDebitBalances  decimal.Decimal           `json:"total_debit_balances"`
	TotalCreditBalances decimal.Decimal           `json:"total_credit_balances"`
	Imbalance           decimal.Decimal           `json:"imbalance"`
	Sound               bool                      `json:"sound"`
}

// TrialBalance builds the balancete for one version over [start, end]
func (h *ReportHandler) TrialBalance(c *gin.Context) {
	versionID, start, end, ok := h.reportWindow(c)
	if !ok {
		return
	}
	showAll := c.Query("show_all") == "true"

	tb, err := h.reports.TrialBalance(c.Request.Context(), versionID, start, end, showAll)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	rows := make([]TrialBalanceRowResponse, len(tb.Rows))
	for i, row := range tb.Rows {
		rows[i] = TrialBalanceRowResponse{
			AccountID:   row.AccountID,
			Code:        row.Code,
			Description: row.Description,
			Nature:      row.Nature.String(),
			Opening:     row.Opening,
			Debit:       row.Debit,
			Credit:      row.Credit,
			Closing:     row.Closing,
		}
	}
	h.Success(c, TrialBalanceResponse{
		VersionID:           tb.VersionID,
		Start:               tb.Start,
		End:                 tb.End,
		Rows:                rows,
		TotalDebit:          tb.TotalDebit,
		TotalCredit:         tb.TotalCredit,
		TotalDebitBalances:  tb.TotalDebitBalances,
		TotalCreditBalances: tb.TotalCreditBalances,
		Imbalance:           tb.Imbalance,
		Sound:               tb.Sound,
	})
}

// DRELineResponse is one analytic account inside a DRE group
type DRELineResponse struct {
	AccountID      uuid.UUID       `json:"account_id"`
	Code           string          `json:"code"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	PercentOfGross decimal.Decimal `json:"percent_of_gross"`
}

// DREGroupResponse is one section of the income statement
type DREGroupResponse struct {
	Name           string            `json:"name"`
	Lines          []DRELineResponse `json:"lines"`
	Total          decimal.Decimal   `json:"total"`
	PercentOfGross decimal.Decimal   `json:"percent_of_gross"`
}

// DRETotalsResponse are the scalar lines of the income statement
type DRETotalsResponse struct {
	GrossRevenue      decimal.Decimal `json:"gross_revenue"`
	Deductions        decimal.Decimal `json:"deductions"`
	NetRevenue        decimal.Decimal `json:"net_revenue"`
	Costs             decimal.Decimal `json:"costs"`
	GrossProfit       decimal.Decimal `json:"gross_profit"`
	OperatingExpenses decimal.Decimal `json:"operating_expenses"`
	OperatingResult   decimal.Decimal `json:"operating_result"`
	FinancialResult   decimal.Decimal `json:"financial_result"`
	NetResult         decimal.Decimal `json:"net_result"`
	NetMarginPercent  decimal.Decimal `json:"net_margin_percent"`
}

// IncomeStatementResponse is the DRE over one window
type IncomeStatementResponse struct {
	VersionID uuid.UUID `json:"version_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`

	GrossRevenue      DREGroupResponse `json:"gross_revenue"`
	Deductions        DREGroupResponse `json:"deductions"`
	Costs             DREGroupResponse `json:"costs"`
	OperatingExpenses DREGroupResponse `json:"operating_expenses"`
	FinancialRevenue  DREGroupResponse `json:"financial_revenue"`
	FinancialExpenses DREGroupResponse `json:"financial_expenses"`

	Totals    DRETotalsResponse  `json:"totals"`
	Prior     *DRETotalsResponse `json:"prior,omitempty"`
	Variation *DRETotalsResponse `json:"variation,omitempty"`
}

func toDREGroupResponse(g appledger.DREGroup) DREGroupResponse {
	lines := make([]DRELineResponse, len(g.Lines))
	for i, line := range g.Lines {
		lines[i] = DRELineResponse{
			AccountID:      line.AccountID,
			Code:           line.Code,
			Description:    line.Description,
			Amount:         line.Amount,
			PercentOfGross: line.PercentOfGross,
		}
	}
	return DREGroupResponse{
		Name:           g.Name,
		Lines:          lines,
		Total:          g.Total,
		PercentOfGross: g.PercentOfGross,
	}
}

func toDRETotalsResponse(t appledger.DRETotals) DRETotalsResponse {
	return DRETotalsResponse{
		GrossRevenue:      t.GrossRevenue,
		Deductions:        t.Deductions,
		NetRevenue:        t.NetRevenue,
		Costs:             t.Costs,
		GrossProfit:       t.GrossProfit,
		OperatingExpenses: t.OperatingExpenses,
		OperatingResult:   t.OperatingResult,
		FinancialResult:   t.FinancialResult,
		NetResult:         t.NetResult,
		NetMarginPercent:  t.NetMarginPercent,
	}
}

// IncomeStatement builds the DRE for one version over [start, end].
// comparative=true adds the prior equal-length window and the variations.
func (h *ReportHandler) IncomeStatement(c *gin.Context) {
	versionID, start, end, ok := h.reportWindow(c)
	if !ok {
		return
	}
	comparative := c.Query("comparative") == "true"

	dre, err := h.reports.IncomeStatement(c.Request.Context(), versionID, start, end, comparative)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	out := IncomeStatementResponse{
		VersionID:         dre.VersionID,
		Start:             dre.Start,
		End:               dre.End,
		GrossRevenue:      toDREGroupResponse(dre.GrossRevenue),
		Deductions:        toDREGroupResponse(dre.Deductions),
		Costs:             toDREGroupResponse(dre.Costs),
		OperatingExpenses: toDREGroupResponse(dre.OperatingExpenses),
		FinancialRevenue:  toDREGroupResponse(dre.FinancialRevenue),
		FinancialExpenses: toDREGroupResponse(dre.FinancialExpenses),
		Totals:            toDRETotalsResponse(dre.Totals),
	}
	if dre.Prior != nil {
		prior := toDRETotalsResponse(*dre.Prior)
		out.Prior = &prior
	}
	if dre.Variation != nil {
		variation := toDRETotalsResponse(*dre.Variation)
		out.Variation = &variation
	}
	h.Success(c, out)
}

// BalanceLineResponse is one analytic account of a balance sheet section
type BalanceLineResponse struct {
	AccountID   uuid.UUID       `json:"account_id"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// BalanceSectionResponse is one grouping of the balance sheet
type BalanceSectionResponse struct {
	Name  string                `json:"name"`
	Lines []BalanceLineResponse `json:"lines"`
	Total decimal.Decimal       `json:"total"`
}

// BalanceSheetResponse is the position statement as of one date
type BalanceSheetResponse struct {
	VersionID uuid.UUID `json:"version_id"`
	AsOf      time.Time `json:"as_of"`

	CurrentAssets         BalanceSectionResponse `json:"current_assets"`
	NonCurrentAssets      BalanceSectionResponse `json:"non_current_assets"`
	CurrentLiabilities    BalanceSectionResponse `json:"current_liabilities"`
	NonCurrentLiabilities BalanceSectionResponse `json:"non_current_liabilities"`
	Equity                BalanceSectionResponse `json:"equity"`

	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	PeriodResult     decimal.Decimal `json:"period_result"`
	TotalEquity      decimal.Decimal `json:"total_equity"`
	Balanced         bool            `json:"balanced"`
}

func toBalanceSectionResponse(s appledger.BalanceSection) BalanceSectionResponse {
	lines := make([]BalanceLineResponse, len(s.Lines))
	for i, line := range s.Lines {
		lines[i] = BalanceLineResponse{
			AccountID:   line.AccountID,
			Code:        line.Code,
			Description: line.Description,
			Amount:      line.Amount,
		}
	}
	return BalanceSectionResponse{Name: s.Name, Lines: lines, Total: s.Total}
}

// BalanceSheet aggregates every posting dated up to as_of
func (h *ReportHandler) BalanceSheet(c *gin.Context) {
	versionID, err := uuid.Parse(c.Query("version_id"))
	if err != nil {
		h.BadRequest(c, "version_id query parameter is required")
		return
	}
	asOf, err := parseDateOr(c.Query("as_of"), time.Now())
	if err != nil {
		h.BadRequest(c, "Invalid as_of date, expected yyyy-mm-dd")
		return
	}

	bs, err := h.reports.BalanceSheet(c.Request.Context(), versionID, asOf)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, BalanceSheetResponse{
		VersionID:             bs.VersionID,
		AsOf:                  bs.AsOf,
		CurrentAssets:         toBalanceSectionResponse(bs.CurrentAssets),
		NonCurrentAssets:      toBalanceSectionResponse(bs.NonCurrentAssets),
		CurrentLiabilities:    toBalanceSectionResponse(bs.CurrentLiabilities),
		NonCurrentLiabilities: toBalanceSectionResponse(bs.NonCurrentLiabilities),
		Equity:                toBalanceSectionResponse(bs.Equity),
		TotalAssets:           bs.TotalAssets,
		TotalLiabilities:      bs.TotalLiabilities,
		PeriodResult:          bs.PeriodResult,
		TotalEquity:           bs.TotalEquity,
		Balanced:              bs.Balanced,
	})
}

// AccountLedgerRowResponse is one posting with its running balance
type AccountLedgerRowResponse struct {
	EntryID     uuid.UUID       `json:"entry_id"`
	EntryNumber int64           `json:"entry_number"`
	Date        time.Time       `json:"date"`
	Narrative   string          `json:"narrative"`
	Side        string          `json:"side"`
	Amount      decimal.Decimal `json:"amount"`
	Balance     decimal.Decimal `json:"balance"`
}

// AccountLedgerResponse is the razão of one account over a window
type AccountLedgerResponse struct {
	AccountID   uuid.UUID                  `json:"account_id"`
	Code        string                     `json:"code"`
	Description string                     `json:"description"`
	Nature      string                     `json:"nature"`
	Start       time.Time                  `json:"start"`
	End         time.Time                  `json:"end"`
	Opening     decimal.Decimal            `json:"opening"`
	Rows        []AccountLedgerRowResponse `json:"rows"`
	Closing     decimal.Decimal            `json:"closing"`
}

// AccountLedger lists one account's postings with a running balance
func (h *ReportHandler) AccountLedger(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account id")
		return
	}
	start, err := parseDate(c.Query("start"))
	if err != nil {
		h.BadRequest(c, "Invalid start date, expected yyyy-mm-dd")
		return
	}
	end, err := parseDate(c.Query("end"))
	if err != nil {
		h.BadRequest(c, "Invalid end date, expected yyyy-mm-dd")
		return
	}

	al, err := h.reports.AccountLedger(c.Request.Context(), accountID, start, end)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	rows := make([]AccountLedgerRowResponse, len(al.Rows))
	for i, row := range al.Rows {
		rows[i] = AccountLedgerRowResponse{
			EntryID:     row.EntryID,
			EntryNumber: row.EntryNumber,
			Date:        row.Date,
			Narrative:   row.Narrative,
			Side:        string(row.Side),
			Amount:      row.Amount,
			Balance:     row.Balance,
		}
	}
	h.Success(c, AccountLedgerResponse{
		AccountID:   al.AccountID,
		Code:        al.Code,
		Description: al.Description,
		Nature:      al.Nature.String(),
		Start:       al.Start,
		End:         al.End,
		Opening:     al.Opening,
		Rows:        rows,
		Closing:     al.Closing,
	})
}

// RegisterRoutes registers report routes
func (h *ReportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/reports")
	group.GET("/trial-balance", h.TrialBalance)
	group.GET("/income-statement", h.IncomeStatement)
	group.GET("/balance-sheet", h.BalanceSheet)
	group.GET("/accounts/:id/ledger", h.AccountLedger)
}
