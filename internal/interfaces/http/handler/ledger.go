package handler

import (
	"errors"
	"io"
	"time"

	appledger "github.com/fiscalerp/backend/internal/application/ledger"
	"github.com/fiscalerp/backend/internal/domain/ledger"
	"github.com/fiscalerp/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerHandler exposes chart-of-accounts management and entry posting
type LedgerHandler struct {
	BaseHandler
	chart   *appledger.ChartService
	posting *appledger.PostingService
}

// NewLedgerHandler creates a ledger handler
func NewLedgerHandler(chart *appledger.ChartService, posting *appledger.PostingService) *LedgerHandler {
	return &LedgerHandler{chart: chart, posting: posting}
}

// ImportChartRequest asks for a default chart import
type ImportChartRequest struct {
	FiscalYear int `json:"fiscal_year" binding:"required,min=1900,max=2200"`
}

// ImportChartResponse summarizes the import
type ImportChartResponse struct {
	VersionID       uuid.UUID `json:"version_id"`
	AccountsCreated int       `json:"accounts_created"`
	Populated       bool      `json:"populated"`
}

// ImportChart seeds the tenant's chart of accounts for one fiscal year
func (h *LedgerHandler) ImportChart(c *gin.Context) {
	var req ImportChartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	result, err := h.chart.ImportDefaultChart(c.Request.Context(), req.FiscalYear)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, ImportChartResponse{
		VersionID:       result.VersionID,
		AccountsCreated: result.AccountsCreated,
		Populated:       result.Populated,
	})
}

// ChartVersionResponse is the API shape of a chart version
type ChartVersionResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	FiscalYear int       `json:"fiscal_year"`
	ValidFrom  time.Time `json:"valid_from"`
	ValidTo    time.Time `json:"valid_to"`
	IsActive   bool      `json:"is_active"`
}

// ListVersions returns the tenant's chart versions
func (h *LedgerHandler) ListVersions(c *gin.Context) {
	versions, err := h.chart.ListVersions(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	out := make([]ChartVersionResponse, len(versions))
	for i, v := range versions {
		out[i] = ChartVersionResponse{
			ID:         v.ID,
			Name:       v.Name,
			FiscalYear: v.FiscalYear,
			ValidFrom:  v.ValidFrom,
			ValidTo:    v.ValidTo,
			IsActive:   v.IsActive,
		}
	}
	h.Success(c, out)
}

// AccountResponse is the API shape of an account
type AccountResponse struct {
	ID             uuid.UUID  `json:"id"`
	ChartVersionID uuid.UUID  `json:"chart_version_id"`
	Code           string     `json:"code"`
	Description    string     `json:"description"`
	ParentID       *uuid.UUID `json:"parent_id,omitempty"`
	Level          int        `json:"level"`
	Classification string     `json:"classification"`
	Nature         string     `json:"nature"`
	Kind           string     `json:"kind"`
	AllowPosting   bool       `json:"allow_posting"`
	Deleted        bool       `json:"deleted"`
}

func toAccountResponse(a *ledger.Account) AccountResponse {
	return AccountResponse{
		ID:             a.ID,
		ChartVersionID: a.ChartVersionID,
		Code:           a.Code,
		Description:    a.Description,
		ParentID:       a.ParentID,
		Level:          a.Level,
		Classification: a.Classification.String(),
		Nature:         a.Nature.String(),
		Kind:           a.Kind.String(),
		AllowPosting:   a.AllowPosting,
		Deleted:        a.IsDeleted(),
	}
}

// ListAccounts returns the accounts of one chart version
func (h *LedgerHandler) ListAccounts(c *gin.Context) {
	versionID, err := uuid.Parse(c.Query("version_id"))
	if err != nil {
		h.BadRequest(c, "version_id query parameter is required")
		return
	}
	includeDeleted := c.Query("include_deleted") == "true"

	accounts, err := h.chart.ListAccounts(c.Request.Context(), versionID, includeDeleted)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	out := make([]AccountResponse, len(accounts))
	for i := range accounts {
		out[i] = toAccountResponse(&accounts[i])
	}
	h.Success(c, out)
}

// CreateAccountRequest adds one account to a version
type CreateAccountRequest struct {
	VersionID      string `json:"version_id" binding:"required,uuid"`
	Code           string `json:"code" binding:"required"`
	Description    string `json:"description" binding:"required"`
	Classification string `json:"classification" binding:"required"`
	Nature         string `json:"nature" binding:"required"`
	Kind           string `json:"kind" binding:"required"`
}

// CreateAccount adds an account, linking its parent by the code hierarchy
func (h *LedgerHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	versionID, err := uuid.Parse(req.VersionID)
	if err != nil {
		h.BadRequest(c, "Invalid version id")
		return
	}
	account, err := h.chart.CreateAccount(c.Request.Context(), appledger.CreateAccountInput{
		VersionID:      versionID,
		Code:           req.Code,
		Description:    req.Description,
		Classification: ledger.Classification(req.Classification),
		Nature:         ledger.Nature(req.Nature),
		Kind:           ledger.AccountKind(req.Kind),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, toAccountResponse(account))
}

// UpdateAccountRequest renames an account or changes its code
type UpdateAccountRequest struct {
	Description *string `json:"description"`
	Code        *string `json:"code"`
}

// UpdateAccount renames an account and edits its code within the same group
func (h *LedgerHandler) UpdateAccount(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Description == nil && req.Code == nil {
		h.BadRequest(c, "Nothing to update")
		return
	}

	var account *ledger.Account
	var err error
	if req.Description != nil {
		account, err = h.chart.RenameAccount(c.Request.Context(), id, *req.Description)
		if err != nil {
			h.HandleDomainError(c, err)
			return
		}
	}
	if req.Code != nil {
		account, err = h.chart.ChangeAccountCode(c.Request.Context(), id, *req.Code)
		if err != nil {
			h.HandleDomainError(c, err)
			return
		}
	}
	h.Success(c, toAccountResponse(account))
}

// DeleteAccount soft-deletes an account; historical postings stay valid
func (h *LedgerHandler) DeleteAccount(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	if err := h.chart.DeleteAccount(c.Request.Context(), id); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.NoContent(c)
}

// PostingItemRequest is one leg of a posting request
type PostingItemRequest struct {
	AccountID  string          `json:"account_id" binding:"required,uuid"`
	Side       string          `json:"side" binding:"required,oneof=D C"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	Narrative  string          `json:"narrative"`
	CostCenter string          `json:"cost_center"`
}

// PostEntryRequest records one balanced entry
type PostEntryRequest struct {
	VersionID string               `json:"version_id" binding:"required,uuid"`
	Date      string               `json:"date" binding:"required"`
	Narrative string               `json:"narrative" binding:"required"`
	Kind      string               `json:"kind" binding:"omitempty,oneof=MANUAL AUTOMATICO IMPORTADO"`
	OriginTag string               `json:"origin_tag"`
	OriginID  string               `json:"origin_id"`
	Items     []PostingItemRequest `json:"items" binding:"required,min=2,dive"`
}

// EntryItemResponse is one leg of an entry
type EntryItemResponse struct {
	AccountID  uuid.UUID       `json:"account_id"`
	Side       string          `json:"side"`
	Amount     decimal.Decimal `json:"amount"`
	Narrative  string          `json:"narrative,omitempty"`
	CostCenter string          `json:"cost_center,omitempty"`
	Sequence   int             `json:"sequence"`
}

// EntryResponse is the API shape of a posted entry
type EntryResponse struct {
	ID              uuid.UUID           `json:"id"`
	ChartVersionID  uuid.UUID           `json:"chart_version_id"`
	EntryNumber     int64               `json:"entry_number"`
	Date            time.Time           `json:"date"`
	Narrative       string              `json:"narrative"`
	Kind            string              `json:"kind"`
	OriginTag       string              `json:"origin_tag,omitempty"`
	OriginID        string              `json:"origin_id,omitempty"`
	Total           decimal.Decimal     `json:"total"`
	Reversed        bool                `json:"reversed"`
	ReversalEntryID *uuid.UUID          `json:"reversal_entry_id,omitempty"`
	Items           []EntryItemResponse `json:"items"`
}

func toEntryResponse(e *ledger.Entry) EntryResponse {
	items := make([]EntryItemResponse, len(e.Items))
	for i, item := range e.Items {
		items[i] = EntryItemResponse{
			AccountID:  item.AccountID,
			Side:       string(item.Side),
			Amount:     item.Amount,
			Narrative:  item.Narrative,
			CostCenter: item.CostCenter,
			Sequence:   item.Sequence,
		}
	}
	return EntryResponse{
		ID:              e.ID,
		ChartVersionID:  e.ChartVersionID,
		EntryNumber:     e.EntryNumber,
		Date:            e.Date,
		Narrative:       e.Narrative,
		Kind:            string(e.Kind),
		OriginTag:       e.OriginTag,
		OriginID:        e.OriginID,
		Total:           e.Total,
		Reversed:        e.Reversed,
		ReversalEntryID: e.ReversalEntryID,
		Items:           items,
	}
}

// PostEntry records one balanced double-entry record
func (h *LedgerHandler) PostEntry(c *gin.Context) {
	var req PostEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	versionID, err := uuid.Parse(req.VersionID)
	if err != nil {
		h.BadRequest(c, "Invalid version id")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		h.BadRequest(c, "Invalid date, expected yyyy-mm-dd")
		return
	}
	kind := ledger.EntryManual
	if req.Kind != "" {
		kind = ledger.EntryKind(req.Kind)
	}

	items := make([]appledger.PostingItemInput, len(req.Items))
	for i, item := range req.Items {
		accountID, err := uuid.Parse(item.AccountID)
		if err != nil {
			h.BadRequest(c, "Invalid account id in items")
			return
		}
		items[i] = appledger.PostingItemInput{
			AccountID:  accountID,
			Side:       ledger.Side(item.Side),
			Amount:     item.Amount,
			Narrative:  item.Narrative,
			CostCenter: item.CostCenter,
		}
	}

	entry, err := h.posting.PostEntry(c.Request.Context(), appledger.PostEntryInput{
		VersionID: versionID,
		Date:      date,
		Narrative: req.Narrative,
		Kind:      kind,
		OriginTag: req.OriginTag,
		OriginID:  req.OriginID,
		CreatedBy: getUserID(c),
		Items:     items,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, toEntryResponse(entry))
}

// ReverseEntryRequest asks for a reversal with an optional narrative
type ReverseEntryRequest struct {
	Narrative string `json:"narrative"`
}

// ReverseEntry creates the paired inverse entry
func (h *LedgerHandler) ReverseEntry(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	var req ReverseEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	reversal, err := h.posting.ReverseEntry(c.Request.Context(), id, req.Narrative, getUserID(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, toEntryResponse(reversal))
}

// DeleteEntry removes an entry and its items. Reversed entries refuse
// deletion until their reversal is deleted first.
func (h *LedgerHandler) DeleteEntry(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	if err := h.posting.DeleteEntry(c.Request.Context(), id); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.NoContent(c)
}

func (h *LedgerHandler) bindID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid id")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "Invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// RegisterRoutes registers ledger routes
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/ledger")
	group.POST("/chart/import", h.ImportChart)
	group.GET("/chart/versions", h.ListVersions)
	group.GET("/accounts", h.ListAccounts)
	group.POST("/accounts", h.CreateAccount)
	group.PATCH("/accounts/:id", h.UpdateAccount)
	group.DELETE("/accounts/:id", h.DeleteAccount)
	group.POST("/entries", h.PostEntry)
	group.POST("/entries/:id/reverse", h.ReverseEntry)
	group.DELETE("/entries/:id", h.DeleteEntry)
}
