package handler

import (
	"errors"
	"net/http"
	"time"

	appfiscal "github.com/fiscalerp/backend/internal/application/fiscal"
	"github.com/fiscalerp/backend/internal/domain/fiscal"
	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/fiscalerp/backend/internal/infrastructure/sefaz"
	"github.com/fiscalerp/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FiscalHandler exposes document ingestion and the document registry
type FiscalHandler struct {
	BaseHandler
	ingestion *appfiscal.IngestionService
}

// NewFiscalHandler creates a fiscal handler
func NewFiscalHandler(ingestion *appfiscal.IngestionService) *FiscalHandler {
	return &FiscalHandler{ingestion: ingestion}
}

// RunSummaryResponse reports one ingestion run
type RunSummaryResponse struct {
	Seen     int   `json:"seen"`
	New      int   `json:"new"`
	Updated  int   `json:"updated"`
	Skipped  int   `json:"skipped"`
	Errors   int   `json:"errors"`
	FinalNSU int64 `json:"final_nsu"`
}

func toRunSummaryResponse(s *appfiscal.RunSummary) RunSummaryResponse {
	return RunSummaryResponse{
		Seen:     s.Seen,
		New:      s.New,
		Updated:  s.Updated,
		Skipped:  s.Skipped,
		Errors:   s.Errors,
		FinalNSU: s.FinalNSU,
	}
}

// RunDFeRequest selects the distribution service and, optionally, which
// branch certificate transmits
type RunDFeRequest struct {
	Service    string `form:"service" binding:"omitempty,oneof=nfe cte"`
	IssuerCNPJ string `form:"issuer_cnpj" binding:"omitempty,cnpj"`
}

// RunDFe triggers one bounded DF-e distribution run for the tenant.
// The service query parameter selects nfe (default) or cte.
func (h *FiscalHandler) RunDFe(c *gin.Context) {
	var req RunDFeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	service := sefaz.ServiceNFe
	if req.Service == "cte" {
		service = sefaz.ServiceCTe
	}

	summary, err := h.ingestion.RunDFe(c.Request.Context(), service, req.IssuerCNPJ)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, toRunSummaryResponse(summary))
}

// RunNFSeRequest asks for one municipal service invoice run
type RunNFSeRequest struct {
	MunicipalityCode string `json:"municipality_code" binding:"required,len=7,numeric"`
	IssuerCNPJ       string `json:"issuer_cnpj" binding:"omitempty,cnpj"`
	From             string `json:"from" binding:"required"`
	To               string `json:"to" binding:"required"`
}

// RunNFSe triggers one NFS-e run against the municipality's provider
func (h *FiscalHandler) RunNFSe(c *gin.Context) {
	var req RunNFSeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	from, err := parseDate(req.From)
	if err != nil {
		h.BadRequest(c, "Invalid from date, expected yyyy-mm-dd")
		return
	}
	to, err := parseDate(req.To)
	if err != nil {
		h.BadRequest(c, "Invalid to date, expected yyyy-mm-dd")
		return
	}
	if to.Before(from) {
		h.BadRequest(c, "Date range is inverted")
		return
	}

	summary, err := h.ingestion.RunNFSe(c.Request.Context(), req.MunicipalityCode, req.IssuerCNPJ, from, to)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, toRunSummaryResponse(summary))
}

// ListDocumentsRequest narrows the document listing
type ListDocumentsRequest struct {
	dto.ListRequest
	Kind       string `form:"kind" binding:"omitempty,oneof=nfe cte nfse"`
	Status     string `form:"status"`
	Direction  string `form:"direction"`
	IssuerCNPJ string `form:"issuer_cnpj" binding:"omitempty,cnpj"`
	DateFrom   string `form:"date_from"`
	DateTo     string `form:"date_to"`
}

// DocumentResponse is the API shape of one fiscal document
type DocumentResponse struct {
	ID               uuid.UUID              `json:"id"`
	Kind             fiscal.DocumentKind    `json:"kind"`
	Key              string                 `json:"key"`
	MunicipalityCode string                 `json:"municipality_code,omitempty"`
	Series           string                 `json:"series,omitempty"`
	Number           string                 `json:"number"`
	IssuerCNPJ       string                 `json:"issuer_cnpj"`
	IssuerName       string                 `json:"issuer_name,omitempty"`
	ParticipantCNPJ  string                 `json:"participant_cnpj,omitempty"`
	ParticipantName  string                 `json:"participant_name,omitempty"`
	Direction        fiscal.Direction       `json:"direction"`
	Status           fiscal.DocumentStatus  `json:"status"`
	IssueDate        time.Time              `json:"issue_date"`
	TotalAmount      decimal.Decimal        `json:"total_amount"`
	NSU              int64                  `json:"nsu,omitempty"`
	EntryID          *uuid.UUID             `json:"entry_id,omitempty"`
	Items            []DocumentItemResponse `json:"items,omitempty"`
}

// DocumentItemResponse is one line of a document
type DocumentItemResponse struct {
	Sequence    int             `json:"sequence"`
	Code        string          `json:"code,omitempty"`
	Description string          `json:"description,omitempty"`
	NCM         string          `json:"ncm,omitempty"`
	CFOP        string          `json:"cfop,omitempty"`
	Unit        string          `json:"unit,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

func toDocumentResponse(doc *fiscal.Document, withItems bool) DocumentResponse {
	out := DocumentResponse{
		ID:               doc.ID,
		Kind:             doc.Kind,
		Key:              doc.Key,
		MunicipalityCode: doc.MunicipalityCode,
		Series:           doc.Series,
		Number:           doc.Number,
		IssuerCNPJ:       doc.IssuerCNPJ,
		IssuerName:       doc.IssuerName,
		ParticipantCNPJ:  doc.ParticipantCNPJ,
		ParticipantName:  doc.ParticipantName,
		Direction:        doc.Direction,
		Status:           doc.Status,
		IssueDate:        doc.IssueDate,
		TotalAmount:      doc.TotalAmount,
		NSU:              doc.NSU,
		EntryID:          doc.EntryID,
	}
	if withItems {
		out.Items = make([]DocumentItemResponse, len(doc.Items))
		for i, item := range doc.Items {
			out.Items[i] = DocumentItemResponse{
				Sequence:    item.Sequence,
				Code:        item.Code,
				Description: item.Description,
				NCM:         item.NCM,
				CFOP:        item.CFOP,
				Unit:        item.Unit,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				Total:       item.Total,
			}
		}
	}
	return out
}

// ListDocuments pages the tenant's document registry
func (h *FiscalHandler) ListDocuments(c *gin.Context) {
	var req ListDocumentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	req.Normalize()

	filter := fiscal.DocumentFilter{Page: req.Page, PageSize: req.PageSize}
	if req.Kind != "" {
		kind := fiscal.DocumentKind(req.Kind)
		filter.Kind = &kind
	}
	if req.Status != "" {
		status := fiscal.DocumentStatus(req.Status)
		if !status.IsValid() {
			h.BadRequest(c, "Invalid status filter")
			return
		}
		filter.Status = &status
	}
	if req.Direction != "" {
		direction := fiscal.Direction(req.Direction)
		if !direction.IsValid() {
			h.BadRequest(c, "Invalid direction filter")
			return
		}
		filter.Direction = &direction
	}
	if req.IssuerCNPJ != "" {
		filter.IssuerCNPJ = &req.IssuerCNPJ
	}
	if req.DateFrom != "" {
		from, err := parseDate(req.DateFrom)
		if err != nil {
			h.BadRequest(c, "Invalid date_from, expected yyyy-mm-dd")
			return
		}
		filter.DateFrom = &from
	}
	if req.DateTo != "" {
		to, err := parseDate(req.DateTo)
		if err != nil {
			h.BadRequest(c, "Invalid date_to, expected yyyy-mm-dd")
			return
		}
		filter.DateTo = &to
	}

	docs, total, err := h.ingestion.ListDocuments(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	out := make([]DocumentResponse, len(docs))
	for i := range docs {
		out[i] = toDocumentResponse(&docs[i], false)
	}
	h.SuccessWithMeta(c, out, total, req.Page, req.PageSize)
}

// GetDocument returns one document with its items
func (h *FiscalHandler) GetDocument(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	doc, err := h.ingestion.GetDocument(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, toDocumentResponse(doc, true))
}

// DownloadXML streams the stored raw XML of one document
func (h *FiscalHandler) DownloadXML(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	doc, xmlText, err := h.ingestion.DocumentXML(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "Document XML not found")
			return
		}
		h.HandleDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+doc.Key+`.xml"`)
	c.Data(http.StatusOK, "application/xml", xmlText)
}

// CursorResponse is one sync position
type CursorResponse struct {
	IssuerCNPJ       string    `json:"issuer_cnpj"`
	MunicipalityCode string    `json:"municipality_code,omitempty"`
	LastNSU          int64     `json:"last_nsu"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ListCursors returns the tenant's NSU cursors
func (h *FiscalHandler) ListCursors(c *gin.Context) {
	cursors, err := h.ingestion.ListCursors(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	out := make([]CursorResponse, len(cursors))
	for i, cursor := range cursors {
		out[i] = CursorResponse{
			IssuerCNPJ:       cursor.IssuerCNPJ,
			MunicipalityCode: cursor.MunicipalityCode,
			LastNSU:          cursor.LastNSU,
			UpdatedAt:        cursor.UpdatedAt,
		}
	}
	h.Success(c, out)
}

// ResetCursorRequest rewinds one cursor to a given NSU
type ResetCursorRequest struct {
	IssuerCNPJ       string `json:"issuer_cnpj" binding:"required,cnpj"`
	MunicipalityCode string `json:"municipality_code" binding:"omitempty,len=7,numeric"`
	NSU              int64  `json:"nsu" binding:"min=0"`
}

// ResetCursor rewinds a cursor. Gap recovery tool; the next run re-fetches
// from the given position and dedup keeps re-processed documents idempotent.
func (h *FiscalHandler) ResetCursor(c *gin.Context) {
	var req ResetCursorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	cursor, err := h.ingestion.ResetCursor(c.Request.Context(), req.IssuerCNPJ, req.MunicipalityCode, req.NSU)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, CursorResponse{
		IssuerCNPJ:       cursor.IssuerCNPJ,
		MunicipalityCode: cursor.MunicipalityCode,
		LastNSU:          cursor.LastNSU,
		UpdatedAt:        cursor.UpdatedAt,
	})
}

func (h *FiscalHandler) bindID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid document id")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "Invalid document id")
		return uuid.Nil, false
	}
	return id, true
}

// RegisterRoutes registers fiscal routes
func (h *FiscalHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/fiscal")
	group.POST("/ingestion/dfe", h.RunDFe)
	group.POST("/ingestion/nfse", h.RunNFSe)
	group.GET("/documents", h.ListDocuments)
	group.GET("/documents/:id", h.GetDocument)
	group.GET("/documents/:id/xml", h.DownloadXML)
	group.GET("/cursors", h.ListCursors)
	group.POST("/cursors/reset", h.ResetCursor)
}
