package handler

import (
	"io"
	"time"

	"github.com/fiscalerp/backend/internal/domain/certificate"
	"github.com/fiscalerp/backend/internal/infrastructure/vault"
	"github.com/fiscalerp/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CertificateHandler manages the tenant's A1 certificates
type CertificateHandler struct {
	BaseHandler
	vault *vault.Service
}

// NewCertificateHandler creates a certificate handler
func NewCertificateHandler(vaultService *vault.Service) *CertificateHandler {
	return &CertificateHandler{vault: vaultService}
}

// CertificateResponse is the API shape of a stored certificate. Key material
// never leaves the vault.
type CertificateResponse struct {
	ID        uuid.UUID `json:"id"`
	Alias     string    `json:"alias"`
	SubjectCN string    `json:"subject_cn"`
	CNPJ      string    `json:"cnpj"`
	NotBefore time.Time `json:"not_before"`
	NotAfter  time.Time `json:"not_after"`
	IsActive  bool      `json:"is_active"`
}

func toCertificateResponse(cert *certificate.Certificate) CertificateResponse {
	return CertificateResponse{
		ID:        cert.ID,
		Alias:     cert.Alias,
		SubjectCN: cert.SubjectCN,
		CNPJ:      cert.CNPJ,
		NotBefore: cert.NotBefore,
		NotAfter:  cert.NotAfter,
		IsActive:  cert.IsActive,
	}
}

// maxPFXSize bounds certificate uploads. A1 bundles are a few KB.
const maxPFXSize = 1 << 20

// Import receives a PKCS#12 bundle as multipart form data and seals it into
// the vault. Fields: file, password, alias (optional).
func (h *CertificateHandler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.BadRequest(c, "Certificate file is required")
		return
	}
	if fileHeader.Size > maxPFXSize {
		h.BadRequest(c, "Certificate file too large")
		return
	}
	password := c.PostForm("password")
	alias := c.PostForm("alias")
	if alias == "" {
		alias = fileHeader.Filename
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.InternalError(c, "Failed to read certificate file")
		return
	}
	defer file.Close()

	pfx, err := io.ReadAll(io.LimitReader(file, maxPFXSize+1))
	if err != nil {
		h.InternalError(c, "Failed to read certificate file")
		return
	}

	cert, err := h.vault.Import(c.Request.Context(), alias, pfx, password)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, toCertificateResponse(cert))
}

// List returns the tenant's certificates, active and retired
func (h *CertificateHandler) List(c *gin.Context) {
	certs, err := h.vault.List(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	out := make([]CertificateResponse, len(certs))
	for i := range certs {
		out[i] = toCertificateResponse(&certs[i])
	}
	h.Success(c, out)
}

// Deactivate retires one certificate
func (h *CertificateHandler) Deactivate(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid certificate id")
		return
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "Invalid certificate id")
		return
	}
	if err := h.vault.Deactivate(c.Request.Context(), id); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.NoContent(c)
}

// Expiring lists certificates expiring within the given window (days query
// parameter, default 30).
func (h *CertificateHandler) Expiring(c *gin.Context) {
	days := 30
	if v := c.Query("days"); v != "" {
		if parsed, err := parsePositiveInt(v); err == nil {
			days = parsed
		} else {
			h.BadRequest(c, "Invalid days parameter")
			return
		}
	}
	certs, err := h.vault.ExpiringWithin(c.Request.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	out := make([]CertificateResponse, len(certs))
	for i := range certs {
		out[i] = toCertificateResponse(&certs[i])
	}
	h.Success(c, out)
}

// RegisterRoutes registers certificate routes
func (h *CertificateHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/certificates")
	group.POST("", h.Import)
	group.GET("", h.List)
	group.GET("/expiring", h.Expiring)
	group.DELETE("/:id", h.Deactivate)
}
