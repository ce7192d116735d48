package fiscal

import (
	"time"

	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentKind represents the fiscal document family
type DocumentKind string

const (
	KindNFe  DocumentKind = "nfe"
	KindCTe  DocumentKind = "cte"
	KindNFSe DocumentKind = "nfse"
)

// IsValid checks if the kind is valid
func (k DocumentKind) IsValid() bool {
	switch k {
	case KindNFe, KindCTe, KindNFSe:
		return true
	}
	return false
}

// String returns the string representation
func (k DocumentKind) String() string {
	return string(k)
}

// DocumentStatus represents the lifecycle status of a fiscal document
type DocumentStatus string

const (
	StatusNormal    DocumentStatus = "NORMAL"
	StatusCancelled DocumentStatus = "CANCELADA"
	StatusDenied    DocumentStatus = "DENEGADA"
	StatusVoid      DocumentStatus = "INUTILIZADA"
)

// IsValid checks if the status is valid
func (s DocumentStatus) IsValid() bool {
	switch s {
	case StatusNormal, StatusCancelled, StatusDenied, StatusVoid:
		return true
	}
	return false
}

// Direction tells whether the document enters or leaves the tenant
type Direction string

const (
	DirectionInbound  Direction = "ENTRADA"
	DirectionOutbound Direction = "SAIDA"
	// DirectionUnknown flags documents whose participants match neither side
	// of the tenant; kept for operator review.
	DirectionUnknown Direction = "INDETERMINADA"
)

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	switch d {
	case DirectionInbound, DirectionOutbound, DirectionUnknown:
		return true
	}
	return false
}

// DetermineDirection resolves the document direction against the tenant's
// CNPJ: outbound when the tenant issued it, inbound when the tenant is the
// participant, unknown otherwise.
func DetermineDirection(issuerCNPJ, participantCNPJ, tenantCNPJ string) Direction {
	switch tenantCNPJ {
	case "":
		return DirectionUnknown
	case issuerCNPJ:
		return DirectionOutbound
	case participantCNPJ:
		return DirectionInbound
	default:
		return DirectionUnknown
	}
}

// TaxTotals carries the document-level tax amounts extracted from the XML
type TaxTotals struct {
	ICMSBase   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	ICMS       decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	ICMSST     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	IPI        decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	PIS        decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	COFINS     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	ISS        decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	ISSBase    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Discount   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Freight    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	ProductSum decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
}

// Document is the neutral persisted record of one fiscal document.
// Uniqueness: (tenant, kind, key) for NF-e/CT-e; NFS-e without a national key
// fall back to (tenant, municipality, number).
type Document struct {
	shared.TenantEntity
	Kind             DocumentKind   `gorm:"type:varchar(10);not null;uniqueIndex:idx_doc_tenant_kind_key,priority:2"`
	Key              string         `gorm:"type:varchar(44);uniqueIndex:idx_doc_tenant_kind_key,priority:3;index"`
	MunicipalityCode string         `gorm:"type:varchar(7);index"`
	Series           string         `gorm:"type:varchar(10)"`
	Number           string         `gorm:"type:varchar(20);not null"`
	IssuerCNPJ       string         `gorm:"type:varchar(14);not null;index"`
	IssuerName       string         `gorm:"type:varchar(200)"`
	ParticipantCNPJ  string         `gorm:"type:varchar(14);index"`
	ParticipantName  string         `gorm:"type:varchar(200)"`
	Direction        Direction      `gorm:"type:varchar(15);not null"`
	Status           DocumentStatus `gorm:"type:varchar(15);not null;default:'NORMAL'"`
	IssueDate        time.Time      `gorm:"not null;index"`
	CompetenceDate   time.Time      `gorm:"index"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Taxes            TaxTotals       `gorm:"embedded;embeddedPrefix:tax_"`
	NSU              int64           `gorm:"index"`
	EntryID          *uuid.UUID      `gorm:"type:uuid"`
	XMLPath          string          `gorm:"type:varchar(500);not null"`
	XMLHash          string          `gorm:"type:varchar(32);not null"`
	Items            []DocumentItem  `gorm:"foreignKey:DocumentID;references:ID"`
}

// TableName returns the table name for GORM
func (Document) TableName() string {
	return "fiscal_documents"
}

// DocumentItem is a line of a fiscal document, ordered by its sequence
// within the document.
type DocumentItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	DocumentID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	TenantID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Sequence    int             `gorm:"not null"`
	Code        string          `gorm:"type:varchar(60)"`
	Description string          `gorm:"type:varchar(500)"`
	NCM         string          `gorm:"type:varchar(8)"`
	CFOP        string          `gorm:"type:varchar(4)"`
	Unit        string          `gorm:"type:varchar(6)"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"`
	Total       decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	ICMSCST     string          `gorm:"type:varchar(3)"`
	ICMSBase    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	ICMS        decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	IPI         decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	PIS         decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	COFINS      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	ISS         decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
}

// TableName returns the table name for GORM
func (DocumentItem) TableName() string {
	return "fiscal_document_items"
}

// UpdateStatus records a status transition observed on re-arrival
// (a cancellation event, for instance). Other fields stay untouched.
func (d *Document) UpdateStatus(status DocumentStatus) error {
	if !status.IsValid() {
		return shared.NewDomainError("INVALID_DOCUMENT_STATUS", "Document status is not valid")
	}
	d.Status = status
	return nil
}

// LinkEntry attaches the accounting entry generated for the document
func (d *Document) LinkEntry(entryID uuid.UUID) {
	d.EntryID = &entryID
}
