package fiscal

import (
	"context"

	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// NSUCursor is the incremental sync position for one (tenant, issuer) pair,
// optionally scoped to a municipality for NFS-e sources. Monotonic and
// non-decreasing; rewound only by an explicit operator reset.
type NSUCursor struct {
	shared.TenantEntity
	IssuerCNPJ       string `gorm:"type:varchar(14);not null;uniqueIndex:idx_cursor_scope,priority:2"`
	MunicipalityCode string `gorm:"type:varchar(7);not null;default:'';uniqueIndex:idx_cursor_scope,priority:3"`
	LastNSU          int64  `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (NSUCursor) TableName() string {
	return "fiscal_nsu_cursors"
}

// NewNSUCursor creates a cursor at position zero
func NewNSUCursor(tenantID uuid.UUID, issuerCNPJ, municipalityCode string) (*NSUCursor, error) {
	if len(issuerCNPJ) != 14 {
		return nil, shared.NewDomainError("INVALID_ISSUER_CNPJ", "Issuer CNPJ must have 14 digits")
	}
	return &NSUCursor{
		TenantEntity:     shared.NewTenantEntity(tenantID),
		IssuerCNPJ:       issuerCNPJ,
		MunicipalityCode: municipalityCode,
		LastNSU:          0,
	}, nil
}

// Advance moves the cursor forward. Backward moves are ignored so a retried
// batch can never regress the position.
func (c *NSUCursor) Advance(nsu int64) {
	if nsu > c.LastNSU {
		c.LastNSU = nsu
	}
}

// Reset rewinds the cursor. Manual operator action only.
func (c *NSUCursor) Reset(nsu int64) {
	if nsu < 0 {
		nsu = 0
	}
	c.LastNSU = nsu
}

// CursorRepository persists NSU cursors
type CursorRepository interface {
	Find(ctx context.Context, issuerCNPJ, municipalityCode string) (*NSUCursor, error)
	Save(ctx context.Context, cursor *NSUCursor) error
	Update(ctx context.Context, cursor *NSUCursor) error
	List(ctx context.Context) ([]NSUCursor, error)
}
