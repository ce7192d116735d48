package ledger

import (
	"fmt"
	"time"

	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ChartVersion is one version of a tenant's chart of accounts. At most one
// version is active per (tenant, fiscal year); postings stay bound to the
// version they were recorded against.
type ChartVersion struct {
	shared.TenantEntity
	Name       string    `gorm:"type:varchar(100);not null"`
	FiscalYear int       `gorm:"not null;index"`
	ValidFrom  time.Time `gorm:"not null"`
	ValidTo    time.Time `gorm:"not null"`
	IsActive   bool      `gorm:"not null;default:false;index"`
}

// TableName returns the table name for GORM
func (ChartVersion) TableName() string {
	return "chart_versions"
}

// NewChartVersion creates a chart version covering one fiscal year
func NewChartVersion(tenantID uuid.UUID, name string, fiscalYear int) (*ChartVersion, error) {
	if fiscalYear < 1900 || fiscalYear > 2200 {
		return nil, shared.NewDomainError("INVALID_FISCAL_YEAR", "Fiscal year out of range")
	}
	if name == "" {
		name = fmt.Sprintf("Plano de Contas %d", fiscalYear)
	}
	return &ChartVersion{
		TenantEntity: shared.NewTenantEntity(tenantID),
		Name:         name,
		FiscalYear:   fiscalYear,
		ValidFrom:    time.Date(fiscalYear, time.January, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:      time.Date(fiscalYear, time.December, 31, 23, 59, 59, 0, time.UTC),
		IsActive:     false,
	}, nil
}

// Activate marks the version as the current one for postings
func (v *ChartVersion) Activate() {
	v.IsActive = true
}

// Deactivate removes the version from the current slot
func (v *ChartVersion) Deactivate() {
	v.IsActive = false
}
