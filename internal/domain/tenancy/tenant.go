package tenancy

import (
	"context"

	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Tenant is an isolated customer of the platform. It is one of the few
// tables readable under the global scope (the ingestion scheduler enumerates
// tenants to schedule per-tenant runs).
type Tenant struct {
	shared.BaseEntity
	Code     string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name     string `gorm:"type:varchar(200);not null"`
	CNPJ     string `gorm:"type:varchar(14);not null;index"`
	IsActive bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (Tenant) TableName() string {
	return "tenants"
}

// NewTenant creates a new tenant
func NewTenant(code, name, cnpj string) (*Tenant, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_TENANT_CODE", "Tenant code cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_TENANT_NAME", "Tenant name cannot be empty")
	}
	if len(cnpj) != 14 {
		return nil, shared.NewDomainError("INVALID_TENANT_CNPJ", "Tenant CNPJ must have 14 digits")
	}
	return &Tenant{
		BaseEntity: shared.NewBaseEntity(),
		Code:       code,
		Name:       name,
		CNPJ:       cnpj,
		IsActive:   true,
	}, nil
}

// TenantRepository persists tenants. ListActive requires the global scope.
type TenantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	ListActive(ctx context.Context) ([]Tenant, error)
	Save(ctx context.Context, tenant *Tenant) error
}
