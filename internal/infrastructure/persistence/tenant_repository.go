package persistence

import (
	"context"
	"errors"

	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/fiscalerp/backend/internal/domain/tenancy"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTenantRepository implements tenancy.TenantRepository using GORM.
// Tenants carry no tenant_id column, so the guard exempts them; the explicit
// scope checks below keep the read paths honest anyway.
type GormTenantRepository struct {
	db *gorm.DB
}

// NewGormTenantRepository creates a new GormTenantRepository
func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

// FindByID finds a tenant by its ID
func (r *GormTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*tenancy.Tenant, error) {
	var tenant tenancy.Tenant
	if err := r.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

// ListActive enumerates active tenants. Reserved for the global scope.
func (r *GormTenantRepository) ListActive(ctx context.Context) ([]tenancy.Tenant, error) {
	scope, err := tenancy.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !scope.Global {
		return nil, tenancy.ErrGlobalScopeForbidden
	}
	var tenants []tenancy.Tenant
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("code").
		Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

// Save persists a tenant
func (r *GormTenantRepository) Save(ctx context.Context, tenant *tenancy.Tenant) error {
	return r.db.WithContext(ctx).Create(tenant).Error
}
