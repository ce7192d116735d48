package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is the base interface for all domain entities
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
}

// BaseEntity provides common fields for all entities
type BaseEntity struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetID returns the entity ID
func (e *BaseEntity) GetID() uuid.UUID {
	return e.ID
}

// GetCreatedAt returns the creation timestamp
func (e *BaseEntity) GetCreatedAt() time.Time {
	return e.CreatedAt
}

// GetUpdatedAt returns the last update timestamp
func (e *BaseEntity) GetUpdatedAt() time.Time {
	return e.UpdatedAt
}

// NewBaseEntity creates a new base entity with generated ID
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TenantEntity extends BaseEntity with multi-tenant ownership.
// Every persistent aggregate in the system embeds it; the persistence layer
// refuses to read or write rows of a TenantEntity without a bound tenant.
type TenantEntity struct {
	BaseEntity
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// NewTenantEntity creates a new tenant-owned entity
func NewTenantEntity(tenantID uuid.UUID) TenantEntity {
	return TenantEntity{
		BaseEntity: NewBaseEntity(),
		TenantID:   tenantID,
	}
}

// OwnerTenantID returns the owning tenant. Used by the persistence guard.
func (e *TenantEntity) OwnerTenantID() uuid.UUID {
	return e.TenantID
}

// SetOwnerTenantID stamps the owning tenant. Used by the persistence guard
// when creating rows under a bound scope.
func (e *TenantEntity) SetOwnerTenantID(id uuid.UUID) {
	e.TenantID = id
}
