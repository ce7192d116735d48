package persistence

import (
	"context"
	"errors"

	"github.com/fiscalerp/backend/internal/domain/ledger"
	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormChartVersionRepository implements ledger.ChartVersionRepository using GORM
type GormChartVersionRepository struct {
	db *gorm.DB
}

// NewGormChartVersionRepository creates a new GormChartVersionRepository
func NewGormChartVersionRepository(db *gorm.DB) *GormChartVersionRepository {
	return &GormChartVersionRepository{db: db}
}

// Save persists a new chart version
func (r *GormChartVersionRepository) Save(ctx context.Context, version *ledger.ChartVersion) error {
	return r.db.WithContext(ctx).Create(version).Error
}

// Update persists chart version changes
func (r *GormChartVersionRepository) Update(ctx context.Context, version *ledger.ChartVersion) error {
	return r.db.WithContext(ctx).Save(version).Error
}

// FindByID finds a chart version by its ID
func (r *GormChartVersionRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.ChartVersion, error) {
	var version ledger.ChartVersion
	if err := r.db.WithContext(ctx).First(&version, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &version, nil
}

// FindActiveByYear returns the active version for one fiscal year
func (r *GormChartVersionRepository) FindActiveByYear(ctx context.Context, fiscalYear int) (*ledger.ChartVersion, error) {
	var version ledger.ChartVersion
	err := r.db.WithContext(ctx).
		Where("fiscal_year = ? AND is_active = ?", fiscalYear, true).
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &version, nil
}

// List returns the scoped tenant's chart versions, newest fiscal year first
func (r *GormChartVersionRepository) List(ctx context.Context) ([]ledger.ChartVersion, error) {
	var versions []ledger.ChartVersion
	err := r.db.WithContext(ctx).
		Order("fiscal_year DESC, created_at DESC").
		Find(&versions).Error
	if err != nil {
		return nil, err
	}
	return versions, nil
}
