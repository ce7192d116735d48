package persistence

import (
	"context"
	"errors"

	"github.com/fiscalerp/backend/internal/domain/fiscal"
	"github.com/fiscalerp/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormCursorRepository implements fiscal.CursorRepository using GORM
type GormCursorRepository struct {
	db *gorm.DB
}

// NewGormCursorRepository creates a new GormCursorRepository
func NewGormCursorRepository(db *gorm.DB) *GormCursorRepository {
	return &GormCursorRepository{db: db}
}

// Find returns the cursor for one (issuer, municipality) pair
func (r *GormCursorRepository) Find(ctx context.Context, issuerCNPJ, municipalityCode string) (*fiscal.NSUCursor, error) {
	var cursor fiscal.NSUCursor
	err := r.db.WithContext(ctx).
		Where("issuer_cnpj = ? AND municipality_code = ?", issuerCNPJ, municipalityCode).
		First(&cursor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &cursor, nil
}

// Save persists a new cursor
func (r *GormCursorRepository) Save(ctx context.Context, cursor *fiscal.NSUCursor) error {
	return r.db.WithContext(ctx).Create(cursor).Error
}

// Update persists cursor movement
func (r *GormCursorRepository) Update(ctx context.Context, cursor *fiscal.NSUCursor) error {
	return r.db.WithContext(ctx).Save(cursor).Error
}

// List returns the scoped tenant's cursors
func (r *GormCursorRepository) List(ctx context.Context) ([]fiscal.NSUCursor, error) {
	var cursors []fiscal.NSUCursor
	err := r.db.WithContext(ctx).
		Order("issuer_cnpj, municipality_code").
		Find(&cursors).Error
	if err != nil {
		return nil, err
	}
	return cursors, nil
}
