package persistence

import (
	"context"
	"errors"

	"github.com/fiscalerp/backend/internal/domain/fiscal"
	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDocumentRepository implements fiscal.DocumentRepository using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

// Save persists a document together with its items
func (r *GormDocumentRepository) Save(ctx context.Context, doc *fiscal.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// Update persists changes to a document header. Items are immutable once
// stored; only header fields (status, entry link) change on re-arrival.
func (r *GormDocumentRepository) Update(ctx context.Context, doc *fiscal.Document) error {
	return r.db.WithContext(ctx).
		Omit("Items").
		Save(doc).Error
}

// FindByID finds a document with its items
func (r *GormDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*fiscal.Document, error) {
	var doc fiscal.Document
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sequence") }).
		First(&doc, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// FindByKey looks a document up by its national access key
func (r *GormDocumentRepository) FindByKey(ctx context.Context, kind fiscal.DocumentKind, key string) (*fiscal.Document, error) {
	var doc fiscal.Document
	err := r.db.WithContext(ctx).
		Where("kind = ? AND key = ?", kind, key).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// FindByMunicipalNumber is the NFS-e fallback identity lookup
func (r *GormDocumentRepository) FindByMunicipalNumber(ctx context.Context, municipalityCode, number string) (*fiscal.Document, error) {
	var doc fiscal.Document
	err := r.db.WithContext(ctx).
		Where("kind = ? AND municipality_code = ? AND number = ?", fiscal.KindNFSe, municipalityCode, number).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// List returns a filtered, paginated page of documents plus the total count
func (r *GormDocumentRepository) List(ctx context.Context, filter fiscal.DocumentFilter) ([]fiscal.Document, int64, error) {
	query := r.db.WithContext(ctx).Model(&fiscal.Document{})

	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Direction != nil {
		query = query.Where("direction = ?", *filter.Direction)
	}
	if filter.IssuerCNPJ != nil {
		query = query.Where("issuer_cnpj = ?", *filter.IssuerCNPJ)
	}
	if filter.DateFrom != nil {
		query = query.Where("issue_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("issue_date <= ?", *filter.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var docs []fiscal.Document
	err := query.
		Order("issue_date DESC, number DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// MaxNSU returns the largest NSU among persisted documents for an issuer,
// zero when none exist.
func (r *GormDocumentRepository) MaxNSU(ctx context.Context, issuerCNPJ string) (int64, error) {
	var max *int64
	err := r.db.WithContext(ctx).
		Model(&fiscal.Document{}).
		Where("issuer_cnpj = ?", issuerCNPJ).
		Select("MAX(nsu)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}
