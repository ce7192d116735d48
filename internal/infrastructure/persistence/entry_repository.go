package persistence

import (
	"context"
	"errors"

	"github.com/fiscalerp/backend/internal/domain/ledger"
	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormEntryRepository implements ledger.EntryRepository using GORM
type GormEntryRepository struct {
	db *gorm.DB
}

// NewGormEntryRepository creates a new GormEntryRepository
func NewGormEntryRepository(db *gorm.DB) *GormEntryRepository {
	return &GormEntryRepository{db: db}
}

// WithTx returns a repository bound to a transaction handle
func (r *GormEntryRepository) WithTx(tx *gorm.DB) *GormEntryRepository {
	return &GormEntryRepository{db: tx}
}

// Save inserts the entry header together with its items
func (r *GormEntryRepository) Save(ctx context.Context, entry *ledger.Entry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// UpdateHeader persists header changes (reversal linkage). Items never change.
func (r *GormEntryRepository) UpdateHeader(ctx context.Context, entry *ledger.Entry) error {
	return r.db.WithContext(ctx).
		Omit("Items").
		Save(entry).Error
}

// Delete removes the entry and its items
func (r *GormEntryRepository) Delete(ctx context.Context, entry *ledger.Entry) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("entry_id = ?", entry.ID).Delete(&ledger.EntryItem{}).Error; err != nil {
		return err
	}
	return db.Delete(&ledger.Entry{}, "id = ?", entry.ID).Error
}

// FindByID finds an entry with its items in posting order
func (r *GormEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	var entry ledger.Entry
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sequence") }).
		First(&entry, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// List returns a filtered, paginated page of entry headers plus the total count
func (r *GormEntryRepository) List(ctx context.Context, filter ledger.EntryFilter) ([]ledger.Entry, int64, error) {
	query := r.db.WithContext(ctx).Model(&ledger.Entry{})

	if filter.VersionID != nil {
		query = query.Where("chart_version_id = ?", *filter.VersionID)
	}
	if filter.DateFrom != nil {
		query = query.Where("date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("date <= ?", *filter.DateTo)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.OriginTag != nil {
		query = query.Where("origin_tag = ?", *filter.OriginTag)
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

	var entries []ledger.Entry
	err := query.
		Order("date DESC, entry_number DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// NextEntryNumber draws the next value from the entry-number sequence.
// Postgres owns the sequence; other dialects (sqlite in tests) fall back to
// max+1, which is good enough for single-writer test runs.
func (r *GormEntryRepository) NextEntryNumber(ctx context.Context) (int64, error) {
	db := r.db.WithContext(ctx)
	var next int64
	if db.Dialector.Name() == "postgres" {
		if err := db.Raw("SELECT nextval('entry_number_seq')").Scan(&next).Error; err != nil {
			return 0, err
		}
		return next, nil
	}
	if err := db.Raw("SELECT COALESCE(MAX(entry_number), 0) + 1 FROM entries").Scan(&next).Error; err != nil {
		return 0, err
	}
	return next, nil
}
