package persistence

import (
	"context"
	"errors"

	"github.com/fiscalerp/backend/internal/domain/ledger"
	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAccountRepository implements ledger.AccountRepository using GORM
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// Save persists a new account
func (r *GormAccountRepository) Save(ctx context.Context, account *ledger.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// SaveAll persists a batch of accounts. Used by the default chart import;
// parents must precede children in the slice.
func (r *GormAccountRepository) SaveAll(ctx context.Context, accounts []*ledger.Account) error {
	if len(accounts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(accounts, 100).Error
}

// Update persists account changes
func (r *GormAccountRepository) Update(ctx context.Context, account *ledger.Account) error {
	return r.db.WithContext(ctx).Save(account).Error
}

// FindByID finds an account by its ID
func (r *GormAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	var account ledger.Account
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// FindByCode finds an account by its code within one chart version
func (r *GormAccountRepository) FindByCode(ctx context.Context, versionID uuid.UUID, code string) (*ledger.Account, error) {
	var account ledger.Account
	err := r.db.WithContext(ctx).
		Where("chart_version_id = ? AND code = ?", versionID, code).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// ListByVersion returns the accounts of a chart version ordered by code
func (r *GormAccountRepository) ListByVersion(ctx context.Context, versionID uuid.UUID, includeDeleted bool) ([]ledger.Account, error) {
	query := r.db.WithContext(ctx).Where("chart_version_id = ?", versionID)
	if !includeDeleted {
		query = query.Where("deleted_at IS NULL")
	}
	var accounts []ledger.Account
	if err := query.Order("code").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// CountByVersion counts the live accounts of a chart version
func (r *GormAccountRepository) CountByVersion(ctx context.Context, versionID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ledger.Account{}).
		Where("chart_version_id = ? AND deleted_at IS NULL", versionID).
		Count(&count).Error
	return count, err
}

// HasPostings reports whether any posting item references the account
func (r *GormAccountRepository) HasPostings(ctx context.Context, accountID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ledger.EntryItem{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
