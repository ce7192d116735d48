// Package ledger implements the accounting use cases: posting and reversing
// entries, chart-of-accounts management and the four financial reports.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/fiscalerp/backend/internal/domain/ledger"
	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/fiscalerp/backend/internal/domain/tenancy"
	"github.com/fiscalerp/backend/internal/infrastructure/logger"
	"github.com/fiscalerp/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrAccountVersionMismatch reports a posting item whose account belongs to a
// different chart version than the entry.
var ErrAccountVersionMismatch = shared.NewDomainError("ACCOUNT_VERSION_MISMATCH",
	"Posting item account belongs to another chart version")

// PostingItemInput is one leg of a posting request
type PostingItemInput struct {
	AccountID  uuid.UUID
	Side       ledger.Side
	Amount     decimal.Decimal
	Narrative  string
	CostCenter string
}

// PostEntryInput is a posting request already validated at the boundary
type PostEntryInput struct {
	VersionID uuid.UUID
	Date      time.Time
	Narrative string
	Kind      ledger.EntryKind
	OriginTag string
	OriginID  string
	CreatedBy *uuid.UUID
	Items     []PostingItemInput
}

// PostingService records, reverses and deletes accounting entries
type PostingService struct {
	db       *persistence.Database
	versions ledger.ChartVersionRepository
	accounts ledger.AccountRepository
	entries  ledger.EntryRepository
}

// NewPostingService creates a posting service
func NewPostingService(
	db *persistence.Database,
	versions ledger.ChartVersionRepository,
	accounts ledger.AccountRepository,
	entries ledger.EntryRepository,
) *PostingService {
	return &PostingService{db: db, versions: versions, accounts: accounts, entries: entries}
}

// PostEntry validates and records a balanced entry. The entry number comes
// from the monotonic sequence and is never recycled, even when the
// transaction rolls back afterwards.
func (s *PostingService) PostEntry(ctx context.Context, in PostEntryInput) (*ledger.Entry, error) {
	tenantID, err := tenancy.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	version, err := s.versions.FindByID(ctx, in.VersionID)
	if err != nil {
		return nil, err
	}

	items := make([]ledger.EntryItem, 0, len(in.Items))
	for i, it := range in.Items {
		account, err := s.accounts.FindByID(ctx, it.AccountID)
		if err != nil {
			return nil, err
		}
		if account.ChartVersionID != version.ID {
			return nil, ErrAccountVersionMismatch
		}
		if !account.IsPostable() {
			return nil, ledger.ErrNonPostableAccount
		}
		item, err := ledger.NewEntryItem(tenantID, account.ID, it.Side, it.Amount, it.Narrative, it.CostCenter, i+1)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	entry, err := ledger.NewEntry(tenantID, version.ID, in.Date, in.Narrative, in.Kind,
		items, in.OriginTag, in.OriginID, in.CreatedBy)
	if err != nil {
		return nil, err
	}

	err = s.db.TenantTx(ctx, func(tx *gorm.DB) error {
		repo := persistence.NewGormEntryRepository(tx)
		number, err := repo.NextEntryNumber(ctx)
		if err != nil {
			return err
		}
		entry.EntryNumber = number
		return repo.Save(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	logger.L(ctx).Info("entry posted",
		zap.Int64("entry_number", entry.EntryNumber),
		zap.String("narrative", entry.Narrative),
		zap.String("total", entry.Total.StringFixed(2)))
	return entry, nil
}

// ReverseEntry creates the paired estorno entry and flags the original
func (s *PostingService) ReverseEntry(ctx context.Context, entryID uuid.UUID, narrative string, actor *uuid.UUID) (*ledger.Entry, error) {
	entry, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	reversal, err := entry.BuildReversal(narrative, actor)
	if err != nil {
		return nil, err
	}

	err = s.db.TenantTx(ctx, func(tx *gorm.DB) error {
		repo := persistence.NewGormEntryRepository(tx)
		number, err := repo.NextEntryNumber(ctx)
		if err != nil {
			return err
		}
		reversal.EntryNumber = number
		if err := repo.Save(ctx, reversal); err != nil {
			return err
		}
		return repo.UpdateHeader(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	logger.L(ctx).Info("entry reversed",
		zap.Int64("entry_number", entry.EntryNumber),
		zap.Int64("reversal_number", reversal.EntryNumber))
	return reversal, nil
}

// DeleteEntry removes an entry. A reversed original is refused; deleting a
// reversal un-marks its source so the pair can be rebuilt.
func (s *PostingService) DeleteEntry(ctx context.Context, entryID uuid.UUID) error {
	entry, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.Reversed {
		return ledger.ErrReversedEntryDeletion
	}

	err = s.db.TenantTx(ctx, func(tx *gorm.DB) error {
		repo := persistence.NewGormEntryRepository(tx)
		if entry.IsReversal() {
			if sourceID, parseErr := uuid.Parse(entry.OriginID); parseErr == nil {
				source, findErr := repo.FindByID(ctx, sourceID)
				if findErr == nil {
					source.UnmarkReversed()
					if err := repo.UpdateHeader(ctx, source); err != nil {
						return err
					}
				} else if !errors.Is(findErr, shared.ErrNotFound) {
					return findErr
				}
			}
		}
		return repo.Delete(ctx, entry)
	})
	if err != nil {
		return err
	}

	logger.L(ctx).Info("entry deleted", zap.Int64("entry_number", entry.EntryNumber))
	return nil
}
