package ledger

import (
	"context"
	"errors"

	"github.com/fiscalerp/backend/internal/domain/ledger"
	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/fiscalerp/backend/internal/domain/tenancy"
	"github.com/fiscalerp/backend/internal/infrastructure/logger"
	"github.com/fiscalerp/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ImportResult summarizes a default chart import
type ImportResult struct {
	VersionID       uuid.UUID
	AccountsCreated int
	// Populated reports that an existing empty version was filled in place
	// instead of a new one being created.
	Populated bool
}

// ChartService manages chart-of-accounts versions and their accounts
type ChartService struct {
	db       *persistence.Database
	versions ledger.ChartVersionRepository
	accounts ledger.AccountRepository
}

// NewChartService creates a chart service
func NewChartService(db *persistence.Database, versions ledger.ChartVersionRepository, accounts ledger.AccountRepository) *ChartService {
	return &ChartService{db: db, versions: versions, accounts: accounts}
}

// ImportDefaultChart inserts the canonical Brazilian plan for one fiscal year.
// An existing empty active version is populated in place; a non-empty one gets
// a fresh sibling version. When the year has no version at all, the new one
// becomes active.
func (s *ChartService) ImportDefaultChart(ctx context.Context, fiscalYear int) (*ImportResult, error) {
	tenantID, err := tenancy.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var target *ledger.ChartVersion
	createVersion := false
	populated := false

	existing, err := s.versions.FindActiveByYear(ctx, fiscalYear)
	switch {
	case err == nil:
		count, err := s.accounts.CountByVersion(ctx, existing.ID)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			target = existing
			populated = true
		} else {
			target, err = ledger.NewChartVersion(tenantID, "", fiscalYear)
			if err != nil {
				return nil, err
			}
			createVersion = true
		}
	case errors.Is(err, shared.ErrNotFound):
		target, err = ledger.NewChartVersion(tenantID, "", fiscalYear)
		if err != nil {
			return nil, err
		}
		target.Activate()
		createVersion = true
	default:
		return nil, err
	}

	accounts, err := buildDefaultAccounts(tenantID, target.ID)
	if err != nil {
		return nil, err
	}

	err = s.db.TenantTx(ctx, func(tx *gorm.DB) error {
		if createVersion {
			if err := persistence.NewGormChartVersionRepository(tx).Save(ctx, target); err != nil {
				return err
			}
		}
		return persistence.NewGormAccountRepository(tx).SaveAll(ctx, accounts)
	})
	if err != nil {
		return nil, err
	}

	logger.L(ctx).Info("default chart imported",
		zap.Int("fiscal_year", fiscalYear),
		zap.Int("accounts", len(accounts)),
		zap.Bool("populated_in_place", populated))
	return &ImportResult{
		VersionID:       target.ID,
		AccountsCreated: len(accounts),
		Populated:       populated,
	}, nil
}

// buildDefaultAccounts materializes the embedded plan, resolving parent links
// in code order.
func buildDefaultAccounts(tenantID, versionID uuid.UUID) ([]*ledger.Account, error) {
	plan := ledger.DefaultPlan()
	byCode := make(map[string]*ledger.Account, len(plan))
	accounts := make([]*ledger.Account, 0, len(plan))
	for _, row := range plan {
		var parentID *uuid.UUID
		if parentCode := ledger.CodeParent(row.Code); parentCode != "" {
			parent, ok := byCode[parentCode]
			if !ok {
				return nil, shared.NewDomainError("INVALID_PLAN",
					"Default plan row "+row.Code+" references an unknown parent")
			}
			parentID = &parent.ID
		}
		account, err := ledger.NewAccount(tenantID, versionID, row.Code, row.Description,
			parentID, row.Classification, row.Nature, row.Kind)
		if err != nil {
			return nil, err
		}
		byCode[row.Code] = account
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// CreateAccountInput carries a manual account creation request
type CreateAccountInput struct {
	VersionID      uuid.UUID
	Code           string
	Description    string
	Classification ledger.Classification
	Nature         ledger.Nature
	Kind           ledger.AccountKind
}

// CreateAccount adds one account to a version, linking the parent by code
func (s *ChartService) CreateAccount(ctx context.Context, in CreateAccountInput) (*ledger.Account, error) {
	tenantID, err := tenancy.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.versions.FindByID(ctx, in.VersionID); err != nil {
		return nil, err
	}

	var parentID *uuid.UUID
	if parentCode := ledger.CodeParent(in.Code); parentCode != "" {
		parent, err := s.accounts.FindByCode(ctx, in.VersionID, parentCode)
		if err != nil {
			return nil, err
		}
		parentID = &parent.ID
	}

	account, err := ledger.NewAccount(tenantID, in.VersionID, in.Code, in.Description,
		parentID, in.Classification, in.Nature, in.Kind)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// RenameAccount changes an account description
func (s *ChartService) RenameAccount(ctx context.Context, accountID uuid.UUID, description string) (*ledger.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := account.Rename(description); err != nil {
		return nil, err
	}
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// ChangeAccountCode edits an account code within its classification group
func (s *ChartService) ChangeAccountCode(ctx context.Context, accountID uuid.UUID, code string) (*ledger.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := account.ChangeCode(code); err != nil {
		return nil, err
	}
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// DeleteAccount soft-deletes an account. Postings already recorded against it
// stay valid; the account just leaves the pickers.
func (s *ChartService) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	account.SoftDelete()
	return s.accounts.Update(ctx, account)
}

// ListAccounts returns the accounts of a version ordered by code
func (s *ChartService) ListAccounts(ctx context.Context, versionID uuid.UUID, includeDeleted bool) ([]ledger.Account, error) {
	return s.accounts.ListByVersion(ctx, versionID, includeDeleted)
}

// ListVersions returns the tenant's chart versions
func (s *ChartService) ListVersions(ctx context.Context) ([]ledger.ChartVersion, error) {
	return s.versions.List(ctx)
}
