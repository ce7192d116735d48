package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChartVersionRepository persists chart-of-accounts versions
type ChartVersionRepository interface {
	Save(ctx context.Context, version *ChartVersion) error
	Update(ctx context.Context, version *ChartVersion) error
	FindByID(ctx context.Context, id uuid.UUID) (*ChartVersion, error)
	FindActiveByYear(ctx context.Context, fiscalYear int) (*ChartVersion, error)
	List(ctx context.Context) ([]ChartVersion, error)
}

// AccountRepository persists accounts of a chart version
type AccountRepository interface {
	Save(ctx context.Context, account *Account) error
	SaveAll(ctx context.Context, accounts []*Account) error
	Update(ctx context.Context, account *Account) error
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByCode(ctx context.Context, versionID uuid.UUID, code string) (*Account, error)
	ListByVersion(ctx context.Context, versionID uuid.UUID, includeDeleted bool) ([]Account, error)
	CountByVersion(ctx context.Context, versionID uuid.UUID) (int64, error)
	HasPostings(ctx context.Context, accountID uuid.UUID) (bool, error)
}

// EntryFilter narrows entry listings
type EntryFilter struct {
	VersionID *uuid.UUID
	DateFrom  *time.Time
	DateTo    *time.Time
	Kind      *EntryKind
	OriginTag *string
	Page      int
	PageSize  int
}

// EntryRepository persists accounting entries. Save inserts header and items
// atomically; implementations run inside the caller's transaction.
type EntryRepository interface {
	Save(ctx context.Context, entry *Entry) error
	UpdateHeader(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, entry *Entry) error
	FindByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	List(ctx context.Context, filter EntryFilter) ([]Entry, int64, error)
	// NextEntryNumber draws the next value from the monotonic entry-number
	// sequence. Numbers are never recycled, even on rollback.
	NextEntryNumber(ctx context.Context) (int64, error)
}

// AccountMovement is one aggregated report row: per-account debit/credit
// totals over a window plus the totals accumulated strictly before it.
// Reversed entries and their reversals are excluded from every aggregate.
type AccountMovement struct {
	AccountID      uuid.UUID
	Code           string
	Description    string
	Classification Classification
	Nature         Nature
	OpeningDebit   decimal.Decimal
	OpeningCredit  decimal.Decimal
	Debit          decimal.Decimal
	Credit         decimal.Decimal
}

// NatureSignedOpening returns the opening balance signed by the account's
// nature: debit-nature accounts accumulate debit − credit, credit-nature
// accounts credit − debit.
func (m AccountMovement) NatureSignedOpening() decimal.Decimal {
	if m.Nature == NatureDebit {
		return m.OpeningDebit.Sub(m.OpeningCredit)
	}
	return m.OpeningCredit.Sub(m.OpeningDebit)
}

// NatureSignedClosing returns the closing balance signed by the account's nature
func (m AccountMovement) NatureSignedClosing() decimal.Decimal {
	if m.Nature == NatureDebit {
		return m.OpeningDebit.Add(m.Debit).Sub(m.OpeningCredit.Add(m.Credit))
	}
	return m.OpeningCredit.Add(m.Credit).Sub(m.OpeningDebit.Add(m.Debit))
}

// HasMovement reports whether the account moved within the window
func (m AccountMovement) HasMovement() bool {
	return !m.Debit.IsZero() || !m.Credit.IsZero()
}

// LedgerRow is one posting of an account ledger (razão) listing
type LedgerRow struct {
	EntryID     uuid.UUID
	EntryNumber int64
	Date        time.Time
	Narrative   string
	Side        Side
	Amount      decimal.Decimal
}

// ReportRepository aggregates postings for the report services. All queries
// run under the caller's tenant scope in a read-only transaction.
type ReportRepository interface {
	// AccountMovements returns one row per analytic account of the version
	// with totals split at [start, end]. Accounts without any posting are
	// included only when includeIdle is set.
	AccountMovements(ctx context.Context, versionID uuid.UUID, start, end time.Time, includeIdle bool) ([]AccountMovement, error)
	// BalancesAsOf returns cumulative per-account totals with date <= asOf.
	BalancesAsOf(ctx context.Context, versionID uuid.UUID, asOf time.Time) ([]AccountMovement, error)
	// AccountPostings lists the postings of one account within [start, end]
	// in chronological order.
	AccountPostings(ctx context.Context, accountID uuid.UUID, start, end time.Time) ([]LedgerRow, error)
}
