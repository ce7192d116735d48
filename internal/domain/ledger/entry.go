package ledger

import (
	"fmt"
	"time"

	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger invariant errors (spec'd behavior; transaction rolls back on any of them)
var (
	ErrDegenerateEntry = shared.NewDomainError("DEGENERATE_ENTRY",
		"An entry requires at least two posting items")
	ErrNonPostableAccount = shared.NewDomainError("NON_POSTABLE_ACCOUNT",
		"Synthetic accounts cannot receive direct postings")
	ErrAlreadyReversed = shared.NewDomainError("ALREADY_REVERSED",
		"Entry has already been reversed")
	ErrReversedEntryDeletion = shared.NewDomainError("REVERSED_ENTRY_DELETION",
		"A reversed entry cannot be deleted; delete its reversal first")
)

// NewUnbalancedEntryError builds the unbalanced-entry error naming the delta
func NewUnbalancedEntryError(debit, credit decimal.Decimal) *shared.DomainError {
	return shared.NewDomainError("UNBALANCED_ENTRY",
		fmt.Sprintf("Entry is unbalanced: debits %s, credits %s, delta %s",
			debit.StringFixed(2), credit.StringFixed(2), debit.Sub(credit).StringFixed(2)))
}

// Side represents the side of a posting item
type Side string

const (
	SideDebit  Side = "D"
	SideCredit Side = "C"
)

// IsValid checks if the side is valid
func (s Side) IsValid() bool {
	return s == SideDebit || s == SideCredit
}

// Opposite returns the flipped side
func (s Side) Opposite() Side {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// EntryKind represents how an entry originated
type EntryKind string

const (
	EntryManual   EntryKind = "MANUAL"
	EntryAuto     EntryKind = "AUTOMATICO"
	EntryImported EntryKind = "IMPORTADO"
)

// IsValid checks if the kind is valid
func (k EntryKind) IsValid() bool {
	switch k {
	case EntryManual, EntryAuto, EntryImported:
		return true
	}
	return false
}

// OriginReversal tags entries created by ReverseEntry; their origin id is the
// id of the reversed entry.
const OriginReversal = "estorno"

// EntryItem is one debit or credit leg of an entry. Amount is strictly
// positive; the side carries the sign.
type EntryItem struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key"`
	EntryID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	TenantID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	AccountID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Side       Side            `gorm:"type:varchar(1);not null"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Narrative  string          `gorm:"type:varchar(500)"`
	CostCenter string          `gorm:"type:varchar(50)"`
	Sequence   int             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (EntryItem) TableName() string {
	return "entry_items"
}

// Entry is the header of a double-entry accounting record. Immutable after
// insert except for the reversal linkage.
type Entry struct {
	shared.TenantEntity
	ChartVersionID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	EntryNumber     int64           `gorm:"not null;index"`
	Date            time.Time       `gorm:"not null;index"`
	Narrative       string          `gorm:"type:varchar(500);not null"`
	Kind            EntryKind       `gorm:"type:varchar(20);not null"`
	OriginTag       string          `gorm:"type:varchar(50);index"`
	OriginID        string          `gorm:"type:varchar(100)"`
	Total           decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Reversed        bool            `gorm:"not null;default:false"`
	ReversalEntryID *uuid.UUID      `gorm:"type:uuid"`
	CreatedBy       *uuid.UUID      `gorm:"type:uuid"`
	Items           []EntryItem     `gorm:"foreignKey:EntryID;references:ID"`
}

// TableName returns the table name for GORM
func (Entry) TableName() string {
	return "entries"
}

// NewEntryItem creates a posting item
func NewEntryItem(tenantID, accountID uuid.UUID, side Side, amount decimal.Decimal, narrative, costCenter string, seq int) (*EntryItem, error) {
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Posting item account cannot be empty")
	}
	if !side.IsValid() {
		return nil, shared.NewDomainError("INVALID_SIDE", "Posting item side must be debit or credit")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Posting item amount must be positive")
	}
	return &EntryItem{
		ID:         uuid.New(),
		TenantID:   tenantID,
		AccountID:  accountID,
		Side:       side,
		Amount:     amount,
		Narrative:  narrative,
		CostCenter: costCenter,
		Sequence:   seq,
	}, nil
}

// NewEntry creates a balanced entry with its items. The entry number is
// assigned by the posting service from the monotonic sequence before insert.
func NewEntry(
	tenantID, versionID uuid.UUID,
	date time.Time,
	narrative string,
	kind EntryKind,
	items []EntryItem,
	originTag, originID string,
	createdBy *uuid.UUID,
) (*Entry, error) {
	if date.IsZero() {
		return nil, shared.NewDomainError("INVALID_ENTRY_DATE", "Entry date is required")
	}
	if narrative == "" {
		return nil, shared.NewDomainError("INVALID_NARRATIVE", "Entry narrative cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_ENTRY_KIND", "Entry kind is not valid")
	}
	if len(items) < 2 {
		return nil, ErrDegenerateEntry
	}

	debit, credit := decimal.Zero, decimal.Zero
	for i := range items {
		if items[i].Amount.LessThanOrEqual(decimal.Zero) {
			return nil, shared.NewDomainError("INVALID_AMOUNT", "Posting item amount must be positive")
		}
		switch items[i].Side {
		case SideDebit:
			debit = debit.Add(items[i].Amount)
		case SideCredit:
			credit = credit.Add(items[i].Amount)
		default:
			return nil, shared.NewDomainError("INVALID_SIDE", "Posting item side must be debit or credit")
		}
	}
	if !debit.Equal(credit) {
		return nil, NewUnbalancedEntryError(debit, credit)
	}

	e := &Entry{
		TenantEntity:   shared.NewTenantEntity(tenantID),
		ChartVersionID: versionID,
		Date:           date,
		Narrative:      narrative,
		Kind:           kind,
		OriginTag:      originTag,
		OriginID:       originID,
		Total:          debit,
		CreatedBy:      createdBy,
		Items:          make([]EntryItem, len(items)),
	}
	for i := range items {
		item := items[i]
		item.EntryID = e.ID
		item.TenantID = tenantID
		item.Sequence = i + 1
		e.Items[i] = item
	}
	return e, nil
}

// IsReversal reports whether the entry was created by a reversal
func (e *Entry) IsReversal() bool {
	return e.OriginTag == OriginReversal
}

// BuildReversal creates the paired inverse entry and links the original to
// it. Fails with ErrAlreadyReversed if the entry is already flagged.
func (e *Entry) BuildReversal(narrative string, actor *uuid.UUID) (*Entry, error) {
	if e.Reversed {
		return nil, ErrAlreadyReversed
	}
	if narrative == "" {
		narrative = "Estorno: " + e.Narrative
	}
	flipped := make([]EntryItem, len(e.Items))
	for i, item := range e.Items {
		flipped[i] = EntryItem{
			ID:         uuid.New(),
			TenantID:   e.TenantID,
			AccountID:  item.AccountID,
			Side:       item.Side.Opposite(),
			Amount:     item.Amount,
			Narrative:  item.Narrative,
			CostCenter: item.CostCenter,
			Sequence:   i + 1,
		}
	}
	reversal, err := NewEntry(
		e.TenantID, e.ChartVersionID, e.Date, narrative, e.Kind,
		flipped, OriginReversal, e.ID.String(), actor,
	)
	if err != nil {
		return nil, err
	}
	e.Reversed = true
	e.ReversalEntryID = &reversal.ID
	return reversal, nil
}

// UnmarkReversed clears the reversal linkage. Called when the reversal entry
// itself is deleted.
func (e *Entry) UnmarkReversed() {
	e.Reversed = false
	e.ReversalEntryID = nil
}

// DebitTotal sums the debit items
func (e *Entry) DebitTotal() decimal.Decimal {
	total := decimal.Zero
	for i := range e.Items {
		if e.Items[i].Side == SideDebit {
			total = total.Add(e.Items[i].Amount)
		}
	}
	return total
}

// CreditTotal sums the credit items
func (e *Entry) CreditTotal() decimal.Decimal {
	total := decimal.Zero
	for i := range e.Items {
		if e.Items[i].Side == SideCredit {
			total = total.Add(e.Items[i].Amount)
		}
	}
	return total
}
