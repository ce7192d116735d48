package ledger

import (
	"strings"
	"time"

	"github.com/fiscalerp/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Classification represents the accounting classification of an account
type Classification string

const (
	ClassificationAsset        Classification = "ATIVO"
	ClassificationLiability    Classification = "PASSIVO"
	ClassificationEquity       Classification = "PATRIMONIO_LIQUIDO"
	ClassificationRevenue      Classification = "RECEITA"
	ClassificationExpense      Classification = "DESPESA"
	ClassificationCompensation Classification = "COMPENSACAO"
)

// IsValid checks if the classification is valid
func (c Classification) IsValid() bool {
	switch c {
	case ClassificationAsset, ClassificationLiability, ClassificationEquity,
		ClassificationRevenue, ClassificationExpense, ClassificationCompensation:
		return true
	}
	return false
}

// String returns the string representation
func (c Classification) String() string {
	return string(c)
}

// Nature represents the normal balance side of an account
type Nature string

const (
	NatureDebit  Nature = "DEVEDORA"
	NatureCredit Nature = "CREDORA"
)

// IsValid checks if the nature is valid
func (n Nature) IsValid() bool {
	return n == NatureDebit || n == NatureCredit
}

// String returns the string representation
func (n Nature) String() string {
	return string(n)
}

// AccountKind distinguishes aggregating nodes from postable leaves
type AccountKind string

const (
	// AccountSynthetic aggregates its children and never receives postings
	AccountSynthetic AccountKind = "SINTETICA"
	// AccountAnalytic is a postable leaf
	AccountAnalytic AccountKind = "ANALITICA"
)

// IsValid checks if the kind is valid
func (k AccountKind) IsValid() bool {
	return k == AccountSynthetic || k == AccountAnalytic
}

// String returns the string representation
func (k AccountKind) String() string {
	return string(k)
}

// Account is a node of a chart-of-accounts version. Synthetic accounts form
// the hierarchy; analytic accounts receive postings. Code is unique within
// (tenant, version) and the parent always belongs to the same version.
type Account struct {
	shared.TenantEntity
	ChartVersionID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_account_version_code,priority:1"`
	Code           string         `gorm:"type:varchar(30);not null;uniqueIndex:idx_account_version_code,priority:2"`
	Description    string         `gorm:"type:varchar(200);not null"`
	ParentID       *uuid.UUID     `gorm:"type:uuid;index"`
	Level          int            `gorm:"not null"`
	Classification Classification `gorm:"type:varchar(30);not null"`
	Nature         Nature         `gorm:"type:varchar(10);not null"`
	Kind           AccountKind    `gorm:"type:varchar(10);not null"`
	AllowPosting   bool           `gorm:"not null;default:false"`
	DeletedAt      *time.Time     `gorm:"index"`
}

// TableName returns the table name for GORM
func (Account) TableName() string {
	return "accounts"
}

// NewAccount creates a new account within a chart version
func NewAccount(
	tenantID, versionID uuid.UUID,
	code, description string,
	parentID *uuid.UUID,
	classification Classification,
	nature Nature,
	kind AccountKind,
) (*Account, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_ACCOUNT_CODE", "Account code cannot be empty")
	}
	if description == "" {
		return nil, shared.NewDomainError("INVALID_ACCOUNT_DESCRIPTION", "Account description cannot be empty")
	}
	if !classification.IsValid() {
		return nil, shared.NewDomainError("INVALID_CLASSIFICATION", "Account classification is not valid")
	}
	if !nature.IsValid() {
		return nil, shared.NewDomainError("INVALID_NATURE", "Account nature is not valid")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_ACCOUNT_KIND", "Account kind is not valid")
	}

	return &Account{
		TenantEntity:   shared.NewTenantEntity(tenantID),
		ChartVersionID: versionID,
		Code:           code,
		Description:    description,
		ParentID:       parentID,
		Level:          CodeLevel(code),
		Classification: classification,
		Nature:         nature,
		Kind:           kind,
		AllowPosting:   kind == AccountAnalytic,
	}, nil
}

// IsPostable reports whether the account may receive posting items
func (a *Account) IsPostable() bool {
	return a.Kind == AccountAnalytic && a.AllowPosting && a.DeletedAt == nil
}

// IsDeleted reports whether the account has been soft-deleted
func (a *Account) IsDeleted() bool {
	return a.DeletedAt != nil
}

// SoftDelete hides the account from pickers. Existing postings remain valid.
func (a *Account) SoftDelete() {
	now := time.Now()
	a.DeletedAt = &now
}

// Rename changes the description
func (a *Account) Rename(description string) error {
	if description == "" {
		return shared.NewDomainError("INVALID_ACCOUNT_DESCRIPTION", "Account description cannot be empty")
	}
	a.Description = description
	return nil
}

// ChangeCode edits the code without moving the account across
// classifications. The new code must keep the same top-level group.
func (a *Account) ChangeCode(code string) error {
	if code == "" {
		return shared.NewDomainError("INVALID_ACCOUNT_CODE", "Account code cannot be empty")
	}
	if CodeGroup(code) != CodeGroup(a.Code) {
		return shared.NewDomainError("ACCOUNT_GROUP_CHANGE",
			"Account code cannot be moved across classifications")
	}
	a.Code = code
	a.Level = CodeLevel(code)
	return nil
}

// CodeLevel returns the hierarchy depth of a dotted account code
// ("1" -> 1, "1.1.01.002" -> 4).
func CodeLevel(code string) int {
	if code == "" {
		return 0
	}
	return strings.Count(code, ".") + 1
}

// CodeGroup returns the top-level group of a dotted account code
func CodeGroup(code string) string {
	if i := strings.IndexByte(code, '.'); i > 0 {
		return code[:i]
	}
	return code
}

// CodeParent returns the parent code of a dotted account code, or "" for a root
func CodeParent(code string) string {
	if i := strings.LastIndexByte(code, '.'); i > 0 {
		return code[:i]
	}
	return ""
}

// CodeMatchesPrefix reports whether an account code falls under a dotted
// prefix ("4.1.01" matches prefix "4" and "4.1", not "4.9").
func CodeMatchesPrefix(code, prefix string) bool {
	if code == prefix {
		return true
	}
	return strings.HasPrefix(code, prefix+".")
}
