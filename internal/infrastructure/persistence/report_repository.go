package persistence

import (
	"context"
	"time"

	"github.com/fiscalerp/backend/internal/domain/ledger"
	"github.com/fiscalerp/backend/internal/domain/tenancy"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormReportRepository implements ledger.ReportRepository with raw SQL
// aggregations. Raw queries bypass the gorm tenant guard, so every statement
// here carries its own tenant predicate taken from the context scope.
type GormReportRepository struct {
	db *gorm.DB
}

// NewGormReportRepository creates a new GormReportRepository
func NewGormReportRepository(db *gorm.DB) *GormReportRepository {
	return &GormReportRepository{db: db}
}

// effectiveEntries is the shared exclusion: reversed originals and the estorno
// entries that cancel them never contribute to an aggregate.
const effectiveEntries = "e.reversed = ? AND (e.origin_tag IS NULL OR e.origin_tag <> ?)"

// AccountMovements returns one row per analytic account of the version with
// debit/credit totals split at the window start.
func (r *GormReportRepository) AccountMovements(ctx context.Context, versionID uuid.UUID, start, end time.Time, includeIdle bool) ([]ledger.AccountMovement, error) {
	tenantID, err := tenancy.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []ledger.AccountMovement
	err = r.db.WithContext(ctx).Raw(`
		SELECT a.id AS account_id, a.code, a.description, a.classification, a.nature,
		       COALESCE(SUM(CASE WHEN e.date < ? AND i.side = 'D' THEN i.amount ELSE 0 END), 0) AS opening_debit,
		       COALESCE(SUM(CASE WHEN e.date < ? AND i.side = 'C' THEN i.amount ELSE 0 END), 0) AS opening_credit,
		       COALESCE(SUM(CASE WHEN e.date >= ? AND i.side = 'D' THEN i.amount ELSE 0 END), 0) AS debit,
		       COALESCE(SUM(CASE WHEN e.date >= ? AND i.side = 'C' THEN i.amount ELSE 0 END), 0) AS credit
		FROM accounts a
		LEFT JOIN entry_items i ON i.account_id = a.id
		LEFT JOIN entries e ON e.id = i.entry_id
		     AND `+effectiveEntries+`
		     AND e.date <= ?
		WHERE a.tenant_id = ? AND a.chart_version_id = ?
		  AND a.kind = ? AND a.deleted_at IS NULL
		GROUP BY a.id, a.code, a.description, a.classification, a.nature
		ORDER BY a.code`,
		start, start, start, start,
		false, ledger.OriginReversal, end,
		tenantID, versionID, ledger.AccountAnalytic,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	if includeIdle {
		return rows, nil
	}
	moved := make([]ledger.AccountMovement, 0, len(rows))
	for _, row := range rows {
		if row.HasMovement() || !row.OpeningDebit.IsZero() || !row.OpeningCredit.IsZero() {
			moved = append(moved, row)
		}
	}
	return moved, nil
}

// BalancesAsOf returns cumulative per-account totals up to a cut-off date.
// The totals land in the Debit/Credit columns; opening columns stay zero.
func (r *GormReportRepository) BalancesAsOf(ctx context.Context, versionID uuid.UUID, asOf time.Time) ([]ledger.AccountMovement, error) {
	tenantID, err := tenancy.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []ledger.AccountMovement
	err = r.db.WithContext(ctx).Raw(`
		SELECT a.id AS account_id, a.code, a.description, a.classification, a.nature,
		       COALESCE(SUM(CASE WHEN e.date <= ? AND i.side = 'D' THEN i.amount ELSE 0 END), 0) AS debit,
		       COALESCE(SUM(CASE WHEN e.date <= ? AND i.side = 'C' THEN i.amount ELSE 0 END), 0) AS credit
		FROM accounts a
		LEFT JOIN entry_items i ON i.account_id = a.id
		LEFT JOIN entries e ON e.id = i.entry_id
		     AND `+effectiveEntries+`
		WHERE a.tenant_id = ? AND a.chart_version_id = ?
		  AND a.kind = ? AND a.deleted_at IS NULL
		GROUP BY a.id, a.code, a.description, a.classification, a.nature
		ORDER BY a.code`,
		asOf, asOf,
		false, ledger.OriginReversal,
		tenantID, versionID, ledger.AccountAnalytic,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AccountPostings lists the postings of one account within a window in
// chronological order. Item narratives fall back to the entry narrative.
func (r *GormReportRepository) AccountPostings(ctx context.Context, accountID uuid.UUID, start, end time.Time) ([]ledger.LedgerRow, error) {
	tenantID, err := tenancy.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []ledger.LedgerRow
	err = r.db.WithContext(ctx).Raw(`
		SELECT e.id AS entry_id, e.entry_number, e.date,
		       CASE WHEN i.narrative <> '' THEN i.narrative ELSE e.narrative END AS narrative,
		       i.side, i.amount
		FROM entry_items i
		JOIN entries e ON e.id = i.entry_id
		WHERE i.tenant_id = ? AND i.account_id = ?
		  AND `+effectiveEntries+`
		  AND e.date >= ? AND e.date <= ?
		ORDER BY e.date, e.entry_number, i.sequence`,
		tenantID, accountID,
		false, ledger.OriginReversal,
		start, end,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
