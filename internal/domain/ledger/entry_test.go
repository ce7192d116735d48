package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItems(tenantID uuid.UUID, debit, credit string) []EntryItem {
	d, _ := NewEntryItem(tenantID, uuid.New(), SideDebit, decimal.RequireFromString(debit), "", "", 1)
	c, _ := NewEntryItem(tenantID, uuid.New(), SideCredit, decimal.RequireFromString(credit), "", "", 2)
	return []EntryItem{*d, *c}
}

func TestNewEntry(t *testing.T) {
	tenantID := uuid.New()
	versionID := uuid.New()
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	t.Run("creates balanced entry", func(t *testing.T) {
		entry, err := NewEntry(tenantID, versionID, date, "Sale #42", EntryManual,
			testItems(tenantID, "1000.00", "1000.00"), "", "", nil)
		require.NoError(t, err)
		assert.Equal(t, tenantID, entry.TenantID)
		assert.Equal(t, decimal.RequireFromString("1000.00"), entry.Total)
		assert.Len(t, entry.Items, 2)
		assert.Equal(t, entry.ID, entry.Items[0].EntryID)
		assert.Equal(t, 1, entry.Items[0].Sequence)
		assert.Equal(t, 2, entry.Items[1].Sequence)
		assert.False(t, entry.Reversed)
	})

	t.Run("rejects unbalanced entry naming the delta", func(t *testing.T) {
		_, err := NewEntry(tenantID, versionID, date, "off by a cent", EntryManual,
			testItems(tenantID, "100.00", "99.99"), "", "", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "delta 0.01")
	})

	t.Run("rejects single-item entry", func(t *testing.T) {
		item, err := NewEntryItem(tenantID, uuid.New(), SideDebit, decimal.New(100, 0), "", "", 1)
		require.NoError(t, err)
		_, err = NewEntry(tenantID, versionID, date, "lonely", EntryManual,
			[]EntryItem{*item}, "", "", nil)
		assert.ErrorIs(t, err, ErrDegenerateEntry)
	})

	t.Run("rejects empty narrative", func(t *testing.T) {
		_, err := NewEntry(tenantID, versionID, date, "", EntryManual,
			testItems(tenantID, "10.00", "10.00"), "", "", nil)
		assert.Error(t, err)
	})

	t.Run("rejects zero-amount item", func(t *testing.T) {
		_, err := NewEntryItem(tenantID, uuid.New(), SideDebit, decimal.Zero, "", "", 1)
		assert.Error(t, err)
	})

	t.Run("rejects negative-amount item", func(t *testing.T) {
		_, err := NewEntryItem(tenantID, uuid.New(), SideCredit, decimal.New(-5, 0), "", "", 1)
		assert.Error(t, err)
	})
}

func TestEntryReversal(t *testing.T) {
	tenantID := uuid.New()
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	newEntry := func(t *testing.T) *Entry {
		t.Helper()
		entry, err := NewEntry(tenantID, uuid.New(), date, "Sale #42", EntryManual,
			testItems(tenantID, "1000.00", "1000.00"), "", "", nil)
		require.NoError(t, err)
		return entry
	}

	t.Run("flips every item side and links the original", func(t *testing.T) {
		entry := newEntry(t)
		reversal, err := entry.BuildReversal("Cancel Sale #42", nil)
		require.NoError(t, err)

		assert.True(t, entry.Reversed)
		require.NotNil(t, entry.ReversalEntryID)
		assert.Equal(t, reversal.ID, *entry.ReversalEntryID)

		assert.Equal(t, OriginReversal, reversal.OriginTag)
		assert.Equal(t, entry.ID.String(), reversal.OriginID)
		assert.True(t, reversal.IsReversal())
		require.Len(t, reversal.Items, 2)
		assert.Equal(t, SideCredit, reversal.Items[0].Side)
		assert.Equal(t, SideDebit, reversal.Items[1].Side)
		assert.True(t, reversal.Items[0].Amount.Equal(entry.Items[0].Amount))
	})

	t.Run("second reversal fails", func(t *testing.T) {
		entry := newEntry(t)
		_, err := entry.BuildReversal("once", nil)
		require.NoError(t, err)
		_, err = entry.BuildReversal("twice", nil)
		assert.ErrorIs(t, err, ErrAlreadyReversed)
	})

	t.Run("defaults the narrative", func(t *testing.T) {
		entry := newEntry(t)
		reversal, err := entry.BuildReversal("", nil)
		require.NoError(t, err)
		assert.Equal(t, "Estorno: Sale #42", reversal.Narrative)
	})

	t.Run("unmark restores the unreversed state", func(t *testing.T) {
		entry := newEntry(t)
		_, err := entry.BuildReversal("cancel", nil)
		require.NoError(t, err)
		entry.UnmarkReversed()
		assert.False(t, entry.Reversed)
		assert.Nil(t, entry.ReversalEntryID)
		_, err = entry.BuildReversal("again", nil)
		assert.NoError(t, err)
	})
}

func TestEntryTotals(t *testing.T) {
	tenantID := uuid.New()
	entry, err := NewEntry(tenantID, uuid.New(), time.Now(), "mixed", EntryManual,
		testItems(tenantID, "250.50", "250.50"), "", "", nil)
	require.NoError(t, err)

	assert.True(t, entry.DebitTotal().Equal(decimal.RequireFromString("250.50")))
	assert.True(t, entry.CreditTotal().Equal(decimal.RequireFromString("250.50")))
	assert.True(t, entry.DebitTotal().Equal(entry.CreditTotal()))
}

func TestSide(t *testing.T) {
	assert.Equal(t, SideCredit, SideDebit.Opposite())
	assert.Equal(t, SideDebit, SideCredit.Opposite())
	assert.True(t, SideDebit.IsValid())
	assert.False(t, Side("X").IsValid())
}
