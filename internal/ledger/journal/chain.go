package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// NewEntry builds an unsealed entry with a fresh id.
func NewEntry(companyID int64, transactionID uuid.UUID, entryType ledger.EntryType, bookings []ledger.Booking, at time.Time) ledger.JournalEntry {
	return ledger.JournalEntry{
		ID:            uuid.New(),
		CompanyID:     companyID,
		TransactionID: transactionID,
		Type:          entryType,
		Bookings:      bookings,
		OccurredAt:    Normalize(at),
	}
}

// Reverse builds the REVERSAL entry for original: same amounts, debit and credit swapped.
func Reverse(original ledger.JournalEntry, at time.Time) ledger.JournalEntry {
	bookings := make([]ledger.Booking, 0, len(original.Bookings))
	for _, b := range original.Bookings {
		bookings = append(bookings, ledger.Booking{AccountID: b.AccountID, Type: b.Type.Opposite(), AmountCents: b.AmountCents})
	}
	return NewEntry(original.CompanyID, original.TransactionID, ledger.EntryReversal, bookings, at)
}

// Append seals entry against the current tail and stores it.
// ledger.ErrConcurrencyConflict is returned unchanged when the tail moved.
func Append(ctx context.Context, store ledger.JournalStore, entry ledger.JournalEntry) (ledger.JournalEntry, error) {
	tail, ok, err := store.LatestChainTail(ctx, entry.CompanyID)
	if err != nil {
		return ledger.JournalEntry{}, fmt.Errorf("journal: read tail: %w", err)
	}
	var prev *string
	if ok {
		prev = &tail
	}
	sealed := Seal(entry, prev)
	if err := store.AppendEntry(ctx, sealed); err != nil {
		return ledger.JournalEntry{}, err
	}
	return sealed, nil
}
