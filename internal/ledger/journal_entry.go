package ledger

import (
	"time"

	"github.com/google/uuid"
)

// EntryType distinguishes original postings from reversals.
type EntryType string

const (
	EntryPosting  EntryType = "POSTING"
	EntryReversal EntryType = "REVERSAL"
)

// Booking is the hashed projection of a transaction line.
type Booking struct {
	AccountID   int64
	Type        LineType
	AmountCents Cents
}

// JournalEntry is an append-only, hash-linked ledger record.
type JournalEntry struct {
	ID            uuid.UUID
	CompanyID     int64
	TransactionID uuid.UUID
	Type          EntryType
	Bookings      []Booking
	OccurredAt    time.Time
	ContentHash   string
	PreviousHash  *string
	ChainHash     string
}

// Tail returns the value the next entry must link to.
func (e JournalEntry) Tail() string {
	if e.ChainHash != "" {
		return e.ChainHash
	}
	return e.ContentHash
}

// BookingsFromLines projects transaction lines into bookings.
func BookingsFromLines(lines []Line) []Booking {
	out := make([]Booking, 0, len(lines))
	for _, line := range lines {
		out = append(out, Booking{AccountID: line.AccountID, Type: line.Type, AmountCents: line.Amount})
	}
	return out
}
