package posting

import (
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// Outcome reports what a posting attempt did.
type Outcome string

const (
	OutcomePosted Outcome = "posted"
	OutcomeParked Outcome = "parked"
)

// PostResult is returned by Post and ApproveAndPost. A parked result is not an error.
type PostResult struct {
	Outcome     Outcome
	Transaction ledger.Transaction
	Entry       *ledger.JournalEntry
	Changes     []ledger.BalanceChange
	Flags       []ledger.Flag
	ApprovalID  *uuid.UUID
}

// VoidResult is returned by Void.
type VoidResult struct {
	Transaction ledger.Transaction
	Reversal    ledger.JournalEntry
	Changes     []ledger.BalanceChange
}
