package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AccountLookup resolves chart-of-accounts entries.
type AccountLookup interface {
	FindByID(ctx context.Context, id int64) (Account, error)
	FindByCompany(ctx context.Context, companyID int64) ([]Account, error)
}

// BalanceReader exposes committed balances.
type BalanceReader interface {
	CurrentBalance(ctx context.Context, accountID int64) (Cents, error)
}

// SimilarQuery describes a near-duplicate lookup.
type SimilarQuery struct {
	CompanyID   int64
	Amount      Cents
	Description string
	Date        time.Time
	Exclude     uuid.UUID
}

// ActivityHistory answers history questions used by detectors.
type ActivityHistory interface {
	// LastActivityDate returns nil when the account has never been posted to.
	LastActivityDate(ctx context.Context, accountID int64) (*time.Time, error)
	FindSimilarTransaction(ctx context.Context, q SimilarQuery) (*uuid.UUID, error)
}

// ThresholdProvider returns company thresholds, falling back to defaults instead of failing.
type ThresholdProvider interface {
	ForCompany(ctx context.Context, companyID int64) Thresholds
}

// JournalStore persists the hash chain.
type JournalStore interface {
	// LatestChainTail returns the tail hash; ok is false for an empty chain.
	LatestChainTail(ctx context.Context, companyID int64) (tail string, ok bool, err error)
	// AppendEntry returns ErrConcurrencyConflict when entry.PreviousHash no longer matches the tail.
	AppendEntry(ctx context.Context, entry JournalEntry) error
	// ReplayAll returns entries ordered by occurrence.
	ReplayAll(ctx context.Context, companyID int64) ([]JournalEntry, error)
}

// BalanceChangeStore persists per-account audit records.
type BalanceChangeStore interface {
	AppendBalanceChange(ctx context.Context, change BalanceChange) error
}

// ApprovalSink opens approval requests for parked transactions.
type ApprovalSink interface {
	OpenApproval(ctx context.Context, req ApprovalRequest) (uuid.UUID, error)
}

// TxRepository exposes the operations of one atomic unit of work.
type TxRepository interface {
	JournalStore
	BalanceChangeStore
	ApprovalSink

	InsertTransaction(ctx context.Context, tx Transaction) error
	UpdateTransaction(ctx context.Context, tx Transaction) error
	DeleteTransaction(ctx context.Context, id uuid.UUID) error
	GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (Transaction, error)
	GetAccountsForUpdate(ctx context.Context, ids []int64) (map[int64]Account, error)
	GetApproval(ctx context.Context, id uuid.UUID) (Approval, error)
	UpdateAccountBalance(ctx context.Context, accountID int64, balance Cents) error
	FindJournalEntry(ctx context.Context, transactionID uuid.UUID, entryType EntryType) (JournalEntry, error)
}

// Repository abstracts the transactional store.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}
