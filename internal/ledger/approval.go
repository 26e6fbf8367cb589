package ledger

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalType enumerates what an approval gates.
type ApprovalType string

const (
	ApprovalTransactionPosting ApprovalType = "transaction_posting"
	ApprovalPeriodClose        ApprovalType = "period_close"
)

// ApprovalStatus transitions one way: pending -> approved|rejected.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Approval priorities derived from flag severity.
const (
	PriorityNormal = 1
	PriorityHigh   = 2
	PriorityUrgent = 3
)

// EntityTransaction is the entity type used for transaction approvals.
const EntityTransaction = "transaction"

// ApprovalRequest carries what the gate hands to the approval sink.
type ApprovalRequest struct {
	CompanyID   int64
	Type        ApprovalType
	EntityType  string
	EntityID    uuid.UUID
	Reason      []Flag
	RequestedBy int64
	ExpiresAt   *time.Time
}

// Approval is a request for human review.
type Approval struct {
	ID          uuid.UUID
	CompanyID   int64
	Type        ApprovalType
	EntityType  string
	EntityID    uuid.UUID
	Status      ApprovalStatus
	Reason      []Flag
	RequestedBy int64
	ReviewedBy  *int64
	ReviewedAt  *time.Time
	ReviewNotes string
	Priority    int
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

// IsDecided reports whether the approval reached a terminal status.
func (a Approval) IsDecided() bool {
	return a.Status == ApprovalApproved || a.Status == ApprovalRejected
}

// PriorityFor maps the highest flag severity to an approval priority.
func PriorityFor(flags []Flag) int {
	switch HighestSeverity(flags) {
	case SeverityHigh:
		return PriorityUrgent
	case SeverityMedium:
		return PriorityHigh
	}
	return PriorityNormal
}
