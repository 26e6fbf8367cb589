// Package approvals records decisions on parked transactions and re-enters the
// posting path when one is approved. Who may decide is checked by the caller.
package approvals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/posting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Store persists approval requests.
type Store interface {
	GetApproval(ctx context.Context, id uuid.UUID) (ledger.Approval, error)
	ListPending(ctx context.Context, companyID int64) ([]ledger.Approval, error)
	// DecideApproval moves a pending approval to status. It returns a
	// *ledger.IllegalStateError when the approval was already decided.
	DecideApproval(ctx context.Context, id uuid.UUID, status ledger.ApprovalStatus, reviewerID int64, notes string, at time.Time) (ledger.Approval, error)
}

// Poster is the part of the posting service a decision re-enters.
type Poster interface {
	ApproveAndPost(ctx context.Context, id uuid.UUID, approverID int64) (posting.PostResult, error)
	Reject(ctx context.Context, id uuid.UUID, reviewerID int64) (ledger.Transaction, error)
}

// HistoryRecorder keeps the approval history trail.
type HistoryRecorder interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// Decision is a reviewer's verdict.
type Decision struct {
	Approve    bool
	ReviewerID int64
	Notes      string
}

// Outcome reports the effect of a decision.
type Outcome struct {
	Approval    ledger.Approval
	Transaction ledger.Transaction
	Posted      *posting.PostResult
}

// Service applies decisions.
type Service struct {
	store   Store
	poster  Poster
	history HistoryRecorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs the approval service. history may be nil.
func NewService(store Store, poster Poster, history HistoryRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, poster: poster, history: history, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Pending lists open approvals of a company, most urgent first.
func (s *Service) Pending(ctx context.Context, companyID int64) ([]ledger.Approval, error) {
	return s.store.ListPending(ctx, companyID)
}

// Decide records the verdict and drives the gated transaction to posted or rejected.
func (s *Service) Decide(ctx context.Context, id uuid.UUID, d Decision) (Outcome, error) {
	if d.ReviewerID == 0 {
		return Outcome{}, ledger.NewInputError("reviewer id required")
	}
	current, err := s.store.GetApproval(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if current.IsDecided() {
		return Outcome{}, &ledger.IllegalStateError{TransactionID: current.EntityID, From: "approval " + string(current.Status), Action: "decide"}
	}
	if current.ExpiresAt != nil && s.now().After(*current.ExpiresAt) {
		return Outcome{}, &ledger.IllegalStateError{TransactionID: current.EntityID, From: "approval expired", Action: "decide"}
	}
	if current.EntityType != ledger.EntityTransaction {
		return Outcome{}, fmt.Errorf("approvals: unsupported entity type %q", current.EntityType)
	}

	status, action := ledger.ApprovalRejected, shared.ApprovalReject
	if d.Approve {
		status, action = ledger.ApprovalApproved, shared.ApprovalApprove
	}
	decided, err := s.store.DecideApproval(ctx, id, status, d.ReviewerID, d.Notes, s.now().UTC())
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Approval: decided}
	if d.Approve {
		res, err := s.poster.ApproveAndPost(ctx, decided.EntityID, d.ReviewerID)
		if err != nil {
			return out, fmt.Errorf("approvals: post %s: %w", decided.EntityID, err)
		}
		out.Transaction = res.Transaction
		out.Posted = &res
	} else {
		tx, err := s.poster.Reject(ctx, decided.EntityID, d.ReviewerID)
		if err != nil {
			return out, fmt.Errorf("approvals: reject %s: %w", decided.EntityID, err)
		}
		out.Transaction = tx
	}
	if s.history != nil {
		err := s.history.Record(ctx, shared.ApprovalLog{
			ApprovalID: decided.ID,
			EntityID:   decided.EntityID,
			ActorID:    d.ReviewerID,
			Action:     action,
			Note:       d.Notes,
			At:         s.now(),
		})
		if err != nil {
			s.logger.Warn("approval history", slog.String("approval_id", id.String()), slog.Any("error", err))
		}
	}
	s.logger.Info("approval decided",
		slog.Int64("company_id", decided.CompanyID),
		slog.String("approval_id", id.String()),
		slog.String("transaction_id", decided.EntityID.String()),
		slog.String("status", string(status)))
	return out, nil
}
