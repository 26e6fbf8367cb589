package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// GetApproval returns a committed approval.
func (s *Store) GetApproval(_ context.Context, id uuid.UUID) (ledger.Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.approvals[id]
	if !ok {
		return ledger.Approval{}, ledger.ErrApprovalNotFound
	}
	return a, nil
}

// ListPending returns pending approvals by priority then age.
func (s *Store) ListPending(_ context.Context, companyID int64) ([]ledger.Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Approval
	for _, a := range s.approvals {
		if a.CompanyID == companyID && a.Status == ledger.ApprovalPending {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ListApprovedUnposted returns approved transaction approvals whose transaction is still parked.
func (s *Store) ListApprovedUnposted(_ context.Context, limit int) ([]ledger.Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Approval
	for _, a := range s.approvals {
		if a.Status != ledger.ApprovalApproved || a.EntityType != ledger.EntityTransaction {
			continue
		}
		if tx, ok := s.transactions[a.EntityID]; ok && tx.Status == ledger.StatusPendingApproval {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DecideApproval moves a pending approval to a decided status once.
func (s *Store) DecideApproval(_ context.Context, id uuid.UUID, status ledger.ApprovalStatus, reviewerID int64, notes string, at time.Time) (ledger.Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.approvals[id]
	if !ok {
		return ledger.Approval{}, ledger.ErrApprovalNotFound
	}
	if a.IsDecided() {
		return ledger.Approval{}, &ledger.IllegalStateError{TransactionID: a.EntityID, From: "approval " + string(a.Status), Action: "decide"}
	}
	reviewer := reviewerID
	a.Status = status
	a.ReviewedBy = &reviewer
	a.ReviewedAt = &at
	a.ReviewNotes = notes
	s.approvals[id] = a
	return a, nil
}
