package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

const approvalColumns = `id, company_id, approval_type, entity_type, entity_id, status, reason, requested_by,
reviewed_by, reviewed_at, review_notes, priority, expires_at, created_at`

func scanApproval(row pgx.Row) (ledger.Approval, error) {
	var a ledger.Approval
	var approvalType, status string
	var reason []byte
	var notes *string
	if err := row.Scan(&a.ID, &a.CompanyID, &approvalType, &a.EntityType, &a.EntityID, &status, &reason, &a.RequestedBy,
		&a.ReviewedBy, &a.ReviewedAt, &notes, &a.Priority, &a.ExpiresAt, &a.CreatedAt); err != nil {
		return ledger.Approval{}, err
	}
	a.Type = ledger.ApprovalType(approvalType)
	a.Status = ledger.ApprovalStatus(status)
	if notes != nil {
		a.ReviewNotes = *notes
	}
	if len(reason) > 0 {
		if err := json.Unmarshal(reason, &a.Reason); err != nil {
			return ledger.Approval{}, err
		}
	}
	return a, nil
}

func collectApprovals(rows pgx.Rows) ([]ledger.Approval, error) {
	defer rows.Close()
	var out []ledger.Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetApproval loads an approval by id.
func (r *Repository) GetApproval(ctx context.Context, id uuid.UUID) (ledger.Approval, error) {
	a, err := scanApproval(r.pool.QueryRow(ctx, `SELECT `+approvalColumns+` FROM ledger_approvals WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Approval{}, ledger.ErrApprovalNotFound
	}
	return a, err
}

// GetApproval locks an approval row inside the unit of work.
func (r *txRepository) GetApproval(ctx context.Context, id uuid.UUID) (ledger.Approval, error) {
	a, err := scanApproval(r.tx.QueryRow(ctx, `SELECT `+approvalColumns+` FROM ledger_approvals WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Approval{}, ledger.ErrApprovalNotFound
	}
	return a, err
}

// ListPending returns pending approvals by priority then age.
func (r *Repository) ListPending(ctx context.Context, companyID int64) ([]ledger.Approval, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+approvalColumns+` FROM ledger_approvals
WHERE company_id=$1 AND status='pending' ORDER BY priority DESC, created_at`, companyID)
	if err != nil {
		return nil, err
	}
	return collectApprovals(rows)
}

// ListApprovedUnposted returns approved transaction approvals whose transaction is still parked.
func (r *Repository) ListApprovedUnposted(ctx context.Context, limit int) ([]ledger.Approval, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.company_id, a.approval_type, a.entity_type, a.entity_id, a.status, a.reason,
a.requested_by, a.reviewed_by, a.reviewed_at, a.review_notes, a.priority, a.expires_at, a.created_at
FROM ledger_approvals a JOIN ledger_transactions t ON t.id = a.entity_id
WHERE a.status='approved' AND a.entity_type=$1 AND t.status='pending_approval'
ORDER BY a.created_at LIMIT $2`, ledger.EntityTransaction, limit)
	if err != nil {
		return nil, err
	}
	return collectApprovals(rows)
}

// DecideApproval moves a pending approval to a decided status once.
func (r *Repository) DecideApproval(ctx context.Context, id uuid.UUID, status ledger.ApprovalStatus, reviewerID int64, notes string, at time.Time) (ledger.Approval, error) {
	a, err := scanApproval(r.pool.QueryRow(ctx, `UPDATE ledger_approvals SET status=$2, reviewed_by=$3, review_notes=$4, reviewed_at=$5
WHERE id=$1 AND status='pending' RETURNING `+approvalColumns, id, string(status), reviewerID, notes, at))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return ledger.Approval{}, err
	}
	current, err := r.GetApproval(ctx, id)
	if err != nil {
		return ledger.Approval{}, err
	}
	return ledger.Approval{}, &ledger.IllegalStateError{TransactionID: current.EntityID, From: "approval " + string(current.Status), Action: "decide"}
}
