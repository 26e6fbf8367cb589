package approvals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/posting"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/store/memory"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var now = time.Date(2024, time.May, 15, 10, 0, 0, 0, time.UTC)

type historyLog struct {
	logs []shared.ApprovalLog
}

func (h *historyLog) Record(_ context.Context, log shared.ApprovalLog) error {
	h.logs = append(h.logs, log)
	return nil
}

func setup(t *testing.T) (*memory.Store, *posting.Service, *Service, *historyLog) {
	t.Helper()
	store := memory.New()
	store.WithNow(func() time.Time { return now })
	store.PutAccount(ledger.Account{ID: 1, CompanyID: 7, Code: 1000, Name: "Cash", Type: ledger.AccountTypeAsset, IsActive: true})
	store.PutAccount(ledger.Account{ID: 2, CompanyID: 7, Code: 4000, Name: "Sales", Type: ledger.AccountTypeRevenue, IsActive: true})
	poster := posting.NewService(posting.Deps{
		Repo:       store,
		Accounts:   store,
		Balances:   store,
		History:    store,
		Thresholds: store,
	})
	poster.WithNow(func() time.Time { return now })
	history := &historyLog{}
	svc := NewService(store, poster, history, nil)
	svc.WithNow(func() time.Time { return now })
	return store, poster, svc, history
}

func park(t *testing.T, poster *posting.Service, amount ledger.Cents) (uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	tx, err := poster.CreateDraft(ctx, posting.DraftInput{
		CompanyID:   7,
		Date:        now,
		Description: "Wholesale order settlement",
		CreatedBy:   11,
		Lines: []posting.LineInput{
			{AccountID: 1, Type: ledger.Debit, Amount: amount},
			{AccountID: 2, Type: ledger.Credit, Amount: amount},
		},
	})
	require.NoError(t, err)
	res, err := poster.Post(ctx, posting.PostInput{TransactionID: tx.ID, ActorID: 11})
	require.NoError(t, err)
	require.Equal(t, posting.OutcomeParked, res.Outcome)
	return tx.ID, *res.ApprovalID
}

func TestDecideApprovePostsTransaction(t *testing.T) {
	store, poster, svc, history := setup(t)
	ctx := context.Background()
	txID, approvalID := park(t, poster, 1_500_000)

	pending, err := svc.Pending(ctx, 7)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, ledger.PriorityUrgent, pending[0].Priority)

	out, err := svc.Decide(ctx, approvalID, Decision{Approve: true, ReviewerID: 99, Notes: "confirmed with customer"})
	require.NoError(t, err)
	require.Equal(t, ledger.ApprovalApproved, out.Approval.Status)
	require.Equal(t, int64(99), *out.Approval.ReviewedBy)
	require.NotNil(t, out.Posted)
	require.Equal(t, ledger.StatusPosted, out.Transaction.Status)
	require.Len(t, store.Entries(7), 1)

	bal, err := store.CurrentBalance(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, ledger.Cents(1_500_000), bal)

	require.Len(t, history.logs, 1)
	require.Equal(t, shared.ApprovalApprove, history.logs[0].Action)
	require.Equal(t, txID, history.logs[0].EntityID)

	_, err = svc.Decide(ctx, approvalID, Decision{Approve: false, ReviewerID: 98})
	var ierr *ledger.IllegalStateError
	require.True(t, errors.As(err, &ierr))
}

func TestDecideRejectKeepsJournalEmpty(t *testing.T) {
	store, poster, svc, history := setup(t)
	ctx := context.Background()
	txID, approvalID := park(t, poster, 2_000_000)

	out, err := svc.Decide(ctx, approvalID, Decision{Approve: false, ReviewerID: 99, Notes: "duplicate of invoice 42"})
	require.NoError(t, err)
	require.Equal(t, ledger.ApprovalRejected, out.Approval.Status)
	require.Equal(t, ledger.StatusRejected, out.Transaction.Status)
	require.Nil(t, out.Posted)
	require.Empty(t, store.Entries(7))

	tx, ok := store.Transaction(txID)
	require.True(t, ok)
	require.Equal(t, ledger.StatusRejected, tx.Status)
	require.Equal(t, shared.ApprovalReject, history.logs[0].Action)

	pending, err := svc.Pending(ctx, 7)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestDecideValidatesInput(t *testing.T) {
	_, _, svc, _ := setup(t)
	_, err := svc.Decide(context.Background(), uuid.New(), Decision{Approve: true})
	require.True(t, ledger.IsValidation(err))

	_, err = svc.Decide(context.Background(), uuid.New(), Decision{Approve: true, ReviewerID: 1})
	require.ErrorIs(t, err, ledger.ErrApprovalNotFound)
}
