package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

var day = time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC)

func seedTransaction(t *testing.T, s *Store, tx ledger.Transaction) {
	t.Helper()
	require.NoError(t, s.WithTx(context.Background(), func(ctx context.Context, repo ledger.TxRepository) error {
		return repo.InsertTransaction(ctx, tx)
	}))
}

func TestWithTxDiscardsWritesOnError(t *testing.T) {
	s := New()
	tx := ledger.Transaction{ID: uuid.New(), CompanyID: 7, Status: ledger.StatusDraft}
	err := s.WithTx(context.Background(), func(ctx context.Context, repo ledger.TxRepository) error {
		require.NoError(t, repo.InsertTransaction(ctx, tx))
		return ledger.ErrAccountNotFound
	})
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
	_, ok := s.Transaction(tx.ID)
	require.False(t, ok)
}

func TestCommitRejectsStaleChainTail(t *testing.T) {
	s := New()
	ctx := context.Background()
	genesis := ledger.JournalEntry{ID: uuid.New(), CompanyID: 7, ContentHash: "a", ChainHash: "b"}

	slow := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- s.WithTx(ctx, func(ctx context.Context, repo ledger.TxRepository) error {
			other := genesis
			other.ID = uuid.New()
			if err := repo.AppendEntry(ctx, other); err != nil {
				return err
			}
			<-slow
			return nil
		})
	}()

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, repo ledger.TxRepository) error {
		return repo.AppendEntry(ctx, genesis)
	}))
	close(slow)
	require.ErrorIs(t, <-done, ledger.ErrConcurrencyConflict)
	require.Len(t, s.Entries(7), 1)
}

func TestAppendEntryChecksLinkage(t *testing.T) {
	s := New()
	ctx := context.Background()
	err := s.WithTx(ctx, func(ctx context.Context, repo ledger.TxRepository) error {
		require.NoError(t, repo.AppendEntry(ctx, ledger.JournalEntry{ID: uuid.New(), CompanyID: 7, ContentHash: "c1", ChainHash: "h1"}))
		wrong := "zzz"
		return repo.AppendEntry(ctx, ledger.JournalEntry{ID: uuid.New(), CompanyID: 7, PreviousHash: &wrong, ContentHash: "c2", ChainHash: "h2"})
	})
	require.ErrorIs(t, err, ledger.ErrConcurrencyConflict)
	require.Empty(t, s.Entries(7))
}

func TestFindSimilarTransaction(t *testing.T) {
	s := New()
	ctx := context.Background()
	posted := ledger.Transaction{
		ID: uuid.New(), CompanyID: 7, Date: day, Description: "Office Rent  May", Status: ledger.StatusPosted, CreatedAt: day,
		Lines: []ledger.Line{{AccountID: 1, Type: ledger.Debit, Amount: 5_000}, {AccountID: 2, Type: ledger.Credit, Amount: 5_000}},
	}
	draft := posted
	draft.ID = uuid.New()
	draft.Status = ledger.StatusDraft
	seedTransaction(t, s, posted)
	seedTransaction(t, s, draft)

	q := ledger.SimilarQuery{CompanyID: 7, Amount: 5_000, Description: "office rent may", Date: day.AddDate(0, 0, 2), Exclude: uuid.New()}
	found, err := s.FindSimilarTransaction(ctx, q)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, posted.ID, *found)

	q.Exclude = posted.ID
	found, err = s.FindSimilarTransaction(ctx, q)
	require.NoError(t, err)
	require.Nil(t, found)

	q.Exclude = uuid.New()
	q.Date = day.AddDate(0, 0, 4)
	found, err = s.FindSimilarTransaction(ctx, q)
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestThresholdsDefaultWhenUnset(t *testing.T) {
	s := New()
	require.Equal(t, ledger.DefaultThresholds(), s.ForCompany(context.Background(), 7))

	custom := ledger.DefaultThresholds()
	custom.LargeTransactionThreshold = 50_000
	custom.DormantAccountDaysThreshold = 0
	s.SetThresholds(7, custom)
	got := s.ForCompany(context.Background(), 7)
	require.Equal(t, ledger.Cents(50_000), got.LargeTransactionThreshold)
	require.Equal(t, 90, got.DormantAccountDaysThreshold)
}

func TestDecideApprovalIsOneWay(t *testing.T) {
	s := New()
	ctx := context.Background()
	var id uuid.UUID
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, repo ledger.TxRepository) error {
		var err error
		id, err = repo.OpenApproval(ctx, ledger.ApprovalRequest{CompanyID: 7, Type: ledger.ApprovalTransactionPosting, EntityType: ledger.EntityTransaction, EntityID: uuid.New()})
		return err
	}))
	_, err := s.DecideApproval(ctx, id, ledger.ApprovalApproved, 9, "", day)
	require.NoError(t, err)
	_, err = s.DecideApproval(ctx, id, ledger.ApprovalRejected, 9, "", day)
	require.True(t, ledger.IsIllegalState(err))
}

func TestLastActivityDateTracksLatestChange(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, repo ledger.TxRepository) error {
		for _, at := range []time.Time{day, day.AddDate(0, 0, -10)} {
			err := repo.AppendBalanceChange(ctx, ledger.BalanceChange{ID: uuid.New(), CompanyID: 7, AccountID: 1, Amount: 100, NewBalance: 100, Change: 100, OccurredAt: at})
			if err != nil {
				return err
			}
		}
		return nil
	}))
	last, err := s.LastActivityDate(ctx, 1)
	require.NoError(t, err)
	require.True(t, last.Equal(day))

	last, err = s.LastActivityDate(ctx, 2)
	require.NoError(t, err)
	require.Nil(t, last)
}

func TestReplayAllOrdersByOccurrence(t *testing.T) {
	s := New()
	ctx := context.Background()
	late := ledger.JournalEntry{ID: uuid.New(), CompanyID: 7, OccurredAt: day, ContentHash: "c1", ChainHash: "h1"}
	prev := late.Tail()
	early := ledger.JournalEntry{ID: uuid.New(), CompanyID: 7, OccurredAt: day.Add(-time.Hour), PreviousHash: &prev, ContentHash: "c2", ChainHash: "h2"}
	prev2 := early.Tail()
	tie := ledger.JournalEntry{ID: uuid.New(), CompanyID: 7, OccurredAt: day, PreviousHash: &prev2, ContentHash: "c3", ChainHash: "h3"}
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, repo ledger.TxRepository) error {
		for _, e := range []ledger.JournalEntry{late, early, tie} {
			if err := repo.AppendEntry(ctx, e); err != nil {
				return err
			}
		}
		return nil
	}))
	var ids []uuid.UUID
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, repo ledger.TxRepository) error {
		entries, err := repo.ReplayAll(ctx, 7)
		for _, e := range entries {
			ids = append(ids, e.ID)
		}
		return err
	}))
	require.Equal(t, []uuid.UUID{early.ID, late.ID, tie.ID}, ids)
}

func TestUnitOfWorkSeesStagedApproval(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, repo ledger.TxRepository) error {
		id, err := repo.OpenApproval(ctx, ledger.ApprovalRequest{CompanyID: 7, Type: ledger.ApprovalTransactionPosting, EntityType: ledger.EntityTransaction, EntityID: uuid.New()})
		require.NoError(t, err)
		a, err := repo.GetApproval(ctx, id)
		require.NoError(t, err)
		require.Equal(t, ledger.ApprovalPending, a.Status)
		_, err = repo.GetApproval(ctx, uuid.New())
		require.ErrorIs(t, err, ledger.ErrApprovalNotFound)
		return nil
	}))
}
