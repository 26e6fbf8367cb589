package posting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/edgecase"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/store/memory"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const company = int64(7)

var (
	fixedNow = time.Date(2024, time.May, 15, 10, 0, 0, 0, time.UTC)
	cash     = ledger.Account{ID: 1, CompanyID: company, Code: 1000, Name: "Cash", Type: ledger.AccountTypeAsset, Currency: "USD", IsActive: true}
	revenue  = ledger.Account{ID: 2, CompanyID: company, Code: 4000, Name: "Sales Revenue", Type: ledger.AccountTypeRevenue, Currency: "USD", IsActive: true}
	rent     = ledger.Account{ID: 3, CompanyID: company, Code: 5000, Name: "Rent", Type: ledger.AccountTypeExpense, Currency: "USD", IsActive: true}
	capital  = ledger.Account{ID: 4, CompanyID: company, Code: 3000, Name: "Owner Capital", Type: ledger.AccountTypeEquity, Currency: "USD", IsActive: true}
)

type fixture struct {
	store   *memory.Store
	svc     *Service
	audit   *shared.MemoryAuditLog
	metrics *stubMetrics
}

func newFixture(t *testing.T, repo func(*memory.Store) ledger.Repository) fixture {
	t.Helper()
	store := memory.New()
	store.WithNow(func() time.Time { return fixedNow })
	for _, acc := range []ledger.Account{cash, revenue, rent, capital} {
		store.PutAccount(acc)
	}
	var r ledger.Repository = store
	if repo != nil {
		r = repo(store)
	}
	audit := &shared.MemoryAuditLog{}
	svc := NewService(Deps{
		Repo:       r,
		Accounts:   store,
		Balances:   store,
		History:    store,
		Thresholds: store,
		Audit:      audit,
	})
	svc.WithNow(func() time.Time { return fixedNow })
	metrics := &stubMetrics{}
	svc.WithMetrics(metrics)
	return fixture{store: store, svc: svc, audit: audit, metrics: metrics}
}

func (f fixture) draft(t *testing.T, date time.Time, desc string, lines ...LineInput) ledger.Transaction {
	t.Helper()
	tx, err := f.svc.CreateDraft(context.Background(), DraftInput{
		CompanyID:   company,
		Date:        date,
		Description: desc,
		CreatedBy:   11,
		Lines:       lines,
	})
	require.NoError(t, err)
	return tx
}

func (f fixture) balance(t *testing.T, id int64) ledger.Cents {
	t.Helper()
	bal, err := f.store.CurrentBalance(context.Background(), id)
	require.NoError(t, err)
	return bal
}

func sale(amount ledger.Cents) []LineInput {
	return []LineInput{
		{AccountID: cash.ID, Type: ledger.Debit, Amount: amount},
		{AccountID: revenue.ID, Type: ledger.Credit, Amount: amount},
	}
}

type stubMetrics struct {
	mu        sync.Mutex
	outcomes  []string
	retried   int
	exhausted int
	voids     int
}

func (m *stubMetrics) ObservePosting(outcome string, _ []ledger.Flag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *stubMetrics) ObserveConflict(retried bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if retried {
		m.retried++
	} else {
		m.exhausted++
	}
}

func (m *stubMetrics) ObserveVoid() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voids++
}

func TestPostCashSale(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tx := f.draft(t, fixedNow, "Cash sale to walk-in customer", sale(10_000)...)

	res, err := f.svc.Post(ctx, PostInput{TransactionID: tx.ID, ActorID: 11})
	require.NoError(t, err)
	require.Equal(t, OutcomePosted, res.Outcome)
	require.Empty(t, res.Flags)
	require.Equal(t, ledger.StatusPosted, res.Transaction.Status)
	require.NotNil(t, res.Entry)
	require.Nil(t, res.Entry.PreviousHash)
	require.Len(t, res.Changes, 2)

	require.Equal(t, ledger.Cents(10_000), f.balance(t, cash.ID))
	require.Equal(t, ledger.Cents(10_000), f.balance(t, revenue.ID))

	stored, ok := f.store.Transaction(tx.ID)
	require.True(t, ok)
	require.Equal(t, ledger.StatusPosted, stored.Status)
	require.Equal(t, stored.TotalDebits(), stored.TotalCredits())
	require.Contains(t, f.audit.Actions(), "transaction.post")
	require.Equal(t, []string{"posted"}, f.metrics.outcomes)
}

func TestPostRejectsUnbalancedLines(t *testing.T) {
	f := newFixture(t, nil)
	tx := f.draft(t, fixedNow, "Unbalanced sale",
		LineInput{AccountID: cash.ID, Type: ledger.Debit, Amount: 100_000},
		LineInput{AccountID: revenue.ID, Type: ledger.Credit, Amount: 90_000},
	)

	_, err := f.svc.Post(context.Background(), PostInput{TransactionID: tx.ID, ActorID: 11})
	var verr *ledger.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, ledger.RuleUnbalanced, verr.Rule)

	require.Empty(t, f.store.Entries(company))
	require.Empty(t, f.store.BalanceChanges())
	require.Equal(t, ledger.Cents(0), f.balance(t, cash.ID))
	stored, _ := f.store.Transaction(tx.ID)
	require.Equal(t, ledger.StatusDraft, stored.Status)
}

func TestPostParksBackdatedTransaction(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tx := f.draft(t, fixedNow.AddDate(0, 0, -40), "Late invoice from April", sale(10_000)...)

	res, err := f.svc.Post(ctx, PostInput{TransactionID: tx.ID, ActorID: 11})
	require.NoError(t, err)
	require.Equal(t, OutcomeParked, res.Outcome)
	require.Nil(t, res.Entry)
	require.NotNil(t, res.ApprovalID)
	require.Equal(t, ledger.StatusPendingApproval, res.Transaction.Status)

	var backdated *ledger.Flag
	for i := range res.Flags {
		if res.Flags[i].Type == ledger.FlagBackdated {
			backdated = &res.Flags[i]
		}
	}
	require.NotNil(t, backdated)
	require.True(t, backdated.RequiresApproval)

	require.Empty(t, f.store.Entries(company))
	require.Equal(t, ledger.Cents(0), f.balance(t, cash.ID))

	approval, err := f.store.GetApproval(ctx, *res.ApprovalID)
	require.NoError(t, err)
	require.Equal(t, ledger.ApprovalPending, approval.Status)
	require.Equal(t, tx.ID, approval.EntityID)
	require.Equal(t, res.Flags, approval.Reason)
	require.Contains(t, f.audit.Actions(), "transaction.park")
}

func TestApproveAndPostBypassesGate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tx := f.draft(t, fixedNow.AddDate(0, 0, -40), "Late invoice from April", sale(10_000)...)
	parked, err := f.svc.Post(ctx, PostInput{TransactionID: tx.ID, ActorID: 11})
	require.NoError(t, err)
	_, err = f.store.DecideApproval(ctx, *parked.ApprovalID, ledger.ApprovalApproved, 99, "", fixedNow)
	require.NoError(t, err)

	res, err := f.svc.ApproveAndPost(ctx, tx.ID, 99)
	require.NoError(t, err)
	require.Equal(t, OutcomePosted, res.Outcome)
	require.Equal(t, int64(99), *res.Transaction.PostedBy)
	require.Len(t, f.store.Entries(company), 1)
	require.Equal(t, parked.Flags, res.Flags)

	logs := f.audit.Logs()
	last := logs[len(logs)-1]
	require.Equal(t, "transaction.post", last.Action)
	require.Contains(t, last.Meta["flags"], string(ledger.FlagBackdated))

	_, err = f.svc.ApproveAndPost(ctx, tx.ID, 99)
	require.True(t, ledger.IsIllegalState(err))
}

func TestApproveAndPostRequiresGrantedApproval(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tx := f.draft(t, fixedNow.AddDate(0, 0, -40), "Late invoice from April", sale(10_000)...)
	parked, err := f.svc.Post(ctx, PostInput{TransactionID: tx.ID, ActorID: 11})
	require.NoError(t, err)
	require.Equal(t, OutcomeParked, parked.Outcome)

	_, err = f.svc.ApproveAndPost(ctx, tx.ID, 99)
	var ierr *ledger.IllegalStateError
	require.True(t, errors.As(err, &ierr))
	require.Equal(t, "approval pending", ierr.From)
	require.Empty(t, f.store.Entries(company))
	require.Equal(t, ledger.Cents(0), f.balance(t, cash.ID))

	_, err = f.store.DecideApproval(ctx, *parked.ApprovalID, ledger.ApprovalRejected, 99, "", fixedNow)
	require.NoError(t, err)
	_, err = f.svc.ApproveAndPost(ctx, tx.ID, 99)
	require.True(t, ledger.IsIllegalState(err))
	require.Empty(t, f.store.Entries(company))

	stored, ok := f.store.Transaction(tx.ID)
	require.True(t, ok)
	require.Equal(t, ledger.StatusPendingApproval, stored.Status)
}

func TestRejectLeavesNoJournalTrace(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tx := f.draft(t, fixedNow.AddDate(0, 0, 5), "Prepaid rent for June", sale(10_000)...)
	res, err := f.svc.Post(ctx, PostInput{TransactionID: tx.ID, ActorID: 11})
	require.NoError(t, err)
	require.Equal(t, OutcomeParked, res.Outcome)

	rejected, err := f.svc.Reject(ctx, tx.ID, 99)
	require.NoError(t, err)
	require.Equal(t, ledger.StatusRejected, rejected.Status)
	require.Empty(t, f.store.Entries(company))

	_, err = f.svc.Post(ctx, PostInput{TransactionID: tx.ID, ActorID: 11})
	require.True(t, ledger.IsIllegalState(err))
}

func TestVoidRestoresBalances(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tx := f.draft(t, fixedNow, "Cash sale to walk-in customer", sale(10_000)...)
	posted, err := f.svc.Post(ctx, PostInput{TransactionID: tx.ID, ActorID: 11})
	require.NoError(t, err)

	res, err := f.svc.Void(ctx, VoidInput{TransactionID: tx.ID, ActorID: 12, Reason: "entered twice"})
	require.NoError(t, err)
	require.Equal(t, ledger.StatusVoided, res.Transaction.Status)
	require.Equal(t, "entered twice", res.Transaction.VoidReason)
	require.Equal(t, ledger.EntryReversal, res.Reversal.Type)
	require.Equal(t, []ledger.Booking{
		{AccountID: cash.ID, Type: ledger.Credit, AmountCents: 10_000},
		{AccountID: revenue.ID, Type: ledger.Debit, AmountCents: 10_000},
	}, res.Reversal.Bookings)
	require.Equal(t, posted.Entry.ChainHash, *res.Reversal.PreviousHash)
	for _, c := range res.Changes {
		require.True(t, c.IsReversal)
	}

	require.Equal(t, ledger.Cents(0), f.balance(t, cash.ID))
	require.Equal(t, ledger.Cents(0), f.balance(t, revenue.ID))

	entries := f.store.Entries(company)
	require.Len(t, entries, 2)
	require.Equal(t, *posted.Entry, entries[0])

	replayed, err := ledger.ReplayBalances(f.store.BalanceChanges())
	require.NoError(t, err)
	require.Equal(t, f.balance(t, cash.ID), replayed[cash.ID])
	require.Equal(t, f.balance(t, revenue.ID), replayed[revenue.ID])

	v, err := f.svc.VerifyIntegrity(ctx, company)
	require.NoError(t, err)
	require.Equal(t, 2, v.Verified)
	require.Equal(t, 1, f.metrics.voids)
}

func TestIllegalTransitions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tx := f.draft(t, fixedNow, "Cash sale to walk-in customer", sale(10_000)...)

	_, err := f.svc.Void(ctx, VoidInput{TransactionID: tx.ID, ActorID: 12, Reason: "typo"})
	var ierr *ledger.IllegalStateError
	require.True(t, errors.As(err, &ierr))
	require.Equal(t, "void", ierr.Action)
	require.Equal(t, string(ledger.StatusDraft), ierr.From)

	_, err = f.svc.Post(ctx, PostInput{TransactionID: tx.ID, ActorID: 11})
	require.NoError(t, err)
	_, err = f.svc.Post(ctx, PostInput{TransactionID: tx.ID, ActorID: 11})
	require.True(t, ledger.IsIllegalState(err))

	_, err = f.svc.UpdateDraft(ctx, UpdateDraftInput{TransactionID: tx.ID, Date: fixedNow, ActorID: 11, Description: "edit"})
	require.True(t, ledger.IsIllegalState(err))
	require.True(t, ledger.IsIllegalState(f.svc.DeleteDraft(ctx, tx.ID, 11)))

	_, err = f.svc.Post(ctx, PostInput{TransactionID: uuid.New(), ActorID: 11})
	require.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

func TestDraftEditing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tx := f.draft(t, fixedNow, "Draft", LineInput{AccountID: cash.ID, Type: ledger.Debit, Amount: 500})

	updated, err := f.svc.UpdateDraft(ctx, UpdateDraftInput{
		TransactionID: tx.ID,
		Date:          fixedNow,
		Description:   "Cash sale, corrected",
		ActorID:       11,
		Lines:         sale(500),
	})
	require.NoError(t, err)
	require.Len(t, updated.Lines, 2)

	require.NoError(t, f.svc.DeleteDraft(ctx, tx.ID, 11))
	_, ok := f.store.Transaction(tx.ID)
	require.False(t, ok)
	require.Contains(t, f.audit.Actions(), "transaction.delete")
}

func TestCreateDraftChecksShape(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.CreateDraft(context.Background(), DraftInput{
		CompanyID: company,
		Date:      fixedNow,
		CreatedBy: 11,
		Lines:     []LineInput{{AccountID: cash.ID, Type: "sideways", Amount: 1}},
	})
	var verr *ledger.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, ledger.RuleInvalidInput, verr.Rule)

	_, err = f.svc.CreateDraft(context.Background(), DraftInput{Date: fixedNow, CreatedBy: 11})
	require.True(t, ledger.IsValidation(err))
}

func TestAnalyzeDoesNotChangeState(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tx := f.draft(t, fixedNow, "Big sale", sale(2_000_000)...)

	d, err := f.svc.Analyze(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, edgecase.RouteReview, d.Route)
	require.True(t, d.RequiresApproval)

	stored, _ := f.store.Transaction(tx.ID)
	require.Equal(t, ledger.StatusDraft, stored.Status)
}

func TestVerifyIntegrityFindsTampering(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		tx := f.draft(t, fixedNow, "Cash sale number "+string(rune('A'+i)), sale(ledger.Cents(1_000*(i+1)))...)
		_, err := f.svc.Post(ctx, PostInput{TransactionID: tx.ID, ActorID: 11})
		require.NoError(t, err)
	}
	entries := f.store.Entries(company)
	require.Len(t, entries, 3)
	for i := 1; i < len(entries); i++ {
		require.Equal(t, entries[i-1].ChainHash, *entries[i].PreviousHash)
	}

	tampered := entries[1]
	tampered.Bookings[0].AmountCents = 1
	require.True(t, f.store.ReplaceEntry(tampered))

	v, err := f.svc.VerifyIntegrity(ctx, company)
	var violation *ledger.IntegrityViolation
	require.True(t, errors.As(err, &violation))
	require.Equal(t, 1, v.Verified)
	require.Equal(t, entries[1].ID, violation.BrokenAtID)
}

func TestConcurrentPostsRetryOnce(t *testing.T) {
	barrier := newTailBarrier(2)
	f := newFixture(t, func(s *memory.Store) ledger.Repository {
		return barrierRepo{inner: s, barrier: barrier}
	})
	ctx := context.Background()
	first := f.draft(t, fixedNow, "Morning cash sales", sale(10_000)...)
	second := f.draft(t, fixedNow, "Afternoon cash sales", sale(25_000)...)

	var wg sync.WaitGroup
	results := make([]PostResult, 2)
	errs := make([]error, 2)
	for i, id := range []uuid.UUID{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Post(ctx, PostInput{TransactionID: id, ActorID: 11})
		}(i, id)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Equal(t, 1, f.metrics.retried)
	require.Equal(t, 0, f.metrics.exhausted)

	entries := f.store.Entries(company)
	require.Len(t, entries, 2)
	require.Nil(t, entries[0].PreviousHash)
	require.Equal(t, entries[0].ChainHash, *entries[1].PreviousHash)
	require.Equal(t, ledger.Cents(35_000), f.balance(t, cash.ID))

	v, err := f.svc.VerifyIntegrity(ctx, company)
	require.NoError(t, err)
	require.Equal(t, 2, v.Verified)
}

func TestPersistentConflictIsTransient(t *testing.T) {
	f := newFixture(t, func(s *memory.Store) ledger.Repository {
		return conflictRepo{inner: s}
	})
	ctx := context.Background()
	tx := f.draft(t, fixedNow, "Cash sale to walk-in customer", sale(10_000)...)

	_, err := f.svc.Post(ctx, PostInput{TransactionID: tx.ID, ActorID: 11})
	require.ErrorIs(t, err, ledger.ErrConcurrencyConflict)
	require.True(t, ledger.IsTransient(err))
	require.Equal(t, 1, f.metrics.retried)
	require.Equal(t, 1, f.metrics.exhausted)

	stored, _ := f.store.Transaction(tx.ID)
	require.Equal(t, ledger.StatusDraft, stored.Status)
	require.Empty(t, f.store.Entries(company))
	require.Equal(t, ledger.Cents(0), f.balance(t, cash.ID))
}

func TestPostHoldsChainLock(t *testing.T) {
	f := newFixture(t, nil)
	locker := &recordingLocker{}
	f.svc.WithLocker(locker)
	tx := f.draft(t, fixedNow, "Cash sale to walk-in customer", sale(10_000)...)

	_, err := f.svc.Post(context.Background(), PostInput{TransactionID: tx.ID, ActorID: 11})
	require.NoError(t, err)
	require.Equal(t, []string{shared.ChainLockKey(company)}, locker.keys)
}

// tailBarrier holds the first n chain-tail reads until all of them arrived.
type tailBarrier struct {
	mu      sync.Mutex
	n       int
	arrived int
	release chan struct{}
}

func newTailBarrier(n int) *tailBarrier {
	return &tailBarrier{n: n, release: make(chan struct{})}
}

func (b *tailBarrier) wait() {
	b.mu.Lock()
	b.arrived++
	k := b.arrived
	b.mu.Unlock()
	if k == b.n {
		close(b.release)
	}
	if k <= b.n {
		<-b.release
	}
}

type barrierRepo struct {
	inner   *memory.Store
	barrier *tailBarrier
}

func (r barrierRepo) WithTx(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	return r.inner.WithTx(ctx, func(ctx context.Context, tx ledger.TxRepository) error {
		return fn(ctx, barrierTx{TxRepository: tx, barrier: r.barrier})
	})
}

type barrierTx struct {
	ledger.TxRepository
	barrier *tailBarrier
}

func (t barrierTx) LatestChainTail(ctx context.Context, companyID int64) (string, bool, error) {
	tail, ok, err := t.TxRepository.LatestChainTail(ctx, companyID)
	t.barrier.wait()
	return tail, ok, err
}

type conflictRepo struct {
	inner *memory.Store
}

func (r conflictRepo) WithTx(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	return r.inner.WithTx(ctx, func(ctx context.Context, tx ledger.TxRepository) error {
		return fn(ctx, conflictTx{TxRepository: tx})
	})
}

type conflictTx struct {
	ledger.TxRepository
}

func (conflictTx) AppendEntry(context.Context, ledger.JournalEntry) error {
	return ledger.ErrConcurrencyConflict
}

type recordingLocker struct {
	keys []string
}

func (l *recordingLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	l.keys = append(l.keys, key)
	return fn(ctx)
}

func flagsOf(flags []ledger.Flag, typ ledger.FlagType) []ledger.Flag {
	var out []ledger.Flag
	for _, f := range flags {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func TestPostParksEquityFundedExpense(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tx := f.draft(t, fixedNow, "Owner paid May rent", []LineInput{
		{AccountID: rent.ID, Type: ledger.Debit, Amount: 50_000},
		{AccountID: capital.ID, Type: ledger.Credit, Amount: 50_000},
	}...)

	res, err := f.svc.Post(ctx, PostInput{TransactionID: tx.ID, ActorID: 11})
	require.NoError(t, err)
	require.Equal(t, OutcomeParked, res.Outcome)
	equity := flagsOf(res.Flags, ledger.FlagEquityAdjustment)
	require.Len(t, equity, 1)
	require.True(t, equity[0].RequiresApproval)
	require.Empty(t, flagsOf(res.Flags, ledger.FlagClosingEntry))
	require.Empty(t, f.store.Entries(company))
}

func TestPostFlagsDormantAccounts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	earlier := fixedNow.AddDate(0, 0, -120)
	f.svc.WithNow(func() time.Time { return earlier })
	first := f.draft(t, earlier, "January counter sale", sale(10_000)...)
	res, err := f.svc.Post(ctx, PostInput{TransactionID: first.ID, ActorID: 11})
	require.NoError(t, err)
	require.Equal(t, OutcomePosted, res.Outcome)
	require.Empty(t, flagsOf(res.Flags, ledger.FlagDormantAccount))

	last, err := f.store.LastActivityDate(ctx, cash.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	require.True(t, last.Equal(earlier))
	none, err := f.store.LastActivityDate(ctx, rent.ID)
	require.NoError(t, err)
	require.Nil(t, none)

	f.svc.WithNow(func() time.Time { return fixedNow })
	second := f.draft(t, fixedNow, "May counter sale", sale(20_000)...)
	res, err = f.svc.Post(ctx, PostInput{TransactionID: second.ID, ActorID: 11})
	require.NoError(t, err)
	require.Equal(t, OutcomePosted, res.Outcome)

	dormant := flagsOf(res.Flags, ledger.FlagDormantAccount)
	require.Len(t, dormant, 2)
	for _, flag := range dormant {
		require.False(t, flag.RequiresApproval)
		require.Contains(t, flag.Description, "120 days")
	}
}

func TestPostFlagsDuplicateSale(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first := f.draft(t, fixedNow, "Counter sale to Acme", sale(10_000)...)
	_, err := f.svc.Post(ctx, PostInput{TransactionID: first.ID, ActorID: 11})
	require.NoError(t, err)

	second := f.draft(t, fixedNow.AddDate(0, 0, -2), "counter  sale to ACME", sale(10_000)...)
	res, err := f.svc.Post(ctx, PostInput{TransactionID: second.ID, ActorID: 11})
	require.NoError(t, err)
	require.Equal(t, OutcomePosted, res.Outcome)

	dup := flagsOf(res.Flags, ledger.FlagDuplicateTransaction)
	require.Len(t, dup, 1)
	require.False(t, dup[0].RequiresApproval)
	require.Contains(t, dup[0].Description, first.ID.String())
	require.Len(t, f.store.Entries(company), 2)
}
