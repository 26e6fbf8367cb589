package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// WithTx runs fn against a staged view of the store and publishes its writes on success.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	unit := &unitOfWork{
		store:     s,
		read:      make(map[uuid.UUID]int),
		txs:       make(map[uuid.UUID]ledger.Transaction),
		deleted:   make(map[uuid.UUID]bool),
		balances:  make(map[int64]ledger.Cents),
		entries:   make(map[int64][]ledger.JournalEntry),
		baseTails: make(map[int64]*string),
		approvals: make(map[uuid.UUID]ledger.Approval),
	}
	if err := fn(ctx, unit); err != nil {
		return err
	}
	return unit.commit()
}

type unitOfWork struct {
	store     *Store
	read      map[uuid.UUID]int
	txs       map[uuid.UUID]ledger.Transaction
	deleted   map[uuid.UUID]bool
	balances  map[int64]ledger.Cents
	entries   map[int64][]ledger.JournalEntry
	baseTails map[int64]*string
	changes   []ledger.BalanceChange
	approvals map[uuid.UUID]ledger.Approval
}

var _ ledger.TxRepository = (*unitOfWork)(nil)

func (u *unitOfWork) InsertTransaction(_ context.Context, tx ledger.Transaction) error {
	u.store.mu.Lock()
	_, exists := u.store.transactions[tx.ID]
	u.store.mu.Unlock()
	if _, staged := u.txs[tx.ID]; exists || staged {
		return fmt.Errorf("memory: transaction %s already exists", tx.ID)
	}
	u.txs[tx.ID] = cloneTransaction(tx)
	u.read[tx.ID] = 0
	return nil
}

func (u *unitOfWork) UpdateTransaction(ctx context.Context, tx ledger.Transaction) error {
	if _, err := u.GetTransactionForUpdate(ctx, tx.ID); err != nil {
		return err
	}
	u.txs[tx.ID] = cloneTransaction(tx)
	return nil
}

func (u *unitOfWork) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	if _, err := u.GetTransactionForUpdate(ctx, id); err != nil {
		return err
	}
	delete(u.txs, id)
	u.deleted[id] = true
	return nil
}

func (u *unitOfWork) GetTransactionForUpdate(_ context.Context, id uuid.UUID) (ledger.Transaction, error) {
	if u.deleted[id] {
		return ledger.Transaction{}, ledger.ErrTransactionNotFound
	}
	if tx, ok := u.txs[id]; ok {
		return cloneTransaction(tx), nil
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	tx, ok := u.store.transactions[id]
	if !ok {
		return ledger.Transaction{}, ledger.ErrTransactionNotFound
	}
	if _, seen := u.read[id]; !seen {
		u.read[id] = u.store.versions[id]
	}
	return cloneTransaction(tx), nil
}

func (u *unitOfWork) GetAccountsForUpdate(_ context.Context, ids []int64) (map[int64]ledger.Account, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	out := make(map[int64]ledger.Account, len(ids))
	for _, id := range ids {
		acc, ok := u.store.accounts[id]
		if !ok {
			return nil, fmt.Errorf("memory: account %d: %w", id, ledger.ErrAccountNotFound)
		}
		if bal, staged := u.balances[id]; staged {
			acc.Balance = bal
		}
		out[id] = acc
	}
	return out, nil
}

func (u *unitOfWork) UpdateAccountBalance(_ context.Context, accountID int64, balance ledger.Cents) error {
	u.balances[accountID] = balance
	return nil
}

func (u *unitOfWork) LatestChainTail(_ context.Context, companyID int64) (string, bool, error) {
	if staged := u.entries[companyID]; len(staged) > 0 {
		return staged[len(staged)-1].Tail(), true, nil
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	tail, ok := u.store.tailLocked(companyID)
	return tail, ok, nil
}

func (u *unitOfWork) AppendEntry(ctx context.Context, entry ledger.JournalEntry) error {
	tail, ok, err := u.LatestChainTail(ctx, entry.CompanyID)
	if err != nil {
		return err
	}
	if !linksTo(entry.PreviousHash, tail, ok) {
		return ledger.ErrConcurrencyConflict
	}
	if len(u.entries[entry.CompanyID]) == 0 {
		u.baseTails[entry.CompanyID] = entry.PreviousHash
	}
	u.entries[entry.CompanyID] = append(u.entries[entry.CompanyID], cloneEntry(entry))
	return nil
}

func (u *unitOfWork) ReplayAll(_ context.Context, companyID int64) ([]ledger.JournalEntry, error) {
	u.store.mu.Lock()
	committed := u.store.entries[companyID]
	out := make([]ledger.JournalEntry, 0, len(committed)+len(u.entries[companyID]))
	for _, e := range committed {
		out = append(out, cloneEntry(e))
	}
	u.store.mu.Unlock()
	for _, e := range u.entries[companyID] {
		out = append(out, cloneEntry(e))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (u *unitOfWork) FindJournalEntry(_ context.Context, transactionID uuid.UUID, entryType ledger.EntryType) (ledger.JournalEntry, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	for _, chain := range u.store.entries {
		for _, e := range chain {
			if e.TransactionID == transactionID && e.Type == entryType {
				return cloneEntry(e), nil
			}
		}
	}
	return ledger.JournalEntry{}, ledger.ErrJournalEntryNotFound
}

func (u *unitOfWork) AppendBalanceChange(_ context.Context, change ledger.BalanceChange) error {
	if !change.Consistent() {
		return fmt.Errorf("memory: inconsistent balance change %s", change)
	}
	u.changes = append(u.changes, change)
	return nil
}

func (u *unitOfWork) GetApproval(_ context.Context, id uuid.UUID) (ledger.Approval, error) {
	if a, ok := u.approvals[id]; ok {
		return a, nil
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	a, ok := u.store.approvals[id]
	if !ok {
		return ledger.Approval{}, ledger.ErrApprovalNotFound
	}
	return a, nil
}

func (u *unitOfWork) OpenApproval(_ context.Context, req ledger.ApprovalRequest) (uuid.UUID, error) {
	id := uuid.New()
	u.approvals[id] = ledger.Approval{
		ID:          id,
		CompanyID:   req.CompanyID,
		Type:        req.Type,
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		Status:      ledger.ApprovalPending,
		Reason:      append([]ledger.Flag(nil), req.Reason...),
		RequestedBy: req.RequestedBy,
		Priority:    ledger.PriorityFor(req.Reason),
		ExpiresAt:   req.ExpiresAt,
		CreatedAt:   u.store.now().UTC(),
	}
	return id, nil
}

// commit publishes staged writes, or rejects them all if a read went stale.
func (u *unitOfWork) commit() error {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for companyID, base := range u.baseTails {
		tail, ok := s.tailLocked(companyID)
		if !linksTo(base, tail, ok) {
			return ledger.ErrConcurrencyConflict
		}
	}
	for id := range u.txs {
		if s.versions[id] != u.read[id] {
			return ledger.ErrConcurrencyConflict
		}
	}
	for id := range u.deleted {
		if s.versions[id] != u.read[id] {
			return ledger.ErrConcurrencyConflict
		}
	}
	for companyID, staged := range u.entries {
		s.entries[companyID] = append(s.entries[companyID], staged...)
	}
	s.changes = append(s.changes, u.changes...)
	for accountID, bal := range u.balances {
		acc := s.accounts[accountID]
		acc.Balance = bal
		acc.UpdatedAt = s.now().UTC()
		s.accounts[accountID] = acc
	}
	for id, tx := range u.txs {
		s.transactions[id] = tx
		s.versions[id]++
	}
	for id := range u.deleted {
		delete(s.transactions, id)
		s.versions[id]++
	}
	for id, a := range u.approvals {
		s.approvals[id] = a
	}
	return nil
}

func linksTo(prev *string, tail string, ok bool) bool {
	if !ok {
		return prev == nil
	}
	return prev != nil && *prev == tail
}
