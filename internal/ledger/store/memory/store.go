// Package memory is an in-process implementation of the ledger ports. Units of
// work stage their writes and publish them on commit, failing with
// ledger.ErrConcurrencyConflict when the chain tail or a transaction they read
// changed underneath them.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/edgecase"
)

// Store keeps the whole ledger in memory.
type Store struct {
	mu           sync.Mutex
	accounts     map[int64]ledger.Account
	transactions map[uuid.UUID]ledger.Transaction
	versions     map[uuid.UUID]int
	entries      map[int64][]ledger.JournalEntry
	changes      []ledger.BalanceChange
	approvals    map[uuid.UUID]ledger.Approval
	thresholds   map[int64]ledger.Thresholds
	now          func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		accounts:     make(map[int64]ledger.Account),
		transactions: make(map[uuid.UUID]ledger.Transaction),
		versions:     make(map[uuid.UUID]int),
		entries:      make(map[int64][]ledger.JournalEntry),
		approvals:    make(map[uuid.UUID]ledger.Approval),
		thresholds:   make(map[int64]ledger.Thresholds),
		now:          time.Now,
	}
}

// WithNow overrides the clock used for approval timestamps.
func (s *Store) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PutAccount inserts or replaces an account.
func (s *Store) PutAccount(acc ledger.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acc.ID] = acc
}

// SetThresholds stores a company configuration.
func (s *Store) SetThresholds(companyID int64, t ledger.Thresholds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholds[companyID] = t
}

// FindByID implements ledger.AccountLookup.
func (s *Store) FindByID(_ context.Context, id int64) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return acc, nil
}

// FindByCompany implements ledger.AccountLookup, ordered by code.
func (s *Store) FindByCompany(_ context.Context, companyID int64) ([]ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Account
	for _, acc := range s.accounts {
		if acc.CompanyID == companyID {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// CurrentBalance implements ledger.BalanceReader.
func (s *Store) CurrentBalance(_ context.Context, accountID int64) (ledger.Cents, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[accountID]
	if !ok {
		return 0, ledger.ErrAccountNotFound
	}
	return acc.Balance, nil
}

// LastActivityDate implements ledger.ActivityHistory.
func (s *Store) LastActivityDate(_ context.Context, accountID int64) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *time.Time
	for i := range s.changes {
		c := s.changes[i]
		if c.AccountID != accountID {
			continue
		}
		if last == nil || c.OccurredAt.After(*last) {
			at := c.OccurredAt
			last = &at
		}
	}
	return last, nil
}

// FindSimilarTransaction implements ledger.ActivityHistory. Only posted and parked
// transactions count; the earliest created match wins.
func (s *Store) FindSimilarTransaction(_ context.Context, q ledger.SimilarQuery) (*uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []ledger.Transaction
	for _, tx := range s.transactions {
		if tx.CompanyID != q.CompanyID || tx.ID == q.Exclude {
			continue
		}
		if tx.Status != ledger.StatusPosted && tx.Status != ledger.StatusPendingApproval {
			continue
		}
		if tx.TotalDebits() != q.Amount {
			continue
		}
		gap := tx.Date.Sub(q.Date)
		if gap < 0 {
			gap = -gap
		}
		if gap > edgecase.DuplicateWindowDays*24*time.Hour {
			continue
		}
		if !edgecase.SimilarDescriptions(tx.Description, q.Description) {
			continue
		}
		matches = append(matches, tx)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		return matches[i].ID.String() < matches[j].ID.String()
	})
	id := matches[0].ID
	return &id, nil
}

// ForCompany implements ledger.ThresholdProvider.
func (s *Store) ForCompany(ctx context.Context, companyID int64) ledger.Thresholds {
	t, _, _ := s.LoadThresholds(ctx, companyID)
	return t
}

// LoadThresholds returns the stored configuration, or defaults with ok false.
func (s *Store) LoadThresholds(_ context.Context, companyID int64) (ledger.Thresholds, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.thresholds[companyID]
	if !ok {
		return ledger.DefaultThresholds(), false, nil
	}
	return t.Normalize(), true, nil
}

// Transaction returns a committed transaction.
func (s *Store) Transaction(id uuid.UUID) (ledger.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	return cloneTransaction(tx), ok
}

// Entries returns the committed chain of a company.
func (s *Store) Entries(companyID int64) []ledger.JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.JournalEntry, 0, len(s.entries[companyID]))
	for _, e := range s.entries[companyID] {
		out = append(out, cloneEntry(e))
	}
	return out
}

// ReplaceEntry overwrites a committed entry in place. It exists to simulate tampering.
func (s *Store) ReplaceEntry(entry ledger.JournalEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain := s.entries[entry.CompanyID]
	for i := range chain {
		if chain[i].ID == entry.ID {
			chain[i] = cloneEntry(entry)
			return true
		}
	}
	return false
}

// BalanceChanges returns committed balance changes in commit order.
func (s *Store) BalanceChanges() []ledger.BalanceChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.BalanceChange(nil), s.changes...)
}

// Companies lists companies with at least one journal entry.
func (s *Store) Companies(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.entries))
	for id := range s.entries {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) tailLocked(companyID int64) (string, bool) {
	chain := s.entries[companyID]
	if len(chain) == 0 {
		return "", false
	}
	return chain[len(chain)-1].Tail(), true
}

func cloneTransaction(tx ledger.Transaction) ledger.Transaction {
	tx.Lines = append([]ledger.Line(nil), tx.Lines...)
	return tx
}

func cloneEntry(e ledger.JournalEntry) ledger.JournalEntry {
	e.Bookings = append([]ledger.Booking(nil), e.Bookings...)
	if e.PreviousHash != nil {
		p := *e.PreviousHash
		e.PreviousHash = &p
	}
	return e
}
