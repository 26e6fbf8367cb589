package edgecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// LineContext joins a proposed line with the account it books to.
type LineContext struct {
	ledger.Line
	Account ledger.Account
}

// Snapshot holds the contextual data detectors read. It is gathered before detection.
type Snapshot struct {
	Today              time.Time
	Balances           map[int64]ledger.Cents
	LastActivity       map[int64]time.Time
	SimilarTransaction *uuid.UUID
}

// Input is everything a detector sees.
type Input struct {
	CompanyID     int64
	TransactionID uuid.UUID
	Date          time.Time
	Description   string
	Lines         []LineContext
	Snapshot      Snapshot
	Thresholds    ledger.Thresholds
}

// Total is the sum of debit lines.
func (in Input) Total() ledger.Cents {
	var total ledger.Cents
	for _, line := range in.Lines {
		if line.Type == ledger.Debit {
			total += line.Amount
		}
	}
	return total
}

// BalanceOf returns the snapshot balance, falling back to the account row.
func (in Input) BalanceOf(line LineContext) ledger.Cents {
	if bal, ok := in.Snapshot.Balances[line.AccountID]; ok {
		return bal
	}
	return line.Account.Balance
}

// Loader gathers the snapshot from the read-side collaborators.
type Loader struct {
	Balances ledger.BalanceReader
	History  ledger.ActivityHistory
	Now      func() time.Time
}

// Load builds the detector input for a transaction whose lines already passed validation.
func (l Loader) Load(ctx context.Context, tx ledger.Transaction, lines []LineContext, thresholds ledger.Thresholds) (Input, error) {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	snap := Snapshot{
		Today:        dateOnly(now()),
		Balances:     make(map[int64]ledger.Cents, len(lines)),
		LastActivity: make(map[int64]time.Time, len(lines)),
	}
	for _, line := range lines {
		if _, done := snap.Balances[line.AccountID]; done {
			continue
		}
		bal, err := l.Balances.CurrentBalance(ctx, line.AccountID)
		if err != nil {
			return Input{}, fmt.Errorf("edgecase: balance of account %d: %w", line.AccountID, err)
		}
		snap.Balances[line.AccountID] = bal
		last, err := l.History.LastActivityDate(ctx, line.AccountID)
		if err != nil {
			return Input{}, fmt.Errorf("edgecase: last activity of account %d: %w", line.AccountID, err)
		}
		if last != nil {
			snap.LastActivity[line.AccountID] = *last
		}
	}
	in := Input{
		CompanyID:     tx.CompanyID,
		TransactionID: tx.ID,
		Date:          tx.Date,
		Description:   tx.Description,
		Lines:         lines,
		Thresholds:    thresholds.Normalize(),
	}
	similar, err := l.History.FindSimilarTransaction(ctx, ledger.SimilarQuery{
		CompanyID:   tx.CompanyID,
		Amount:      in.Total(),
		Description: tx.Description,
		Date:        tx.Date,
		Exclude:     tx.ID,
	})
	if err != nil {
		return Input{}, fmt.Errorf("edgecase: similar transaction lookup: %w", err)
	}
	snap.SimilarTransaction = similar
	in.Snapshot = snap
	return in, nil
}

// JoinLines pairs each line with its account.
func JoinLines(lines []ledger.Line, accounts map[int64]ledger.Account) []LineContext {
	out := make([]LineContext, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineContext{Line: line, Account: accounts[line.AccountID]})
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts calendar days from a to b in UTC.
func daysBetween(a, b time.Time) int {
	return int(dateOnly(b).Sub(dateOnly(a)).Hours() / 24)
}
