// Package posting owns the transaction lifecycle: drafts, posting, parking for
// approval and voiding. Every state change that touches the journal runs as one
// unit of work.
package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/edgecase"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/journal"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Locker serialises work on a key across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// Metrics receives posting outcomes.
type Metrics interface {
	ObservePosting(outcome string, flags []ledger.Flag)
	ObserveConflict(retried bool)
	ObserveVoid()
}

// Deps wires the collaborators of the service.
type Deps struct {
	Repo       ledger.Repository
	Accounts   ledger.AccountLookup
	Balances   ledger.BalanceReader
	History    ledger.ActivityHistory
	Thresholds ledger.ThresholdProvider
	Audit      ledger.AuditPort
	Logger     *slog.Logger
}

// Service coordinates the posting pipeline.
type Service struct {
	repo       ledger.Repository
	accounts   ledger.AccountLookup
	balances   ledger.BalanceReader
	history    ledger.ActivityHistory
	thresholds ledger.ThresholdProvider
	audit      ledger.AuditPort
	logger     *slog.Logger
	pipeline   edgecase.Pipeline
	locker     Locker
	metrics    Metrics
	validate   *validator.Validate
	now        func() time.Time
}

// NewService constructs the posting service.
func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       deps.Repo,
		accounts:   deps.Accounts,
		balances:   deps.Balances,
		history:    deps.History,
		thresholds: deps.Thresholds,
		audit:      deps.Audit,
		logger:     logger.With(slog.String("component", "posting")),
		pipeline:   edgecase.DefaultPipeline(),
		validate:   validator.New(),
		now:        time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithPipeline replaces the detector pipeline.
func (s *Service) WithPipeline(p edgecase.Pipeline) {
	s.pipeline = p
}

// WithLocker serialises commits per company through locker.
func (s *Service) WithLocker(locker Locker) {
	s.locker = locker
}

// WithMetrics attaches a metrics sink.
func (s *Service) WithMetrics(m Metrics) {
	s.metrics = m
}

// CreateDraft stores a new draft transaction.
func (s *Service) CreateDraft(ctx context.Context, input DraftInput) (ledger.Transaction, error) {
	if err := checkShape(s.validate, input); err != nil {
		return ledger.Transaction{}, err
	}
	now := s.now().UTC()
	tx := ledger.Transaction{
		ID:          uuid.New(),
		CompanyID:   input.CompanyID,
		Date:        input.Date,
		Description: input.Description,
		Reference:   input.Reference,
		Status:      ledger.StatusDraft,
		CreatedBy:   input.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
		Lines:       toLines(input.Lines),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo ledger.TxRepository) error {
		return repo.InsertTransaction(ctx, tx)
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	s.logger.Debug("draft created", slog.Int64("company_id", tx.CompanyID), slog.String("transaction_id", tx.ID.String()))
	return tx, nil
}

// UpdateDraft replaces the lines and header of a draft.
func (s *Service) UpdateDraft(ctx context.Context, input UpdateDraftInput) (ledger.Transaction, error) {
	if err := checkShape(s.validate, input); err != nil {
		return ledger.Transaction{}, err
	}
	var updated ledger.Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo ledger.TxRepository) error {
		current, err := repo.GetTransactionForUpdate(ctx, input.TransactionID)
		if err != nil {
			return err
		}
		if !current.IsEditable() {
			return illegal(current, "update")
		}
		current.Date = input.Date
		current.Description = input.Description
		current.Reference = input.Reference
		current.Lines = toLines(input.Lines)
		current.UpdatedAt = s.now().UTC()
		if err := repo.UpdateTransaction(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	return updated, nil
}

// DeleteDraft removes a draft. Any other status is an IllegalStateError.
func (s *Service) DeleteDraft(ctx context.Context, id uuid.UUID, actorID int64) error {
	var deleted ledger.Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo ledger.TxRepository) error {
		current, err := repo.GetTransactionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsEditable() {
			return illegal(current, "delete")
		}
		deleted = current
		return repo.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, deleted.CompanyID, actorID, "transaction.delete", id, nil)
	return nil
}

// Analyze runs validation and detection without changing state.
func (s *Service) Analyze(ctx context.Context, id uuid.UUID) (edgecase.Decision, error) {
	var decision edgecase.Decision
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo ledger.TxRepository) error {
		current, err := repo.GetTransactionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		report, err := s.detect(ctx, current)
		if err != nil {
			return err
		}
		decision = edgecase.Gate(report, false)
		return nil
	})
	return decision, err
}

// Post validates a draft and either commits it or parks it for approval.
func (s *Service) Post(ctx context.Context, input PostInput) (PostResult, error) {
	if err := checkShape(s.validate, input); err != nil {
		return PostResult{}, err
	}
	var result PostResult
	err := s.serialised(ctx, input.TransactionID, "post", func(ctx context.Context, repo ledger.TxRepository) error {
		current, err := repo.GetTransactionForUpdate(ctx, input.TransactionID)
		if err != nil {
			return err
		}
		if current.Status != ledger.StatusDraft {
			return illegal(current, "post")
		}
		report, err := s.detect(ctx, current)
		if err != nil {
			return err
		}
		decision := edgecase.Gate(report, true)
		if decision.Route == edgecase.RoutePark {
			result, err = s.park(ctx, repo, current, decision, input.ActorID)
			return err
		}
		result, err = s.commit(ctx, repo, current, input.ActorID)
		if err != nil {
			return err
		}
		result.Flags = decision.Flags
		return nil
	})
	if err != nil {
		return PostResult{}, err
	}
	s.observe(ctx, result, input.ActorID)
	return result, nil
}

// ApproveAndPost commits a transaction parked for approval once its approval is granted.
// The gate is not consulted again; the approval's flags are carried into the result.
func (s *Service) ApproveAndPost(ctx context.Context, id uuid.UUID, approverID int64) (PostResult, error) {
	var result PostResult
	err := s.serialised(ctx, id, "approve", func(ctx context.Context, repo ledger.TxRepository) error {
		current, err := repo.GetTransactionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != ledger.StatusPendingApproval || current.ApprovalID == nil {
			return illegal(current, "approve")
		}
		approval, err := repo.GetApproval(ctx, *current.ApprovalID)
		if err != nil {
			return err
		}
		if approval.Status != ledger.ApprovalApproved || approval.EntityID != current.ID {
			return &ledger.IllegalStateError{TransactionID: current.ID, From: "approval " + string(approval.Status), Action: "approve"}
		}
		if _, err := ledger.ValidateLines(ctx, current.CompanyID, current.Lines, s.accounts); err != nil {
			return err
		}
		result, err = s.commit(ctx, repo, current, approverID)
		if err != nil {
			return err
		}
		result.Flags = approval.Reason
		return nil
	})
	if err != nil {
		return PostResult{}, err
	}
	s.observe(ctx, result, approverID)
	return result, nil
}

// Reject moves a parked transaction to its terminal rejected state. No journal entry is written.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reviewerID int64) (ledger.Transaction, error) {
	var rejected ledger.Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo ledger.TxRepository) error {
		current, err := repo.GetTransactionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != ledger.StatusPendingApproval {
			return illegal(current, "reject")
		}
		current.Status = ledger.StatusRejected
		current.UpdatedAt = s.now().UTC()
		if err := repo.UpdateTransaction(ctx, current); err != nil {
			return err
		}
		rejected = current
		return nil
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	s.record(ctx, rejected.CompanyID, reviewerID, "transaction.reject", id, nil)
	return rejected, nil
}

// Void reverses a posted transaction with a REVERSAL entry. The original records stay untouched.
func (s *Service) Void(ctx context.Context, input VoidInput) (VoidResult, error) {
	if err := checkShape(s.validate, input); err != nil {
		return VoidResult{}, err
	}
	var result VoidResult
	err := s.serialised(ctx, input.TransactionID, "void", func(ctx context.Context, repo ledger.TxRepository) error {
		current, err := repo.GetTransactionForUpdate(ctx, input.TransactionID)
		if err != nil {
			return err
		}
		if current.Status != ledger.StatusPosted {
			return illegal(current, "void")
		}
		original, err := repo.FindJournalEntry(ctx, current.ID, ledger.EntryPosting)
		if err != nil {
			return err
		}
		now := s.now()
		reversal, changes, err := s.apply(ctx, repo, current, journal.Reverse(original, now), true)
		if err != nil {
			return err
		}
		at := now.UTC()
		actor := input.ActorID
		current.Status = ledger.StatusVoided
		current.VoidedBy = &actor
		current.VoidedAt = &at
		current.VoidReason = input.Reason
		current.UpdatedAt = at
		if err := repo.UpdateTransaction(ctx, current); err != nil {
			return err
		}
		result = VoidResult{Transaction: current, Reversal: reversal, Changes: changes}
		return nil
	})
	if err != nil {
		return VoidResult{}, err
	}
	if s.metrics != nil {
		s.metrics.ObserveVoid()
	}
	s.logger.Info("transaction voided",
		slog.Int64("company_id", result.Transaction.CompanyID),
		slog.String("transaction_id", result.Transaction.ID.String()),
		slog.String("entry_id", result.Reversal.ID.String()))
	s.record(ctx, result.Transaction.CompanyID, input.ActorID, "transaction.void", input.TransactionID, map[string]any{
		"reason":   input.Reason,
		"entry_id": result.Reversal.ID.String(),
	})
	return result, nil
}

// VerifyIntegrity replays the company's journal chain.
func (s *Service) VerifyIntegrity(ctx context.Context, companyID int64) (journal.Verification, error) {
	var v journal.Verification
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo ledger.TxRepository) error {
		var err error
		v, err = journal.Verify(ctx, repo, companyID)
		return err
	})
	var violation *ledger.IntegrityViolation
	if errors.As(err, &violation) {
		s.logger.Error("journal chain broken",
			slog.Int64("company_id", companyID),
			slog.String("entry_id", violation.BrokenAtID.String()),
			slog.Int("verified", violation.Verified),
			slog.String("reason", violation.Reason))
	}
	return v, err
}

// detect validates the lines and runs the detector pipeline.
func (s *Service) detect(ctx context.Context, tx ledger.Transaction) (edgecase.Report, error) {
	lines, err := ledger.ValidateLines(ctx, tx.CompanyID, tx.Lines, s.accounts)
	if err != nil {
		return edgecase.Report{}, err
	}
	accounts := make(map[int64]ledger.Account, len(lines))
	for _, line := range lines {
		acc, err := s.accounts.FindByID(ctx, line.AccountID)
		if err != nil {
			return edgecase.Report{}, err
		}
		accounts[acc.ID] = acc
	}
	loader := edgecase.Loader{Balances: s.balances, History: s.history, Now: s.now}
	in, err := loader.Load(ctx, tx, edgecase.JoinLines(lines, accounts), s.thresholds.ForCompany(ctx, tx.CompanyID))
	if err != nil {
		return edgecase.Report{}, err
	}
	return s.pipeline.Run(in), nil
}

func (s *Service) park(ctx context.Context, repo ledger.TxRepository, tx ledger.Transaction, decision edgecase.Decision, actorID int64) (PostResult, error) {
	approvalID, err := repo.OpenApproval(ctx, decision.ApprovalRequest(tx, actorID))
	if err != nil {
		return PostResult{}, fmt.Errorf("posting: open approval: %w", err)
	}
	tx.Status = ledger.StatusPendingApproval
	tx.ApprovalID = &approvalID
	tx.UpdatedAt = s.now().UTC()
	if err := repo.UpdateTransaction(ctx, tx); err != nil {
		return PostResult{}, err
	}
	return PostResult{
		Outcome:     OutcomeParked,
		Transaction: tx,
		Flags:       decision.Flags,
		ApprovalID:  &approvalID,
	}, nil
}

// commit applies a POSTING entry and marks the transaction posted.
func (s *Service) commit(ctx context.Context, repo ledger.TxRepository, tx ledger.Transaction, actorID int64) (PostResult, error) {
	now := s.now()
	entry := journal.NewEntry(tx.CompanyID, tx.ID, ledger.EntryPosting, ledger.BookingsFromLines(tx.Lines), now)
	sealed, changes, err := s.apply(ctx, repo, tx, entry, false)
	if err != nil {
		return PostResult{}, err
	}
	at := now.UTC()
	actor := actorID
	tx.Status = ledger.StatusPosted
	tx.PostedBy = &actor
	tx.PostedAt = &at
	tx.UpdatedAt = at
	if err := repo.UpdateTransaction(ctx, tx); err != nil {
		return PostResult{}, err
	}
	return PostResult{
		Outcome:     OutcomePosted,
		Transaction: tx,
		Entry:       &sealed,
		Changes:     changes,
		ApprovalID:  tx.ApprovalID,
	}, nil
}

// apply locks the accounts, appends entry to the chain and moves balances.
func (s *Service) apply(ctx context.Context, repo ledger.TxRepository, tx ledger.Transaction, entry ledger.JournalEntry, reversal bool) (ledger.JournalEntry, []ledger.BalanceChange, error) {
	ids := make([]int64, 0, len(entry.Bookings))
	for _, b := range entry.Bookings {
		ids = append(ids, b.AccountID)
	}
	accounts, err := repo.GetAccountsForUpdate(ctx, ids)
	if err != nil {
		return ledger.JournalEntry{}, nil, err
	}
	sealed, err := journal.Append(ctx, repo, entry)
	if err != nil {
		return ledger.JournalEntry{}, nil, err
	}
	changes := make([]ledger.BalanceChange, 0, len(sealed.Bookings))
	for _, b := range sealed.Bookings {
		acc, ok := accounts[b.AccountID]
		if !ok {
			return ledger.JournalEntry{}, nil, fmt.Errorf("posting: account %d: %w", b.AccountID, ledger.ErrAccountNotFound)
		}
		delta, err := ledger.Delta(acc.Type, b.Type, b.AmountCents)
		if err != nil {
			return ledger.JournalEntry{}, nil, err
		}
		change := ledger.BalanceChange{
			ID:              uuid.New(),
			CompanyID:       tx.CompanyID,
			AccountID:       acc.ID,
			TransactionID:   tx.ID,
			JournalEntryID:  sealed.ID,
			LineType:        b.Type,
			Amount:          b.AmountCents,
			PreviousBalance: acc.Balance,
			NewBalance:      acc.Balance + delta,
			Change:          delta,
			IsReversal:      reversal,
			OccurredAt:      sealed.OccurredAt,
		}
		if err := repo.AppendBalanceChange(ctx, change); err != nil {
			return ledger.JournalEntry{}, nil, err
		}
		if err := repo.UpdateAccountBalance(ctx, acc.ID, change.NewBalance); err != nil {
			return ledger.JournalEntry{}, nil, err
		}
		acc.Balance = change.NewBalance
		accounts[acc.ID] = acc
		changes = append(changes, change)
	}
	return sealed, changes, nil
}

// serialised runs fn as a unit of work, retrying once when the chain tail moved.
// With a locker attached the work also holds the company's chain lock.
func (s *Service) serialised(ctx context.Context, id uuid.UUID, action string, fn func(context.Context, ledger.TxRepository) error) error {
	run := func(ctx context.Context) error {
		err := s.repo.WithTx(ctx, fn)
		if !errors.Is(err, ledger.ErrConcurrencyConflict) {
			return err
		}
		s.logger.Warn("journal tail moved, retrying", slog.String("transaction_id", id.String()), slog.String("action", action))
		if s.metrics != nil {
			s.metrics.ObserveConflict(true)
		}
		err = s.repo.WithTx(ctx, fn)
		if errors.Is(err, ledger.ErrConcurrencyConflict) {
			if s.metrics != nil {
				s.metrics.ObserveConflict(false)
			}
			return fmt.Errorf("posting: %s %s after retry: %w", action, id, err)
		}
		return err
	}
	if s.locker == nil {
		return run(ctx)
	}
	companyID, err := s.companyOf(ctx, id)
	if err != nil {
		return err
	}
	return s.locker.WithLock(ctx, shared.ChainLockKey(companyID), run)
}

func (s *Service) companyOf(ctx context.Context, id uuid.UUID) (int64, error) {
	var companyID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo ledger.TxRepository) error {
		tx, err := repo.GetTransactionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		companyID = tx.CompanyID
		return nil
	})
	return companyID, err
}

func (s *Service) observe(ctx context.Context, result PostResult, actorID int64) {
	if s.metrics != nil {
		s.metrics.ObservePosting(string(result.Outcome), result.Flags)
	}
	tx := result.Transaction
	attrs := []any{
		slog.Int64("company_id", tx.CompanyID),
		slog.String("transaction_id", tx.ID.String()),
		slog.Int("flags", len(result.Flags)),
	}
	action := "transaction.post"
	meta := map[string]any{"flags": flagTypes(result.Flags)}
	switch result.Outcome {
	case OutcomeParked:
		action = "transaction.park"
		meta["approval_id"] = result.ApprovalID.String()
		s.logger.Info("transaction parked for approval", append(attrs, slog.String("approval_id", result.ApprovalID.String()))...)
	default:
		meta["entry_id"] = result.Entry.ID.String()
		meta["chain_hash"] = result.Entry.ChainHash
		s.logger.Info("transaction posted", append(attrs, slog.String("entry_id", result.Entry.ID.String()))...)
	}
	s.record(ctx, tx.CompanyID, actorID, action, tx.ID, meta)
}

func (s *Service) record(ctx context.Context, companyID, actorID int64, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    ledger.EntityTransaction,
		EntityID:  id.String(),
		Meta:      meta,
		At:        s.now(),
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func flagTypes(flags []ledger.Flag) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		out = append(out, string(f.Type))
	}
	return out
}

func illegal(tx ledger.Transaction, action string) error {
	return &ledger.IllegalStateError{TransactionID: tx.ID, From: string(tx.Status), Action: action}
}
