// Package postgres persists the ledger in PostgreSQL through pgx. Units of work
// run at RepeatableRead; the chain tail is advanced with a compare-and-swap on
// ledger_chain_tails, and serialization failures surface as
// ledger.ErrConcurrencyConflict.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists ledger entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

var _ ledger.TxRepository = (*txRepository)(nil)

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("ledger repository not initialised")
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	return mapConflict(err)
}

func mapConflict(err error) error {
	if err == nil {
		return nil
	}
	if db.IsSerializationFailure(err) || db.IsUniqueViolation(err, "uq_ledger_journal_previous") || db.IsUniqueViolation(err, "uq_ledger_journal_genesis") {
		return fmt.Errorf("%w: %v", ledger.ErrConcurrencyConflict, err)
	}
	return err
}

const accountColumns = `id, company_id, code, name, type, currency, balance_cents, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var a ledger.Account
	var accType string
	err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &accType, &a.Currency, &a.Balance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return ledger.Account{}, err
	}
	a.Type = ledger.AccountType(accType)
	return a, nil
}

func findAccount(ctx context.Context, q querier, id int64) (ledger.Account, error) {
	acc, err := scanAccount(q.QueryRow(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return acc, err
}

// FindByID implements ledger.AccountLookup.
func (r *Repository) FindByID(ctx context.Context, id int64) (ledger.Account, error) {
	return findAccount(ctx, r.pool, id)
}

// FindByCompany implements ledger.AccountLookup.
func (r *Repository) FindByCompany(ctx context.Context, companyID int64) ([]ledger.Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE company_id=$1 ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// CurrentBalance implements ledger.BalanceReader.
func (r *Repository) CurrentBalance(ctx context.Context, accountID int64) (ledger.Cents, error) {
	var bal ledger.Cents
	err := r.pool.QueryRow(ctx, `SELECT balance_cents FROM ledger_accounts WHERE id=$1`, accountID).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ledger.ErrAccountNotFound
	}
	return bal, err
}

// Companies lists companies that have a journal chain.
func (r *Repository) Companies(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT company_id FROM ledger_chain_tails ORDER BY company_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// BalanceChanges returns a company's balance changes in occurrence order.
func (r *Repository) BalanceChanges(ctx context.Context, companyID int64) ([]ledger.BalanceChange, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, account_id, transaction_id, journal_entry_id, line_type, amount_cents,
previous_balance_cents, new_balance_cents, change_cents, is_reversal, occurred_at
FROM ledger_balance_changes WHERE company_id=$1 ORDER BY occurred_at, seq`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.BalanceChange
	for rows.Next() {
		var c ledger.BalanceChange
		var lineType string
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.AccountID, &c.TransactionID, &c.JournalEntryID, &lineType, &c.Amount,
			&c.PreviousBalance, &c.NewBalance, &c.Change, &c.IsReversal, &c.OccurredAt); err != nil {
			return nil, err
		}
		c.LineType = ledger.LineType(lineType)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *txRepository) InsertTransaction(ctx context.Context, t ledger.Transaction) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO ledger_transactions (id, company_id, date, description, reference, status, approval_id,
created_by, created_at, posted_by, posted_at, voided_by, voided_at, void_reason, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		t.ID, t.CompanyID, t.Date, t.Description, t.Reference, string(t.Status), t.ApprovalID,
		t.CreatedBy, t.CreatedAt, t.PostedBy, t.PostedAt, t.VoidedBy, t.VoidedAt, t.VoidReason, t.UpdatedAt)
	if err != nil {
		return err
	}
	return r.insertLines(ctx, t.ID, t.Lines)
}

func (r *txRepository) insertLines(ctx context.Context, id uuid.UUID, lines []ledger.Line) error {
	for i, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO ledger_transaction_lines (transaction_id, line_no, account_id, type, amount_cents, description)
VALUES ($1,$2,$3,$4,$5,$6)`, id, i, line.AccountID, string(line.Type), line.Amount, line.Description); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) UpdateTransaction(ctx context.Context, t ledger.Transaction) error {
	tag, err := r.tx.Exec(ctx, `UPDATE ledger_transactions SET date=$2, description=$3, reference=$4, status=$5, approval_id=$6,
posted_by=$7, posted_at=$8, voided_by=$9, voided_at=$10, void_reason=$11, updated_at=$12 WHERE id=$1`,
		t.ID, t.Date, t.Description, t.Reference, string(t.Status), t.ApprovalID,
		t.PostedBy, t.PostedAt, t.VoidedBy, t.VoidedAt, t.VoidReason, t.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrTransactionNotFound
	}
	if t.Status != ledger.StatusDraft {
		return nil
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM ledger_transaction_lines WHERE transaction_id=$1`, t.ID); err != nil {
		return err
	}
	return r.insertLines(ctx, t.ID, t.Lines)
}

func (r *txRepository) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM ledger_transaction_lines WHERE transaction_id=$1`, id); err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM ledger_transactions WHERE id=$1 AND status='draft'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

func (r *txRepository) GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (ledger.Transaction, error) {
	var t ledger.Transaction
	var status string
	err := r.tx.QueryRow(ctx, `SELECT id, company_id, date, description, reference, status, approval_id, created_by, created_at,
posted_by, posted_at, voided_by, voided_at, void_reason, updated_at
FROM ledger_transactions WHERE id=$1 FOR UPDATE`, id).
		Scan(&t.ID, &t.CompanyID, &t.Date, &t.Description, &t.Reference, &status, &t.ApprovalID, &t.CreatedBy, &t.CreatedAt,
			&t.PostedBy, &t.PostedAt, &t.VoidedBy, &t.VoidedAt, &t.VoidReason, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Transaction{}, ledger.ErrTransactionNotFound
		}
		return ledger.Transaction{}, err
	}
	t.Status = ledger.TransactionStatus(status)
	rows, err := r.tx.Query(ctx, `SELECT account_id, type, amount_cents, description
FROM ledger_transaction_lines WHERE transaction_id=$1 ORDER BY line_no`, id)
	if err != nil {
		return ledger.Transaction{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line ledger.Line
		var lineType string
		if err := rows.Scan(&line.AccountID, &lineType, &line.Amount, &line.Description); err != nil {
			return ledger.Transaction{}, err
		}
		line.Type = ledger.LineType(lineType)
		t.Lines = append(t.Lines, line)
	}
	return t, rows.Err()
}

func (r *txRepository) GetAccountsForUpdate(ctx context.Context, ids []int64) (map[int64]ledger.Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]ledger.Account, len(ids))
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("ledger: account %d: %w", id, ledger.ErrAccountNotFound)
		}
	}
	return out, nil
}

func (r *txRepository) UpdateAccountBalance(ctx context.Context, accountID int64, balance ledger.Cents) error {
	tag, err := r.tx.Exec(ctx, `UPDATE ledger_accounts SET balance_cents=$2, updated_at=NOW() WHERE id=$1`, accountID, balance)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) LatestChainTail(ctx context.Context, companyID int64) (string, bool, error) {
	var tail string
	err := r.tx.QueryRow(ctx, `SELECT tail FROM ledger_chain_tails WHERE company_id=$1`, companyID).Scan(&tail)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return tail, true, nil
}

type bookingJSON struct {
	AccountID   int64  `json:"account_id"`
	Type        string `json:"type"`
	AmountCents int64  `json:"amount_cents"`
}

func encodeBookings(bookings []ledger.Booking) ([]byte, error) {
	out := make([]bookingJSON, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, bookingJSON{AccountID: b.AccountID, Type: string(b.Type), AmountCents: int64(b.AmountCents)})
	}
	return json.Marshal(out)
}

func decodeBookings(raw []byte) ([]ledger.Booking, error) {
	var in []bookingJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := make([]ledger.Booking, 0, len(in))
	for _, b := range in {
		out = append(out, ledger.Booking{AccountID: b.AccountID, Type: ledger.LineType(b.Type), AmountCents: ledger.Cents(b.AmountCents)})
	}
	return out, nil
}

// AppendEntry advances the chain tail with a compare-and-swap, then stores the entry.
func (r *txRepository) AppendEntry(ctx context.Context, entry ledger.JournalEntry) error {
	var tag pgconn.CommandTag
	var err error
	if entry.PreviousHash == nil {
		tag, err = r.tx.Exec(ctx, `INSERT INTO ledger_chain_tails (company_id, tail, entry_id, updated_at)
VALUES ($1,$2,$3,NOW()) ON CONFLICT (company_id) DO NOTHING`, entry.CompanyID, entry.Tail(), entry.ID)
	} else {
		tag, err = r.tx.Exec(ctx, `UPDATE ledger_chain_tails SET tail=$2, entry_id=$3, updated_at=NOW()
WHERE company_id=$1 AND tail=$4`, entry.CompanyID, entry.Tail(), entry.ID, *entry.PreviousHash)
	}
	if err != nil {
		return mapConflict(err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrConcurrencyConflict
	}
	bookings, err := encodeBookings(entry.Bookings)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO ledger_journal_entries (id, company_id, transaction_id, entry_type, bookings, occurred_at,
content_hash, previous_hash, chain_hash) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		entry.ID, entry.CompanyID, entry.TransactionID, string(entry.Type), bookings, entry.OccurredAt,
		entry.ContentHash, entry.PreviousHash, nullString(entry.ChainHash))
	return mapConflict(err)
}

const entryColumns = `id, company_id, transaction_id, entry_type, bookings, occurred_at, content_hash, previous_hash, chain_hash`

func scanEntry(row pgx.Row) (ledger.JournalEntry, error) {
	var e ledger.JournalEntry
	var entryType string
	var raw []byte
	var chain *string
	if err := row.Scan(&e.ID, &e.CompanyID, &e.TransactionID, &entryType, &raw, &e.OccurredAt, &e.ContentHash, &e.PreviousHash, &chain); err != nil {
		return ledger.JournalEntry{}, err
	}
	bookings, err := decodeBookings(raw)
	if err != nil {
		return ledger.JournalEntry{}, fmt.Errorf("ledger: decode bookings of %s: %w", e.ID, err)
	}
	e.Type = ledger.EntryType(entryType)
	e.Bookings = bookings
	e.OccurredAt = e.OccurredAt.UTC()
	if chain != nil {
		e.ChainHash = *chain
	}
	return e, nil
}

func (r *txRepository) ReplayAll(ctx context.Context, companyID int64) ([]ledger.JournalEntry, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+entryColumns+` FROM ledger_journal_entries WHERE company_id=$1 ORDER BY occurred_at, seq`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *txRepository) FindJournalEntry(ctx context.Context, transactionID uuid.UUID, entryType ledger.EntryType) (ledger.JournalEntry, error) {
	e, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_journal_entries
WHERE transaction_id=$1 AND entry_type=$2`, transactionID, string(entryType)))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.JournalEntry{}, ledger.ErrJournalEntryNotFound
	}
	return e, err
}

func (r *txRepository) AppendBalanceChange(ctx context.Context, c ledger.BalanceChange) error {
	if !c.Consistent() {
		return fmt.Errorf("ledger: inconsistent balance change %s", c)
	}
	_, err := r.tx.Exec(ctx, `INSERT INTO ledger_balance_changes (id, company_id, account_id, transaction_id, journal_entry_id, line_type,
amount_cents, previous_balance_cents, new_balance_cents, change_cents, is_reversal, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		c.ID, c.CompanyID, c.AccountID, c.TransactionID, c.JournalEntryID, string(c.LineType),
		c.Amount, c.PreviousBalance, c.NewBalance, c.Change, c.IsReversal, c.OccurredAt)
	return err
}

func (r *txRepository) OpenApproval(ctx context.Context, req ledger.ApprovalRequest) (uuid.UUID, error) {
	reason, err := json.Marshal(req.Reason)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	_, err = r.tx.Exec(ctx, `INSERT INTO ledger_approvals (id, company_id, approval_type, entity_type, entity_id, status, reason,
requested_by, priority, expires_at, created_at) VALUES ($1,$2,$3,$4,$5,'pending',$6,$7,$8,$9,$10)`,
		id, req.CompanyID, string(req.Type), req.EntityType, req.EntityID, reason, req.RequestedBy,
		ledger.PriorityFor(req.Reason), req.ExpiresAt, time.Now().UTC())
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
