package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cents is a signed amount in the smallest currency unit.
type Cents int64

// String renders the amount with two decimal places.
func (c Cents) String() string {
	return decimal.New(int64(c), -2).StringFixed(2)
}

// Abs returns the absolute value.
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// CodeRange returns the inclusive chart-of-accounts code range for the type.
func (t AccountType) CodeRange() (int, int) {
	switch t {
	case AccountTypeAsset:
		return 1000, 1999
	case AccountTypeLiability:
		return 2000, 2999
	case AccountTypeEquity:
		return 3000, 3999
	case AccountTypeRevenue:
		return 4000, 4999
	case AccountTypeExpense:
		return 5000, 5999
	}
	return 0, -1
}

// ValidCode reports whether code falls inside the type's range.
func (t AccountType) ValidCode(code int) bool {
	lo, hi := t.CodeRange()
	return code >= lo && code <= hi
}

// NormalBalance is the direction in which the account type increases.
func (t AccountType) NormalBalance() LineType {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return Debit
	default:
		return Credit
	}
}

// LineType indicates whether a line is a debit or a credit.
type LineType string

const (
	Debit  LineType = "debit"
	Credit LineType = "credit"
)

// Valid reports whether the line type is known.
func (l LineType) Valid() bool {
	return l == Debit || l == Credit
}

// Opposite swaps debit and credit.
func (l LineType) Opposite() LineType {
	if l == Debit {
		return Credit
	}
	return Debit
}

// Account models a chart of accounts node with its running balance.
type Account struct {
	ID        int64
	CompanyID int64
	Code      int
	Name      string
	Type      AccountType
	Currency  string
	Balance   Cents
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalBalance derives the account's direction from its type.
func (a Account) NormalBalance() LineType {
	return a.Type.NormalBalance()
}

// Line is a single proposed debit or credit.
type Line struct {
	AccountID   int64
	Type        LineType
	Amount      Cents
	Description string
}

// TransactionStatus enumerates lifecycle states.
type TransactionStatus string

const (
	StatusDraft           TransactionStatus = "draft"
	StatusPendingApproval TransactionStatus = "pending_approval"
	StatusPosted          TransactionStatus = "posted"
	StatusVoided          TransactionStatus = "voided"
	StatusRejected        TransactionStatus = "rejected"
)

// Transaction groups balanced lines for a company.
type Transaction struct {
	ID          uuid.UUID
	CompanyID   int64
	Date        time.Time
	Description string
	Reference   string
	Status      TransactionStatus
	ApprovalID  *uuid.UUID
	CreatedBy   int64
	CreatedAt   time.Time
	PostedBy    *int64
	PostedAt    *time.Time
	VoidedBy    *int64
	VoidedAt    *time.Time
	VoidReason  string
	UpdatedAt   time.Time
	Lines       []Line
}

// TotalDebits sums debit lines.
func (t Transaction) TotalDebits() Cents {
	return SumLines(t.Lines, Debit)
}

// TotalCredits sums credit lines.
func (t Transaction) TotalCredits() Cents {
	return SumLines(t.Lines, Credit)
}

// IsEditable reports whether lines may still change.
func (t Transaction) IsEditable() bool {
	return t.Status == StatusDraft
}

// SumLines totals the lines of the given type.
func SumLines(lines []Line, lineType LineType) Cents {
	var total Cents
	for _, line := range lines {
		if line.Type == lineType {
			total += line.Amount
		}
	}
	return total
}

// BalanceChange is the per-account audit record of a committed delta.
type BalanceChange struct {
	ID              uuid.UUID
	CompanyID       int64
	AccountID       int64
	TransactionID   uuid.UUID
	JournalEntryID  uuid.UUID
	LineType        LineType
	Amount          Cents
	PreviousBalance Cents
	NewBalance      Cents
	Change          Cents
	IsReversal      bool
	OccurredAt      time.Time
}

// Consistent reports whether new = previous + change.
func (c BalanceChange) Consistent() bool {
	return c.NewBalance == c.PreviousBalance+c.Change
}

func (c BalanceChange) String() string {
	return fmt.Sprintf("account %d: %s -> %s (%s)", c.AccountID, c.PreviousBalance, c.NewBalance, c.Change)
}
