package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type accountMap map[int64]Account

func (m accountMap) FindByID(_ context.Context, id int64) (Account, error) {
	acc, ok := m[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acc, nil
}

func (m accountMap) FindByCompany(_ context.Context, companyID int64) ([]Account, error) {
	var out []Account
	for _, acc := range m {
		if acc.CompanyID == companyID {
			out = append(out, acc)
		}
	}
	return out, nil
}

func testAccounts() accountMap {
	return accountMap{
		1: {ID: 1, CompanyID: 7, Code: 1000, Name: "Cash", Type: AccountTypeAsset, IsActive: true},
		2: {ID: 2, CompanyID: 7, Code: 4000, Name: "Sales", Type: AccountTypeRevenue, IsActive: true},
		3: {ID: 3, CompanyID: 7, Code: 5000, Name: "Rent", Type: AccountTypeExpense, IsActive: false},
		4: {ID: 4, CompanyID: 9, Code: 1000, Name: "Other Cash", Type: AccountTypeAsset, IsActive: true},
	}
}

func requireRule(t *testing.T, err error, rule string) *ValidationError {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	require.Equal(t, rule, verr.Rule)
	return verr
}

func TestValidateLinesAcceptsBalancedEntry(t *testing.T) {
	lines := []Line{
		{AccountID: 1, Type: Debit, Amount: 10_000},
		{AccountID: 2, Type: Credit, Amount: 10_000},
	}
	out, err := ValidateLines(context.Background(), 7, lines, testAccounts())
	require.NoError(t, err)
	require.Equal(t, lines, out)
}

func TestValidateLinesRules(t *testing.T) {
	cases := []struct {
		name  string
		lines []Line
		rule  string
	}{
		{"single line", []Line{{AccountID: 1, Type: Debit, Amount: 100}}, RuleTooFewLines},
		{"zero amount", []Line{{AccountID: 1, Type: Debit, Amount: 0}, {AccountID: 2, Type: Credit, Amount: 0}}, RuleNonPositive},
		{"bad type", []Line{{AccountID: 1, Type: "memo", Amount: 100}, {AccountID: 2, Type: Credit, Amount: 100}}, RuleInvalidLineType},
		{"unknown account", []Line{{AccountID: 1, Type: Debit, Amount: 100}, {AccountID: 99, Type: Credit, Amount: 100}}, RuleUnknownAccount},
		{"inactive account", []Line{{AccountID: 3, Type: Debit, Amount: 100}, {AccountID: 2, Type: Credit, Amount: 100}}, RuleInactiveAccount},
		{"foreign account", []Line{{AccountID: 4, Type: Debit, Amount: 100}, {AccountID: 2, Type: Credit, Amount: 100}}, RuleForeignAccount},
		{"duplicate account", []Line{{AccountID: 1, Type: Debit, Amount: 100}, {AccountID: 1, Type: Credit, Amount: 100}}, RuleDuplicateAccount},
		{"unbalanced", []Line{{AccountID: 1, Type: Debit, Amount: 100_000}, {AccountID: 2, Type: Credit, Amount: 90_000}}, RuleUnbalanced},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateLines(context.Background(), 7, tc.lines, testAccounts())
			requireRule(t, err, tc.rule)
		})
	}
}

func TestValidateLinesReportsOffendingLine(t *testing.T) {
	lines := []Line{
		{AccountID: 1, Type: Debit, Amount: 100},
		{AccountID: 3, Type: Credit, Amount: 100},
	}
	_, err := ValidateLines(context.Background(), 7, lines, testAccounts())
	verr := requireRule(t, err, RuleInactiveAccount)
	require.Equal(t, 1, verr.LineIndex)
	require.Equal(t, int64(3), verr.AccountID)
	require.Contains(t, verr.Error(), "Rent")
}

func TestValidateLinesPropagatesLookupFailure(t *testing.T) {
	boom := errors.New("db down")
	_, err := ValidateLines(context.Background(), 7, []Line{
		{AccountID: 1, Type: Debit, Amount: 100},
		{AccountID: 2, Type: Credit, Amount: 100},
	}, failingLookup{err: boom})
	require.ErrorIs(t, err, boom)
	require.False(t, IsValidation(err))
}

type failingLookup struct{ err error }

func (f failingLookup) FindByID(context.Context, int64) (Account, error) { return Account{}, f.err }
func (f failingLookup) FindByCompany(context.Context, int64) ([]Account, error) {
	return nil, f.err
}
