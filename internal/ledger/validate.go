package ledger

import (
	"context"
	"errors"
)

// MinLines is the smallest number of lines a transaction may carry.
const MinLines = 2

// ValidateLines enforces the double-entry invariant and account constraints.
// It returns the lines unchanged on success and a *ValidationError otherwise.
func ValidateLines(ctx context.Context, companyID int64, lines []Line, accounts AccountLookup) ([]Line, error) {
	if len(lines) < MinLines {
		return nil, newValidationError(RuleTooFewLines, -1, 0, "transaction requires at least %d lines, got %d", MinLines, len(lines))
	}
	for idx, line := range lines {
		if line.Amount <= 0 {
			return nil, newValidationError(RuleNonPositive, idx, line.AccountID, "line %d amount must be positive, got %s", idx, line.Amount)
		}
		if !line.Type.Valid() {
			return nil, newValidationError(RuleInvalidLineType, idx, line.AccountID, "line %d has unknown type %q", idx, line.Type)
		}
	}
	for idx, line := range lines {
		acc, err := accounts.FindByID(ctx, line.AccountID)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return nil, newValidationError(RuleUnknownAccount, idx, line.AccountID, "line %d references unknown account %d", idx, line.AccountID)
			}
			return nil, err
		}
		if !acc.IsActive {
			return nil, newValidationError(RuleInactiveAccount, idx, acc.ID, "account %d (%d %s) is inactive", acc.ID, acc.Code, acc.Name)
		}
		if companyID != 0 && acc.CompanyID != companyID {
			return nil, newValidationError(RuleForeignAccount, idx, acc.ID, "account %d does not belong to company %d", acc.ID, companyID)
		}
		if !acc.Type.Valid() {
			return nil, newValidationError(RuleUnknownAccount, idx, acc.ID, "account %d has unknown type %q", acc.ID, acc.Type)
		}
	}
	seen := make(map[int64]int, len(lines))
	for idx, line := range lines {
		if first, ok := seen[line.AccountID]; ok {
			return nil, newValidationError(RuleDuplicateAccount, idx, line.AccountID, "account %d appears on lines %d and %d", line.AccountID, first, idx)
		}
		seen[line.AccountID] = idx
	}
	debits, credits := SumLines(lines, Debit), SumLines(lines, Credit)
	if debits != credits {
		return nil, newValidationError(RuleUnbalanced, -1, 0, "debits %s do not equal credits %s", debits, credits)
	}
	return lines, nil
}
