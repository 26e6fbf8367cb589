package ledger

import "fmt"

// Multiplier applies the sign convention:
// debit to ASSET/EXPENSE is +, credit is -;
// debit to LIABILITY/EQUITY/REVENUE is -, credit is +.
func Multiplier(accountType AccountType, lineType LineType) (Cents, error) {
	if !lineType.Valid() {
		return 0, fmt.Errorf("ledger: unknown line type %q", lineType)
	}
	switch accountType {
	case AccountTypeAsset, AccountTypeExpense:
		if lineType == Debit {
			return 1, nil
		}
		return -1, nil
	case AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue:
		if lineType == Debit {
			return -1, nil
		}
		return 1, nil
	}
	return 0, fmt.Errorf("ledger: unknown account type %q", accountType)
}

// Delta is the signed balance change produced by a line.
func Delta(accountType AccountType, lineType LineType, amount Cents) (Cents, error) {
	m, err := Multiplier(accountType, lineType)
	if err != nil {
		return 0, err
	}
	return m * amount, nil
}

// Project returns the balance after applying a line to current.
func Project(current Cents, accountType AccountType, lineType LineType, amount Cents) (Cents, error) {
	d, err := Delta(accountType, lineType, amount)
	if err != nil {
		return current, err
	}
	return current + d, nil
}

// ReplayBalances folds balance changes, ordered by occurrence, into final balances per account.
// It fails on the first change that does not continue the previous balance.
func ReplayBalances(changes []BalanceChange) (map[int64]Cents, error) {
	out := make(map[int64]Cents)
	for _, change := range changes {
		if !change.Consistent() {
			return nil, fmt.Errorf("ledger: balance change %s inconsistent: %s", change.ID, change)
		}
		if prev, seen := out[change.AccountID]; seen && prev != change.PreviousBalance {
			return nil, fmt.Errorf("ledger: balance change %s starts at %s, expected %s", change.ID, change.PreviousBalance, prev)
		}
		out[change.AccountID] = change.NewBalance
	}
	return out, nil
}
