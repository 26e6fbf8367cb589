package edgecase

import (
	"fmt"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// BalanceImpactDetector flags lines that would drive an account balance below zero.
type BalanceImpactDetector struct{}

func (BalanceImpactDetector) Name() string { return "balance_impact" }

func (BalanceImpactDetector) Detect(in Input) Report {
	var report Report
	for _, line := range in.Lines {
		acc := line.Account
		delta, err := ledger.Delta(acc.Type, line.Type, line.Amount)
		if err != nil || delta >= 0 {
			continue
		}
		current := in.BalanceOf(line)
		projected := current + delta
		if projected >= 0 {
			continue
		}
		f := ledger.Flag{
			Type:             ledger.FlagNegativeBalance,
			Description:      fmt.Sprintf("Account %d %s would move from %s to %s", acc.Code, acc.Name, current, projected),
			RequiresApproval: in.Thresholds.RequireApprovalNegativeBalance,
			Severity:         ledger.SeverityHigh,
		}
		if acc.Type == ledger.AccountTypeEquity {
			f.RequiresApproval = false
			f.Severity = ledger.SeverityLow
		}
		report.Add(f)
	}
	return report
}
