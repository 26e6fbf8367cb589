package edgecase

import (
	"fmt"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// AccountTypeDetector flags postings against the normal direction of revenue,
// expense and equity accounts. Liability debits and asset credits are ordinary.
// A closing entry gets an extra informational flag; its equity lines still
// carry the equity_adjustment flag and its approval.
type AccountTypeDetector struct{}

func (AccountTypeDetector) Name() string { return "account_type" }

func (AccountTypeDetector) Detect(in Input) Report {
	var report Report
	if isClosingEntry(in.Lines) {
		report.Add(ledger.Flag{
			Type:        ledger.FlagClosingEntry,
			Description: "Revenue and expense balances are being closed to equity",
			Severity:    ledger.SeverityInfo,
		})
	}
	for _, line := range in.Lines {
		acc := line.Account
		switch {
		case acc.Type == ledger.AccountTypeRevenue && line.Type == ledger.Debit:
			report.Add(ledger.Flag{
				Type:             ledger.FlagContraRevenue,
				Description:      fmt.Sprintf("Revenue account %d %s is debited", acc.Code, acc.Name),
				RequiresApproval: in.Thresholds.RequireApprovalContraEntry,
				Severity:         ledger.SeverityMedium,
			})
		case acc.Type == ledger.AccountTypeExpense && line.Type == ledger.Credit:
			report.Add(ledger.Flag{
				Type:             ledger.FlagContraExpense,
				Description:      fmt.Sprintf("Expense account %d %s is credited", acc.Code, acc.Name),
				RequiresApproval: in.Thresholds.RequireApprovalContraEntry,
				Severity:         ledger.SeverityMedium,
			})
		case acc.Type == ledger.AccountTypeEquity:
			report.Add(ledger.Flag{
				Type:             ledger.FlagEquityAdjustment,
				Description:      fmt.Sprintf("Equity account %d %s is adjusted directly (%s)", acc.Code, acc.Name, line.Type),
				RequiresApproval: in.Thresholds.RequireApprovalEquityAdjustment,
				Severity:         ledger.SeverityHigh,
			})
		}
	}
	return report
}

// isClosingEntry matches entries that zero revenue (debited) or expense
// (credited) balances against equity and touch nothing else.
func isClosingEntry(lines []LineContext) bool {
	var equity, temporary int
	for _, line := range lines {
		switch {
		case line.Account.Type == ledger.AccountTypeEquity:
			equity++
		case line.Account.Type == ledger.AccountTypeRevenue && line.Type == ledger.Debit,
			line.Account.Type == ledger.AccountTypeExpense && line.Type == ledger.Credit:
			temporary++
		default:
			return false
		}
	}
	return equity > 0 && temporary > 0
}
