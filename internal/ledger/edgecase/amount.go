package edgecase

import (
	"fmt"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// RoundUnit is the amount a total must be a multiple of to count as round.
const RoundUnit ledger.Cents = 10_000

// AmountDetector flags large, near-threshold and round totals.
type AmountDetector struct{}

func (AmountDetector) Name() string { return "amount" }

func (AmountDetector) Detect(in Input) Report {
	var report Report
	total := in.Total()
	limit := in.Thresholds.LargeTransactionThreshold
	switch {
	case total >= limit:
		report.Add(ledger.Flag{
			Type:             ledger.FlagLargeAmount,
			Description:      fmt.Sprintf("Transaction total %s meets the large transaction threshold of %s", total, limit),
			RequiresApproval: true,
			Severity:         ledger.SeverityHigh,
		})
	case 10*total >= 9*limit:
		report.Add(ledger.Flag{
			Type:        ledger.FlagBelowThreshold,
			Description: fmt.Sprintf("Transaction total %s is within 10%% of the large transaction threshold of %s", total, limit),
			Severity:    ledger.SeverityLow,
		})
	}
	if in.Thresholds.FlagRoundNumbers && total > 0 && total%RoundUnit == 0 {
		report.Add(ledger.Flag{
			Type:        ledger.FlagRoundNumber,
			Description: fmt.Sprintf("Transaction total %s is a round number", total),
			Severity:    ledger.SeverityInfo,
		})
	}
	return report
}
