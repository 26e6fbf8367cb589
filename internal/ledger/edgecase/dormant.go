package edgecase

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// DormantAccountDetector flags accounts idle for longer than the dormancy window.
type DormantAccountDetector struct{}

func (DormantAccountDetector) Name() string { return "dormant_account" }

func (DormantAccountDetector) Detect(in Input) Report {
	var report Report
	for _, line := range in.Lines {
		last, ok := in.Snapshot.LastActivity[line.AccountID]
		if !ok {
			continue
		}
		idle := daysBetween(last, in.Snapshot.Today)
		if idle <= in.Thresholds.DormantAccountDaysThreshold {
			continue
		}
		report.Add(ledger.Flag{
			Type: ledger.FlagDormantAccount,
			Description: fmt.Sprintf("Account %d %s has had no activity since %s (%d days)",
				line.Account.Code, line.Account.Name, dateOnly(last).Format(time.DateOnly), idle),
			Severity: ledger.SeverityLow,
		})
	}
	return report
}
