package edgecase

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// PeriodEndWindowDays is how many trailing days of a month count as period end.
const PeriodEndWindowDays = 3

// PeriodKind names the closing period a date falls into.
type PeriodKind string

const (
	PeriodNone    PeriodKind = ""
	PeriodMonth   PeriodKind = "month"
	PeriodQuarter PeriodKind = "quarter"
	PeriodYear    PeriodKind = "year"
)

// PeriodEndKind returns the widest period whose last days contain date.
func PeriodEndKind(date time.Time) PeriodKind {
	d := dateOnly(date)
	last := time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if d.Day() <= last-PeriodEndWindowDays {
		return PeriodNone
	}
	switch d.Month() {
	case time.December:
		return PeriodYear
	case time.March, time.June, time.September:
		return PeriodQuarter
	}
	return PeriodMonth
}

func periodEndFlag(date time.Time) (ledger.Flag, bool) {
	kind := PeriodEndKind(date)
	if kind == PeriodNone {
		return ledger.Flag{}, false
	}
	return ledger.Flag{
		Type:        ledger.FlagPeriodEnd,
		Description: fmt.Sprintf("Transaction dated %s falls in the last %d days of the %s", dateOnly(date).Format(time.DateOnly), PeriodEndWindowDays, kind),
		Severity:    ledger.SeverityInfo,
	}, true
}

// TimingDetector flags future, backdated and period-end dates.
type TimingDetector struct{}

func (TimingDetector) Name() string { return "timing" }

func (TimingDetector) Detect(in Input) Report {
	var report Report
	today := in.Snapshot.Today
	date := dateOnly(in.Date)
	if date.After(today) && !in.Thresholds.AllowFutureDating {
		report.Add(ledger.Flag{
			Type:             ledger.FlagFutureDated,
			Description:      fmt.Sprintf("Transaction is dated %s, after today %s", date.Format(time.DateOnly), today.Format(time.DateOnly)),
			RequiresApproval: true,
			Severity:         ledger.SeverityMedium,
		})
	}
	if age := daysBetween(date, today); age > in.Thresholds.BackdatedDaysThreshold {
		report.Add(ledger.Flag{
			Type:             ledger.FlagBackdated,
			Description:      fmt.Sprintf("Transaction is backdated %d days, beyond the %d day window", age, in.Thresholds.BackdatedDaysThreshold),
			RequiresApproval: true,
			Severity:         ledger.SeverityMedium,
		})
	}
	if in.Thresholds.FlagPeriodEnd {
		if f, ok := periodEndFlag(in.Date); ok {
			report.Add(f)
		}
	}
	return report
}

// PeriodEndDetector flags dates near a month, quarter or year close.
// It emits the same flag as TimingDetector, so running both yields one flag.
type PeriodEndDetector struct{}

func (PeriodEndDetector) Name() string { return "period_end" }

func (PeriodEndDetector) Detect(in Input) Report {
	var report Report
	if !in.Thresholds.FlagPeriodEnd {
		return report
	}
	if f, ok := periodEndFlag(in.Date); ok {
		report.Add(f)
	}
	return report
}
