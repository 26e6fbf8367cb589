package edgecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// MinDescriptionLength is the shortest acceptable trimmed description.
const MinDescriptionLength = 5

// DocumentationDetector flags missing or too-short descriptions.
type DocumentationDetector struct{}

func (DocumentationDetector) Name() string { return "documentation" }

func (DocumentationDetector) Detect(in Input) Report {
	var report Report
	n := utf8.RuneCountInString(strings.TrimSpace(in.Description))
	if n >= MinDescriptionLength {
		return report
	}
	msg := "Transaction has no description"
	if n > 0 {
		msg = fmt.Sprintf("Transaction description is shorter than %d characters", MinDescriptionLength)
	}
	report.Add(ledger.Flag{
		Type:        ledger.FlagMissingDescription,
		Description: msg,
		Severity:    ledger.SeverityLow,
	})
	return report
}
