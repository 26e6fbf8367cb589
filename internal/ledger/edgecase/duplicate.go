package edgecase

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// DuplicateWindowDays bounds how far apart two dates may be and still be similar.
const DuplicateWindowDays = 3

// DuplicateDetector flags transactions that look like one already recorded.
type DuplicateDetector struct{}

func (DuplicateDetector) Name() string { return "duplicate_transaction" }

func (DuplicateDetector) Detect(in Input) Report {
	var report Report
	if in.Snapshot.SimilarTransaction == nil {
		return report
	}
	report.Add(ledger.Flag{
		Type:        ledger.FlagDuplicateTransaction,
		Description: fmt.Sprintf("A similar transaction %s with total %s already exists", *in.Snapshot.SimilarTransaction, in.Total()),
		Severity:    ledger.SeverityMedium,
	})
	return report
}

// NormalizeDescription case-folds and collapses whitespace for similarity matching.
func NormalizeDescription(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// SimilarDescriptions reports whether two descriptions match after normalisation.
func SimilarDescriptions(a, b string) bool {
	return NormalizeDescription(a) == NormalizeDescription(b)
}
