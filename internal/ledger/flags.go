package ledger

// FlagType tags a detected edge case.
type FlagType string

const (
	FlagLargeAmount          FlagType = "large_amount"
	FlagBelowThreshold       FlagType = "below_threshold"
	FlagRoundNumber          FlagType = "round_number"
	FlagFutureDated          FlagType = "future_dated"
	FlagBackdated            FlagType = "backdated"
	FlagPeriodEnd            FlagType = "period_end"
	FlagContraRevenue        FlagType = "contra_revenue"
	FlagContraExpense        FlagType = "contra_expense"
	FlagEquityAdjustment     FlagType = "equity_adjustment"
	FlagClosingEntry         FlagType = "closing_entry"
	FlagNegativeBalance      FlagType = "negative_balance"
	FlagMissingDescription   FlagType = "missing_description"
	FlagDormantAccount       FlagType = "dormant_account"
	FlagDuplicateTransaction FlagType = "duplicate_transaction"
)

// Severity ranks how urgently a flag should be reviewed.
type Severity string

const (
	SeverityInfo   Severity = "info"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities, higher is more urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Flag is an ephemeral detection result.
type Flag struct {
	Type             FlagType `json:"type"`
	Description      string   `json:"description"`
	RequiresApproval bool     `json:"requires_approval"`
	Severity         Severity `json:"severity,omitempty"`
}

// AnyRequiresApproval ORs RequiresApproval over flags.
func AnyRequiresApproval(flags []Flag) bool {
	for _, f := range flags {
		if f.RequiresApproval {
			return true
		}
	}
	return false
}

// HighestSeverity returns the most urgent severity among flags.
func HighestSeverity(flags []Flag) Severity {
	best := SeverityInfo
	for _, f := range flags {
		if f.Severity.Rank() > best.Rank() {
			best = f.Severity
		}
	}
	return best
}
