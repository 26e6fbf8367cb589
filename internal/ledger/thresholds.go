package ledger

// Thresholds is the per-company edge-case configuration. Values are copied, never shared.
type Thresholds struct {
	LargeTransactionThreshold       Cents `json:"large_transaction_threshold"`
	BackdatedDaysThreshold          int   `json:"backdated_days_threshold"`
	AllowFutureDating               bool  `json:"allow_future_dating"`
	RequireApprovalContraEntry      bool  `json:"require_approval_contra_entry"`
	RequireApprovalEquityAdjustment bool  `json:"require_approval_equity_adjustment"`
	RequireApprovalNegativeBalance  bool  `json:"require_approval_negative_balance"`
	FlagRoundNumbers                bool  `json:"flag_round_numbers"`
	FlagPeriodEnd                   bool  `json:"flag_period_end"`
	DormantAccountDaysThreshold     int   `json:"dormant_account_days_threshold"`
}

// DefaultThresholds applies to companies without a stored configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LargeTransactionThreshold:       1_000_000,
		BackdatedDaysThreshold:          30,
		AllowFutureDating:               false,
		RequireApprovalContraEntry:      true,
		RequireApprovalEquityAdjustment: true,
		RequireApprovalNegativeBalance:  true,
		FlagRoundNumbers:                false,
		FlagPeriodEnd:                   false,
		DormantAccountDaysThreshold:     90,
	}
}

// Normalize replaces non-positive numeric settings with defaults.
func (t Thresholds) Normalize() Thresholds {
	def := DefaultThresholds()
	if t.LargeTransactionThreshold <= 0 {
		t.LargeTransactionThreshold = def.LargeTransactionThreshold
	}
	if t.BackdatedDaysThreshold <= 0 {
		t.BackdatedDaysThreshold = def.BackdatedDaysThreshold
	}
	if t.DormantAccountDaysThreshold <= 0 {
		t.DormantAccountDaysThreshold = def.DormantAccountDaysThreshold
	}
	return t
}
