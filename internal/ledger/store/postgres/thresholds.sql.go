package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// LoadThresholds returns the stored configuration, or defaults with ok false.
func (r *Repository) LoadThresholds(ctx context.Context, companyID int64) (ledger.Thresholds, bool, error) {
	var t ledger.Thresholds
	err := r.pool.QueryRow(ctx, `SELECT large_transaction_threshold, backdated_days_threshold, allow_future_dating,
require_approval_contra_entry, require_approval_equity_adjustment, require_approval_negative_balance,
flag_round_numbers, flag_period_end, dormant_account_days_threshold
FROM ledger_company_thresholds WHERE company_id=$1`, companyID).
		Scan(&t.LargeTransactionThreshold, &t.BackdatedDaysThreshold, &t.AllowFutureDating,
			&t.RequireApprovalContraEntry, &t.RequireApprovalEquityAdjustment, &t.RequireApprovalNegativeBalance,
			&t.FlagRoundNumbers, &t.FlagPeriodEnd, &t.DormantAccountDaysThreshold)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.DefaultThresholds(), false, nil
	}
	if err != nil {
		return ledger.DefaultThresholds(), false, err
	}
	return t.Normalize(), true, nil
}

// SaveThresholds upserts a company configuration.
func (r *Repository) SaveThresholds(ctx context.Context, companyID int64, t ledger.Thresholds) error {
	t = t.Normalize()
	_, err := r.pool.Exec(ctx, `INSERT INTO ledger_company_thresholds (company_id, large_transaction_threshold, backdated_days_threshold,
allow_future_dating, require_approval_contra_entry, require_approval_equity_adjustment, require_approval_negative_balance,
flag_round_numbers, flag_period_end, dormant_account_days_threshold, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())
ON CONFLICT (company_id) DO UPDATE SET large_transaction_threshold=EXCLUDED.large_transaction_threshold,
backdated_days_threshold=EXCLUDED.backdated_days_threshold, allow_future_dating=EXCLUDED.allow_future_dating,
require_approval_contra_entry=EXCLUDED.require_approval_contra_entry,
require_approval_equity_adjustment=EXCLUDED.require_approval_equity_adjustment,
require_approval_negative_balance=EXCLUDED.require_approval_negative_balance,
flag_round_numbers=EXCLUDED.flag_round_numbers, flag_period_end=EXCLUDED.flag_period_end,
dormant_account_days_threshold=EXCLUDED.dormant_account_days_threshold, updated_at=NOW()`,
		companyID, t.LargeTransactionThreshold, t.BackdatedDaysThreshold, t.AllowFutureDating,
		t.RequireApprovalContraEntry, t.RequireApprovalEquityAdjustment, t.RequireApprovalNegativeBalance,
		t.FlagRoundNumbers, t.FlagPeriodEnd, t.DormantAccountDaysThreshold)
	return err
}
