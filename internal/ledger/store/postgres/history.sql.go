package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/edgecase"
)

// LastActivityDate implements ledger.ActivityHistory.
func (r *Repository) LastActivityDate(ctx context.Context, accountID int64) (*time.Time, error) {
	var last *time.Time
	if err := r.pool.QueryRow(ctx, `SELECT MAX(occurred_at) FROM ledger_balance_changes WHERE account_id=$1`, accountID).Scan(&last); err != nil {
		return nil, err
	}
	return last, nil
}

// FindSimilarTransaction narrows candidates by amount and date in SQL and compares
// descriptions after normalisation.
func (r *Repository) FindSimilarTransaction(ctx context.Context, q ledger.SimilarQuery) (*uuid.UUID, error) {
	window := time.Duration(edgecase.DuplicateWindowDays) * 24 * time.Hour
	rows, err := r.pool.Query(ctx, `SELECT t.id, t.description FROM ledger_transactions t
WHERE t.company_id=$1 AND t.id<>$2 AND t.status IN ('posted','pending_approval')
AND t.date BETWEEN $3 AND $4
AND (SELECT COALESCE(SUM(l.amount_cents),0) FROM ledger_transaction_lines l WHERE l.transaction_id=t.id AND l.type='debit') = $5
ORDER BY t.created_at, t.id`, q.CompanyID, q.Exclude, q.Date.Add(-window), q.Date.Add(window), q.Amount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var description string
		if err := rows.Scan(&id, &description); err != nil {
			return nil, err
		}
		if edgecase.SimilarDescriptions(description, q.Description) {
			return &id, nil
		}
	}
	return nil, rows.Err()
}
