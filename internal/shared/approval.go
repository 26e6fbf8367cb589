package shared

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ApprovalAction enumerates approval history actions.
type ApprovalAction string

const (
	// ApprovalSubmit marks a submit action.
	ApprovalSubmit ApprovalAction = "SUBMIT"
	// ApprovalApprove marks an approve action.
	ApprovalApprove ApprovalAction = "APPROVE"
	// ApprovalReject marks a reject action.
	ApprovalReject ApprovalAction = "REJECT"
)

// ApprovalLog represents a single approval history record.
type ApprovalLog struct {
	ID         int64
	ApprovalID uuid.UUID
	EntityID   uuid.UUID
	ActorID    int64
	Action     ApprovalAction
	Note       string
	At         time.Time
}

// ApprovalRecorder persists approval history.
type ApprovalRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewApprovalRecorder constructs ApprovalRecorder.
func NewApprovalRecorder(pool *pgxpool.Pool, logger *slog.Logger) *ApprovalRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ApprovalRecorder{pool: pool, logger: logger}
}

// Record writes an approval history entry.
func (r *ApprovalRecorder) Record(ctx context.Context, log ApprovalLog) error {
	if r == nil {
		return errors.New("approval recorder not initialised")
	}
	if log.ApprovalID == uuid.Nil {
		return errors.New("approval id required")
	}
	if log.ActorID == 0 {
		return errors.New("approval actor required")
	}
	if log.Action == "" {
		return errors.New("approval action required")
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO ledger_approval_history (approval_id, entity_id, actor_id, action, note, at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, log.ApprovalID, log.EntityID, log.ActorID, string(log.Action), log.Note, optionalTime(log.At))
	if err != nil {
		r.logger.Error("record approval", slog.String("approval_id", log.ApprovalID.String()), slog.Any("error", err))
		return err
	}
	return nil
}

// List returns the history of an approval in chronological order.
func (r *ApprovalRecorder) List(ctx context.Context, approvalID uuid.UUID) ([]ApprovalLog, error) {
	if r == nil {
		return nil, errors.New("approval recorder not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, approval_id, entity_id, actor_id, action, note, at
FROM ledger_approval_history WHERE approval_id=$1 ORDER BY at ASC`, approvalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []ApprovalLog
	for rows.Next() {
		var l ApprovalLog
		var action string
		if err := rows.Scan(&l.ID, &l.ApprovalID, &l.EntityID, &l.ActorID, &action, &l.Note, &l.At); err != nil {
			return nil, err
		}
		l.Action = ApprovalAction(action)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
