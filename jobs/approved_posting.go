package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/posting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const approvedPostingModule = "ledger.approved_posting"

// ApprovedLister finds approvals that were granted while the posting did not complete.
type ApprovedLister interface {
	ListApprovedUnposted(ctx context.Context, limit int) ([]ledger.Approval, error)
}

// ApprovedPoster commits an approved transaction.
type ApprovedPoster interface {
	ApproveAndPost(ctx context.Context, id uuid.UUID, approverID int64) (posting.PostResult, error)
}

// Idempotency claims work items across workers.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Posted  int
	Skipped int
	Failed  int
}

// ApprovedPostingJob completes postings whose approval decision was committed
// but whose ApproveAndPost never finished.
type ApprovedPostingJob struct {
	Approvals   ApprovedLister
	Poster      ApprovedPoster
	Idempotency Idempotency
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
}

// NewApprovedPostingJob initialises the handler.
func NewApprovedPostingJob(approvals ApprovedLister, poster ApprovedPoster, idem Idempotency, logger *slog.Logger, metrics *jobmetrics.Metrics) *ApprovedPostingJob {
	return &ApprovedPostingJob{Approvals: approvals, Poster: poster, Idempotency: idem, Logger: logger, Metrics: metrics}
}

// Handle runs one sweep.
func (j *ApprovedPostingJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("approved posting: handler not configured")
	}
	var payload ApprovedPostingPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("approved posting: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	tracker := j.Metrics.Track(TaskApprovedPosting)
	_, err := j.Sweep(ctx, payload.Limit)
	return tracker.End(err)
}

// Sweep posts up to limit approved transactions. Failures of individual items are
// logged and released for the next sweep.
func (j *ApprovedPostingJob) Sweep(ctx context.Context, limit int) (SweepResult, error) {
	if j.Approvals == nil || j.Poster == nil {
		return SweepResult{}, errors.New("approved posting: dependencies not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("job", TaskApprovedPosting))

	approvals, err := j.Approvals.ListApprovedUnposted(ctx, limit)
	if err != nil {
		return SweepResult{}, fmt.Errorf("approved posting: list: %w", err)
	}
	var res SweepResult
	for _, a := range approvals {
		key := "approval:" + a.ID.String()
		if j.Idempotency != nil {
			if err := j.Idempotency.CheckAndInsert(ctx, key, approvedPostingModule); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					res.Skipped++
					continue
				}
				return res, err
			}
		}
		var reviewer int64
		if a.ReviewedBy != nil {
			reviewer = *a.ReviewedBy
		}
		_, err := j.Poster.ApproveAndPost(ctx, a.EntityID, reviewer)
		switch {
		case err == nil:
			res.Posted++
			logger.Info("posted approved transaction",
				slog.String("approval_id", a.ID.String()),
				slog.String("transaction_id", a.EntityID.String()),
				slog.Int64("company_id", a.CompanyID),
			)
		case ledger.IsIllegalState(err):
			res.Skipped++
		default:
			res.Failed++
			logger.Warn("approved posting failed",
				slog.String("approval_id", a.ID.String()),
				slog.String("transaction_id", a.EntityID.String()),
				slog.Any("error", err),
			)
			if j.Idempotency != nil {
				if derr := j.Idempotency.Delete(ctx, key); derr != nil {
					logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", derr))
				}
			}
		}
	}
	j.Metrics.AddProcessed(TaskApprovedPosting, "posted", res.Posted)
	j.Metrics.AddProcessed(TaskApprovedPosting, "skipped", res.Skipped)
	j.Metrics.AddProcessed(TaskApprovedPosting, "failed", res.Failed)
	return res, nil
}
