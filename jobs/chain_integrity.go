package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/journal"
)

// CompanyLister enumerates companies with a journal chain.
type CompanyLister interface {
	Companies(ctx context.Context) ([]int64, error)
}

// ChainVerifier verifies one company chain.
type ChainVerifier interface {
	VerifyIntegrity(ctx context.Context, companyID int64) (journal.Verification, error)
}

// VerificationObserver receives per-company results.
type VerificationObserver interface {
	ObserveVerification(intact bool)
}

// IntegritySummary aggregates one run.
type IntegritySummary struct {
	Companies  int
	Entries    int
	Violations []ledger.IntegrityViolation
}

// Intact reports whether every chain verified.
func (s IntegritySummary) Intact() bool {
	return len(s.Violations) == 0
}

// ChainIntegrityJob re-verifies journal chains on a schedule.
type ChainIntegrityJob struct {
	Companies   CompanyLister
	Verifier    ChainVerifier
	Observer    VerificationObserver
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	Concurrency int
}

// NewChainIntegrityJob initialises the handler.
func NewChainIntegrityJob(companies CompanyLister, verifier ChainVerifier, logger *slog.Logger, metrics *jobmetrics.Metrics, concurrency int) *ChainIntegrityJob {
	return &ChainIntegrityJob{Companies: companies, Verifier: verifier, Logger: logger, Metrics: metrics, Concurrency: concurrency}
}

// Handle verifies the companies named in the payload. A broken chain is reported,
// not retried; only infrastructure errors fail the task.
func (j *ChainIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("chain integrity: handler not configured")
	}
	var payload ChainVerifyPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("chain integrity: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	tracker := j.Metrics.Track(TaskChainVerify)
	_, err := j.Run(ctx, payload.CompanyIDs)
	return tracker.End(err)
}

// Run verifies companyIDs, or every company when none are given.
func (j *ChainIntegrityJob) Run(ctx context.Context, companyIDs []int64) (IntegritySummary, error) {
	if j.Verifier == nil {
		return IntegritySummary{}, errors.New("chain integrity: verifier not configured")
	}
	logger := j.logger()
	start := time.Now()
	if len(companyIDs) == 0 {
		if j.Companies == nil {
			return IntegritySummary{}, errors.New("chain integrity: company lister not configured")
		}
		ids, err := j.Companies.Companies(ctx)
		if err != nil {
			return IntegritySummary{}, fmt.Errorf("chain integrity: list companies: %w", err)
		}
		companyIDs = ids
	}

	var (
		mu      sync.Mutex
		summary = IntegritySummary{Companies: len(companyIDs)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency())
	for _, companyID := range companyIDs {
		g.Go(func() error {
			v, err := j.Verifier.VerifyIntegrity(gctx, companyID)
			var violation *ledger.IntegrityViolation
			switch {
			case errors.As(err, &violation):
				mu.Lock()
				summary.Entries += v.Total
				summary.Violations = append(summary.Violations, *violation)
				mu.Unlock()
				j.Metrics.AddViolation(companyID)
				j.observe(false)
				logger.Error("journal chain broken",
					slog.Int64("company_id", companyID),
					slog.String("entry_id", violation.BrokenAtID.String()),
					slog.String("reason", violation.Reason),
				)
				return nil
			case err != nil:
				return fmt.Errorf("chain integrity: company %d: %w", companyID, err)
			}
			mu.Lock()
			summary.Entries += v.Total
			mu.Unlock()
			j.observe(true)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("chain integrity run failed", slog.Any("error", err))
		return summary, err
	}
	sort.Slice(summary.Violations, func(a, b int) bool {
		return summary.Violations[a].CompanyID < summary.Violations[b].CompanyID
	})
	logger.Info("completed chain integrity run",
		slog.Int("companies", summary.Companies),
		slog.Int("entries", summary.Entries),
		slog.Int("violations", len(summary.Violations)),
		slog.Duration("duration", time.Since(start)),
	)
	return summary, nil
}

func (j *ChainIntegrityJob) observe(intact bool) {
	if j.Observer != nil {
		j.Observer.ObserveVerification(intact)
	}
}

func (j *ChainIntegrityJob) concurrency() int {
	if j.Concurrency <= 0 {
		return 1
	}
	return j.Concurrency
}

func (j *ChainIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskChainVerify))
	}
	return slog.Default().With(slog.String("job", TaskChainVerify))
}
