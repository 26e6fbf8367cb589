package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/approvals"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/posting"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/store/postgres"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/thresholds"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/lock"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// LedgerDeps are the infrastructure handles the ledger services run on.
type LedgerDeps struct {
	Config  *Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
}

// Ledger bundles the wired ledger services.
type Ledger struct {
	Repo        *postgres.Repository
	Thresholds  *thresholds.CachedProvider
	Posting     *posting.Service
	Approvals   *approvals.Service
	Idempotency *shared.IdempotencyStore
}

// NewLedger wires the Postgres store, the threshold cache and the posting services.
func NewLedger(deps LedgerDeps) (*Ledger, error) {
	cfg := deps.Config
	if cfg == nil {
		cfg = &Config{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	repo := postgres.NewRepository(deps.Pool)
	provider := thresholds.NewCachedProvider(deps.Redis, repo, cfg.ThresholdCacheTTL, logger)

	svc := posting.NewService(posting.Deps{
		Repo:       repo,
		Accounts:   repo,
		Balances:   repo,
		History:    repo,
		Thresholds: provider,
		Audit:      shared.NewAuditLogger(deps.Pool),
		Logger:     logger,
	})
	if deps.Metrics != nil {
		svc.WithMetrics(deps.Metrics)
	}
	if cfg.ChainLockEnabled && deps.Redis != nil {
		locker, err := lock.NewRedisLocker(deps.Redis, lock.Options{Expiry: cfg.ChainLockTTL}, logger)
		if err != nil {
			return nil, err
		}
		svc.WithLocker(locker)
	}

	approvalSvc := approvals.NewService(repo, svc, shared.NewApprovalRecorder(deps.Pool, logger), logger)
	return &Ledger{
		Repo:        repo,
		Thresholds:  provider,
		Posting:     svc,
		Approvals:   approvalSvc,
		Idempotency: shared.NewIdempotencyStore(deps.Pool),
	}, nil
}
