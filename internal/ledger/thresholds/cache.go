// Package thresholds serves per-company edge-case configuration through a Redis
// read-through cache.
package thresholds

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// DefaultTTL bounds how long a cached configuration is served.
const DefaultTTL = 10 * time.Minute

// Source loads stored thresholds; ok is false when the company has none.
type Source interface {
	LoadThresholds(ctx context.Context, companyID int64) (ledger.Thresholds, bool, error)
}

// CachedProvider implements ledger.ThresholdProvider.
type CachedProvider struct {
	client *redis.Client
	source Source
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

var _ ledger.ThresholdProvider = (*CachedProvider)(nil)

// NewCachedProvider wires the cache. A nil client disables caching.
func NewCachedProvider(client *redis.Client, source Source, ttl time.Duration, logger *slog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{client: client, source: source, ttl: ttl, logger: logger}
}

// ForCompany returns the company configuration. Lookup failures degrade to defaults.
func (p *CachedProvider) ForCompany(ctx context.Context, companyID int64) ledger.Thresholds {
	t, err := p.fetch(ctx, companyID)
	if err != nil {
		p.logger.Warn("thresholds lookup failed, using defaults",
			slog.Int64("company_id", companyID),
			slog.Any("error", err),
		)
		return ledger.DefaultThresholds()
	}
	return t.Normalize()
}

// Invalidate drops the cached configuration of a company.
func (p *CachedProvider) Invalidate(ctx context.Context, companyID int64) error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Del(ctx, shared.ThresholdCacheKey(companyID)).Err()
}

func (p *CachedProvider) fetch(ctx context.Context, companyID int64) (ledger.Thresholds, error) {
	if p == nil || p.source == nil {
		return ledger.DefaultThresholds(), errors.New("thresholds: source not configured")
	}
	if p.client == nil {
		t, _, err := p.source.LoadThresholds(ctx, companyID)
		return t, err
	}
	key := shared.ThresholdCacheKey(companyID)
	payload, err := p.client.Get(ctx, key).Bytes()
	if err == nil {
		var t ledger.Thresholds
		if err := json.Unmarshal(payload, &t); err == nil {
			return t, nil
		}
	} else if err != redis.Nil {
		p.logger.Warn("thresholds cache read failed", slog.Int64("company_id", companyID), slog.Any("error", err))
		t, _, err := p.source.LoadThresholds(ctx, companyID)
		return t, err
	}

	v, err, _ := p.group.Do(strconv.FormatInt(companyID, 10), func() (interface{}, error) {
		t, _, err := p.source.LoadThresholds(ctx, companyID)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		if err := p.client.Set(ctx, key, raw, p.ttl).Err(); err != nil {
			p.logger.Warn("thresholds cache write failed", slog.Int64("company_id", companyID), slog.Any("error", err))
		}
		return t, nil
	})
	if err != nil {
		return ledger.DefaultThresholds(), err
	}
	return v.(ledger.Thresholds), nil
}
