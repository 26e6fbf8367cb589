package thresholds

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type countingSource struct {
	values map[int64]ledger.Thresholds
	calls  int
	err    error
}

func (s *countingSource) LoadThresholds(_ context.Context, companyID int64) (ledger.Thresholds, bool, error) {
	s.calls++
	if s.err != nil {
		return ledger.Thresholds{}, false, s.err
	}
	t, ok := s.values[companyID]
	if !ok {
		return ledger.DefaultThresholds(), false, nil
	}
	return t, true, nil
}

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestForCompanyCachesSourceValue(t *testing.T) {
	mr, client := newClient(t)
	custom := ledger.DefaultThresholds()
	custom.LargeTransactionThreshold = 250_000
	custom.FlagRoundNumbers = true
	src := &countingSource{values: map[int64]ledger.Thresholds{7: custom}}
	p := NewCachedProvider(client, src, time.Minute, nil)
	ctx := context.Background()

	require.Equal(t, custom, p.ForCompany(ctx, 7))
	require.Equal(t, custom, p.ForCompany(ctx, 7))
	require.Equal(t, 1, src.calls)
	require.True(t, mr.Exists(shared.ThresholdCacheKey(7)))

	mr.FastForward(2 * time.Minute)
	require.Equal(t, custom, p.ForCompany(ctx, 7))
	require.Equal(t, 2, src.calls)
}

func TestInvalidateForcesReload(t *testing.T) {
	_, client := newClient(t)
	src := &countingSource{values: map[int64]ledger.Thresholds{}}
	p := NewCachedProvider(client, src, time.Minute, nil)
	ctx := context.Background()

	require.Equal(t, ledger.DefaultThresholds(), p.ForCompany(ctx, 3))
	updated := ledger.DefaultThresholds()
	updated.BackdatedDaysThreshold = 7
	src.values[3] = updated
	require.Equal(t, 30, p.ForCompany(ctx, 3).BackdatedDaysThreshold)

	require.NoError(t, p.Invalidate(ctx, 3))
	require.Equal(t, 7, p.ForCompany(ctx, 3).BackdatedDaysThreshold)
}

func TestForCompanyFallsBackToDefaults(t *testing.T) {
	_, client := newClient(t)
	src := &countingSource{err: errors.New("db down")}
	p := NewCachedProvider(client, src, time.Minute, nil)
	require.Equal(t, ledger.DefaultThresholds(), p.ForCompany(context.Background(), 7))

	noCache := NewCachedProvider(nil, src, 0, nil)
	require.Equal(t, ledger.DefaultThresholds(), noCache.ForCompany(context.Background(), 7))
	require.NoError(t, noCache.Invalidate(context.Background(), 7))
}

func TestForCompanyNormalizesCorruptValues(t *testing.T) {
	mr, client := newClient(t)
	require.NoError(t, mr.Set(shared.ThresholdCacheKey(5), `{"large_transaction_threshold":0,"backdated_days_threshold":-1}`))
	p := NewCachedProvider(client, &countingSource{}, time.Minute, nil)
	got := p.ForCompany(context.Background(), 5)
	require.Equal(t, ledger.DefaultThresholds().LargeTransactionThreshold, got.LargeTransactionThreshold)
	require.Equal(t, 30, got.BackdatedDaysThreshold)
}
