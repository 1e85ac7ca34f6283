package lookup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xaenox/rc-intel-bot/internal/cache"
	"github.com/xaenox/rc-intel-bot/internal/metrics"
	"github.com/xaenox/rc-intel-bot/internal/report"
	"github.com/xaenox/rc-intel-bot/internal/storage"
	"github.com/xaenox/rc-intel-bot/internal/upstream"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []string
	payload any
	err     error
}

func (f *fakeFetcher) Fetch(_ context.Context, id string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	return f.payload, f.err
}

type fixture struct {
	svc     *Service
	fetcher *fakeFetcher
	store   *storage.MemoryStorage
	metrics *metrics.Metrics
	now     time.Time
}

func newFixture(t *testing.T, fetcher *fakeFetcher) *fixture {
	t.Helper()
	f := &fixture{
		fetcher: fetcher,
		store:   storage.NewMemoryStorage(),
		metrics: metrics.New(prometheus.NewRegistry()),
		now:     time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	c := cache.New(f.store, 24*time.Hour).WithClock(clock)
	f.svc = NewService(c, fetcher, zaptest.NewLogger(t), f.metrics).WithClock(clock)
	return f
}

func TestLookup_FetchesThenServesFromCache(t *testing.T) {
	f := newFixture(t, &fakeFetcher{payload: map[string]any{"Owner Name": "RAHUL", "Model Name": "SWIFT"}})
	ctx := context.Background()

	r, err := f.svc.Lookup(ctx, "mh-12 de 1433")
	require.NoError(t, err)
	assert.Equal(t, "RAHUL", r.Ownership.OwnerName)
	assert.Equal(t, "MH12DE1433", r.Meta.Target)
	assert.False(t, r.Meta.FromCache)

	r, err = f.svc.Lookup(ctx, "MH12DE1433")
	require.NoError(t, err)
	assert.True(t, r.Meta.FromCache)
	assert.Equal(t, 2, r.Meta.CacheHits)

	assert.Equal(t, []string{"MH12DE1433"}, f.fetcher.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheRequestsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LookupsTotal.WithLabelValues("fetched")))
}

func TestLookup_ExpiredEntryRefetches(t *testing.T) {
	f := newFixture(t, &fakeFetcher{payload: map[string]any{"Owner Name": "RAHUL"}})
	ctx := context.Background()

	_, err := f.svc.Lookup(ctx, "MH12DE1433")
	require.NoError(t, err)

	f.now = f.now.Add(25 * time.Hour)
	r, err := f.svc.Lookup(ctx, "MH12DE1433")
	require.NoError(t, err)
	assert.False(t, r.Meta.FromCache)
	assert.Len(t, f.fetcher.calls, 2)

	entry, err := f.store.GetCacheEntry(ctx, "MH12DE1433")
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Hits)
	assert.Equal(t, f.now, entry.CachedAt)
}

func TestLookup_InvalidIdentifier(t *testing.T) {
	f := newFixture(t, &fakeFetcher{})
	_, err := f.svc.Lookup(context.Background(), "HELLO")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
	assert.Empty(t, f.fetcher.calls)
}

func TestLookup_UpstreamFailureNotCached(t *testing.T) {
	f := newFixture(t, &fakeFetcher{err: &upstream.Error{Kind: upstream.KindNotFound, Attempts: 1}})
	ctx := context.Background()

	_, err := f.svc.Lookup(ctx, "MH12DE1433")
	assert.Equal(t, upstream.KindNotFound, upstream.KindOf(err))

	size, err := f.store.CountCacheEntries(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestLookup_ParseFailureNotCached(t *testing.T) {
	f := newFixture(t, &fakeFetcher{payload: []any{"unexpected"}})
	ctx := context.Background()

	_, err := f.svc.Lookup(ctx, "MH12DE1433")
	assert.ErrorIs(t, err, report.ErrInvalidPayload)

	size, err := f.store.CountCacheEntries(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrInvalidIdentifier, "Invalid format"},
		{report.ErrInvalidPayload, "Invalid API response format"},
		{&upstream.Error{Kind: upstream.KindNotFound}, "Vehicle not found. Please check the RC number"},
		{&upstream.Error{Kind: upstream.KindTimeout}, "Request timeout. The server is taking too long to respond"},
		{&upstream.Error{Kind: upstream.KindHTTP, Status: 502}, "API Error: HTTP 502"},
		{&upstream.Error{Kind: upstream.KindRemote, Message: "bad rc"}, "bad rc"},
		{errors.New("boom"), "Unexpected error while fetching vehicle data"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Describe(tt.err))
	}
}
