// Package lookup runs the cache, fetch, parse and store pipeline for one
// identifier.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/rc-intel-bot/internal/cache"
	"github.com/xaenox/rc-intel-bot/internal/metrics"
	"github.com/xaenox/rc-intel-bot/internal/models"
	"github.com/xaenox/rc-intel-bot/internal/rc"
	"github.com/xaenox/rc-intel-bot/internal/report"
	"github.com/xaenox/rc-intel-bot/internal/upstream"
)

var ErrInvalidIdentifier = errors.New("invalid RC number format")

// Fetcher retrieves the raw upstream payload for an identifier.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (any, error)
}

type Service struct {
	cache   *cache.Cache
	fetcher Fetcher
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(c *cache.Cache, fetcher Fetcher, logger *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{
		cache:   c,
		fetcher: fetcher,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// WithClock replaces the clock used for report timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Lookup returns the report for id, from cache when a fresh entry exists.
// Cache read and write failures are logged and otherwise ignored.
func (s *Service) Lookup(ctx context.Context, id string) (*models.IntelReport, error) {
	id = rc.Normalize(id)
	if !rc.IsValid(id) {
		s.metrics.ObserveLookup("invalid")
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}

	cached, ok, err := s.cache.Get(ctx, id)
	if err != nil {
		s.logger.Warn("Error reading cache", zap.String("rc_number", id), zap.Error(err))
	}
	s.metrics.ObserveCache(ok)
	if ok {
		s.logger.Info("Cache hit", zap.String("rc_number", id), zap.Int("hits", cached.Meta.CacheHits))
		s.metrics.ObserveLookup("cached")
		return cached, nil
	}

	raw, err := s.fetcher.Fetch(ctx, id)
	if err != nil {
		s.metrics.ObserveLookup(string(upstream.KindOf(err)))
		return nil, err
	}

	r, err := report.Parse(raw, id, s.now())
	if err != nil {
		s.metrics.ObserveLookup("parse_error")
		return nil, err
	}

	if err := s.cache.Put(ctx, id, r); err != nil {
		s.logger.Warn("Error caching report", zap.String("rc_number", id), zap.Error(err))
	}
	s.metrics.ObserveLookup("fetched")
	return r, nil
}

// Describe maps a lookup error to the message shown to the user and stored
// in the query log.
func Describe(err error) string {
	var ue *upstream.Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidIdentifier):
		return "Invalid format"
	case errors.Is(err, report.ErrInvalidPayload):
		return "Invalid API response format"
	case errors.As(err, &ue):
		switch ue.Kind {
		case upstream.KindNotFound:
			return "Vehicle not found. Please check the RC number"
		case upstream.KindRateLimited:
			return "Rate limit exceeded. Please try again later"
		case upstream.KindTimeout:
			return "Request timeout. The server is taking too long to respond"
		case upstream.KindConnection:
			return "Connection error. Please try again later"
		case upstream.KindHTTP:
			return fmt.Sprintf("API Error: HTTP %d", ue.Status)
		case upstream.KindRemote:
			return ue.Message
		}
	}
	return "Unexpected error while fetching vehicle data"
}
