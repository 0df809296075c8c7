package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"

	"fx-screener/internal/domain"
	"fx-screener/internal/metrics"
	"fx-screener/internal/util"
)

// CandleRepository memoizes multi-timeframe candle fetches for a short TTL.
// A zero TTL disables the cache.
type CandleRepository struct {
	source        domain.CandleSource
	cache         *ttlcache.Cache[string, domain.MultiTimeframe]
	ttl           time.Duration
	granularities []domain.Granularity
	count         int
	location      *time.Location
	logger        zerolog.Logger
}

type CandleRepositoryOptions struct {
	Granularities []domain.Granularity
	Count         int
	TTL           time.Duration
	Location      *time.Location
}

func NewCandleRepository(source domain.CandleSource, opts CandleRepositoryOptions, logger zerolog.Logger) *CandleRepository {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	// Entries expire a fixed TTL after the fetch; reads never extend them.
	cache := ttlcache.New[string, domain.MultiTimeframe](
		ttlcache.WithTTL[string, domain.MultiTimeframe](opts.TTL),
		ttlcache.WithDisableTouchOnHit[string, domain.MultiTimeframe](),
	)
	return &CandleRepository{
		source:        source,
		cache:         cache,
		ttl:           opts.TTL,
		granularities: opts.Granularities,
		count:         opts.Count,
		location:      opts.Location,
		logger:        util.Component(logger, "candle_repository"),
	}
}

// Source returns the name of the underlying provider.
func (r *CandleRepository) Source() string { return r.source.Name() }

func (r *CandleRepository) key(instrument string) string {
	tfs := make([]string, len(r.granularities))
	for i, g := range r.granularities {
		tfs[i] = g.String()
	}
	return instrument + "|" + strings.Join(tfs, ",") + "|" + strconv.Itoa(r.count)
}

// FetchMultiTimeframe returns one series per configured granularity. Any
// failing or empty timeframe fails the whole instrument.
func (r *CandleRepository) FetchMultiTimeframe(ctx context.Context, instrument string) (domain.MultiTimeframe, error) {
	key := r.key(instrument)
	if item := r.cache.Get(key); item != nil {
		metrics.CacheHitsTotal.Inc()
		return item.Value(), nil
	}
	metrics.CacheMissesTotal.Inc()

	data := make(domain.MultiTimeframe, len(r.granularities))
	for _, g := range r.granularities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		series, err := r.source.Candles(ctx, instrument, g, r.count)
		if err != nil {
			metrics.FetchErrorsTotal.WithLabelValues(instrument, g.String()).Inc()
			return nil, fmt.Errorf("fetch %s %s: %w", instrument, g, err)
		}
		if series.Len() == 0 {
			metrics.FetchErrorsTotal.WithLabelValues(instrument, g.String()).Inc()
			return nil, fmt.Errorf("fetch %s %s: %w", instrument, g, domain.ErrNoCandles)
		}

		for i := range series.Candles {
			series.Candles[i].Time = series.Candles[i].Time.In(r.location)
		}
		data[g] = series
	}

	if r.ttl > 0 {
		r.cache.Set(key, data, ttlcache.DefaultTTL)
	}
	r.logger.Debug().Str("instrument", instrument).Int("timeframes", len(data)).Msg("Fetched candles")
	return data, nil
}

// Purge evicts expired cache entries and returns how many remain cached.
func (r *CandleRepository) Purge() int {
	r.cache.DeleteExpired()
	return r.cache.Len()
}
