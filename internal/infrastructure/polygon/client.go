package polygon

import (
	"context"
	"fmt"
	"strings"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rs/zerolog"

	"fx-screener/internal/domain"
)

type span struct {
	multiplier int
	timespan   models.Timespan
}

var spans = map[domain.Granularity]span{
	domain.GranularityW:   {1, models.Week},
	domain.GranularityD:   {1, models.Day},
	domain.GranularityH4:  {4, models.Hour},
	domain.GranularityH1:  {1, models.Hour},
	domain.GranularityM30: {30, models.Minute},
	domain.GranularityM15: {15, models.Minute},
}

type aggsFetcher func(ctx context.Context, params *models.ListAggsParams) ([]models.Agg, error)

// Client reads forex aggregates from Polygon.io.
type Client struct {
	fetch        aggsFetcher
	now          func() time.Time
	completeOnly bool
	logger       zerolog.Logger
}

// Options configures the Polygon client.
type Options struct {
	APIKey       string
	CompleteOnly bool // drop the bar still forming
}

func NewClient(opts Options, logger zerolog.Logger) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("apiKey is required")
	}
	rest := polygon.New(opts.APIKey)
	fetch := func(ctx context.Context, params *models.ListAggsParams) ([]models.Agg, error) {
		var out []models.Agg
		iter := rest.ListAggs(ctx, params)
		for iter.Next() {
			out = append(out, iter.Item())
		}
		if iter.Err() != nil {
			return nil, fmt.Errorf("error iterating polygon aggregates: %w", iter.Err())
		}
		return out, nil
	}
	c := newClient(fetch, time.Now, logger)
	c.completeOnly = opts.CompleteOnly
	return c, nil
}

func newClient(fetch aggsFetcher, now func() time.Time, logger zerolog.Logger) *Client {
	return &Client{
		fetch:  fetch,
		now:    now,
		logger: logger.With().Str("component", "polygon_client").Logger(),
	}
}

func (c *Client) Name() string { return "polygon" }

// Ticker converts EUR_USD into Polygon's currency ticker C:EURUSD.
func Ticker(instrument string) string {
	return "C:" + strings.ReplaceAll(strings.ToUpper(instrument), "_", "")
}

// Candles returns the latest count aggregates, oldest first.
func (c *Client) Candles(ctx context.Context, instrument string, granularity domain.Granularity, count int) (domain.Series, error) {
	s, ok := spans[granularity]
	if !ok {
		return domain.Series{}, fmt.Errorf("polygon: unsupported granularity %s", granularity)
	}

	// Markets close on weekends, so look back twice the nominal window.
	to := c.now()
	from := to.Add(-2*time.Duration(count)*granularity.Duration() - 72*time.Hour)

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     Ticker(instrument),
		Multiplier: s.multiplier,
		Timespan:   s.timespan,
		From:       models.Millis(from),
		To:         models.Millis(to),
	}.WithOrder(models.Desc).WithLimit(count)

	aggs, err := c.fetch(ctx, params)
	if err != nil {
		return domain.Series{}, fmt.Errorf("polygon aggs %s %s: %w", instrument, granularity, err)
	}
	if len(aggs) == 0 {
		return domain.Series{}, fmt.Errorf("polygon aggs %s %s: %w", instrument, granularity, domain.ErrNoCandles)
	}
	if len(aggs) > count {
		aggs = aggs[:count]
	}

	series := domain.Series{Instrument: instrument, Granularity: granularity, Candles: make([]domain.Candle, 0, len(aggs))}
	// aggs arrive newest first
	for i := len(aggs) - 1; i >= 0; i-- {
		agg := aggs[i]
		open := time.Time(agg.Timestamp).UTC()
		complete := granularity.Closed(open, to)
		if c.completeOnly && !complete {
			continue
		}
		series.Candles = append(series.Candles, domain.Candle{
			Time:     open,
			Open:     agg.Open,
			High:     agg.High,
			Low:      agg.Low,
			Close:    agg.Close,
			Volume:   agg.Volume,
			Complete: complete,
		})
	}
	if len(series.Candles) == 0 {
		return domain.Series{}, fmt.Errorf("polygon aggs %s %s: %w", instrument, granularity, domain.ErrNoCandles)
	}

	c.logger.Debug().Str("instrument", instrument).Int("count", len(series.Candles)).Msg("Fetched aggregates")
	return series, nil
}
