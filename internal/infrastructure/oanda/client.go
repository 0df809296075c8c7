package oanda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fx-screener/internal/domain"
	"fx-screener/internal/infrastructure/httpclient"
)

const (
	PracticeBaseURL = "https://api-fxpractice.oanda.com"
	LiveBaseURL     = "https://api-fxtrade.oanda.com"
)

// Options configures the v20 REST client.
type Options struct {
	AccessToken  string
	Environment  string // "practice" or "live"
	BaseURL      string // overrides Environment when set
	CompleteOnly bool
	HTTP         httpclient.ClientOptions
}

// Client reads instrument candles from the OANDA v20 REST API.
type Client struct {
	baseURL      string
	token        string
	completeOnly bool
	httpClient   *httpclient.Client
	logger       zerolog.Logger
}

func NewClient(opts Options, logger zerolog.Logger) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = PracticeBaseURL
		if opts.Environment == "live" {
			baseURL = LiveBaseURL
		}
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        opts.AccessToken,
		completeOnly: opts.CompleteOnly,
		httpClient:   httpclient.NewClient(opts.HTTP),
		logger:       logger.With().Str("component", "oanda_client").Logger(),
	}
}

func (c *Client) Name() string { return "oanda" }

type candlesResponse struct {
	Instrument  string        `json:"instrument"`
	Granularity string        `json:"granularity"`
	Candles     []candleEntry `json:"candles"`
}

type candleEntry struct {
	Complete bool   `json:"complete"`
	Volume   int64  `json:"volume"`
	Time     string `json:"time"`
	Mid      *ohlc  `json:"mid"`
}

type ohlc struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

// Candles returns up to count mid-price candles, oldest first.
func (c *Client) Candles(ctx context.Context, instrument string, granularity domain.Granularity, count int) (domain.Series, error) {
	q := url.Values{}
	q.Set("granularity", granularity.String())
	q.Set("count", strconv.Itoa(count))
	q.Set("price", "M")
	endpoint := fmt.Sprintf("%s/v3/instruments/%s/candles?%s", c.baseURL, url.PathEscape(instrument), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Series{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept-Datetime-Format", "RFC3339")

	c.logger.Debug().Str("instrument", instrument).Str("granularity", granularity.String()).Int("count", count).Msg("Fetching candles")

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return domain.Series{}, fmt.Errorf("oanda candles %s %s: %w", instrument, granularity, err)
	}
	defer resp.Body.Close()

	var data candlesResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.Series{}, fmt.Errorf("parsing JSON: %w", err)
	}

	series := domain.Series{Instrument: instrument, Granularity: granularity}
	for _, entry := range data.Candles {
		if entry.Mid == nil || (c.completeOnly && !entry.Complete) {
			continue
		}
		candle, err := entry.toCandle()
		if err != nil {
			return domain.Series{}, fmt.Errorf("oanda candles %s %s: %w", instrument, granularity, err)
		}
		series.Candles = append(series.Candles, candle)
	}

	if len(series.Candles) == 0 {
		return domain.Series{}, fmt.Errorf("oanda candles %s %s: %w", instrument, granularity, domain.ErrNoCandles)
	}

	c.logger.Debug().Str("instrument", instrument).Int("count", len(series.Candles)).Msg("Fetched candles")
	return series, nil
}

func (e candleEntry) toCandle() (domain.Candle, error) {
	t, err := time.Parse(time.RFC3339Nano, e.Time)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("candle time %q: %w", e.Time, err)
	}
	var prices [4]float64
	for i, raw := range []string{e.Mid.O, e.Mid.H, e.Mid.L, e.Mid.C} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("candle price %q: %w", raw, err)
		}
		prices[i] = v
	}
	return domain.Candle{
		Time:     t.UTC(),
		Open:     prices[0],
		High:     prices[1],
		Low:      prices[2],
		Close:    prices[3],
		Volume:   float64(e.Volume),
		Complete: e.Complete,
	}, nil
}
