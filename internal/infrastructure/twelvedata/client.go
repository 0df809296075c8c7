package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fx-screener/internal/domain"
	"fx-screener/internal/infrastructure/httpclient"
)

const DefaultBaseURL = "https://api.twelvedata.com"

var intervals = map[domain.Granularity]string{
	domain.GranularityW:   "1week",
	domain.GranularityD:   "1day",
	domain.GranularityH4:  "4h",
	domain.GranularityH1:  "1h",
	domain.GranularityM30: "30min",
	domain.GranularityM15: "15min",
}

// Client is the Twelve Data time_series client, used as the public feed fallback.
type Client struct {
	apiKey       string
	baseURL      string
	completeOnly bool
	now          func() time.Time
	httpClient   *httpclient.Client
	logger       zerolog.Logger
}

// ClientOptions holds options for creating a new Twelve Data client
type ClientOptions struct {
	APIKey       string
	BaseURL      string
	CompleteOnly bool // drop the bar still forming
	HTTP         httpclient.ClientOptions
}

func NewClient(options ClientOptions, logger zerolog.Logger) *Client {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:       options.APIKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		completeOnly: options.CompleteOnly,
		now:          time.Now,
		httpClient:   httpclient.NewClient(options.HTTP),
		logger:       logger.With().Str("component", "twelvedata_client").Logger(),
	}
}

func (c *Client) Name() string { return "twelvedata" }

type timeSeriesResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Values  []value `json:"values"`
}

type value struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

// Symbol converts broker notation (EUR_USD) to Twelve Data notation (EUR/USD).
func Symbol(instrument string) string {
	return strings.ReplaceAll(instrument, "_", "/")
}

// Candles fetches candle data from the Twelve Data API, oldest first.
func (c *Client) Candles(ctx context.Context, instrument string, granularity domain.Granularity, count int) (domain.Series, error) {
	interval, ok := intervals[granularity]
	if !ok {
		return domain.Series{}, fmt.Errorf("twelvedata: unsupported granularity %s", granularity)
	}

	q := url.Values{}
	q.Set("symbol", Symbol(instrument))
	q.Set("interval", interval)
	q.Set("outputsize", strconv.Itoa(count))
	q.Set("timezone", "UTC")
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/time_series?"+q.Encode(), nil)
	if err != nil {
		return domain.Series{}, fmt.Errorf("creating request: %w", err)
	}

	c.logger.Debug().Str("instrument", instrument).Str("interval", interval).Msg("Fetching candles")

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return domain.Series{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Series{}, fmt.Errorf("reading response body: %w", err)
	}

	var data timeSeriesResponse
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Error().Err(err).Str("response", string(body)).Msg("Error parsing JSON")
		return domain.Series{}, fmt.Errorf("parsing JSON: %w", err)
	}
	if data.Status == "error" {
		c.logger.Error().Str("response", string(body)).Msg("Twelve Data API error")
		return domain.Series{}, fmt.Errorf("Twelve Data API error: %s", data.Message)
	}
	if len(data.Values) == 0 {
		return domain.Series{}, fmt.Errorf("twelvedata %s %s: %w", instrument, granularity, domain.ErrNoCandles)
	}

	// Sort candles by datetime (oldest first for proper calculations)
	sort.Slice(data.Values, func(i, j int) bool {
		return data.Values[i].Datetime < data.Values[j].Datetime
	})

	now := c.now()
	series := domain.Series{Instrument: instrument, Granularity: granularity}
	for _, v := range data.Values {
		candle, err := v.toCandle()
		if err != nil {
			return domain.Series{}, fmt.Errorf("twelvedata %s %s: %w", instrument, granularity, err)
		}
		candle.Complete = granularity.Closed(candle.Time, now)
		if c.completeOnly && !candle.Complete {
			continue
		}
		series.Candles = append(series.Candles, candle)
	}
	if len(series.Candles) == 0 {
		return domain.Series{}, fmt.Errorf("twelvedata %s %s: %w", instrument, granularity, domain.ErrNoCandles)
	}

	c.logger.Debug().Int("count", len(series.Candles)).Msg("Fetched candles")
	return series, nil
}

func (v value) toCandle() (domain.Candle, error) {
	t, err := parseDatetime(v.Datetime)
	if err != nil {
		return domain.Candle{}, err
	}
	var prices [4]float64
	for i, raw := range []string{v.Open, v.High, v.Low, v.Close} {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("candle price %q: %w", raw, err)
		}
		prices[i] = f
	}
	volume, _ := strconv.ParseFloat(v.Volume, 64)
	return domain.Candle{
		Time:   t,
		Open:   prices[0],
		High:   prices[1],
		Low:    prices[2],
		Close:  prices[3],
		Volume: volume,
	}, nil
}

func parseDatetime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("candle time %q: unknown layout", s)
}
