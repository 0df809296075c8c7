package polygon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-screener/internal/domain"
)

func TestTicker(t *testing.T) {
	assert.Equal(t, "C:EURUSD", Ticker("EUR_USD"))
	assert.Equal(t, "C:XAUUSD", Ticker("xau_usd"))
}

func TestCandlesReversedAndParams(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var got *models.ListAggsParams
	fetch := func(ctx context.Context, params *models.ListAggsParams) ([]models.Agg, error) {
		got = params
		return []models.Agg{
			{Timestamp: models.Millis(now.Add(-time.Hour)), Open: 2, High: 3, Low: 1, Close: 2.5},
			{Timestamp: models.Millis(now.Add(-2 * time.Hour)), Open: 1, High: 2, Low: 0.5, Close: 2},
		}, nil
	}

	c := newClient(fetch, func() time.Time { return now }, zerolog.Nop())
	series, err := c.Candles(context.Background(), "EUR_USD", domain.GranularityH4, 2)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "C:EURUSD", got.Ticker)
	assert.Equal(t, 4, got.Multiplier)
	assert.Equal(t, models.Hour, got.Timespan)

	require.Len(t, series.Candles, 2)
	assert.Equal(t, now.Add(-2*time.Hour), series.Candles[0].Time)
	assert.Equal(t, 2.5, series.Candles[1].Close)
}

func TestCandlesFormingBar(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	fetch := func(ctx context.Context, params *models.ListAggsParams) ([]models.Agg, error) {
		return []models.Agg{
			{Timestamp: models.Millis(now.Add(-30 * time.Minute)), Close: 3},
			{Timestamp: models.Millis(now.Add(-90 * time.Minute)), Close: 2},
		}, nil
	}

	cases := []struct {
		name         string
		completeOnly bool
		want         []bool
	}{
		{name: "kept and flagged", want: []bool{true, false}},
		{name: "dropped", completeOnly: true, want: []bool{true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newClient(fetch, func() time.Time { return now }, zerolog.Nop())
			c.completeOnly = tc.completeOnly

			series, err := c.Candles(context.Background(), "EUR_USD", domain.GranularityH1, 2)
			require.NoError(t, err)
			require.Len(t, series.Candles, len(tc.want))
			for i, want := range tc.want {
				assert.Equal(t, want, series.Candles[i].Complete)
			}
			assert.Equal(t, 2.0, series.Candles[0].Close)
		})
	}
}

func TestCandlesOnlyFormingBar(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	fetch := func(ctx context.Context, params *models.ListAggsParams) ([]models.Agg, error) {
		return []models.Agg{{Timestamp: models.Millis(now.Add(-10 * time.Minute)), Close: 3}}, nil
	}
	c := newClient(fetch, func() time.Time { return now }, zerolog.Nop())
	c.completeOnly = true

	_, err := c.Candles(context.Background(), "EUR_USD", domain.GranularityH1, 1)
	assert.ErrorIs(t, err, domain.ErrNoCandles)
}

func TestCandlesEmpty(t *testing.T) {
	fetch := func(ctx context.Context, params *models.ListAggsParams) ([]models.Agg, error) {
		return nil, nil
	}
	c := newClient(fetch, time.Now, zerolog.Nop())

	_, err := c.Candles(context.Background(), "EUR_USD", domain.GranularityH1, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoCandles))
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Options{}, zerolog.Nop())
	require.Error(t, err)
}
