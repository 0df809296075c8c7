package indicators

import (
	"fmt"
	"math"

	"fx-screener/internal/domain"
)

// Params are the indicator windows.
type Params struct {
	ATRPeriod int `yaml:"atr_period" json:"atrPeriod" validate:"gte=2,lte=200"`
	ADXPeriod int `yaml:"adx_period" json:"adxPeriod" validate:"gte=2,lte=200"`
	EMAPeriod int `yaml:"ema_period" json:"emaPeriod" validate:"gte=2,lte=500"`
	RSIPeriod int `yaml:"rsi_period" json:"rsiPeriod" validate:"gte=2,lte=200"`
}

func DefaultParams() Params {
	return Params{ATRPeriod: 14, ADXPeriod: 14, EMAPeriod: 50, RSIPeriod: 14}
}

// minRows is the floor below which a series is rejected outright.
const minRows = 30

// Warmup is the number of leading rows left undefined by the library.
func (p Params) Warmup() int {
	w := p.ATRPeriod
	if v := 2*p.ADXPeriod - 1; v > w {
		w = v
	}
	if v := p.EMAPeriod - 1; v > w {
		w = v
	}
	if p.RSIPeriod > w {
		w = p.RSIPeriod
	}
	return w
}

// MinBars is the shortest series Compute accepts.
func (p Params) MinBars() int {
	if n := p.Warmup() + 1; n > minRows {
		return n
	}
	return minRows
}

// Compute runs every indicator over the series and returns one row per bar
// with the warm-up bars and any non-finite rows removed.
func Compute(series domain.Series, p Params) ([]domain.IndicatorRow, error) {
	n := series.Len()
	if n < p.MinBars() {
		return nil, fmt.Errorf("%s %s: got %d candles, need %d: %w",
			series.Instrument, series.Granularity, n, p.MinBars(), domain.ErrInsufficientData)
	}

	highs, lows, closes := series.Highs(), series.Lows(), series.Closes()

	atr := CalculateATR(highs, lows, closes, p.ATRPeriod)
	dm := CalculateADX(highs, lows, closes, p.ADXPeriod)
	ema := CalculateEMA(closes, p.EMAPeriod)
	rsi := CalculateRSI(closes, p.RSIPeriod)

	rows := make([]domain.IndicatorRow, 0, n-p.Warmup())
	for i := p.Warmup(); i < n; i++ {
		c := series.Candles[i]
		row := domain.IndicatorRow{
			Time:       c.Time,
			Close:      c.Close,
			High:       c.High,
			Low:        c.Low,
			ATR:        atr[i],
			ATRPercent: ATRPercent(atr[i], c.Close),
			ADX:        dm.ADX[i],
			DMIPlus:    dm.Plus[i],
			DMIMinus:   dm.Minus[i],
			EMA:        ema[i],
			RSI:        rsi[i],
		}
		if !finite(row.ATR, row.ATRPercent, row.ADX, row.DMIPlus, row.DMIMinus, row.EMA, row.RSI) {
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%s %s: every row undefined: %w",
			series.Instrument, series.Granularity, domain.ErrInsufficientData)
	}
	return rows, nil
}

// Last returns the most recent row.
func Last(rows []domain.IndicatorRow) (domain.IndicatorRow, bool) {
	if len(rows) == 0 {
		return domain.IndicatorRow{}, false
	}
	return rows[len(rows)-1], true
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
