package domain

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is a candle bucket size using broker notation (D, H4, H1...).
type Granularity string

const (
	GranularityW   Granularity = "W"
	GranularityD   Granularity = "D"
	GranularityH4  Granularity = "H4"
	GranularityH1  Granularity = "H1"
	GranularityM30 Granularity = "M30"
	GranularityM15 Granularity = "M15"
)

var granularityDurations = map[Granularity]time.Duration{
	GranularityW:   7 * 24 * time.Hour,
	GranularityD:   24 * time.Hour,
	GranularityH4:  4 * time.Hour,
	GranularityH1:  time.Hour,
	GranularityM30: 30 * time.Minute,
	GranularityM15: 15 * time.Minute,
}

// ParseGranularity validates a granularity string.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := granularityDurations[g]; !ok {
		return "", fmt.Errorf("unsupported granularity %q", s)
	}
	return g, nil
}

// Duration returns the bucket length, zero for unknown values.
func (g Granularity) Duration() time.Duration {
	return granularityDurations[g]
}

// Closed reports whether the bar that opened at open has finished by now.
func (g Granularity) Closed(open, now time.Time) bool {
	return !open.Add(g.Duration()).After(now)
}

func (g Granularity) String() string {
	return string(g)
}

// Candle is one OHLC bar. Prices are mid prices.
type Candle struct {
	Time     time.Time `json:"time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	Complete bool      `json:"complete"`
}

// Series is an ordered (oldest first) list of candles for one instrument and granularity.
type Series struct {
	Instrument  string      `json:"instrument"`
	Granularity Granularity `json:"granularity"`
	Candles     []Candle    `json:"candles"`
}

func (s Series) Len() int { return len(s.Candles) }

func (s Series) Highs() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.High
	}
	return out
}

func (s Series) Lows() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Low
	}
	return out
}

func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

// MultiTimeframe holds one series per requested granularity.
type MultiTimeframe map[Granularity]Series

// IndicatorRow is one bar after indicator computation, warm-up rows removed.
type IndicatorRow struct {
	Time       time.Time `json:"time"`
	Close      float64   `json:"close"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	ATR        float64   `json:"atr"`
	ATRPercent float64   `json:"atrPercent"` // ATR as % of close
	ADX        float64   `json:"adx"`
	DMIPlus    float64   `json:"dmiPlus"`
	DMIMinus   float64   `json:"dmiMinus"`
	EMA        float64   `json:"ema"`
	RSI        float64   `json:"rsi"`
}

// Direction is the trend side inferred from DMI+/DMI-.
type Direction string

const (
	DirectionBuy     Direction = "BUY"
	DirectionSell    Direction = "SELL"
	DirectionNeutral Direction = "NEUTRAL"
)

// DirectionFromDMI returns BUY when DMI+ dominates, SELL when DMI- does.
func DirectionFromDMI(plus, minus float64) Direction {
	switch {
	case plus > minus:
		return DirectionBuy
	case minus > plus:
		return DirectionSell
	default:
		return DirectionNeutral
	}
}

// Status buckets an opportunity by score ratio.
type Status string

const (
	StatusStrong Status = "STRONG"
	StatusSetup  Status = "SETUP"
	StatusWatch  Status = "WATCH"
	StatusAvoid  Status = "AVOID"
)

// TimeframeView is the per-timeframe summary shown next to a row.
type TimeframeView struct {
	TF        Granularity `json:"tf"`
	ADX       float64     `json:"adx"`
	RSI       float64     `json:"rsi"`
	ATRPct    float64     `json:"atrPct"`
	Direction Direction   `json:"direction"`
}

// Opportunity is one ranked row of the screener table.
type Opportunity struct {
	Instrument  string          `json:"instrument"`
	DisplayName string          `json:"displayName"` // EUR/USD
	Direction   Direction       `json:"direction"`
	Score       int             `json:"score"`
	MaxScore    int             `json:"maxScore"`
	Status      Status          `json:"status"`
	Qualified   bool            `json:"qualified"` // passes MinScore and the EMA filter
	Price       float64         `json:"price"`
	ATR         float64         `json:"atr"`
	ATRPercent  float64         `json:"atrPercent"`
	ADX         float64         `json:"adx"`
	DMIPlus     float64         `json:"dmiPlus"`
	DMIMinus    float64         `json:"dmiMinus"`
	RSI         float64         `json:"rsi"`
	EMA         float64         `json:"ema"`
	Alignment   int             `json:"alignment"` // higher TFs agreeing with H1
	Timeframes  []TimeframeView `json:"timeframes,omitempty"`
	Rules       []string        `json:"rules"` // satisfied rule names
	CandleTime  time.Time       `json:"candleTime"`
}

// DisplayName turns EUR_USD into EUR/USD.
func DisplayName(instrument string) string {
	return strings.ReplaceAll(instrument, "_", "/")
}

// AutopsyStatus marks the outcome of the raw indicator check.
type AutopsyStatus string

const (
	AutopsyOK              AutopsyStatus = "OK"
	AutopsyFetchFailed     AutopsyStatus = "DATA_FETCH_FAILED"
	AutopsyIndicatorFailed AutopsyStatus = "INDICATOR_FAILED"
)

// AutopsyRow is the unfiltered last H1 row for one instrument.
type AutopsyRow struct {
	Instrument string        `json:"instrument"`
	Status     AutopsyStatus `json:"status"`
	Error      string        `json:"error,omitempty"`
	Row        *IndicatorRow `json:"row,omitempty"`
}

// AutopsyReport bundles autopsy rows with the generated diagnosis.
type AutopsyReport struct {
	GeneratedAt time.Time    `json:"generatedAt"`
	Rows        []AutopsyRow `json:"rows"`
	Diagnosis   Diagnosis    `json:"diagnosis"`
}

// Diagnosis summarizes an autopsy run.
type Diagnosis struct {
	Level   string `json:"level"` // "error" or "success"
	Message string `json:"message"`
}

// ScanFailure records an instrument skipped during a scan.
type ScanFailure struct {
	Instrument string        `json:"instrument"`
	Reason     AutopsyStatus `json:"reason"`
	Error      string        `json:"error"`
}

// ScanProgress is published while a scan walks the instrument list.
type ScanProgress struct {
	Running    bool   `json:"running"`
	Done       int    `json:"done"`
	Total      int    `json:"total"`
	Instrument string `json:"instrument,omitempty"`
}

// ScanReport is the result of one full pass over the instrument list.
type ScanReport struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Duration   time.Duration `json:"duration"`
	Scanned    int           `json:"scanned"`
	Thresholds Thresholds    `json:"thresholds"`
	Rows       []Opportunity `json:"rows"` // every scored instrument, ranked
	Failures   []ScanFailure `json:"failures,omitempty"`
}

// Snapshot is what the dashboard and websocket clients receive.
type Snapshot struct {
	Report        *ScanReport   `json:"report,omitempty"`
	Opportunities []Opportunity `json:"opportunities"`
	Progress      ScanProgress  `json:"progress"`
}
