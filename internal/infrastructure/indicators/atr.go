package indicators

import talib "github.com/markcheno/go-talib"

// CalculateATR computes the Average True Range (Wilder smoothing).
// The first period values are zero.
func CalculateATR(highs, lows, closes []float64, period int) []float64 {
	return talib.Atr(highs, lows, closes, period)
}

// ATRPercent expresses an ATR value relative to price, in percent.
func ATRPercent(atr, close float64) float64 {
	if close == 0 {
		return 0
	}
	return atr / close * 100
}
