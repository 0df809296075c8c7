package indicators

import talib "github.com/markcheno/go-talib"

// CalculateEMA computes the Exponential Moving Average.
func CalculateEMA(data []float64, period int) []float64 {
	return talib.Ema(data, period)
}
