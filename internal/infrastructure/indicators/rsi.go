package indicators

import talib "github.com/markcheno/go-talib"

// CalculateRSI computes the Relative Strength Index.
func CalculateRSI(closes []float64, period int) []float64 {
	return talib.Rsi(closes, period)
}
