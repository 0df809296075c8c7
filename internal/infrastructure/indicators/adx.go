package indicators

import talib "github.com/markcheno/go-talib"

// DirectionalMovement holds ADX with its +DI/-DI components.
type DirectionalMovement struct {
	ADX   []float64
	Plus  []float64
	Minus []float64
}

// CalculateADX computes ADX, DMI+ and DMI- over the same window.
func CalculateADX(highs, lows, closes []float64, period int) DirectionalMovement {
	return DirectionalMovement{
		ADX:   talib.Adx(highs, lows, closes, period),
		Plus:  talib.PlusDI(highs, lows, closes, period),
		Minus: talib.MinusDI(highs, lows, closes, period),
	}
}
