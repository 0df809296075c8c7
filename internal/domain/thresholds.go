package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Thresholds are the user adjustable filter values behind the scoring rules.
type Thresholds struct {
	MinATRPercent   float64 `json:"minAtrPercent" yaml:"min_atr_percent" validate:"gte=0,lte=100"`
	MinADX          float64 `json:"minAdx" yaml:"min_adx" validate:"gte=0,lte=100"`
	MinADXHigherTF  float64 `json:"minAdxHigherTf" yaml:"min_adx_higher_tf" validate:"gte=0,lte=100"`
	RSIOverbought   float64 `json:"rsiOverbought" yaml:"rsi_overbought" validate:"gt=50,lte=100"`
	RSIOversold     float64 `json:"rsiOversold" yaml:"rsi_oversold" validate:"gte=0,lt=50"`
	MinScore        int     `json:"minScore" yaml:"min_score" validate:"gte=0,lte=7"`
	RequireEMATrend bool    `json:"requireEmaTrend" yaml:"require_ema_trend"`
}

// DefaultThresholds mirror the sidebar defaults of the dashboard.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinATRPercent:  0.07,
		MinADX:         25,
		MinADXHigherTF: 20,
		RSIOverbought:  70,
		RSIOversold:    30,
		MinScore:       4,
	}
}

// Validate checks ranges; failures wrap ErrInvalidThresholds.
func (t Thresholds) Validate() error {
	validate := validator.New()
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidThresholds, err)
	}
	return nil
}
