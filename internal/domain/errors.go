package domain

import "errors"

var (
	ErrNoCandles         = errors.New("no candles returned")
	ErrInsufficientData  = errors.New("not enough candles to compute indicators")
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrInvalidThresholds = errors.New("invalid thresholds")
	ErrScanInProgress    = errors.New("scan already in progress")
)
