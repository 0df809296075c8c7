package domain

import "context"

// CandleSource fetches candles from a broker or public market-data feed.
type CandleSource interface {
	Name() string
	Candles(ctx context.Context, instrument string, granularity Granularity, count int) (Series, error)
}

// ScreenerRepository keeps the latest scan for the delivery layer.
type ScreenerRepository interface {
	SaveReport(report ScanReport)
	GetReport() (ScanReport, bool)
	SetProgress(p ScanProgress)
	GetProgress() ScanProgress
}

// Notifier pushes alerts for instruments entering a strong status.
type Notifier interface {
	IsEnabled() bool
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}
