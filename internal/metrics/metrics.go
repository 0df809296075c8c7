package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fxscreener_scans_total", Help: "Completed scans by trigger"},
		[]string{"trigger"},
	)
	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fxscreener_scan_duration_seconds",
			Help:    "Wall time of a full scan",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
	FetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fxscreener_fetch_errors_total", Help: "Candle fetch failures"},
		[]string{"instrument", "granularity"},
	)
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "fxscreener_cache_hits_total", Help: "Candle cache hits"},
	)
	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "fxscreener_cache_misses_total", Help: "Candle cache misses"},
	)
	Opportunities = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "fxscreener_opportunities", Help: "Rows per status after the last scan"},
		[]string{"status"},
	)
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fxscreener_notifications_total", Help: "Push notifications by outcome"},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(ScansTotal, ScanDuration, FetchErrorsTotal, CacheHitsTotal, CacheMissesTotal, Opportunities, NotificationsTotal)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
