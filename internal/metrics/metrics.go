package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Records fetched from each exchange, post-normalization.
	DealsFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sme_deals_fetched_total",
			Help: "Total deal records fetched and normalized, by exchange and deal type.",
		},
		[]string{"exchange", "deal_type"},
	)

	// Records surviving the SME filter and dedupe.
	DealsNewTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sme_deals_new_total",
			Help: "Deal records that were new (not previously notified), by exchange.",
		},
		[]string{"exchange"},
	)

	SourceErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sme_source_errors_total",
			Help: "Source fetch failures, by exchange and error kind.",
		},
		[]string{"exchange", "kind"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sme_notifications_total",
			Help: "Telegram delivery attempts, by outcome.",
		},
		[]string{"status"},
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sme_scan_duration_seconds",
			Help:    "Duration of a full fetch-filter-dedupe-notify run.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms → ~51s
		},
	)
)

// ObserveScan records the time taken for one run.
func ObserveScan(start time.Time) {
	ScanDuration.Observe(time.Since(start).Seconds())
}

// StartServer exposes /metrics on addr in the background.
func StartServer(addr string) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		http.ListenAndServe(addr, nil) //nolint:errcheck
	}()
}
