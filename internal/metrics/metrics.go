// Package metrics defines the Prometheus instruments and the HTTP
// middleware that records per-request duration and counts.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search and ingestion Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardindex",
			Name:      "search_requests_total",
			Help:      "Total number of card searches",
		},
		[]string{"type"},
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cardindex",
			Name:      "search_duration_seconds",
			Help:      "Card search duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	SearchCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardindex",
			Name:      "search_cache_total",
			Help:      "Search cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	IngestPagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cardindex",
			Name:      "ingest_pages_total",
			Help:      "Pages fetched during ingestion",
		},
	)

	IngestCardsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cardindex",
			Name:      "ingest_cards_total",
			Help:      "Cards persisted during ingestion",
		},
	)

	IngestPageErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cardindex",
			Name:      "ingest_page_errors_total",
			Help:      "Page-level ingestion errors",
		},
	)

	IngestRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cardindex",
			Name:      "ingest_retries_total",
			Help:      "HTTP request retries against the card API",
		},
	)
)

var registered bool

// Register registers the cardindex metrics. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchCacheTotal)
	prometheus.MustRegister(IngestPagesTotal)
	prometheus.MustRegister(IngestCardsTotal)
	prometheus.MustRegister(IngestPageErrorsTotal)
	prometheus.MustRegister(IngestRetriesTotal)
	registered = true
}
