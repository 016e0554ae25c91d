package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Resolver metrics
	ResolveCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotedesk_resolve_total",
			Help: "Quote resolutions by outcome (live, degraded, unavailable, error)",
		}, []string{"outcome"})
	ResolveLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quotedesk_resolve_latency_seconds",
			Help:    "Time to resolve one symbol",
			Buckets: prometheus.DefBuckets,
		})
	FallbackCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotedesk_fallback_total",
			Help: "Waterfall fallthroughs by reason (forbidden, rate_limited, not_found, transport)",
		}, []string{"reason"})

	// Upstream metrics
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotedesk_upstream_requests_total",
			Help: "Market data API requests by endpoint and result",
		}, []string{"endpoint", "status"})

	// Batch metrics
	BatchCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quotedesk_batch_total",
			Help: "Batch orchestrations executed",
		})
	BatchCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quotedesk_batch_coalesced_total",
			Help: "Batch orchestrations coalesced into an in-flight one",
		})
	BatchSlowdowns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quotedesk_batch_slowdowns_total",
			Help: "Inter-group delay increases triggered by upstream rate limiting",
		})

	// Store metrics
	WatchlistOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotedesk_watchlist_ops_total",
			Help: "Watchlist store operations by op and result",
		}, []string{"op", "status"})
	JournalOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotedesk_journal_ops_total",
			Help: "Trade journal operations by op and result",
		}, []string{"op", "status"})
)
