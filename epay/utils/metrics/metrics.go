package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epay_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "epay_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Chat metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epay_chat_messages_sent_total",
			Help: "Agent messages stored",
		},
		[]string{"kind"}, // "text" or "image"
	)

	ChatFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epay_chat_failures_total",
			Help: "Failed chat operations surfaced to the agent",
		},
		[]string{"op", "kind"}, // kind: "store", "upload"
	)

	RosterRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epay_chat_roster_refreshes_total",
			Help: "Roster refreshes by result",
		},
		[]string{"result"},
	)

	SessionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "epay_chat_sessions_open",
			Help: "Chat sessions currently open",
		},
	)

	BusEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epay_bus_events_dropped_total",
			Help: "Insert events dropped for slow subscribers",
		},
		[]string{"table"},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "epay_store_latency_seconds",
			Help:    "Chat store operation latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
		[]string{"op"},
	)
)
