// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Fetches counts snapshot fetches issued per entity watcher
	Fetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_entity_fetches_total",
		Help: "Number of entity snapshot fetches issued, by entity.",
	}, []string{"entity"})

	// FetchErrors counts failed snapshot fetches per entity watcher
	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_entity_fetch_errors_total",
		Help: "Number of entity snapshot fetches that failed, by entity.",
	}, []string{"entity"})

	// ChangeEvents counts row-change events consumed per table
	ChangeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_change_events_total",
		Help: "Number of row-change events consumed, by table.",
	}, []string{"table"})

	// MarketTicks counts market simulator ticks
	MarketTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_market_ticks_total",
		Help: "Number of market data simulator ticks.",
	})

	// SSEClients tracks currently connected event-stream clients
	SSEClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_sse_clients",
		Help: "Number of connected SSE clients.",
	})
)
