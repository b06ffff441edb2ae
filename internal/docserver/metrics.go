package docserver

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the store server's Prometheus collectors.
type Metrics struct {
	Requests    *prometheus.CounterVec
	Writes      *prometheus.CounterVec
	FeedClients *prometheus.GaugeVec
}

// NewMetrics registers the server collectors with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cubespace_store_requests_total",
			Help: "HTTP requests handled, labeled by route and status code.",
		}, []string{"route", "code"}),
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cubespace_store_writes_total",
			Help: "Documents created, labeled by collection.",
		}, []string{"collection"}),
		FeedClients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cubespace_store_feed_clients",
			Help: "Connected feed clients, labeled by collection.",
		}, []string{"collection"}),
	}
	for _, c := range []prometheus.Collector{m.Requests, m.Writes, m.FeedClients} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return m, nil
}
