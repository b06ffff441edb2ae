package telemetry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus records actions and flow outcomes as Prometheus metrics.
type Prometheus struct {
	Events        *prometheus.CounterVec
	Flows         *prometheus.CounterVec
	FlowDurations *prometheus.HistogramVec
	ActiveFlows   prometheus.Gauge

	mu     sync.Mutex
	starts map[string]time.Time
	now    func() time.Time
}

// NewPrometheus registers the cube flow metrics against reg, defaulting to the
// global registry when nil. Re-registering returns the existing collectors.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	events, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cubespace_actions_total",
		Help: "Reducer actions dispatched, labeled by action and whether state changed.",
	}, []string{"action", "changed"}))
	if err != nil {
		return nil, err
	}
	flows, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cubespace_flows_total",
		Help: "Completed cube flows, labeled by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cubespace_flow_duration_seconds",
		Help:    "Time from drop to the end of a cube flow.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	active, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cubespace_active_flows",
		Help: "Cube flows currently in progress.",
	}))
	if err != nil {
		return nil, err
	}

	return &Prometheus{
		Events:        events,
		Flows:         flows,
		FlowDurations: durations,
		ActiveFlows:   active,
		starts:        map[string]time.Time{},
		now:           time.Now,
	}, nil
}

func (p *Prometheus) RecordEvent(name string, attrs map[string]string) {
	changed := attrs["changed"]
	if changed == "" {
		changed = "unknown"
	}
	p.Events.WithLabelValues(name, changed).Inc()
}

func (p *Prometheus) StartFlow(flowID string) {
	p.mu.Lock()
	p.starts[flowID] = p.now()
	p.mu.Unlock()
	p.ActiveFlows.Inc()
}

func (p *Prometheus) EndFlow(flowID, outcome string) {
	p.mu.Lock()
	start, ok := p.starts[flowID]
	delete(p.starts, flowID)
	p.mu.Unlock()

	p.Flows.WithLabelValues(outcome).Inc()
	if ok {
		p.ActiveFlows.Dec()
		p.FlowDurations.WithLabelValues(outcome).Observe(p.now().Sub(start).Seconds())
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}
