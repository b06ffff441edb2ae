// Package telemetry implements the reporting port the cube reducer and
// provider write to. Nothing here is global: callers construct a port and
// inject it.
package telemetry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/five82/cubespace/internal/logging"
)

// Port receives flow and action events.
type Port interface {
	RecordEvent(name string, attrs map[string]string)
	StartFlow(flowID string)
	EndFlow(flowID, outcome string)
}

// Noop discards everything.
type Noop struct{}

func (Noop) RecordEvent(string, map[string]string) {}
func (Noop) StartFlow(string)                      {}
func (Noop) EndFlow(string, string)                {}

// Multi fans every call out to each port in order.
type Multi []Port

func (m Multi) RecordEvent(name string, attrs map[string]string) {
	for _, p := range m {
		p.RecordEvent(name, attrs)
	}
}

func (m Multi) StartFlow(flowID string) {
	for _, p := range m {
		p.StartFlow(flowID)
	}
}

func (m Multi) EndFlow(flowID, outcome string) {
	for _, p := range m {
		p.EndFlow(flowID, outcome)
	}
}

// Log writes events to a logger at debug level and flow ends at info level
// with their duration. Intended for development builds.
type Log struct {
	log logging.Logger

	mu     sync.Mutex
	starts map[string]time.Time
	now    func() time.Time
}

// NewLog returns a Log port.
func NewLog(log logging.Logger) *Log {
	if log == nil {
		log = logging.Noop()
	}
	return &Log{
		log:    log.With(logging.String("component", "telemetry")),
		starts: map[string]time.Time{},
		now:    time.Now,
	}
}

func (l *Log) RecordEvent(name string, attrs map[string]string) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]logging.Field, 0, len(keys)+1)
	fields = append(fields, logging.String("event", name))
	for _, k := range keys {
		fields = append(fields, logging.String(k, attrs[k]))
	}
	l.log.Debug(context.Background(), "event", fields...)
}

func (l *Log) StartFlow(flowID string) {
	l.mu.Lock()
	l.starts[flowID] = l.now()
	l.mu.Unlock()
	l.log.Info(context.Background(), "flow started", logging.String("flow", flowID))
}

func (l *Log) EndFlow(flowID, outcome string) {
	l.mu.Lock()
	start, ok := l.starts[flowID]
	delete(l.starts, flowID)
	l.mu.Unlock()

	fields := []logging.Field{logging.String("flow", flowID), logging.String("outcome", outcome)}
	if ok {
		fields = append(fields, logging.String("duration", l.now().Sub(start).Round(time.Millisecond).String()))
	}
	l.log.Info(context.Background(), "flow ended", fields...)
}
