package telemetry

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer opens one span per cube flow and records reducer actions as span
// events while a flow is open.
type Tracer struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
	order []string
}

// NewTracer returns a Tracer using tp.
func NewTracer(tp trace.TracerProvider) *Tracer {
	return &Tracer{
		tracer: tp.Tracer("github.com/five82/cubespace/internal/cube"),
		spans:  map[string]trace.Span{},
	}
}

func (t *Tracer) RecordEvent(name string, attrs map[string]string) {
	t.mu.Lock()
	var span trace.Span
	if n := len(t.order); n > 0 {
		span = t.spans[t.order[n-1]]
	}
	t.mu.Unlock()
	if span == nil {
		return
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kv := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		kv = append(kv, attribute.String(k, attrs[k]))
	}
	span.AddEvent(name, trace.WithAttributes(kv...))
}

func (t *Tracer) StartFlow(flowID string) {
	_, span := t.tracer.Start(context.Background(), "cube.flow",
		trace.WithAttributes(attribute.String("cube.local_id", flowID)))
	t.mu.Lock()
	t.spans[flowID] = span
	t.order = append(t.order, flowID)
	t.mu.Unlock()
}

func (t *Tracer) EndFlow(flowID, outcome string) {
	t.mu.Lock()
	span, ok := t.spans[flowID]
	delete(t.spans, flowID)
	for i, id := range t.order {
		if id == flowID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("cube.outcome", outcome))
	span.End()
}

// NewStdoutProvider builds a tracer provider that writes finished spans as
// JSON to w. The returned function flushes and shuts it down.
func NewStdoutProvider(w io.Writer, service string) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, nil, fmt.Errorf("create stdout exporter: %w", err)
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", service),
		attribute.String("service.namespace", "cubespace"),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	return tp, tp.Shutdown, nil
}
