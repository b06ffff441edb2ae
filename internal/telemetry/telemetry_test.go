package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/five82/cubespace/internal/logging"
)

type countingPort struct{ events, starts, ends int }

func (c *countingPort) RecordEvent(string, map[string]string) { c.events++ }
func (c *countingPort) StartFlow(string)                      { c.starts++ }
func (c *countingPort) EndFlow(string, string)                { c.ends++ }

func TestMulti_FansOut(t *testing.T) {
	a, b := &countingPort{}, &countingPort{}
	m := Multi{a, b, Noop{}}

	m.RecordEvent("DROP_CUBE", nil)
	m.StartFlow("f")
	m.EndFlow("f", "saved")

	for i, p := range []*countingPort{a, b} {
		if p.events != 1 || p.starts != 1 || p.ends != 1 {
			t.Fatalf("port %d = %#v, want one of each", i, p)
		}
	}
}

func TestPrometheus_RecordsFlowsAndEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	if err != nil {
		t.Fatalf("NewPrometheus returned error: %v", err)
	}
	clock := time.Unix(100, 0)
	p.now = func() time.Time { return clock }

	p.RecordEvent("DROP_CUBE", map[string]string{"changed": "true"})
	p.RecordEvent("ABANDON_FLOW", nil)
	p.StartFlow("a")
	if got := testutil.ToFloat64(p.ActiveFlows); got != 1 {
		t.Fatalf("active flows = %v, want 1", got)
	}
	clock = clock.Add(3 * time.Second)
	p.EndFlow("a", "saved")

	if got := testutil.ToFloat64(p.Events.WithLabelValues("DROP_CUBE", "true")); got != 1 {
		t.Fatalf("DROP_CUBE events = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.Events.WithLabelValues("ABANDON_FLOW", "unknown")); got != 1 {
		t.Fatalf("ABANDON_FLOW events = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.Flows.WithLabelValues("saved")); got != 1 {
		t.Fatalf("saved flows = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.ActiveFlows); got != 0 {
		t.Fatalf("active flows = %v, want 0", got)
	}
	if n := testutil.CollectAndCount(p.FlowDurations); n != 1 {
		t.Fatalf("duration series = %d, want 1", n)
	}
}

func TestPrometheus_RegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPrometheus(reg)
	if err != nil {
		t.Fatalf("first NewPrometheus: %v", err)
	}
	second, err := NewPrometheus(reg)
	if err != nil {
		t.Fatalf("second NewPrometheus: %v", err)
	}
	second.Flows.WithLabelValues("abandoned").Inc()
	if got := testutil.ToFloat64(first.Flows.WithLabelValues("abandoned")); got != 1 {
		t.Fatalf("collectors not shared: %v", got)
	}
}

func TestTracer_OneSpanPerFlowWithEvents(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tr := NewTracer(tp)

	tr.RecordEvent("LISTENER_SNAPSHOT", nil) // no open flow: dropped
	tr.StartFlow("a")
	tr.RecordEvent("SETTLE_CUBE", map[string]string{"changed": "true"})
	tr.EndFlow("a", "abandoned")
	tr.EndFlow("missing", "saved")

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "cube.flow" {
		t.Fatalf("span name = %q", span.Name())
	}
	if len(span.Events()) != 1 || span.Events()[0].Name != "SETTLE_CUBE" {
		t.Fatalf("events = %#v, want SETTLE_CUBE", span.Events())
	}
	var outcome string
	for _, kv := range span.Attributes() {
		if kv.Key == "cube.outcome" {
			outcome = kv.Value.AsString()
		}
	}
	if outcome != "abandoned" {
		t.Fatalf("outcome = %q, want abandoned", outcome)
	}
}

func TestStdoutProvider_WritesSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, shutdown, err := NewStdoutProvider(&buf, "cubespace-test")
	if err != nil {
		t.Fatalf("NewStdoutProvider returned error: %v", err)
	}
	tr := NewTracer(tp)
	tr.StartFlow("a")
	tr.EndFlow("a", "saved")
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "cube.flow") {
		t.Fatalf("exporter output = %q, want cube.flow span", buf.String())
	}
}

func TestLog_WritesFlowDuration(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(logging.New(&buf, logging.Config{Level: "debug"}))
	clock := time.Unix(0, 0)
	l.now = func() time.Time { return clock }

	l.StartFlow("a")
	clock = clock.Add(1500 * time.Millisecond)
	l.RecordEvent("SAVE_SUCCESS", map[string]string{"changed": "true"})
	l.EndFlow("a", "saved")

	out := buf.String()
	for _, want := range []string{"flow started", "event=SAVE_SUCCESS", "outcome=saved", "duration=1.5s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q:\n%s", want, out)
		}
	}
}
