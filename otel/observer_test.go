package otel_test

import (
	"context"
	"testing"
	"time"

	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	petalotel "github.com/petal-labs/petaltools/otel"
	"github.com/petal-labs/petaltools/tool"
)

// newTestMeter returns a meter backed by a manual reader for collecting metrics in tests.
func newTestMeter() (*metric.ManualReader, *metric.MeterProvider) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	return reader, mp
}

// newTestTracer returns a tracer backed by an in-memory span exporter.
func newTestTracer() (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	return exporter, tp
}

func collectMetrics(t *testing.T, reader *metric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

func TestDispatchObserverRecordsMetrics(t *testing.T) {
	reader, mp := newTestMeter()
	observer, err := petalotel.NewDispatchObserver(mp.Meter("test"), noop.NewTracerProvider().Tracer("test"))
	if err != nil {
		t.Fatalf("NewDispatchObserver() error = %v", err)
	}

	observer.ObserveDispatch(tool.DispatchObservation{
		ToolName: "weather",
		Origin:   tool.OriginNative,
		Duration: 120 * time.Millisecond,
		Success:  true,
	})
	observer.ObserveDispatch(tool.DispatchObservation{
		ToolName:  "weather",
		Origin:    tool.OriginNative,
		Duration:  30 * time.Millisecond,
		ErrorKind: tool.KindBadParameters,
	})
	observer.ObserveRetry(tool.RetryObservation{
		ToolName:  "lookup",
		Component: "http",
		Attempt:   1,
		ErrorKind: tool.KindToolExecution,
	})

	rm := collectMetrics(t, reader)

	dispatches := findMetric(rm, "petaltools.tool.dispatches")
	if dispatches == nil {
		t.Fatal("petaltools.tool.dispatches metric not found")
	}
	sum, ok := dispatches.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("petaltools.tool.dispatches type = %T, want Sum[int64]", dispatches.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 2 || len(sum.DataPoints) != 2 {
		t.Fatalf("dispatches = %d across %d series, want 2 across 2", total, len(sum.DataPoints))
	}

	retries := findMetric(rm, "petaltools.retries")
	if retries == nil {
		t.Fatal("petaltools.retries metric not found")
	}
	if _, ok := retries.Data.(metricdata.Sum[int64]); !ok {
		t.Fatalf("petaltools.retries type = %T, want Sum[int64]", retries.Data)
	}

	latency := findMetric(rm, "petaltools.tool.latency")
	if latency == nil {
		t.Fatal("petaltools.tool.latency metric not found")
	}
	if _, ok := latency.Data.(metricdata.Histogram[float64]); !ok {
		t.Fatalf("petaltools.tool.latency type = %T, want Histogram[float64]", latency.Data)
	}
}

func TestDispatchObserverRecordsSpans(t *testing.T) {
	_, mp := newTestMeter()
	exporter, tp := newTestTracer()
	observer, err := petalotel.NewDispatchObserver(mp.Meter("test"), tp.Tracer("test"))
	if err != nil {
		t.Fatalf("NewDispatchObserver() error = %v", err)
	}

	observer.ObserveDispatch(tool.DispatchObservation{
		ToolName:  "market_recap",
		Origin:    tool.OriginNative,
		RequestID: "req-1",
		Duration:  250 * time.Millisecond,
		ErrorKind: tool.KindToolExecution,
		Timeout:   true,
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if span.Name != "tool.dispatch" {
		t.Fatalf("span name = %q", span.Name)
	}
	if span.Status.Code != otelcodes.Error || span.Status.Description != "ToolExecutionError" {
		t.Fatalf("status = %+v", span.Status)
	}
	if got := span.EndTime.Sub(span.StartTime); got != 250*time.Millisecond {
		t.Fatalf("span duration = %v, want 250ms", got)
	}
	attrs := make(map[string]string)
	for _, kv := range span.Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["request_id"] != "req-1" || attrs["tool_name"] != "market_recap" || attrs["timeout"] != "true" {
		t.Fatalf("attributes = %v", attrs)
	}
}

func TestNilDispatchObserverIsSafe(t *testing.T) {
	var observer *petalotel.DispatchObserver
	observer.ObserveDispatch(tool.DispatchObservation{ToolName: "x"})
	observer.ObserveRetry(tool.RetryObservation{ToolName: "x"})
}

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := petalotel.Setup(context.Background(), petalotel.SetupConfig{})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
}

func TestSetupInstallsProviders(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	reader := metric.NewManualReader()
	shutdown, err := petalotel.Setup(context.Background(), petalotel.SetupConfig{
		ServiceName:  "petaltools-test",
		SpanExporter: exporter,
		MetricReader: reader,
	})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	observer, err := petalotel.NewGlobalDispatchObserver()
	if err != nil {
		t.Fatalf("NewGlobalDispatchObserver() error = %v", err)
	}
	observer.ObserveDispatch(tool.DispatchObservation{ToolName: "weather", Success: true, Duration: time.Millisecond})

	rm := collectMetrics(t, reader)
	if findMetric(rm, "petaltools.tool.dispatches") == nil {
		t.Fatal("dispatch metric not exported through global meter provider")
	}

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
}
