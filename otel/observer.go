// Package otel records dispatcher activity as OpenTelemetry metrics and
// spans, and configures trace export for the serve command.
package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/petaltools/tool"
)

// DispatchObserver implements tool.Observer on top of a meter and tracer.
type DispatchObserver struct {
	tracer trace.Tracer

	dispatches metric.Int64Counter
	retries    metric.Int64Counter
	latency    metric.Float64Histogram
}

// NewDispatchObserver creates an observer bound to the provided meter/tracer.
// A nil tracer disables spans.
func NewDispatchObserver(meter metric.Meter, tracer trace.Tracer) (*DispatchObserver, error) {
	dispatches, err := meter.Int64Counter(
		"petaltools.tool.dispatches",
		metric.WithDescription("Number of tool dispatches"),
	)
	if err != nil {
		return nil, err
	}
	retries, err := meter.Int64Counter(
		"petaltools.retries",
		metric.WithDescription("Number of retried attempts against tool units and models"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"petaltools.tool.latency",
		metric.WithDescription("Tool dispatch latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &DispatchObserver{
		tracer:     tracer,
		dispatches: dispatches,
		retries:    retries,
		latency:    latency,
	}, nil
}

// ObserveDispatch records one dispatch outcome.
func (o *DispatchObserver) ObserveDispatch(observation tool.DispatchObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", observation.ToolName),
		attribute.String("origin", string(observation.Origin)),
		attribute.Bool("success", observation.Success),
	}
	if observation.ErrorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", string(observation.ErrorKind)))
	}
	if observation.Timeout {
		attrs = append(attrs, attribute.Bool("timeout", true))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.dispatches.Add(ctx, 1, options)
	o.latency.Record(ctx, observation.Duration.Seconds(), options)

	if o.tracer == nil {
		return
	}
	end := time.Now()
	spanAttrs := append(attrs, attribute.String("request_id", observation.RequestID))
	_, span := o.tracer.Start(ctx, "tool.dispatch",
		trace.WithTimestamp(end.Add(-observation.Duration)),
		trace.WithAttributes(spanAttrs...),
	)
	if !observation.Success {
		span.SetStatus(codes.Error, string(observation.ErrorKind))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(end))
}

// ObserveRetry records one failed attempt that will be retried.
func (o *DispatchObserver) ObserveRetry(observation tool.RetryObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", observation.ToolName),
		attribute.String("component", observation.Component),
		attribute.Int("attempt", observation.Attempt),
	}
	if observation.ErrorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", string(observation.ErrorKind)))
	}
	o.retries.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

var _ tool.Observer = (*DispatchObserver)(nil)
