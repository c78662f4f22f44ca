package otel

import (
	"context"
	"errors"
	"strings"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// InstrumentationName scopes the meter and tracer used for dispatch signals.
const InstrumentationName = "petaltools/tool"

// SetupConfig selects which providers Setup installs globally.
type SetupConfig struct {
	ServiceName string
	// OTLPEndpoint enables OTLP/HTTP trace export. It accepts host:port or
	// a full URL.
	OTLPEndpoint string
	Insecure     bool
	// SpanExporter overrides the OTLP exporter.
	SpanExporter sdktrace.SpanExporter
	// MetricReader enables an SDK meter provider reading into it.
	MetricReader sdkmetric.Reader
}

// Setup installs global tracer and meter providers per cfg and returns a
// shutdown func that flushes them. With nothing configured it is a no-op.
func Setup(ctx context.Context, cfg SetupConfig) (func(context.Context) error, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "petaltools"
	}
	res := resource.NewSchemaless(attribute.String("service.name", name))

	var shutdowns []func(context.Context) error

	exporter := cfg.SpanExporter
	if exporter == nil && strings.TrimSpace(cfg.OTLPEndpoint) != "" {
		exp, err := otlptracehttp.New(ctx, otlpOptions(cfg)...)
		if err != nil {
			return nil, err
		}
		exporter = exp
	}
	if exporter != nil {
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otelapi.SetTracerProvider(tp)
		shutdowns = append(shutdowns, tp.Shutdown)
	}

	if cfg.MetricReader != nil {
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(cfg.MetricReader),
			sdkmetric.WithResource(res),
		)
		otelapi.SetMeterProvider(mp)
		shutdowns = append(shutdowns, mp.Shutdown)
	}

	return func(ctx context.Context) error {
		var errs []error
		for _, shutdown := range shutdowns {
			errs = append(errs, shutdown(ctx))
		}
		return errors.Join(errs...)
	}, nil
}

func otlpOptions(cfg SetupConfig) []otlptracehttp.Option {
	endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
	var opts []otlptracehttp.Option
	if strings.Contains(endpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}

// NewGlobalDispatchObserver builds a DispatchObserver from the global
// providers installed by Setup.
func NewGlobalDispatchObserver() (*DispatchObserver, error) {
	return NewDispatchObserver(
		otelapi.GetMeterProvider().Meter(InstrumentationName),
		otelapi.GetTracerProvider().Tracer(InstrumentationName),
	)
}
