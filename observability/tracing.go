package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingOptions controls tracer provider setup.
type TracingOptions struct {
	// ServiceName labels emitted spans. Defaults to "loop".
	ServiceName string

	// SampleRate is the ratio of traces to sample, within [0,1].
	// Defaults to 1.0.
	SampleRate float64

	// Exporter receives finished spans. Nil leaves the provider without an
	// exporter, which is useful in tests together with a span recorder.
	Exporter sdktrace.SpanExporter
}

// SetupTracing installs a tracer provider as the global OpenTelemetry
// provider and returns it together with a shutdown function.
func SetupTracing(opts TracingOptions) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "loop"
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = 1.0
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(opts.ServiceName),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(opts.SampleRate)),
	}
	if opts.Exporter != nil {
		providerOpts = append(providerOpts, sdktrace.WithBatcher(opts.Exporter))
	}

	provider := sdktrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(provider)

	return provider, provider.Shutdown, nil
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
