// Package tracing installs the OpenTelemetry tracer provider.
package tracing

import (
	"context"

	"github.com/phoenixd-dashboard/dashboard/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
)

// NewProvider returns an SDK provider when tracing is enabled and a no-op
// provider otherwise. Spans are sampled by the parent, defaulting to always.
func NewProvider(cfg config.TracingConfig, opts ...sdktrace.TracerProviderOption) trace.TracerProvider {
	if !cfg.Enabled {
		return noop.NewTracerProvider()
	}
	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	base := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	}
	return sdktrace.NewTracerProvider(append(base, opts...)...)
}

var Module = fx.Module("tracing",
	fx.Provide(func(lc fx.Lifecycle, cfg *config.Config) trace.TracerProvider {
		tp := NewProvider(cfg.Tracing)
		otel.SetTracerProvider(tp)
		if sdk, ok := tp.(*sdktrace.TracerProvider); ok {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error { return sdk.Shutdown(ctx) },
			})
		}
		return tp
	}),
)
