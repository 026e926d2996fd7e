package teachtiles

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/honeycombio/otel-config-go/otelconfig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for every span in the project
const TracerName = "github.com/maroda/teachtiles"

// Tracer returns the project tracer from whatever provider is installed,
// a no-op until one of the Init functions runs
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// InitOTelHNY uses the Honeycomb library to interface with OTel
func InitOTelHNY() (func(), error) {
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		return nil, fmt.Errorf("failed to configure OpenTelemetry: %w", err)
	}
	return func() { otelShutdown() }, nil
}

// InitOTelGRF uses the Grafana recommended configuration including Baggage for propagation
func InitOTelGRF() (*sdktrace.TracerProvider, error) {
	exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))
	return tp, err
}

// InitOTel picks a provider from TEACHTILES_OTEL ("honeycomb" or "grafana").
// Anything else leaves tracing off. The returned func is always safe to call.
func InitOTel() func() {
	switch os.Getenv("TEACHTILES_OTEL") {
	case "honeycomb":
		shutdown, err := InitOTelHNY()
		if err != nil {
			slog.Error("Could not start Honeycomb tracing", slog.Any("Error", err))
			return func() {}
		}
		slog.Info("Tracing to Honeycomb")
		return shutdown
	case "grafana":
		tp, err := InitOTelGRF()
		if err != nil {
			slog.Error("Could not start OTLP tracing", slog.Any("Error", err))
			return func() {}
		}
		slog.Info("Tracing over OTLP")
		return func() { tp.Shutdown(context.Background()) }
	default:
		return func() {}
	}
}
