package main

import (
	"context"
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// logExporter writes finished spans to the process logger. It stands in
// for a collector exporter.
type logExporter struct {
	logger *slog.Logger
}

func (e *logExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		attrs := []any{
			"trace_id", span.SpanContext().TraceID().String(),
			"span_id", span.SpanContext().SpanID().String(),
			"duration", span.EndTime().Sub(span.StartTime()),
			"status", span.Status().Code.String(),
		}
		for _, kv := range span.Attributes() {
			attrs = append(attrs, string(kv.Key), kv.Value.Emit())
		}
		e.logger.DebugContext(ctx, span.Name(), attrs...)
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error { return nil }

// newTracerProvider returns a provider batching spans to the logger.
func newTracerProvider(logger *slog.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(&logExporter{logger: logger.With("component", "tracing")}),
	)
}
