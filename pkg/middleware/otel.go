package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/vstore/pkg/store"
)

// Default tracer name for vstore applications.
const defaultTracerName = "vstore"

// OTelConfig configures the OpenTelemetry plugin.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "vstore").
	TracerName string

	// TracerProvider supplies the tracer.
	// Default: the global provider (otel.GetTracerProvider()).
	TracerProvider trace.TracerProvider

	// IncludeArgs records action arguments as the store.args attribute.
	// May contain sensitive information - disabled by default.
	IncludeArgs bool

	// Filter determines which actions to trace.
	// Return true to trace the action, false to skip.
	// If nil, all actions are traced.
	Filter func(storeID, action string) bool

	// AttributeExtractor adds custom attributes to each action span.
	AttributeExtractor func(ac *store.ActionContext) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry plugin.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithIncludeArgs enables recording action arguments.
func WithIncludeArgs(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeArgs = include
	}
}

// WithActionFilter sets a filter function for actions.
func WithActionFilter(filter func(storeID, action string) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(ac *store.ActionContext) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
	}
}

// OpenTelemetry returns a store plugin that traces every action.
//
// Each invocation gets a span named "store.<id>/<action>" carrying the
// store id and action name. The span ends when the action settles, so
// asynchronous actions are traced until their Deferred result resolves;
// failures and panics are recorded with an error status.
//
// Example:
//
//	r.Use(middleware.OpenTelemetry(
//	    middleware.WithTracerName("my-app"),
//	))
//
// Without WithTracerProvider the global provider is used. Configure it
// in your main() before building stores:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) store.Plugin {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(config.TracerName)

	return func(ctx store.PluginContext) map[string]any {
		id := ctx.Options.ID

		ctx.Store.OnAction(func(ac *store.ActionContext) {
			if config.Filter != nil && !config.Filter(id, ac.Name) {
				return
			}

			attrs := []attribute.KeyValue{
				attribute.String("store.id", id),
				attribute.String("store.action", ac.Name),
				attribute.Int("store.args_count", len(ac.Args)),
			}
			if config.IncludeArgs {
				attrs = append(attrs, attribute.String("store.args", fmt.Sprintf("%v", ac.Args)))
			}
			if config.AttributeExtractor != nil {
				attrs = append(attrs, config.AttributeExtractor(ac)...)
			}

			_, span := tracer.Start(
				context.Background(),
				spanName(id, ac.Name),
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(attrs...),
			)

			ac.After(func(any) any {
				span.SetStatus(codes.Ok, "")
				span.End()
				return nil
			})
			ac.OnError(func(err error) {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				span.End()
			})
		})
		return nil
	}
}

func spanName(storeID, action string) string {
	return "store." + storeID + "/" + action
}
