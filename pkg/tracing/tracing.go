package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

// SetTracer sets the tracer to be used for tracing.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// GetActiveSpan returns the active span from the context, or nil when there is none.
func GetActiveSpan(ctx context.Context) trace.Span {
	if tracer == nil {
		return nil
	}
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	return span
}

// StartSpan starts a new span with the given name and returns the context and span.
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName)
}

func carrier(ctx context.Context) propagation.MapCarrier {
	c := propagation.MapCarrier{}
	if GetActiveSpan(ctx) == nil {
		return c
	}
	propagation.TraceContext{}.Inject(ctx, c)
	return c
}

// GetTraceParent returns the W3C traceparent of the active span.
func GetTraceParent(ctx context.Context) string {
	return carrier(ctx).Get("traceparent")
}

// GetTraceState returns the W3C tracestate of the active span.
func GetTraceState(ctx context.Context) string {
	return carrier(ctx).Get("tracestate")
}

// InjectHeaders copies the trace context onto outbound request headers.
func InjectHeaders(ctx context.Context, header http.Header) {
	for key, value := range carrier(ctx) {
		header.Set(key, value)
	}
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := GetActiveSpan(ctx)
	if span == nil {
		return ""
	}
	return span.SpanContext().TraceID().String()
}

// GetSpanID returns the span ID from the context.
func GetSpanID(ctx context.Context) string {
	span := GetActiveSpan(ctx)
	if span == nil {
		return ""
	}
	return span.SpanContext().SpanID().String()
}
