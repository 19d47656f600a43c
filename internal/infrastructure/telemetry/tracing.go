package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName scopes the application's own spans
	TracerName = "realty-backend"

	// ServiceVersion is reported on every exported resource
	ServiceVersion = "1.0.0"
)

// Span attribute keys set by the application services
const (
	SpanAttrSyncRunID  = "sync_run_id"
	SpanAttrSyncType   = "sync_type"
	SpanAttrPropertyID = "property_id"
	SpanAttrCacheHit   = "cache_hit"
	SpanAttrResultSize = "result_count"
)

// SpanOption adjusts how StartSpan opens a span
type SpanOption func(*[]trace.SpanStartOption)

// WithAttribute sets one attribute at span start
func WithAttribute(key string, value any) SpanOption {
	return func(opts *[]trace.SpanStartOption) {
		*opts = append(*opts, trace.WithAttributes(attr(key, value)))
	}
}

// WithSpanKind overrides the default internal kind
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return func(opts *[]trace.SpanStartOption) {
		*opts = append(*opts, trace.WithSpanKind(kind))
	}
}

// StartSpan opens a span on the global tracer provider; the caller ends it.
// With tracing disabled the span is a no-op.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, trace.Span) {
	start := []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindInternal)}
	for _, opt := range opts {
		opt(&start)
	}
	return otel.Tracer(TracerName).Start(ctx, name, start...)
}

// StartServiceSpan opens a span named "<service>.<method>"
func StartServiceSpan(ctx context.Context, service, method string, opts ...SpanOption) (context.Context, trace.Span) {
	return StartSpan(ctx, service+"."+method, opts...)
}

// SetAttributes sets alternating key/value pairs. Pairs whose key is not a
// string are skipped, as is a trailing unpaired value.
func SetAttributes(span trace.Span, kv ...any) {
	if span == nil {
		return
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			span.SetAttributes(attr(key, kv[i+1]))
		}
	}
}

// RecordError attaches err to the span and marks it failed. A nil err is a
// no-op so callers can pass their return value unconditionally.
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span successful
func SetOK(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// GetTraceID is the hex trace id of the span in ctx, empty without one
func GetTraceID(ctx context.Context) string {
	if id := trace.SpanContextFromContext(ctx).TraceID(); id.IsValid() {
		return id.String()
	}
	return ""
}

func attr(key string, value any) attribute.KeyValue {
	k := attribute.Key(key)
	switch v := value.(type) {
	case string:
		return k.String(v)
	case bool:
		return k.Bool(v)
	case int:
		return k.Int(v)
	case int64:
		return k.Int64(v)
	case float64:
		return k.Float64(v)
	case []string:
		return k.StringSlice(v)
	case time.Duration:
		return k.Int64(v.Milliseconds())
	case fmt.Stringer:
		return k.String(v.String())
	}
	return k.String(fmt.Sprint(value))
}
