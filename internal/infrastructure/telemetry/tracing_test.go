package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/realty/backend/internal/infrastructure/telemetry"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(s sdktrace.ReadOnlySpan) map[string]string {
	out := make(map[string]string)
	for _, kv := range s.Attributes() {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestStartSpan(t *testing.T) {
	sr := recordSpans(t)

	ctx, span := telemetry.StartSpan(context.Background(), "property_search.search",
		telemetry.WithAttribute(telemetry.SpanAttrResultSize, 12),
		telemetry.WithSpanKind(trace.SpanKindServer),
	)
	assert.NotEmpty(t, telemetry.GetTraceID(ctx))
	span.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "property_search.search", ended[0].Name())
	assert.Equal(t, trace.SpanKindServer, ended[0].SpanKind())
	assert.Equal(t, "12", attrMap(ended[0])[telemetry.SpanAttrResultSize])
}

func TestStartServiceSpan(t *testing.T) {
	sr := recordSpans(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "idx_sync", "start")
	span.End()

	require.Len(t, sr.Ended(), 1)
	assert.Equal(t, "idx_sync.start", sr.Ended()[0].Name())
}

func TestSetAttributes(t *testing.T) {
	sr := recordSpans(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSyncType, "full",
		telemetry.SpanAttrCacheHit, true,
		42, "ignored key",
		"dangling",
	)
	span.End()

	attrs := attrMap(sr.Ended()[0])
	assert.Equal(t, "full", attrs[telemetry.SpanAttrSyncType])
	assert.Equal(t, "true", attrs[telemetry.SpanAttrCacheHit])
	assert.NotContains(t, attrs, "dangling")
	assert.Len(t, attrs, 2)
}

func TestRecordErrorAndSetOK(t *testing.T) {
	sr := recordSpans(t)

	_, failed := telemetry.StartSpan(context.Background(), "failed")
	telemetry.RecordError(failed, errors.New("boom"))
	failed.End()

	_, ok := telemetry.StartSpan(context.Background(), "ok")
	telemetry.RecordError(ok, nil)
	telemetry.SetOK(ok)
	ok.End()

	ended := sr.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "boom", ended[0].Status().Description)
	assert.Equal(t, codes.Ok, ended[1].Status().Code)
}

func TestNilSpanHelpers(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.RecordError(nil, errors.New("x"))
		telemetry.SetOK(nil)
	})
	assert.Empty(t, telemetry.GetTraceID(context.Background()))
}
