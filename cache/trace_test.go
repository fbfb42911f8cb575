package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStoreSpans(t *testing.T) {
	ctx := context.Background()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(ctx)

	s, _ := newTestStore(t, WithStorage(NewMapStorage()), WithTracerProvider(tp))
	require.NoError(t, s.Set(ctx, TenantOrders("3"), "o", time.Minute))
	s.Get(ctx, TenantOrders("3"))
	s.Get(ctx, TenantOrders("4"))
	s.ClearTenant(ctx, "3")
	s.Sweep(ctx)

	spans := sr.Ended()
	require.Len(t, spans, 5)
	names := make([]string, len(spans))
	for i, span := range spans {
		names[i] = span.Name()
	}
	assert.Equal(t, []string{"cache.set", "cache.get", "cache.get", "cache.clear_tenant", "cache.sweep"}, names)

	tiers := []string{}
	for _, span := range spans[1:3] {
		for _, kv := range span.Attributes() {
			if kv.Key == "cache.tier" {
				tiers = append(tiers, kv.Value.AsString())
			}
		}
	}
	assert.Equal(t, []string{TierMemory, "miss"}, tiers)
}
