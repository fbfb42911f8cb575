package logger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

type memoryExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *memoryExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *memoryExporter) Shutdown(context.Context) error   { return nil }
func (e *memoryExporter) ForceFlush(context.Context) error { return nil }

func TestOtelLogger(t *testing.T) {
	exp := &memoryExporter{}
	lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))
	t.Cleanup(func() { lp.Shutdown(context.Background()) })

	l := NewOtelLogger(lp.Logger("test"), LevelDebug)
	l.Trace("dropped")
	l.WithPrefix("[cache]").With(map[string]interface{}{"tenant": "42"}).Warn("persist failed for %s", "tenant:42:bootstrap")

	exp.mu.Lock()
	defer exp.mu.Unlock()
	require.Len(t, exp.records, 1)
	r := exp.records[0]
	assert.Equal(t, "[cache] persist failed for tenant:42:bootstrap", r.Body().AsString())
	assert.Equal(t, log.SeverityWarn, r.Severity())

	attrs := map[string]string{}
	r.WalkAttributes(func(kv log.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	assert.Equal(t, map[string]string{"tenant": "42"}, attrs)
}

func TestOtelLoggerWithMergesMetadata(t *testing.T) {
	base := NewOtelLogger(noop.NewLoggerProvider().Logger("test"), LevelTrace).With(map[string]interface{}{
		"tenant": "42",
		"tier":   "memory",
	})
	extended := base.With(map[string]interface{}{"tier": "storage", "entries": 3}).(*otelLogger)

	assert.Len(t, extended.metadata, 3)
	assert.Equal(t, "42", extended.metadata["tenant"].AsString())
	assert.Equal(t, "storage", extended.metadata["tier"].AsString())
	assert.Equal(t, int64(3), extended.metadata["entries"].AsInt64())
	assert.Equal(t, "memory", base.(*otelLogger).metadata["tier"].AsString(), "parent is unchanged")
}
