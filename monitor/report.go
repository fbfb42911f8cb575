package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/agentuity/storefront-cache/cache"
	"github.com/google/uuid"
)

// Report is a point in time diagnostic snapshot of a cache and the backend
// it fronts.
type Report struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	TenantID     string          `json:"tenantId"`
	ClientStats  cache.Stats     `json:"clientStats"`
	Metrics      cache.Metrics   `json:"metrics"`
	ServerHealth json.RawMessage `json:"serverHealth"`
	CacheKeys    []cache.KeyInfo `json:"cacheKeys"`
}

// BuildReport snapshots store. health is embedded verbatim; pass nil when the
// backend could not be reached and the report records null.
func BuildReport(ctx context.Context, store *cache.Store, tenantID string, health json.RawMessage, now time.Time) Report {
	if len(health) == 0 {
		health = nil
	}
	return Report{
		ID:           uuid.NewString(),
		Timestamp:    now.UTC(),
		TenantID:     tenantID,
		ClientStats:  store.Stats(ctx),
		Metrics:      store.Metrics(),
		ServerHealth: health,
		CacheKeys:    store.Keys(ctx),
	}
}

// WriteTo writes the report as indented JSON.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	buf, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return 0, err
	}
	n, err := w.Write(append(buf, '\n'))
	return int64(n), err
}

// ReportFilename is the conventional file name for a report of tenantID taken at t.
func ReportFilename(tenantID string, t time.Time) string {
	return fmt.Sprintf("cache-report-%s-%s.json", tenantID, t.UTC().Format(time.DateOnly))
}
