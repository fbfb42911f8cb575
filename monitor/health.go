package monitor

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Health statuses reported by the backend.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// Health is the backend health payload.
type Health struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp,omitempty"`
	Services  HealthServices `json:"services"`
	Cache     HealthCache    `json:"cache"`
	Uptime    int64          `json:"uptime"`
}

type HealthServices struct {
	MongoDB string `json:"mongodb"`
	Redis   string `json:"redis"`
}

// HealthCache describes the backend's own cache.
type HealthCache struct {
	MemoryEntries  int    `json:"memoryEntries"`
	RedisConnected bool   `json:"redisConnected"`
	TotalKeys      *int   `json:"totalKeys,omitempty"`
	UsedMemory     string `json:"usedMemory,omitempty"`
}

// Healthy reports whether the backend considers itself fully up.
func (h Health) Healthy() bool {
	return h.Status == StatusOK
}

// DecodeHealth parses a health payload. Reports keep the raw payload; this is
// for callers that want to display it.
func DecodeHealth(raw json.RawMessage) (Health, error) {
	var h Health
	if err := json.Unmarshal(raw, &h); err != nil {
		return Health{}, errors.Wrap(err, "decode health payload")
	}
	return h, nil
}
