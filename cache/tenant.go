package cache

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ClearTenant removes every tenant scoped key of tenantID from both tiers and
// returns how many entries were removed. Keys of other namespaces that merely
// mention the id (chat, analytics) are left alone.
func (s *Store) ClearTenant(ctx context.Context, tenantID string) int {
	ctx, span := s.tracer.Start(ctx, "cache.clear_tenant", trace.WithAttributes(attribute.String("cache.tenant", tenantID)))
	defer span.End()

	match := tenantMatcher(tenantID)
	var removed int
	if s.storage != nil {
		// narrow the scan, the matcher makes the final call
		scan := s.storageKey(NamespaceTenant + KeySeparator + escapeSegment(tenantID))
		keys, err := s.storage.Keys(ctx, scan)
		if err != nil {
			s.log.Warn("clear tenant %s: listing storage failed: %s", tenantID, err)
			span.RecordError(err)
		}
		for _, sk := range keys {
			if !match(strings.TrimPrefix(sk, s.cfg.prefix)) {
				continue
			}
			if err := s.storage.Delete(ctx, sk); err != nil {
				s.log.Warn("clear tenant %s: delete %s failed: %s", tenantID, sk, err)
				continue
			}
			removed++
		}
	}
	// memory last, see Delete
	removed += s.memory.deleteWhere(func(key string, _ Entry) bool {
		return match(key)
	})

	span.SetAttributes(attribute.Int("cache.removed", removed))
	s.log.Debug("cleared %d entries for tenant %s", removed, tenantID)
	return removed
}

// Data kinds understood by InvalidateData.
const (
	InvalidateProducts     = "products"
	InvalidateOrders       = "orders"
	InvalidateChatMessages = "chat_messages"
)

// InvalidateData drops cached data after a tenant write. With an empty
// dataType the whole tenant is cleared. Otherwise the tenant bootstrap is
// dropped together with the key for dataType; unknown kinds only drop the
// bootstrap.
func (s *Store) InvalidateData(ctx context.Context, tenantID, dataType string) {
	if dataType == "" {
		s.ClearTenant(ctx, tenantID)
		return
	}
	s.Delete(ctx, TenantBootstrap(tenantID))
	switch dataType {
	case InvalidateProducts:
		s.Delete(ctx, TenantProducts(tenantID))
	case InvalidateOrders:
		s.Delete(ctx, TenantOrders(tenantID))
	case InvalidateChatMessages:
		s.Delete(ctx, ChatMessages(tenantID))
	}
	s.log.Debug("invalidated %s for tenant %s", dataType, tenantID)
}
