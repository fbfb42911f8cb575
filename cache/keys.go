package cache

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Key namespaces.
const (
	NamespaceTenant    = "tenant"
	NamespaceUser      = "user"
	NamespaceAPI       = "api"
	NamespaceChat      = "chat"
	NamespaceAnalytics = "analytics"
	NamespaceCart      = "cart"
	NamespaceSession   = "session"
)

// KeySeparator joins key segments.
const KeySeparator = ":"

// Key is a structured cache key such as "tenant:42:bootstrap". Keys are built
// by the constructors in this file or by ParseKey; the zero Key is invalid.
type Key struct {
	raw string
}

// String returns the key in its stored form.
func (k Key) String() string { return k.raw }

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool { return k.raw == "" }

// Namespace returns the leading segment of the key.
func (k Key) Namespace() string {
	ns, _, _ := strings.Cut(k.raw, KeySeparator)
	return ns
}

var segmentEscaper = strings.NewReplacer("%", "%25", KeySeparator, "%3A")

// escapeSegment makes an identifier safe to embed as a single key segment,
// so an identifier can never introduce a separator of its own.
func escapeSegment(s string) string {
	return segmentEscaper.Replace(s)
}

func newKey(namespace string, segments ...string) Key {
	var sb strings.Builder
	sb.WriteString(namespace)
	for _, s := range segments {
		sb.WriteString(KeySeparator)
		sb.WriteString(escapeSegment(s))
	}
	return Key{raw: sb.String()}
}

// ParseKey validates a key in stored form: a namespace followed by one or
// more identifier segments, none of them empty.
func ParseKey(raw string) (Key, error) {
	segments := strings.Split(raw, KeySeparator)
	if len(segments) < 2 {
		return Key{}, errors.Wrapf(ErrInvalidKey, "%q has no identifier segment", raw)
	}
	for _, s := range segments {
		if s == "" {
			return Key{}, errors.Wrapf(ErrInvalidKey, "%q has an empty segment", raw)
		}
	}
	return Key{raw: raw}, nil
}

func TenantBootstrap(tenantID string) Key { return newKey(NamespaceTenant, tenantID, "bootstrap") }
func TenantProducts(tenantID string) Key  { return newKey(NamespaceTenant, tenantID, "products") }
func TenantOrders(tenantID string) Key    { return newKey(NamespaceTenant, tenantID, "orders") }
func TenantConfig(tenantID string) Key    { return newKey(NamespaceTenant, tenantID, "config") }
func TenantUsers(tenantID string) Key     { return newKey(NamespaceTenant, tenantID, "users") }

func UserAuth(userID string) Key        { return newKey(NamespaceUser, userID, "auth") }
func UserPermissions(userID string) Key { return newKey(NamespaceUser, userID, "permissions") }

// APIResponse keys a generic API response. Params distinguish calls to the
// same endpoint with different arguments; empty params are omitted.
func APIResponse(endpoint string, params ...string) Key {
	segments := []string{endpoint}
	for _, p := range params {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return newKey(NamespaceAPI, segments...)
}

func ChatMessages(tenantID string) Key { return newKey(NamespaceChat, tenantID, "messages") }

// Analytics keys analytics data for a tenant and reporting period (e.g. "7d").
func Analytics(tenantID, period string) Key { return newKey(NamespaceAnalytics, tenantID, period) }

func Cart(sessionID string) Key    { return newKey(NamespaceCart, sessionID) }
func Session(sessionID string) Key { return newKey(NamespaceSession, sessionID) }

// tenantMatcher matches every tenant-scoped key of tenantID. Tenant-scoped
// keys always begin with "tenant:<id>:", and ids are escaped, so "tenant:1:x"
// never matches tenant "12".
func tenantMatcher(tenantID string) func(key string) bool {
	base := NamespaceTenant + KeySeparator + escapeSegment(tenantID)
	scoped := base + KeySeparator
	return func(key string) bool {
		return key == base || strings.HasPrefix(key, scoped)
	}
}
