package store

import (
	"context"
	"time"
)

// Namespaces used by the engine. Values are JSON-serializable maps; no
// schema is enforced beyond that.
const (
	NamespaceUserFeatures = "user_features"
	NamespaceItemFeatures = "item_features"
	NamespaceSessions     = "sessions"
	NamespaceSignals      = "signals"
	NamespaceAggregates   = "aggregates"
)

// FeatureStore is the key-value access contract every component consumes.
// Operations are atomic per key; concurrent access by unrelated users
// needs no additional locking.
type FeatureStore interface {
	Get(ctx context.Context, namespace, key string) (map[string]interface{}, error)
	Set(ctx context.Context, namespace, key string, value map[string]interface{}, ttl time.Duration) error
	Delete(ctx context.Context, namespace, key string) error
	Ping(ctx context.Context) error
}
