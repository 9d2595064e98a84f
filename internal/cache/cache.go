// Package cache provides the keyed, TTL-bound cache the metrics engine
// reads through. Implementations are injected; nothing here holds
// process-wide state.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// Cache stores opaque values by key with a per-entry TTL.
type Cache interface {
	// Get returns the value and true on a hit. A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MatterKey is the cache key for a matter's aggregated metrics.
func MatterKey(matterID string) string {
	return "metrics:matter:" + matterID
}

// ProfileKey is the cache key for a profile's aggregated metrics.
func ProfileKey(profileID string) string {
	return "metrics:profile:" + profileID
}

// OverviewKey is the cache key for a profile's portfolio overview.
func OverviewKey(profileID string) string {
	return "metrics:overview:" + profileID
}

// GetJSON decodes a cached JSON value into dst. It reports false on a miss.
func GetJSON(ctx context.Context, c Cache, key string, dst any) (bool, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, eris.Wrapf(err, "cache: decode %s", key)
	}
	return true, nil
}

// SetJSON encodes v as JSON and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "cache: encode %s", key)
	}
	return c.Set(ctx, key, raw, ttl)
}

// Nop is a Cache that never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Delete(context.Context, string) error { return nil }
