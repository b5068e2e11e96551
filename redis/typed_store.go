package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// TypedStore stores JSON-encoded values of type V under a key prefix.
type TypedStore[V any] struct {
	client *Client
	prefix string
}

// NewTypedStore creates a store whose keys are "<client prefix>:<name>:<key>".
func NewTypedStore[V any](client *Client, name string) *TypedStore[V] {
	prefix := name
	if p := client.cfg.KeyPrefix; p != "" {
		prefix = p + ":" + name
	}
	return &TypedStore[V]{client: client, prefix: prefix}
}

func (s *TypedStore[V]) fullKey(key string) string {
	return s.prefix + ":" + key
}

// SaveNew stores val only if key is unused. It reports false on collision.
func (s *TypedStore[V]) SaveNew(ctx context.Context, key string, val *V, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(val)
	if err != nil {
		return false, fmt.Errorf("typed store marshal %q: %w", key, err)
	}
	ok, err := s.client.SetNX(ctx, s.fullKey(key), data, ttl)
	if err != nil {
		return false, fmt.Errorf("typed store save %q: %w", key, err)
	}
	return ok, nil
}

// Take atomically loads and deletes key. Concurrent callers racing for the
// same key see the value at most once; the losers get nil.
func (s *TypedStore[V]) Take(ctx context.Context, key string) (*V, error) {
	raw, err := s.client.GetDel(ctx, s.fullKey(key))
	if IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("typed store take %q: %w", key, err)
	}
	return decode[V](key, raw)
}

func decode[V any](key, raw string) (*V, error) {
	var v V
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("typed store unmarshal %q: %w", key, err)
	}
	return &v, nil
}
