package oidc

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/oidcrp/redis"
)

// RedisStateStore shares states between instances. Consume relies on GETDEL,
// so single use holds across processes.
type RedisStateStore struct {
	store *redis.TypedStore[AuthRequestState]
	opts  storeOptions
}

// NewRedisStateStore stores states under "<prefix>:oidc_state:<value>".
func NewRedisStateStore(client *redis.Client, opts ...StoreOption) *RedisStateStore {
	return &RedisStateStore{
		store: redis.NewTypedStore[AuthRequestState](client, "oidc_state"),
		opts:  newStoreOptions(opts),
	}
}

// Issue creates and stores a fresh state. Keys expire at TTL + grace.
func (s *RedisStateStore) Issue(ctx context.Context, ttl time.Duration, opts ...IssueOption) (*AuthRequestState, error) {
	for {
		st, err := newAuthRequestState(s.opts.now(), ttl, opts)
		if err != nil {
			return nil, err
		}
		ok, err := s.store.SaveNew(ctx, st.Value, st, ttl+s.opts.grace)
		if err != nil {
			return nil, fmt.Errorf("oidc: issue state: %w", err)
		}
		if ok {
			return st, nil
		}
	}
}

// Consume atomically takes the state for value.
func (s *RedisStateStore) Consume(ctx context.Context, value string) (*AuthRequestState, error) {
	st, err := s.store.Take(ctx, value)
	if err != nil {
		return nil, fmt.Errorf("oidc: consume state: %w", err)
	}
	if st == nil {
		logRejectedState(ctx, s.opts.log, value, ErrStateNotFound)
		return nil, ErrStateNotFound
	}
	if st.Expired(s.opts.now()) {
		logRejectedState(ctx, s.opts.log, value, ErrStateExpired)
		return nil, ErrStateExpired
	}
	return st, nil
}

// Sweep is a no-op; Redis expires keys itself.
func (s *RedisStateStore) Sweep(context.Context) (int, error) {
	return 0, nil
}
