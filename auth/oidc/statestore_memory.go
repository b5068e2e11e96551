package oidc

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStateStore keeps states in process memory. It suits a single
// instance; use RedisStateStore when several instances share callbacks.
type MemoryStateStore struct {
	mu    sync.Mutex
	cache *gocache.Cache
	opts  storeOptions
}

// NewMemoryStateStore creates an empty store. Cleanup runs through Sweep.
func NewMemoryStateStore(opts ...StoreOption) *MemoryStateStore {
	return &MemoryStateStore{
		cache: gocache.New(gocache.NoExpiration, 0),
		opts:  newStoreOptions(opts),
	}
}

// Issue creates and stores a fresh state.
func (s *MemoryStateStore) Issue(_ context.Context, ttl time.Duration, opts ...IssueOption) (*AuthRequestState, error) {
	for {
		st, err := newAuthRequestState(s.opts.now(), ttl, opts)
		if err != nil {
			return nil, err
		}
		// Add fails only on a collision, which 256 random bits make academic.
		if err := s.cache.Add(st.Value, *st, ttl+s.opts.grace); err == nil {
			return st, nil
		}
	}
}

// Consume removes and returns the state for value.
func (s *MemoryStateStore) Consume(ctx context.Context, value string) (*AuthRequestState, error) {
	s.mu.Lock()
	item, ok := s.cache.Get(value)
	if ok {
		s.cache.Delete(value)
	}
	s.mu.Unlock()

	if !ok {
		logRejectedState(ctx, s.opts.log, value, ErrStateNotFound)
		return nil, ErrStateNotFound
	}
	st := item.(AuthRequestState)
	if st.Expired(s.opts.now()) {
		logRejectedState(ctx, s.opts.log, value, ErrStateExpired)
		return nil, ErrStateExpired
	}
	return &st, nil
}

// Sweep drops every record past its TTL plus the grace period. Records
// inside the grace period stay so a late callback reports ErrStateExpired.
func (s *MemoryStateStore) Sweep(context.Context) (int, error) {
	now := s.opts.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.cache.ItemCount()
	s.cache.DeleteExpired()
	for key, item := range s.cache.Items() {
		if st, ok := item.Object.(AuthRequestState); ok && now.After(st.ExpiresAt().Add(s.opts.grace)) {
			s.cache.Delete(key)
		}
	}
	return before - s.cache.ItemCount(), nil
}

// Len reports the number of stored records, expired or not.
func (s *MemoryStateStore) Len() int {
	return s.cache.ItemCount()
}
