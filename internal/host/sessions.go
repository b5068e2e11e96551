package host

import (
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/kbukum/oidcrp/auth/authctx"
)

// Sessions maps browser session ids to principals. Entries expire a fixed
// TTL after creation.
type Sessions struct {
	cache *gocache.Cache
}

// NewSessions creates a session table whose entries live for ttl.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{cache: gocache.New(ttl, ttl)}
}

// Create stores p under a fresh random id.
func (s *Sessions) Create(p *authctx.Principal) string {
	id := uuid.NewString()
	s.cache.SetDefault(id, p)
	return id
}

func (s *Sessions) Get(id string) (*authctx.Principal, bool) {
	if id == "" {
		return nil, false
	}
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	p, ok := v.(*authctx.Principal)
	return p, ok
}

func (s *Sessions) Delete(id string) { s.cache.Delete(id) }
