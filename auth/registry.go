package auth

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kbukum/oidcrp/auth/oidc"
)

// Registry is a thread-safe set of named authenticators.
//
//	reg, err := auth.Build(ctx, cfg.Auth, oidc.WithHost(store))
//	rp, ok := reg.Get(c.Param("provider"))
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]Authenticator
	defaultName string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Authenticator)}
}

// Build creates one relying party per configured provider. opts are shared
// by all of them; each gets its own name. Providers are built in name order
// and the first failure is returned.
func Build(ctx context.Context, cfg Config, opts ...oidc.Option) (*Registry, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	reg := NewRegistry()
	for _, name := range cfg.Names() {
		rpOpts := append(slices.Clone(opts), oidc.WithName(name))
		rp, err := oidc.New(ctx, cfg.Providers[name], rpOpts...)
		if err != nil {
			return nil, fmt.Errorf("auth.providers.%s: %w", name, err)
		}
		if err := reg.Register(rp); err != nil {
			return nil, err
		}
	}
	if err := reg.SetDefault(cfg.Default); err != nil {
		return nil, err
	}
	return reg, nil
}

// Register adds a. The first authenticator registered becomes the default.
func (r *Registry) Register(a Authenticator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := a.Name()
	if _, ok := r.providers[name]; ok {
		return fmt.Errorf("auth: provider %q already registered", name)
	}
	r.providers[name] = a
	if r.defaultName == "" {
		r.defaultName = name
	}
	return nil
}

// Get returns the authenticator registered under name.
func (r *Registry) Get(name string) (Authenticator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.providers[name]
	return a, ok
}

// MustGet is Get that panics on unknown names.
func (r *Registry) MustGet(name string) Authenticator {
	a, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("auth: provider %q not registered", name))
	}
	return a
}

// Default returns the default authenticator.
func (r *Registry) Default() (Authenticator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultName == "" {
		return nil, false
	}
	a, ok := r.providers[r.defaultName]
	return a, ok
}

// SetDefault sets the default provider. The name must already be registered.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("auth: provider %q not registered", name)
	}
	r.defaultName = name
	return nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
