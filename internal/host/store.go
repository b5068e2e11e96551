package host

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/oidcrp/auth/oidc"
	"github.com/kbukum/oidcrp/encryption"
	"github.com/kbukum/oidcrp/logger"
)

// Account is a local user record.
type Account struct {
	Ref             oidc.LocalRef `json:"ref"`
	Provider        string        `json:"provider"`
	Subject         string        `json:"sub,omitempty"`
	SubjectIdentity string        `json:"identity"`
	DisplayName     string        `json:"display_name"`
	Email           string        `json:"email"`
	Nickname        string        `json:"nickname"`
	CreatedAt       time.Time     `json:"created_at"`
	LastLoginAt     time.Time     `json:"last_login_at"`
}

// Store is an in-memory oidc.Host. Accounts are indexed by subject identity.
// Tokens are kept as JSON, sealed to their account when a sealer is set.
type Store struct {
	mu         sync.RWMutex
	accounts   map[oidc.LocalRef]*Account
	byIdentity map[string]oidc.LocalRef
	tokens     map[oidc.LocalRef]string
	sealer     *encryption.Sealer
	now        func() time.Time
	log        *logger.Logger
}

// StoreOption configures NewStore.
type StoreOption func(*Store)

// WithTokenSealer encrypts stored tokens at rest.
func WithTokenSealer(s *encryption.Sealer) StoreOption {
	return func(st *Store) { st.sealer = s }
}

var (
	_ oidc.Host            = (*Store)(nil)
	_ oidc.IdentityRemover = (*Store)(nil)
)

// NewStore creates an empty store.
func NewStore(log *logger.Logger, opts ...StoreOption) *Store {
	if log == nil {
		log = logger.Nop()
	}
	s := &Store{
		accounts:   make(map[oidc.LocalRef]*Account),
		byIdentity: make(map[string]oidc.LocalRef),
		tokens:     make(map[oidc.LocalRef]string),
		now:        time.Now,
		log:        log.WithComponent("accounts"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddAccount seeds a pre-existing account, e.g. one that is later linked to
// a provider subject on first login.
func (s *Store) AddAccount(identity, displayName string) oidc.LocalRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := oidc.LocalRef(uuid.NewString())
	s.accounts[ref] = &Account{Ref: ref, SubjectIdentity: identity, DisplayName: displayName, CreatedAt: s.now()}
	s.byIdentity[identity] = ref
	return ref
}

// Account returns a copy of the account stored under ref.
func (s *Store) Account(ref oidc.LocalRef) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[ref]
	if !ok {
		return Account{}, false
	}
	return *a, true
}

func (s *Store) FindLocalIdentity(_ context.Context, subjectIdentity string) (*oidc.LocalIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.byIdentity[subjectIdentity]
	if !ok {
		return nil, nil
	}
	return &oidc.LocalIdentity{Ref: ref, Subject: s.accounts[ref].Subject}, nil
}

func (s *Store) CreateLocalIdentity(_ context.Context, id *oidc.ResolvedIdentity) (oidc.LocalRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byIdentity[id.SubjectIdentity]; ok {
		return "", fmt.Errorf("accounts: identity %q already exists", id.SubjectIdentity)
	}
	now := s.now()
	ref := oidc.LocalRef(uuid.NewString())
	a := &Account{Ref: ref, CreatedAt: now}
	apply(a, id, now)
	s.accounts[ref] = a
	s.byIdentity[id.SubjectIdentity] = ref
	s.log.Info("account created", logger.Fields("ref", string(ref), logger.FieldProvider, id.Provider))
	return ref, nil
}

// UpdateLocalIdentity refreshes the profile and binds the provider subject
// when the account was linked.
func (s *Store) UpdateLocalIdentity(_ context.Context, ref oidc.LocalRef, id *oidc.ResolvedIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[ref]
	if !ok {
		return fmt.Errorf("accounts: unknown ref %s", ref)
	}
	if a.SubjectIdentity != id.SubjectIdentity {
		delete(s.byIdentity, a.SubjectIdentity)
		s.byIdentity[id.SubjectIdentity] = ref
	}
	apply(a, id, s.now())
	return nil
}

func apply(a *Account, id *oidc.ResolvedIdentity, now time.Time) {
	a.Provider = id.Provider
	a.Subject = id.Subject
	a.SubjectIdentity = id.SubjectIdentity
	a.DisplayName = id.DisplayName
	a.Email = id.Email
	a.Nickname = id.Nickname
	a.LastLoginAt = now
}

func (s *Store) StoreTokens(_ context.Context, ref oidc.LocalRef, tokens *oidc.TokenResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[ref]; !ok {
		return fmt.Errorf("accounts: unknown ref %s", ref)
	}
	raw, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("accounts: encode tokens: %w", err)
	}
	entry := string(raw)
	if s.sealer != nil {
		if entry, err = s.sealer.Seal(raw, []byte(ref)); err != nil {
			return err
		}
	}
	s.tokens[ref] = entry
	return nil
}

func (s *Store) LoadTokens(_ context.Context, ref oidc.LocalRef) (*oidc.TokenResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.tokens[ref]
	if !ok {
		return nil, nil
	}
	raw := []byte(entry)
	if s.sealer != nil {
		var err error
		if raw, err = s.sealer.Open(entry, []byte(ref)); err != nil {
			return nil, fmt.Errorf("accounts: tokens of %s: %w", ref, err)
		}
	}
	var tokens oidc.TokenResponse
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, fmt.Errorf("accounts: decode tokens: %w", err)
	}
	return &tokens, nil
}

func (s *Store) DeleteLocalIdentity(_ context.Context, ref oidc.LocalRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[ref]
	if !ok {
		return nil
	}
	delete(s.byIdentity, a.SubjectIdentity)
	delete(s.accounts, ref)
	delete(s.tokens, ref)
	s.log.Warn("account removed", logger.Fields("ref", string(ref)))
	return nil
}
