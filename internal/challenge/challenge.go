// Package challenge implements the challenge-response half of a login:
// issuing a random list of words, keeping it until it is answered exactly
// once, and checking a transcript against it.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for unknown or already answered challenges.
	ErrNotFound = errors.New("challenge not found or already used")

	// ErrExpired is returned when a challenge is answered after its deadline.
	ErrExpired = errors.New("challenge expired")
)

// Challenge is a list of words a user must repeat.
type Challenge struct {
	ID        string    `json:"id"`
	Username  string    `json:"username,omitempty"`
	Words     []string  `json:"words"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the challenge can no longer be answered at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Store keeps issued challenges until they are answered.
// Take removes the challenge so it can only be answered once.
type Store interface {
	Put(ctx context.Context, c *Challenge) error
	Take(ctx context.Context, id string) (*Challenge, error)
}

// Issuer draws words and records the resulting challenges.
type Issuer struct {
	sampler Sampler
	store   Store
	size    int
	ttl     time.Duration
	now     func() time.Time
}

// Sampler draws n distinct words.
type Sampler interface {
	Sample(n int) ([]string, error)
}

// NewIssuer creates an Issuer producing challenges of size words valid for ttl.
func NewIssuer(sampler Sampler, store Store, size int, ttl time.Duration) *Issuer {
	return &Issuer{
		sampler: sampler,
		store:   store,
		size:    size,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Issue creates and stores a new challenge. username may be empty when the
// user does not claim an identity up front.
func (i *Issuer) Issue(ctx context.Context, username string) (*Challenge, error) {
	list, err := i.sampler.Sample(i.size)
	if err != nil {
		return nil, fmt.Errorf("sample challenge words: %w", err)
	}

	now := i.now()
	c := &Challenge{
		ID:        uuid.New().String(),
		Username:  username,
		Words:     list,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}
	if err := i.store.Put(ctx, c); err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}
	return c, nil
}

// Redeem takes the challenge out of the store and checks its deadline.
func (i *Issuer) Redeem(ctx context.Context, id string) (*Challenge, error) {
	c, err := i.store.Take(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Expired(i.now()) {
		return c, ErrExpired
	}
	return c, nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu         sync.Mutex
	challenges map[string]*Challenge
	now        func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		challenges: make(map[string]*Challenge),
		now:        time.Now,
	}
}

// Put stores c, replacing any challenge with the same id.
func (s *MemoryStore) Put(_ context.Context, c *Challenge) error {
	if c.ID == "" {
		return errors.New("challenge has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[c.ID] = c
	return nil
}

// Take removes and returns the challenge.
func (s *MemoryStore) Take(_ context.Context, id string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.challenges, id)
	return c, nil
}

// Len returns the number of pending challenges.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

// Sweep drops expired challenges and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, c := range s.challenges {
		if c.Expired(now) {
			delete(s.challenges, id)
			removed++
		}
	}
	return removed
}
