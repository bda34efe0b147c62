package verification

import (
	"context"
	"errors"
	"sync"
	"time"
)

type cacheEntry struct {
	code      Code
	expiresAt time.Time
}

// CachedStore is a cache-aside layer over a shared Store. Get is served
// locally while the entry is fresh, which only feeds the resend cooldown.
// Consume and Delete always reach the backend, so codes are never checked
// against a copy another instance may have superseded.
type CachedStore struct {
	backend Store
	maxAge  time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCachedStore caches backend reads for at most maxAge.
func NewCachedStore(backend Store, maxAge time.Duration) *CachedStore {
	return &CachedStore{
		backend: backend,
		maxAge:  maxAge,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (s *CachedStore) Save(ctx context.Context, phone string, code Code, ttl time.Duration) error {
	if err := s.backend.Save(ctx, phone, code, ttl); err != nil {
		return err
	}
	s.put(phone, code, ttl)
	return nil
}

func (s *CachedStore) Get(ctx context.Context, phone string) (Code, error) {
	s.mu.Lock()
	entry, ok := s.entries[phone]
	if ok && !s.now().Before(entry.expiresAt) {
		delete(s.entries, phone)
		ok = false
	}
	s.mu.Unlock()
	if ok {
		return entry.code, nil
	}

	code, err := s.backend.Get(ctx, phone)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			s.evict(phone)
		}
		return Code{}, err
	}
	s.put(phone, code, s.maxAge)
	return code, nil
}

func (s *CachedStore) Consume(ctx context.Context, phone, candidate string, maxAttempts int) error {
	s.evict(phone)
	return s.backend.Consume(ctx, phone, candidate, maxAttempts)
}

func (s *CachedStore) Delete(ctx context.Context, phone string) (bool, error) {
	s.evict(phone)
	return s.backend.Delete(ctx, phone)
}

// Purge drops locally cached entries that have expired and returns how many
// were removed.
func (s *CachedStore) Purge() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for phone, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, phone)
			n++
		}
	}
	return n
}

func (s *CachedStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *CachedStore) put(phone string, code Code, ttl time.Duration) {
	if ttl > s.maxAge {
		ttl = s.maxAge
	}
	s.mu.Lock()
	s.entries[phone] = cacheEntry{code: code, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
}

func (s *CachedStore) evict(phone string) {
	s.mu.Lock()
	delete(s.entries, phone)
	s.mu.Unlock()
}
