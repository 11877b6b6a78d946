package storage

import (
	"strings"
	"sync"

	"github.com/patrickmn/go-cache"
)

// MemoryStore is a map-backed KeyValueStore. With MaxBytes set it
// enforces a byte budget and fails writes with ErrQuotaExceeded, which
// makes it useful both as a lightweight backend and as a stand-in for a
// quota-limited store in tests.
type MemoryStore struct {
	cache    *cache.Cache
	maxBytes int64
	mu       sync.Mutex
}

type MemoryStoreConfig struct {
	// MaxBytes caps the combined size of keys and values. Zero means
	// unlimited.
	MaxBytes int64
}

func NewMemoryStore(cfg MemoryStoreConfig) *MemoryStore {
	return &MemoryStore{
		cache:    cache.New(cache.NoExpiration, cache.NoExpiration),
		maxBytes: cfg.MaxBytes,
	}
}

func (s *MemoryStore) Get(key string) (string, error) {
	value, found := s.cache.Get(key)

	if !found {
		return "", ErrKeyNotFound
	}

	return value.(string), nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxBytes > 0 {
		used := s.usedBytes()

		if existing, found := s.cache.Get(key); found {
			used -= int64(len(key) + len(existing.(string)))
		}

		if used+int64(len(key)+len(value)) > s.maxBytes {
			return ErrQuotaExceeded
		}
	}

	s.cache.Set(key, value, cache.NoExpiration)
	return nil
}

func (s *MemoryStore) Remove(key string) error {
	s.cache.Delete(key)
	return nil
}

func (s *MemoryStore) Keys(prefix string) ([]string, error) {
	items := s.cache.Items()
	keys := make([]string, 0, len(items))

	for key := range items {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) usedBytes() int64 {
	var used int64

	for key, item := range s.cache.Items() {
		used += int64(len(key) + len(item.Object.(string)))
	}

	return used
}
