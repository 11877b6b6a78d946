package storage

import "errors"

var (
	// ErrKeyNotFound is returned by Get for absent keys.
	ErrKeyNotFound = errors.New("key not found")
	// ErrQuotaExceeded is how adapters report their native capacity
	// failures (SQLITE_FULL, Redis OOM, explicit byte budgets).
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrStoreUnavailable is returned when the backing store cannot be
	// reached at all.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// KeyValueStore is the synchronous save/load/remove contract the
// persistence gateway wraps. Implementations are expected to return
// quickly; the gateway imposes no timeouts.
type KeyValueStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
	Keys(prefix string) ([]string, error)
	Close() error
}
