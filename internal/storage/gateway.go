package storage

import (
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"taskvault/internal/apperr"
	"taskvault/internal/shared"
)

// Namespaced keys the repositories persist under. Tasks and projects are
// essential and never evicted by quota cleanup.
const (
	TasksKey    = "tasks"
	ProjectsKey = "projects"
	SettingsKey = "settings"
)

const (
	probeKey      = "__storage_probe__"
	defaultPrefix = "taskvault:"
	// evictionShare caps quota cleanup at a quarter of the evictable keys.
	evictionShare = 0.25
)

type ErrorHandler func(op, key string, err error)

type QuotaHandler func(key string)

type GatewayConfig struct {
	Prefix  string
	Logger  *zap.Logger
	Metrics *shared.StorageMetrics
}

// Gateway wraps a synchronous KeyValueStore with availability detection,
// quota handling, and a transparent in-memory fallback. Callers never see
// raw keys; everything is scoped under the configured prefix.
//
// States: normal (writes hit the store), quota-exceeded (transient,
// cleared on the next successful write), and fallback (sticky until
// MigrateBackToStore succeeds).
type Gateway struct {
	store   KeyValueStore
	prefix  string
	logger  *zap.Logger
	metrics *shared.StorageMetrics

	mu            sync.Mutex
	available     bool
	usingFallback bool
	quotaExceeded bool
	fallback      *cache.Cache
	errorHandlers []ErrorHandler
	quotaHandlers []QuotaHandler
}

func NewGateway(store KeyValueStore, cfg GatewayConfig) *Gateway {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Gateway{
		store:    store,
		prefix:   prefix,
		logger:   logger,
		metrics:  cfg.Metrics,
		fallback: cache.New(cache.NoExpiration, cache.NoExpiration),
	}

	g.available = g.probe()

	if !g.available {
		g.usingFallback = true
		g.metrics.SetFallbackActive(true)
		g.logger.Warn("durable store unavailable, starting on in-memory fallback",
			zap.String("prefix", g.prefix))
	}

	return g
}

// probe detects availability once, with a destructive write+remove. All
// later operations consult the cached result.
func (g *Gateway) probe() bool {
	if g.store == nil {
		return false
	}

	key := g.prefix + probeKey

	if err := g.store.Set(key, "1"); err != nil {
		return false
	}

	if err := g.store.Remove(key); err != nil {
		return false
	}

	return true
}

func (g *Gateway) OnError(handler ErrorHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errorHandlers = append(g.errorHandlers, handler)
}

func (g *Gateway) OnQuotaExceeded(handler QuotaHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.quotaHandlers = append(g.quotaHandlers, handler)
}

// Save persists a value under the namespaced key. A nil return means the
// data is retained, either durably or in the fallback store when the
// durable write could not be completed. Only a total failure returns an
// error.
func (g *Gateway) Save(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return apperr.NewStorageError("save", key, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	full := g.prefix + key

	if !g.available || g.usingFallback {
		g.fallback.Set(full, string(data), cache.NoExpiration)
		g.metrics.RecordSave("fallback")
		return nil
	}

	err = g.store.Set(full, string(data))

	if err == nil {
		g.quotaExceeded = false
		g.metrics.RecordSave("ok")
		return nil
	}

	if errors.Is(err, ErrQuotaExceeded) {
		g.saveOverQuotaLocked(key, full, string(data))
		return nil
	}

	g.reportErrorLocked("save", key, err)

	// One retry for transient failures before giving up on durability.
	if retryErr := g.store.Set(full, string(data)); retryErr == nil {
		g.quotaExceeded = false
		g.metrics.RecordSave("ok")
		return nil
	}

	g.switchToFallbackLocked("durable write failed twice")
	g.fallback.Set(full, string(data), cache.NoExpiration)
	g.metrics.RecordSave("fallback")
	return nil
}

// saveOverQuotaLocked runs the quota path: cleanup, one retry, then
// fallback. The data is never dropped.
func (g *Gateway) saveOverQuotaLocked(key, full, data string) {
	g.quotaExceeded = true
	g.metrics.RecordQuotaEvent()

	for _, handler := range g.quotaHandlers {
		handler(key)
	}

	evicted := g.cleanupLocked()
	g.logger.Warn("storage quota exceeded, cleaned up and retrying",
		zap.String("key", key),
		zap.Int("evicted", evicted))

	if err := g.store.Set(full, data); err == nil {
		g.quotaExceeded = false
		g.metrics.RecordSave("ok")
		return
	}

	g.switchToFallbackLocked("quota retry failed")
	g.fallback.Set(full, data, cache.NoExpiration)
	g.metrics.RecordSave("fallback")
}

// cleanupLocked evicts up to a quarter of the non-essential keys under
// the prefix, largest values first. Task and project collections are
// protected.
func (g *Gateway) cleanupLocked() int {
	keys, err := g.store.Keys(g.prefix)
	if err != nil {
		g.reportErrorLocked("cleanup", "", err)
		return 0
	}

	type sizedKey struct {
		key  string
		size int
	}

	candidates := make([]sizedKey, 0, len(keys))

	for _, key := range keys {
		base := strings.TrimPrefix(key, g.prefix)
		if base == TasksKey || base == ProjectsKey || base == probeKey {
			continue
		}

		value, err := g.store.Get(key)
		if err != nil {
			continue
		}

		candidates = append(candidates, sizedKey{key: key, size: len(value)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].size > candidates[j].size
	})

	limit := int(math.Ceil(float64(len(candidates)) * evictionShare))
	evicted := 0

	for i := 0; i < limit && i < len(candidates); i++ {
		if err := g.store.Remove(candidates[i].key); err == nil {
			evicted++
		}
	}

	g.metrics.RecordEvictions(evicted)
	return evicted
}

// Load reads a value into dest and reports whether it was found. Store
// errors degrade to the fallback (or a miss) and are routed to the
// registered error handlers rather than the caller.
func (g *Gateway) Load(key string, dest any) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	full := g.prefix + key

	if !g.available || g.usingFallback {
		return g.loadFallbackLocked(full, key, dest)
	}

	value, err := g.store.Get(full)

	if errors.Is(err, ErrKeyNotFound) {
		g.metrics.RecordLoad("miss")
		return false
	}

	if err != nil {
		g.reportErrorLocked("load", key, err)
		return g.loadFallbackLocked(full, key, dest)
	}

	if err := json.Unmarshal([]byte(value), dest); err != nil {
		g.reportErrorLocked("load", key, err)
		g.metrics.RecordLoad("error")
		return false
	}

	g.metrics.RecordLoad("hit")
	return true
}

func (g *Gateway) loadFallbackLocked(full, key string, dest any) bool {
	value, found := g.fallback.Get(full)
	if !found {
		g.metrics.RecordLoad("miss")
		return false
	}

	if err := json.Unmarshal([]byte(value.(string)), dest); err != nil {
		g.reportErrorLocked("load", key, err)
		g.metrics.RecordLoad("error")
		return false
	}

	g.metrics.RecordLoad("fallback")
	return true
}

func (g *Gateway) Remove(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	full := g.prefix + key
	g.fallback.Delete(full)

	if !g.available {
		return nil
	}

	if err := g.store.Remove(full); err != nil {
		g.reportErrorLocked("remove", key, err)
		return apperr.NewStorageError("remove", key, err)
	}

	return nil
}

// Clear wipes every key under the prefix from both the durable store and
// the fallback map.
func (g *Gateway) Clear() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.clearLocked()
}

func (g *Gateway) clearLocked() error {
	for key := range g.fallback.Items() {
		if strings.HasPrefix(key, g.prefix) {
			g.fallback.Delete(key)
		}
	}

	if !g.available {
		return nil
	}

	keys, err := g.store.Keys(g.prefix)
	if err != nil {
		g.reportErrorLocked("clear", "", err)
		return apperr.NewStorageError("clear", "", err)
	}

	for _, key := range keys {
		if err := g.store.Remove(key); err != nil {
			g.reportErrorLocked("clear", strings.TrimPrefix(key, g.prefix), err)
		}
	}

	return nil
}

// ForceReset is the nuclear option behind force recovery: wipe the
// namespace everywhere and drop all transient state flags.
func (g *Gateway) ForceReset() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.clearLocked(); err != nil {
		return err
	}

	g.quotaExceeded = false

	if g.available {
		g.usingFallback = false
		g.metrics.SetFallbackActive(false)
	}

	g.logger.Info("storage forcibly reset", zap.String("prefix", g.prefix))
	return nil
}

// switchToFallbackLocked enters the sticky fallback state, best-effort
// migrating readable keys from the durable store into memory first.
func (g *Gateway) switchToFallbackLocked(reason string) {
	if g.usingFallback {
		return
	}

	g.usingFallback = true
	g.metrics.SetFallbackActive(true)

	migrated := 0

	if keys, err := g.store.Keys(g.prefix); err == nil {
		for _, key := range keys {
			value, err := g.store.Get(key)
			if err != nil {
				continue
			}
			g.fallback.Set(key, value, cache.NoExpiration)
			migrated++
		}
	}

	g.logger.Warn("switched to in-memory fallback storage",
		zap.String("reason", reason),
		zap.Int("migrated_keys", migrated))
}

// MigrateBackToStore writes every fallback entry back to the durable
// store. If any write hits quota the migration aborts and the fallback
// state is retained; writes already performed are not rolled back.
// Full success clears the fallback state.
func (g *Gateway) MigrateBackToStore() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.usingFallback {
		return nil
	}

	if g.store == nil {
		return apperr.NewStorageError("migrate", "", ErrStoreUnavailable)
	}

	items := g.fallback.Items()

	for key, item := range items {
		if !strings.HasPrefix(key, g.prefix) {
			continue
		}

		err := g.store.Set(key, item.Object.(string))

		if errors.Is(err, ErrQuotaExceeded) {
			g.metrics.RecordQuotaEvent()
			g.logger.Warn("migration back to durable store aborted on quota",
				zap.String("key", strings.TrimPrefix(key, g.prefix)))
			return apperr.NewQuotaError(strings.TrimPrefix(key, g.prefix), err)
		}

		if err != nil {
			g.reportErrorLocked("migrate", strings.TrimPrefix(key, g.prefix), err)
			return apperr.NewStorageError("migrate", strings.TrimPrefix(key, g.prefix), err)
		}
	}

	for key := range items {
		if strings.HasPrefix(key, g.prefix) {
			g.fallback.Delete(key)
		}
	}

	g.available = true
	g.usingFallback = false
	g.quotaExceeded = false
	g.metrics.SetFallbackActive(false)

	g.logger.Info("migrated fallback entries back to durable store",
		zap.Int("entries", len(items)))
	return nil
}

type GatewayStatus struct {
	Available       bool `json:"available"`
	UsingFallback   bool `json:"usingFallback"`
	QuotaExceeded   bool `json:"quotaExceeded"`
	FallbackEntries int  `json:"fallbackEntries"`
}

func (g *Gateway) Status() GatewayStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	entries := 0
	for key := range g.fallback.Items() {
		if strings.HasPrefix(key, g.prefix) {
			entries++
		}
	}

	return GatewayStatus{
		Available:       g.available,
		UsingFallback:   g.usingFallback,
		QuotaExceeded:   g.quotaExceeded,
		FallbackEntries: entries,
	}
}

func (g *Gateway) UsingFallback() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.usingFallback
}

func (g *Gateway) Available() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.available
}

func (g *Gateway) reportErrorLocked(op, key string, err error) {
	g.logger.Error("storage operation failed",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err))

	for _, handler := range g.errorHandlers {
		handler(op, key, err)
	}
}
