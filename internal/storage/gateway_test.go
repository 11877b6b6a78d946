package storage

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"taskvault/internal/apperr"
)

// fakeStore scripts failures per Set call. An empty script means every
// write succeeds.
type fakeStore struct {
	data    map[string]string
	setErrs []error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}}
}

func (s *fakeStore) failNextSets(errs ...error) {
	s.setErrs = append(s.setErrs, errs...)
}

func (s *fakeStore) Get(key string) (string, error) {
	value, found := s.data[key]
	if !found {
		return "", ErrKeyNotFound
	}
	return value, nil
}

func (s *fakeStore) Set(key, value string) error {
	if len(s.setErrs) > 0 {
		err := s.setErrs[0]
		s.setErrs = s.setErrs[1:]
		if err != nil {
			return err
		}
	}

	s.data[key] = value
	return nil
}

func (s *fakeStore) Remove(key string) error {
	delete(s.data, key)
	return nil
}

func (s *fakeStore) Keys(prefix string) ([]string, error) {
	keys := []string{}
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *fakeStore) Close() error { return nil }

func newTestGateway(store KeyValueStore) *Gateway {
	return NewGateway(store, GatewayConfig{Prefix: "test:"})
}

func TestGateway_SaveAndLoad(t *testing.T) {
	store := newFakeStore()
	gw := newTestGateway(store)

	err := gw.Save(TasksKey, []string{"a", "b"})
	assert.NoError(t, err)

	var loaded []string
	assert.True(t, gw.Load(TasksKey, &loaded))
	assert.Equal(t, []string{"a", "b"}, loaded)

	status := gw.Status()
	assert.True(t, status.Available)
	assert.False(t, status.UsingFallback)
	assert.False(t, status.QuotaExceeded)
}

func TestGateway_LoadMiss(t *testing.T) {
	gw := newTestGateway(newFakeStore())

	var dest []string
	assert.False(t, gw.Load("nope", &dest))
}

func TestGateway_LoadCorruptValue(t *testing.T) {
	store := newFakeStore()
	gw := newTestGateway(store)

	var reported error
	gw.OnError(func(op, key string, err error) { reported = err })

	store.data["test:"+TasksKey] = "{not json"

	var dest []string
	assert.False(t, gw.Load(TasksKey, &dest))
	assert.Error(t, reported)
}

func TestGateway_UnavailableStore_StartsOnFallback(t *testing.T) {
	store := newFakeStore()
	store.failNextSets(errors.New("disk gone")) // fails the probe

	gw := newTestGateway(store)

	status := gw.Status()
	assert.False(t, status.Available)
	assert.True(t, status.UsingFallback)

	// Data is still retained across save/load.
	assert.NoError(t, gw.Save(TasksKey, []int{1, 2, 3}))

	var loaded []int
	assert.True(t, gw.Load(TasksKey, &loaded))
	assert.Equal(t, []int{1, 2, 3}, loaded)
	assert.Empty(t, store.data)
}

func TestGateway_NilStore_StartsOnFallback(t *testing.T) {
	gw := newTestGateway(nil)

	assert.False(t, gw.Available())
	assert.True(t, gw.UsingFallback())

	assert.NoError(t, gw.Save(SettingsKey, map[string]string{"theme": "dark"}))

	var loaded map[string]string
	assert.True(t, gw.Load(SettingsKey, &loaded))
	assert.Equal(t, "dark", loaded["theme"])
}

func TestGateway_QuotaCleanup_EvictsLargestNonEssential(t *testing.T) {
	store := newFakeStore()
	gw := newTestGateway(store)

	assert.NoError(t, gw.Save(TasksKey, []string{"keep"}))
	assert.NoError(t, gw.Save("cache_big", strings.Repeat("x", 500)))
	assert.NoError(t, gw.Save("cache_small", "y"))

	var notified string
	gw.OnQuotaExceeded(func(key string) { notified = key })

	store.failNextSets(ErrQuotaExceeded)

	assert.NoError(t, gw.Save(TasksKey, []string{"keep", "more"}))

	// Largest non-essential key evicted, essential and small keys kept.
	_, hasBig := store.data["test:cache_big"]
	_, hasSmall := store.data["test:cache_small"]
	assert.False(t, hasBig)
	assert.True(t, hasSmall)
	assert.Equal(t, TasksKey, notified)

	var loaded []string
	assert.True(t, gw.Load(TasksKey, &loaded))
	assert.Equal(t, []string{"keep", "more"}, loaded)

	status := gw.Status()
	assert.False(t, status.QuotaExceeded)
	assert.False(t, status.UsingFallback)
}

func TestGateway_QuotaRetryFails_SwitchesToFallback(t *testing.T) {
	store := newFakeStore()
	gw := newTestGateway(store)

	assert.NoError(t, gw.Save(ProjectsKey, []string{"p1"}))

	store.failNextSets(ErrQuotaExceeded, ErrQuotaExceeded)

	assert.NoError(t, gw.Save(TasksKey, []string{"t1"}))

	status := gw.Status()
	assert.True(t, status.UsingFallback)
	assert.True(t, status.QuotaExceeded)

	// Existing durable data was migrated into the fallback.
	var projects []string
	assert.True(t, gw.Load(ProjectsKey, &projects))
	assert.Equal(t, []string{"p1"}, projects)

	var tasks []string
	assert.True(t, gw.Load(TasksKey, &tasks))
	assert.Equal(t, []string{"t1"}, tasks)

	// Fallback is sticky even after the store recovers.
	assert.NoError(t, gw.Save(SettingsKey, "later"))
	_, durable := store.data["test:"+SettingsKey]
	assert.False(t, durable)
}

func TestGateway_TransientError_RetriesOnce(t *testing.T) {
	store := newFakeStore()
	gw := newTestGateway(store)

	var reported error
	gw.OnError(func(op, key string, err error) { reported = err })

	store.failNextSets(errors.New("io hiccup"))

	assert.NoError(t, gw.Save(TasksKey, []string{"x"}))
	assert.Error(t, reported)

	// Retry landed durably, no fallback.
	assert.False(t, gw.UsingFallback())
	_, durable := store.data["test:"+TasksKey]
	assert.True(t, durable)
}

func TestGateway_MigrateBackToStore(t *testing.T) {
	store := newFakeStore()
	gw := newTestGateway(store)

	store.failNextSets(errors.New("down"), errors.New("still down"))
	assert.NoError(t, gw.Save(TasksKey, []string{"t1"}))
	assert.True(t, gw.UsingFallback())

	assert.NoError(t, gw.MigrateBackToStore())

	status := gw.Status()
	assert.False(t, status.UsingFallback)
	assert.False(t, status.QuotaExceeded)
	assert.Zero(t, status.FallbackEntries)

	_, durable := store.data["test:"+TasksKey]
	assert.True(t, durable)
}

func TestGateway_MigrateBack_AbortsOnQuota(t *testing.T) {
	store := newFakeStore()
	gw := newTestGateway(store)

	store.failNextSets(errors.New("down"), errors.New("still down"))
	assert.NoError(t, gw.Save(TasksKey, []string{"t1"}))
	assert.True(t, gw.UsingFallback())

	store.failNextSets(ErrQuotaExceeded)

	err := gw.MigrateBackToStore()
	assert.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrQuota))

	// Still serving from fallback, nothing lost.
	assert.True(t, gw.UsingFallback())

	var tasks []string
	assert.True(t, gw.Load(TasksKey, &tasks))
	assert.Equal(t, []string{"t1"}, tasks)
}

func TestGateway_MigrateBack_NoopWhenNotOnFallback(t *testing.T) {
	gw := newTestGateway(newFakeStore())
	assert.NoError(t, gw.MigrateBackToStore())
}

func TestGateway_ForceReset(t *testing.T) {
	store := newFakeStore()
	gw := newTestGateway(store)

	assert.NoError(t, gw.Save(TasksKey, []string{"t1"}))
	assert.NoError(t, gw.Save(SettingsKey, "s"))

	assert.NoError(t, gw.ForceReset())

	assert.Empty(t, store.data)

	var dest []string
	assert.False(t, gw.Load(TasksKey, &dest))
}

func TestGateway_RemoveClearsBothSides(t *testing.T) {
	store := newFakeStore()
	gw := newTestGateway(store)

	assert.NoError(t, gw.Save(SettingsKey, "s"))
	assert.NoError(t, gw.Remove(SettingsKey))

	var dest string
	assert.False(t, gw.Load(SettingsKey, &dest))
}

func TestMemoryStore_QuotaEnforcement(t *testing.T) {
	store := NewMemoryStore(MemoryStoreConfig{MaxBytes: 20})

	assert.NoError(t, store.Set("k1", "0123456789"))

	err := store.Set("k2", "0123456789")
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// Overwriting an existing key reuses its budget.
	assert.NoError(t, store.Set("k1", "abcdefghij"))
}
