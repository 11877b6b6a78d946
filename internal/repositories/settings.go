package repositories

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"taskvault/internal/models"
	"taskvault/internal/storage"
)

// SettingsRepository persists the single settings record. A failed or
// corrupted load falls back to defaults rather than surfacing an error.
type SettingsRepository struct {
	gw     *storage.Gateway
	logger *zap.Logger

	mu sync.Mutex
}

func NewSettingsRepository(gw *storage.Gateway, logger *zap.Logger) *SettingsRepository {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SettingsRepository{gw: gw, logger: logger}
}

func (r *SettingsRepository) Load(ctx context.Context) models.Settings {
	r.mu.Lock()
	defer r.mu.Unlock()

	var settings models.Settings
	if !r.gw.Load(storage.SettingsKey, &settings) {
		return models.DefaultSettings()
	}

	return settings
}

func (r *SettingsRepository) Save(ctx context.Context, settings models.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	settings.LastAccessed = time.Now().UTC()
	return r.gw.Save(storage.SettingsKey, settings)
}

// SettingsPatch updates individual settings fields. Extra entries are
// merged key by key; a nil Extra value removes the key.
type SettingsPatch struct {
	CurrentProjectID *string
	Theme            *string
	Extra            map[string]any
}

func (r *SettingsRepository) Update(ctx context.Context, patch SettingsPatch) (models.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var settings models.Settings
	if !r.gw.Load(storage.SettingsKey, &settings) {
		settings = models.DefaultSettings()
	}

	if patch.CurrentProjectID != nil {
		settings.CurrentProjectID = *patch.CurrentProjectID
	}
	if patch.Theme != nil {
		settings.Theme = *patch.Theme
	}

	if len(patch.Extra) > 0 {
		if settings.Extra == nil {
			settings.Extra = map[string]any{}
		}
		for key, value := range patch.Extra {
			if value == nil {
				delete(settings.Extra, key)
				continue
			}
			settings.Extra[key] = value
		}
		if len(settings.Extra) == 0 {
			settings.Extra = nil
		}
	}

	settings.LastAccessed = time.Now().UTC()

	if err := r.gw.Save(storage.SettingsKey, settings); err != nil {
		return models.Settings{}, err
	}

	return settings, nil
}

func (r *SettingsRepository) ResetDefaults(ctx context.Context) (models.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	settings := models.DefaultSettings()

	if err := r.gw.Save(storage.SettingsKey, settings); err != nil {
		return models.Settings{}, err
	}

	return settings, nil
}
