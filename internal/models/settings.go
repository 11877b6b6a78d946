package models

import (
	"encoding/json"
	"time"
)

// Settings is the third persisted record next to tasks and projects.
// Unknown keys survive a load/save round trip so app-specific extensions
// are not silently discarded.
type Settings struct {
	CurrentProjectID string
	Theme            string
	LastAccessed     time.Time
	Extra            map[string]any
}

func DefaultSettings() Settings {
	return Settings{
		CurrentProjectID: DefaultProjectID,
		Theme:            "light",
		LastAccessed:     time.Now().UTC(),
	}
}

func (s Settings) MarshalJSON() ([]byte, error) {
	record := make(map[string]any, len(s.Extra)+3)

	for key, value := range s.Extra {
		record[key] = value
	}

	record["currentProjectId"] = s.CurrentProjectID
	record["theme"] = s.Theme
	record["lastAccessed"] = s.LastAccessed.UTC().Format(time.RFC3339Nano)

	return json.Marshal(record)
}

func (s *Settings) UnmarshalJSON(data []byte) error {
	var record map[string]any

	if err := json.Unmarshal(data, &record); err != nil {
		return err
	}

	parsed := DefaultSettings()

	if v, ok := record["currentProjectId"].(string); ok && v != "" {
		parsed.CurrentProjectID = v
	}
	if v, ok := record["theme"].(string); ok && v != "" {
		parsed.Theme = v
	}
	if v, ok := record["lastAccessed"].(string); ok {
		if instant, err := ParseInstant(v); err == nil {
			parsed.LastAccessed = instant
		}
	}

	delete(record, "currentProjectId")
	delete(record, "theme")
	delete(record, "lastAccessed")

	if len(record) > 0 {
		parsed.Extra = record
	}

	*s = parsed
	return nil
}
