package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"pecha-studio/internal/domain"
)

const maxConcurrentCeiling = 16

// Store defines persistence operations for app settings.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// JSONStore persists settings in a single JSON file on disk.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON-backed settings store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads settings from disk, normalized, or returns defaults when the
// file does not exist yet.
func (s *JSONStore) Load() (domain.Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSettings(), nil
		}

		return domain.Settings{}, err
	}

	var cfg domain.Settings
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.Settings{}, err
	}

	return Normalize(cfg), nil
}

// Save writes settings as indented JSON and creates parent directories.
// The file carries the API key, so it is not group or world readable.
func (s *JSONStore) Save(cfg domain.Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o600)
}

// Normalize fills gaps left by hand-edited or pre-upgrade settings files:
// blank model and language fall back to defaults, and throughput fields
// are pulled back into range.
func Normalize(cfg domain.Settings) domain.Settings {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.MaxConcurrent > maxConcurrentCeiling {
		cfg.MaxConcurrent = maxConcurrentCeiling
	}
	if cfg.RequestsPerMinute < 0 {
		cfg.RequestsPerMinute = 0
	}
	if strings.TrimSpace(cfg.TargetLanguage) == "" {
		cfg.TargetLanguage = defaultTargetLanguage
	}
	return cfg
}
