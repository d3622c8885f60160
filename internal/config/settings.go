package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/fruitsalade/vaultbox/internal/quota"
	"github.com/fruitsalade/vaultbox/internal/storage"
)

// Settings are the operator-adjustable values persisted between restarts.
type Settings struct {
	StorageLimit  int64 `yaml:"storage_limit"`
	FileSizeLimit int64 `yaml:"file_size_limit"`
}

// Limits converts s to quota limits.
func (s Settings) Limits() quota.Limits {
	return quota.Limits{StorageLimit: s.StorageLimit, FileSizeLimit: s.FileSizeLimit}
}

// SettingsFrom builds Settings from quota limits.
func SettingsFrom(l quota.Limits) Settings {
	return Settings{StorageLimit: l.StorageLimit, FileSizeLimit: l.FileSizeLimit}
}

// LoadSettings reads the YAML settings file at path. A missing file yields
// defaults and found=false; zero fields fall back to defaults.
func LoadSettings(path string, defaults quota.Limits) (s Settings, found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return SettingsFrom(defaults), false, nil
	}
	if err != nil {
		return Settings{}, false, fmt.Errorf("error reading settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, true, fmt.Errorf("error parsing settings file: %w", err)
	}
	if err := validateSettings(&s, defaults); err != nil {
		return Settings{}, true, fmt.Errorf("settings validation error: %w", err)
	}
	return s, true, nil
}

func validateSettings(s *Settings, defaults quota.Limits) error {
	if s.StorageLimit == 0 {
		s.StorageLimit = defaults.StorageLimit
	}
	if s.FileSizeLimit == 0 {
		s.FileSizeLimit = defaults.FileSizeLimit
	}
	return s.Limits().Validate()
}

// SaveSettings validates s and atomically rewrites the file at path.
func SaveSettings(path string, s Settings) error {
	if err := s.Limits().Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	return storage.WriteFileAtomic(path, data, 0644)
}
