package global

import (
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	configTOMLFileName = "config.toml"
)

type GlobalDefaults struct {
	ReminderMinutes    int    `json:"reminder_minutes" toml:"reminder_minutes"`
	RecurringFrequency string `json:"recurring_frequency" toml:"recurring_frequency"`
}

type GlobalConfig struct {
	DefaultProject string         `json:"default_project" toml:"default_project"`
	MergeUpdates   bool           `json:"merge_updates" toml:"merge_updates"`
	Defaults       GlobalDefaults `json:"defaults" toml:"defaults"`
}

type ConfigStore struct {
	dir string
}

func NewConfigStore(dir string) *ConfigStore {
	return &ConfigStore{dir: dir}
}

func (s *ConfigStore) LoadOrInit() (GlobalConfig, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return GlobalConfig{}, err
	}

	path := filepath.Join(s.dir, configTOMLFileName)
	if b, err := os.ReadFile(path); err == nil {
		var cfg GlobalConfig
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return GlobalConfig{}, err
		}
		return normalizeConfig(cfg), nil
	} else if !os.IsNotExist(err) {
		return GlobalConfig{}, err
	}

	cfg := normalizeConfig(GlobalConfig{MergeUpdates: true})
	if err := writeTOMLAtomically(path, cfg); err != nil {
		return GlobalConfig{}, err
	}
	return cfg, nil
}

func (s *ConfigStore) Save(cfg GlobalConfig) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return writeTOMLAtomically(filepath.Join(s.dir, configTOMLFileName), normalizeConfig(cfg))
}

func normalizeConfig(cfg GlobalConfig) GlobalConfig {
	cfg.DefaultProject = strings.TrimSpace(cfg.DefaultProject)
	cfg.Defaults = normalizeDefaults(cfg.Defaults)
	return cfg
}

func normalizeDefaults(defaults GlobalDefaults) GlobalDefaults {
	if defaults.ReminderMinutes < 0 {
		defaults.ReminderMinutes = 0
	}
	if defaults.ReminderMinutes == 0 {
		defaults.ReminderMinutes = 30
	}
	switch strings.ToLower(strings.TrimSpace(defaults.RecurringFrequency)) {
	case "daily", "weekly", "monthly":
		defaults.RecurringFrequency = strings.ToLower(strings.TrimSpace(defaults.RecurringFrequency))
	default:
		defaults.RecurringFrequency = "daily"
	}
	return defaults
}

func writeTOMLAtomically(path string, v any) error {
	b, err := toml.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
