package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cmykflutterby/GogDownloader/internal/model"
)

// Settings holds all configuration options.
type Settings struct {
	// Paths
	DownloadsPath string `json:"downloads_path"`
	DatabasePath  string `json:"database_path"`
	TokenPath     string `json:"token_path"`

	// Filters
	Platform        string `json:"platform"` // windows, mac, linux; empty = all
	Language        string `json:"language"`
	EnglishFallback bool   `json:"english_fallback"`
	ExcludeLanguage string `json:"exclude_language"`

	// Transfer behavior
	RetryCount         int `json:"retry_count"`
	RetryDelaySeconds  int `json:"retry_delay_seconds"`
	IdleTimeoutSeconds int `json:"idle_timeout_seconds"`
	Workers            int `json:"workers"`

	// Run behavior
	SkipErrors    bool `json:"skip_errors"`
	DryRun        bool `json:"dry_run"`
	CreateSidecar bool `json:"create_md5_sidecar"`
	NoVerify      bool `json:"no_verify"`
	Verbose       bool `json:"verbose"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".config", "gogdownloader")
	return &Settings{
		DownloadsPath: filepath.Join(homeDir, "GOG"),
		DatabasePath:  filepath.Join(configDir, "catalog.db"),
		TokenPath:     filepath.Join(configDir, "token.json"),

		RetryCount:         3,
		RetryDelaySeconds:  1,
		IdleTimeoutSeconds: 3,
		Workers:            1,
	}
}

// Load reads settings from a JSON file. A missing file is not an
// error; defaults are returned instead.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Filter converts the filter-related settings into the model filter
// consumed by the download engine. It fails on an unknown platform
// name so typos never silently disable the filter.
func (s *Settings) Filter() (model.Filter, error) {
	platform, ok := model.ParsePlatform(s.Platform)
	if !ok {
		return model.Filter{}, fmt.Errorf("unknown platform %q (want windows, mac or linux)", s.Platform)
	}
	return model.Filter{
		Platform:        platform,
		Language:        s.Language,
		EnglishFallback: s.EnglishFallback,
		ExcludeLanguage: s.ExcludeLanguage,
	}, nil
}
