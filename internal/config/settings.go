package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tomefetch/tomefetch/internal/engine/types"
)

// Settings holds all user-configurable application settings organized by category.
type Settings struct {
	General GeneralSettings `json:"general" yaml:"general"`
	Network NetworkSettings `json:"network" yaml:"network"`
	Chunks  ChunkSettings   `json:"chunks" yaml:"chunks"`
}

// GeneralSettings contains application behavior settings.
type GeneralSettings struct {
	DefaultDownloadDir string `json:"default_download_dir" yaml:"default_download_dir"`
	PreserveURLPath    bool   `json:"preserve_url_path" yaml:"preserve_url_path"`
	LogRetentionCount  int    `json:"log_retention_count" yaml:"log_retention_count"`
}

// NetworkSettings contains HTTP client and pool parameters.
type NetworkSettings struct {
	MaxConcurrentDownloads int    `json:"max_concurrent_downloads" yaml:"max_concurrent_downloads"`
	UserAgent              string `json:"user_agent" yaml:"user_agent"`
	ProxyURL               string `json:"proxy_url" yaml:"proxy_url"`
	SkipTLSVerification    bool   `json:"skip_tls_verification" yaml:"skip_tls_verification"`
}

// ChunkSettings contains download chunk configuration.
type ChunkSettings struct {
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"` // bytes per read/write cycle
}

// SettingMeta provides metadata for a single setting (for UI rendering).
type SettingMeta struct {
	Key         string // JSON key name
	Label       string // Human-readable label
	Description string // Help text
	Type        string // "string", "int", "bool"
}

// GetSettingsMetadata returns metadata for all settings organized by category.
func GetSettingsMetadata() map[string][]SettingMeta {
	return map[string][]SettingMeta{
		"General": {
			{Key: "default_download_dir", Label: "Default Download Dir", Description: "Default directory for new downloads. Leave empty to use current directory.", Type: "string"},
			{Key: "preserve_url_path", Label: "Preserve URL Path", Description: "Mirror the URL path below the download directory (host/dir/file).", Type: "bool"},
			{Key: "log_retention_count", Label: "Log Retention Count", Description: "Number of recent log files to keep.", Type: "int"},
		},
		"Network": {
			{Key: "max_concurrent_downloads", Label: "Max Concurrent Downloads", Description: "Maximum number of downloads running at once (1-10). Requires restart.", Type: "int"},
			{Key: "user_agent", Label: "User Agent", Description: "Custom User-Agent string for HTTP requests. Leave empty for default.", Type: "string"},
			{Key: "proxy_url", Label: "Proxy URL", Description: "HTTP, HTTPS or SOCKS5 proxy (e.g. socks5://127.0.0.1:1080). Leave empty to use the environment.", Type: "string"},
			{Key: "skip_tls_verification", Label: "Skip TLS Verification", Description: "Accept any server certificate. Only for trusted networks.", Type: "bool"},
		},
		"Chunks": {
			{Key: "chunk_size", Label: "Chunk Size", Description: "Bytes read and written per cycle (default 4096, max 4 MB). Pause and cancel are observed between chunks.", Type: "int"},
		},
	}
}

// CategoryOrder returns the order of categories for display.
func CategoryOrder() []string {
	return []string{"General", "Network", "Chunks"}
}

// DefaultSettings returns a new Settings instance with sensible defaults.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	defaultDir := filepath.Join(homeDir, "Downloads")

	return &Settings{
		General: GeneralSettings{
			DefaultDownloadDir: defaultDir,
			PreserveURLPath:    false,
			LogRetentionCount:  5,
		},
		Network: NetworkSettings{
			MaxConcurrentDownloads: types.DefaultMaxConcurrentDownloads,
			UserAgent:              "", // Empty means use default UA
		},
		Chunks: ChunkSettings{
			ChunkSize: types.DefaultChunkSize,
		},
	}
}

// GetSettingsPath returns the path to the settings JSON file.
func GetSettingsPath() string {
	return filepath.Join(GetAppDir(), "settings.json")
}

// LoadSettings loads settings from the app dir. Returns defaults if the file doesn't exist.
func LoadSettings() (*Settings, error) {
	return LoadSettingsFrom(GetSettingsPath())
}

// LoadSettingsFrom loads settings from path. Files ending in .yaml or .yml
// are parsed as YAML, everything else as JSON. Missing fields keep their
// defaults; a missing file yields the defaults.
func LoadSettingsFrom(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings() // Start with defaults to fill any missing fields
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, settings)
	default:
		err = json.Unmarshal(data, settings)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return settings, nil
}

// Validate rejects values the engine cannot use.
func (s *Settings) Validate() error {
	if s.Chunks.ChunkSize < 0 || s.Chunks.ChunkSize > types.MaxChunkSize {
		return fmt.Errorf("chunk_size must be between 0 (default) and %d", types.MaxChunkSize)
	}
	if s.Network.MaxConcurrentDownloads < 0 || s.Network.MaxConcurrentDownloads > types.MaxConcurrentDownloads {
		return fmt.Errorf("max_concurrent_downloads must be between 0 (default) and %d", types.MaxConcurrentDownloads)
	}
	if s.General.LogRetentionCount < 0 {
		return fmt.Errorf("log_retention_count must not be negative")
	}
	return nil
}

// SaveSettings saves settings to the app dir.
func SaveSettings(s *Settings) error {
	return SaveSettingsTo(GetSettingsPath(), s)
}

// SaveSettingsTo writes s as JSON to path atomically.
func SaveSettingsTo(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write: write to temp file, then rename
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tempPath, path)
}

// ToRuntimeConfig creates the engine RuntimeConfig from user Settings.
func (s *Settings) ToRuntimeConfig() *types.RuntimeConfig {
	return &types.RuntimeConfig{
		ChunkSize:              s.Chunks.ChunkSize,
		UserAgent:              s.Network.UserAgent,
		ProxyURL:               s.Network.ProxyURL,
		SkipTLSVerification:    s.Network.SkipTLSVerification,
		PreserveURLPath:        s.General.PreserveURLPath,
		MaxConcurrentDownloads: s.Network.MaxConcurrentDownloads,
	}
}
