package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomefetch/tomefetch/internal/engine/types"
)

func TestDefaultSettings(t *testing.T) {
	settings := DefaultSettings()

	if settings == nil {
		t.Fatal("DefaultSettings returned nil")
	}

	t.Run("GeneralSettings", func(t *testing.T) {
		if settings.General.DefaultDownloadDir == "" {
			t.Error("Default download directory should not be empty")
		}
		if !strings.Contains(strings.ToLower(settings.General.DefaultDownloadDir), "downloads") {
			t.Errorf("Default download dir should contain 'Downloads', got: %s", settings.General.DefaultDownloadDir)
		}
		if settings.General.PreserveURLPath {
			t.Error("PreserveURLPath should be false by default")
		}
		if settings.General.LogRetentionCount <= 0 {
			t.Errorf("LogRetentionCount should be positive, got: %d", settings.General.LogRetentionCount)
		}
	})

	t.Run("NetworkSettings", func(t *testing.T) {
		if settings.Network.MaxConcurrentDownloads != types.DefaultMaxConcurrentDownloads {
			t.Errorf("MaxConcurrentDownloads should be %d, got: %d", types.DefaultMaxConcurrentDownloads, settings.Network.MaxConcurrentDownloads)
		}
		// UserAgent can be empty (means use default)
		if settings.Network.SkipTLSVerification {
			t.Error("SkipTLSVerification should be false by default")
		}
	})

	t.Run("ChunkSettings", func(t *testing.T) {
		if settings.Chunks.ChunkSize != 4*types.KB {
			t.Errorf("ChunkSize should default to 4 KB, got: %d", settings.Chunks.ChunkSize)
		}
	})

	if err := settings.Validate(); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
}

func TestDefaultSettings_Consistency(t *testing.T) {
	s1 := DefaultSettings()
	s2 := DefaultSettings()

	if s1 == s2 {
		t.Error("DefaultSettings should return new instance each time")
	}
	if *s1 != *s2 {
		t.Error("Default settings should be consistent")
	}
}

func TestGetAppDir_Overrides(t *testing.T) {
	home := t.TempDir()
	t.Setenv("TOMEFETCH_HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "xdg"))

	if got := GetAppDir(); got != home {
		t.Errorf("TOMEFETCH_HOME should win, got: %s", got)
	}

	t.Setenv("TOMEFETCH_HOME", "")
	if got, want := GetAppDir(), filepath.Join(home, "xdg", "tomefetch"); got != want {
		t.Errorf("GetAppDir() = %s, want %s", got, want)
	}
}

func TestPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("TOMEFETCH_HOME", home)

	path := GetSettingsPath()
	if !strings.HasPrefix(path, home) {
		t.Errorf("Settings path should be under app dir. Path: %s, AppDir: %s", path, home)
	}
	if !strings.HasSuffix(path, "settings.json") {
		t.Errorf("Settings path should end with 'settings.json', got: %s", path)
	}
	if filepath.Dir(GetStateDBPath()) != GetStateDir() {
		t.Errorf("state db should live in the state dir, got: %s", GetStateDBPath())
	}

	if err := EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs failed: %v", err)
	}
	for _, dir := range []string{GetStateDir(), GetLogsDir(), GetRuntimeDir()} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("%s was not created: %v", dir, err)
		}
	}
}

func TestSaveAndLoadSettings(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("TOMEFETCH_HOME", tmpDir)

	original := &Settings{
		General: GeneralSettings{
			DefaultDownloadDir: filepath.Join(tmpDir, "books"),
			PreserveURLPath:    true,
			LogRetentionCount:  2,
		},
		Network: NetworkSettings{
			MaxConcurrentDownloads: 7,
			UserAgent:              "TestAgent/1.0",
			ProxyURL:               "socks5://127.0.0.1:1080",
			SkipTLSVerification:    true,
		},
		Chunks: ChunkSettings{
			ChunkSize: 64 * types.KB,
		},
	}

	if err := SaveSettings(original); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}
	if _, err := os.Stat(GetSettingsPath() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be renamed away")
	}

	loaded, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if *loaded != *original {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", *loaded, *original)
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	settings, err := LoadSettingsFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("missing file should yield defaults, got: %v", err)
	}
	if settings.Chunks.ChunkSize != types.DefaultChunkSize {
		t.Error("Should return default settings with valid values")
	}
}

func TestLoadSettings_CorruptedJSON(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "corrupt.json")
	if err := os.WriteFile(testPath, []byte("{invalid json"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := LoadSettingsFrom(testPath); err == nil {
		t.Error("Expected error when loading invalid JSON")
	}
}

func TestLoadSettings_PartialJSON(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "partial.json")
	partial := `{
		"general": {
			"default_download_dir": "/custom/path"
		}
	}`
	if err := os.WriteFile(testPath, []byte(partial), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	settings, err := LoadSettingsFrom(testPath)
	if err != nil {
		t.Fatalf("Failed to load partial JSON: %v", err)
	}
	if settings.General.DefaultDownloadDir != "/custom/path" {
		t.Errorf("Custom field not set: %s", settings.General.DefaultDownloadDir)
	}
	if settings.Network.MaxConcurrentDownloads != types.DefaultMaxConcurrentDownloads {
		t.Error("Default values should be preserved for missing fields")
	}
}

func TestLoadSettings_YAML(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "tomefetch.yaml")
	doc := `
network:
  user_agent: Shelf/2.0
  max_concurrent_downloads: 5
chunks:
  chunk_size: 8192
`
	if err := os.WriteFile(testPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	settings, err := LoadSettingsFrom(testPath)
	if err != nil {
		t.Fatalf("Failed to load YAML: %v", err)
	}
	if settings.Network.UserAgent != "Shelf/2.0" {
		t.Errorf("UserAgent = %q", settings.Network.UserAgent)
	}
	if settings.Network.MaxConcurrentDownloads != 5 {
		t.Errorf("MaxConcurrentDownloads = %d", settings.Network.MaxConcurrentDownloads)
	}
	if settings.Chunks.ChunkSize != 8192 {
		t.Errorf("ChunkSize = %d", settings.Chunks.ChunkSize)
	}
	if settings.General.LogRetentionCount != 5 {
		t.Error("Default values should be preserved for missing fields")
	}
}

func TestLoadSettings_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"chunk too large", `{"chunks": {"chunk_size": 1073741824}}`},
		{"negative chunk", `{"chunks": {"chunk_size": -1}}`},
		{"too many downloads", `{"network": {"max_concurrent_downloads": 99}}`},
		{"negative retention", `{"general": {"log_retention_count": -3}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testPath := filepath.Join(t.TempDir(), "settings.json")
			if err := os.WriteFile(testPath, []byte(tt.doc), 0o644); err != nil {
				t.Fatalf("Failed to write file: %v", err)
			}
			if _, err := LoadSettingsFrom(testPath); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestToRuntimeConfig(t *testing.T) {
	settings := DefaultSettings()
	settings.Network.ProxyURL = "http://proxy:8080"
	settings.Network.SkipTLSVerification = true
	settings.General.PreserveURLPath = true
	runtime := settings.ToRuntimeConfig()

	if runtime == nil {
		t.Fatal("ToRuntimeConfig returned nil")
	}
	if runtime.ChunkSize != settings.Chunks.ChunkSize {
		t.Error("ChunkSize not correctly mapped")
	}
	if runtime.UserAgent != settings.Network.UserAgent {
		t.Error("UserAgent not correctly mapped")
	}
	if runtime.ProxyURL != "http://proxy:8080" {
		t.Error("ProxyURL not correctly mapped")
	}
	if !runtime.SkipTLSVerification {
		t.Error("SkipTLSVerification not correctly mapped")
	}
	if !runtime.PreserveURLPath {
		t.Error("PreserveURLPath not correctly mapped")
	}
	if runtime.GetMaxConcurrentDownloads() != settings.Network.MaxConcurrentDownloads {
		t.Error("MaxConcurrentDownloads not correctly mapped")
	}
	if runtime.GetUserAgent() != types.DefaultUserAgent {
		t.Error("empty user agent should fall back to the default")
	}
}

func TestGetSettingsMetadata(t *testing.T) {
	metadata := GetSettingsMetadata()

	for _, cat := range CategoryOrder() {
		if _, ok := metadata[cat]; !ok {
			t.Errorf("Missing metadata for category: %s", cat)
		}
	}

	// Every metadata key must exist in the JSON form of Settings.
	data, err := json.Marshal(DefaultSettings())
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	keys := make(map[string]bool)
	for _, section := range raw {
		for k := range section {
			keys[k] = true
		}
	}

	validTypes := map[string]bool{"string": true, "int": true, "bool": true}
	for category, settings := range metadata {
		for i, setting := range settings {
			if setting.Key == "" {
				t.Errorf("Category %s, index %d: Key is empty", category, i)
			}
			if setting.Label == "" || setting.Description == "" {
				t.Errorf("Category %s, key %s: Label or Description is empty", category, setting.Key)
			}
			if !validTypes[setting.Type] {
				t.Errorf("Category %s, key %s: Invalid type %q", category, setting.Key, setting.Type)
			}
			if !keys[setting.Key] {
				t.Errorf("Category %s, key %s: not a settings field", category, setting.Key)
			}
		}
	}
}

func TestCategoryOrder(t *testing.T) {
	order := CategoryOrder()

	if len(order) != 3 {
		t.Errorf("Expected 3 categories, got %d", len(order))
	}

	seen := make(map[string]bool)
	for _, cat := range order {
		if seen[cat] {
			t.Errorf("Duplicate category: %s", cat)
		}
		seen[cat] = true
	}
}
