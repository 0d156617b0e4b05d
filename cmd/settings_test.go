package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tomefetch/tomefetch/internal/config"
)

func TestPrintSettings(t *testing.T) {
	settings := config.DefaultSettings()
	settings.Network.UserAgent = ""
	settings.Chunks.ChunkSize = 8192

	var out bytes.Buffer
	if err := printSettings(&out, settings); err != nil {
		t.Fatal(err)
	}
	text := out.String()

	for _, want := range []string{"[General]", "[Network]", "[Chunks]", "chunk_size = 8192", "user_agent = (default)"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Index(text, "[General]") > strings.Index(text, "[Chunks]") {
		t.Error("categories are not in display order")
	}
}

func TestIsYAMLPath(t *testing.T) {
	for path, want := range map[string]bool{
		"settings.yaml": true,
		"SETTINGS.YML":  true,
		"settings.json": false,
		"yaml":          false,
	} {
		if got := isYAMLPath(path); got != want {
			t.Errorf("isYAMLPath(%q) = %v, want %v", path, got, want)
		}
	}
}
