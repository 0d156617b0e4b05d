package cmd

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	tmpDir, err := os.MkdirTemp("", "tomefetch-cmd-test-*")
	if err == nil {
		_ = os.Setenv("TOMEFETCH_HOME", tmpDir)
		_ = os.Unsetenv("TOMEFETCH_HOST")
		_ = os.Unsetenv("TOMEFETCH_TOKEN")
	}

	code := m.Run()

	if err == nil {
		_ = os.RemoveAll(tmpDir)
	}
	os.Exit(code)
}
