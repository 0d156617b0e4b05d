package testutil

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
)

// TempDir creates a temporary directory and returns it with a cleanup func.
func TempDir(prefix string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "tomefetch-"+prefix+"-*")
	if err != nil {
		return "", nil, err
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

// CreateTestFile writes a file of size bytes, random or zero filled.
func CreateTestFile(dir, name string, size int64, random bool) (string, error) {
	data := make([]byte, size)
	if random {
		if _, err := rand.Read(data); err != nil {
			return "", err
		}
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CompareFiles reports whether two files have identical contents.
func CompareFiles(a, b string) (bool, error) {
	da, err := os.ReadFile(a)
	if err != nil {
		return false, err
	}
	db, err := os.ReadFile(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(da, db), nil
}

// VerifyFileSize checks that the file at path has the expected size.
func VerifyFileSize(path string, expected int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() != expected {
		return fmt.Errorf("file %s: expected %d bytes, got %d", filepath.Base(path), expected, info.Size())
	}
	return nil
}
