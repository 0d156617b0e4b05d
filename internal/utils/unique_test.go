package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniqueFilePath(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		input    string
		want     string
	}{
		{name: "No conflict", input: "file.txt", want: "file.txt"},
		{name: "One conflict", existing: []string{"file.txt"}, input: "file.txt", want: "file(1).txt"},
		{name: "Two conflicts", existing: []string{"file.txt", "file(1).txt"}, input: "file.txt", want: "file(2).txt"},
		{name: "Numbered input", existing: []string{"image(2).png"}, input: "image(2).png", want: "image(3).png"},
		{name: "No extension", existing: []string{"README"}, input: "README", want: "README(1)"},
		{name: "Multiple extensions", existing: []string{"archive.tar.gz"}, input: "archive.tar.gz", want: "archive.tar(1).gz"},
		{name: "Hidden file", existing: []string{".gitignore"}, input: ".gitignore", want: "(1).gitignore"},
		{name: "Paren in middle", existing: []string{"file (copy).txt"}, input: "file (copy).txt", want: "file (copy)(1).txt"},
		{name: "Special characters", existing: []string{"file [2024].txt"}, input: "file [2024].txt", want: "file [2024](1).txt"},
		{name: "Nested directory", existing: []string{"a/b/notes.txt"}, input: "a/b/notes.txt", want: "a/b/notes(1).txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.existing {
				p := filepath.Join(dir, filepath.FromSlash(f))
				require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
				require.NoError(t, os.WriteFile(p, []byte("test"), 0o644))
			}

			got := UniqueFilePath(filepath.Join(dir, filepath.FromSlash(tt.input)))
			assert.Equal(t, filepath.Join(dir, filepath.FromSlash(tt.want)), got)
		})
	}
}

func TestUniqueFilePath_ManyConflicts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.pdf"), nil, 0o644))
	for i := 1; i <= 10; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("doc(%d).pdf", i)), nil, 0o644))
	}

	assert.Equal(t, filepath.Join(dir, "doc(11).pdf"), UniqueFilePath(filepath.Join(dir, "doc.pdf")))
}

func TestNextFilePath(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, "book(1).pdf"), NextFilePath(filepath.Join(dir, "book.pdf")))
	assert.Equal(t, filepath.Join(dir, "book(2).pdf"), NextFilePath(filepath.Join(dir, "book(1).pdf")))
	assert.Equal(t, filepath.Join(dir, "README(1)"), NextFilePath(filepath.Join(dir, "README")))

	// Only names, never the filesystem.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "book(1).pdf"), nil, 0o644))
	assert.Equal(t, filepath.Join(dir, "book(1).pdf"), NextFilePath(filepath.Join(dir, "book.pdf")))
}

func BenchmarkUniqueFilePath_WithConflict(b *testing.B) {
	dir := b.TempDir()
	existing := filepath.Join(dir, "bench.bin")
	if err := os.WriteFile(existing, nil, 0o644); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = UniqueFilePath(existing)
	}
}
