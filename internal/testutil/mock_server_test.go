package testutil

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

func TestMockServer_BasicDownload(t *testing.T) {
	server := NewMockServerT(t,
		WithFileSize(1024*1024), // 1MB
		WithRandomData(true),
	)

	resp, err := http.Get(server.URL())
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if resp.ContentLength != 1024*1024 {
		t.Errorf("Expected Content-Length 1MB, got %d", resp.ContentLength)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if !bytes.Equal(data, server.Data()) {
		t.Error("Served data does not match Data()")
	}

	stats := server.Stats()
	if stats.TotalRequests != 1 {
		t.Errorf("Expected 1 request, got %d", stats.TotalRequests)
	}
	if stats.BytesServed != 1024*1024 {
		t.Errorf("Expected 1MB served, got %d", stats.BytesServed)
	}
}

func TestMockServer_HiddenLength(t *testing.T) {
	server := NewMockServerT(t, WithFileSize(10000), WithHiddenLength())

	resp, err := http.Get(server.URL())
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.ContentLength != -1 {
		t.Errorf("Expected unknown length, got %d", resp.ContentLength)
	}
	data, _ := io.ReadAll(resp.Body)
	if len(data) != 10000 {
		t.Errorf("Expected 10000 bytes, got %d", len(data))
	}
}

func TestMockServer_FailOnNthRequest(t *testing.T) {
	server := NewMockServerT(t, WithFileSize(1024), WithFailOnNthRequest(2))

	for i, want := range []int{http.StatusOK, http.StatusInternalServerError, http.StatusOK} {
		resp, err := http.Get(server.URL())
		if err != nil {
			t.Fatalf("Request %d failed: %v", i+1, err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("Request %d: expected %d, got %d", i+1, want, resp.StatusCode)
		}
	}

	if got := server.Stats().FailedRequests; got != 1 {
		t.Errorf("Expected 1 failed request, got %d", got)
	}
}

func TestMockServer_FailAfterBytes(t *testing.T) {
	server := NewMockServerT(t, WithFileSize(100*1024), WithFailAfterBytes(40*1024))

	resp, err := http.Get(server.URL())
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err == nil {
		t.Error("Expected a read error after the connection was dropped")
	}
	if len(data) > 40*1024 {
		t.Errorf("Expected at most 40KB, got %d", len(data))
	}
}

func TestMockServer_Headers(t *testing.T) {
	server := NewMockServerT(t,
		WithFileSize(16),
		WithFilename("chapter one.epub"),
		WithContentType("application/epub+zip"),
	)

	req, _ := http.NewRequest(http.MethodGet, server.URL(), nil)
	req.Header.Set("Cookie", "session=abc")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	_ = resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "application/epub+zip" {
		t.Errorf("Unexpected Content-Type %q", got)
	}
	if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename="chapter one.epub"` {
		t.Errorf("Unexpected Content-Disposition %q", got)
	}
	if h := server.LastHeaders.Load(); h == nil || h.Get("Cookie") != "session=abc" {
		t.Error("Request headers were not recorded")
	}
}

func TestFileHelpers(t *testing.T) {
	dir, cleanup, err := TempDir("testutil")
	if err != nil {
		t.Fatalf("TempDir: %v", err)
	}
	defer cleanup()

	a, err := CreateTestFile(dir, "a.bin", 2048, true)
	if err != nil {
		t.Fatalf("CreateTestFile: %v", err)
	}
	if err := VerifyFileSize(a, 2048); err != nil {
		t.Error(err)
	}

	data, _ := os.ReadFile(a)
	b := filepath.Join(dir, "b.bin")
	if err := os.WriteFile(b, data, 0o644); err != nil {
		t.Fatal(err)
	}

	same, err := CompareFiles(a, b)
	if err != nil || !same {
		t.Errorf("Expected identical files, got same=%v err=%v", same, err)
	}
	if !FileExists(b) || FileExists(filepath.Join(dir, "missing")) {
		t.Error("FileExists returned the wrong answer")
	}
}
