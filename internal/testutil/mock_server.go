// Package testutil provides testing utilities for the tomefetch downloader.
package testutil

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// MockServer is a configurable HTTP file server for download tests.
type MockServer struct {
	Server *httptest.Server

	// Configuration
	FileSize         int64         // Size of the served file
	ContentType      string        // Content-Type header value
	Filename         string        // Filename in Content-Disposition header
	RandomData       bool          // If true, serve random data; otherwise serve zeros
	HideLength       bool          // Omit Content-Length (chunked transfer encoding)
	ChunkLatency     time.Duration // Latency after every written chunk
	FailAfterBytes   int64         // Drop the connection after this many bytes (0 = no fail)
	FailOnNthRequest int           // Answer the Nth request with 500 (0 = don't fail)

	// Tracking
	RequestCount   atomic.Int64
	BytesServed    atomic.Int64
	FailedRequests atomic.Int64
	LastHeaders    atomic.Pointer[http.Header]

	requestCountMu sync.Mutex
	internalReqNum int

	data          []byte
	CustomHandler http.HandlerFunc
}

// MockServerOption is a function that configures a MockServer.
type MockServerOption func(*MockServer)

// WithHandler sets a custom request handler.
func WithHandler(h http.HandlerFunc) MockServerOption {
	return func(m *MockServer) {
		m.CustomHandler = h
	}
}

// WithFileSize sets the file size to serve.
func WithFileSize(size int64) MockServerOption {
	return func(m *MockServer) {
		m.FileSize = size
	}
}

// WithContentType sets the Content-Type header.
func WithContentType(ct string) MockServerOption {
	return func(m *MockServer) {
		m.ContentType = ct
	}
}

// WithFilename sets the filename in Content-Disposition header.
func WithFilename(name string) MockServerOption {
	return func(m *MockServer) {
		m.Filename = name
	}
}

// WithRandomData enables serving random bytes instead of zeros.
func WithRandomData(random bool) MockServerOption {
	return func(m *MockServer) {
		m.RandomData = random
	}
}

// WithHiddenLength serves the body without a Content-Length header.
func WithHiddenLength() MockServerOption {
	return func(m *MockServer) {
		m.HideLength = true
	}
}

// WithChunkLatency sleeps after every chunk written to the client.
func WithChunkLatency(d time.Duration) MockServerOption {
	return func(m *MockServer) {
		m.ChunkLatency = d
	}
}

// WithFailAfterBytes causes the connection to fail after serving N bytes.
func WithFailAfterBytes(n int64) MockServerOption {
	return func(m *MockServer) {
		m.FailAfterBytes = n
	}
}

// WithFailOnNthRequest causes the Nth request to fail.
func WithFailOnNthRequest(n int) MockServerOption {
	return func(m *MockServer) {
		m.FailOnNthRequest = n
	}
}

func newMockServer(opts []MockServerOption) *MockServer {
	m := &MockServer{
		FileSize:    1024 * 1024, // 1MB default
		ContentType: "application/octet-stream",
		Filename:    "testfile.bin",
	}

	for _, opt := range opts {
		opt(m)
	}

	m.data = make([]byte, m.FileSize)
	if m.RandomData {
		_, _ = rand.Read(m.data)
	}
	return m
}

// NewMockServerT creates a new mock HTTP server and skips the test if binding fails.
func NewMockServerT(t *testing.T, opts ...MockServerOption) *MockServer {
	t.Helper()
	m := newMockServer(opts)
	m.Server = NewHTTPServerT(t, http.HandlerFunc(m.handleRequest))
	return m
}

// URL returns the server's URL.
func (m *MockServer) URL() string {
	return m.Server.URL
}

// Data returns the bytes the server serves.
func (m *MockServer) Data() []byte {
	return m.data
}

// Stats returns a summary of server statistics.
func (m *MockServer) Stats() MockServerStats {
	return MockServerStats{
		TotalRequests:  m.RequestCount.Load(),
		BytesServed:    m.BytesServed.Load(),
		FailedRequests: m.FailedRequests.Load(),
	}
}

// MockServerStats contains server statistics.
type MockServerStats struct {
	TotalRequests  int64
	BytesServed    int64
	FailedRequests int64
}

func (m *MockServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	if m.CustomHandler != nil {
		m.CustomHandler(w, r)
		return
	}

	m.RequestCount.Add(1)
	headers := r.Header.Clone()
	m.LastHeaders.Store(&headers)

	m.requestCountMu.Lock()
	m.internalReqNum++
	reqNum := m.internalReqNum
	m.requestCountMu.Unlock()

	if m.FailOnNthRequest > 0 && reqNum == m.FailOnNthRequest {
		m.FailedRequests.Add(1)
		http.Error(w, "Simulated failure", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", m.ContentType)
	if !m.HideLength {
		w.Header().Set("Content-Length", strconv.FormatInt(m.FileSize, 10))
	}
	if m.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, m.Filename))
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	flusher, _ := w.(http.Flusher)
	chunkSize := int64(32 * 1024)
	var written int64
	for written < m.FileSize {
		if m.FailAfterBytes > 0 && written >= m.FailAfterBytes {
			m.FailedRequests.Add(1)
			panic(http.ErrAbortHandler)
		}

		end := written + chunkSize
		if end > m.FileSize {
			end = m.FileSize
		}
		if m.FailAfterBytes > 0 && end > m.FailAfterBytes {
			end = m.FailAfterBytes
		}

		n, err := w.Write(m.data[written:end])
		if err != nil {
			return // Client disconnected
		}
		written += int64(n)
		m.BytesServed.Add(int64(n))

		if flusher != nil {
			flusher.Flush()
		}
		if m.ChunkLatency > 0 {
			time.Sleep(m.ChunkLatency)
		}
	}
}
