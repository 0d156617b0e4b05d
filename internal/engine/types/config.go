package types

import (
	"time"
)

// Size constants
const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB

	// Megabyte as float for display calculations
	Megabyte = 1024.0 * 1024.0
)

// Chunk constants for the single-stream downloader
const (
	DefaultChunkSize = 4 * KB // Bytes per read/write cycle
	MaxChunkSize     = 4 * MB // Upper bound accepted from settings
)

// Pool limits
const (
	DefaultMaxConcurrentDownloads = 3
	MaxConcurrentDownloads        = 10
)

// HTTP Client Tuning
const (
	DefaultMaxIdleConns          = 100
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 15 * time.Second
	DialTimeout                  = 10 * time.Second
	KeepAliveDuration            = 30 * time.Second
	MaxRedirects                 = 10
)

// Channel buffer sizes
const (
	ProgressChannelBuffer = 100
	QueueBuffer           = 100
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DownloadConfig contains all parameters needed to queue a download
type DownloadConfig struct {
	ID        string
	URL       string
	OutputDir string
	Filename  string            // Optional, derived from the source when empty
	TotalSize int64             // Declared size, 0 when unknown
	Headers   map[string]string // Custom HTTP headers (cookies, auth, etc.)
	Runtime   *RuntimeConfig    // Dynamic settings from user config
}

// RuntimeConfig holds dynamic settings that can override defaults
type RuntimeConfig struct {
	ChunkSize              int
	UserAgent              string
	ProxyURL               string
	SkipTLSVerification    bool
	PreserveURLPath        bool
	MaxConcurrentDownloads int
}

// GetUserAgent returns the configured user agent or the default
func (r *RuntimeConfig) GetUserAgent() string {
	if r == nil || r.UserAgent == "" {
		return DefaultUserAgent
	}
	return r.UserAgent
}

// GetChunkSize returns configured value or default, capped at MaxChunkSize
func (r *RuntimeConfig) GetChunkSize() int {
	if r == nil || r.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	if r.ChunkSize > MaxChunkSize {
		return MaxChunkSize
	}
	return r.ChunkSize
}

// GetMaxConcurrentDownloads returns configured value or default
func (r *RuntimeConfig) GetMaxConcurrentDownloads() int {
	if r == nil || r.MaxConcurrentDownloads <= 0 {
		return DefaultMaxConcurrentDownloads
	}
	if r.MaxConcurrentDownloads > MaxConcurrentDownloads {
		return MaxConcurrentDownloads
	}
	return r.MaxConcurrentDownloads
}
