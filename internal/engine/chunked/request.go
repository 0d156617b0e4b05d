// Package chunked streams a byte source to a local file in fixed-size chunks.
//
// Every download runs on its own goroutine. The returned Handle is the only
// way to observe or steer it: Pause and Resume suspend and continue at chunk
// boundaries, Cancel stops the download and keeps the partial file. Progress
// and lifecycle messages are delivered to an events.Sink in order, and the
// terminal message is always the last one.
package chunked

import (
	"errors"
	"time"

	"github.com/tomefetch/tomefetch/internal/engine/source"
	"github.com/tomefetch/tomefetch/internal/engine/types"
)

var (
	// ErrNotStarted is returned by Handle methods on a handle that did not
	// come from Downloader.Start.
	ErrNotStarted = errors.New("download not started")

	// ErrInvalidRequest wraps request validation failures reported by Start.
	ErrInvalidRequest = errors.New("invalid download request")
)

// Request describes one download. It is not modified after Start.
type Request struct {
	ID        string        // Generated when empty
	Source    source.Source // Where the bytes come from
	TargetDir string        // Created when missing
	Filename  string        // Derived from the source when empty
	TotalSize int64         // Declared size, 0 = unknown
	ChunkSize int           // Bytes per read/write cycle, 0 = types.DefaultChunkSize

	// KeepExisting writes to "name(N).ext" instead of truncating a file
	// that is already there.
	KeepExisting bool
}

// DownloadState is a point-in-time view of a running or finished download.
type DownloadState struct {
	ID         string
	Filename   string
	OutputFile string // Set once, before the first byte is written
	Status     types.Status
	Downloaded int64
	Total      int64 // 0 when unknown
	Err        error // Only set when Status is StatusFailed
	Elapsed    time.Duration
}

// Result is the outcome of a finished download.
type Result struct {
	ID          string
	Status      types.Status
	Path        string
	Downloaded  int64
	Err         error
	Elapsed     time.Duration // Active time, paused time excluded
	ContentType string        // Sniffed on success, else the declared type
}
