package core

import (
	"context"

	"github.com/tomefetch/tomefetch/internal/engine/types"
)

// DownloadService defines the interface for interacting with the download engine.
// This abstraction allows the TUI and the CLI to switch between a local
// embedded backend and a remote server connection.
type DownloadService interface {
	// List returns the status of all active and finished downloads.
	List() ([]types.DownloadStatus, error)

	// History returns recorded downloads, newest first.
	History() ([]types.DownloadEntry, error)

	// Add queues a new download. An empty path selects the default directory.
	Add(url string, path string, filename string, headers map[string]string) (string, error)

	// Pause pauses an active download.
	Pause(id string) error

	// Resume resumes a paused download.
	Resume(id string) error

	// Delete cancels a queued or active download, or removes a finished one
	// from history.
	Delete(id string) error

	// StreamEvents returns a channel that receives real-time download events.
	// For local mode, this is a broadcaster subscription.
	// For remote mode, this is sourced from SSE.
	StreamEvents(ctx context.Context) (<-chan any, func(), error)

	// GetStatus returns a status for a single download by id.
	GetStatus(id string) (*types.DownloadStatus, error)

	// Shutdown handles graceful shutdown of the service
	Shutdown() error
}
