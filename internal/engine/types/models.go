package types

// DownloadEntry represents a download in the history store
type DownloadEntry struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	DestPath    string `json:"dest_path"`
	Filename    string `json:"filename"`
	Status      string `json:"status"`       // "downloading", "paused", "completed", "cancelled", "error"
	TotalSize   int64  `json:"total_size"`   // File size in bytes, 0 when unknown
	Downloaded  int64  `json:"downloaded"`   // Bytes written to DestPath
	ContentType string `json:"content_type"` // Sniffed on completion
	Error       string `json:"error,omitempty"`
	CreatedAt   int64  `json:"created_at"`   // Unix timestamp
	CompletedAt int64  `json:"completed_at"` // Unix timestamp when a terminal state was reached
	TimeTaken   int64  `json:"time_taken"`   // Duration in milliseconds
}

// DownloadStatus represents the transient status of an active download
type DownloadStatus struct {
	ID            string  `json:"id"`
	URL           string  `json:"url"`
	Filename      string  `json:"filename"`
	DestPath      string  `json:"dest_path,omitempty"` // Full absolute path to file
	TotalSize     int64   `json:"total_size"`
	Downloaded    int64   `json:"downloaded"`
	Progress      float64 `json:"progress"` // Percentage 0-100, meaningless when Indeterminate
	Indeterminate bool    `json:"indeterminate"`
	Speed         float64 `json:"speed"`  // bytes per second
	Status        string  `json:"status"` // "queued", "paused", "downloading", "completed", "cancelled", "error"
	Error         string  `json:"error,omitempty"`
	ETA           int64   `json:"eta"`      // Estimated seconds remaining
	AddedAt       int64   `json:"added_at"` // Unix timestamp when added
}
