package events

import (
	"encoding/json"
	"errors"
	"time"
)

// ProgressMsg represents a progress update from the downloader
type ProgressMsg struct {
	DownloadID    string
	Downloaded    int64
	Total         int64
	Percent       float64 // 0-100, only meaningful when Indeterminate is false
	Indeterminate bool    // Total size unknown, only a "working" state can be shown
	Speed         float64 // bytes per second
	Elapsed       time.Duration
}

// DownloadQueuedMsg is sent when the pool accepts a download
type DownloadQueuedMsg struct {
	DownloadID string
	URL        string
	Filename   string
}

// DownloadStartedMsg is sent once the destination file exists
type DownloadStartedMsg struct {
	DownloadID string
	URL        string
	Filename   string
	Total      int64
	DestPath   string // Full path to the destination file
}

type DownloadPausedMsg struct {
	DownloadID string
	Filename   string
	Downloaded int64
}

type DownloadResumedMsg struct {
	DownloadID string
	Filename   string
	Downloaded int64
}

// DownloadCompleteMsg signals that the download finished successfully
type DownloadCompleteMsg struct {
	DownloadID  string
	Filename    string
	DestPath    string
	ContentType string
	Elapsed     time.Duration
	Total       int64
}

// DownloadCancelledMsg signals a user cancellation. The partial file is kept.
type DownloadCancelledMsg struct {
	DownloadID string
	Filename   string
	DestPath   string
	Downloaded int64
}

// DownloadRemovedMsg is sent when a queued download is dropped before it started
type DownloadRemovedMsg struct {
	DownloadID string
	Filename   string
}

// DownloadErrorMsg signals that an error occurred
type DownloadErrorMsg struct {
	DownloadID string
	Filename   string
	Downloaded int64
	Err        error
}

func (m DownloadErrorMsg) MarshalJSON() ([]byte, error) {
	type encoded struct {
		DownloadID string `json:"DownloadID"`
		Filename   string `json:"Filename,omitempty"`
		Downloaded int64  `json:"Downloaded"`
		Err        string `json:"Err,omitempty"`
	}

	out := encoded{
		DownloadID: m.DownloadID,
		Filename:   m.Filename,
		Downloaded: m.Downloaded,
	}
	if m.Err != nil {
		out.Err = m.Err.Error()
	}

	return json.Marshal(out)
}

func (m *DownloadErrorMsg) UnmarshalJSON(data []byte) error {
	var aux struct {
		DownloadID string          `json:"DownloadID"`
		Filename   string          `json:"Filename"`
		Downloaded int64           `json:"Downloaded"`
		Err        json.RawMessage `json:"Err"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.DownloadID = aux.DownloadID
	m.Filename = aux.Filename
	m.Downloaded = aux.Downloaded
	m.Err = nil

	if len(aux.Err) == 0 {
		return nil
	}

	var errStr string
	if err := json.Unmarshal(aux.Err, &errStr); err == nil {
		if errStr != "" {
			m.Err = errors.New(errStr)
		}
		return nil
	}

	// Accept non-string payloads (e.g. {}) from older servers.
	raw := string(aux.Err)
	if raw != "" && raw != "null" {
		m.Err = errors.New(raw)
	}
	return nil
}

// IsTerminal reports whether msg is the last notification of a download.
func IsTerminal(msg any) bool {
	switch msg.(type) {
	case DownloadCompleteMsg, DownloadErrorMsg, DownloadCancelledMsg, DownloadRemovedMsg:
		return true
	}
	return false
}

// DownloadID extracts the download ID from any known message.
func DownloadID(msg any) string {
	switch m := msg.(type) {
	case ProgressMsg:
		return m.DownloadID
	case DownloadQueuedMsg:
		return m.DownloadID
	case DownloadStartedMsg:
		return m.DownloadID
	case DownloadPausedMsg:
		return m.DownloadID
	case DownloadResumedMsg:
		return m.DownloadID
	case DownloadCompleteMsg:
		return m.DownloadID
	case DownloadCancelledMsg:
		return m.DownloadID
	case DownloadRemovedMsg:
		return m.DownloadID
	case DownloadErrorMsg:
		return m.DownloadID
	}
	return ""
}
