package events

import (
	"encoding/json"
	"fmt"
)

// Event names used on the SSE wire.
const (
	NameProgress  = "progress"
	NameQueued    = "queued"
	NameStarted   = "started"
	NamePaused    = "paused"
	NameResumed   = "resumed"
	NameComplete  = "complete"
	NameCancelled = "cancelled"
	NameRemoved   = "removed"
	NameError     = "error"
)

// Name returns the wire name of msg, or "" for unknown types.
func Name(msg any) string {
	switch msg.(type) {
	case ProgressMsg:
		return NameProgress
	case DownloadQueuedMsg:
		return NameQueued
	case DownloadStartedMsg:
		return NameStarted
	case DownloadPausedMsg:
		return NamePaused
	case DownloadResumedMsg:
		return NameResumed
	case DownloadCompleteMsg:
		return NameComplete
	case DownloadCancelledMsg:
		return NameCancelled
	case DownloadRemovedMsg:
		return NameRemoved
	case DownloadErrorMsg:
		return NameError
	}
	return ""
}

// Decode turns a named JSON payload back into its message type.
func Decode(name string, data []byte) (any, error) {
	switch name {
	case NameProgress:
		return decodeAs[ProgressMsg](data)
	case NameQueued:
		return decodeAs[DownloadQueuedMsg](data)
	case NameStarted:
		return decodeAs[DownloadStartedMsg](data)
	case NamePaused:
		return decodeAs[DownloadPausedMsg](data)
	case NameResumed:
		return decodeAs[DownloadResumedMsg](data)
	case NameComplete:
		return decodeAs[DownloadCompleteMsg](data)
	case NameCancelled:
		return decodeAs[DownloadCancelledMsg](data)
	case NameRemoved:
		return decodeAs[DownloadRemovedMsg](data)
	case NameError:
		return decodeAs[DownloadErrorMsg](data)
	}
	return nil, fmt.Errorf("unknown event %q", name)
}

func decodeAs[T any](data []byte) (any, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe renders msg as a single human readable line, or "" for messages
// that are not worth printing (progress).
func Describe(msg any) string {
	id := shortID(DownloadID(msg))
	switch m := msg.(type) {
	case DownloadQueuedMsg:
		return fmt.Sprintf("Queued: %s [%s]", m.Filename, id)
	case DownloadStartedMsg:
		return fmt.Sprintf("Started: %s [%s] -> %s", m.Filename, id, m.DestPath)
	case DownloadPausedMsg:
		return fmt.Sprintf("Paused: %s [%s] at %d bytes", m.Filename, id, m.Downloaded)
	case DownloadResumedMsg:
		return fmt.Sprintf("Resumed: %s [%s]", m.Filename, id)
	case DownloadCompleteMsg:
		return fmt.Sprintf("Completed: %s [%s] (in %s)", m.Filename, id, m.Elapsed.Round(1e6))
	case DownloadCancelledMsg:
		return fmt.Sprintf("Cancelled: %s [%s] after %d bytes", m.Filename, id, m.Downloaded)
	case DownloadRemovedMsg:
		return fmt.Sprintf("Removed: %s [%s]", m.Filename, id)
	case DownloadErrorMsg:
		return fmt.Sprintf("Error: %s [%s]: %v", m.Filename, id, m.Err)
	}
	return ""
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
