package types

// Status is the lifecycle state of a single download.
//
// Running and Paused are the only states that can be left again; Cancelled,
// Succeeded and Failed are terminal.
type Status int

const (
	StatusRunning Status = iota
	StatusPaused
	StatusCancelled
	StatusSucceeded
	StatusFailed
)

// StatusQueued is the textual status of a download that sits in the pool
// queue and has no handle yet.
const StatusQueued = "queued"

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "downloading"
	case StatusPaused:
		return "paused"
	case StatusCancelled:
		return "cancelled"
	case StatusSucceeded:
		return "completed"
	case StatusFailed:
		return "error"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusSucceeded || s == StatusFailed
}
