package tui

import "time"

const (
	// Timeouts and Intervals
	TickInterval = 500 * time.Millisecond

	// Input Dimensions
	InputWidth = 50

	// Layout Offsets and Padding
	ProgressBarWidthOffset = 4
	MinProgressBarWidth    = 20
	DefaultPaddingX        = 1
	DefaultPaddingY        = 0
	GraphHeight            = 7

	// SpeedHistoryLen is the number of samples kept for the activity graph.
	SpeedHistoryLen = 120

	// Units
	Megabyte = 1024.0 * 1024.0

	// NotificationTTL is how long a footer message stays visible.
	NotificationTTL = 3 * time.Second
)
