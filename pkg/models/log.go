package models

import "time"

// Log is one run outcome, capped per task at the store's MaxLogs retention.
type Log struct {
	ID        int64
	TaskID    int64
	Timestamp time.Time
	Status    SyncStatus
	Output    string // capped to MaxOutputBytes
	DurationS float64
	SyncMode  SyncMode
}
