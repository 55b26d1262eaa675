package trigger

import "time"

// ScheduledRun is a build the scheduler accepted.
type ScheduledRun struct {
	ID         string      `json:"id"`
	Job        string      `json:"job"`
	Cause      CauseRecord `json:"cause"`
	Parameters []Parameter `json:"parameters"`
	QueuedAt   time.Time   `json:"queuedAt"`
	// StartAt is when the quiet period elapses and the build may start.
	StartAt time.Time `json:"startAt"`
}
