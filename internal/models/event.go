package models

import "time"

type EventKind string

const (
	EventEarly EventKind = "early"
	EventDue   EventKind = "due"
)

// Event is a notification decided by the reminder scan. Sending it is the
// caller's job.
type Event struct {
	Kind   EventKind
	TaskID string
	Title  string
	Due    time.Time
}
