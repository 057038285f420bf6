package models

import "time"

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)

type Status string

const (
	StatusOpen Status = "open"
	StatusDone Status = "done"
)

// Task is the unit persisted per user and mutated by the reminder scan.
// A zero Due means the task is untimed.
type Task struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Due               time.Time `json:"due,omitempty"`
	Tags              []string  `json:"tags"`
	Priority          Priority  `json:"priority"`
	Status            Status    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	EarlyReminderSent bool      `json:"early_reminder_sent"`
	DueReminderSent   bool      `json:"due_reminder_sent"`
}

func (t Task) HasDue() bool {
	return !t.Due.IsZero()
}

func (t Task) IsOpen() bool {
	return t.Status == StatusOpen
}

// Reschedule moves the due instant and re-arms both reminders.
func (t *Task) Reschedule(due time.Time) {
	t.Due = due
	t.EarlyReminderSent = false
	t.DueReminderSent = false
}

// UserProfile links a Telegram user to the chat notifications go to.
type UserProfile struct {
	UserID   int64  `json:"user_id"`
	ChatID   int64  `json:"chat_id"`
	Timezone string `json:"timezone"`
}
