package reminder

import (
	"fmt"
	"time"

	"taskbot/internal/models"
)

const (
	DefaultEarlyLead = 30 * time.Minute
	DefaultDueGrace  = 10 * time.Minute

	timeLayout = "3:04 PM"
)

// Scanner decides which reminders are due. The early lead must be at least
// the scan interval or early warnings can be skipped entirely.
type Scanner struct {
	EarlyLead time.Duration
	DueGrace  time.Duration
}

func NewScanner() Scanner {
	return Scanner{
		EarlyLead: DefaultEarlyLead,
		DueGrace:  DefaultDueGrace,
	}
}

// Scan returns the events to send at now and the task list with reminder
// flags updated. tasks is not modified. A flag already set is never
// re-evaluated, so the result is only idempotent if the returned list is
// persisted before the next scan.
func (s Scanner) Scan(tasks []models.Task, now time.Time) ([]models.Event, []models.Task) {
	updated := make([]models.Task, len(tasks))
	copy(updated, tasks)

	var events []models.Event
	for i := range updated {
		t := &updated[i]
		if !t.IsOpen() || !t.HasDue() {
			continue
		}

		early := t.Due.Add(-s.EarlyLead)

		if !t.EarlyReminderSent && !now.Before(early) && now.Before(t.Due) {
			events = append(events, models.Event{
				Kind:   models.EventEarly,
				TaskID: t.ID,
				Title:  t.Title,
				Due:    t.Due,
			})
			t.EarlyReminderSent = true
		}

		if !t.DueReminderSent && !now.Before(t.Due) && now.Before(t.Due.Add(s.DueGrace)) {
			events = append(events, models.Event{
				Kind:   models.EventDue,
				TaskID: t.ID,
				Title:  t.Title,
				Due:    t.Due,
			})
			t.DueReminderSent = true
		}
	}

	return events, updated
}

// Message renders an event for the chat, with the due time shown in loc.
func (s Scanner) Message(e models.Event, loc *time.Location) string {
	switch e.Kind {
	case models.EventEarly:
		return fmt.Sprintf("⏰ Heads up in %s: %s — at %s", shortDuration(s.EarlyLead), e.Title, e.Due.In(loc).Format(timeLayout))
	default:
		return fmt.Sprintf("🔔 Due now: %s", e.Title)
	}
}

func shortDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", d/time.Hour)
	}
	return fmt.Sprintf("%dm", d/time.Minute)
}
