package manager

import (
	"fmt"
	"strings"
	"time"

	"taskbot/internal/models"
)

const noDueTime = "no due time"

// FormatTaskShort renders one line of /next, /today and /list output.
func FormatTaskShort(t models.Task, loc *time.Location) string {
	status := "○"
	if t.Status == models.StatusDone {
		status = "✔"
	}

	due := noDueTime
	if t.HasDue() {
		due = t.Due.In(loc).Format("02 Jan, 3:04 PM")
	}

	tags := ""
	if len(t.Tags) > 0 {
		tags = " [" + strings.Join(t.Tags, ", ") + "]"
	}

	pr := ""
	if t.Priority == models.PriorityHigh {
		pr = " ❗"
	}

	return fmt.Sprintf("%s (%s) %s%s — %s%s", status, t.ID, t.Title, tags, due, pr)
}

// FormatTaskList joins short lines, or returns empty when there are none.
func FormatTaskList(tasks []models.Task, loc *time.Location, empty string) string {
	if len(tasks) == 0 {
		return empty
	}

	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, FormatTaskShort(t, loc))
	}
	return strings.Join(lines, "\n")
}

func FormatAdded(tasks []models.Task, loc *time.Location) string {
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, fmt.Sprintf("Task added: %s — %s", t.Title, dayTime(t, loc)))
	}
	return strings.Join(lines, "\n")
}

func FormatDone(t models.Task) string {
	return fmt.Sprintf("Marked done: %s ✅", t.Title)
}

func FormatSnoozed(t models.Task, loc *time.Location) string {
	return fmt.Sprintf("Snoozed: %s — to %s", t.Title, dayTime(t, loc))
}

func FormatDigest(tasks []models.Task, loc *time.Location) string {
	if len(tasks) == 0 {
		return "Good morning! Here is your to-do for today:\n\nNothing due today."
	}

	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		due := "anytime"
		if t.HasDue() {
			due = t.Due.In(loc).Format("3:04 PM")
		}
		lines = append(lines, fmt.Sprintf("• %s — %s", t.Title, due))
	}
	return "Good morning! Here is your to-do for today:\n\n" + strings.Join(lines, "\n")
}

func dayTime(t models.Task, loc *time.Location) string {
	if !t.HasDue() {
		return noDueTime
	}
	return t.Due.In(loc).Format("Mon 3:04 PM")
}
