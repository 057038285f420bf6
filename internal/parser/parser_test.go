package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbot/internal/models"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

func date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, ist)
}

func TestSegment(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{"no boundary returns trimmed input", "  buy milk tomorrow  ", []string{"buy milk tomorrow"}},
		{"and", "call John and pay rent", []string{"call John", "pay rent"}},
		{"ampersand", "gym & groceries", []string{"gym", "groceries"}},
		{"then", "Email Bob THEN review report", []string{"Email Bob", "review report"}},
		{"semicolon and newline", "a; b\nc", []string{"a", "b", "c"}},
		{"and inside a word", "buy candy", []string{"buy candy"}},
		{"joined objects are split too", "call Sam and Lee", []string{"call Sam", "Lee"}},
		{"empty pieces dropped", "and buy milk", []string{"and buy milk"}},
		{"consecutive boundaries", "pay rent and then call mom", []string{"pay rent", "call mom"}},
		{"blank input", "   ", []string{""}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Segment(tc.input))
		})
	}
}

func TestResolveDue(t *testing.T) {
	t.Parallel()

	wed10 := date(2024, 1, 10, 10, 0) // Wednesday
	wed08 := date(2024, 1, 10, 8, 0)

	cases := []struct {
		name     string
		fragment string
		now      time.Time
		want     time.Time
		untimed  bool
	}{
		{name: "weekday resolves forward", fragment: "Monday at 5pm", now: wed10, want: date(2024, 1, 15, 17, 0)},
		{name: "tomorrow default", fragment: "buy milk tomorrow", now: wed08, want: date(2024, 1, 11, 9, 0)},
		{name: "today default", fragment: "submit report today", now: wed08, want: date(2024, 1, 10, 19, 0)},
		{name: "evening overrides tomorrow default", fragment: "call mom tomorrow evening", now: wed08, want: date(2024, 1, 11, 19, 0)},
		{name: "after work", fragment: "buy groceries after work today", now: wed08, want: date(2024, 1, 10, 19, 0)},
		{name: "afternoon beats noon", fragment: "dentist tomorrow afternoon", now: wed08, want: date(2024, 1, 11, 15, 0)},
		{name: "midday", fragment: "lunch with Ana tomorrow midday", now: wed08, want: date(2024, 1, 11, 12, 0)},
		{name: "morning", fragment: "run today morning", now: wed08, want: date(2024, 1, 10, 9, 0)},
		{name: "tomorrow with time", fragment: "call Mini at 10 AM tomorrow", now: wed08, want: date(2024, 1, 11, 10, 0)},
		{name: "time only still ahead", fragment: "standup at 11:30am", now: wed10, want: date(2024, 1, 10, 11, 30)},
		{name: "time only already past", fragment: "take pills at 9pm", now: date(2024, 1, 10, 22, 0), want: date(2024, 1, 11, 21, 0)},
		{name: "24h clock", fragment: "deploy 17:45", now: wed10, want: date(2024, 1, 10, 17, 45)},
		{name: "at hour", fragment: "meet Tom at 18", now: wed10, want: date(2024, 1, 10, 18, 0)},
		{name: "meridiem with space", fragment: "call the plumber at 7 pm", now: wed10, want: date(2024, 1, 10, 19, 0)},
		{name: "next weekday", fragment: "review PR next wednesday", now: wed10, want: date(2024, 1, 17, 9, 0)},
		{name: "next weekday later this week", fragment: "review PR next friday", now: wed10, want: date(2024, 1, 12, 9, 0)},
		{name: "bare weekday", fragment: "gym friday", now: wed10, want: date(2024, 1, 12, 9, 0)},
		{name: "same weekday still ahead", fragment: "Wednesday at 3pm", now: wed10, want: date(2024, 1, 10, 15, 0)},
		{name: "same weekday passed", fragment: "wednesday at 9am", now: wed10, want: date(2024, 1, 17, 9, 0)},
		{name: "month day", fragment: "renew passport Oct 5", now: wed10, want: date(2024, 10, 5, 9, 0)},
		{name: "day month with time", fragment: "party 5th of March at 8pm", now: wed10, want: date(2024, 3, 5, 20, 0)},
		{name: "month day in the past rolls to next year", fragment: "taxes Jan 5", now: wed10, want: date(2025, 1, 5, 9, 0)},
		{name: "month day with year", fragment: "conference June 3, 2026", now: wed10, want: date(2026, 6, 3, 9, 0)},
		{name: "iso date", fragment: "ship 2024-02-01 at 4pm", now: wed10, want: date(2024, 2, 1, 16, 0)},
		{name: "day after tomorrow", fragment: "visit grandma day after tomorrow", now: wed10, want: date(2024, 1, 12, 9, 0)},
		{name: "in minutes", fragment: "check oven in 45 minutes", now: wed10, want: date(2024, 1, 10, 10, 45)},
		{name: "in an hour", fragment: "call back in an hour", now: wed10, want: date(2024, 1, 10, 11, 0)},
		{name: "in days", fragment: "water plants in 3 days", now: wed10, want: date(2024, 1, 13, 10, 0)},
		{name: "in a week evening", fragment: "book tickets in a week evening", now: wed10, want: date(2024, 1, 17, 19, 0)},
		{name: "in weeks", fragment: "dentist checkup in 2 weeks", now: wed10, want: date(2024, 1, 24, 10, 0)},
		{name: "in days with time", fragment: "renew lease in 3 days at 5pm", now: wed10, want: date(2024, 1, 13, 17, 0)},
		{name: "offset past the horizon", fragment: "ping server in 153722868 minutes", now: wed10, untimed: true},
		{name: "hours past the horizon", fragment: "ping server in 9999999 hours", now: wed10, untimed: true},
		{name: "weeks past the horizon", fragment: "ping server in 100000 weeks", now: wed10, untimed: true},
		{name: "count too large for an int", fragment: "ping server in 99999999999999999999 minutes", now: wed10, untimed: true},
		{name: "may as a verb", fragment: "I may 3 times try", now: wed10, untimed: true},
		{name: "may as a date", fragment: "renew insurance on May 3", now: wed10, want: date(2024, 5, 3, 9, 0)},
		{name: "may with ordinal", fragment: "renew insurance May 3rd", now: wed10, want: date(2024, 5, 3, 9, 0)},
		{name: "no date", fragment: "read a book", now: wed10, untimed: true},
		{name: "vague word alone stays untimed", fragment: "walk in the evening", now: wed10, untimed: true},
		{name: "invalid clock ignored", fragment: "meet at 25:00", now: wed10, untimed: true},
		{name: "invalid date ignored", fragment: "party Feb 30", now: wed10, untimed: true},
		{name: "sat is not saturday", fragment: "I sat down", now: wed10, untimed: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, ok := ResolveDue(tc.fragment, tc.now)
			if tc.untimed {
				assert.False(t, ok, "expected untimed, got %v", got)
				return
			}
			require.True(t, ok)
			assert.True(t, tc.want.Equal(got), "want %v, got %v", tc.want, got)
			assert.Equal(t, tc.now.Location(), got.Location())
		})
	}
}

func TestResolveDueNeverPastForWeekdays(t *testing.T) {
	t.Parallel()

	now := date(2024, 1, 10, 10, 0)
	for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		got, ok := ResolveDue(day+" at 9am", now)
		require.True(t, ok, day)
		assert.False(t, got.Before(now), "%s resolved to the past: %v", day, got)
	}
}

func TestNearestWeekday(t *testing.T) {
	t.Parallel()

	now := date(2024, 1, 10, 10, 0)

	assert.Equal(t, date(2024, 1, 17, 9, 0), nearestWeekday(date(2024, 1, 3, 9, 0), false, now))
	assert.Equal(t, date(2024, 1, 10, 15, 0), nearestWeekday(date(2024, 1, 24, 15, 0), false, now))
	assert.Equal(t, date(2024, 1, 17, 15, 0), nearestWeekday(date(2024, 1, 10, 15, 0), true, now))
	assert.Equal(t, date(2024, 1, 12, 9, 0), nearestWeekday(date(2024, 1, 26, 9, 0), true, now))
}

func TestInferTags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{TagPayment}, InferTags("pay the rent bill"))
	assert.Equal(t, []string{TagCall}, InferTags("Call John"))
	assert.Equal(t, []string{TagWork}, InferTags("submit report today"))
	assert.Equal(t, []string{TagPersonal}, InferTags("buy milk tomorrow"))
	assert.Equal(t, []string{TagReminder}, InferTags("remember the keys"))
	assert.Equal(t, []string{TagCall, TagPayment}, InferTags("phone the bank about the invoice"))
	assert.Empty(t, InferTags("read a novel"))

	fragments := Segment("call John and pay rent")
	require.Len(t, fragments, 2)
	assert.Equal(t, []string{TagCall}, InferTags(fragments[0]))
	assert.Equal(t, []string{TagPayment}, InferTags(fragments[1]))
}

func TestInferPriority(t *testing.T) {
	t.Parallel()

	assert.Equal(t, models.PriorityHigh, InferPriority("URGENT: fix prod"))
	assert.Equal(t, models.PriorityHigh, InferPriority("send invoice asap"))
	assert.Equal(t, models.PriorityHigh, InferPriority("critical patch"))
	assert.Equal(t, models.PriorityNormal, InferPriority("water the plants"))
}

func TestNormalizeTitle(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"buy milk tomorrow":                "buy milk",
		"call mom tomorrow evening":        "call mom",
		"Buy groceries after work today":   "Buy groceries",
		"call Mini at 10 AM tomorrow":      "call Mini",
		"pay rent today before the office": "pay rent before the office",
		"dentist at 5:30pm":                "dentist",
		"tomorrow at 9am":                  "tomorrow at 9am",
		"  tomorrow  ":                     "tomorrow",
		"":                                 UntitledTask,
		"   ":                              UntitledTask,
	}

	for in, want := range cases {
		assert.Equal(t, want, NormalizeTitle(in), "NormalizeTitle(%q)", in)
	}
}

func TestExtract(t *testing.T) {
	t.Parallel()

	now := date(2024, 1, 10, 8, 0)
	e := NewExtractor(WithIDFunc(func() string { return "batch" }))

	tasks := e.Extract("call John tomorrow evening and pay rent today urgent", now)
	require.Len(t, tasks, 2)

	assert.Equal(t, "batch-0", tasks[0].ID)
	assert.Equal(t, "call John", tasks[0].Title)
	assert.Equal(t, []string{TagCall}, tasks[0].Tags)
	assert.Equal(t, models.PriorityNormal, tasks[0].Priority)
	assert.True(t, date(2024, 1, 11, 19, 0).Equal(tasks[0].Due))

	assert.Equal(t, "batch-1", tasks[1].ID)
	assert.Equal(t, "pay rent urgent", tasks[1].Title)
	assert.Equal(t, []string{TagPayment}, tasks[1].Tags)
	assert.Equal(t, models.PriorityHigh, tasks[1].Priority)
	assert.True(t, date(2024, 1, 10, 19, 0).Equal(tasks[1].Due))

	for _, task := range tasks {
		assert.Equal(t, models.StatusOpen, task.Status)
		assert.True(t, now.Equal(task.CreatedAt))
		assert.False(t, task.EarlyReminderSent)
		assert.False(t, task.DueReminderSent)
	}
}

func TestExtractUntimedAndBlank(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	now := date(2024, 1, 10, 8, 0)

	tasks := e.Extract("read a book", now)
	require.Len(t, tasks, 1)
	assert.False(t, tasks[0].HasDue())

	assert.Empty(t, e.Extract("   ", now))
}

func TestExtractIDsUniqueAcrossCalls(t *testing.T) {
	t.Parallel()

	e := NewExtractor()
	now := date(2024, 1, 10, 8, 0)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		for _, task := range e.Extract("a and b", now) {
			assert.False(t, seen[task.ID], "duplicate id %s", task.ID)
			seen[task.ID] = true
		}
	}
}
