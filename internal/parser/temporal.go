package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules"
	"github.com/olebedev/when/rules/en"
	"github.com/pkg/errors"
)

const (
	// Hour used when a date is named without a time of day.
	DefaultDateHour = 9
	// Fallback hours for a bare "tomorrow" / "today".
	TomorrowHour = 9
	TodayHour    = 19

	// "in N <unit>" further out than this is not read as a date.
	MaxOffsetYears = 100
)

type clock struct {
	hour, minute int
}

const monthPattern = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

var (
	relativeOffset   = regexp.MustCompile(`(?i)\bin\s+(\d+|an?|one)\s+(minutes?|mins?|hours?|hrs?|days?|weeks?)\b`)
	dayAfterTomorrow = regexp.MustCompile(`(?i)\bday\s+after\s+tomorrow\b`)
	isoDate          = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	monthFirstDate   = regexp.MustCompile(`(?i)\b(?:(on|by|until|till|before|after|from|due)\s+)?` + monthPattern + `\.?\s+(\d{1,2})(st|nd|rd|th)?\b(?:,?\s+(\d{4})\b)?`)
	dayFirstDate     = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?` + monthPattern + `\b\.?(?:,?\s+(\d{4})\b)?`)

	// Casual dates with no clock are left to the fallback defaults.
	bareCasualDate = regexp.MustCompile(`(?i)^\W*(?:today|tomorrow|tmr|now|yesterday)\W*$`)
	// A day named this way is kept even when the instant already passed.
	pinnedDay = regexp.MustCompile(`(?i)\b(?:today|tonight|now)\b`)
	// Abbreviations collide with ordinary words ("sat", "sun").
	loneShortWeekday = regexp.MustCompile(`(?i)^\W*(?:mon|tues?|wed|thu(?:rs?)?|fri|sat|sun)\W*$`)
	weekdayName      = regexp.MustCompile(`(?i)\b(?:mon|tues?|wed(?:nes)?|thu(?:rs?)?|fri|sat(?:ur)?|sun)(?:day)?\b`)
	nextModifier     = regexp.MustCompile(`(?i)\bnext\b`)
)

// Later entries win, so "afternoon" (which contains "noon") ends at 15:00.
var timeOfDayOverrides = []struct {
	keywords []string
	hour     int
}{
	{[]string{"morning"}, 9},
	{[]string{"noon", "midday"}, 12},
	{[]string{"afternoon"}, 15},
	{[]string{"evening", "after work"}, 19},
}

// Vague day parts are not registered: they only adjust an instant that
// something else produced.
var dates = newDateParser()

func newDateParser() *when.Parser {
	w := when.New(nil)
	w.Add(
		en.Weekday(rules.Override),
		en.CasualDate(rules.Override),
		en.Hour(rules.Override),
		en.HourMinute(rules.Override),
		afternoonHour(rules.Override),
	)
	return w
}

// afternoonHour reads "at 17". Only hours past noon are taken; "at 9"
// without am/pm is ambiguous.
func afternoonHour(s rules.Strategy) rules.Rule {
	return &rules.F{
		RegExp: regexp.MustCompile(`(?i)(?:\W|^)at\s+(1[3-9]|2[0-3])(?:[^\w:]|$)`),
		Applier: func(m *rules.Match, c *rules.Context, o *rules.Options, ref time.Time) (bool, error) {
			if c.Hour != nil && s != rules.Override {
				return false, nil
			}

			hour, err := strconv.Atoi(m.Captures[0])
			if err != nil {
				return false, errors.Wrap(err, "afternoon hour rule")
			}
			minute := 0

			c.Hour = &hour
			c.Minute = &minute
			return true, nil
		},
	}
}

// ResolveDue turns a fragment into a due instant relative to now. The civil
// zone is now.Location(). The second result is false for untimed fragments.
func ResolveDue(fragment string, now time.Time) (time.Time, bool) {
	due, ok := resolveExplicit(fragment, now)
	if !ok {
		due, ok = resolveFallback(fragment, now)
	}
	if !ok {
		return time.Time{}, false
	}
	return applyTimeOfDay(fragment, due), true
}

func resolveExplicit(fragment string, now time.Time) (time.Time, bool) {
	if due, found, ok := resolveOffset(fragment, now); found {
		return due, ok
	}

	if day, rest, ok := anchorDate(fragment, now); ok {
		tod := clock{DefaultDateHour, 0}
		if r, ok := read(rest, at(day, clock{now.Hour(), now.Minute()})); ok && r.hasTime {
			tod = clock{r.at.Hour(), r.at.Minute()}
		}
		return at(day, tod), true
	}

	due, text, ok := resolveAt(fragment, now)
	if !ok {
		return time.Time{}, false
	}
	if due.Before(now) && !pinnedDay.MatchString(text) {
		for _, days := range []int{1, 7} {
			if later, _, ok := resolveAt(fragment, now.AddDate(0, 0, days)); ok && !later.Before(now) {
				due = later
				break
			}
		}
	}
	if weekdayName.MatchString(text) {
		due = nearestWeekday(due, nextModifier.MatchString(text), now)
	}
	return due, true
}

// nearestWeekday moves a weekday reading by whole weeks to its first
// occurrence not before now. With "next" the occurrence must also fall on a
// later day than today.
func nearestWeekday(due time.Time, next bool, now time.Time) time.Time {
	floor := now
	if next {
		floor = midnight(now).AddDate(0, 0, 1)
	}

	for due.Before(floor) {
		due = due.AddDate(0, 0, 7)
	}
	for earlier := due.AddDate(0, 0, -7); !earlier.Before(floor); earlier = due.AddDate(0, 0, -7) {
		due = earlier
	}
	return due
}

// resolveAt reads weekdays, casual dates and clock times against ref. A
// named date without a clock lands on DefaultDateHour.
func resolveAt(fragment string, ref time.Time) (time.Time, string, bool) {
	r, ok := read(fragment, ref)
	if !ok || loneShortWeekday.MatchString(r.text) {
		return time.Time{}, "", false
	}

	if r.hasTime {
		return r.at, r.text, true
	}
	if bareCasualDate.MatchString(r.text) {
		return time.Time{}, "", false
	}
	return at(r.at, clock{DefaultDateHour, 0}), r.text, true
}

type reading struct {
	at      time.Time
	text    string
	hasTime bool
}

// read runs the date parser twice, against ref and against ref with a
// different clock on the same day. Hour and minute count as named only when
// both runs agree on them.
func read(text string, ref time.Time) (reading, bool) {
	r, err := dates.Parse(text, ref)
	if err != nil || r == nil {
		return reading{}, false
	}
	alt, err := dates.Parse(text, at(ref, clock{(ref.Hour() + 12) % 24, (ref.Minute() + 30) % 60}))
	if err != nil || alt == nil {
		return reading{}, false
	}

	got := r.Time.In(ref.Location())
	other := alt.Time.In(ref.Location())

	if got.Hour() != other.Hour() {
		return reading{at: midnight(got), text: r.Text}, true
	}

	minute := got.Minute()
	if minute != other.Minute() {
		minute = 0
	}
	return reading{at: at(got, clock{got.Hour(), minute}), text: r.Text, hasTime: true}, true
}

func resolveFallback(fragment string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(fragment)

	switch {
	case strings.Contains(lower, "tomorrow"):
		return at(midnight(now).AddDate(0, 0, 1), clock{TomorrowHour, 0}), true
	case strings.Contains(lower, "today"):
		return at(midnight(now), clock{TodayHour, 0}), true
	}
	return time.Time{}, false
}

func applyTimeOfDay(fragment string, due time.Time) time.Time {
	lower := strings.ToLower(fragment)

	for _, o := range timeOfDayOverrides {
		for _, k := range o.keywords {
			if strings.Contains(lower, k) {
				due = at(midnight(due), clock{o.hour, 0})
				break
			}
		}
	}
	return due
}

// resolveOffset reads "in N <unit>". found reports that the phrase is
// present; ok is false when N is not a usable count. Minutes and hours move
// the clock, days and weeks move the calendar and keep the current time of
// day unless one is named.
func resolveOffset(fragment string, now time.Time) (due time.Time, found, ok bool) {
	loc := relativeOffset.FindStringSubmatchIndex(fragment)
	if loc == nil {
		return time.Time{}, false, false
	}

	n, ok := offsetCount(fragment[loc[2]:loc[3]])
	if !ok {
		return time.Time{}, true, false
	}

	unit := strings.ToLower(fragment[loc[4]:loc[5]])
	days := 0
	switch {
	case strings.HasPrefix(unit, "min"):
		if n > MaxOffsetYears*366*24*60 {
			return time.Time{}, true, false
		}
		return truncateMinute(now.Add(time.Duration(n) * time.Minute)), true, true
	case strings.HasPrefix(unit, "h"):
		if n > MaxOffsetYears*366*24 {
			return time.Time{}, true, false
		}
		return truncateMinute(now.Add(time.Duration(n) * time.Hour)), true, true
	case strings.HasPrefix(unit, "day"):
		if n > MaxOffsetYears*366 {
			return time.Time{}, true, false
		}
		days = n
	default:
		if n > MaxOffsetYears*53 {
			return time.Time{}, true, false
		}
		days = n * 7
	}

	day := midnight(now).AddDate(0, 0, days)
	tod := clock{now.Hour(), now.Minute()}
	if r, ok := read(blank(fragment, loc[0], loc[1]), at(day, tod)); ok && r.hasTime {
		tod = clock{r.at.Hour(), r.at.Minute()}
	}
	return at(day, tod), true, true
}

func offsetCount(s string) (int, bool) {
	switch strings.ToLower(s) {
	case "a", "an", "one":
		return 1, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// anchorDate finds calendar dates the date parser has no rule for: ISO
// dates, month/day with an optional year and "day after tomorrow". rest is
// the fragment with the date blanked out, left for reading a clock.
func anchorDate(fragment string, now time.Time) (day time.Time, rest string, ok bool) {
	if loc := dayAfterTomorrow.FindStringIndex(fragment); loc != nil {
		return midnight(now).AddDate(0, 0, 2), blank(fragment, loc[0], loc[1]), true
	}

	if loc := isoDate.FindStringSubmatchIndex(fragment); loc != nil {
		year, _ := strconv.Atoi(fragment[loc[2]:loc[3]])
		month, _ := strconv.Atoi(fragment[loc[4]:loc[5]])
		dayOfMonth, _ := strconv.Atoi(fragment[loc[6]:loc[7]])
		if d, ok := civilDate(year, month, dayOfMonth, now.Location()); ok {
			return d, blank(fragment, loc[0], loc[1]), true
		}
	}

	for _, loc := range monthFirstDate.FindAllStringSubmatchIndex(fragment, -1) {
		prefix, month := group(fragment, loc, 1), group(fragment, loc, 2)
		suffix, year := group(fragment, loc, 4), group(fragment, loc, 5)
		// "I may 3 times try": a bare "may N" needs something marking it as a date.
		if strings.EqualFold(month, "may") && prefix == "" && suffix == "" && year == "" {
			continue
		}
		if d, ok := monthDay(month, group(fragment, loc, 3), year, now); ok {
			return d, blank(fragment, loc[0], loc[1]), true
		}
	}

	for _, loc := range dayFirstDate.FindAllStringSubmatchIndex(fragment, -1) {
		if d, ok := monthDay(group(fragment, loc, 2), group(fragment, loc, 1), group(fragment, loc, 3), now); ok {
			return d, blank(fragment, loc[0], loc[1]), true
		}
	}

	return time.Time{}, fragment, false
}

// monthDay resolves a month/day pair. Without a year a date already past
// this year moves to the next one.
func monthDay(monthName, dayStr, yearStr string, now time.Time) (time.Time, bool) {
	month := monthIndex(monthName)
	day, _ := strconv.Atoi(dayStr)

	if yearStr != "" {
		year, _ := strconv.Atoi(yearStr)
		return civilDate(year, month, day, now.Location())
	}

	d, ok := civilDate(now.Year(), month, day, now.Location())
	if !ok || d.Before(midnight(now)) {
		return civilDate(now.Year()+1, month, day, now.Location())
	}
	return d, true
}

func group(s string, loc []int, i int) string {
	if loc[2*i] < 0 {
		return ""
	}
	return s[loc[2*i]:loc[2*i+1]]
}

// blank replaces s[start:end] with spaces so offsets elsewhere stay put.
func blank(s string, start, end int) string {
	return s[:start] + strings.Repeat(" ", end-start) + s[end:]
}

func monthIndex(name string) int {
	switch strings.ToLower(name)[:3] {
	case "jan":
		return 1
	case "feb":
		return 2
	case "mar":
		return 3
	case "apr":
		return 4
	case "may":
		return 5
	case "jun":
		return 6
	case "jul":
		return 7
	case "aug":
		return 8
	case "sep":
		return 9
	case "oct":
		return 10
	case "nov":
		return 11
	default:
		return 12
	}
}

// civilDate rejects dates time.Date would silently normalize (Feb 30).
func civilDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if d.Month() != time.Month(month) || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func at(day time.Time, c clock) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.hour, c.minute, 0, 0, day.Location())
}

func truncateMinute(t time.Time) time.Time {
	return at(t, clock{t.Hour(), t.Minute()})
}
