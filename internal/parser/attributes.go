package parser

import (
	"regexp"
	"strings"

	"taskbot/internal/models"
)

const (
	TagCall     = "call"
	TagPayment  = "payment"
	TagWork     = "work"
	TagPersonal = "personal"
	TagReminder = "reminder"
)

// Matched as plain substrings of the lower-cased fragment, in this order.
var tagKeywords = []struct {
	tag      string
	keywords []string
}{
	{TagCall, []string{"call", "phone", "ring", "dial"}},
	{TagPayment, []string{"pay", "payment", "bill", "rent", "invoice"}},
	{TagWork, []string{"work", "meeting", "meet", "email", "review", "submit", "report"}},
	{TagPersonal, []string{"buy", "groceries", "gym", "exercise", "meditate", "walk"}},
	{TagReminder, []string{"remind", "remember"}},
}

var priorityKeywords = []string{"urgent", "asap", "important", "priority", "critical", "high"}

var callWord = regexp.MustCompile(`(?i)\bcall\b`)

// InferTags returns the categories a fragment falls into, without
// duplicates and in keyword-table order.
func InferTags(fragment string) []string {
	lower := strings.ToLower(fragment)
	tags := make([]string, 0, len(tagKeywords))

	for _, entry := range tagKeywords {
		for _, k := range entry.keywords {
			if strings.Contains(lower, k) {
				tags = append(tags, entry.tag)
				break
			}
		}
	}

	if callWord.MatchString(fragment) && !containsTag(tags, TagCall) {
		tags = append(tags, TagCall)
	}

	return tags
}

func InferPriority(fragment string) models.Priority {
	lower := strings.ToLower(fragment)
	for _, k := range priorityKeywords {
		if strings.Contains(lower, k) {
			return models.PriorityHigh
		}
	}
	return models.PriorityNormal
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
