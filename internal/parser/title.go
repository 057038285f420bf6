package parser

import (
	"regexp"
	"strings"
)

const UntitledTask = "Untitled task"

var (
	temporalWords = regexp.MustCompile(`(?i)\b(?:today|tomorrow|morning|noon|afternoon|evening|after\s+work)\b`)
	trailingAt    = regexp.MustCompile(`(?i)(?:^|\s+)at\s+\d{1,2}(?::\d{2})?\s*(?:am|pm)?$`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// NormalizeTitle strips temporal phrases from a fragment. It never returns
// an empty string: the trimmed fragment is used when nothing is left, and
// UntitledTask when the fragment itself is blank.
func NormalizeTitle(fragment string) string {
	title := temporalWords.ReplaceAllString(fragment, " ")
	title = strings.TrimSpace(whitespaceRun.ReplaceAllString(title, " "))
	title = strings.TrimSpace(trailingAt.ReplaceAllString(title, ""))

	if title != "" {
		return title
	}
	if original := strings.TrimSpace(fragment); original != "" {
		return original
	}
	return UntitledTask
}
