package parser

import (
	"regexp"
	"strings"
)

// "call Sam and Lee" is split in two as well; the boundary set does not try
// to tell a joined object apart from a joined task.
var segmentBoundary = regexp.MustCompile(`(?i)(?:\s*(?:\band\b|\bthen\b|&|;|\r?\n)\s*)+`)

// Segment splits an utterance into task fragments. It always returns at
// least one element: when fewer than two non-empty pieces come out of the
// split, the trimmed utterance is returned as is.
func Segment(utterance string) []string {
	pieces := segmentBoundary.Split(utterance, -1)

	fragments := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if p = strings.TrimSpace(p); p != "" {
			fragments = append(fragments, p)
		}
	}

	if len(fragments) < 2 {
		return []string{strings.TrimSpace(utterance)}
	}
	return fragments
}
