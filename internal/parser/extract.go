package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"taskbot/internal/models"
)

// IDFunc returns the batch prefix shared by all tasks of one extraction.
type IDFunc func() string

func NewBatchID() string {
	return xid.New().String()
}

type Extractor struct {
	newBatchID IDFunc
}

type ExtractorOption func(*Extractor)

// WithIDFunc replaces the batch id source, mostly for tests.
func WithIDFunc(fn IDFunc) ExtractorOption {
	return func(e *Extractor) {
		e.newBatchID = fn
	}
}

func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{newBatchID: NewBatchID}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract turns an utterance into open tasks, one per non-blank fragment,
// in fragment order. Ids are "<batch>-<index>" with one batch id per call.
func (e *Extractor) Extract(utterance string, now time.Time) []models.Task {
	fragments := Segment(utterance)
	batch := e.newBatchID()

	tasks := make([]models.Task, 0, len(fragments))
	for _, fragment := range fragments {
		if strings.TrimSpace(fragment) == "" {
			continue
		}

		task := models.Task{
			ID:        fmt.Sprintf("%s-%d", batch, len(tasks)),
			Title:     NormalizeTitle(fragment),
			Tags:      InferTags(fragment),
			Priority:  InferPriority(fragment),
			Status:    models.StatusOpen,
			CreatedAt: now,
		}
		if due, ok := ResolveDue(fragment, now); ok {
			task.Due = due
		}

		tasks = append(tasks, task)
	}

	return tasks
}
