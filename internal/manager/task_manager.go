package manager

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"taskbot/internal/logger"
	"taskbot/internal/models"
	"taskbot/internal/parser"
	"taskbot/internal/reminder"
	"taskbot/internal/storage"
)

const (
	DefaultSnooze = 60 * time.Minute
	MaxSnooze     = 365 * 24 * time.Hour
	NextLimit     = 5
)

var ErrTaskNotFound = errors.New("task not found")

var snoozePattern = regexp.MustCompile(`(?i)(\d+)([mh])`)

var (
	addTaskCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskbot_tasks_added_total",
			Help: "Total number of tasks extracted from messages",
		},
		[]string{"status"},
	)

	updateTaskCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskbot_tasks_updated_total",
			Help: "Total number of done and snooze operations",
		},
		[]string{"action", "status"},
	)

	taskTitleLength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskbot_task_title_length_bytes",
			Help:    "Length distribution of extracted task titles",
			Buckets: []float64{10, 25, 50, 100, 250},
		},
	)

	addTaskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskbot_add_task_duration_seconds",
			Help:    "Duration of AddFromText operation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	reminderSentCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskbot_reminders_sent_total",
			Help: "Total number of reminder notifications",
		},
		[]string{"kind", "status"},
	)

	reminderRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskbot_reminder_run_duration_seconds",
			Help:    "Duration of a reminder run over all users in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	digestSentCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskbot_digests_sent_total",
			Help: "Total number of daily digest messages",
		},
		[]string{"status"},
	)
)

// Sender delivers a text message to a chat.
type Sender interface {
	SendNotification(ctx context.Context, chatID int64, text string) error
}

type TaskManager struct {
	storage   storage.Storage
	extractor *parser.Extractor
	scanner   reminder.Scanner
	loc       *time.Location
	now       func() time.Time
}

type Option func(*TaskManager)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(tm *TaskManager) {
		tm.now = now
	}
}

func WithScanner(s reminder.Scanner) Option {
	return func(tm *TaskManager) {
		tm.scanner = s
	}
}

func WithExtractor(e *parser.Extractor) Option {
	return func(tm *TaskManager) {
		tm.extractor = e
	}
}

// NewTaskManager creates a manager that interprets every date in loc.
func NewTaskManager(s storage.Storage, loc *time.Location, opts ...Option) *TaskManager {
	tm := &TaskManager{
		storage:   s,
		extractor: parser.NewExtractor(),
		scanner:   reminder.NewScanner(),
		loc:       loc,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

// Now returns the current instant in the manager's civil zone.
func (tm *TaskManager) Now() time.Time {
	return tm.now().In(tm.loc)
}

func (tm *TaskManager) Location() *time.Location {
	return tm.loc
}

// AddFromText extracts tasks from text and appends them to the user's list.
func (tm *TaskManager) AddFromText(ctx context.Context, userID int64, text string) ([]models.Task, error) {
	startTime := time.Now()
	defer func() {
		addTaskDuration.Observe(time.Since(startTime).Seconds())
	}()

	added := tm.extractor.Extract(text, tm.Now())
	if len(added) == 0 {
		return nil, nil
	}

	tasks, err := tm.storage.GetTasks(ctx, userID)
	if err != nil {
		addTaskCount.WithLabelValues("error").Add(float64(len(added)))
		return nil, errors.Wrap(err, "could not load tasks")
	}

	if err := tm.storage.SetTasks(ctx, userID, append(tasks, added...)); err != nil {
		addTaskCount.WithLabelValues("error").Add(float64(len(added)))
		return nil, errors.Wrap(err, "could not save tasks")
	}

	for _, task := range added {
		taskTitleLength.Observe(float64(len(task.Title)))
	}
	addTaskCount.WithLabelValues("success").Add(float64(len(added)))

	logger.Debug(ctx, "tasks added", "user", userID, "count", len(added))
	return added, nil
}

func (tm *TaskManager) List(ctx context.Context, userID int64) ([]models.Task, error) {
	tasks, err := tm.storage.GetTasks(ctx, userID)
	return tasks, errors.Wrap(err, "could not load tasks")
}

// Next returns up to limit open tasks, earliest due first, untimed last.
func (tm *TaskManager) Next(ctx context.Context, userID int64, limit int) ([]models.Task, error) {
	tasks, err := tm.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	open := make([]models.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.IsOpen() {
			open = append(open, task)
		}
	}
	sortByDue(open)

	if len(open) > limit {
		open = open[:limit]
	}
	return open, nil
}

// Today returns the tasks due on the current civil date, in list order.
func (tm *TaskManager) Today(ctx context.Context, userID int64) ([]models.Task, error) {
	tasks, err := tm.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dueOn(tasks, tm.Now(), false), nil
}

func (tm *TaskManager) MarkDone(ctx context.Context, userID int64, id string) (*models.Task, error) {
	return tm.update(ctx, userID, id, "done", func(task *models.Task) {
		task.Status = models.StatusDone
	})
}

// Snooze moves the task's due instant forward by d, counting from the
// current due instant or from now for untimed tasks. Both reminders are
// armed again.
func (tm *TaskManager) Snooze(ctx context.Context, userID int64, id string, d time.Duration) (*models.Task, error) {
	if d <= 0 || d > MaxSnooze {
		d = DefaultSnooze
	}

	now := tm.Now()
	return tm.update(ctx, userID, id, "snooze", func(task *models.Task) {
		from := now
		if task.HasDue() {
			from = task.Due.In(tm.loc)
		}
		task.Reschedule(from.Add(d))
	})
}

func (tm *TaskManager) update(ctx context.Context, userID int64, id, action string, apply func(*models.Task)) (*models.Task, error) {
	tasks, err := tm.storage.GetTasks(ctx, userID)
	if err != nil {
		updateTaskCount.WithLabelValues(action, "error").Inc()
		return nil, errors.Wrap(err, "could not load tasks")
	}

	for i := range tasks {
		if tasks[i].ID != id {
			continue
		}

		apply(&tasks[i])
		if err := tm.storage.SetTasks(ctx, userID, tasks); err != nil {
			updateTaskCount.WithLabelValues(action, "error").Inc()
			return nil, errors.Wrap(err, "could not save tasks")
		}

		updateTaskCount.WithLabelValues(action, "success").Inc()
		task := tasks[i]
		return &task, nil
	}

	updateTaskCount.WithLabelValues(action, "not_found").Inc()
	return nil, errors.Wrapf(ErrTaskNotFound, "%s", id)
}

// ParseSnoozeDuration reads "30m" or "2h" style values. Anything it can't
// read, or anything longer than MaxSnooze, yields DefaultSnooze.
func ParseSnoozeDuration(s string) time.Duration {
	m := snoozePattern.FindStringSubmatch(s)
	if m == nil {
		return DefaultSnooze
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return DefaultSnooze
	}

	unit := time.Minute
	if strings.EqualFold(m[2], "h") {
		unit = time.Hour
	}
	if n > int(MaxSnooze/unit) {
		return DefaultSnooze
	}
	return time.Duration(n) * unit
}

// RunReminders scans every user with a profile and sends the reminders
// that are due. A failed send is logged and the reminder is still marked as
// sent. It returns the number of messages delivered.
func (tm *TaskManager) RunReminders(ctx context.Context, sender Sender) (int, error) {
	startTime := time.Now()
	defer func() {
		reminderRunDuration.Observe(time.Since(startTime).Seconds())
	}()

	now := tm.Now()
	userIDs, err := tm.storage.ListAllUserIDs(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "could not list users")
	}

	sent := 0
	for _, userID := range userIDs {
		n, err := tm.remindUser(ctx, sender, userID, now)
		sent += n
		if err != nil {
			logger.Error(ctx, err, "reminder run failed for user", "user", userID)
		}
	}

	logger.Info(ctx, "reminder run finished", "users", len(userIDs), "sent", sent)
	return sent, nil
}

func (tm *TaskManager) remindUser(ctx context.Context, sender Sender, userID int64, now time.Time) (int, error) {
	tasks, err := tm.storage.GetTasks(ctx, userID)
	if err != nil {
		return 0, errors.Wrap(err, "could not load tasks")
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	profile, err := tm.storage.GetUserProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "could not load profile")
	}

	events, updated := tm.scanner.Scan(tasks, now)
	if len(events) == 0 {
		return 0, nil
	}

	sent := 0
	for _, event := range events {
		err := sender.SendNotification(ctx, profile.ChatID, tm.scanner.Message(event, tm.loc))
		if err != nil {
			reminderSentCount.WithLabelValues(string(event.Kind), "error").Inc()
			logger.Error(ctx, err, "could not send reminder", "user", userID, "task", event.TaskID, "kind", event.Kind)
			continue
		}
		reminderSentCount.WithLabelValues(string(event.Kind), "success").Inc()
		sent++
	}

	if err := tm.storage.SetTasks(ctx, userID, updated); err != nil {
		return sent, errors.Wrap(err, "could not save tasks")
	}
	return sent, nil
}

// RunDigest sends every user with a profile the list of open tasks due
// today. It returns the number of digests delivered.
func (tm *TaskManager) RunDigest(ctx context.Context, sender Sender) (int, error) {
	now := tm.Now()
	userIDs, err := tm.storage.ListAllUserIDs(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "could not list users")
	}

	sent := 0
	for _, userID := range userIDs {
		profile, err := tm.storage.GetUserProfile(ctx, userID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			logger.Error(ctx, err, "could not load profile", "user", userID)
			continue
		}

		tasks, err := tm.storage.GetTasks(ctx, userID)
		if err != nil {
			logger.Error(ctx, err, "could not load tasks", "user", userID)
			continue
		}

		today := dueOn(tasks, now, true)
		sortByDue(today)

		if err := sender.SendNotification(ctx, profile.ChatID, FormatDigest(today, tm.loc)); err != nil {
			digestSentCount.WithLabelValues("error").Inc()
			logger.Error(ctx, err, "could not send digest", "user", userID)
			continue
		}
		digestSentCount.WithLabelValues("success").Inc()
		sent++
	}

	logger.Info(ctx, "daily digest finished", "users", len(userIDs), "sent", sent)
	return sent, nil
}

func dueOn(tasks []models.Task, now time.Time, openOnly bool) []models.Task {
	y, m, d := now.Date()
	var out []models.Task
	for _, task := range tasks {
		if !task.HasDue() || (openOnly && !task.IsOpen()) {
			continue
		}
		ty, tm, td := task.Due.In(now.Location()).Date()
		if ty == y && tm == m && td == d {
			out = append(out, task)
		}
	}
	return out
}

func sortByDue(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.HasDue() != b.HasDue() {
			return a.HasDue()
		}
		return a.Due.Before(b.Due)
	})
}
