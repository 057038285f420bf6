package bot

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"

	"taskbot/internal/logger"
	"taskbot/internal/manager"
)

const (
	DefaultDedupeTTL = 10 * time.Minute
	dedupeSize       = 4096
)

const helpText = `Commands:
/add <task details>
/next
/today
/list
/done <id>
/snooze <id> <2h|30m>

Or just write what you need to do, e.g. "call John tomorrow at 5pm and pay rent today".`

const (
	msgWelcome          = "Hi! Send me your tasks in plain words or as a voice note and I will remind you before they are due.\n\n" + helpText
	msgFallback         = "Send a task or voice note. Try /help"
	msgAddUsage         = "Tell me what to add: /add call John tomorrow at 5pm"
	msgDoneUsage        = "Tell me which task: /done <id>"
	msgSnoozeUsage      = "Tell me which task: /snooze <id> <2h|30m>"
	msgNoOpenTasks      = "No open tasks."
	msgNothingToday     = "Nothing due today."
	msgNoTasks          = "No tasks."
	msgVoiceDownload    = "Could not download voice note."
	msgVoiceUnavailable = "Transcription unavailable. Please try text for now."
	msgInternalError    = "Something went wrong, please try again."
)

type FileResolver interface {
	FileURL(ctx context.Context, fileID string) (string, error)
}

type Transcriber interface {
	TranscribeURL(ctx context.Context, url string) (string, error)
}

// Bot turns Telegram updates into task manager calls and replies in the
// originating chat.
type Bot struct {
	tasks       *manager.TaskManager
	users       *manager.UserManager
	sender      manager.Sender
	files       FileResolver
	transcriber Transcriber
	seen        *expirable.LRU[int, struct{}]
}

func NewBot(tasks *manager.TaskManager, users *manager.UserManager, sender manager.Sender, files FileResolver, transcriber Transcriber, dedupeTTL time.Duration) *Bot {
	if dedupeTTL <= 0 {
		dedupeTTL = DefaultDedupeTTL
	}

	return &Bot{
		tasks:       tasks,
		users:       users,
		sender:      sender,
		files:       files,
		transcriber: transcriber,
		seen:        expirable.NewLRU[int, struct{}](dedupeSize, nil, dedupeTTL),
	}
}

// HandleUpdate processes one update. Updates redelivered by Telegram within
// the de-duplication window are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if b.seen.Contains(update.UpdateID) {
		logger.Debug(ctx, "duplicate update ignored", "update", update.UpdateID)
		return nil
	}
	b.seen.Add(update.UpdateID, struct{}{})

	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil || msg.Chat == nil || msg.From == nil {
		return nil
	}

	userID := int64(msg.From.ID)
	chatID := msg.Chat.ID

	logger.Info(ctx, "message received", "user", userID, "chat", chatID)

	if err := b.users.EnsureProfile(ctx, userID, chatID); err != nil {
		return err
	}

	var err error
	text := strings.TrimSpace(msg.Text)
	switch {
	case text != "" && strings.HasPrefix(text, "/"):
		err = b.handleCommand(ctx, userID, chatID, text)
	case text != "":
		err = b.addTasks(ctx, userID, chatID, text)
	case msg.Voice != nil:
		err = b.handleVoice(ctx, userID, chatID, msg.Voice.FileID)
	default:
		err = b.reply(ctx, chatID, msgFallback)
	}

	if err != nil {
		logger.Error(ctx, err, "could not handle message", "user", userID)
		b.reply(ctx, chatID, msgInternalError)
		return err
	}
	return nil
}

func (b *Bot) handleCommand(ctx context.Context, userID, chatID int64, text string) error {
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	args := fields[1:]

	switch cmd {
	case "/start":
		return b.reply(ctx, chatID, msgWelcome)
	case "/help":
		return b.reply(ctx, chatID, helpText)
	case "/add":
		if len(args) == 0 {
			return b.reply(ctx, chatID, msgAddUsage)
		}
		return b.addTasks(ctx, userID, chatID, strings.Join(args, " "))
	case "/next":
		tasks, err := b.tasks.Next(ctx, userID, manager.NextLimit)
		if err != nil {
			return err
		}
		return b.reply(ctx, chatID, manager.FormatTaskList(tasks, b.tasks.Location(), msgNoOpenTasks))
	case "/today":
		tasks, err := b.tasks.Today(ctx, userID)
		if err != nil {
			return err
		}
		return b.reply(ctx, chatID, manager.FormatTaskList(tasks, b.tasks.Location(), msgNothingToday))
	case "/list":
		tasks, err := b.tasks.List(ctx, userID)
		if err != nil {
			return err
		}
		return b.reply(ctx, chatID, manager.FormatTaskList(tasks, b.tasks.Location(), msgNoTasks))
	case "/done":
		return b.markDone(ctx, userID, chatID, args)
	case "/snooze":
		return b.snooze(ctx, userID, chatID, args)
	default:
		// Unknown commands are read as a task, slash included.
		return b.addTasks(ctx, userID, chatID, text)
	}
}

func (b *Bot) addTasks(ctx context.Context, userID, chatID int64, text string) error {
	added, err := b.tasks.AddFromText(ctx, userID, text)
	if err != nil {
		return err
	}
	if len(added) == 0 {
		return b.reply(ctx, chatID, msgAddUsage)
	}
	return b.reply(ctx, chatID, manager.FormatAdded(added, b.tasks.Location()))
}

func (b *Bot) markDone(ctx context.Context, userID, chatID int64, args []string) error {
	if len(args) == 0 {
		return b.reply(ctx, chatID, msgDoneUsage)
	}

	task, err := b.tasks.MarkDone(ctx, userID, args[0])
	if errors.Is(err, manager.ErrTaskNotFound) {
		return b.reply(ctx, chatID, "Task not found: "+args[0])
	}
	if err != nil {
		return err
	}
	return b.reply(ctx, chatID, manager.FormatDone(*task))
}

func (b *Bot) snooze(ctx context.Context, userID, chatID int64, args []string) error {
	if len(args) == 0 {
		return b.reply(ctx, chatID, msgSnoozeUsage)
	}

	d := manager.DefaultSnooze
	if len(args) > 1 {
		d = manager.ParseSnoozeDuration(args[1])
	}

	task, err := b.tasks.Snooze(ctx, userID, args[0], d)
	if errors.Is(err, manager.ErrTaskNotFound) {
		return b.reply(ctx, chatID, "Task not found: "+args[0])
	}
	if err != nil {
		return err
	}
	return b.reply(ctx, chatID, manager.FormatSnoozed(*task, b.tasks.Location()))
}

func (b *Bot) handleVoice(ctx context.Context, userID, chatID int64, fileID string) error {
	link, err := b.files.FileURL(ctx, fileID)
	if err != nil || link == "" {
		logger.Warn(ctx, "could not resolve voice note", "user", userID, "file", fileID, "error", err)
		return b.reply(ctx, chatID, msgVoiceDownload)
	}

	text, err := b.transcriber.TranscribeURL(ctx, link)
	if err != nil {
		logger.Error(ctx, err, "transcription failed", "user", userID)
	}
	if err != nil || strings.TrimSpace(text) == "" {
		return b.reply(ctx, chatID, msgVoiceUnavailable)
	}

	return b.addTasks(ctx, userID, chatID, text)
}

// reply failures are logged only; the user action already happened.
func (b *Bot) reply(ctx context.Context, chatID int64, text string) error {
	if err := b.sender.SendNotification(ctx, chatID, text); err != nil {
		logger.Error(ctx, err, "could not send reply", "chat", chatID)
	}
	return nil
}
