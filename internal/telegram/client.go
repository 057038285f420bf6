package telegram

import (
	"context"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"taskbot/internal/logger"
)

// Client wraps the Bot API. Outbound messages share one rate limiter so
// reminder bursts stay under Telegram's flood limits.
type Client struct {
	api     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

func NewClient(token string, perSecond int, debug bool) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "could not create bot api")
	}
	api.Debug = debug

	if perSecond <= 0 {
		perSecond = 1
	}

	logger.Info(context.Background(), "authorized on telegram", "account", api.Self.UserName)

	return &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}, nil
}

func (c *Client) SendNotification(ctx context.Context, chatID int64, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.WithStack(err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true

	if _, err := c.api.Send(msg); err != nil {
		return errors.Wrapf(err, "could not send message to chat %d", chatID)
	}
	return nil
}

// FileURL resolves a file id to a direct download URL.
func (c *Client) FileURL(ctx context.Context, fileID string) (string, error) {
	link, err := c.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", errors.Wrapf(err, "could not resolve file %s", fileID)
	}
	return link, nil
}

// SetWebhook points Telegram at baseURL/api/telegram with the secret as a
// query parameter and returns the registered URL.
func (c *Client) SetWebhook(ctx context.Context, baseURL, secret string) (string, error) {
	link := WebhookURL(baseURL, secret)

	if _, err := c.api.SetWebhook(tgbotapi.NewWebhook(link)); err != nil {
		return "", errors.Wrap(err, "could not set webhook")
	}

	logger.Info(ctx, "webhook registered", "url", strings.Replace(link, url.QueryEscape(secret), "***", 1))
	return link, nil
}

// Updates starts long polling. The webhook is removed first since Telegram
// refuses getUpdates while one is set.
func (c *Client) Updates(ctx context.Context) (tgbotapi.UpdatesChannel, error) {
	if _, err := c.api.RemoveWebhook(); err != nil {
		return nil, errors.Wrap(err, "could not remove webhook")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates, err := c.api.GetUpdatesChan(u)
	if err != nil {
		return nil, errors.Wrap(err, "could not get updates")
	}
	return updates, nil
}

func (c *Client) StopUpdates() {
	c.api.StopReceivingUpdates()
}

func WebhookURL(baseURL, secret string) string {
	return strings.TrimRight(baseURL, "/") + "/api/telegram?secret=" + url.QueryEscape(secret)
}
