package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"NFTSentinel/internal/model"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	Client   *resty.Client
	Log      *zap.Logger

	// Retries is how many times a trigger push is retried after the first attempt.
	Retries int

	baseURL  string
	proxyURL string
}

var _ Pusher = (*TelegramNotifier)(nil)

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string, log *zap.Logger) *TelegramNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	t := &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		Log:      log,
		Retries:  2,
		baseURL:  telegramAPI,
		proxyURL: proxyURL,
	}
	t.Client = t.newClient(30 * time.Second)
	return t
}

func (t *TelegramNotifier) newClient(timeout time.Duration) *resty.Client {
	c := resty.New().
		SetBaseURL(t.baseURL).
		SetTimeout(timeout)
	if t.proxyURL != "" {
		c.SetProxy(t.proxyURL)
	}
	return c
}

// SetBaseURL points the notifier at another Bot API host.
func (t *TelegramNotifier) SetBaseURL(baseURL string) {
	t.baseURL = strings.TrimRight(baseURL, "/")
	t.Client.SetBaseURL(t.baseURL)
}

func (t *TelegramNotifier) Name() string { return "telegram" }

// Send sends a message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	resp, err := t.Client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    t.ChatID,
			"text":       text,
			"parse_mode": "HTML",
		}).
		SetResult(&result).
		SetError(&result).
		Post("/bot" + t.BotToken + "/sendMessage")
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if resp.IsError() || !result.OK {
		return fmt.Errorf("telegram API error: status %d, description: %s", resp.StatusCode(), result.Description)
	}
	return nil
}

// SendWithRetry sends a message with exponential backoff retry.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := t.Send(ctx, text)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == maxRetries {
			break
		}
		backoff := time.Duration(1<<uint(i)) * time.Second
		t.Log.Warn("telegram send failed",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}

// Push sends a triggered alert to the chat.
func (t *TelegramNotifier) Push(ctx context.Context, tr model.Trigger) error {
	return t.SendWithRetry(ctx, FormatTriggerHTML(tr), t.Retries)
}
