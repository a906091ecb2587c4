package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const telegramSendMessage = "https://api.telegram.org/bot%s/sendMessage"

// TelegramSender posts execution alerts to a Telegram chat via the Bot API.
// Messages use HTML parse mode: execution bodies carry "%" and "/" characters
// that Markdown modes require escaping for.
type TelegramSender struct {
	token  string
	chatID string
	client *http.Client
}

// NewTelegramSender creates a TelegramSender for the given bot token and chat.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramMessage struct {
	ChatID             string `json:"chat_id"`
	Text               string `json:"text"`
	ParseMode          string `json:"parse_mode"`
	DisableWebPreview  bool   `json:"disable_web_page_preview"`
	DisableNotifySound bool   `json:"disable_notification"`
}

// Send delivers one notification to the configured chat. Completed
// executions are sent silently; failures ring through.
func (t *TelegramSender) Send(ctx context.Context, n Notification) error {
	msg := telegramMessage{
		ChatID:             t.chatID,
		Text:               fmt.Sprintf("<b>%s</b>\n<pre>%s</pre>", n.Title, n.Body),
		ParseMode:          "HTML",
		DisableWebPreview:  true,
		DisableNotifySound: n.Event != EventFailed,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: telegram: marshal message: %w", err)
	}

	url := fmt.Sprintf(telegramSendMessage, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: telegram: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notify: telegram: status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}

var _ Sender = (*TelegramSender)(nil)
