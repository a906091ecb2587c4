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

// Embed sidebar colors per execution outcome.
const (
	colorCompleted = 0x2ecc71 // green
	colorFailed    = 0xe74c3c // red
	colorNeutral   = 0x95a5a6 // grey, cancelled and anything else
)

// DiscordSender posts execution alerts to a Discord webhook as embeds, color
// coded by outcome so a glance at the channel shows how executions are doing.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type discordWebhookPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

func eventColor(event string) int {
	switch event {
	case EventCompleted:
		return colorCompleted
	case EventFailed:
		return colorFailed
	default:
		return colorNeutral
	}
}

// Send delivers one notification to the webhook. Discord returns 204 No
// Content on success.
func (d *DiscordSender) Send(ctx context.Context, n Notification) error {
	payload := discordWebhookPayload{
		Embeds: []discordEmbed{{
			Title:       n.Title,
			Description: n.Body,
			Color:       eventColor(n.Event),
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: discord: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notify: discord: status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}

var _ Sender = (*DiscordSender)(nil)
