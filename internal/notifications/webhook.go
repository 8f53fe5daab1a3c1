package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Channel is one outbound notification target. URL carries the webhook
// endpoint for the URL-based types; Extra carries the credential pairs the
// token-based types need (bot_token, chat_id, app_token, ...).
type Channel struct {
	Type  string
	URL   string
	Extra map[string]string
}

// WebhookSender posts messages to notification channels.
type WebhookSender struct {
	client *http.Client
}

func NewWebhookSender() *WebhookSender {
	return &WebhookSender{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send dispatches a message to the given channel.
func (w *WebhookSender) Send(channel Channel, title, message string) error {
	switch channel.Type {
	case "discord":
		return w.sendDiscord(channel.URL, title, message)
	case "slack":
		return w.sendSlack(channel.URL, title, message)
	case "generic":
		return w.sendGeneric(channel.URL, title, message)
	case "telegram":
		return w.sendTelegram(channel, title, message)
	case "pushover":
		return w.sendPushover(channel, title, message)
	case "gotify":
		return w.sendGotify(channel, title, message)
	default:
		return fmt.Errorf("unknown channel type: %s", channel.Type)
	}
}

func (w *WebhookSender) sendDiscord(url, title, message string) error {
	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       title,
				"description": message,
				"color":       5814783,
				"footer": map[string]string{
					"text": "mediadex",
				},
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			},
		},
	}
	return w.postJSON(url, payload)
}

func (w *WebhookSender) sendSlack(url, title, message string) error {
	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]string{
					"type": "plain_text",
					"text": title,
				},
			},
			{
				"type": "section",
				"text": map[string]string{
					"type": "mrkdwn",
					"text": message,
				},
			},
			{
				"type": "context",
				"elements": []map[string]string{
					{
						"type": "mrkdwn",
						"text": fmt.Sprintf("_mediadex · %s_", time.Now().Format("Jan 2, 3:04 PM")),
					},
				},
			},
		},
	}
	return w.postJSON(url, payload)
}

func (w *WebhookSender) sendGeneric(url, title, message string) error {
	payload := map[string]interface{}{
		"title":     title,
		"message":   message,
		"source":    "mediadex",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	return w.postJSON(url, payload)
}

// ── Telegram ──

func (w *WebhookSender) sendTelegram(channel Channel, title, message string) error {
	botToken := channel.Extra["bot_token"]
	chatID := channel.Extra["chat_id"]
	if botToken == "" || chatID == "" {
		return fmt.Errorf("telegram requires bot_token and chat_id in webhook_extra")
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", botToken)
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       fmt.Sprintf("*%s*\n%s", title, message),
		"parse_mode": "Markdown",
	}
	return w.postJSON(url, payload)
}

// ── Pushover ──

func (w *WebhookSender) sendPushover(channel Channel, title, message string) error {
	appToken := channel.Extra["app_token"]
	userKey := channel.Extra["user_key"]
	if appToken == "" || userKey == "" {
		return fmt.Errorf("pushover requires app_token and user_key in webhook_extra")
	}
	payload := map[string]interface{}{
		"token":   appToken,
		"user":    userKey,
		"title":   title,
		"message": message,
	}
	return w.postJSON("https://api.pushover.net/1/messages.json", payload)
}

// ── Gotify ──

func (w *WebhookSender) sendGotify(channel Channel, title, message string) error {
	serverURL := channel.Extra["server_url"]
	appToken := channel.Extra["app_token"]
	if serverURL == "" || appToken == "" {
		return fmt.Errorf("gotify requires server_url and app_token in webhook_extra")
	}
	serverURL = strings.TrimRight(serverURL, "/")
	url := fmt.Sprintf("%s/message", serverURL)

	payload := map[string]interface{}{
		"title":   title,
		"message": message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest("POST", url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gotify-Key", appToken)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("gotify post: %w", err)
	}
	defer resp.Body.Close()
	io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("gotify returned status %d", resp.StatusCode)
	}
	return nil
}

func (w *WebhookSender) postJSON(url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	resp, err := w.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		log.Printf("Webhook: %s returned status %d", url, resp.StatusCode)
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
