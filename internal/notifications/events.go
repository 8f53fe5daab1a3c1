package notifications

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cast"
)

// Broadcaster is the downstream event sink, in practice the WebSocket hub.
type Broadcaster interface {
	Broadcast(event string, data interface{})
}

// Settings reads runtime configuration rows.
type Settings interface {
	Get(key string) (string, error)
}

// Fanout forwards every event to the WebSocket hub and additionally pushes
// scan lifecycle events to the configured webhook channel. The channel is
// read from settings on every send, so changing webhook_url or webhook_type
// takes effect without a restart. With no webhook configured the extra leg
// is a no-op.
//
// Settings keys: webhook_type (discord, slack, generic, telegram, pushover,
// gotify), webhook_url for the URL-based types, and webhook_extra holding a
// JSON object with the credential pairs the token-based types need.
type Fanout struct {
	next     Broadcaster
	sender   *WebhookSender
	settings Settings
}

func NewFanout(next Broadcaster, sender *WebhookSender, settings Settings) *Fanout {
	return &Fanout{next: next, sender: sender, settings: settings}
}

func (f *Fanout) Broadcast(event string, data interface{}) {
	if f.next != nil {
		f.next.Broadcast(event, data)
	}

	var title, message string
	switch event {
	case "scan:complete":
		m := cast.ToStringMap(data)
		title = "Scan complete"
		message = fmt.Sprintf("%d movies, %d TV shows, %d placeholders across %d directories",
			cast.ToInt(m["movies_total"]), cast.ToInt(m["tv_total"]),
			cast.ToInt(m["placeholders"]), cast.ToInt(m["dirs_visited"]))
	case "scan:failed":
		m := cast.ToStringMap(data)
		title = "Scan failed"
		message = cast.ToString(m["error"])
	default:
		return
	}

	channel, ok := f.channel()
	if !ok {
		return
	}
	// The hub must not wait on an outbound HTTP post.
	go func() {
		if err := f.sender.Send(channel, title, message); err != nil {
			log.Printf("Notifications: %s webhook failed: %v", channel.Type, err)
		}
	}()
}

// channel assembles the webhook target from settings. Returns false when no
// channel is configured or the rows cannot be read.
func (f *Fanout) channel() (Channel, bool) {
	if f.settings == nil || f.sender == nil {
		return Channel{}, false
	}
	chType, err := f.settings.Get("webhook_type")
	if err != nil || chType == "" {
		return Channel{}, false
	}

	ch := Channel{Type: chType, Extra: map[string]string{}}
	ch.URL, _ = f.settings.Get("webhook_url")

	if raw, err := f.settings.Get("webhook_extra"); err == nil && raw != "" {
		if err := json.Unmarshal([]byte(raw), &ch.Extra); err != nil {
			log.Printf("Notifications: webhook_extra is not a JSON object: %v", err)
		}
	}

	switch chType {
	case "discord", "slack", "generic":
		if ch.URL == "" {
			return Channel{}, false
		}
	}
	return ch, true
}
