package notifications

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeSettings map[string]string

func (f fakeSettings) Get(key string) (string, error) { return f[key], nil }

type recordingSink struct {
	events []string
}

func (r *recordingSink) Broadcast(event string, data interface{}) {
	r.events = append(r.events, event)
}

func TestFanoutForwardsEveryEvent(t *testing.T) {
	sink := &recordingSink{}
	f := NewFanout(sink, NewWebhookSender(), fakeSettings{})

	f.Broadcast("task:update", map[string]interface{}{"status": "running"})
	f.Broadcast("scan:progress", map[string]interface{}{"stage": "walk"})

	if len(sink.events) != 2 || sink.events[0] != "task:update" || sink.events[1] != "scan:progress" {
		t.Errorf("forwarded events = %v", sink.events)
	}
}

func TestFanoutSendsScanCompleteWebhook(t *testing.T) {
	got := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- body
	}))
	defer srv.Close()

	sink := &recordingSink{}
	f := NewFanout(sink, NewWebhookSender(), fakeSettings{
		"webhook_type": "generic",
		"webhook_url":  srv.URL,
	})

	f.Broadcast("scan:complete", map[string]interface{}{
		"movies_total": 12, "tv_total": 3, "placeholders": 1, "dirs_visited": 40,
	})

	select {
	case body := <-got:
		var payload map[string]interface{}
		json.Unmarshal(body, &payload)
		if payload["title"] != "Scan complete" {
			t.Errorf("title = %v", payload["title"])
		}
		msg, _ := payload["message"].(string)
		if msg != "12 movies, 3 TV shows, 1 placeholders across 40 directories" {
			t.Errorf("message = %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never fired")
	}
	if len(sink.events) != 1 {
		t.Errorf("hub events = %v, want the event forwarded too", sink.events)
	}
}

func TestFanoutSendsScanFailedWebhook(t *testing.T) {
	got := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- body
	}))
	defer srv.Close()

	f := NewFanout(nil, NewWebhookSender(), fakeSettings{
		"webhook_type": "generic",
		"webhook_url":  srv.URL,
	})
	f.Broadcast("scan:failed", map[string]interface{}{"error": "root unreachable"})

	select {
	case body := <-got:
		var payload map[string]interface{}
		json.Unmarshal(body, &payload)
		if payload["title"] != "Scan failed" || payload["message"] != "root unreachable" {
			t.Errorf("payload = %v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never fired")
	}
}

func TestChannelFromSettings(t *testing.T) {
	tests := []struct {
		name     string
		settings fakeSettings
		want     bool
	}{
		{"unconfigured", fakeSettings{}, false},
		{"url type without url", fakeSettings{"webhook_type": "discord"}, false},
		{"url type with url", fakeSettings{"webhook_type": "discord", "webhook_url": "https://x"}, true},
		{"token type without url", fakeSettings{
			"webhook_type":  "telegram",
			"webhook_extra": `{"bot_token":"b","chat_id":"c"}`,
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFanout(nil, NewWebhookSender(), tt.settings)
			ch, ok := f.channel()
			if ok != tt.want {
				t.Fatalf("channel() ok = %v, want %v", ok, tt.want)
			}
			if ok && ch.Type == "telegram" && ch.Extra["bot_token"] != "b" {
				t.Errorf("Extra = %v", ch.Extra)
			}
		})
	}
}

func TestFanoutIgnoresOtherEventsForWebhook(t *testing.T) {
	fired := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fired = true
	}))
	defer srv.Close()

	f := NewFanout(nil, NewWebhookSender(), fakeSettings{
		"webhook_type": "generic",
		"webhook_url":  srv.URL,
	})
	f.Broadcast("task:update", map[string]interface{}{"status": "running"})

	time.Sleep(200 * time.Millisecond)
	if fired {
		t.Error("task:update must not reach the webhook")
	}
}
