package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deliver/internal/config"
)

const userAgent = "deliver/0.1"

// Event identifies the run milestone being published.
type Event string

const (
	EventRunCompleted Event = "run_completed"
	EventRunFailed    Event = "run_failed"
	EventTest         Event = "test"
)

// Payload carries the event fields. Recognised keys: package, artifacts,
// duration, archive, kind, error.
type Payload map[string]string

// Service publishes run events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op one when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	pkg := fallback(payload["package"], "package")
	switch event {
	case EventRunCompleted:
		var body strings.Builder
		fmt.Fprintf(&body, "Packaged %s", pkg)
		if count := strings.TrimSpace(payload["artifacts"]); count != "" {
			fmt.Fprintf(&body, " (%s artifacts)", count)
		}
		if duration := strings.TrimSpace(payload["duration"]); duration != "" {
			fmt.Fprintf(&body, " in %s", duration)
		}
		if archive := strings.TrimSpace(payload["archive"]); archive != "" {
			fmt.Fprintf(&body, "\nArchive: %s", archive)
		}
		return message{
			title: "deliver - Packaged",
			body:  body.String(),
			tags:  []string{"deliver", "package", "completed"},
		}, true
	case EventRunFailed:
		body := fmt.Sprintf("Delivery of %s failed", pkg)
		if kind := strings.TrimSpace(payload["kind"]); kind != "" {
			body += fmt.Sprintf(" (%s)", kind)
		}
		if errText := strings.TrimSpace(payload["error"]); errText != "" {
			body += ": " + errText
		}
		return message{
			title:    "deliver - Failed",
			body:     body,
			tags:     []string{"deliver", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "deliver - Test",
			body:     "Notification system test",
			tags:     []string{"deliver", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func fallback(value, def string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return def
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
