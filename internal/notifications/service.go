package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"autorip/internal/config"
)

const (
	userAgent      = "autorip/0.1.0"
	defaultTimeout = 10 * time.Second
	// errorBodyLimit caps how much of a failed response is quoted in errors.
	errorBodyLimit = 2048
)

// Service delivers run notifications. Implementations must be safe for
// concurrent use.
type Service interface {
	NotifyRunStarted(ctx context.Context, mode string, discs []string) error
	NotifyRunCompleted(ctx context.Context, mode string, discs []string, duration time.Duration) error
	NotifyRunFailed(ctx context.Context, mode string, discs []string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService returns an ntfy publisher for the configured topic URL, or a
// service that drops everything when no topic is set.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ntfy{topic: topic, http: &http.Client{Timeout: timeout}}
}

// Enabled reports whether svc delivers anything.
func Enabled(svc Service) bool {
	if svc == nil {
		return false
	}
	_, noop := svc.(noopService)
	return !noop
}

// message maps onto ntfy's publish headers; body is sent as plain text.
type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfy struct {
	topic string
	http  *http.Client
}

// titled upper-cases the first letter of a verb. Casers keep state, so one
// is built per call.
func titled(s string) string { return cases.Title(language.English).String(s) }

func (n *ntfy) NotifyRunStarted(ctx context.Context, mode string, discs []string) error {
	verb := operation(mode)
	return n.publish(ctx, message{
		title: "autorip - " + titled(verb) + " Started",
		body:  fmt.Sprintf("📀 Started %s: %s", verb, discList(discs)),
		tags:  []string{"autorip", mode, "started"},
	})
}

func (n *ntfy) NotifyRunCompleted(ctx context.Context, mode string, discs []string, duration time.Duration) error {
	verb := titled(operation(mode))
	return n.publish(ctx, message{
		title: "autorip - " + verb + " Complete",
		body:  fmt.Sprintf("💿 %s complete in %s: %s", verb, max(duration.Round(time.Second), 0), discList(discs)),
		tags:  []string{"autorip", mode, "completed"},
	})
}

func (n *ntfy) NotifyRunFailed(ctx context.Context, mode string, discs []string, err error) error {
	reason := "unknown"
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	return n.publish(ctx, message{
		title: "autorip - Error",
		body: fmt.Sprintf("❌ %s failed for %s: %s\nEject and reinsert the disc to retry.",
			titled(operation(mode)), discList(discs), reason),
		tags:     []string{"autorip", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfy) TestNotification(ctx context.Context) error {
	return n.publish(ctx, message{
		title:    "autorip - Test",
		body:     "🧪 Notification system test",
		tags:     []string{"autorip", "test"},
		priority: "low",
	})
}

func (n *ntfy) publish(ctx context.Context, m message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.topic, strings.NewReader(m.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	h := req.Header
	h.Set("User-Agent", userAgent)
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Title", m.title)
	if len(m.tags) > 0 {
		h.Set("Tags", strings.Join(m.tags, ","))
	}
	if m.priority != "" {
		h.Set("Priority", m.priority)
	}

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func operation(mode string) string {
	if mode == config.ModeBackup {
		return "backup"
	}
	return "rip"
}

func discList(discs []string) string {
	if len(discs) == 0 {
		return "no discs"
	}
	return strings.Join(discs, ", ")
}

type noopService struct{}

func (noopService) NotifyRunStarted(context.Context, string, []string) error { return nil }

func (noopService) NotifyRunCompleted(context.Context, string, []string, time.Duration) error {
	return nil
}

func (noopService) NotifyRunFailed(context.Context, string, []string, error) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }
