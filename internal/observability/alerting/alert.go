package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	xerrors "OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/pkg/logger"
)

// Channel names a notification channel.
type Channel string

const (
	ChannelWebhook Channel = "webhook"
	ChannelSlack   Channel = "slack"
)

// Event describes a submission outcome worth alerting on.
type Event struct {
	Code       xerrors.Code      `json:"code"`
	Message    string            `json:"message"`
	Severity   xerrors.Severity  `json:"severity"`
	Source     string            `json:"source"`
	Action     string            `json:"action"`
	Hash       string            `json:"hash,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Notifier delivers events to one channel.
type Notifier interface {
	Channel() Channel
	Notify(ctx context.Context, event Event) error
}

// Dispatcher delivers events to every configured channel.
type Dispatcher interface {
	Notify(ctx context.Context, event Event) error
}

// FanoutDispatcher sends each event to all of its notifiers.
type FanoutDispatcher struct {
	notifiers map[Channel]Notifier
}

// NewFanout keeps one notifier per channel; nil notifiers are ignored.
func NewFanout(notifiers ...Notifier) *FanoutDispatcher {
	set := make(map[Channel]Notifier, len(notifiers))
	for _, n := range notifiers {
		if n == nil {
			continue
		}
		set[n.Channel()] = n
	}
	return &FanoutDispatcher{notifiers: set}
}

// Channels lists the registered channels in order.
func (d *FanoutDispatcher) Channels() []Channel {
	if d == nil {
		return nil
	}
	out := make([]Channel, 0, len(d.notifiers))
	for c := range d.notifiers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Notify sends event everywhere and joins the failures.
func (d *FanoutDispatcher) Notify(ctx context.Context, event Event) error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, notifier := range d.notifiers {
		if err := notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", notifier.Channel(), err))
		}
	}
	return errors.Join(errs...)
}

func newHTTP(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
}

// WebhookNotifier POSTs the event as JSON.
type WebhookNotifier struct {
	URL  string
	http *resty.Client
}

// NewWebhookNotifier creates a WebhookNotifier. timeout defaults to 10s.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{URL: url, http: newHTTP(timeout)}
}

func (n *WebhookNotifier) Channel() Channel { return ChannelWebhook }

func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	if n == nil || n.URL == "" {
		logger.L().Warn("webhook notifier has no URL, skipping", slog.String("hash", event.Hash))
		return nil
	}
	resp, err := n.http.R().SetContext(ctx).SetBody(event).Post(n.URL)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	return nil
}

// SlackNotifier posts to a Slack incoming webhook.
type SlackNotifier struct {
	URL       string
	ChannelID string
	http      *resty.Client
}

// NewSlackNotifier creates a SlackNotifier. channel may be empty.
func NewSlackNotifier(url, channel string, timeout time.Duration) *SlackNotifier {
	return &SlackNotifier{URL: url, ChannelID: channel, http: newHTTP(timeout)}
}

func (n *SlackNotifier) Channel() Channel { return ChannelSlack }

func (n *SlackNotifier) Notify(ctx context.Context, event Event) error {
	if n == nil || n.URL == "" {
		logger.L().Warn("slack notifier has no URL, skipping", slog.String("hash", event.Hash))
		return nil
	}
	payload := map[string]string{"text": slackText(event)}
	if n.ChannelID != "" {
		payload["channel"] = n.ChannelID
	}
	resp, err := n.http.R().SetContext(ctx).SetBody(payload).Post(n.URL)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("slack returned status %d", resp.StatusCode())
	}
	return nil
}

func slackText(event Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*[%s]* %s %s: %s", event.Severity, event.Code, event.Action, event.Message)
	if event.Hash != "" {
		fmt.Fprintf(&b, "\ntx: `%s`", event.Hash)
	}
	if event.Source != "" {
		fmt.Fprintf(&b, "\naccount: `%s`", event.Source)
	}
	return b.String()
}
