package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"guildgate/internal/model"
)

// Notifier delivers one event to subscribers.
type Notifier interface {
	Notify(ctx context.Context, event model.FeedEvent) error
}

// FormatEvent renders the chat message for an event.
func FormatEvent(region string, event model.FeedEvent) string {
	title := "Earthquake detected!"
	if region != "" {
		title = fmt.Sprintf("Earthquake in %s!", region)
	}
	return fmt.Sprintf(
		"🌏 **%s**\n**Magnitude**: %s\n**Location**: %s\n**Time (UTC)**: %s\n[More Info](%s)",
		title,
		event.MagnitudeText(),
		event.Place,
		event.Time.UTC().Format("2006-01-02 15:04:05"),
		event.URL,
	)
}

// WebhookNotifier posts each event to a chat webhook as {"content": "..."}.
type WebhookNotifier struct {
	url        string
	region     string
	httpClient *http.Client
}

func NewWebhookNotifier(url, region string, timeout time.Duration) (*WebhookNotifier, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:        url,
		region:     region,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type webhookPayload struct {
	Content string `json:"content"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, event model.FeedEvent) error {
	body, err := json.Marshal(webhookPayload{Content: FormatEvent(n.region, event)})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("webhook status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

// LogNotifier writes events to the logger, for running without a webhook.
type LogNotifier struct {
	region string
	logger *zap.Logger
}

func NewLogNotifier(region string, logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{region: region, logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, event model.FeedEvent) error {
	n.logger.Info("feed event",
		zap.String("id", event.ID),
		zap.String("magnitude", event.MagnitudeText()),
		zap.String("place", event.Place),
		zap.Time("time", event.Time),
		zap.String("message", FormatEvent(n.region, event)),
	)
	return nil
}
