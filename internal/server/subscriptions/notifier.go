package subscriptions

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Notifier delivers notifications to webhook endpoints.
type Notifier struct {
	httpClient *http.Client
	logger     *log.Logger
}

// NewNotifier creates a new notifier
func NewNotifier(logger *log.Logger) *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// SendWebhook posts a notification, retrying with backoff on failure.
func (n *Notifier) SendWebhook(url string, notification Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt*attempt) * time.Second)
		}

		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			lastErr = err
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Notegraph-Event", notification.Event.Type)
		req.Header.Set("X-Notegraph-Subscription", notification.SubscriptionID)

		resp, err := n.httpClient.Do(req)
		if err != nil {
			lastErr = err
			n.logger.Warn("webhook delivery failed", "url", url, "attempt", attempt+1, "err", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = &WebhookError{URL: url, StatusCode: resp.StatusCode}
		n.logger.Warn("webhook delivery rejected", "url", url, "attempt", attempt+1, "status", resp.StatusCode)
	}

	n.logger.Error("webhook delivery gave up", "url", url, "err", lastErr)
	return lastErr
}

// WebhookError represents a webhook delivery failure
type WebhookError struct {
	URL        string
	StatusCode int
}

func (e *WebhookError) Error() string {
	return "webhook delivery failed"
}
