package health

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"proxy-router-platform/internal/config"
	"proxy-router-platform/internal/models"

	"go.uber.org/zap"
)

// Notifier delivers failover alerts. The reference behavior is structured
// logging; a webhook URL may be configured as an additional channel.
type Notifier struct {
	cfg           config.AlertConfig
	webhookClient *http.Client
	logger        *zap.Logger
}

// NewNotifier creates a new alert notifier.
func NewNotifier(cfg config.AlertConfig, logger *zap.Logger) *Notifier {
	return &Notifier{
		cfg: cfg,
		webhookClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Notify emits an alert for a failover event.
func (n *Notifier) Notify(event *models.FailoverEvent) {
	if !n.cfg.Enabled {
		return
	}

	n.logger.Warn("failover alert",
		zap.String("account_id", event.AccountID.String()),
		zap.String("event_type", string(event.EventType)),
		zap.String("severity", string(event.Severity)),
		zap.String("reason", event.Reason))

	if n.cfg.WebhookURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := n.sendWebhook(ctx, n.cfg.WebhookURL, event); err != nil {
			n.logger.Error("failed to send webhook", zap.Error(err))
		}
	}
}

// sendWebhook delivers an alert via webhook.
func (n *Notifier) sendWebhook(ctx context.Context, url string, event *models.FailoverEvent) error {
	payload := map[string]interface{}{
		"account_id": event.AccountID.String(),
		"event_type": string(event.EventType),
		"severity":   string(event.Severity),
		"reason":     event.Reason,
		"timestamp":  time.Now().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.webhookClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return errors.New("webhook request failed")
	}

	return nil
}
