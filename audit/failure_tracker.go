package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aras-services/svccore/config"
)

// FailureTracker watches storage append failures and fires a webhook
// alert once failures have persisted continuously for threshold,
// throttled to at most one alert per cooldown window. A later success
// optionally fires a recovery notification.
type FailureTracker struct {
	webhooks       []webhookTarget
	threshold      time.Duration
	cooldown       time.Duration
	notifyRecovery bool
	serviceName    string
	logger         *zap.Logger
	client         *http.Client

	mu                  sync.Mutex
	firstFailure        time.Time
	failing             bool
	consecutiveFailures int
	lastError           string
	lastAlertedAt       time.Time
}

type webhookTarget struct {
	url     string
	timeout time.Duration
}

// NewFailureTracker builds a tracker from the audit failure-alert config.
func NewFailureTracker(cfg config.FailureAlertConfig, serviceName string, logger *zap.Logger) *FailureTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	webhooks := make([]webhookTarget, 0, len(cfg.WebhookURLs))
	for _, url := range cfg.WebhookURLs {
		webhooks = append(webhooks, webhookTarget{url: url, timeout: 10 * time.Second})
	}
	return &FailureTracker{
		webhooks:       webhooks,
		threshold:      time.Duration(cfg.ThresholdSecs) * time.Second,
		cooldown:       time.Duration(cfg.CooldownSecs) * time.Second,
		notifyRecovery: cfg.NotifyRecovery,
		serviceName:    serviceName,
		logger:         logger,
		client:         &http.Client{Timeout: 15 * time.Second},
	}
}

// RecordFailure registers a storage append failure, extending the
// consecutive-failure count. If failures have now persisted past
// threshold and the cooldown has elapsed, an alert fires in the
// background.
func (f *FailureTracker) RecordFailure(reason string) {
	f.mu.Lock()
	now := time.Now()
	wasFailing := f.failing
	if !wasFailing {
		f.firstFailure = now
		f.failing = true
	}
	f.consecutiveFailures++
	f.lastError = reason
	persisted := now.Sub(f.firstFailure)
	shouldAlert := persisted >= f.threshold && now.Sub(f.lastAlertedAt) >= f.cooldown
	payload := alertPayload{
		Service:             f.serviceName,
		ConsecutiveFailures: f.consecutiveFailures,
		Since:               f.firstFailure,
		LastError:           f.lastError,
	}
	if shouldAlert {
		f.lastAlertedAt = now
	}
	f.mu.Unlock()

	if shouldAlert {
		go f.fire(payload)
	}
}

// RecordSuccess clears the failing state. If a failure alert had
// previously fired and recovery notifications are enabled, a recovery
// alert fires in the background with ConsecutiveFailures reset to 0.
func (f *FailureTracker) RecordSuccess() {
	f.mu.Lock()
	wasAlerted := f.failing && !f.lastAlertedAt.IsZero()
	f.failing = false
	f.firstFailure = time.Time{}
	f.consecutiveFailures = 0
	f.lastError = ""
	f.mu.Unlock()

	if wasAlerted && f.notifyRecovery {
		go f.fire(alertPayload{
			Service:   f.serviceName,
			Recovered: true,
		})
	}
}

// alertPayload is the JSON body posted to every configured webhook.
// ConsecutiveFailures of 0 paired with Recovered marks a recovery
// notification rather than a failure one.
type alertPayload struct {
	Service             string    `json:"service"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Since               time.Time `json:"since,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
	Recovered           bool      `json:"recovered,omitempty"`
}

func (f *FailureTracker) fire(payload alertPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		f.logger.Error("failed to marshal audit failure alert", zap.Error(err))
		return
	}

	for _, target := range f.webhooks {
		ctx, cancel := context.WithTimeout(context.Background(), target.timeout)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.url, bytes.NewReader(body))
		if err != nil {
			cancel()
			f.logger.Error("failed to build audit failure alert request", zap.String("url", target.url), zap.Error(err))
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := f.client.Do(req)
		cancel()
		if err != nil {
			f.logger.Warn("audit failure alert webhook unreachable", zap.String("url", target.url), zap.Error(err))
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			f.logger.Warn("audit failure alert webhook rejected", zap.String("url", target.url), zap.Int("status", resp.StatusCode))
		}
	}
}
