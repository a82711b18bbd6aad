package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tenacademy/onboarding-api/internal/models"
	"github.com/tenacademy/onboarding-api/pkg/config"
)

// SignatureHeader carries the HMAC-SHA256 signature of the payload.
const SignatureHeader = "X-Webhook-Signature"

// WebhookEvent is the event name attached to batch completion callbacks.
const WebhookEvent = "batch.processed"

// WebhookPayload is the outbound callback body.
type WebhookPayload struct {
	Event          string               `json:"event"`
	Status         string               `json:"status"`
	TotalProcessed int                  `json:"total_processed"`
	Successful     int                  `json:"successful"`
	Failed         int                  `json:"failed"`
	Errors         []models.RowError    `json:"errors"`
	Batch          string               `json:"batch"`
	Timestamp      string               `json:"timestamp"`
	Metadata       models.BatchMetadata `json:"metadata"`
}

// WebhookService delivers batch results to a caller-supplied callback URL.
// Delivery is fire-and-forget from the orchestrator's perspective: failures
// are logged and reported as false, never propagated.
type WebhookService struct {
	callbackURL string
	secret      string
	headers     map[string]string
	retryCount  int
	retryDelay  time.Duration
	http        *http.Client
	logger      *zap.Logger

	// sleep is swappable so retry timing can be tested without waiting.
	sleep func(time.Duration)
	now   func() time.Time
}

// NewWebhookService builds a notifier for one batch run. A callback URL
// without a secret is refused: unsigned webhooks are not sent.
func NewWebhookService(cfg models.BatchConfig, limits config.WebhookConfig, logger *zap.Logger) (*WebhookService, error) {
	if cfg.CallbackURL == "" {
		return nil, fmt.Errorf("callback_url is required for webhook delivery")
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("webhook_secret is required when callback_url is set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Caller-supplied retry settings are clamped to the server-side limits.
	maxRetries := limits.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 10
	}
	maxDelay := int(limits.MaxRetryDelay / time.Second)
	if maxDelay <= 0 {
		maxDelay = 60
	}
	retryCount := clampInt(cfg.RetryCount, 1, maxRetries)
	retryDelay := time.Duration(clampInt(cfg.RetryDelay, 1, maxDelay)) * time.Second
	timeout := limits.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &WebhookService{
		callbackURL: cfg.CallbackURL,
		secret:      cfg.WebhookSecret,
		headers:     cfg.WebhookHeaders,
		retryCount:  retryCount,
		retryDelay:  retryDelay,
		http:        &http.Client{Timeout: timeout},
		logger:      logger,
		sleep:       time.Sleep,
		now:         time.Now,
	}, nil
}

// NotifyCallback signs and posts the batch result, retrying with doubling
// delays. Returns false after exhausting retries.
func (s *WebhookService) NotifyCallback(ctx context.Context, result models.BatchResult) bool {
	payload := WebhookPayload{
		Event:          WebhookEvent,
		Status:         result.Status,
		TotalProcessed: result.TotalProcessed,
		Successful:     result.Successful,
		Failed:         result.Failed,
		Errors:         result.Errors,
		Batch:          result.Batch,
		Timestamp:      s.now().UTC().Format(time.RFC3339),
		Metadata:       result.Metadata,
	}
	if payload.Errors == nil {
		payload.Errors = []models.RowError{}
	}

	body, err := CanonicalJSON(payload)
	if err != nil {
		s.logger.Error("webhook payload not serializable", zap.Error(err))
		return false
	}
	signature := Sign(s.secret, body)

	delay := s.retryDelay
	for attempt := 1; attempt <= s.retryCount; attempt++ {
		if s.deliver(ctx, body, signature) {
			s.logger.Info("webhook delivered",
				zap.String("url", s.callbackURL),
				zap.Int("attempt", attempt))
			return true
		}
		if attempt < s.retryCount {
			s.sleep(delay)
			delay *= 2
		}
	}

	s.logger.Error("webhook delivery failed after retries",
		zap.String("url", s.callbackURL),
		zap.Int("attempts", s.retryCount))
	return false
}

func (s *WebhookService) deliver(ctx context.Context, body []byte, signature string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.callbackURL, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("webhook request build failed", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.Warn("webhook delivery attempt failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return true
	default:
		s.logger.Warn("webhook rejected", zap.Int("status", resp.StatusCode))
		return false
	}
}

// CanonicalJSON encodes a value with recursively sorted object keys, the
// form both sides sign over. Encoding through a generic value makes
// encoding/json emit map keys in sorted order at every level.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// Sign computes the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an inbound webhook body against its signature
// header using a constant-time comparison.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
