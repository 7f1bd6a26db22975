package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"
)

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(success bool)

// Service manages event subscriptions and fans out dispatched events to
// subscriber URLs. Only callers of Dispatch produce events; see the package
// doc for which ones do.
type Service struct {
	repo       Repository
	httpClient *http.Client
	onMetrics  MetricsRecorder
	logger     *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:       repo,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithMetricsRecorder configures the metrics callback.
func (s *Service) WithMetricsRecorder(fn MetricsRecorder) *Service {
	s.onMetrics = fn
	return s
}

// Subscribe creates a new subscription with a generated HMAC secret.
func (s *Service) Subscribe(ctx context.Context, subject string, req *SubscribeRequest) (*Subscription, error) {
	if subject == "" {
		return nil, fmt.Errorf("subject is required")
	}
	if len(req.Events) == 0 {
		return nil, fmt.Errorf("at least one event type is required")
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	sub := &Subscription{
		Subject: subject,
		URL:     req.URL,
		Events:  req.Events,
		Secret:  secret,
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return sub, nil
}

// Unsubscribe deletes a subscription, checking ownership by subject.
func (s *Service) Unsubscribe(ctx context.Context, subject string, subID uuid.UUID) error {
	sub, err := s.repo.GetByID(ctx, subID)
	if err != nil {
		return err
	}
	if sub.Subject != subject {
		return fmt.Errorf("not authorized to delete this subscription")
	}
	return s.repo.Delete(ctx, subID)
}

// ListBySubject returns all subscriptions belonging to subject.
func (s *Service) ListBySubject(ctx context.Context, subject string) ([]*Subscription, error) {
	return s.repo.ListBySubject(ctx, subject)
}

// Dispatch fans out an event to all matching subscriptions asynchronously.
func (s *Service) Dispatch(ctx context.Context, eventType string, payload map[string]string) {
	subs, err := s.repo.ListByEvent(ctx, eventType)
	if err != nil {
		s.logger.Error("notify: list subscribers", zap.Error(err))
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	for _, sub := range subs {
		go s.deliver(ctx, sub, event)
	}
}

// deliver sends the event to a single subscription with retries, filing a
// dead letter if every attempt fails.
func (s *Service) deliver(ctx context.Context, sub *Subscription, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("notify: marshal event", zap.Error(err))
		return
	}

	const maxAttempts = 3
	lastErr := ""
	// Retry with exponential backoff: immediately, then after 1s and 5s.
	delays := []time.Duration{0, 1 * time.Second, 5 * time.Second, 25 * time.Second}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(delays[attempt-1])
		}

		success, statusCode, errMsg := s.doDelivery(ctx, sub.URL, body, signPayload(body, sub.Secret))
		lastErr = errMsg

		delivery := &Delivery{
			SubscriptionID: sub.ID,
			EventType:      event.Type,
			StatusCode:     statusCode,
			Attempt:        attempt,
			Success:        success,
			ErrorMessage:   errMsg,
		}
		if recordErr := s.repo.RecordDelivery(ctx, delivery); recordErr != nil {
			s.logger.Warn("notify: record delivery", zap.Error(recordErr))
		}

		if s.onMetrics != nil {
			s.onMetrics(success)
		}

		if success {
			return
		}

		s.logger.Warn("notify: delivery failed",
			zap.String("url", sub.URL),
			zap.Int("attempt", attempt),
			zap.String("error", errMsg),
		)
	}

	dl := &DeadLetter{
		SubscriptionID: sub.ID,
		EventType:      event.Type,
		EventBody:      body,
		Attempts:       maxAttempts,
		LastError:      lastErr,
	}
	if err := s.repo.RecordDeadLetter(ctx, dl); err != nil {
		s.logger.Error("notify: record dead letter", zap.String("url", sub.URL), zap.Error(err))
	}
}

// ListDeadLetters returns every dead letter for a subscription, resolved
// ones included.
func (s *Service) ListDeadLetters(ctx context.Context, subscriptionID uuid.UUID) ([]*DeadLetter, error) {
	return s.repo.ListDeadLetters(ctx, subscriptionID)
}

// ReplayDeadLetter resubmits a dead-lettered event to its subscription's
// current URL and marks it resolved on success. The subscription's secret
// may have rotated since the original failure, so the payload is re-signed
// rather than replayed byte-for-byte against the old signature.
func (s *Service) ReplayDeadLetter(ctx context.Context, id uuid.UUID) error {
	dl, err := s.repo.GetDeadLetter(ctx, id)
	if err != nil {
		return err
	}
	if dl.Resolved {
		return fmt.Errorf("dead letter %s already resolved", id)
	}
	sub, err := s.repo.GetByID(ctx, dl.SubscriptionID)
	if err != nil {
		return err
	}

	signature := signPayload(dl.EventBody, sub.Secret)
	success, statusCode, errMsg := s.doDelivery(ctx, sub.URL, dl.EventBody, signature)

	delivery := &Delivery{
		SubscriptionID: sub.ID,
		EventType:      dl.EventType,
		StatusCode:     statusCode,
		Attempt:        dl.Attempts + 1,
		Success:        success,
		ErrorMessage:   errMsg,
	}
	if recordErr := s.repo.RecordDelivery(ctx, delivery); recordErr != nil {
		s.logger.Warn("notify: record replay delivery", zap.Error(recordErr))
	}
	if !success {
		return fmt.Errorf("replay delivery failed: %s", errMsg)
	}
	return s.repo.ResolveDeadLetter(ctx, id)
}

// doDelivery performs a single HTTP POST delivery.
func (s *Service) doDelivery(ctx context.Context, url string, body []byte, signature string) (bool, int, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, 0, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Enhanced-Client-Signature", signature)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, 0, err.Error()
	}
	defer resp.Body.Close()
	io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	errMsg := ""
	if !success {
		errMsg = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return success, resp.StatusCode, errMsg
}

// signPayload computes an HMAC-SHA256 signature.
func signPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// generateSecret creates a random 32-byte hex-encoded secret.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
