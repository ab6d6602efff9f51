// Package push forwards delivered reminders to a device through the Expo Push API
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/subscription-radar/pkg/metrics"
	"github.com/FACorreiaa/subscription-radar/pkg/notify"
)

const (
	// ExpoPushURL is the Expo Push API endpoint
	ExpoPushURL = "https://exp.host/--/api/v2/push/send"

	// RequestTimeout for push requests
	RequestTimeout = 10 * time.Second
)

var (
	// ErrInvalidToken is returned for tokens that are not Expo push tokens.
	ErrInvalidToken = errors.New("invalid Expo push token")

	// ErrCircuitOpen is returned while the push endpoint is considered down.
	ErrCircuitOpen = errors.New("push endpoint unavailable")

	// ErrTicketRejected is returned when Expo accepts the request but refuses the message.
	ErrTicketRejected = errors.New("push ticket rejected")
)

// Message represents an Expo push notification message
type Message struct {
	To         string         `json:"to"`
	Title      string         `json:"title,omitempty"`
	Body       string         `json:"body"`
	Data       map[string]any `json:"data,omitempty"`
	Sound      string         `json:"sound,omitempty"`    // "default" or custom
	Badge      *int           `json:"badge,omitempty"`    // iOS badge count
	Priority   string         `json:"priority,omitempty"` // "default", "normal", "high"
	CategoryId string         `json:"categoryId,omitempty"`
}

// Response represents the Expo Push API response
type Response struct {
	Data []TicketResponse `json:"data"`
}

// TicketResponse represents a single push ticket
type TicketResponse struct {
	Status  string `json:"status"` // "ok" or "error"
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details,omitempty"`
}

// Service handles Expo Push notifications
type Service struct {
	client   *http.Client
	endpoint string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[*Response]

	failureThreshold uint32
	openTimeout      time.Duration
}

// Option configures a Service
type Option func(*Service)

// WithEndpoint overrides the Expo endpoint.
func WithEndpoint(url string) Option {
	return func(s *Service) {
		if url != "" {
			s.endpoint = url
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRateLimit caps outgoing requests at perSecond with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Service) {
		if perSecond > 0 && burst > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithCircuitBreaker opens the circuit after failures consecutive errors and
// probes again after openTimeout.
func WithCircuitBreaker(failures uint32, openTimeout time.Duration) Option {
	return func(s *Service) {
		if failures > 0 {
			s.failureThreshold = failures
		}
		if openTimeout > 0 {
			s.openTimeout = openTimeout
		}
	}
}

// NewService creates a new push notification service
func NewService(logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		client: &http.Client{
			Timeout: RequestTimeout,
		},
		endpoint:         ExpoPushURL,
		logger:           logger,
		limiter:          rate.NewLimiter(rate.Limit(6), 6),
		failureThreshold: 5,
		openTimeout:      time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "push"))

	s.breaker = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        "expo-push",
		MaxRequests: 1,
		Timeout:     s.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Info("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
		// Callers giving up are not endpoint failures
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
	})
	return s
}

// Send sends a push notification to a single token
func (s *Service) Send(ctx context.Context, msg *Message) error {
	if msg.To == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidToken)
	}
	if !IsValidToken(msg.To) {
		return fmt.Errorf("%w: %s", ErrInvalidToken, redact(msg.To))
	}
	if msg.Sound == "" {
		msg.Sound = "default"
	}

	resp, err := s.post(ctx, []*Message{msg})
	if err != nil {
		s.metrics.IncPushSent(resultFor(err))
		return err
	}

	if len(resp.Data) > 0 && resp.Data[0].Status == "error" {
		errMsg := resp.Data[0].Message
		if resp.Data[0].Details.Error != "" {
			errMsg = resp.Data[0].Details.Error
		}
		s.metrics.IncPushSent("rejected")
		s.logger.Warn("push notification failed",
			slog.String("error", errMsg),
			slog.String("token", redact(msg.To)),
		)
		return fmt.Errorf("%w: %s", ErrTicketRejected, errMsg)
	}

	s.metrics.IncPushSent("ok")
	if len(resp.Data) > 0 {
		s.logger.Info("push notification sent", slog.String("ticket_id", resp.Data[0].ID))
	}
	return nil
}

// Forwarder returns a notify callback that pushes every delivered notification
// to token.
func (s *Service) Forwarder(token string) notify.Callback {
	return func(n notify.Notification) {
		ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
		defer cancel()

		err := s.Send(ctx, &Message{
			To:       token,
			Title:    n.Payload.Title,
			Body:     n.Payload.Body,
			Data:     n.Payload.Data,
			Priority: "high",
		})
		if err != nil {
			s.logger.Warn("failed to forward notification",
				slog.String("handle", string(n.Handle)),
				slog.Any("error", err),
			)
		}
	}
}

func (s *Service) post(ctx context.Context, messages []*Message) (*Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed waiting for push rate limit: %w", err)
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal push messages: %w", err)
	}

	resp, err := s.breaker.Execute(func() (*Response, error) {
		return s.do(ctx, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return resp, err
}

func (s *Service) do(ctx context.Context, payload []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send push notification: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read push response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.Error("push request failed",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return nil, fmt.Errorf("push request failed with status: %d", resp.StatusCode)
	}

	var pushResp Response
	if err := json.Unmarshal(body, &pushResp); err != nil {
		s.logger.Error("failed to parse push response",
			slog.String("body", string(body)),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("failed to parse push response: %w", err)
	}
	return &pushResp, nil
}

// IsValidToken checks if a token is a valid Expo push token
func IsValidToken(token string) bool {
	// Expo push tokens start with "ExponentPushToken[" or "ExpoPushToken["
	return len(token) > 20 &&
		(strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")) &&
		strings.HasSuffix(token, "]")
}

func redact(token string) string {
	if len(token) <= 20 {
		return token
	}
	return token[:20] + "..."
}

func resultFor(err error) string {
	if errors.Is(err, ErrCircuitOpen) {
		return "circuit_open"
	}
	return "error"
}
