// Package mail sends digest emails through Resend
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/resend/resend-go/v2"
)

// ErrNotConfigured is returned by Send when no API key or recipient is set.
var ErrNotConfigured = errors.New("mail: not configured")

// Message is one outgoing email
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers emails to a single configured recipient
type Mailer struct {
	client *resend.Client
	from   string
	to     string
	logger *slog.Logger
}

// Config holds the mailer settings
type Config struct {
	APIKey  string
	From    string
	To      string
	BaseURL string
}

// New creates a Mailer. An empty API key yields a disabled mailer that logs and
// skips every send.
func New(cfg Config, logger *slog.Logger) (*Mailer, error) {
	m := &Mailer{
		from:   cfg.From,
		to:     cfg.To,
		logger: logger.With(slog.String("component", "mail")),
	}
	if cfg.APIKey == "" {
		return m, nil
	}

	m.client = resend.NewClient(cfg.APIKey)
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("failed to parse mail base url: %w", err)
		}
		m.client.BaseURL = u
	}
	return m, nil
}

// Enabled reports whether Send will actually deliver.
func (m *Mailer) Enabled() bool {
	return m != nil && m.client != nil && m.to != "" && m.from != ""
}

// Send delivers msg and returns the provider's message id.
func (m *Mailer) Send(ctx context.Context, msg Message) (string, error) {
	if !m.Enabled() {
		if m != nil {
			m.logger.Warn("resend client not configured, skipping email", slog.String("subject", msg.Subject))
		}
		return "", ErrNotConfigured
	}

	resp, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{m.to},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		m.logger.Error("failed to send email",
			slog.String("subject", msg.Subject),
			slog.Any("error", err),
		)
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("email sent", slog.String("id", resp.Id), slog.String("subject", msg.Subject))
	return resp.Id, nil
}
