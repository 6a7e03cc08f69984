// Package email renders and delivers the lead funnel emails.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"leadfunnel_backend/platform/config"
)

// Provider names accepted by EMAIL_PROVIDER.
const (
	ProviderBrevo = "brevo"
	ProviderSMTP  = "smtp"
)

// ErrNotConfigured is returned by NoopSender so callers never mistake a
// disabled transport for a delivered message.
var ErrNotConfigured = errors.New("email transport not configured")

// Message is one outbound HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a message and returns the provider message id when known.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// NoopSender is used when email is disabled.
type NoopSender struct{}

func (NoopSender) Send(ctx context.Context, msg Message) (string, error) {
	return "", ErrNotConfigured
}

// Available reports whether s can actually deliver mail.
func Available(s Sender) bool {
	if s == nil {
		return false
	}
	_, noop := s.(NoopSender)
	return !noop
}

// NewSender builds the configured transport. Disabled email yields NoopSender.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}

	switch strings.ToLower(strings.TrimSpace(cfg.GetEmailProvider())) {
	case "", ProviderBrevo:
		if cfg.GetBrevoAPIKey() == "" {
			return nil, errors.New("BREVO_API_KEY is required when EMAIL_PROVIDER=brevo")
		}
		return NewBrevoSender(cfg.GetBrevoAPIKey(), cfg.GetEmailFromAddress(), cfg.GetEmailFromName()), nil
	case ProviderSMTP:
		if cfg.GetSMTPHost() == "" {
			return nil, errors.New("SMTP_HOST is required when EMAIL_PROVIDER=smtp")
		}
		return NewSMTPSender(
			cfg.GetSMTPHost(),
			cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(),
			cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(),
			cfg.GetEmailFromName(),
		), nil
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", cfg.GetEmailProvider())
	}
}
