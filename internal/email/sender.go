// Package email sends the composed replies through the configured provider.
package email

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/replyforge/replyforge/internal/config"
)

type Message struct {
	To      string
	From    string
	Subject string
	Body    string
	// InReplyTo carries the Message-ID of the mail being answered so
	// clients thread the reply correctly.
	InReplyTo string
}

type Result struct {
	Success   bool
	MessageID string
	Error     error
}

type Sender interface {
	Send(ctx context.Context, msg Message) Result
	Name() string
}

func NewSender(cfg config.EmailConfig) (Sender, error) {
	switch cfg.Provider {
	case "", "smtp":
		return NewSMTPSender(cfg.SMTP, cfg.From), nil
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("sendgrid provider requires an API key")
		}
		return NewSendGridSender(cfg.SendGridAPIKey, cfg.From), nil
	case "resend":
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("resend provider requires an API key")
		}
		return NewResendSender(cfg.ResendAPIKey, cfg.From), nil
	}
	return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
}

// ValidateEmail checks for injection characters and RFC 5322 compliance
func ValidateEmail(email string) error {
	if strings.ContainsAny(email, "\r\n,;") {
		return fmt.Errorf("email contains invalid characters")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	return nil
}

func validateMessage(msg Message) error {
	if err := ValidateEmail(msg.From); err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if err := ValidateEmail(msg.To); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	// Reject headers with CRLF to prevent injection
	if strings.ContainsAny(msg.Subject, "\r\n") {
		return fmt.Errorf("subject contains invalid characters")
	}
	return nil
}

// ReplySubject prefixes Re: unless the subject already carries one.
func ReplySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if trimmed == "" {
		return "Re: (sem assunto)"
	}
	if strings.HasPrefix(strings.ToLower(trimmed), "re:") {
		return trimmed
	}
	return "Re: " + trimmed
}
