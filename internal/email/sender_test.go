package email

import (
	"testing"

	"github.com/replyforge/replyforge/internal/config"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"valid", "user@example.com", false},
		{"valid with name", "Maria Silva <maria@example.com>", false},
		{"crlf injection", "user@example.com\r\nBcc: evil@example.com", true},
		{"comma", "a@example.com,b@example.com", true},
		{"not an address", "not-an-email", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidateMessageRejectsHeaderInjection(t *testing.T) {
	msg := Message{
		From:    "me@example.com",
		To:      "you@example.com",
		Subject: "Hello\r\nBcc: evil@example.com",
		Body:    "body",
	}
	if err := validateMessage(msg); err == nil {
		t.Error("validateMessage accepted a subject with CRLF")
	}
}

func TestReplySubject(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Pedido de orçamento", "Re: Pedido de orçamento"},
		{"Re: Pedido de orçamento", "Re: Pedido de orçamento"},
		{"RE: pedido", "RE: pedido"},
		{"", "Re: (sem assunto)"},
		{"   ", "Re: (sem assunto)"},
	}
	for _, tt := range tests {
		if got := ReplySubject(tt.in); got != tt.want {
			t.Errorf("ReplySubject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewSenderProviderSelection(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.EmailConfig
		wantName string
		wantErr  bool
	}{
		{"default is smtp", config.EmailConfig{}, "smtp", false},
		{"smtp", config.EmailConfig{Provider: "smtp"}, "smtp", false},
		{"sendgrid", config.EmailConfig{Provider: "sendgrid", SendGridAPIKey: "k"}, "sendgrid", false},
		{"sendgrid without key", config.EmailConfig{Provider: "sendgrid"}, "", true},
		{"resend", config.EmailConfig{Provider: "resend", ResendAPIKey: "k"}, "resend", false},
		{"resend without key", config.EmailConfig{Provider: "resend"}, "", true},
		{"unknown", config.EmailConfig{Provider: "pigeon"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := NewSender(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSender error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && sender.Name() != tt.wantName {
				t.Errorf("sender name = %q, want %q", sender.Name(), tt.wantName)
			}
		})
	}
}
