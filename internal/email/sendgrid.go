package email

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendGridSender struct {
	client *sendgrid.Client
	from   string
}

func NewSendGridSender(apiKey, from string) *SendGridSender {
	return &SendGridSender{client: sendgrid.NewSendClient(apiKey), from: from}
}

func (s *SendGridSender) Name() string { return "sendgrid" }

func (s *SendGridSender) Send(ctx context.Context, msg Message) Result {
	if msg.From == "" {
		msg.From = s.from
	}
	if err := validateMessage(msg); err != nil {
		return Result{Success: false, Error: err}
	}

	m := sgmail.NewSingleEmailPlainText(
		sgmail.NewEmail("", msg.From),
		msg.Subject,
		sgmail.NewEmail("", msg.To),
		msg.Body,
	)
	if msg.InReplyTo != "" {
		m.SetHeader("In-Reply-To", msg.InReplyTo)
		m.SetHeader("References", msg.InReplyTo)
	}

	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return Result{Success: false, Error: fmt.Errorf("sendgrid send failed: %w", err)}
	}
	if resp.StatusCode >= 400 {
		return Result{Success: false, Error: fmt.Errorf("sendgrid rejected message: status %d", resp.StatusCode)}
	}

	var messageID string
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		messageID = ids[0]
	}
	return Result{Success: true, MessageID: messageID}
}
