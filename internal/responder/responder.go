// Package responder runs the fetch-match-reply cycle over the inbox.
package responder

import (
	"context"
	"fmt"
	"log"

	"github.com/replyforge/replyforge/internal/email"
	"github.com/replyforge/replyforge/internal/engine"
	"github.com/replyforge/replyforge/internal/history"
	"github.com/replyforge/replyforge/internal/mailbox"
)

// Mailbox is the slice of the IMAP monitor the responder needs.
type Mailbox interface {
	FetchUnseen(ctx context.Context) ([]mailbox.Message, error)
	MarkSeen(uids []uint32) error
}

// RuleSource supplies the active rules for one cycle.
type RuleSource interface {
	Snapshot() ([]engine.Rule, error)
}

// AuditLog records each processed message.
type AuditLog interface {
	Add(entry *history.Entry) error
}

// Summary reports what one cycle did.
type Summary struct {
	Processed int
	Replied   int // replies from a matched rule
	Fallback  int
	Failed    int
}

type Responder struct {
	mailbox Mailbox
	engine  *engine.Engine
	rules   RuleSource
	sender  email.Sender
	audit   AuditLog
	from    string
	dryRun  bool

	// fallbackReply is sent when the engine faults on a message.
	fallbackReply string
}

func New(mb Mailbox, eng *engine.Engine, rules RuleSource, sender email.Sender, audit AuditLog, from string, dryRun bool) *Responder {
	return &Responder{
		mailbox:       mb,
		engine:        eng,
		rules:         rules,
		sender:        sender,
		audit:         audit,
		from:          from,
		dryRun:        dryRun,
		fallbackReply: eng.Respond("", "", nil).Text,
	}
}

// ProcessOnce handles every unseen message: match against the current rules,
// send the reply, record it, and mark the message seen. A message is only
// marked seen after its reply went out, so failures are retried next cycle.
func (r *Responder) ProcessOnce(ctx context.Context) (Summary, error) {
	var summary Summary

	messages, err := r.mailbox.FetchUnseen(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to fetch unseen messages: %w", err)
	}
	if len(messages) == 0 {
		return summary, nil
	}

	rules, err := r.rules.Snapshot()
	if err != nil {
		return summary, fmt.Errorf("failed to load rules: %w", err)
	}

	var processed []uint32
	for _, msg := range messages {
		if msg.From == "" {
			log.Printf("Skipping message %d with no sender", msg.UID)
			processed = append(processed, msg.UID)
			continue
		}

		reply := r.safeRespond(msg, rules)
		summary.Processed++

		if r.dryRun {
			fmt.Printf("[dry-run] would reply to %s (subject %q, matched %q)\n",
				msg.From, msg.Subject, reply.MatchedKeyword)
		} else {
			result := r.sender.Send(ctx, email.Message{
				To:        msg.From,
				From:      r.from,
				Subject:   email.ReplySubject(msg.Subject),
				Body:      reply.Text,
				InReplyTo: msg.MessageID,
			})
			if !result.Success {
				log.Printf("Failed to reply to %s: %v", msg.From, result.Error)
				summary.Failed++
				continue
			}
		}

		if reply.MatchedKeyword != "" {
			summary.Replied++
		} else {
			summary.Fallback++
		}

		entry := &history.Entry{
			Sender:         msg.From,
			Subject:        msg.Subject,
			MatchedKeyword: reply.MatchedKeyword,
			ResponseSent:   reply.Text,
		}
		if err := r.audit.Add(entry); err != nil {
			log.Printf("Failed to record reply to %s: %v", msg.From, err)
		}

		processed = append(processed, msg.UID)
	}

	if len(processed) > 0 && !r.dryRun {
		if err := r.mailbox.MarkSeen(processed); err != nil {
			return summary, fmt.Errorf("failed to mark messages seen: %w", err)
		}
	}
	return summary, nil
}

// safeRespond shields the cycle from engine faults: a panic while matching
// one message turns into the fallback reply instead of taking the loop down.
func (r *Responder) safeRespond(msg mailbox.Message, rules []engine.Rule) (reply engine.Reply) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Recovered from matcher fault on message %d: %v", msg.UID, rec)
			reply = engine.Reply{Text: r.fallbackReply}
		}
	}()
	return r.engine.Respond(msg.Subject, msg.Body, rules)
}
