package responder

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/replyforge/replyforge/internal/email"
	"github.com/replyforge/replyforge/internal/engine"
	"github.com/replyforge/replyforge/internal/history"
	"github.com/replyforge/replyforge/internal/mailbox"
)

type fakeMailbox struct {
	messages []mailbox.Message
	fetchErr error
	seen     []uint32
}

func (f *fakeMailbox) FetchUnseen(ctx context.Context) ([]mailbox.Message, error) {
	return f.messages, f.fetchErr
}

func (f *fakeMailbox) MarkSeen(uids []uint32) error {
	f.seen = append(f.seen, uids...)
	return nil
}

type fakeRules struct {
	rules []engine.Rule
}

func (f *fakeRules) Snapshot() ([]engine.Rule, error) { return f.rules, nil }

type fakeSender struct {
	sent    []email.Message
	failFor string // recipient address that fails
}

func (f *fakeSender) Send(ctx context.Context, msg email.Message) email.Result {
	if msg.To == f.failFor {
		return email.Result{Success: false, Error: fmt.Errorf("mailbox full")}
	}
	f.sent = append(f.sent, msg)
	return email.Result{Success: true}
}

func (f *fakeSender) Name() string { return "fake" }

type fakeAudit struct {
	entries []history.Entry
}

func (f *fakeAudit) Add(e *history.Entry) error {
	f.entries = append(f.entries, *e)
	return nil
}

func testEngine() *engine.Engine {
	return engine.New(engine.Options{
		Language:  "portuguese",
		Threshold: 0.7,
		Mode:      engine.ModeFuzzy,
		Fallback:  "Obrigado pelo contato!",
		Signature: "Equipe",
	})
}

var cycleRules = []engine.Rule{
	{Keyword: "orçamento", Response: "Enviaremos um orçamento em breve."},
	{Keyword: "suporte", Response: "Nossa equipe de suporte retornará."},
}

func TestProcessOnce(t *testing.T) {
	mb := &fakeMailbox{messages: []mailbox.Message{
		{UID: 1, From: "cliente@example.com", Subject: "Pedido de orçamento", Body: "Olá!", MessageID: "<m1@example.com>"},
		{UID: 2, From: "outro@example.com", Subject: "Agradecimento", Body: "Obrigado pela reunião"},
	}}
	sender := &fakeSender{}
	audit := &fakeAudit{}

	r := New(mb, testEngine(), &fakeRules{rules: cycleRules}, sender, audit, "bot@example.com", false)

	summary, err := r.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	if summary.Processed != 2 || summary.Replied != 1 || summary.Fallback != 1 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}

	if len(sender.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sender.sent))
	}
	first := sender.sent[0]
	if first.To != "cliente@example.com" {
		t.Errorf("reply to = %q", first.To)
	}
	if first.Subject != "Re: Pedido de orçamento" {
		t.Errorf("reply subject = %q", first.Subject)
	}
	if first.InReplyTo != "<m1@example.com>" {
		t.Errorf("In-Reply-To = %q", first.InReplyTo)
	}
	if !strings.HasPrefix(first.Body, "Enviaremos um orçamento") {
		t.Errorf("reply body = %q", first.Body)
	}

	if len(audit.entries) != 2 {
		t.Fatalf("recorded %d entries, want 2", len(audit.entries))
	}
	if audit.entries[0].MatchedKeyword != "orçamento" {
		t.Errorf("first entry keyword = %q", audit.entries[0].MatchedKeyword)
	}
	if audit.entries[1].MatchedKeyword != "" {
		t.Errorf("second entry keyword = %q, want empty (fallback)", audit.entries[1].MatchedKeyword)
	}

	if len(mb.seen) != 2 {
		t.Errorf("marked seen = %v, want both UIDs", mb.seen)
	}
}

func TestProcessOnceSendFailureLeavesUnseen(t *testing.T) {
	mb := &fakeMailbox{messages: []mailbox.Message{
		{UID: 7, From: "cliente@example.com", Subject: "orçamento", Body: ""},
	}}
	sender := &fakeSender{failFor: "cliente@example.com"}
	audit := &fakeAudit{}

	r := New(mb, testEngine(), &fakeRules{rules: cycleRules}, sender, audit, "bot@example.com", false)

	summary, err := r.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	if summary.Failed != 1 {
		t.Errorf("summary = %+v, want 1 failed", summary)
	}
	if len(audit.entries) != 0 {
		t.Errorf("failed send was recorded: %v", audit.entries)
	}
	if len(mb.seen) != 0 {
		t.Errorf("failed message was marked seen: %v", mb.seen)
	}
}

func TestProcessOnceDryRunSendsNothing(t *testing.T) {
	mb := &fakeMailbox{messages: []mailbox.Message{
		{UID: 3, From: "cliente@example.com", Subject: "orçamento", Body: ""},
	}}
	sender := &fakeSender{}
	audit := &fakeAudit{}

	r := New(mb, testEngine(), &fakeRules{rules: cycleRules}, sender, audit, "bot@example.com", true)

	summary, err := r.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	if summary.Processed != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if len(sender.sent) != 0 {
		t.Errorf("dry run sent mail: %v", sender.sent)
	}
	if len(mb.seen) != 0 {
		t.Errorf("dry run marked messages seen: %v", mb.seen)
	}
}

func TestProcessOnceEmptyInbox(t *testing.T) {
	mb := &fakeMailbox{}
	r := New(mb, testEngine(), &fakeRules{rules: cycleRules}, &fakeSender{}, &fakeAudit{}, "bot@example.com", false)

	summary, err := r.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	if summary.Processed != 0 {
		t.Errorf("summary = %+v, want nothing processed", summary)
	}
}

func TestProcessOnceSkipsSenderlessMessages(t *testing.T) {
	mb := &fakeMailbox{messages: []mailbox.Message{
		{UID: 9, From: "", Subject: "sem remetente"},
	}}
	sender := &fakeSender{}

	r := New(mb, testEngine(), &fakeRules{rules: cycleRules}, sender, &fakeAudit{}, "bot@example.com", false)

	summary, err := r.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	if summary.Processed != 0 || len(sender.sent) != 0 {
		t.Errorf("senderless message was processed: %+v, sent %v", summary, sender.sent)
	}
	if len(mb.seen) != 1 {
		t.Errorf("senderless message not marked seen: %v", mb.seen)
	}
}
