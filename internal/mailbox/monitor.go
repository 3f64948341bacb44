// Package mailbox watches an IMAP inbox for messages awaiting a reply.
package mailbox

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"github.com/replyforge/replyforge/internal/config"
)

// Message is one inbound email ready for matching.
type Message struct {
	UID        uint32
	MessageID  string
	From       string // bare address
	FromName   string
	Subject    string
	Body       string // plain text, HTML stripped if that was all there was
	ReceivedAt time.Time
}

// Monitor holds the IMAP session for one mailbox.
type Monitor struct {
	config config.MailboxConfig
	client *client.Client
}

func NewMonitor(cfg config.MailboxConfig) *Monitor {
	return &Monitor{config: cfg}
}

func (m *Monitor) Connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", m.config.Server, m.config.Port)

	log.Printf("Connecting to IMAP server %s...", addr)

	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(m.config.Email, m.config.Password); err != nil {
		c.Logout()
		return fmt.Errorf("failed to login: %w", err)
	}

	m.client = c
	log.Printf("Logged in as %s", m.config.Email)
	return nil
}

func (m *Monitor) Disconnect() error {
	if m.client != nil {
		return m.client.Logout()
	}
	return nil
}

// FetchUnseen returns every unseen message in the configured folder. The
// fetch uses Peek so messages stay unseen until MarkSeen confirms the reply
// went out.
func (m *Monitor) FetchUnseen(ctx context.Context) ([]Message, error) {
	if m.client == nil {
		return nil, fmt.Errorf("not connected to IMAP server")
	}

	mbox, err := m.client.Select(m.config.Folder, false)
	if err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", m.config.Folder, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	uids, err := m.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search unseen messages: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	log.Printf("Found %d unseen messages in %s", len(uids), m.config.Folder)

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- m.client.UidFetch(seqSet, items, messages)
	}()

	var result []Message
	for msg := range messages {
		parsed, err := parseMessage(msg, section)
		if err != nil {
			log.Printf("Warning: failed to parse message: %v", err)
			continue
		}
		if parsed != nil {
			result = append(result, *parsed)
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return result, nil
}

// MarkSeen flags the messages as read so the next cycle skips them.
func (m *Monitor) MarkSeen(uids []uint32) error {
	if m.client == nil {
		return fmt.Errorf("not connected to IMAP server")
	}
	if len(uids) == 0 {
		return nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	if err := m.client.UidStore(seqSet, item, flags, nil); err != nil {
		return fmt.Errorf("failed to mark messages seen: %w", err)
	}
	return nil
}

// WatchForNewMail blocks on IMAP IDLE and invokes onUpdate whenever the
// server reports new mail, plus every pollInterval as a safety net for
// servers that drop IDLE notifications. IDLE is suspended around each
// callback so onUpdate may issue IMAP commands on this connection. Returns
// when the context is cancelled.
func (m *Monitor) WatchForNewMail(ctx context.Context, pollInterval time.Duration, onUpdate func()) error {
	if m.client == nil {
		return fmt.Errorf("not connected to IMAP server")
	}

	if _, err := m.client.Select(m.config.Folder, false); err != nil {
		return fmt.Errorf("failed to select mailbox: %w", err)
	}

	updates := make(chan client.Update)
	m.client.Updates = updates

	stop := make(chan struct{})
	idleDone := make(chan error, 1)
	idle := func() {
		idleDone <- m.client.Idle(stop, nil)
	}
	go idle()

	// Suspend IDLE, run the callback, resume IDLE.
	resume := func() {
		close(stop)
		<-idleDone
		onUpdate()
		stop = make(chan struct{})
		go idle()
	}

	var tick <-chan time.Time
	if pollInterval > 0 {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	log.Printf("Watching %s for new mail...", m.config.Folder)

	for {
		select {
		case <-ctx.Done():
			close(stop)
			return ctx.Err()
		case update := <-updates:
			if _, ok := update.(*client.MailboxUpdate); !ok {
				continue
			}
			resume()
		case <-tick:
			resume()
		case err := <-idleDone:
			if err != nil {
				return fmt.Errorf("IDLE error: %w", err)
			}
		}
	}
}

func parseMessage(msg *imap.Message, section *imap.BodySectionName) (*Message, error) {
	if msg == nil || msg.Envelope == nil {
		return nil, nil
	}

	result := &Message{
		UID:        msg.Uid,
		MessageID:  msg.Envelope.MessageId,
		Subject:    msg.Envelope.Subject,
		ReceivedAt: msg.Envelope.Date,
	}

	if len(msg.Envelope.From) > 0 {
		from := msg.Envelope.From[0]
		result.From = bareAddress(from.Address())
		result.FromName = from.PersonalName
	}

	r := msg.GetBody(section)
	if r == nil {
		return result, nil
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return result, nil
	}

	var plain, html string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		if h, ok := p.Header.(*mail.InlineHeader); ok {
			ct, _, _ := h.ContentType()
			body, _ := io.ReadAll(p.Body)

			if strings.HasPrefix(ct, "text/plain") && plain == "" {
				plain = string(body)
			} else if strings.HasPrefix(ct, "text/html") && html == "" {
				html = string(body)
			}
		}
	}

	result.Body = plain
	if result.Body == "" && html != "" {
		result.Body = htmlToText(html)
	}
	return result, nil
}
