package email

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// NoopSender logs and remembers messages without delivering them.
// Used when no provider key is configured.
type NoopSender struct {
	mu   sync.Mutex
	sent []Message
}

// NewNoopSender creates a new NoopSender.
func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

// Send records the message.
// POST: msg is appended to Sent()
func (s *NoopSender) Send(_ context.Context, msg Message) (Receipt, error) {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	n := len(s.sent)
	s.mu.Unlock()

	slog.Info("noop_email_send", "subject", msg.Subject, "recipients", len(msg.To))
	return Receipt{
		MessageID: fmt.Sprintf("noop-%d", n),
		SentAt:    time.Now(),
	}, nil
}

// Sent returns a copy of every message recorded so far.
func (s *NoopSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
