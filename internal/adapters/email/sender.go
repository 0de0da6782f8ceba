package email

import (
	"context"
	"time"
)

// Message is one outbound alert email.
type Message struct {
	To      []string
	From    string // optional; the sender's default is used when empty
	Subject string
	HTML    string
	ReplyTo string
}

// Receipt is what the provider reports back.
type Receipt struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers alert emails through an external provider.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}
