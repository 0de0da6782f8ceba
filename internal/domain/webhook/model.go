package webhook

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Channel names.
const (
	ChannelSlack   = "slack"
	ChannelDiscord = "discord"
)

// ErrUnsupportedChannel is recorded when a send names a channel with no strategy.
var ErrUnsupportedChannel = errors.New("unsupported webhook channel")

// SendInput is one notification to deliver.
type SendInput struct {
	TenantID   string
	Channel    string
	URL        string
	Title      string
	Body       string
	EventLabel string
}

// Response is what the remote endpoint answered.
type Response struct {
	StatusCode  int
	ContentType string
	Body        string
}

// DeliveryLog is the audit row for one send attempt. Rows are insert-only.
type DeliveryLog struct {
	ID         string
	TenantID   string
	Channel    string
	EventType  string
	Payload    string
	Response   string
	StatusCode int // 0 when the request never got a response
	Success    bool
	CreatedAt  time.Time
}

// Strategy builds the payload for a channel and decides whether its response means success.
type Strategy struct {
	BuildPayload func(title, body string) map[string]string
	Succeeded    func(resp Response) bool
}

var strategies = map[string]Strategy{
	ChannelDiscord: {
		BuildPayload: func(title, body string) map[string]string {
			return map[string]string{"content": formatMessage(title, body)}
		},
		Succeeded: discordSucceeded,
	},
	ChannelSlack: {
		BuildPayload: func(title, body string) map[string]string {
			return map[string]string{"text": formatMessage(title, body)}
		},
		Succeeded: slackSucceeded,
	},
}

// StrategyFor returns the strategy registered for channel.
func StrategyFor(channel string) (Strategy, bool) {
	s, ok := strategies[channel]
	return s, ok
}

// Channels lists the supported channel names.
func Channels() []string {
	return []string{ChannelSlack, ChannelDiscord}
}

// MarshalPayload encodes the channel payload.
func MarshalPayload(s Strategy, title, body string) ([]byte, error) {
	return json.Marshal(s.BuildPayload(title, body))
}

func formatMessage(title, body string) string {
	return "*" + title + "*\n" + body
}

// discordSucceeded accepts 204, or any 2xx that is not an HTML page. Discord answers
// misconfigured webhook URLs with an HTML error page and a 200.
func discordSucceeded(resp Response) bool {
	if resp.StatusCode == http.StatusNoContent {
		return true
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false
	}
	return !isHTML(resp)
}

// slackSucceeded requires a 2xx and the literal body "ok".
func slackSucceeded(resp Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode <= 299 && resp.Body == "ok"
}

func isHTML(resp Response) bool {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(resp.ContentType)), "text/html") {
		return true
	}
	head := strings.ToLower(strings.TrimSpace(resp.Body))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}
