// Package queue carries outgoing mail over RabbitMQ: the auth service
// publishes EmailMessages and the mailer process consumes them.
package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultMailQueue is the durable queue mail is published to.
const DefaultMailQueue = "auth.email"

// EmailMessage is one mail to deliver.  Body may hold a password reset
// link, so consumers must not log it.
type EmailMessage struct {
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	QueuedAt time.Time `json:"queued_at"`
}

// DecodeEmail parses and checks a message body taken off the queue.
func DecodeEmail(body []byte) (EmailMessage, error) {
	var m EmailMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return EmailMessage{}, fmt.Errorf("unmarshal: %w", err)
	}
	if strings.TrimSpace(m.To) == "" {
		return EmailMessage{}, fmt.Errorf("message has no recipient")
	}
	return m, nil
}
