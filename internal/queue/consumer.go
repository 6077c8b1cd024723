package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const mailLogName = "mail.log"

// MailConsumer drains the mail queue into an outbox file, one line per
// message.  It stands in for an SMTP relay.
type MailConsumer struct {
	url   string
	queue string
	dir   string
	log   *slog.Logger

	mu sync.Mutex // serializes writes to the outbox
}

func NewMailConsumer(url, queue, dir string, log *slog.Logger) *MailConsumer {
	if queue == "" {
		queue = DefaultMailQueue
	}
	if dir == "" {
		dir = "logs"
	}
	return &MailConsumer{url: url, queue: queue, dir: dir, log: log.With("component", "mail-consumer")}
}

// Run connects to the broker and consumes until ctx is cancelled.  Lost
// connections are redialed with exponential backoff capped at 30s.
func (c *MailConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("dial broker failed", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *MailConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("set QoS failed", "error", err)
	}
	if err := declare(ch, c.queue); err != nil {
		return err
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info("consuming", "queue", c.queue)

	for d := range msgs {
		if err := c.Handle(d.Body); err != nil {
			c.log.Error("handle message failed", "error", err)
			_ = d.Nack(false, false) // do not requeue poison messages
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// Handle decodes one message and appends it to the outbox.
func (c *MailConsumer) Handle(body []byte) error {
	m, err := DecodeEmail(body)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.dir, mailLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] to=%q subject=%q body=%q\n", m.QueuedAt.Format(time.RFC3339), m.To, m.Subject, m.Body)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write outbox: %w", err)
	}
	c.log.Info("mail delivered", "to", m.To, "subject", m.Subject)
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
