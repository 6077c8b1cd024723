// Command mailer drains the outgoing mail queue into MAIL_OUTBOX_DIR/mail.log.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/banking-auth/internal/config"
	"github.com/iliyamo/banking-auth/internal/logging"
	"github.com/iliyamo/banking-auth/internal/queue"
)

func main() {
	cfg := config.LoadMailer()
	log := logging.New("auth-mailer", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := queue.NewMailConsumer(cfg.RabbitMQURL, cfg.MailQueue, cfg.MailOutboxDir, log)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("mailer stopped", "error", err)
		os.Exit(1)
	}
	log.Info("mailer stopped")
}
