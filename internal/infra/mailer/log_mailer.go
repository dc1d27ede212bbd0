package mailer

import (
	"context"

	"github.com/sirupsen/logrus"

	"condo_collections/internal/domain/notification"
)

// LogMailer is the dry-run transport used when no SMTP relay is configured:
// it logs every message instead of sending it.
type LogMailer struct {
	logger *logrus.Entry
}

func NewLogMailer(logger *logrus.Entry) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg notification.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.WithFields(logrus.Fields{
		"recipient": msg.Recipient,
		"subject":   msg.Subject,
	}).Info("DRY RUN: mail not sent")
	m.logger.Debug(msg.Body)
	return nil
}
