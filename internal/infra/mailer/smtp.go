package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	gomail "github.com/wneessen/go-mail"
	"golang.org/x/time/rate"

	"condo_collections/internal/domain/notification"
	"condo_collections/internal/infra/retry"
)

const defaultTimeout = 30 * time.Second

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	RatePerSecond float64
}

// SMTPMailer implements notification.Transport over an SMTP relay.
type SMTPMailer struct {
	cfg     SMTPConfig
	limiter *rate.Limiter
	logger  *logrus.Entry
	now     func() time.Time
}

func NewSMTPMailer(cfg SMTPConfig, logger *logrus.Entry) *SMTPMailer {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	return &SMTPMailer{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		logger:  logger,
		now:     time.Now,
	}
}

// Send delivers msg. 5xx replies from the relay are permanent and are not
// retried. Once the relay has accepted the message Send reports success,
// whatever happens to the rest of the session.
func (m *SMTPMailer) Send(ctx context.Context, msg notification.Message) error {
	if msg.Recipient == "" {
		return retry.Permanent(errors.New("mailer: empty recipient"))
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("mailer: rate limiter: %w", err)
	}

	mail, err := newMessage(m.cfg.From, msg, m.now())
	if err != nil {
		return retry.Permanent(err)
	}

	client, err := m.client(ctx)
	if err != nil {
		return err
	}
	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("mailer: connect to %s: %w", m.cfg.Host, err)
	}
	sendErr := client.Send(mail)
	closeErr := client.Close()

	log := m.logger.WithFields(logrus.Fields{"recipient": msg.Recipient, "subject": msg.Subject})
	if mail.IsDelivered() {
		if err := errors.Join(sendErr, closeErr); err != nil {
			log.WithError(err).Warn("Relay accepted the mail but the session did not end cleanly")
		}
		log.Debug("Mail delivered to relay")
		return nil
	}
	if sendErr == nil {
		sendErr = errors.New("relay did not confirm delivery")
	}

	var relayErr *gomail.SendError
	if errors.As(sendErr, &relayErr) && !relayErr.IsTemp() && relayErr.ErrorCode() >= 500 {
		return retry.Permanent(fmt.Errorf("mailer: relay rejected %s: %w", msg.Recipient, sendErr))
	}
	return fmt.Errorf("mailer: send to %s: %w", msg.Recipient, sendErr)
}

// client opens a session bounded by the caller's deadline.
func (m *SMTPMailer) client(ctx context.Context) (*gomail.Client, error) {
	timeout := defaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, fmt.Errorf("mailer: %w", context.DeadlineExceeded)
		}
	}

	opts := []gomail.Option{
		gomail.WithPort(m.cfg.Port),
		gomail.WithTimeout(timeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.cfg.Username),
			gomail.WithPassword(m.cfg.Password),
		)
	}
	client, err := gomail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("mailer: client settings: %w", err))
	}
	return client, nil
}
