package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"condo_collections/internal/domain/delinquency"
)

// conn is the part of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSPublisher streams escalation events and cycle outlines to downstream
// consumers (reporting, letter generation).
type NATSPublisher struct {
	conn   conn
	prefix string
	logger *logrus.Entry
}

// NewNATSPublisher connects to url. Subjects are rooted at prefix.
func NewNATSPublisher(url, prefix string, logger *logrus.Entry) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("condo-collections"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.WithField("url", c.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.WithFields(logrus.Fields{"url": url, "prefix": prefix}).Info("NATS publisher initialized")
	return newPublisher(nc, prefix, logger), nil
}

func newPublisher(c conn, prefix string, logger *logrus.Entry) *NATSPublisher {
	return &NATSPublisher{conn: c, prefix: prefix, logger: logger}
}

// EscalationSubject is <prefix>.escalations.<new_state>.
func (p *NATSPublisher) EscalationSubject(state delinquency.LifecycleState) string {
	return fmt.Sprintf("%s.escalations.%s", p.prefix, state)
}

// CycleSubject is <prefix>.cycles.completed.
func (p *NATSPublisher) CycleSubject() string {
	return p.prefix + ".cycles.completed"
}

func (p *NATSPublisher) PublishEscalation(ctx context.Context, ev delinquency.EscalationEvent) error {
	return p.publish(ctx, p.EscalationSubject(ev.NewState), ev)
}

func (p *NATSPublisher) PublishCycle(ctx context.Context, run delinquency.CycleRun) error {
	return p.publish(ctx, p.CycleSubject(), run)
}

func (p *NATSPublisher) publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush %s: %w", subject, err)
	}
	p.logger.WithField("subject", subject).Debug("Published event")
	return nil
}

func (p *NATSPublisher) Close() {
	p.conn.Close()
}

// Noop is used when no NATS_URL is configured.
type Noop struct{}

func (Noop) PublishEscalation(context.Context, delinquency.EscalationEvent) error { return nil }
func (Noop) PublishCycle(context.Context, delinquency.CycleRun) error             { return nil }
