// Package notify announces finished pipeline runs on NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/okian/sailtrack/pkg/logger"
	"github.com/okian/sailtrack/pkg/metrics"
)

const (
	defaultSubject = "sailtrack"
	flushTimeout   = 5 * time.Second
)

// Subject suffixes published after each run.
const (
	SubjectRun       = "run"
	SubjectPositions = "positions"
)

// publisher is the part of *nats.Conn the notifier uses.
type publisher interface {
	Publish(subj string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Drain() error
}

// Notifier publishes run messages under one subject prefix.
type Notifier struct {
	conn    publisher
	subject string
	logger  logger.Logger
}

// Connect dials url and returns a notifier publishing under subject.
func Connect(url, subject string, l logger.Logger) (*Notifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("sailtrack"),
		nats.Timeout(flushTimeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				l.Warn(context.Background(), "nats disconnected", logger.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			l.Info(context.Background(), "nats reconnected", logger.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", ErrNotify, url, err)
	}
	return newNotifier(conn, subject, l), nil
}

func newNotifier(conn publisher, subject string, l logger.Logger) *Notifier {
	if subject == "" {
		subject = defaultSubject
	}
	return &Notifier{conn: conn, subject: subject, logger: l}
}

// Subject returns the full subject for suffix.
func (n *Notifier) Subject(suffix string) string {
	return n.subject + "." + suffix
}

// Publish sends payload on the subject for suffix and waits for the server
// to acknowledge the flush.
func (n *Notifier) Publish(ctx context.Context, suffix string, payload []byte) error {
	subj := n.Subject(suffix)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotify, subj, err)
	}
	if err := n.conn.Publish(subj, payload); err != nil {
		metrics.RecordSinkWrite("nats", "error")
		return fmt.Errorf("%w: publish %s: %v", ErrNotify, subj, err)
	}
	if err := n.conn.FlushTimeout(flushTimeout); err != nil {
		metrics.RecordSinkWrite("nats", "error")
		return fmt.Errorf("%w: flush %s: %v", ErrNotify, subj, err)
	}
	metrics.RecordSinkWrite("nats", "ok")
	n.logger.Debug(ctx, "published", logger.String("subject", subj), logger.Int("bytes", len(payload)))
	return nil
}

// PublishJSON encodes v and publishes it.
func (n *Notifier) PublishJSON(ctx context.Context, suffix string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrNotify, suffix, err)
	}
	return n.Publish(ctx, suffix, data)
}

// Close drains pending messages and closes the connection.
func (n *Notifier) Close() error {
	if err := n.conn.Drain(); err != nil {
		return fmt.Errorf("%w: drain: %v", ErrNotify, err)
	}
	return nil
}
