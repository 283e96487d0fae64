package botfilter

import (
	"fmt"

	nats "github.com/nats-io/nats.go"
	"github.com/scraperwall/botfilter/data"
	log "github.com/sirupsen/logrus"
)

// Notifier receives an event for everything the filter decides
type Notifier interface {
	Notify(e *data.Event)
	Close()
}

// NatsNotifier publishes events as JSON to a NATS subject
type NatsNotifier struct {
	conn    *nats.Conn
	jsonc   *nats.EncodedConn
	subject string
}

// NewNatsNotifier connects to the NATS server at url
func NewNatsNotifier(url, user, password, subject string) (*NatsNotifier, error) {
	opts := []nats.Option{
		nats.Name("botfilter"),
		nats.ErrorHandler(func(c *nats.Conn, s *nats.Subscription, err error) {
			log.Warnf("nats error: %s", err)
		}),
	}
	if user != "" {
		opts = append(opts, nats.UserInfo(user, password))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}

	jsonc, err := nats.NewEncodedConn(conn, nats.JSON_ENCODER)
	if err != nil {
		conn.Close()
		return nil, err
	}

	log.Infof("publishing decisions to nats %s on %s", url, subject)

	return &NatsNotifier{
		conn:    conn,
		jsonc:   jsonc,
		subject: subject,
	}, nil
}

// Notify publishes e. Failures are only logged.
func (n *NatsNotifier) Notify(e *data.Event) {
	if err := n.jsonc.Publish(n.subject, e); err != nil {
		log.Warnf("failed to publish %s event for %s: %s", e.Kind, e.IP, err)
	}
}

// Close flushes pending events and closes the connection
func (n *NatsNotifier) Close() {
	if err := n.conn.Drain(); err != nil {
		log.Warnf("nats drain: %s", err)
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(*data.Event) {}
func (nopNotifier) Close()             {}
