package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// MsgPublisher is the part of *nats.Conn the publisher needs.
type MsgPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes to <prefix>.bus.<id>.location and
// <prefix>.bus.<id>.wait_request.
type NATSPublisher struct {
	conn   MsgPublisher
	nc     *nats.Conn
	prefix string
}

func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("shuttle-tracker"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logrus.WithError(err).Warn("NATS disconnected.")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logrus.WithField("url", c.ConnectedUrl()).Info("NATS reconnected.")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	p := NewNATSPublisherWithConn(nc, prefix)
	p.nc = nc
	return p, nil
}

func NewNATSPublisherWithConn(conn MsgPublisher, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: subjectToken(prefix)}
}

func (p *NATSPublisher) PublishBusLocation(_ context.Context, ev BusLocation) error {
	return p.publish(p.subject(ev.BusID, "location"), ev)
}

func (p *NATSPublisher) PublishWaitRequest(_ context.Context, ev WaitRequest) error {
	return p.publish(p.subject(ev.BusID, "wait_request"), ev)
}

func (p *NATSPublisher) subject(busID uint, kind string) string {
	return fmt.Sprintf("%s.bus.%d.%s", p.prefix, busID, kind)
}

func (p *NATSPublisher) publish(subject string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.conn.Publish(subject, b)
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS tokens cannot contain spaces, '>', '*' or dots.
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
