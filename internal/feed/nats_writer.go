package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
)

// publisher is satisfied by *nats.Conn.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSWriter publishes every sent feature on <prefix>.<route>.
type NATSWriter struct {
	nc     publisher
	conn   *nats.Conn
	prefix string
}

// NewNATSWriter connects to url and publishes under prefix.
func NewNATSWriter(url, prefix string) (*NATSWriter, error) {
	nc, err := nats.Connect(url,
		nats.Name("locationfeed"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			slog.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSWriter{nc: nc, conn: nc, prefix: prefix}, nil
}

// Write publishes the stamped feature.
func (w *NATSWriter) Write(_ context.Context, p Point) error {
	b, err := json.Marshal(p.Feature)
	if err != nil {
		return err
	}
	return w.nc.Publish(w.subject(p.Route), b)
}

// Close drains the connection.
func (w *NATSWriter) Close() error {
	if w.conn == nil {
		return nil
	}
	return w.conn.Drain()
}

func (w *NATSWriter) subject(route string) string {
	if w.prefix == "" {
		return subjectToken(route)
	}
	return w.prefix + "." + subjectToken(route)
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS tokens cannot contain spaces, '>', '*' or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
