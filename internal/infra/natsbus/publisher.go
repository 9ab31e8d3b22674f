package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"iqfeed_go/internal/domain"
)

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Flush() error
	Close()
}

// Publisher forwards decoded feed messages to NATS subjects:
//
//	<prefix>.trade.<SYMBOL>
//	<prefix>.timestamp
//	<prefix>.server
//	<prefix>.other.<TAG>
type Publisher struct {
	conn   Conn
	prefix string
}

// Connect dials the NATS server at url.
func Connect(url, prefix, name string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("NATS reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, domain.NewNetworkError("nats connect", fmt.Errorf("%w: %w", domain.ErrConnectionFailed, err))
	}
	slog.Info("Connected to NATS", slog.String("url", nc.ConnectedUrl()))
	return NewPublisher(nc, prefix), nil
}

// NewPublisher wraps an existing connection
func NewPublisher(conn Conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = "iqfeed"
	}
	return &Publisher{conn: conn, prefix: prefix}
}

func (p *Publisher) Name() string { return "nats" }

// Subject returns the subject msg is published on.
func (p *Publisher) Subject(msg domain.Message) string {
	switch m := msg.(type) {
	case *domain.Trade:
		return p.prefix + ".trade." + token(m.Symbol)
	case *domain.Timestamp:
		return p.prefix + ".timestamp"
	case *domain.ServerMessage:
		return p.prefix + ".server"
	case *domain.None:
		return p.prefix + ".other." + token(m.Tag)
	default:
		return p.prefix + ".other"
	}
}

// Handle publishes msg as a JSON envelope.
func (p *Publisher) Handle(_ context.Context, msg domain.Message) error {
	data, err := json.Marshal(domain.NewEnvelope(msg))
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.Subject(msg), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	err := p.conn.Flush()
	p.conn.Close()
	return err
}

// token makes s safe as a single subject token.
func token(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, s)
}
