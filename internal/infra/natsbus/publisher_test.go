package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"

	"iqfeed_go/internal/domain"
)

var (
	_ Conn                  = (*nats.Conn)(nil)
	_ domain.MessageHandler = (*Publisher)(nil)
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs    []published
	err     error
	flushed bool
	closed  bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject, data})
	return nil
}

func (f *fakeConn) Flush() error { f.flushed = true; return nil }
func (f *fakeConn) Close()       { f.closed = true }

func TestPublisher_Subjects(t *testing.T) {
	p := NewPublisher(&fakeConn{}, "md")

	tests := []struct {
		msg  domain.Message
		want string
	}{
		{&domain.Trade{Symbol: "GME"}, "md.trade.GME"},
		{&domain.Trade{Symbol: "brk.a"}, "md.trade.BRK_A"},
		{&domain.Timestamp{}, "md.timestamp"},
		{&domain.ServerMessage{}, "md.server"},
		{&domain.None{Tag: "S"}, "md.other.S"},
		{&domain.None{Tag: ""}, "md.other._"},
	}
	for _, tt := range tests {
		if got := p.Subject(tt.msg); got != tt.want {
			t.Errorf("Subject(%v) = %q, want %q", tt.msg.Kind(), got, tt.want)
		}
	}
}

func TestPublisher_DefaultPrefix(t *testing.T) {
	p := NewPublisher(&fakeConn{}, "")
	if got := p.Subject(&domain.Timestamp{}); got != "iqfeed.timestamp" {
		t.Errorf("Subject = %q", got)
	}
}

func TestPublisher_Handle(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, "iqfeed")

	trade := &domain.Trade{Symbol: "GME", LastPrice: decimal.RequireFromString("190.00"), LastSize: 1}
	if err := p.Handle(context.Background(), trade); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if len(conn.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(conn.msgs))
	}
	msg := conn.msgs[0]
	if msg.subject != "iqfeed.trade.GME" {
		t.Errorf("subject = %q", msg.subject)
	}

	var env struct {
		Type string `json:"type"`
		Data struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"last_price"`
		} `json:"data"`
	}
	if err := json.Unmarshal(msg.data, &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != "trade" || env.Data.Symbol != "GME" || env.Data.LastPrice != "190" {
		t.Errorf("payload = %s", msg.data)
	}
}

func TestPublisher_HandleError(t *testing.T) {
	boom := errors.New("connection closed")
	p := NewPublisher(&fakeConn{err: boom}, "iqfeed")

	if err := p.Handle(context.Background(), &domain.Timestamp{UnixNano: 1}); !errors.Is(err, boom) {
		t.Errorf("Handle error = %v, want %v", err, boom)
	}
}

func TestPublisher_Close(t *testing.T) {
	conn := &fakeConn{}
	if err := NewPublisher(conn, "").Close(); err != nil {
		t.Fatal(err)
	}
	if !conn.flushed || !conn.closed {
		t.Errorf("Close did not flush and close: %+v", conn)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "iqfeed", "test")
	if !errors.Is(err, domain.ErrConnectionFailed) {
		t.Errorf("Connect error = %v, want ErrConnectionFailed", err)
	}
}
