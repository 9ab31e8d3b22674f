package iqfeed

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"iqfeed_go/internal/domain"
	"iqfeed_go/internal/infra"
)

const (
	// DefaultProtocol is negotiated right after connecting.
	DefaultProtocol    = "6.2"
	defaultDialTimeout = 10 * time.Second
)

// Options configures a Client
type Options struct {
	Protocol       string
	ReadBufferSize int
	DialTimeout    time.Duration
	Metrics        *infra.Metrics
}

func (o Options) withDefaults() Options {
	if o.Protocol == "" {
		o.Protocol = DefaultProtocol
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = DefaultReadBufferSize
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = defaultDialTimeout
	}
	if o.Metrics == nil {
		o.Metrics = infra.GlobalMetrics
	}
	return o
}

// Client owns one feed connection: outbound commands and the frame reader.
// Commands may be written from any goroutine while Run is reading.
type Client struct {
	conn    net.Conn
	reader  *Reader
	opts    Options
	writeMu sync.Mutex
	once    sync.Once
}

// Dial connects to addr and sets the protocol version.
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	opts = opts.withDefaults()

	dialer := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, domain.NewNetworkError("connect", fmt.Errorf("%w: %w", domain.ErrConnectionFailed, err))
	}

	c := NewClient(conn, opts)
	if err := c.SetProtocol(opts.Protocol); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// NewClient wraps an established connection. No handshake is sent.
func NewClient(conn net.Conn, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		conn:   conn,
		reader: NewReader(conn, opts.ReadBufferSize, opts.Metrics),
		opts:   opts,
	}
}

// SetProtocol sends the protocol negotiation command.
func (c *Client) SetProtocol(version string) error {
	return c.write("S,SET PROTOCOL," + version + "\n")
}

// WatchTrades subscribes to trade updates for symbol.
// Errors from the feed about the symbol arrive later as records.
func (c *Client) WatchTrades(symbol string) error {
	return c.symbolCommand('w', symbol)
}

// UnwatchTrades removes a subscription made by WatchTrades.
func (c *Client) UnwatchTrades(symbol string) error {
	return c.symbolCommand('r', symbol)
}

func (c *Client) symbolCommand(cmd byte, symbol string) error {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return domain.ErrInvalidSymbol
	}
	return c.write(string(cmd) + strings.ToUpper(symbol) + "\n")
}

func (c *Client) write(command string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.conn.Write([]byte(command)); err != nil {
		return domain.NewFatalNetworkError("write", err)
	}
	return nil
}

// Run reads frames into sink until the connection fails or the sink is closed.
// Cancelling ctx closes the connection, which ends Run with a read error.
func (c *Client) Run(ctx context.Context, sink FrameSink) error {
	c.opts.Metrics.IncrementConnections()
	defer c.opts.Metrics.DecrementConnections()

	stop := context.AfterFunc(ctx, func() {
		c.Close()
	})
	defer stop()

	err := c.reader.Run(sink)
	slog.DebugContext(ctx, "Feed reader stopped",
		slog.String("remote", c.RemoteAddr()), slog.Any("error", err))
	return err
}

// RemoteAddr returns the peer address
func (c *Client) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Close closes the connection. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		err = c.conn.Close()
	})
	return err
}
