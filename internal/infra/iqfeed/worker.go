package iqfeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"iqfeed_go/internal/domain"
)

// Worker runs one feed connection: dial, subscribe, then read until the
// connection ends. It does not reconnect; Done and Err report the end.
type Worker struct {
	name    string
	addr    string
	symbols []string
	opts    Options
	sink    FrameSink

	mu        sync.RWMutex
	client    *Client
	connected bool
	err       error

	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// NewWorker creates a feed worker for the given symbols
func NewWorker(name, addr string, symbols []string, sink FrameSink, opts Options) *Worker {
	return &Worker{
		name:    name,
		addr:    addr,
		symbols: symbols,
		opts:    opts,
		sink:    sink,
		done:    make(chan struct{}),
	}
}

// Connect dials the feed, subscribes every symbol and starts the read loop.
func (w *Worker) Connect(ctx context.Context) error {
	client, err := Dial(ctx, w.addr, w.opts)
	if err != nil {
		return fmt.Errorf("feed %s: %w", w.name, err)
	}

	for _, s := range w.symbols {
		if err := client.WatchTrades(s); err != nil {
			client.Close()
			return fmt.Errorf("feed %s: watch %s: %w", w.name, s, err)
		}
	}

	slog.InfoContext(ctx, "Feed connected",
		slog.String("feed", w.name), slog.String("addr", w.addr), slog.Int("symbols", len(w.symbols)))

	ctx, cancel := context.WithCancel(ctx)

	w.mu.Lock()
	w.client = client
	w.connected = true
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.readLoop(ctx, client)
	return nil
}

func (w *Worker) readLoop(ctx context.Context, client *Client) {
	defer w.wg.Done()
	defer close(w.done)

	err := client.Run(ctx, w.sink)

	w.mu.Lock()
	w.connected = false
	w.err = err
	w.mu.Unlock()

	switch {
	case ctx.Err() != nil:
		slog.Info("Feed stopped", slog.String("feed", w.name))
	case errors.Is(err, domain.ErrChannelClosed):
		slog.Warn("Feed stopped: downstream closed", slog.String("feed", w.name), slog.Any("error", err))
	default:
		slog.Error("Feed connection lost", slog.String("feed", w.name), slog.Any("error", err))
	}
}

// IsConnected reports whether the read loop is running
func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// Done is closed when the read loop has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Err returns the error that ended the read loop, or nil while it runs.
func (w *Worker) Err() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.err
}

// Disconnect unwatches every symbol while the connection is still up,
// then stops the read loop and waits for it to exit.
func (w *Worker) Disconnect() {
	w.mu.RLock()
	client, connected, cancel := w.client, w.connected, w.cancel
	w.mu.RUnlock()

	if client != nil && connected {
		for _, s := range w.symbols {
			if err := client.UnwatchTrades(s); err != nil {
				slog.Debug("Unwatch failed", slog.String("feed", w.name), slog.String("symbol", s), slog.Any("error", err))
				break
			}
		}
	}
	if cancel != nil {
		cancel()
	}
	if client != nil {
		client.Close()
	}
	w.wg.Wait()
}
