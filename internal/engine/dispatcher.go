package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"iqfeed_go/internal/domain"
	"iqfeed_go/internal/infra"
	"iqfeed_go/internal/queue"
)

// DecodeFunc decodes one raw frame. *iqfeed.Decoder's Decode method satisfies it.
type DecodeFunc func(frame []byte) (domain.Message, error)

// Dispatcher is the single-threaded consumer of feed output.
// Messages reach every handler in wire order; decode failures are logged, counted and skipped.
type Dispatcher struct {
	handlers []domain.MessageHandler
	metrics  *infra.Metrics

	// DumpFile receives the dispatcher state if a handler panics.
	DumpFile string

	seq uint64 // frames seen, decoded or not

	mu       sync.RWMutex // guards the fields below for external reads
	trades   map[string]domain.Trade
	lastSync int64
}

// NewDispatcher creates a dispatcher. Nil metrics selects infra.GlobalMetrics.
func NewDispatcher(metrics *infra.Metrics, handlers ...domain.MessageHandler) *Dispatcher {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &Dispatcher{
		handlers: handlers,
		metrics:  metrics,
		DumpFile: "dispatcher_dump.json",
		trades:   make(map[string]domain.Trade),
	}
}

// Run consumes decoded results until the queue is closed and drained or ctx is done.
// Both are a normal stop and return nil.
func (d *Dispatcher) Run(ctx context.Context, in *queue.Unbounded[domain.Result]) error {
	slog.Info("Dispatcher started", slog.String("mode", "decoded"), slog.Int("handlers", len(d.handlers)))
	defer d.recoverPanic()

	for {
		res, err := in.Recv(ctx)
		if err != nil {
			return d.stopped(ctx, err)
		}
		d.Dispatch(ctx, res)
	}
}

// RunFrames consumes raw frames and decodes them on the dispatcher goroutine.
func (d *Dispatcher) RunFrames(ctx context.Context, in *queue.Unbounded[[]byte], decode DecodeFunc) error {
	slog.Info("Dispatcher started", slog.String("mode", "raw"), slog.Int("handlers", len(d.handlers)))
	defer d.recoverPanic()

	for {
		frame, err := in.Recv(ctx)
		if err != nil {
			return d.stopped(ctx, err)
		}
		msg, err := decode(frame)
		d.Dispatch(ctx, domain.Result{Message: msg, Frame: frame, Err: err})
	}
}

func (d *Dispatcher) stopped(ctx context.Context, err error) error {
	if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
		slog.Info("Dispatcher stopping...", slog.Uint64("frames", d.seq))
		return nil
	}
	return err
}

// Dispatch processes one result. It must only be called from one goroutine at a time.
func (d *Dispatcher) Dispatch(ctx context.Context, res domain.Result) {
	d.seq++

	if res.Err != nil {
		d.metrics.RecordDecodeError()
		slog.Warn("Dropping undecodable frame",
			slog.Uint64("seq", d.seq),
			slog.String("frame", string(res.Frame)),
			slog.Any("error", res.Err))
		return
	}
	if res.Message == nil {
		return
	}

	d.metrics.RecordMessage(res.Message.Kind())
	d.track(res.Message)

	for _, h := range d.handlers {
		if err := h.Handle(ctx, res.Message); err != nil {
			d.metrics.RecordError()
			slog.Warn("Handler failed",
				slog.String("handler", h.Name()),
				slog.String("kind", res.Message.Kind().String()),
				slog.Any("error", err))
		}
	}
}

func (d *Dispatcher) track(msg domain.Message) {
	switch m := msg.(type) {
	case *domain.Trade:
		d.mu.Lock()
		d.trades[m.Symbol] = *m
		d.mu.Unlock()
	case *domain.Timestamp:
		d.mu.Lock()
		d.lastSync = m.UnixNano
		d.mu.Unlock()
	}
}

// LastTrade returns a copy of the most recent trade seen for symbol.
func (d *Dispatcher) LastTrade(symbol string) (domain.Trade, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.trades[symbol]
	return t, ok
}

// LastSync returns the most recent feed timestamp in UTC nanoseconds, 0 if none arrived yet.
func (d *Dispatcher) LastSync() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastSync
}

func (d *Dispatcher) recoverPanic() {
	if r := recover(); r != nil {
		slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
		d.DumpState(d.DumpFile)
		panic(fmt.Sprintf("HALTED: %v", r))
	}
}

// DumpState writes the dispatcher state to a file (for post-mortem).
func (d *Dispatcher) DumpState(filename string) {
	slog.Info("Dumping dispatcher state...", slog.String("file", filename))

	d.mu.RLock()
	data := struct {
		Frames   uint64                  `json:"frames"`
		LastSync int64                   `json:"last_sync_unix_nano"`
		Trades   map[string]domain.Trade `json:"trades"`
	}{
		Frames:   d.seq,
		LastSync: d.lastSync,
		Trades:   d.trades,
	}
	b, err := json.MarshalIndent(data, "", "  ")
	d.mu.RUnlock()
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
