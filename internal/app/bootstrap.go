package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"iqfeed_go/internal/domain"
	"iqfeed_go/internal/engine"
	"iqfeed_go/internal/infra"
	"iqfeed_go/internal/infra/iqfeed"
	"iqfeed_go/internal/infra/natsbus"
	"iqfeed_go/internal/infra/relay"
	"iqfeed_go/internal/queue"
)

// Bootstrap orchestrates the application startup and shutdown sequence
type Bootstrap struct {
	Config     *infra.Config
	Metrics    *infra.Metrics
	Dispatcher *engine.Dispatcher
	Hub        *relay.Hub
	Publisher  *natsbus.Publisher
	Workers    []*iqfeed.Worker

	decoder *iqfeed.Decoder
	results *queue.Unbounded[domain.Result]
	frames  *queue.Unbounded[[]byte]

	relaySrv  *http.Server
	relayAddr net.Addr

	dispatchDone chan error
	workersDone  chan struct{}
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{Metrics: infra.GlobalMetrics}
}

// Initialize loads the config file, installs the logger and builds every component.
func (b *Bootstrap) Initialize(path string) error {
	cfg, err := infra.LoadConfig(path)
	if err != nil {
		return err
	}

	slog.SetDefault(infra.NewLogger(cfg))
	slog.Info("Bootstrapping IQFeed client...",
		slog.String("app", cfg.App.Name), slog.String("mode", cfg.Feed.Mode), slog.Int("feeds", len(cfg.Feeds)))

	return b.Setup(cfg)
}

// Setup builds the pipeline from an already validated config. Nothing is connected yet.
func (b *Bootstrap) Setup(cfg *infra.Config) error {
	b.Config = cfg
	if b.Metrics == nil {
		b.Metrics = infra.GlobalMetrics
	}

	// 1. Downstream handlers
	handlers := []domain.MessageHandler{engine.LogHandler{Level: slog.LevelDebug}}

	if cfg.Relay.Listen != "" {
		b.Hub = relay.NewHub()
		handlers = append(handlers, b.Hub)
	}

	if cfg.NATS.URL != "" {
		pub, err := natsbus.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, cfg.App.Name)
		if err != nil {
			return err
		}
		b.Publisher = pub
		handlers = append(handlers, pub)
	}

	b.Dispatcher = engine.NewDispatcher(b.Metrics, handlers...)

	// 2. Queue between the readers and the dispatcher
	b.decoder = &iqfeed.Decoder{SkipUTF8Check: cfg.Feed.SkipUTF8Check, Now: time.Now}

	var sink iqfeed.FrameSink
	switch cfg.Feed.Mode {
	case infra.ModeRaw:
		b.frames = queue.NewUnbounded[[]byte]()
		sink = iqfeed.RawSink{Out: b.frames}
	default:
		b.results = queue.NewUnbounded[domain.Result]()
		sink = iqfeed.DecodingSink{Decoder: b.decoder, Out: b.results}
	}

	// 3. Feed workers
	opts := iqfeed.Options{
		Protocol:       cfg.Feed.Protocol,
		ReadBufferSize: cfg.Feed.ReadBuffer,
		DialTimeout:    time.Duration(cfg.Feed.DialTimeoutSec) * time.Second,
		Metrics:        b.Metrics,
	}
	b.Workers = b.Workers[:0]
	for _, f := range cfg.Feeds {
		b.Workers = append(b.Workers, iqfeed.NewWorker(f.Name, f.Address, f.Symbols, sink, opts))
	}

	slog.Info("Pipeline ready", slog.Int("handlers", len(handlers)), slog.Int("workers", len(b.Workers)))
	return nil
}

// Start runs the dispatcher, the relay listener and connects every feed.
// It fails only when no feed could be connected.
func (b *Bootstrap) Start(ctx context.Context) error {
	if b.Hub != nil {
		if err := b.startRelay(); err != nil {
			return err
		}
	}

	b.dispatchDone = make(chan error, 1)
	go func() {
		if b.frames != nil {
			b.dispatchDone <- b.Dispatcher.RunFrames(context.WithoutCancel(ctx), b.frames, b.decoder.Decode)
		} else {
			b.dispatchDone <- b.Dispatcher.Run(context.WithoutCancel(ctx), b.results)
		}
	}()

	var (
		connected []*iqfeed.Worker
		errs      []error
	)
	for _, w := range b.Workers {
		if err := w.Connect(ctx); err != nil {
			slog.Error("Failed to connect feed", slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		connected = append(connected, w)
	}
	if len(connected) == 0 {
		return fmt.Errorf("no feed connected: %w", errors.Join(errs...))
	}

	b.workersDone = make(chan struct{})
	go func() {
		for _, w := range connected {
			<-w.Done()
		}
		close(b.workersDone)
	}()
	return nil
}

func (b *Bootstrap) startRelay() error {
	ln, err := net.Listen("tcp", b.Config.Relay.Listen)
	if err != nil {
		return fmt.Errorf("relay listen: %w", err)
	}
	b.relayAddr = ln.Addr()

	mux := http.NewServeMux()
	mux.Handle("/ws", b.Hub)
	b.relaySrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := b.relaySrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Relay server failed", slog.Any("error", err))
		}
	}()
	slog.Info("Relay listening", slog.String("addr", b.relayAddr.String()))
	return nil
}

// RelayAddr returns the bound relay address, nil when the relay is disabled.
func (b *Bootstrap) RelayAddr() net.Addr {
	return b.relayAddr
}

// Done is closed once every connected feed has stopped reading.
func (b *Bootstrap) Done() <-chan struct{} {
	return b.workersDone
}

// Shutdown stops the feeds first, then lets the dispatcher drain what was already read.
func (b *Bootstrap) Shutdown(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, w := range b.Workers {
		wg.Add(1)
		go func(w *iqfeed.Worker) {
			defer wg.Done()
			w.Disconnect()
		}(w)
	}
	wg.Wait()

	if b.frames != nil {
		b.frames.Close()
	}
	if b.results != nil {
		b.results.Close()
	}

	var err error
	if b.dispatchDone != nil {
		select {
		case err = <-b.dispatchDone:
		case <-ctx.Done():
			err = fmt.Errorf("dispatcher drain: %w", ctx.Err())
		}
	}

	if b.Hub != nil {
		b.Hub.Stop()
	}
	if b.relaySrv != nil {
		if serr := b.relaySrv.Shutdown(ctx); serr != nil {
			err = errors.Join(err, serr)
		}
	}
	if b.Publisher != nil {
		if perr := b.Publisher.Close(); perr != nil {
			err = errors.Join(err, perr)
		}
	}

	snap := b.Metrics.Snapshot()
	slog.Info("Shutdown complete",
		slog.Uint64("bytes", snap.BytesRead),
		slog.Uint64("frames", snap.FramesRead),
		slog.Uint64("decoded", snap.Decoded()),
		slog.Uint64("decode_errors", snap.DecodeErrors))
	return err
}
