// ABOUTME: Gateway orchestrator that wires the HTTP server, bus, web channel, and agent loop
// ABOUTME: Manages startup and the ordered shutdown that releases every waiting request

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/picohost-gateway/internal/agent"
	"github.com/2389/picohost-gateway/internal/bus"
	"github.com/2389/picohost-gateway/internal/config"
	"github.com/2389/picohost-gateway/internal/correlation"
	"github.com/2389/picohost-gateway/internal/metrics"
	"github.com/2389/picohost-gateway/internal/webchannel"
)

// Gateway orchestrates the picohost-gateway server components.
type Gateway struct {
	config     *config.Config
	table      *correlation.Table
	bus        *bus.MessageBus
	dispatcher *bus.Dispatcher
	webChannel *webchannel.Channel
	agentLoop  *agent.Loop
	metrics    *metrics.Metrics
	httpServer *http.Server
	logger     *slog.Logger

	// runCtx bounds the dispatcher and agent loop; cancelled late in Shutdown
	// so replies can still be delivered while HTTP drains.
	runCtx  context.Context
	stopRun context.CancelFunc
	workers errgroup.Group

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	provider, err := agent.NewProvider(agent.ProviderConfig{
		Name:         cfg.Agent.Provider,
		Model:        cfg.Agent.Model,
		APIKey:       cfg.Agent.APIKey,
		BaseURL:      cfg.Agent.BaseURL,
		SystemPrompt: cfg.Agent.SystemPrompt,
		MaxTokens:    cfg.Agent.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("creating agent provider: %w", err)
	}
	return newGateway(cfg, logger, provider)
}

// newGateway builds a Gateway around an explicit provider.
func newGateway(cfg *config.Config, logger *slog.Logger, provider agent.Provider) (*Gateway, error) {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	table := correlation.NewTable()
	messageBus := bus.New(bus.Config{
		InboundBuffer:  cfg.Bus.InboundBuffer,
		OutboundBuffer: cfg.Bus.OutboundBuffer,
	})

	dispatcher := bus.NewDispatcher(messageBus, logger.With("component", "dispatcher"))
	webChannel := webchannel.New(webchannel.Config{
		Table:   table,
		Metrics: m,
		Logger:  logger.With("component", "web-channel"),
	})
	if err := dispatcher.Register(webChannel); err != nil {
		return nil, fmt.Errorf("registering web channel: %w", err)
	}

	agentLoop := agent.NewLoop(agent.LoopConfig{
		Bus:      messageBus,
		Provider: provider,
		Logger:   logger.With("component", "agent-loop"),
		Workers:  cfg.Agent.Workers,
		Timeout:  cfg.Agent.Timeout,
	})

	runCtx, stopRun := context.WithCancel(context.Background())
	gw := &Gateway{
		config:     cfg,
		table:      table,
		bus:        messageBus,
		dispatcher: dispatcher,
		webChannel: webChannel,
		agentLoop:  agentLoop,
		metrics:    m,
		logger:     logger.With("component", "gateway"),
		runCtx:     runCtx,
		stopRun:    stopRun,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/ready", gw.handleReady)
	mux.Handle("/agent", NewAgentHandler(AgentHandlerConfig{
		Table:     table,
		Publisher: messageBus,
		Timeout:   cfg.Gateway.RequestTimeout,
		Metrics:   m,
		Logger:    logger.With("component", "agent-handler"),
	}))
	if m != nil {
		m.RegisterPending(table.Len)
		mux.Handle(cfg.Metrics.Path, m.Handler())
		logger.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the HTTP handler serving every gateway route.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Pending returns the number of requests waiting for an agent reply.
func (g *Gateway) Pending() int {
	return g.table.Len()
}

// Run listens on the configured address and serves until ctx is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if a server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return g.Serve(ctx, ln)
}

// Serve starts the channels, agent loop, dispatcher, and HTTP server on ln,
// then blocks until ctx is canceled or the HTTP server fails.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	if err := g.dispatcher.StartAll(ctx); err != nil {
		_ = ln.Close()
		return err
	}

	g.workers.Go(func() error { return g.dispatcher.Run(g.runCtx) })
	g.workers.Go(func() error { return g.agentLoop.Run(g.runCtx) })

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	serverErr := g.waitForShutdownSignal(ctx, errCh)
	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), g.config.Gateway.ShutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the gateway. The HTTP listener closes first so no new
// request arrives, then the web channel cancels every request still waiting,
// which lets the in-flight handlers return and HTTP shutdown finish. The agent
// loop and dispatcher stop last. Safe to call more than once.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.shutdownOnce.Do(func() {
		g.shutdownErr = g.shutdown(ctx)
	})
	return g.shutdownErr
}

func (g *Gateway) shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway", "pending", g.table.Len())

	httpDone := make(chan error, 1)
	go func() { httpDone <- g.httpServer.Shutdown(ctx) }()

	var errs []error
	errs = appendCloseError(errs, "channel stop", g.dispatcher.StopAll(ctx))
	errs = appendCloseError(errs, "HTTP shutdown", <-httpDone)

	g.stopRun()
	g.bus.Close()
	errs = appendCloseError(errs, "workers", g.workers.Wait())

	if n := g.table.Len(); n > 0 {
		g.logger.Error("requests still pending after shutdown", "pending", n)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}
