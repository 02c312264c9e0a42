// ABOUTME: Agent loop that consumes inbound bus messages and publishes replies.
// ABOUTME: Processes a bounded number of messages concurrently.

package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/picohost-gateway/internal/bus"
)

// Defaults for the loop.
const (
	DefaultWorkers = 4
	DefaultTimeout = 110 * time.Second
)

// errorReplyPrefix starts the reply sent back when the provider fails.
const errorReplyPrefix = "Sorry, I encountered an error: "

// Bus is the part of the message bus the loop needs.
type Bus interface {
	ConsumeInbound(ctx context.Context) (bus.InboundMessage, error)
	PublishOutbound(ctx context.Context, msg bus.OutboundMessage) error
}

// LoopConfig contains configuration options for the Loop.
type LoopConfig struct {
	Bus      Bus
	Provider Provider
	Logger   *slog.Logger
	Workers  int           // concurrent messages; DefaultWorkers when zero
	Timeout  time.Duration // per message; DefaultTimeout when zero
}

// Loop turns inbound messages into outbound replies.
type Loop struct {
	bus      Bus
	provider Provider
	logger   *slog.Logger
	workers  int
	timeout  time.Duration
	running  atomic.Bool
}

// NewLoop creates a Loop with the given configuration.
func NewLoop(cfg LoopConfig) *Loop {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Loop{
		bus:      cfg.Bus,
		provider: cfg.Provider,
		logger:   logger,
		workers:  workers,
		timeout:  timeout,
	}
}

// Running reports whether Run is consuming messages.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Run consumes messages until ctx is done or the bus is closed, then waits
// for in-flight messages to finish. Returns nil on either kind of shutdown.
func (l *Loop) Run(ctx context.Context) error {
	l.running.Store(true)
	defer l.running.Store(false)

	l.logger.Info("agent loop started", "workers", l.workers)

	var g errgroup.Group
	g.SetLimit(l.workers)

	var runErr error
	for {
		msg, err := l.bus.ConsumeInbound(ctx)
		if err != nil {
			if !errors.Is(err, bus.ErrBusClosed) && ctx.Err() == nil {
				runErr = err
			}
			break
		}
		g.Go(func() error {
			l.process(ctx, msg)
			return nil
		})
	}

	_ = g.Wait()
	l.logger.Info("agent loop stopped")
	return runErr
}

// process handles one message. Failures are reported to the sender as a reply
// rather than returned, so one bad message never stops the loop.
func (l *Loop) process(ctx context.Context, msg bus.InboundMessage) {
	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	reply, err := l.provider.Complete(reqCtx, Request{
		SessionKey: msg.SessionKey(),
		Channel:    msg.Channel,
		SenderID:   msg.SenderID,
		Content:    msg.Content,
	})
	if err != nil {
		l.logger.Warn("provider failed",
			"channel", msg.Channel,
			"chat_id", msg.ChatID,
			"error", err,
		)
		reply = errorReplyPrefix + err.Error()
	}

	out := bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: reply,
	}
	if err := l.bus.PublishOutbound(ctx, out); err != nil {
		l.logger.Warn("failed to publish reply",
			"channel", msg.Channel,
			"chat_id", msg.ChatID,
			"error", err,
		)
		return
	}

	l.logger.Debug("processed message",
		"channel", msg.Channel,
		"chat_id", msg.ChatID,
		"duration", time.Since(start),
	)
}
