// ABOUTME: Web channel resolves pending HTTP requests when the agent replies.
// ABOUTME: Its Stop cancels every request still waiting so no handler hangs.

package webchannel

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/2389/picohost-gateway/internal/bus"
	"github.com/2389/picohost-gateway/internal/correlation"
	"github.com/2389/picohost-gateway/internal/metrics"
)

// Name is the channel tag carried by web requests on the bus.
const Name = "web"

// Channel is the bus-side adapter for HTTP requests waiting in a correlation
// table.
type Channel struct {
	table   *correlation.Table
	metrics *metrics.Metrics
	logger  *slog.Logger
	running atomic.Bool
}

// Config contains the dependencies of a Channel.
type Config struct {
	Table   *correlation.Table
	Metrics *metrics.Metrics // optional
	Logger  *slog.Logger     // optional
}

// New creates a web channel over cfg.Table.
func New(cfg Config) *Channel {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		table:   cfg.Table,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// Name implements bus.Channel.
func (c *Channel) Name() string { return Name }

// Start readies the channel to accept deliveries.
func (c *Channel) Start(context.Context) error {
	c.running.Store(true)
	return nil
}

// Running reports whether the channel has been started and not yet stopped.
func (c *Channel) Running() bool {
	return c.running.Load()
}

// Stop closes the table to new registrations and cancels every pending
// request. It never fails, even when nothing is pending.
func (c *Channel) Stop(context.Context) error {
	c.running.Store(false)
	c.table.Close()

	handles := c.table.DrainAll()
	cancelled := 0
	for _, h := range handles {
		if h.Cancel() {
			cancelled++
		}
	}
	c.logger.Info("web channel stopped", "pending_cancelled", cancelled)
	return nil
}

// Send implements bus.Channel. Responses for unknown or expired requests are
// dropped; that is not an error.
func (c *Channel) Send(_ context.Context, msg bus.OutboundMessage) error {
	c.Deliver(msg)
	return nil
}

// Deliver resolves the pending request keyed by msg.ChatID with msg.Content.
// Reports whether a waiting request was found.
func (c *Channel) Deliver(msg bus.OutboundMessage) bool {
	resolved := c.table.Resolve(msg.ChatID, msg.Content)
	c.metrics.ObserveDelivery(resolved)
	if !resolved {
		c.logger.Debug("dropping response for unknown or expired request",
			"chat_id", msg.ChatID,
		)
		return false
	}
	c.logger.Debug("← agent responded", "chat_id", msg.ChatID, "bytes", len(msg.Content))
	return true
}
