// ABOUTME: Routes outbound bus messages to the channel they are addressed to.
// ABOUTME: Owns channel registration and the start/stop lifecycle of all channels.

package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrChannelAlreadyRegistered indicates a channel with the same name exists.
var ErrChannelAlreadyRegistered = errors.New("channel already registered")

// Channel is a frontend that feeds inbound messages and receives responses.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg OutboundMessage) error
}

// Dispatcher delivers each outbound message to exactly one channel, chosen by
// the message's Channel field.
type Dispatcher struct {
	bus    *MessageBus
	logger *slog.Logger

	mu       sync.RWMutex
	channels map[string]Channel
}

// NewDispatcher creates a Dispatcher reading from bus.
func NewDispatcher(bus *MessageBus, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		bus:      bus,
		logger:   logger,
		channels: make(map[string]Channel),
	}
}

// Register adds a channel. Returns ErrChannelAlreadyRegistered on a name clash.
func (d *Dispatcher) Register(ch Channel) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.channels[ch.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrChannelAlreadyRegistered, ch.Name())
	}
	d.channels[ch.Name()] = ch
	return nil
}

// Channel returns the registered channel with the given name.
func (d *Dispatcher) Channel(name string) (Channel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ch, ok := d.channels[name]
	return ch, ok
}

// Names returns the registered channel names in sorted order.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.channels))
	for name := range d.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StartAll starts every registered channel, stopping at the first failure.
func (d *Dispatcher) StartAll(ctx context.Context) error {
	for _, name := range d.Names() {
		ch, _ := d.Channel(name)
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("starting channel %s: %w", name, err)
		}
		d.logger.Info("channel started", "channel", name)
	}
	return nil
}

// StopAll stops every registered channel. All channels are attempted even if
// some fail; the failures are joined.
func (d *Dispatcher) StopAll(ctx context.Context) error {
	var errs []error
	for _, name := range d.Names() {
		ch, _ := d.Channel(name)
		if err := ch.Stop(ctx); err != nil {
			d.logger.Error("failed to stop channel", "channel", name, "error", err)
			errs = append(errs, fmt.Errorf("stopping channel %s: %w", name, err))
			continue
		}
		d.logger.Info("channel stopped", "channel", name)
	}
	return errors.Join(errs...)
}

// Run consumes outbound messages until ctx is done or the bus is closed.
// Returns nil on either of those; delivery errors are logged, not returned.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		msg, err := d.bus.ConsumeOutbound(ctx)
		if err != nil {
			if errors.Is(err, ErrBusClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		d.dispatch(ctx, msg)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, msg OutboundMessage) {
	ch, ok := d.Channel(msg.Channel)
	if !ok {
		d.logger.Warn("outbound message for unknown channel",
			"channel", msg.Channel,
			"chat_id", msg.ChatID,
		)
		return
	}
	if err := ch.Send(ctx, msg); err != nil {
		d.logger.Error("failed to deliver outbound message",
			"channel", msg.Channel,
			"chat_id", msg.ChatID,
			"error", err,
		)
	}
}
