// ABOUTME: In-process message bus with buffered inbound and outbound queues.
// ABOUTME: Publishing blocks on a full buffer until the caller's context ends.

package bus

import (
	"context"
	"errors"
	"sync"
)

// ErrBusClosed indicates the bus has been closed.
var ErrBusClosed = errors.New("message bus closed")

// DefaultBufferSize is used when a non-positive buffer size is configured.
const DefaultBufferSize = 64

// Publisher accepts inbound messages for the agent side.
type Publisher interface {
	PublishInbound(ctx context.Context, msg InboundMessage) error
}

// MessageBus decouples channels from the agent loop.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// Config sizes the bus queues.
type Config struct {
	InboundBuffer  int
	OutboundBuffer int
}

// New creates a MessageBus.
func New(cfg Config) *MessageBus {
	in := cfg.InboundBuffer
	if in <= 0 {
		in = DefaultBufferSize
	}
	out := cfg.OutboundBuffer
	if out <= 0 {
		out = DefaultBufferSize
	}
	return &MessageBus{
		inbound:  make(chan InboundMessage, in),
		outbound: make(chan OutboundMessage, out),
		done:     make(chan struct{}),
	}
}

// PublishInbound queues a message for the agent side.
func (b *MessageBus) PublishInbound(ctx context.Context, msg InboundMessage) error {
	return publish(ctx, b, b.inbound, msg)
}

// PublishOutbound queues a response for delivery to its channel.
func (b *MessageBus) PublishOutbound(ctx context.Context, msg OutboundMessage) error {
	return publish(ctx, b, b.outbound, msg)
}

// ConsumeInbound blocks until an inbound message is available, ctx is done,
// or the bus is closed.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, error) {
	return consume(ctx, b, b.inbound)
}

// ConsumeOutbound blocks until an outbound message is available, ctx is done,
// or the bus is closed.
func (b *MessageBus) ConsumeOutbound(ctx context.Context) (OutboundMessage, error) {
	return consume(ctx, b, b.outbound)
}

// InboundSize returns the number of queued inbound messages.
func (b *MessageBus) InboundSize() int { return len(b.inbound) }

// OutboundSize returns the number of queued outbound messages.
func (b *MessageBus) OutboundSize() int { return len(b.outbound) }

// Close wakes every blocked publisher and consumer. Queued messages are
// dropped. Safe to call multiple times.
func (b *MessageBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.done)
	}
}

func publish[T any](ctx context.Context, b *MessageBus, ch chan T, msg T) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrBusClosed
	}

	select {
	case ch <- msg:
		return nil
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func consume[T any](ctx context.Context, b *MessageBus, ch chan T) (T, error) {
	var zero T
	select {
	case msg := <-ch:
		return msg, nil
	case <-b.done:
		return zero, ErrBusClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
