// ABOUTME: Tests for the agent loop and provider selection.
// ABOUTME: Uses the real in-process bus with echo and stub providers.

package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/picohost-gateway/internal/bus"
)

// startLoop runs a loop in the background and returns a stop function that
// cancels it and waits for Run to return.
func startLoop(t *testing.T, b *bus.MessageBus, p Provider, workers int) (*Loop, func()) {
	t.Helper()
	loop := NewLoop(LoopConfig{
		Bus:      b,
		Provider: p,
		Logger:   slog.Default(),
		Workers:  workers,
		Timeout:  time.Second,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	require.Eventually(t, loop.Running, time.Second, 5*time.Millisecond)

	return loop, func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("loop did not stop")
		}
	}
}

func consumeOutbound(t *testing.T, b *bus.MessageBus) bus.OutboundMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := b.ConsumeOutbound(ctx)
	require.NoError(t, err)
	return msg
}

func TestLoopRepliesOnSameChannelAndChat(t *testing.T) {
	b := bus.New(bus.Config{})
	_, stop := startLoop(t, b, EchoProvider{Prefix: "echo: "}, 1)
	defer stop()

	require.NoError(t, b.PublishInbound(context.Background(), bus.InboundMessage{
		Channel: "web", SenderID: "web", ChatID: "req-1", Content: "hi",
	}))

	out := consumeOutbound(t, b)
	assert.Equal(t, bus.OutboundMessage{Channel: "web", ChatID: "req-1", Content: "echo: hi"}, out)
}

func TestLoopReportsProviderErrorsAsReply(t *testing.T) {
	b := bus.New(bus.Config{})
	failing := ProviderFunc(func(context.Context, Request) (string, error) {
		return "", errors.New("model unavailable")
	})
	_, stop := startLoop(t, b, failing, 1)
	defer stop()

	require.NoError(t, b.PublishInbound(context.Background(), bus.InboundMessage{Channel: "web", ChatID: "req-2", Content: "hi"}))

	out := consumeOutbound(t, b)
	assert.Equal(t, "req-2", out.ChatID)
	assert.Equal(t, "Sorry, I encountered an error: model unavailable", out.Content)
}

func TestLoopPassesSessionKey(t *testing.T) {
	b := bus.New(bus.Config{})
	var gotKey atomic.Value
	p := ProviderFunc(func(_ context.Context, req Request) (string, error) {
		gotKey.Store(req.SessionKey)
		return "ok", nil
	})
	_, stop := startLoop(t, b, p, 1)
	defer stop()

	require.NoError(t, b.PublishInbound(context.Background(), bus.InboundMessage{Channel: "web", ChatID: "abc"}))
	consumeOutbound(t, b)
	assert.Equal(t, "web:abc", gotKey.Load())
}

func TestLoopProcessesConcurrently(t *testing.T) {
	b := bus.New(bus.Config{})
	release := make(chan struct{})
	var inFlight, peak atomic.Int32
	p := ProviderFunc(func(ctx context.Context, req Request) (string, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		defer inFlight.Add(-1)
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return req.Content, nil
	})
	_, stop := startLoop(t, b, p, 3)
	defer stop()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, b.PublishInbound(context.Background(), bus.InboundMessage{Channel: "web", ChatID: id, Content: id}))
	}
	require.Eventually(t, func() bool { return peak.Load() == 3 }, time.Second, 5*time.Millisecond)
	close(release)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		out := consumeOutbound(t, b)
		assert.Equal(t, out.ChatID, out.Content)
		seen[out.ChatID] = true
	}
	assert.Len(t, seen, 3)
}

func TestLoopStopsOnBusClose(t *testing.T) {
	b := bus.New(bus.Config{})
	loop := NewLoop(LoopConfig{Bus: b, Provider: EchoProvider{}})
	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	require.Eventually(t, loop.Running, time.Second, 5*time.Millisecond)
	b.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.False(t, loop.Running())
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on bus close")
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(ProviderConfig{})
	require.NoError(t, err)
	assert.IsType(t, EchoProvider{}, p)

	p, err = NewProvider(ProviderConfig{Name: "Anthropic", APIKey: "test"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicProvider{}, p)

	_, err = NewProvider(ProviderConfig{Name: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
