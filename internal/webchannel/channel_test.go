// ABOUTME: Tests for the web channel delivery and shutdown paths.
// ABOUTME: Covers resolution, stale deliveries, and cancellation at stop.

package webchannel

import (
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/picohost-gateway/internal/bus"
	"github.com/2389/picohost-gateway/internal/correlation"
	"github.com/2389/picohost-gateway/internal/metrics"
)

func newTestChannel(t *testing.T) (*Channel, *correlation.Table) {
	t.Helper()
	table := correlation.NewTable()
	ch := New(Config{Table: table, Logger: slog.Default()})
	require.NoError(t, ch.Start(context.Background()))
	return ch, table
}

func TestChannelName(t *testing.T) {
	ch, _ := newTestChannel(t)
	assert.Equal(t, "web", ch.Name())

	var _ bus.Channel = ch
}

func TestChannelDeliver(t *testing.T) {
	t.Run("resolves the matching request", func(t *testing.T) {
		ch, table := newTestChannel(t)
		id, h, err := table.Create()
		require.NoError(t, err)

		err = ch.Send(context.Background(), bus.OutboundMessage{Channel: Name, ChatID: id, Content: "hello"})
		require.NoError(t, err)

		text, err := h.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "hello", text)
		assert.Equal(t, 0, table.Len())
	})

	t.Run("empty content fulfills with empty text", func(t *testing.T) {
		ch, table := newTestChannel(t)
		id, h, _ := table.Create()

		assert.True(t, ch.Deliver(bus.OutboundMessage{ChatID: id}))
		text, err := h.Result()
		require.NoError(t, err)
		assert.Equal(t, "", text)
	})

	t.Run("stale delivery is a silent no-op", func(t *testing.T) {
		ch, table := newTestChannel(t)
		_, h, _ := table.Create()

		err := ch.Send(context.Background(), bus.OutboundMessage{ChatID: "unknown", Content: "x"})
		assert.NoError(t, err)
		assert.Equal(t, 1, table.Len())
		assert.Equal(t, correlation.StatePending, h.State())
	})

	t.Run("duplicate delivery does not overwrite", func(t *testing.T) {
		ch, table := newTestChannel(t)
		id, h, _ := table.Create()

		assert.True(t, ch.Deliver(bus.OutboundMessage{ChatID: id, Content: "first"}))
		assert.False(t, ch.Deliver(bus.OutboundMessage{ChatID: id, Content: "second"}))

		text, _ := h.Result()
		assert.Equal(t, "first", text)
	})

	t.Run("records delivery metrics", func(t *testing.T) {
		table := correlation.NewTable()
		m := metrics.New()
		ch := New(Config{Table: table, Metrics: m})
		id, _, _ := table.Create()

		ch.Deliver(bus.OutboundMessage{ChatID: id})
		ch.Deliver(bus.OutboundMessage{ChatID: id})

		count, err := testutil.GatherAndCount(m.Registry(), "picohost_gateway_deliveries_total")
		require.NoError(t, err)
		assert.Equal(t, 2, count, "one series per result label")
	})
}

func TestChannelStop(t *testing.T) {
	t.Run("cancels every pending request", func(t *testing.T) {
		ch, table := newTestChannel(t)
		var handles []*correlation.Handle
		for i := 0; i < 3; i++ {
			_, h, _ := table.Create()
			handles = append(handles, h)
		}

		require.NoError(t, ch.Stop(context.Background()))

		assert.False(t, ch.Running())
		assert.Equal(t, 0, table.Len())
		for _, h := range handles {
			_, err := h.Wait(context.Background())
			assert.ErrorIs(t, err, correlation.ErrCancelled)
		}
	})

	t.Run("refuses new registrations afterwards", func(t *testing.T) {
		ch, table := newTestChannel(t)
		require.NoError(t, ch.Stop(context.Background()))

		_, _, err := table.Create()
		assert.ErrorIs(t, err, correlation.ErrClosed)
	})

	t.Run("succeeds with nothing pending and twice in a row", func(t *testing.T) {
		ch, _ := newTestChannel(t)
		assert.NoError(t, ch.Stop(context.Background()))
		assert.NoError(t, ch.Stop(context.Background()))
	})

	t.Run("late delivery after stop is a no-op", func(t *testing.T) {
		ch, table := newTestChannel(t)
		id, h, _ := table.Create()
		require.NoError(t, ch.Stop(context.Background()))

		assert.False(t, ch.Deliver(bus.OutboundMessage{ChatID: id, Content: "late"}))
		assert.Equal(t, correlation.StateCancelled, h.State())
	})
}
