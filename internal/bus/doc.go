// ABOUTME: Package bus connects channels to the agent loop.
// ABOUTME: Documentation for MessageBus and Dispatcher.

// Package bus provides the in-process message bus between frontends
// (channels) and the agent loop.
//
// Channels publish [InboundMessage] values with [MessageBus.PublishInbound].
// The agent loop consumes them, produces an [OutboundMessage] carrying the same
// channel name and chat id, and publishes it with [MessageBus.PublishOutbound].
// A [Dispatcher] reads outbound messages and hands each one to the [Channel]
// registered under its name.
//
// The bus makes no ordering promise between unrelated conversations and holds
// nothing across restarts.
package bus
