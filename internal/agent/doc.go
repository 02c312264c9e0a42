// ABOUTME: Package agent is a minimal agent runtime behind the message bus.
// ABOUTME: Documentation for Loop and the Provider implementations.

// Package agent consumes inbound bus messages, asks a [Provider] for a reply
// and publishes the reply as an outbound message addressed to the same
// channel and chat id.
//
// Two providers ship with the gateway:
//
//   - [EchoProvider] repeats the message back. Useful for local runs and tests.
//   - [AnthropicProvider] calls the Anthropic Messages API.
//
// A provider failure still produces a reply, so the waiting HTTP request gets
// an answer instead of timing out.
package agent
