// ABOUTME: Package webchannel is the bus-side half of the HTTP agent endpoint.
// ABOUTME: Documentation for delivery and shutdown semantics.

// Package webchannel implements the "web" bus channel. The HTTP handler
// registers each request in a shared [correlation.Table] and publishes it with
// the correlation id as chat id. When the agent loop answers, the dispatcher
// calls [Channel.Send], which resolves that entry and wakes the handler.
//
// Responses that arrive after their request timed out are dropped. The agent
// side is never told.
//
// [Channel.Stop] runs after the HTTP listener has closed. It closes the
// table to new registrations and cancels whatever is still pending.
package webchannel
