// Package gateway orchestrates the picohost-gateway server components.
//
// # Overview
//
// The gateway turns a synchronous HTTP call into an asynchronous exchange on
// the message bus. It owns the correlation table, the bus, the dispatcher with
// the web channel registered on it, the agent loop, and the HTTP server.
//
// # HTTP API
//
//   - POST /agent - Send a message and wait for the agent's reply
//   - GET /health - Liveness check
//   - GET /ready - Readiness check, includes the pending request count
//   - GET /metrics - Prometheus metrics (path configurable, optional)
//
// A request to /agent looks like:
//
//	{"message": "hello"}
//
// and is answered with one of:
//
//	200 {"ok": true, "output": "..."}
//	400 {"ok": false, "error": "Missing message"}
//	405 {"ok": false, "error": "Method not allowed"}
//	413 {"ok": false, "error": "Message too long"}
//	502 {"ok": false, "output": "", "error": "..."}
//	503 {"ok": false, "output": "", "error": "Gateway shutting down"}
//	504 {"ok": false, "error": "Agent request timed out"}
//
// # Request Flow
//
//  1. AgentHandler registers a correlation id and a one-shot handle
//  2. The message is published inbound with the id as its chat id
//  3. The agent loop produces a reply and publishes it outbound
//  4. The dispatcher hands the reply to the web channel
//  5. The web channel resolves the handle and the handler responds
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	err = gw.Run(ctx) // blocks until ctx is canceled
//
// Shutdown closes the listener, cancels every pending request through the web
// channel, waits for in-flight handlers, then stops the agent loop and the
// dispatcher and closes the bus.
package gateway
