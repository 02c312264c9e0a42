// ABOUTME: HTTP handler for POST /agent that waits for the agent's reply on the bus.
// ABOUTME: Validates input, correlates the request, and maps every outcome to a status.

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/2389/picohost-gateway/internal/bus"
	"github.com/2389/picohost-gateway/internal/config"
	"github.com/2389/picohost-gateway/internal/correlation"
	"github.com/2389/picohost-gateway/internal/metrics"
	"github.com/2389/picohost-gateway/internal/webchannel"
)

// maxBodyBytes caps how much of a request body is read. The message length
// limit is enforced separately on the decoded, trimmed text.
const maxBodyBytes = 1 << 20

// Client-facing error messages.
const (
	errMethodNotAllowed = "Method not allowed"
	errMissingMessage   = "Missing message"
	errMessageTooLong   = "Message too long"
	errTimedOut         = "Agent request timed out"
	errShuttingDown     = "Gateway shutting down"
)

// AgentRequest is the JSON request body for POST /agent.
type AgentRequest struct {
	Message string `json:"message"`
}

// AgentResponse is the JSON response body for POST /agent.
type AgentResponse struct {
	OK     bool    `json:"ok"`
	Output *string `json:"output,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// AgentHandler serves POST /agent. Each accepted request holds exactly one
// correlation entry, which is gone again by the time ServeHTTP returns.
type AgentHandler struct {
	table     *correlation.Table
	publisher bus.Publisher
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// AgentHandlerConfig contains the dependencies of an AgentHandler.
type AgentHandlerConfig struct {
	Table     *correlation.Table
	Publisher bus.Publisher
	Timeout   time.Duration    // config.DefaultRequestTimeout when zero
	Metrics   *metrics.Metrics // optional
	Logger    *slog.Logger     // optional
}

// NewAgentHandler creates an AgentHandler.
func NewAgentHandler(cfg AgentHandlerConfig) *AgentHandler {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentHandler{
		table:     cfg.Table,
		publisher: cfg.Publisher,
		timeout:   timeout,
		metrics:   cfg.Metrics,
		logger:    logger,
	}
}

// ServeHTTP handles POST /agent.
//
// Responsibilities:
//  1. Validate method, body, and message - no correlation entry on failure
//  2. Register the request in the correlation table
//  3. Publish it to the bus under the request deadline
//  4. Wait for the web channel to resolve it, the deadline, or shutdown
//  5. Remove the entry on every non-success path and write the response
func (h *AgentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.fail(w, http.StatusMethodNotAllowed, metrics.OutcomeMethodNotAllowed, errMethodNotAllowed)
		return
	}

	message, status, outcome, errMsg := h.readMessage(w, r)
	if status != 0 {
		h.fail(w, status, outcome, errMsg)
		return
	}

	id, handle, err := h.table.Create()
	if err != nil {
		if errors.Is(err, correlation.ErrClosed) {
			h.fail(w, http.StatusServiceUnavailable, metrics.OutcomeShutdown, errShuttingDown)
			return
		}
		h.logger.Error("failed to register request", "error", err)
		h.failWithOutput(w, http.StatusBadGateway, metrics.OutcomeBadGateway, err.Error())
		return
	}

	start := time.Now()
	output, err := h.exchange(r.Context(), id, handle, message)
	h.metrics.ObserveDuration(time.Since(start))

	switch {
	case err == nil:
		h.logger.Info("agent request completed",
			"request_id", id,
			"duration", time.Since(start),
		)
		h.metrics.ObserveRequest(metrics.OutcomeOK)
		writeJSON(w, http.StatusOK, AgentResponse{OK: true, Output: &output})

	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("agent request timed out",
			"request_id", id,
			"timeout", h.timeout,
		)
		h.fail(w, http.StatusGatewayTimeout, metrics.OutcomeTimeout, errTimedOut)

	case errors.Is(err, correlation.ErrCancelled):
		h.logger.Warn("agent request cancelled by shutdown", "request_id", id)
		h.failWithOutput(w, http.StatusServiceUnavailable, metrics.OutcomeShutdown, errShuttingDown)

	default:
		h.logger.Warn("agent request failed",
			"request_id", id,
			"error", err,
		)
		h.failWithOutput(w, http.StatusBadGateway, metrics.OutcomeBadGateway, err.Error())
	}
}

// readMessage decodes and validates the request body. A non-zero status means
// the request must be rejected with that status, outcome and error text.
func (h *AgentHandler) readMessage(w http.ResponseWriter, r *http.Request) (message string, status int, outcome, errMsg string) {
	var req AgentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", http.StatusRequestEntityTooLarge, metrics.OutcomeTooLarge, errMessageTooLong
		}
		return "", http.StatusBadRequest, metrics.OutcomeBadRequest, err.Error()
	}

	message = strings.TrimSpace(req.Message)
	if message == "" {
		return "", http.StatusBadRequest, metrics.OutcomeBadRequest, errMissingMessage
	}
	if utf8.RuneCountInString(message) > config.MaxMessageLength {
		return "", http.StatusRequestEntityTooLarge, metrics.OutcomeTooLarge, errMessageTooLong
	}
	return message, 0, "", ""
}

// exchange publishes the request and waits for its reply, both bounded by the
// request timeout. On failure the entry is removed here; if something else
// removed it first (the web channel resolving it, or shutdown), that outcome
// is returned instead.
func (h *AgentHandler) exchange(parent context.Context, id string, handle *correlation.Handle, message string) (string, error) {
	ctx, cancel := context.WithTimeout(parent, h.timeout)
	defer cancel()

	output, err := h.publishAndWait(ctx, id, handle, message)
	if err == nil {
		return output, nil
	}

	if _, removed := h.table.Remove(id); removed {
		handle.Fail(err)
		return "", err
	}

	// Whoever removed the entry settles the handle.
	<-handle.Done()
	return handle.Result()
}

func (h *AgentHandler) publishAndWait(ctx context.Context, id string, handle *correlation.Handle, message string) (string, error) {
	err := h.publisher.PublishInbound(ctx, bus.InboundMessage{
		Channel:  webchannel.Name,
		SenderID: webchannel.Name,
		ChatID:   id,
		Content:  message,
	})
	if err != nil {
		return "", fmt.Errorf("publishing request: %w", err)
	}

	h.logger.Debug("→ published to bus", "request_id", id, "chars", utf8.RuneCountInString(message))
	return handle.Wait(ctx)
}

func (h *AgentHandler) fail(w http.ResponseWriter, status int, outcome, message string) {
	h.metrics.ObserveRequest(outcome)
	writeJSON(w, status, AgentResponse{OK: false, Error: message})
}

// failWithOutput is fail with an explicit empty "output" field, used once a
// request has reached the agent side.
func (h *AgentHandler) failWithOutput(w http.ResponseWriter, status int, outcome, message string) {
	h.metrics.ObserveRequest(outcome)
	empty := ""
	writeJSON(w, status, AgentResponse{OK: false, Error: message, Output: &empty})
}
