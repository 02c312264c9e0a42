// ABOUTME: Provider interface for turning one inbound message into a reply.
// ABOUTME: Includes the echo provider used for local development and tests.

package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownProvider indicates the configured provider name is not supported.
var ErrUnknownProvider = errors.New("unknown provider")

// Request is what a provider sees of an inbound message.
type Request struct {
	SessionKey string
	Channel    string
	SenderID   string
	Content    string
}

// Provider produces the reply text for a request.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f ProviderFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// EchoProvider replies with the request content, optionally prefixed.
type EchoProvider struct {
	Prefix string
}

// Complete implements Provider.
func (p EchoProvider) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.Prefix + req.Content, nil
}

// ProviderConfig selects and configures a provider by name.
type ProviderConfig struct {
	Name         string
	Model        string
	APIKey       string
	BaseURL      string
	SystemPrompt string
	MaxTokens    int64
}

// NewProvider builds the provider named by cfg.Name ("echo" or "anthropic").
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch strings.ToLower(cfg.Name) {
	case "", "echo":
		return EchoProvider{}, nil
	case "anthropic":
		return NewAnthropicProvider(AnthropicConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			Model:        cfg.Model,
			SystemPrompt: cfg.SystemPrompt,
			MaxTokens:    cfg.MaxTokens,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Name)
	}
}
