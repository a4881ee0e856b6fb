package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func Apply(opts ...Option) Options {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// TokenHandler receives chunks in arrival order. Returning an error aborts
// the call.
type TokenHandler func(chunk string) error

// LLMProvider defines the contract for any completion backend.
//
// Stream is the only entry point. Streaming backends invoke onToken once per
// chunk as it arrives; buffered backends invoke it once with the whole reply.
// Either way the accumulated text is returned, and onToken may be nil.
type LLMProvider interface {
	SupportsStreaming() bool
	Stream(ctx context.Context, history []Message, onToken TokenHandler, options ...Option) (string, error)
}

// Chat is the buffered path: collect every chunk, deliver once.
func Chat(ctx context.Context, p LLMProvider, history []Message, options ...Option) (string, error) {
	return p.Stream(ctx, history, nil, options...)
}
