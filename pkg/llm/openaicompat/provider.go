// Package openaicompat talks to any OpenAI-compatible chat completion API
// (Groq, OpenAI, vLLM, ...).
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"chatedge-be/pkg/llm"

	openai "github.com/sashabaranov/go-openai"
)

const GroqBaseURL = "https://api.groq.com/openai/v1"

type Provider struct {
	client *openai.Client
	model  string
}

var _ llm.LLMProvider = &Provider{}

// NewProvider uses the official OpenAI endpoint when baseURL is empty.
func NewProvider(apiKey, baseURL, model string) *Provider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Provider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (p *Provider) SupportsStreaming() bool {
	return true
}

func (p *Provider) buildRequest(history []llm.Message, options llm.Options) openai.ChatCompletionRequest {
	model := p.model
	if options.Model != "" {
		model = options.Model
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, msg := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
		Stream:      true,
	}
}

func (p *Provider) Stream(ctx context.Context, history []llm.Message, onToken llm.TokenHandler, opts ...llm.Option) (string, error) {
	req := p.buildRequest(history, llm.Apply(opts...))

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("open completion stream: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return full.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("receive completion chunk: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		chunk := resp.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		full.WriteString(chunk)
		if onToken != nil {
			if err := onToken(chunk); err != nil {
				return "", err
			}
		}
	}
}
