package factory

import (
	"fmt"

	"chatedge-be/pkg/llm"
	"chatedge-be/pkg/llm/ollama"
	"chatedge-be/pkg/llm/openaicompat"
)

// NewLLMProvider picks a backend by name. baseURL may be empty to use the
// backend's public endpoint.
func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "groq":
		if baseURL == "" {
			baseURL = openaicompat.GroqBaseURL
		}
		if apiKey == "" {
			return nil, fmt.Errorf("groq provider requires an API key")
		}
		return openaicompat.NewProvider(apiKey, baseURL, modelName), nil
	case "openai":
		return openaicompat.NewProvider(apiKey, baseURL, modelName), nil
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName, true), nil
	case "ollama-buffered":
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(baseURL, modelName, false), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
