// internal/llm/interface.go
package llm

import (
	"context"
	"errors"
	"fmt"
)

var ErrUnknownProvider = errors.New("unknown llm provider")

// CompletionRequest is the normalised chat request.
type CompletionRequest struct {
	Prompt       string                 `json:"prompt"`
	SystemPrompt string                 `json:"system_prompt,omitempty"`
	MaxTokens    int                    `json:"max_tokens,omitempty"`
	Temperature  float32                `json:"temperature,omitempty"`
	Model        string                 `json:"model,omitempty"`
	ExtraParams  map[string]interface{} `json:"extra_params,omitempty"`
}

// CompletionResponse is the normalised chat response.
type CompletionResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	TokensUsed   int    `json:"tokens_used,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
}

// Tool describes one function exposed to the model.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ToolCall is one function invocation requested by the model. Arguments is
// the raw JSON string; callers parse it defensively.
type ToolCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCompletionResponse carries tool calls plus any plain text the model
// produced alongside them.
type ToolCompletionResponse struct {
	ToolCalls []ToolCall `json:"tool_calls"`
	Text      string     `json:"text,omitempty"`
}

// ImageRequest is the normalised image synthesis request.
type ImageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size"`
	Quality string `json:"quality,omitempty"`
	N       int    `json:"n,omitempty"`
}

// ImageResponse carries the synthesised image URLs.
type ImageResponse struct {
	URLs []string `json:"urls"`
}

// APIError is a structured upstream failure. Services classify policy
// rejections by inspecting Code and Message.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d) %s: %s", e.StatusCode, e.Code, e.Message)
}

// Provider is the contract every LLM backend implements.
type Provider interface {
	Initialize(config map[string]string) error
	GetName() string
	GetSupportedModels() []string

	CompleteText(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	CompleteWithTools(ctx context.Context, req CompletionRequest, tools []Tool) (*ToolCompletionResponse, error)
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error)
}

// ProviderFactory builds an uninitialised provider.
type ProviderFactory func() Provider

var providers = make(map[string]ProviderFactory)

// Register adds a provider factory under a name.
func Register(name string, factory ProviderFactory) {
	providers[name] = factory
}

// GetProvider creates and initialises the named provider.
func GetProvider(name string, config map[string]string) (Provider, error) {
	factory, exists := providers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	provider := factory()
	err := provider.Initialize(config)
	return provider, err
}

// ListProviders returns all registered provider names.
func ListProviders() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}
