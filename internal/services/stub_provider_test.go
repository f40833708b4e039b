// internal/services/stub_provider_test.go
package services

import (
	"context"
	"fmt"

	"github.com/okhotin/FrontlineMuse/internal/llm"
)

// stubProvider is a scriptable llm.Provider for service tests. Unset hooks
// fail loudly so a test never silently hits a path it did not script.
type stubProvider struct {
	completeText func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
	completeTool func(ctx context.Context, req llm.CompletionRequest, tools []llm.Tool) (*llm.ToolCompletionResponse, error)
	genImage     func(ctx context.Context, req llm.ImageRequest) (*llm.ImageResponse, error)

	textCalls  int
	toolCalls  int
	imageCalls int
}

func (s *stubProvider) Initialize(config map[string]string) error { return nil }
func (s *stubProvider) GetName() string                           { return "stub" }
func (s *stubProvider) GetSupportedModels() []string              { return nil }

func (s *stubProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.textCalls++
	if s.completeText == nil {
		return nil, fmt.Errorf("unexpected CompleteText call")
	}
	return s.completeText(ctx, req)
}

func (s *stubProvider) CompleteWithTools(ctx context.Context, req llm.CompletionRequest, tools []llm.Tool) (*llm.ToolCompletionResponse, error) {
	s.toolCalls++
	if s.completeTool == nil {
		return nil, fmt.Errorf("unexpected CompleteWithTools call")
	}
	return s.completeTool(ctx, req, tools)
}

func (s *stubProvider) GenerateImage(ctx context.Context, req llm.ImageRequest) (*llm.ImageResponse, error) {
	s.imageCalls++
	if s.genImage == nil {
		return nil, fmt.Errorf("unexpected GenerateImage call")
	}
	return s.genImage(ctx, req)
}

// textProvider scripts a fixed chat-completion reply.
func textProvider(reply string) *stubProvider {
	return &stubProvider{
		completeText: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Text: reply, ModelName: "stub-model"}, nil
		},
	}
}
