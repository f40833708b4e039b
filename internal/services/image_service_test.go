// internal/services/image_service_test.go
package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okhotin/FrontlineMuse/internal/llm"
	"github.com/okhotin/FrontlineMuse/internal/models"
	"github.com/okhotin/FrontlineMuse/internal/storage"
)

func newImageService(t *testing.T, provider llm.Provider) *ImageService {
	t.Helper()
	staticStorage, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return NewImageService(provider, staticStorage)
}

func TestGeneratePreScreenBlocksWithoutNetwork(t *testing.T) {
	provider := &stubProvider{}
	svc := newImageService(t, provider)

	result := svc.Generate(context.Background(), "Вчера расстреляли пленных.", nil)

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrKindContentPolicy, result.Type)
	assert.True(t, result.CanRegenerateSafe)
	assert.Zero(t, provider.toolCalls)
	assert.Zero(t, provider.imageCalls)
}

func TestGenerateFullPath(t *testing.T) {
	fileServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("png-bytes"))
	}))
	defer fileServer.Close()

	var imagePrompt string
	provider := &stubProvider{
		completeTool: func(ctx context.Context, req llm.CompletionRequest, tools []llm.Tool) (*llm.ToolCompletionResponse, error) {
			return &llm.ToolCompletionResponse{ToolCalls: []llm.ToolCall{{
				Name:      "compose_image_description",
				Arguments: `{"detailed_prompt":"a diary on a war table","style":"cinematic","mood":"solemn"}`,
			}}}, nil
		},
		genImage: func(ctx context.Context, req llm.ImageRequest) (*llm.ImageResponse, error) {
			imagePrompt = req.Prompt
			return &llm.ImageResponse{URLs: []string{fileServer.URL + "/img.png"}}, nil
		},
	}
	svc := newImageService(t, provider)

	result := svc.Generate(context.Background(), "Тихий вечер у печки.", nil)

	require.True(t, result.Success)
	assert.NotEmpty(t, result.LocalPath)
	assert.NotEmpty(t, result.Filename)
	assert.False(t, result.IsSafeAlternative)

	// "war" in the description triggers softening before synthesis.
	assert.Contains(t, imagePrompt, softenFraming)
	assert.NotContains(t, imagePrompt, "war table")
	assert.Contains(t, imagePrompt, "Style: cinematic")
}

func TestGenerateMirrorFailureKeepsExternalURL(t *testing.T) {
	provider := &stubProvider{
		completeTool: func(ctx context.Context, req llm.CompletionRequest, tools []llm.Tool) (*llm.ToolCompletionResponse, error) {
			return &llm.ToolCompletionResponse{}, nil
		},
		genImage: func(ctx context.Context, req llm.ImageRequest) (*llm.ImageResponse, error) {
			return &llm.ImageResponse{URLs: []string{"http://127.0.0.1:1/unreachable.png"}}, nil
		},
	}
	svc := newImageService(t, provider)

	result := svc.Generate(context.Background(), "Тихий вечер.", nil)

	require.True(t, result.Success)
	assert.NotEmpty(t, result.ImageURL)
	assert.Empty(t, result.LocalPath)
}

func TestParseImageDescription(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		prompt string
		style  string
	}{
		{
			"strict json",
			`{"detailed_prompt":"scene one","style":"artistic","mood":"hopeful"}`,
			"scene one", "artistic",
		},
		{
			"control characters outside literals",
			"\u200b{\"detailed_prompt\":\"scene two\",\"style\":\"realistic\",\"mood\":\"solemn\"}\u200b",
			"scene two", "realistic",
		},
		{
			"prose wrapped",
			`Sure, here you go: {"detailed_prompt":"scene three","style":"documentary","mood":"tense"} enjoy`,
			"scene three", "documentary",
		},
		{
			"regex fallback",
			`detailed_prompt": "scene four" and some trailing garbage`,
			"scene four", defaultImageDescription.Style,
		},
		{
			"regex fallback quoted key",
			`{"style":"artistic","detailed_prompt":"scene five" truncated mid-object`,
			"scene five", defaultImageDescription.Style,
		},
		{
			"unusable input",
			"complete nonsense",
			defaultImageDescription.DetailedPrompt, defaultImageDescription.Style,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			desc := parseImageDescription(tc.raw)
			assert.Equal(t, tc.prompt, desc.DetailedPrompt)
			assert.Equal(t, tc.style, desc.Style)
		})
	}
}

func TestParseImageDescriptionNormalisesEnums(t *testing.T) {
	desc := parseImageDescription(`{"detailed_prompt":"p","style":"vaporwave","mood":"giddy"}`)

	assert.Equal(t, defaultImageDescription.Style, desc.Style)
	assert.Equal(t, defaultImageDescription.Mood, desc.Mood)
}

func TestClassifyImageFailurePolicy(t *testing.T) {
	err := &llm.APIError{StatusCode: 400, Code: "image_generation_user_error", Message: "rejected"}

	result := classifyImageFailure(err)

	assert.Equal(t, models.ErrKindContentPolicy, result.Type)
	assert.True(t, result.CanRegenerateSafe)
	assert.NotEmpty(t, result.TechnicalError)
}

func TestClassifyImageFailureTimeout(t *testing.T) {
	result := classifyImageFailure(context.DeadlineExceeded)
	assert.Equal(t, models.ErrKindTimeout, result.Type)
}

func TestGenerateSafeFallsBackToUltraSafe(t *testing.T) {
	calls := 0
	provider := &stubProvider{
		genImage: func(ctx context.Context, req llm.ImageRequest) (*llm.ImageResponse, error) {
			calls++
			if calls == 1 {
				return nil, &llm.APIError{StatusCode: 400, Code: "content_policy_violation", Message: "no"}
			}
			return &llm.ImageResponse{URLs: []string{"http://127.0.0.1:1/x.png"}}, nil
		},
	}
	svc := newImageService(t, provider)

	result := svc.GenerateSafe(context.Background(), reportWith("hopeful"))

	require.True(t, result.Success)
	assert.True(t, result.IsSafeAlternative)
	assert.Equal(t, 2, calls)
}

func TestWeatherForTone(t *testing.T) {
	assert.Contains(t, weatherForTone("hopeful"), "morning light")
	assert.Contains(t, weatherForTone("скорбный"), "rain")
	assert.Contains(t, weatherForTone("тревога"), "storm")
	assert.Contains(t, weatherForTone("neutral"), "overcast")
}
