// internal/services/image_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/okhotin/FrontlineMuse/internal/llm"
	"github.com/okhotin/FrontlineMuse/internal/models"
	"github.com/okhotin/FrontlineMuse/internal/storage"
	"github.com/okhotin/FrontlineMuse/internal/utils"
)

const (
	imageDescribeTimeout = 120 * time.Second
	imageSynthTimeout    = 60 * time.Second
	imageDownloadTimeout = 30 * time.Second
	imageSize            = "1024x1024"
)

// defaultImageDescription is the last-resort prompt when the description
// step produces nothing parseable.
var defaultImageDescription = models.ImageDescription{
	DetailedPrompt: "A quiet wartime-era scene: a weathered diary on a wooden table near a window, soft natural light",
	Style:          "realistic",
	Mood:           "solemn",
}

// The opening quote is optional: truncated tool arguments often lose it.
var detailedPromptRe = regexp.MustCompile(`"?detailed_prompt"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// ImageService renders an illustrative image for the diary with a content
// safety fallback path. Generate never returns a Go error; failures are
// carried in the result object.
type ImageService struct {
	provider      llm.Provider
	staticStorage *storage.FileStorage
	client        *http.Client
	logger        *utils.Logger
}

// NewImageService wires the image pipeline.
func NewImageService(provider llm.Provider, staticStorage *storage.FileStorage) *ImageService {
	return &ImageService{
		provider:      provider,
		staticStorage: staticStorage,
		client:        &http.Client{Timeout: imageDownloadTimeout},
		logger:        utils.GetLogger(),
	}
}

const describeSystemPrompt = `You compose image descriptions for historical diary illustrations.
Never use war, violence, weapon or death vocabulary in the description; render the era through objects, light and atmosphere.`

func describeTool() llm.Tool {
	return llm.Tool{
		Name:        "compose_image_description",
		Description: "Produce a detailed image description for the diary excerpt",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"detailed_prompt": map[string]interface{}{
					"type":        "string",
					"description": "Full visual description of the scene",
				},
				"style": map[string]interface{}{
					"type": "string",
					"enum": models.ImageStyles,
				},
				"mood": map[string]interface{}{
					"type": "string",
					"enum": models.ImageMoods,
				},
			},
			"required": []string{"detailed_prompt", "style", "mood"},
		},
	}
}

// Generate runs the full path: pre-screen, description, softening, synthesis
// and local mirroring.
func (s *ImageService) Generate(ctx context.Context, diaryText string, report *models.EmotionReport) *models.ImageResult {
	if ContainsExtremeViolence(diaryText) {
		return &models.ImageResult{
			Success:           false,
			Error:             "diary text contains content unsuitable for image generation",
			Type:              models.ErrKindContentPolicy,
			CanRegenerateSafe: true,
		}
	}
	if s.provider == nil {
		return &models.ImageResult{
			Success: false,
			Error:   "image provider is not configured",
			Type:    models.ErrKindMissingAPIKey,
		}
	}

	desc := s.describe(ctx, diaryText, report)

	prompt := desc.DetailedPrompt
	if softened, changed := SoftenDescription(prompt); changed {
		prompt = softened
	}
	prompt = fmt.Sprintf("%s. Style: %s. Mood: %s.", prompt, desc.Style, desc.Mood)

	return s.synthesise(ctx, prompt, false)
}

// describe runs the function-calling step and parses its arguments through
// the recovery cascade. Never fails: the safe default covers every path.
func (s *ImageService) describe(ctx context.Context, diaryText string, report *models.EmotionReport) models.ImageDescription {
	ctx, cancel := context.WithTimeout(ctx, imageDescribeTimeout)
	defer cancel()

	tone := ""
	if report != nil {
		tone = report.EmotionalTone
	}
	prompt := fmt.Sprintf(`Diary excerpt:
"""
%s
"""
Emotional tone: %s

Call compose_image_description with a scene that evokes this excerpt.`, truncateRunes(diaryText, DiaryTextLimit), tone)

	resp, err := s.provider.CompleteWithTools(ctx, llm.CompletionRequest{
		SystemPrompt: describeSystemPrompt,
		Prompt:       prompt,
		Temperature:  0.7,
		MaxTokens:    600,
	}, []llm.Tool{describeTool()})
	if err != nil {
		s.logger.Warn("image description completion failed", map[string]interface{}{"error": err.Error()})
		return defaultImageDescription
	}
	if len(resp.ToolCalls) == 0 {
		return defaultImageDescription
	}

	return parseImageDescription(resp.ToolCalls[0].Arguments)
}

// parseImageDescription recovers a description from possibly malformed tool
// arguments: direct parse, control-char strip, first balanced object, then a
// bare regex for detailed_prompt, then the safe default.
func parseImageDescription(raw string) models.ImageDescription {
	candidates := []string{raw}
	stripped := stripControlChars(raw)
	if stripped != raw {
		candidates = append(candidates, stripped)
	}
	if obj := firstJSONObject(stripped); obj != "" {
		candidates = append(candidates, obj)
	}

	for _, cand := range candidates {
		var desc models.ImageDescription
		if err := json.Unmarshal([]byte(cand), &desc); err == nil && desc.DetailedPrompt != "" {
			normalizeImageDescription(&desc)
			return desc
		}
	}

	if m := detailedPromptRe.FindStringSubmatch(stripped); m != nil {
		var unquoted string
		if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &unquoted); err == nil && unquoted != "" {
			desc := defaultImageDescription
			desc.DetailedPrompt = unquoted
			return desc
		}
	}

	return defaultImageDescription
}

func normalizeImageDescription(desc *models.ImageDescription) {
	if !containsString(models.ImageStyles, desc.Style) {
		desc.Style = defaultImageDescription.Style
	}
	if !containsString(models.ImageMoods, desc.Mood) {
		desc.Mood = defaultImageDescription.Mood
	}
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// policy failure markers scanned against upstream error text.
var policyFailureMarkers = []string{
	models.ErrKindContentPolicy, "policy", "violates", "image_generation_user_error",
}

// synthesise invokes the image endpoint, classifies failures and mirrors a
// successful image locally.
func (s *ImageService) synthesise(ctx context.Context, prompt string, safeAlternative bool) *models.ImageResult {
	synthCtx, cancel := context.WithTimeout(ctx, imageSynthTimeout)
	defer cancel()

	resp, err := s.provider.GenerateImage(synthCtx, llm.ImageRequest{
		Prompt: prompt,
		Size:   imageSize,
		N:      1,
	})
	if err != nil {
		return classifyImageFailure(err)
	}
	if len(resp.URLs) == 0 {
		return &models.ImageResult{
			Success: false,
			Error:   "image endpoint returned no urls",
			Type:    models.ErrKindMissingDataField,
		}
	}

	result := &models.ImageResult{
		Success:           true,
		ImageURL:          resp.URLs[0],
		IsSafeAlternative: safeAlternative,
	}

	filename := fmt.Sprintf("image_%d.png", time.Now().Unix())
	if localPath, err := s.mirror(ctx, resp.URLs[0], filename); err != nil {
		s.logger.Warn("image mirror failed", map[string]interface{}{"error": err.Error()})
	} else {
		result.LocalPath = localPath
		result.Filename = filename
	}
	return result
}

func classifyImageFailure(err error) *models.ImageResult {
	msg := err.Error()
	lower := strings.ToLower(msg)

	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		lower = strings.ToLower(apiErr.Code + " " + apiErr.Message)
	}

	for _, marker := range policyFailureMarkers {
		if strings.Contains(lower, marker) {
			return &models.ImageResult{
				Success:           false,
				Error:             "image request rejected by the content policy",
				Type:              models.ErrKindContentPolicy,
				CanRegenerateSafe: true,
				TechnicalError:    msg,
			}
		}
	}

	kind := models.ErrKindHTTP
	if errors.Is(err, context.DeadlineExceeded) {
		kind = models.ErrKindTimeout
	} else if apiErr == nil {
		kind = models.ErrKindConnection
	}
	return &models.ImageResult{
		Success:        false,
		Error:          "image generation failed",
		Type:           kind,
		TechnicalError: msg,
	}
}

// mirror downloads the image synchronously into the static images directory.
// Zero bytes counts as a failure; the caller keeps the external URL.
func (s *ImageService) mirror(ctx context.Context, imageURL, filename string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("downloaded zero bytes")
	}

	if err := s.staticStorage.SaveTextFile(imagesDirName, filename, data); err != nil {
		return "", err
	}
	return s.staticStorage.FullPath(imagesDirName, filename), nil
}

// weatherForTone maps the emotional tone onto the window landscape of the
// safe symbolic scene.
func weatherForTone(tone string) string {
	lower := strings.ToLower(tone)
	switch {
	case strings.Contains(lower, "hope") || strings.Contains(lower, "наде"):
		return "early morning light breaking through clouds"
	case strings.Contains(lower, "sorrow") || strings.Contains(lower, "груст") || strings.Contains(lower, "скорб"):
		return "grey autumn rain"
	case strings.Contains(lower, "tense") || strings.Contains(lower, "тревог"):
		return "a darkening storm front on the horizon"
	default:
		return "a calm overcast sky"
	}
}

// GenerateSafe renders the fixed symbolic scene used after a policy failure.
func (s *ImageService) GenerateSafe(ctx context.Context, report *models.EmotionReport) *models.ImageResult {
	if s.provider == nil {
		return &models.ImageResult{
			Success: false,
			Error:   "image provider is not configured",
			Type:    models.ErrKindMissingAPIKey,
		}
	}

	tone := ""
	if report != nil {
		tone = report.EmotionalTone
	}
	prompt := fmt.Sprintf(
		"A symbolic still life from the 1940s: a worn leather diary open on a wooden table, "+
			"personal mementos (a photograph, a letter, a pocket watch), a uniform jacket draped over a chair, "+
			"and a window looking out on a quiet landscape under %s. "+
			"Muted colours, painterly, no people, no conflict imagery.", weatherForTone(tone))

	result := s.synthesise(ctx, prompt, true)
	if !result.Success && result.Type == models.ErrKindContentPolicy {
		return s.GenerateUltraSafe(ctx)
	}
	return result
}

// GenerateUltraSafe is the last rung of the safe cascade: an ultra-minimal
// scene that cannot plausibly trip a content policy.
func (s *ImageService) GenerateUltraSafe(ctx context.Context) *models.ImageResult {
	if s.provider == nil {
		return &models.ImageResult{
			Success: false,
			Error:   "image provider is not configured",
			Type:    models.ErrKindMissingAPIKey,
		}
	}

	prompt := "A simple wooden desk with a closed journal and a few medals, beside a window at sunset. " +
		"Soft warm light, still life, painterly style."
	return s.synthesise(ctx, prompt, true)
}
