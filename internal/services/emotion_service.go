// internal/services/emotion_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okhotin/FrontlineMuse/internal/llm"
	"github.com/okhotin/FrontlineMuse/internal/models"
	"github.com/okhotin/FrontlineMuse/internal/utils"
)

// DiaryTextLimit is the maximum number of characters of diary text any
// component sees. Longer input is silently cut.
const DiaryTextLimit = 8000

const emotionTimeout = 120 * time.Second

const emotionSystemPrompt = `You are a military historian and psychologist analysing WWII-era soldier diaries.
Respond with a single JSON object and nothing else. No markdown, no commentary.`

// EmotionService produces structured emotion reports from diary excerpts.
// Analyze never returns an error: every failure mode yields a report whose
// error field is set.
type EmotionService struct {
	provider llm.Provider
	logger   *utils.Logger
}

// NewEmotionService wires the analysis step to a chat-completion provider.
func NewEmotionService(provider llm.Provider) *EmotionService {
	return &EmotionService{
		provider: provider,
		logger:   utils.GetLogger(),
	}
}

func emotionUserPrompt(diaryText string) string {
	return fmt.Sprintf(`Analyse the following diary excerpt.

Diary text:
"""
%s
"""

Return a JSON object with exactly these keys:
- "primary_emotions": ordered list of {"emotion": string, "intensity": integer 1-10}
- "emotional_tone": string
- "hidden_motives": list of strings
- "attitude": string
- "thematic_analysis": object with keys "military_characters", "battle_locations", "war_equipment", "frontline_life", "historical_events", each a list of strings (empty list when nothing applies)`, diaryText)
}

// Analyze runs the emotion analysis over at most DiaryTextLimit characters
// of the diary.
func (s *EmotionService) Analyze(ctx context.Context, diaryText string) *models.EmotionReport {
	if diaryText == "" {
		return models.EmptyEmotionReport("diary text is empty")
	}
	diaryText = truncateRunes(diaryText, DiaryTextLimit)

	if s.provider == nil {
		return models.EmptyEmotionReport("chat completion provider is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, emotionTimeout)
	defer cancel()

	resp, err := s.provider.CompleteText(ctx, llm.CompletionRequest{
		SystemPrompt: emotionSystemPrompt,
		Prompt:       emotionUserPrompt(diaryText),
		Temperature:  0.3,
		MaxTokens:    1200,
	})
	if err != nil {
		s.logger.Error("emotion analysis completion failed", map[string]interface{}{"error": err.Error()})
		return models.EmptyEmotionReport(fmt.Sprintf("completion failed: %v", err))
	}

	report, parseErr := parseEmotionReport(resp.Text)
	if parseErr != nil {
		s.logger.Warn("emotion report parse failed", map[string]interface{}{"error": parseErr.Error()})
		return models.EmptyEmotionReport(parseErr.Error())
	}
	return report
}

// parseEmotionReport tries a strict parse first, then retries on the largest
// brace-balanced substring of the reply.
func parseEmotionReport(raw string) (*models.EmotionReport, error) {
	var report models.EmotionReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		recovered := largestJSONObject(stripControlChars(raw))
		if recovered == "" {
			return nil, fmt.Errorf("parse emotion report: %w", err)
		}
		report = models.EmotionReport{}
		if err := json.Unmarshal([]byte(recovered), &report); err != nil {
			return nil, fmt.Errorf("parse recovered emotion report: %w", err)
		}
	}

	if len(report.PrimaryEmotions) == 0 {
		return nil, fmt.Errorf("emotion report carries no primary emotions")
	}
	for i := range report.PrimaryEmotions {
		if report.PrimaryEmotions[i].Intensity < 1 {
			report.PrimaryEmotions[i].Intensity = 1
		}
		if report.PrimaryEmotions[i].Intensity > 10 {
			report.PrimaryEmotions[i].Intensity = 10
		}
	}
	return &report, nil
}
