// internal/services/literary_service.go
package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okhotin/FrontlineMuse/internal/llm"
	"github.com/okhotin/FrontlineMuse/internal/models"
	"github.com/okhotin/FrontlineMuse/internal/storage"
	"github.com/okhotin/FrontlineMuse/internal/utils"
)

const literaryTimeout = 120 * time.Second

const literarySystemPrompt = `You are a Russian writer of the war generation, shaping soldiers' diary entries into literature.
Write in the language of the diary. Output only the work itself, no titles or commentary.`

// literaryForm fixes the length target and constraints per work type.
type literaryForm struct {
	instruction string
}

var literaryForms = map[string]literaryForm{
	models.LiteraryTypePoem: {
		instruction: "Write a poem of 16 to 24 lines. Use vivid imagery and a consistent meter; first- or third-person lyric voice.",
	},
	models.LiteraryTypeStory: {
		instruction: "Write a short story of 400 to 600 words. Third person, include dialogue, and trace a psychological arc.",
	},
	models.LiteraryTypeDrama: {
		instruction: "Write a dramatic piece of 300 to 450 words: a monologue or a two-voice scene.",
	},
}

// LiteraryService turns a diary excerpt plus its emotion report into a
// literary work persisted as a text file with a JSON metadata sidecar.
type LiteraryService struct {
	provider llm.Provider
	storage  *storage.FileStorage
	ledger   *LedgerService
	logger   *utils.Logger
}

// NewLiteraryService wires the generator. ledger may be nil when no ledger
// recording is wanted.
func NewLiteraryService(provider llm.Provider, dataStorage *storage.FileStorage, ledger *LedgerService) *LiteraryService {
	return &LiteraryService{
		provider: provider,
		storage:  dataStorage,
		ledger:   ledger,
		logger:   utils.GetLogger(),
	}
}

// chooseConcreteType resolves random into one of the three forms, uniformly.
func chooseConcreteType(literaryType string) string {
	if literaryType != models.LiteraryTypeRandom {
		return literaryType
	}
	return models.ConcreteLiteraryTypes[rand.Intn(len(models.ConcreteLiteraryTypes))]
}

// emotionSummaryLine compacts the report for the prompt: top-3 emotions with
// intensities, plus the overall tone.
func emotionSummaryLine(report *models.EmotionReport) string {
	var parts []string
	for _, e := range report.TopEmotions(3) {
		parts = append(parts, fmt.Sprintf("%s (%d/10)", e.Emotion, e.Intensity))
	}
	line := strings.Join(parts, ", ")
	if report.EmotionalTone != "" {
		line += "; overall tone: " + report.EmotionalTone
	}
	return line
}

// Generate produces and persists one literary work. A report carrying an
// error, or an invalid type, yields an error and no side effects.
func (s *LiteraryService) Generate(ctx context.Context, diaryText string, report *models.EmotionReport, userID, literaryType string) (*models.LiteraryWork, error) {
	if report == nil || report.IsError() {
		return nil, fmt.Errorf("emotion analysis unavailable, literary generation skipped")
	}
	if !models.IsValidLiteraryType(literaryType) {
		return nil, fmt.Errorf("unknown literary type %q", literaryType)
	}
	if s.provider == nil {
		return nil, fmt.Errorf("chat completion provider is not configured")
	}

	diaryText = truncateRunes(diaryText, DiaryTextLimit)
	chosen := chooseConcreteType(literaryType)
	form := literaryForms[chosen]

	prompt := fmt.Sprintf(`Diary excerpt:
"""
%s
"""

Emotional reading: %s

%s`, diaryText, emotionSummaryLine(report), form.instruction)

	ctx, cancel := context.WithTimeout(ctx, literaryTimeout)
	defer cancel()

	resp, err := s.provider.CompleteText(ctx, llm.CompletionRequest{
		SystemPrompt: literarySystemPrompt,
		Prompt:       prompt,
		Temperature:  0.75,
		MaxTokens:    800,
	})
	if err != nil {
		return nil, fmt.Errorf("literary completion failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, fmt.Errorf("literary completion returned empty text")
	}

	fileID := uuid.NewString()
	work := &models.LiteraryWork{
		FileID:       fileID,
		Text:         text,
		Filename:     fileID + ".txt",
		MetaFilename: fileID + ".meta.json",
		LiteraryType: chosen,
	}

	if err := s.storage.SaveTextFile(generationsDirName, work.Filename, []byte(text)); err != nil {
		return nil, fmt.Errorf("persist literary text: %w", err)
	}

	meta := models.LiteraryMeta{
		FileID:              fileID,
		GenerationTimestamp: time.Now().UTC(),
		LiteraryType:        chosen,
		SourceDiarySnippet:  utils.TruncateText(diaryText, 200),
		EmotionAnalysisUsed: report,
		ModelUsed:           resp.ModelName,
		UserID:              userID,
	}
	if err := s.storage.SaveJSONFile(generationsDirName, work.MetaFilename, meta); err != nil {
		return nil, fmt.Errorf("persist literary metadata: %w", err)
	}

	if userID != "" && s.ledger != nil {
		title := fmt.Sprintf("%s %s", chosen, time.Now().Format("2006-01-02"))
		if _, err := s.ledger.Insert(userID, models.GenerationTypeText, fileID, title, utils.TruncateText(text, 200)); err != nil {
			s.logger.Warn("ledger insert for literary work failed", map[string]interface{}{"error": err.Error()})
		}
	}

	return work, nil
}

// Load reads a persisted work back by file id.
func (s *LiteraryService) Load(fileID string) (*models.LiteraryWork, *models.LiteraryMeta, error) {
	text, err := s.storage.LoadTextFile(generationsDirName, fileID+".txt")
	if err != nil {
		return nil, nil, fmt.Errorf("load literary text: %w", err)
	}

	var meta models.LiteraryMeta
	if err := s.storage.LoadJSONFile(generationsDirName, fileID+".meta.json", &meta); err != nil {
		return nil, nil, fmt.Errorf("load literary metadata: %w", err)
	}

	work := &models.LiteraryWork{
		FileID:       fileID,
		Text:         string(text),
		Filename:     fileID + ".txt",
		MetaFilename: fileID + ".meta.json",
		LiteraryType: meta.LiteraryType,
	}
	return work, &meta, nil
}
