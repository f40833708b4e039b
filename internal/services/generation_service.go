// internal/services/generation_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/okhotin/FrontlineMuse/internal/models"
	"github.com/okhotin/FrontlineMuse/internal/observe"
	"github.com/okhotin/FrontlineMuse/internal/utils"
)

// GenerationRequest is one orchestrated multi-modal generation call.
type GenerationRequest struct {
	DiaryText                string   `json:"diary_text"`
	GenerationTypes          []string `json:"generation_types"`
	LiteraryType             string   `json:"literary_type,omitempty"`
	IncludeHistoricalContext bool     `json:"include_historical_context,omitempty"`
	CallbackBaseURL          string   `json:"callback_base_url,omitempty"`
}

// GenerationResponse aggregates the per-modality outcomes.
type GenerationResponse struct {
	EmotionAnalysis *models.EnrichedAnalysis `json:"emotion_analysis"`

	GeneratedLiteraryWork string              `json:"generated_literary_work,omitempty"`
	LiteraryWork          *models.LiteraryWork `json:"literary_work,omitempty"`
	LiteraryError         string              `json:"literary_error,omitempty"`

	GeneratedImage *models.ImageResult `json:"generated_image,omitempty"`

	MusicGeneration *MusicSubmitResult `json:"music_generation,omitempty"`
}

// GenerationService drives the pipeline: emotion analysis first, optional
// historical enrichment, then fan-out to the requested generators. Literary
// and image generation are synchronous; music returns a task handle.
type GenerationService struct {
	emotion  *EmotionService
	rag      *RAGService
	literary *LiteraryService
	image    *ImageService
	music    *MusicService
	ledger   *LedgerService
	logger   *utils.Logger
}

// NewGenerationService wires the orchestrator. rag may be nil when no
// retrieval sources are configured.
func NewGenerationService(emotion *EmotionService, rag *RAGService, literary *LiteraryService, image *ImageService, music *MusicService, ledger *LedgerService) *GenerationService {
	return &GenerationService{
		emotion:  emotion,
		rag:      rag,
		literary: literary,
		image:    image,
		music:    music,
		ledger:   ledger,
		logger:   utils.GetLogger(),
	}
}

func wantsType(types []string, t string) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

// Generate runs the full pipeline for one request. userID may be empty for
// anonymous calls (no ledger entries); requestHost feeds the music callback
// URL resolution.
func (s *GenerationService) Generate(ctx context.Context, req GenerationRequest, userID, requestHost string) *GenerationResponse {
	report := s.emotion.Analyze(ctx, req.DiaryText)

	analysis := &models.EnrichedAnalysis{EmotionReport: *report}
	if !report.IsError() && req.IncludeHistoricalContext && s.rag != nil {
		analysis = s.rag.Enrich(ctx, req.DiaryText, report)
	}

	resp := &GenerationResponse{EmotionAnalysis: analysis}
	if report.IsError() {
		// No downstream generation without a usable analysis.
		return resp
	}
	workingReport := &analysis.EmotionReport

	if wantsType(req.GenerationTypes, models.GenerationTypeText) && s.literary != nil {
		literaryType := req.LiteraryType
		if literaryType == "" {
			literaryType = models.LiteraryTypeRandom
		}
		work, err := s.literary.Generate(ctx, req.DiaryText, workingReport, userID, literaryType)
		if err != nil {
			resp.LiteraryError = err.Error()
			s.logger.Warn("literary generation failed", map[string]interface{}{"error": err.Error()})
		} else {
			resp.GeneratedLiteraryWork = work.Text
			resp.LiteraryWork = work
		}
		observe.RecordGeneration(models.GenerationTypeText, err == nil)
	}

	if wantsType(req.GenerationTypes, models.GenerationTypeImage) && s.image != nil {
		result := s.image.Generate(ctx, req.DiaryText, workingReport)
		resp.GeneratedImage = result
		observe.RecordGeneration(models.GenerationTypeImage, result.Success)

		if result.Success && userID != "" {
			s.recordImageEntry(userID, result, workingReport)
		}
	}

	if wantsType(req.GenerationTypes, models.GenerationTypeMusic) && s.music != nil {
		result := s.music.Submit(ctx, workingReport, req.CallbackBaseURL, requestHost, userID)
		resp.MusicGeneration = result
		observe.RecordGeneration(models.GenerationTypeMusic, result.Success)
	}

	return resp
}

// recordImageEntry appends the ledger entry for a mirrored image.
func (s *GenerationService) recordImageEntry(userID string, result *models.ImageResult, report *models.EmotionReport) {
	if s.ledger == nil {
		return
	}
	ref := result.Filename
	if ref == "" {
		ref = result.ImageURL
	}
	title := fmt.Sprintf("illustration %s", time.Now().Format("2006-01-02"))
	if _, err := s.ledger.Insert(userID, models.GenerationTypeImage, ref, title, report.EmotionalTone); err != nil {
		s.logger.Warn("ledger insert for image failed", map[string]interface{}{"error": err.Error()})
	}
}
