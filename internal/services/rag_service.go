// internal/services/rag_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/okhotin/FrontlineMuse/internal/histsrc"
	"github.com/okhotin/FrontlineMuse/internal/llm"
	"github.com/okhotin/FrontlineMuse/internal/models"
	"github.com/okhotin/FrontlineMuse/internal/rag"
	"github.com/okhotin/FrontlineMuse/internal/utils"
)

// Retrieval fan-out limits.
const (
	ragMaxKeywords         = 3
	ragMaxYears            = 2
	ragArticlesPerKeyword  = 2
	ragEventsPerKeyword    = 3
	ragEventsPerYear       = 3
	ragTopK                = 5
	ragSummaryExtractLimit = 200
	ragSummaryEventLimit   = 150
	ragEnrichTimeout       = 120 * time.Second
)

// RAGService retrieves historical context for a diary excerpt and enriches
// the emotion analysis with it. Every public method degrades instead of
// raising: retrieval failures yield an empty context plus an error string.
type RAGService struct {
	encyclopedia *histsrc.EncyclopediaClient
	events       *histsrc.EventsClient
	records      *RecordStore
	provider     llm.Provider
	logger       *utils.Logger

	ragDir string

	mu         sync.Mutex
	vectorizer *rag.Vectorizer
}

// NewRAGService wires the retrieval subsystem.
func NewRAGService(encyclopedia *histsrc.EncyclopediaClient, events *histsrc.EventsClient, records *RecordStore, provider llm.Provider, ragDir string) *RAGService {
	return &RAGService{
		encyclopedia: encyclopedia,
		events:       events,
		records:      records,
		provider:     provider,
		logger:       utils.GetLogger(),
		ragDir:       ragDir,
		vectorizer:   &rag.Vectorizer{},
	}
}

func thematicTags(report *models.EmotionReport) []string {
	if report == nil {
		return nil
	}
	var tags []string
	ta := report.ThematicAnalysis
	for _, group := range [][]string{
		ta.MilitaryCharacters, ta.BattleLocations, ta.WarEquipment,
		ta.FrontlineLife, ta.HistoricalEvents,
	} {
		tags = append(tags, group...)
	}
	return tags
}

// GetContext retrieves, persists, ranks and summarises historical material
// for the diary. The returned error string is empty on success; a non-empty
// string means the context is partial or empty because of upstream failures.
func (s *RAGService) GetContext(ctx context.Context, diaryText string, report *models.EmotionReport) (*models.HistoricalContext, string) {
	keywords := rag.ExtractKeywords(diaryText, thematicTags(report))
	dates := rag.ExtractDates(diaryText)
	years := rag.ExtractYears(dates)

	candidates, fetchErr := s.fetch(ctx, diaryText, keywords, years)

	if s.records != nil && len(candidates) > 0 {
		if _, err := s.records.InsertBatch(candidates); err != nil {
			s.logger.Warn("persist historical records failed", map[string]interface{}{"error": err.Error()})
		}
	}

	ranked := s.rank(diaryText, candidates)

	result := &models.HistoricalContext{
		FoundItems:   len(ranked),
		ContextItems: ranked,
		Summary:      buildContextSummary(ranked),
	}
	return result, fetchErr
}

// fetch runs the keyword and year fan-out, deduplicating by content hash.
// Individual source failures are logged and skipped.
func (s *RAGService) fetch(ctx context.Context, diaryText string, keywords []string, years []int) ([]models.HistoricalContextItem, string) {
	if len(keywords) > ragMaxKeywords {
		keywords = keywords[:ragMaxKeywords]
	}
	if len(years) > ragMaxYears {
		years = years[:ragMaxYears]
	}

	var candidates []models.HistoricalContextItem
	seen := make(map[string]bool)
	var lastErr string

	add := func(items []models.HistoricalContextItem) {
		for _, item := range items {
			hash := item.ContentHash()
			if seen[hash] {
				continue
			}
			seen[hash] = true
			candidates = append(candidates, item)
		}
	}

	for _, kw := range keywords {
		if s.encyclopedia != nil {
			articles, err := s.encyclopedia.SearchArticles(ctx, kw, ragArticlesPerKeyword)
			if err != nil {
				lastErr = err.Error()
				s.logger.Warn("encyclopedia search failed", map[string]interface{}{"keyword": kw, "error": err.Error()})
			} else {
				add(articles)
			}
		}
		if s.events != nil {
			evs, err := s.events.Search(ctx, kw, 0, 0, ragEventsPerKeyword)
			if err != nil {
				lastErr = err.Error()
				s.logger.Warn("events search failed", map[string]interface{}{"keyword": kw, "error": err.Error()})
			} else {
				add(evs)
			}
		}
	}

	yearQuery := yearSearchQuery(diaryText, keywords)
	for _, year := range years {
		if s.events == nil {
			break
		}
		evs, err := s.events.Search(ctx, yearQuery, year, year, ragEventsPerYear)
		if err != nil {
			lastErr = err.Error()
			s.logger.Warn("events year search failed", map[string]interface{}{"year": year, "error": err.Error()})
			continue
		}
		add(evs)
	}

	return candidates, lastErr
}

// yearSearchQuery picks the query string for year-bounded event searches:
// the first extracted keyword, else a short diary snippet.
func yearSearchQuery(diaryText string, keywords []string) string {
	if len(keywords) > 0 {
		return keywords[0]
	}
	return utils.TruncateText(strings.TrimSpace(diaryText), 60)
}

// rank scores candidates against the diary by TF-IDF cosine similarity and
// returns the top-K with relevance scores attached. The vectoriser is
// trained lazily on first use and persisted; a stale or missing cache simply
// retrains on the current corpus.
func (s *RAGService) rank(diaryText string, candidates []models.HistoricalContextItem) []models.HistoricalContextItem {
	if len(candidates) == 0 {
		return nil
	}

	texts := make([]string, len(candidates))
	for i := range candidates {
		texts[i] = candidates[i].SearchText()
	}

	s.mu.Lock()
	if !s.vectorizer.Trained() {
		if err := s.vectorizer.Load(s.ragDir); err != nil {
			corpus := append([]string{diaryText}, texts...)
			s.vectorizer.Fit(corpus)
			if err := s.vectorizer.Save(s.ragDir); err != nil {
				s.logger.Warn("persist vectorizer cache failed", map[string]interface{}{"error": err.Error()})
			}
			if err := rag.SaveTexts(s.ragDir, corpus); err != nil {
				s.logger.Warn("persist texts cache failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
	vec := s.vectorizer
	s.mu.Unlock()

	ranked := rag.Rank(vec, diaryText, texts, ragTopK)

	result := make([]models.HistoricalContextItem, 0, len(ranked))
	for _, r := range ranked {
		item := candidates[r.Index]
		item.RelevanceScore = r.Score
		result = append(result, item)
	}
	return result
}

// buildContextSummary groups ranked items by source: up to two encyclopedic
// bullets, then up to three event bullets.
func buildContextSummary(items []models.HistoricalContextItem) string {
	var encyclopedic, events []string
	for _, item := range items {
		switch item.Source {
		case models.SourceEncyclopedia:
			if len(encyclopedic) < 2 {
				encyclopedic = append(encyclopedic,
					fmt.Sprintf("• %s: %s", item.Title, utils.TruncateText(item.Extract, ragSummaryExtractLimit)))
			}
		case models.SourceEventsAPI:
			if len(events) < 3 {
				bullet := fmt.Sprintf("• %s — %s", item.Date, item.Title)
				if item.Extract != "" {
					bullet += ": " + utils.TruncateText(item.Extract, ragSummaryEventLimit)
				}
				events = append(events, bullet)
			}
		}
	}

	lines := append(encyclopedic, events...)
	return strings.Join(lines, "\n")
}

const enrichSystemPrompt = `You are a military historian and psychologist analysing WWII-era soldier diaries with access to archival context.
Respond with a single JSON object and nothing else.`

func enrichUserPrompt(diaryText, summary string) string {
	return fmt.Sprintf(`Analyse the following diary excerpt together with the retrieved historical context.

Diary text:
"""
%s
"""

Historical context:
%s

Return a JSON object with the keys "primary_emotions", "emotional_tone", "hidden_motives", "attitude", "thematic_analysis" (as in a standard emotion report), plus:
- "historical_accuracy": string assessing how the diary matches the documented record
- "historical_insights": list of strings connecting diary details to the context`, diaryText, summary)
}

// Enrich runs retrieval and, when context was found, a second completion
// that folds the context into the emotion report. It never raises.
func (s *RAGService) Enrich(ctx context.Context, diaryText string, report *models.EmotionReport) *models.EnrichedAnalysis {
	result := &models.EnrichedAnalysis{EmotionReport: *report}

	hctx, ragErr := s.GetContext(ctx, diaryText, report)
	result.RAGError = ragErr
	if hctx == nil || hctx.FoundItems == 0 {
		return result
	}

	result.HistoricalContext = hctx
	result.HasHistoricalEnrichment = true

	enriched := s.enrichReport(ctx, diaryText, hctx.Summary, report)
	result.EmotionReport = *enriched
	return result
}

// enrichReport issues the second completion. Parse failure falls back to the
// unenriched report carrying the standard-with-context marker.
func (s *RAGService) enrichReport(ctx context.Context, diaryText, summary string, report *models.EmotionReport) *models.EmotionReport {
	fallback := *report
	fallback.AnalysisMode = models.AnalysisModeStandardWithContext

	if s.provider == nil {
		return &fallback
	}

	ctx, cancel := context.WithTimeout(ctx, ragEnrichTimeout)
	defer cancel()

	resp, err := s.provider.CompleteText(ctx, llm.CompletionRequest{
		SystemPrompt: enrichSystemPrompt,
		Prompt:       enrichUserPrompt(truncateRunes(diaryText, DiaryTextLimit), summary),
		Temperature:  0.3,
		MaxTokens:    1400,
	})
	if err != nil {
		s.logger.Warn("enrichment completion failed", map[string]interface{}{"error": err.Error()})
		return &fallback
	}

	var enriched models.EmotionReport
	raw := resp.Text
	if err := json.Unmarshal([]byte(raw), &enriched); err != nil {
		recovered := largestJSONObject(stripControlChars(raw))
		if recovered == "" {
			return &fallback
		}
		if err := json.Unmarshal([]byte(recovered), &enriched); err != nil {
			return &fallback
		}
	}
	if len(enriched.PrimaryEmotions) == 0 {
		return &fallback
	}
	return &enriched
}

// ClearCache resets the vectoriser, the persisted caches and the record
// store.
func (s *RAGService) ClearCache() error {
	s.mu.Lock()
	s.vectorizer = &rag.Vectorizer{}
	s.mu.Unlock()

	for _, name := range []string{rag.VectorsCacheFile, rag.TextsCacheFile} {
		path := filepath.Join(s.ragDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove cache %s: %w", name, err)
		}
	}

	if s.records != nil {
		if err := s.records.ClearAll(); err != nil {
			return err
		}
	}
	return nil
}
