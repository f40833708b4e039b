// internal/models/emotion.go
package models

// EmotionScore is one named emotion with its intensity on a 1..10 scale.
type EmotionScore struct {
	Emotion   string `json:"emotion"`
	Intensity int    `json:"intensity"`
}

// ThematicAnalysis groups diary themes under fixed wartime categories.
type ThematicAnalysis struct {
	MilitaryCharacters []string `json:"military_characters"`
	BattleLocations    []string `json:"battle_locations"`
	WarEquipment       []string `json:"war_equipment"`
	FrontlineLife      []string `json:"frontline_life"`
	HistoricalEvents   []string `json:"historical_events"`
}

// EmotionReport is the structured output of the emotion analysis step.
// Either PrimaryEmotions is non-empty, or Error carries the reason.
type EmotionReport struct {
	PrimaryEmotions  []EmotionScore   `json:"primary_emotions"`
	EmotionalTone    string           `json:"emotional_tone"`
	HiddenMotives    []string         `json:"hidden_motives"`
	Attitude         string           `json:"attitude"`
	ThematicAnalysis ThematicAnalysis `json:"thematic_analysis"`

	// Present only on enriched reports.
	HistoricalAccuracy string   `json:"historical_accuracy,omitempty"`
	HistoricalInsights []string `json:"historical_insights,omitempty"`
	AnalysisMode       string   `json:"analysis_mode,omitempty"`

	Error string `json:"error,omitempty"`
}

// AnalysisModeStandardWithContext marks a report whose enrichment completion
// failed to parse; the unenriched report is returned with this marker.
const AnalysisModeStandardWithContext = "standard_with_historical_context"

// IsError reports whether the analysis failed.
func (r *EmotionReport) IsError() bool {
	return r != nil && r.Error != ""
}

// TopEmotions returns up to n primary emotions in report order.
func (r *EmotionReport) TopEmotions(n int) []EmotionScore {
	if r == nil || len(r.PrimaryEmotions) == 0 {
		return nil
	}
	if n > len(r.PrimaryEmotions) {
		n = len(r.PrimaryEmotions)
	}
	return r.PrimaryEmotions[:n]
}

// EmptyEmotionReport builds the error-bearing default report.
func EmptyEmotionReport(errMsg string) *EmotionReport {
	return &EmotionReport{
		PrimaryEmotions: []EmotionScore{},
		HiddenMotives:   []string{},
		ThematicAnalysis: ThematicAnalysis{
			MilitaryCharacters: []string{},
			BattleLocations:    []string{},
			WarEquipment:       []string{},
			FrontlineLife:      []string{},
			HistoricalEvents:   []string{},
		},
		Error: errMsg,
	}
}

// HistoricalContext is the retrieval result attached to an enriched analysis.
type HistoricalContext struct {
	FoundItems   int                     `json:"found_items"`
	ContextItems []HistoricalContextItem `json:"context_items"`
	Summary      string                  `json:"summary"`
}

// EnrichedAnalysis is an EmotionReport plus retrieved historical context.
// Invariant: HasHistoricalEnrichment ⇔ HistoricalContext.FoundItems > 0.
type EnrichedAnalysis struct {
	EmotionReport
	HistoricalContext       *HistoricalContext `json:"historical_context,omitempty"`
	HasHistoricalEnrichment bool               `json:"has_historical_enrichment"`
	RAGError                string             `json:"rag_error,omitempty"`
}
