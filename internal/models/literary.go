// internal/models/literary.go
package models

import "time"

// Literary work types.
const (
	LiteraryTypePoem   = "poem"
	LiteraryTypeStory  = "story"
	LiteraryTypeDrama  = "drama"
	LiteraryTypeRandom = "random"
)

// ConcreteLiteraryTypes are the selectable forms; random picks among them.
var ConcreteLiteraryTypes = []string{
	LiteraryTypePoem,
	LiteraryTypeStory,
	LiteraryTypeDrama,
}

// IsValidLiteraryType accepts the three forms plus random.
func IsValidLiteraryType(t string) bool {
	switch t {
	case LiteraryTypePoem, LiteraryTypeStory, LiteraryTypeDrama, LiteraryTypeRandom:
		return true
	}
	return false
}

// LiteraryWork is the result of one literary generation: the text plus the
// names of its two sidecar files in the generations directory.
type LiteraryWork struct {
	FileID       string `json:"file_id"`
	Text         string `json:"text"`
	Filename     string `json:"filename"`
	MetaFilename string `json:"meta_filename"`
	LiteraryType string `json:"literary_type"`
}

// LiteraryMeta is the JSON sidecar written next to the work's text file.
type LiteraryMeta struct {
	FileID              string         `json:"file_id"`
	GenerationTimestamp time.Time      `json:"generation_timestamp"`
	LiteraryType        string         `json:"literary_type"`
	SourceDiarySnippet  string         `json:"source_diary_text_snippet"`
	EmotionAnalysisUsed *EmotionReport `json:"emotion_analysis_used,omitempty"`
	ModelUsed           string         `json:"model_used"`
	UserID              string         `json:"user_id,omitempty"`
}
